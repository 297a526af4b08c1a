// Package voice holds the Kokoro voice catalog and the agent-name to
// voice-id assignment logic shared by every session on the host.
package voice

import (
	"sort"
	"strings"
)

// Voice describes one catalog entry. ID is the Kokoro voice id
// ("am_eric"); Name is the human display name ("Eric") used as a session
// name.
type Voice struct {
	ID     string `json:"id"`
	Gender string `json:"gender"`
	Accent string `json:"accent"`
}

// Name returns the display name derived from the id suffix.
func (v Voice) Name() string {
	if i := strings.IndexByte(v.ID, '_'); i >= 0 && i+1 < len(v.ID) {
		s := v.ID[i+1:]
		return strings.ToUpper(s[:1]) + s[1:]
	}
	return v.ID
}

// Catalog is the full Kokoro voice inventory, grouped by accent. The
// order is fixed and part of the tool output contract.
var Catalog = []Voice{
	{"af_alloy", "female", "american"},
	{"af_aoede", "female", "american"},
	{"af_bella", "female", "american"},
	{"af_heart", "female", "american"},
	{"af_jessica", "female", "american"},
	{"af_kore", "female", "american"},
	{"af_nicole", "female", "american"},
	{"af_nova", "female", "american"},
	{"af_river", "female", "american"},
	{"af_sarah", "female", "american"},
	{"af_sky", "female", "american"},
	{"am_adam", "male", "american"},
	{"am_echo", "male", "american"},
	{"am_eric", "male", "american"},
	{"am_fenrir", "male", "american"},
	{"am_liam", "male", "american"},
	{"am_michael", "male", "american"},
	{"am_onyx", "male", "american"},
	{"am_puck", "male", "american"},
	{"am_santa", "male", "american"},
	{"bf_alice", "female", "british"},
	{"bf_emma", "female", "british"},
	{"bf_isabella", "female", "british"},
	{"bf_lily", "female", "british"},
	{"bm_daniel", "male", "british"},
	{"bm_fable", "male", "british"},
	{"bm_george", "male", "british"},
	{"bm_lewis", "male", "british"},
	{"ef_dora", "female", "spanish"},
	{"em_alex", "male", "spanish"},
	{"em_santa", "male", "spanish"},
	{"ff_siwis", "female", "french"},
	{"hf_alpha", "female", "hindi"},
	{"hf_beta", "female", "hindi"},
	{"hm_omega", "male", "hindi"},
	{"hm_psi", "male", "hindi"},
	{"if_sara", "female", "italian"},
	{"im_nicola", "male", "italian"},
	{"jf_alpha", "female", "japanese"},
	{"jf_gongitsune", "female", "japanese"},
	{"jf_nezumi", "female", "japanese"},
	{"jf_tebukuro", "female", "japanese"},
	{"jm_kumo", "male", "japanese"},
	{"pf_dora", "female", "portuguese"},
	{"pm_alex", "male", "portuguese"},
	{"pm_santa", "male", "portuguese"},
	{"zf_xiaobei", "female", "mandarin"},
	{"zf_xiaoni", "female", "mandarin"},
	{"zf_xiaoxiao", "female", "mandarin"},
	{"zf_xiaoyi", "female", "mandarin"},
	{"zm_yunjian", "male", "mandarin"},
	{"zm_yunxi", "male", "mandarin"},
	{"zm_yunxia", "male", "mandarin"},
	{"zm_yunyang", "male", "mandarin"},
}

// Priority orders (displayName, voiceID) pairs for deterministic name
// fallback when a preferred session name is taken: American English
// first, then British, then everything else, the Santa novelty voice
// last. Within each group the order is curated, not alphabetical.
var Priority = []struct {
	Name string
	ID   string
}{
	{"Adam", "am_adam"}, {"Echo", "am_echo"}, {"Eric", "am_eric"},
	{"Fenrir", "am_fenrir"}, {"Liam", "am_liam"}, {"Michael", "am_michael"},
	{"Onyx", "am_onyx"}, {"Puck", "am_puck"},
	{"Nova", "af_nova"}, {"Bella", "af_bella"}, {"Heart", "af_heart"},
	{"Jessica", "af_jessica"}, {"Nicole", "af_nicole"}, {"River", "af_river"},
	{"Sarah", "af_sarah"}, {"Sky", "af_sky"}, {"Alloy", "af_alloy"},
	{"Aoede", "af_aoede"}, {"Kore", "af_kore"},
	{"Daniel", "bm_daniel"}, {"Fable", "bm_fable"},
	{"George", "bm_george"}, {"Lewis", "bm_lewis"},
	{"Alice", "bf_alice"}, {"Emma", "bf_emma"},
	{"Isabella", "bf_isabella"}, {"Lily", "bf_lily"},
	{"Alex", "em_alex"}, {"Dora", "ef_dora"}, {"Siwis", "ff_siwis"},
	{"Alpha", "hf_alpha"}, {"Beta", "hf_beta"}, {"Omega", "hm_omega"},
	{"Psi", "hm_psi"}, {"Sara", "if_sara"}, {"Nicola", "im_nicola"},
	{"Gongitsune", "jf_gongitsune"}, {"Nezumi", "jf_nezumi"},
	{"Tebukuro", "jf_tebukuro"}, {"Kumo", "jm_kumo"},
	{"Xiaobei", "zf_xiaobei"}, {"Xiaoni", "zf_xiaoni"},
	{"Xiaoxiao", "zf_xiaoxiao"}, {"Xiaoyi", "zf_xiaoyi"},
	{"Yunjian", "zm_yunjian"}, {"Yunxi", "zm_yunxi"},
	{"Yunxia", "zm_yunxia"}, {"Yunyang", "zm_yunyang"},
	{"Santa", "am_santa"},
}

var (
	byID   map[string]Voice
	byName map[string]string // lowercase display name -> id, first match wins
)

func init() {
	byID = make(map[string]Voice, len(Catalog))
	byName = make(map[string]string, len(Priority))
	for _, v := range Catalog {
		byID[v.ID] = v
	}
	for _, p := range Priority {
		byName[strings.ToLower(p.Name)] = p.ID
	}
}

// ValidID reports whether id names a catalog voice.
func ValidID(id string) bool {
	_, ok := byID[id]
	return ok
}

// Lookup returns the catalog entry for id.
func Lookup(id string) (Voice, bool) {
	v, ok := byID[id]
	return v, ok
}

// IDForName maps a display name (case-insensitive) to its voice id. Names
// shared by several accents resolve to the priority-list entry, e.g.
// "santa" is am_santa, not em_santa or pm_santa.
func IDForName(name string) (string, bool) {
	id, ok := byName[strings.ToLower(name)]
	return id, ok
}

// HashedPick deterministically maps an arbitrary name into the catalog:
// FNV-1a of the name modulo the sorted id list. Same name, same voice,
// across processes and restarts.
func HashedPick(name string) Voice {
	all := SortedIDs()
	v, _ := Lookup(all[stableHash(name)%uint64(len(all))])
	return v
}

// SortedIDs returns all catalog voice ids in lexical order.
func SortedIDs() []string {
	ids := make([]string, 0, len(Catalog))
	for _, v := range Catalog {
		ids = append(ids, v.ID)
	}
	sort.Strings(ids)
	return ids
}
