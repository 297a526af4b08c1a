package speech

import "strings"

// MaxChunkLen is the default chunk budget in characters. Long inputs are
// synthesized chunk by chunk so playback starts before the whole text is
// rendered.
const MaxChunkLen = 500

// ChunkText splits text into synthesis-sized chunks on sentence
// boundaries. A sentence ends at '.', '!' or '?' followed by a space or
// the end of the text; the delimiter stays with its sentence and the
// following space is consumed. Sentences are greedily packed so each
// chunk stays within maxLen, except that a single oversize sentence is
// passed through whole rather than broken mid-sentence.
func ChunkText(text string, maxLen int) []string {
	if text == "" {
		return nil
	}
	if maxLen <= 0 {
		maxLen = MaxChunkLen
	}
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	current := ""
	for _, sentence := range splitSentences(text) {
		switch {
		case current == "":
			current = sentence
		case len(current)+1+len(sentence) <= maxLen:
			current += " " + sentence
		default:
			chunks = append(chunks, current)
			current = sentence
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// splitSentences cuts text at sentence-ending punctuation followed by a
// space or end of input. The punctuation stays, the separating space
// goes.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		if !isBoundary(text[i]) || (i+1 < len(text) && text[i+1] != ' ') {
			continue
		}
		if s := strings.TrimSpace(text[start : i+1]); s != "" {
			sentences = append(sentences, s)
		}
		if i+1 < len(text) {
			i++ // consume the space
		}
		start = i + 1
	}
	if start < len(text) {
		if s := strings.TrimSpace(text[start:]); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func isBoundary(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}
