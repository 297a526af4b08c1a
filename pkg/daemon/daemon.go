// Package daemon assembles a voicesmith server process: the MCP tool
// surface an agent drives over stdio, the localhost liveness bridge
// other processes probe over HTTP, the wake loop, and the shared session
// registry entry — together with the shutdown choreography that releases
// all of it in the right order.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/shshalom/voicesmith-mcp/pkg/audio/player"
	"github.com/shshalom/voicesmith-mcp/pkg/audio/portaudio"
	"github.com/shshalom/voicesmith-mcp/pkg/capture"
	"github.com/shshalom/voicesmith-mcp/pkg/config"
	"github.com/shshalom/voicesmith-mcp/pkg/session"
	"github.com/shshalom/voicesmith-mcp/pkg/speech"
	"github.com/shshalom/voicesmith-mcp/pkg/vad"
	"github.com/shshalom/voicesmith-mcp/pkg/voice"
	"github.com/shshalom/voicesmith-mcp/pkg/wake"
	"github.com/shshalom/voicesmith-mcp/pkg/wakeword"
)

// Version is stamped by the build; the MCP handshake and /status report
// it.
var Version = "dev"

// sweepInterval is how often the registry is pruned and the voice
// assignment table flushed back to the config file.
const sweepInterval = time.Minute

// ErrNoCapability means neither speaking nor listening could be brought
// up, so there is nothing to serve.
var ErrNoCapability = errors.New("daemon: no speech capability available")

// Daemon is one voicesmith server process.
type Daemon struct {
	cfg    *config.Config
	log    *slog.Logger
	store  *session.Store
	reg    *session.Registry
	assign *voice.Assignments
	player *player.Player
	sched  *speech.Scheduler
	trans  speech.Transcriber
	rec    *capture.Recorder
	arb    *wake.Arbiter
	hub    *hub

	selfMu  sync.RWMutex
	self    session.Record
	started time.Time

	// capability flags, fixed at construction
	speakOK  bool
	listenOK bool
	wakeErr  error // why no wake model is loaded, nil when one is

	mcpConnected atomic.Bool
	lastTool     atomic.Int64 // unix nanos of the newest tool call

	listenBusy   atomic.Bool
	listenCancel atomic.Value // context.CancelFunc

	audioUp bool // portaudio initialized, terminate on shutdown
}

// New builds a daemon from configuration. Engine failures degrade the
// affected capability instead of failing construction; only a process
// that can neither speak nor listen refuses to start.
func New(cfg *config.Config, log *slog.Logger) (*Daemon, error) {
	if log == nil {
		log = slog.Default()
	}
	d := &Daemon{
		cfg:     cfg,
		log:     log,
		started: time.Now(),
		hub:     newHub(log),
	}

	storePath, err := session.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("daemon: session store path: %w", err)
	}
	d.store = session.NewStore(storePath)
	d.reg = session.NewRegistry(d.store, session.WithLogger(log))
	d.assign = voice.NewAssignments(cfg.Voices, log)

	d.player = player.New(
		player.WithBinary(cfg.TTS.Player),
		player.WithLogger(log),
	)

	if cfg.TTS.BaseURL != "" {
		synth := speech.NewKokoro(cfg.TTS.BaseURL,
			speech.WithModel(cfg.TTS.Model),
			speech.WithAPIKey(cfg.TTS.APIKey),
		)
		d.sched = speech.NewScheduler(synth, d.player,
			speech.WithSchedulerLogger(log))
		d.speakOK = true
	} else {
		d.sched = speech.NewScheduler(nil, d.player,
			speech.WithSchedulerLogger(log))
		log.Warn("no TTS endpoint configured, speak disabled")
	}

	if err := portaudio.Initialize(); err != nil {
		log.Warn("portaudio unavailable, listen disabled", "error", err)
	} else {
		d.audioUp = true
	}
	if cfg.STT.BaseURL != "" && d.audioUp {
		d.trans = speech.NewWhisper(cfg.STT.BaseURL,
			speech.WithModel(cfg.STT.Model),
			speech.WithAPIKey(cfg.STT.APIKey),
			speech.WithLanguage(cfg.STT.Language),
		)
		d.listenOK = true
	} else if cfg.STT.BaseURL == "" {
		log.Warn("no STT endpoint configured, listen disabled")
	}

	if !d.speakOK && !d.listenOK {
		return nil, ErrNoCapability
	}

	open := func(frame time.Duration) (capture.Stream, error) {
		return capture.OpenMic(cfg.STT.DeviceIndex(), frame)
	}
	d.rec = capture.NewRecorder(
		func() (capture.Stream, error) { return open(capture.FrameDuration) },
		d.newDetector(), log)

	var scorer wakeword.Scorer
	if cfg.Wake.ModelParam != "" {
		s, err := wakeword.NewNCNNScorer(cfg.Wake.ModelParam, cfg.Wake.ModelBin)
		if err != nil {
			d.wakeErr = err
			log.Warn("wake model failed to load, wake word disabled", "error", err)
		} else {
			scorer = s
		}
	} else {
		d.wakeErr = wake.ErrNoScorer
	}

	router := wake.NewRouter(d.reg, wake.TmuxSink{}, log)
	d.arb = wake.New(open, scorer, d.newDetector(), d.trans, router,
		wake.WithThreshold(float32(cfg.Wake.Threshold)),
		wake.WithRecordingTimeout(cfg.Wake.RecTimeout()),
		wake.WithNoSpeechTimeout(cfg.Wake.NoSpeech()),
		wake.WithSilence(cfg.STT.Silence()),
		wake.WithCue(func(ctx context.Context) error {
			return d.player.PlayTone(ctx, 880, 150*time.Millisecond)
		}),
		wake.WithNotifier(d.hub.wakeEvent),
		wake.WithLogger(log),
	)

	return d, nil
}

// newDetector builds a VAD instance. The wake loop and the foreground
// recorder each get their own: silero keeps GRU state across frames and
// must not be shared.
func (d *Daemon) newDetector() vad.Detector {
	if d.cfg.STT.VADParam != "" {
		det, err := vad.NewSilero(d.cfg.STT.VADParam, d.cfg.STT.VADBin)
		if err == nil {
			return det
		}
		d.log.Warn("silero VAD failed to load, using energy gate", "error", err)
	}
	return vad.NewEnergy()
}

// Run registers the session, serves MCP over stdio and the bridge over
// HTTP, and blocks until the MCP client disconnects or a termination
// signal arrives. Shutdown releases resources in a fixed order: playback,
// in-flight capture, voice assignments, wake loop, registry entry.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	voiceID, _ := d.assign.Get(d.cfg.Name)
	rec, err := d.reg.Register(ctx, d.cfg.Name, voiceID, d.cfg.HTTPPort, "")
	if err != nil {
		return fmt.Errorf("daemon: register session: %w", err)
	}
	d.setSelf(rec)
	d.lastTool.Store(time.Now().UnixNano())
	if rec.Name != d.cfg.Name {
		// Fallback identity: remember its voice so siblings agree.
		if err := d.assign.Set(rec.Name, rec.Voice); err != nil {
			d.log.Warn("record fallback assignment", "error", err)
		}
	}

	bridge, err := d.startBridge()
	if err != nil {
		d.reg.Unregister()
		return err
	}

	if d.cfg.Wake.Enabled {
		switch {
		case !d.listenOK:
			d.log.Warn("wake word requires the listen capability, not starting")
		default:
			if err := d.arb.Start(); err != nil {
				d.log.Warn("wake loop not started", "error", err)
			}
		}
	}

	sweepDone := make(chan struct{})
	go d.sweep(ctx, sweepDone)

	self := d.Self()
	d.log.Info("voicesmith serving",
		"name", self.Name, "voice", self.Voice, "port", self.Port,
		"speak", d.speakOK, "listen", d.listenOK, "wake", d.wakeErr == nil)

	srv := d.mcpServer()
	d.mcpConnected.Store(true)
	runErr := srv.Run(ctx, &mcp.StdioTransport{})
	d.mcpConnected.Store(false)
	if runErr != nil && ctx.Err() == nil {
		d.log.Error("mcp server exited", "error", runErr)
	}

	d.shutdown(bridge)
	<-sweepDone
	if ctx.Err() != nil {
		return nil // clean exit on signal
	}
	return runErr
}

// shutdown is the ordered teardown: playback first so the speakers go
// quiet, then any capture, then persistence, then the wake loop, then
// the registry entry. The order is part of the external contract.
func (d *Daemon) shutdown(bridge *http.Server) {
	d.sched.Stop()
	d.cancelListen()
	d.persistAssignments()
	d.arb.Stop()
	d.reg.Unregister()

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := bridge.Shutdown(shCtx); err != nil {
		d.log.Warn("bridge shutdown", "error", err)
	}
	if d.audioUp {
		if err := portaudio.Terminate(); err != nil {
			d.log.Warn("portaudio terminate", "error", err)
		}
	}
	d.log.Info("voicesmith stopped", "name", d.Self().Name)
}

// sweep periodically prunes the shared registry and flushes voice
// assignments. Both are best effort; a failed save must never take the
// server down.
func (d *Daemon) sweep(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	tick := time.NewTicker(sweepInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if _, err := d.reg.ListActive(); err != nil {
				d.log.Warn("registry sweep", "error", err)
			}
			d.persistAssignments()
		}
	}
}

func (d *Daemon) persistAssignments() {
	d.cfg.Voices = d.assign.Snapshot()
	if err := d.cfg.Save(); err != nil {
		d.log.Warn("persist voice assignments", "error", err)
	}
}

func (d *Daemon) startBridge() (*http.Server, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", d.Self().Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("daemon: bridge listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: d.bridgeHandler()}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.log.Error("bridge server", "error", err)
		}
	}()
	d.log.Info("bridge listening", "addr", addr)
	return srv, nil
}

// touchTool marks tool activity for the alive-but-abandoned heuristic.
func (d *Daemon) touchTool() {
	d.lastTool.Store(time.Now().UnixNano())
}

func (d *Daemon) lastToolAge() time.Duration {
	return time.Since(time.Unix(0, d.lastTool.Load()))
}

func (d *Daemon) cancelListen() bool {
	if c, ok := d.listenCancel.Load().(context.CancelFunc); ok && c != nil {
		c()
		return d.listenBusy.Load()
	}
	return false
}

// Status is the liveness bridge's GET /status body. The first six fields
// are the cross-process contract the HTTP staleness prober reads.
type Status struct {
	Ready        bool    `json:"ready"`
	Name         string  `json:"name"`
	Port         int     `json:"port"`
	MCPConnected bool    `json:"mcp_connected"`
	UptimeS      float64 `json:"uptime_s"`
	LastToolAgeS float64 `json:"last_tool_call_age_s"`

	PID       int        `json:"pid,omitempty"`
	Voice     string     `json:"voice,omitempty"`
	WakeState wake.State `json:"wake_state"`
	Speaking  bool       `json:"speaking,omitempty"`
	Muted     bool       `json:"muted,omitempty"`
	CanSpeak  bool       `json:"can_speak"`
	CanListen bool       `json:"can_listen"`
	Version   string     `json:"version,omitempty"`
}

// Status reports the daemon's current condition.
func (d *Daemon) Status() Status {
	self := d.Self()
	return Status{
		Ready:        true,
		Name:         self.Name,
		Port:         self.Port,
		MCPConnected: d.mcpConnected.Load(),
		UptimeS:      time.Since(d.started).Seconds(),
		LastToolAgeS: d.lastToolAge().Seconds(),
		PID:          os.Getpid(),
		Voice:        self.Voice,
		WakeState:    d.arb.State(),
		Speaking:     d.sched.Speaking(),
		Muted:        d.arb.Muted(),
		CanSpeak:     d.speakOK,
		CanListen:    d.listenOK,
		Version:      Version,
	}
}
