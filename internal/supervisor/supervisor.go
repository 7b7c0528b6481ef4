package supervisor

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/intelcon-group/telematics-core/internal/engine"
	"github.com/intelcon-group/telematics-core/internal/property"
	"github.com/intelcon-group/telematics-core/internal/protocol"
	"github.com/intelcon-group/telematics-core/internal/queue"
	"github.com/intelcon-group/telematics-core/internal/wireless"
)

// Logger is the minimal surface the supervisor needs to report
// activity; *log.Logger satisfies it directly, and a *zap.SugaredLogger
// does too once wrapped to expose Printf (see cmd/telematics-client).
type Logger interface {
	Printf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...interface{}) {}

// Config configures a Supervisor.
type Config struct {
	Timing Timing

	// ProbeTargets are the DNS nameservers (or any reachable host) the
	// Checking state probes against; a transition back to Up requires a
	// successful probe against each one.
	ProbeTargets []string
	ProbeTimeout time.Duration

	WatchdogInterval time.Duration
	CommMaxDelay     time.Duration

	Transport string // "udp" or "tcp", passed through to engine.Run

	// LogPath is the file TriggerLogUpload ships when a server asks for
	// it via LOG_UPLOAD_TRIGGER. Empty disables the property watch even
	// if an uploader is configured.
	LogPath string

	Logger Logger
}

// Supervisor owns the connectivity state machine, the watchdog, the
// update downloader, and the log uploader, and gates a protocol engine
// on the state machine's Up state.
type Supervisor struct {
	cfg Config

	sm *Machine
	wd *Watchdog

	queue *queue.Queue
	eng   *engine.Engine

	updater  *Updater
	uploader LogUploader
	props    *property.Store
	link     wireless.Link

	diagSeq uint32

	rebootRequested atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New assembles a Supervisor around an already-configured engine and
// queue. updater/uploader/props/link may be nil if those collaborators
// are not wired for this build; a nil props disables the update-property
// watch since there is nowhere to read UPDATE_URL/UPDATE_MD5 from, and a
// nil link defaults to wireless.NullLink (always considered up).
func New(cfg Config, eng *engine.Engine, q *queue.Queue, updater *Updater, uploader LogUploader, props *property.Store, link wireless.Link) *Supervisor {
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.Transport == "" {
		cfg.Transport = "udp"
	}
	if link == nil {
		link = wireless.NullLink{}
	}

	s := &Supervisor{
		cfg:      cfg,
		queue:    q,
		eng:      eng,
		updater:  updater,
		uploader: uploader,
		props:    props,
		link:     link,
		cancel:   func() {},
	}
	s.sm = NewMachine(cfg.Timing, s.onTransition)
	s.wd = NewWatchdog(cfg.WatchdogInterval, cfg.CommMaxDelay, s.onReboot)
	s.wd.RegisterCallback("network-monitor", 3, s.networkMonitorStalled)

	if props != nil && updater != nil {
		_ = props.Subscribe(property.UpdateURL, func(key uint16, old, newVal property.Value) {
			req, ok := updateRequestFromProps(props)
			if !ok {
				return
			}
			go s.TriggerUpdate(context.Background(), req)
		})
	}
	if props != nil && uploader != nil && cfg.LogPath != "" {
		_ = props.Subscribe(property.LogUploadTrigger, func(key uint16, old, newVal property.Value) {
			if newVal.U32 == 0 {
				return
			}
			go s.TriggerLogUpload(context.Background())
		})
	}
	return s
}

// State reports the supervisor's current connectivity state.
func (s *Supervisor) State() State { return s.sm.Current() }

// LinkUp implements engine.Config.LinkUp: it blocks until the
// connectivity state machine reaches Up.
func (s *Supervisor) LinkUp(ctx context.Context) error {
	return s.sm.Await(ctx, StateUp)
}

// NoteRoundTrip forwards a successful protocol round trip to the
// watchdog, resetting the protocol stall clock. engine.Config has no
// round-trip hook, so nothing calls this automatically; until it is
// first called, the protocol stall check stays inactive.
func (s *Supervisor) NoteRoundTrip() {
	s.wd.NoteRoundTrip(time.Now())
}

// Run brings the link up and then runs the state loop, watchdog, and
// (if non-nil) the gated protocol engine until ctx is canceled or
// Terminate is called. Every task is managed by an errgroup.Group so
// the first failure cancels the others.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	if err := s.link.Up(ctx); err != nil {
		cancel()
		return fmt.Errorf("supervisor: bring up wireless link: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.wd.Run(gctx)
	})

	g.Go(func() error {
		return s.runStateLoop(gctx)
	})

	if s.eng != nil {
		g.Go(func() error {
			return s.eng.Run(gctx, s.cfg.Transport)
		})
	}

	s.sm.LinkEstablished()

	err := g.Wait()
	s.sm.Terminate()
	return err
}

// runStateLoop drives Checking→Up/Down, Down→Rebuilding, and
// Rebuilding→Up/Down transitions. Entry into Checking comes from
// outside (LinkDown, the engine's OnLinkDown hook); this loop runs the
// probe while Checking or Rebuilding and reports the result, and owns
// the passage of time for the Down idle wait.
func (s *Supervisor) runStateLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		switch s.sm.Current() {
		case StateChecking:
			if s.probe(ctx) {
				s.sm.ProbeSucceeded()
			} else {
				s.sm.ProbeFailed()
			}
			if !s.sleep(ctx, s.cfg.ProbeTimeout) {
				return ctx.Err()
			}

		case StateDown:
			if !s.sleep(ctx, s.sm.NextIdle()) {
				return ctx.Err()
			}
			s.sm.IdleElapsed()

		case StateRebuilding:
			if s.probe(ctx) {
				s.sm.ProbeSucceeded()
			} else {
				s.sm.ReconnectFailed()
			}

		case StateTerminating:
			return nil

		default:
			if !s.sleep(ctx, 500*time.Millisecond) {
				return ctx.Err()
			}
		}
	}
}

func (s *Supervisor) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// probe dials every configured nameserver/host, reporting success only
// if all of them answer within ProbeTimeout.
func (s *Supervisor) probe(ctx context.Context) bool {
	if len(s.cfg.ProbeTargets) == 0 {
		return true
	}
	d := net.Dialer{Timeout: s.cfg.ProbeTimeout}
	for _, target := range s.cfg.ProbeTargets {
		conn, err := d.DialContext(ctx, "tcp", target)
		if err != nil {
			return false
		}
		conn.Close()
	}
	return true
}

// LinkDown is the engine's OnLinkDown hook: URL rotation has exhausted
// MaxURLSwaps, so the protocol layer has given up and the supervisor
// takes over.
func (s *Supervisor) LinkDown() {
	s.sm.ReportTimeout()
}

func (s *Supervisor) onTransition(from, to State) {
	s.cfg.Logger.Printf("supervisor: %s -> %s", from, to)
	switch {
	case to == StateDown:
		s.emitDiagnostic(protocol.StatusCnnctDown, 0)
	case from == StateDown && to == StateRebuilding:
		s.emitDiagnostic(protocol.StatusCellDown, s.sm.Outage())
		if err := s.link.Down(context.Background()); err != nil {
			s.cfg.Logger.Printf("supervisor: wireless link down failed: %v", err)
		}
		if err := s.link.Up(context.Background()); err != nil {
			s.cfg.Logger.Printf("supervisor: wireless link reconnect failed: %v", err)
		}
	case to == StateUp && (from == StateRebuilding || from == StateChecking):
		s.emitDiagnostic(protocol.StatusCnnctRebuilt, s.sm.Outage())
	case to == StateTerminating:
		if err := s.link.Terminate(context.Background()); err != nil {
			s.cfg.Logger.Printf("supervisor: wireless link terminate failed: %v", err)
		}
		s.mu.Lock()
		cancel := s.cancel
		s.mu.Unlock()
		cancel()
	}
}

func (s *Supervisor) networkMonitorStalled() bool {
	return s.sm.Current() == StateDown || s.sm.Current() == StateChecking
}

func (s *Supervisor) onReboot(reason string) {
	s.rebootRequested.Store(true)
	s.cfg.Logger.Printf("supervisor: reboot requested: %s", reason)
	s.emitDiagnostic(protocol.StatusLibStuck, 0)
	s.sm.Terminate()
}

// RebootRequested reports whether the watchdog has asked for a reboot.
func (s *Supervisor) RebootRequested() bool { return s.rebootRequested.Load() }

// Shutdown requests a graceful teardown from any state: shutdown
// signal, update trigger, or scheduled reboot all route through here.
func (s *Supervisor) Shutdown() {
	s.sm.Terminate()
}

// TriggerUpdate hands an update request (decoded from a SetProperty
// command carrying UPDATE_URL/UPDATE_MD5) to the updater collaborator.
// It runs synchronously in the caller's goroutine; callers that want it
// backgrounded should launch it themselves.
func (s *Supervisor) TriggerUpdate(ctx context.Context, req UpdateRequest) {
	if s.updater == nil {
		s.cfg.Logger.Printf("supervisor: update requested but no updater is configured")
		return
	}
	s.updater.Run(ctx, req)
}

// TriggerLogUpload ships cfg.LogPath through the configured uploader.
// It runs synchronously in the caller's goroutine; callers that want
// it backgrounded should launch it themselves.
func (s *Supervisor) TriggerLogUpload(ctx context.Context) {
	if s.uploader == nil || s.cfg.LogPath == "" {
		s.cfg.Logger.Printf("supervisor: log upload requested but no uploader is configured")
		return
	}
	if err := s.uploader.UploadLogs(ctx, s.cfg.LogPath); err != nil {
		s.cfg.Logger.Printf("supervisor: log upload failed: %v", err)
	}
}

func (s *Supervisor) emitDiagnostic(status protocol.DiagnosticStatus, outage time.Duration) {
	if s.queue == nil {
		return
	}
	var payload []byte
	if outage > 0 {
		payload = []byte(fmt.Sprintf("outage=%ds", int(outage.Seconds())))
	}
	seq := uint8(atomic.AddUint32(&s.diagSeq, 1))
	body := protocol.BuildEventPayload(status, time.Now(), payload, seq)
	_ = s.queue.Enqueue(queue.NewPacket(0, protocol.PriorityHigh, body, 0))
}

// updateRequestFromProps reads the UPDATE_* property keys and, if a URL
// is present, builds an UpdateRequest for TriggerUpdate.
func updateRequestFromProps(props *property.Store) (UpdateRequest, bool) {
	urlVal, ok := props.Get(property.UpdateURL)
	if !ok || len(urlVal.Bytes) == 0 {
		return UpdateRequest{}, false
	}
	md5Val, _ := props.Get(property.UpdateMD5)
	userVal, _ := props.Get(property.UpdateAuthUser)
	passVal, _ := props.Get(property.UpdateAuthPass)
	return UpdateRequest{
		URL:      string(urlVal.Bytes),
		MD5:      string(md5Val.Bytes),
		Username: string(userVal.Bytes),
		Password: string(passVal.Bytes),
	}, true
}
