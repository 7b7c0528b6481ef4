// Package engine drives one DMTP client session end to end: open a
// transport, identify, drain the event queue in blocks, interpret the
// server's response packets, and react to NAKs, checksum failures, and
// URL exhaustion the way the wire protocol prescribes. It sits above
// internal/queue, internal/parser, and internal/protocol rather than
// inside any of them, since both queue and parser already import
// protocol and an engine living there would cycle back through them.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/intelcon-group/telematics-core/internal/parser"
	"github.com/intelcon-group/telematics-core/internal/property"
	"github.com/intelcon-group/telematics-core/internal/protocol"
	"github.com/intelcon-group/telematics-core/internal/queue"
)

// Logger is the minimal surface the engine needs to report activity.
// *log.Logger satisfies it directly; a *zap.SugaredLogger needs a thin
// wrapper exposing Printf (see cmd/telematics-client).
type Logger interface {
	Printf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...interface{}) {}

// defaultFormatIndex selects which DMTSP-Format-N packet type a queued
// event is framed under when the packet does not name its own header
// type. Multi-format devices would extend this to a per-packet field.
const defaultFormatIndex uint8 = 3

// defaultMaxEventsPerBlock bounds how many queued packets one block offers
// before waiting for an ACK, keeping a single UDP datagram or TCP write
// within a sane size.
const defaultMaxEventsPerBlock = 16

// Config configures an Engine. URLPrimary and URLSecondary are
// "host:port" pairs; the engine alternates between them on repeated
// connection or severe-error failures.
type Config struct {
	URLPrimary   string
	URLSecondary string

	UniqueID []byte
	Account  string
	Device   string

	DialTimeout       time.Duration
	ReadTimeout       time.Duration
	MinXmitRate       time.Duration
	MaxXmitRate       time.Duration
	MaxEventsPerBlock int

	// OnLinkDown is called once MaxURLSwaps consecutive rotations (after
	// a failed open or a severe session error) have passed without a
	// successful session, signaling the connectivity supervisor
	// to take over (restart the modem, try another bearer, ...).
	OnLinkDown func()

	// LinkUp, when set, is called at the start of every loop iteration
	// and must block until the connectivity supervisor considers the
	// wireless link usable (or ctx is canceled). This is how the
	// supervisor gates protocol activity on link state without the
	// engine knowing anything about modems or DNS probes.
	LinkUp func(ctx context.Context) error

	// FileSink receives FileUpload blocks as the server streams them in,
	// if set. When nil, FileUpload blocks are discarded; pkg/dmtp leaves
	// it nil, and the supervisor's Updater does not consume these blocks.
	FileSink func(blockIndex uint16, final bool, data []byte)

	// SetSystemClock applies a server-supplied time to the device's
	// real-time clock. Left nil on platforms where the embedded client
	// has no business stepping the host clock; the delta is still
	// applied to the queue either way.
	SetSystemClock func(time.Time) error

	Logger Logger
}

// Engine runs sessions against a DMTP server, draining an
// *queue.Queue and dispatching server responses through a
// *parser.Registry.
type Engine struct {
	cfg      Config
	queue    *queue.Queue
	props    *property.Store
	registry *parser.Registry

	identitySent bool
	identMode    protocol.IdentificationMode

	usePrimary bool
	urlSwaps   int

	clock           protocol.ClockSync
	clockNeedAdjust bool

	wake chan struct{}
}

// New returns an Engine ready to run sessions for q against the server
// named by cfg. props may be nil if the device exposes no remotely
// configurable properties.
func New(cfg Config, q *queue.Queue, props *property.Store) *Engine {
	if cfg.MaxEventsPerBlock <= 0 {
		cfg.MaxEventsPerBlock = defaultMaxEventsPerBlock
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}
	identMode := protocol.IdentifyUnique
	if cfg.Account != "" || cfg.Device != "" {
		identMode = protocol.IdentifyAccountDevice
	}
	return &Engine{
		cfg:        cfg,
		queue:      q,
		props:      props,
		registry:   parser.NewDefaultRegistry(),
		identMode:  identMode,
		usePrimary: true,
		wake:       make(chan struct{}, 1),
	}
}

// Wake nudges a blocked Run loop to start a session immediately, used
// by producers enqueuing a high-priority event and by an on-demand
// report request.
func (e *Engine) Wake() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// currentURL returns the address the next session should dial.
func (e *Engine) currentURL() string {
	if e.usePrimary {
		return e.cfg.URLPrimary
	}
	return e.cfg.URLSecondary
}

// rotateURL swaps to the other configured URL and reports whether
// MaxURLSwaps consecutive rotations have now been exhausted.
func (e *Engine) rotateURL() (exhausted bool) {
	e.usePrimary = !e.usePrimary
	e.urlSwaps++
	return e.urlSwaps >= protocol.MaxURLSwaps
}

func (e *Engine) resetURLSwaps() {
	e.urlSwaps = 0
}

// clockDeltaThreshold is GPS_CLOCK_DELTA, the shared threshold a clock
// jump (from either the server's EOT or the GPS's RMC time) must exceed
// before AdjustClock runs.
func (e *Engine) clockDeltaThreshold() time.Duration {
	if e.props != nil {
		if v, ok := e.props.Get(property.GPSClockDelta); ok && v.Kind == property.KindU32 {
			return time.Duration(v.U32) * time.Second
		}
	}
	return 30 * time.Second
}

// AdjustClock applies a clock jump observed between serverTime and
// localTime: it sets clock_need_adjust, steps the system clock through
// cfg.SetSystemClock if configured, rewrites every queued packet's
// embedded fixtime, and clears clock_need_adjust once done, the one-
// shot flag dependent readers consume. It returns the delta applied.
func (e *Engine) AdjustClock(serverTime, localTime time.Time) time.Duration {
	e.clockNeedAdjust = true
	e.clock.Apply(serverTime, localTime)
	delta := e.clock.Delta()

	if e.cfg.SetSystemClock != nil {
		if err := e.cfg.SetSystemClock(serverTime); err != nil {
			e.cfg.Logger.Printf("engine: set system clock: %v", err)
		}
	}
	e.queue.UpdateTimestamps(delta)
	e.clockNeedAdjust = false

	e.cfg.Logger.Printf("engine: clock adjusted by %s (server=%s local=%s)", delta, serverTime, localTime)
	return delta
}

// Run loops sessions against the server until ctx is canceled. When a
// session ends with unsent packets still queued, the next one starts
// at once; otherwise Run waits MaxXmitRate (MinXmitRate, or one second,
// when MaxXmitRate is unset) or until Wake() is called.
func (e *Engine) Run(ctx context.Context, transportName string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if e.cfg.LinkUp != nil {
			if err := e.cfg.LinkUp(ctx); err != nil {
				return err
			}
		}

		if err := e.runOnce(ctx, transportName); err != nil {
			e.cfg.Logger.Printf("engine: session ended: %v", err)
		}

		if e.queue.HasUnsent() {
			continue
		}

		wait := e.cfg.MinXmitRate
		if wait <= 0 {
			wait = time.Second
		}
		maxWait := e.cfg.MaxXmitRate
		if maxWait <= 0 {
			maxWait = wait
		}

		timer := time.NewTimer(maxWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-e.wake:
			timer.Stop()
		case <-timer.C:
		}

		_ = e.queue.PreserveAll()
	}
}

// runOnce opens one transport connection and runs a full session over
// it if the open succeeds, rotating URLs when the open fails or the
// session ends with a severe error.
func (e *Engine) runOnce(ctx context.Context, transportName string) error {
	var transport protocol.Transport
	switch transportName {
	case "tcp":
		transport = protocol.NewTCPTransport()
	default:
		transport = protocol.NewUDPTransport()
		transportName = "udp"
	}

	if err := transport.Open(e.currentURL(), e.cfg.DialTimeout); err != nil {
		if exhausted := e.rotateURL(); exhausted {
			e.resetURLSwaps()
			if e.cfg.OnLinkDown != nil {
				e.cfg.OnLinkDown()
			}
		}
		return fmt.Errorf("engine: open %s: %w", transportName, err)
	}
	defer transport.Close()

	// Overwrite is disabled for the life of a session so a full queue
	// cannot drop a packet the session still intends to retransmit; any
	// packet still marked SENT but never acknowledged is handed back to
	// the unsent pool once the session ends.
	e.queue.SetOverwrite(false)
	defer func() {
		e.queue.ClearUnacknowledgedSent()
		e.queue.SetOverwrite(true)
	}()

	err := e.runSession(ctx, transport, transportName)
	if err == nil {
		e.resetURLSwaps()
	} else if _, severe := err.(errSevere); severe {
		if exhausted := e.rotateURL(); exhausted {
			e.resetURLSwaps()
			if e.cfg.OnLinkDown != nil {
				e.cfg.OnLinkDown()
			}
		}
	}
	return err
}
