// Package dmtp is the public facade over the telematics client: wire
// up a *Client from a Config, feed it GPS and application events, and
// let it drain them to a DMTP fleet-management server through
// intermittent connectivity.
package dmtp

import (
	"context"
	"fmt"
	"time"

	"github.com/intelcon-group/telematics-core/internal/engine"
	"github.com/intelcon-group/telematics-core/internal/gps"
	"github.com/intelcon-group/telematics-core/internal/property"
	"github.com/intelcon-group/telematics-core/internal/protocol"
	"github.com/intelcon-group/telematics-core/internal/queue"
	"github.com/intelcon-group/telematics-core/internal/supervisor"
)

// Client owns the event queue, property store, protocol engine, and
// connectivity supervisor for one device identity.
type Client struct {
	cfg   Config
	queue *queue.Queue
	props *property.Store
	eng   *engine.Engine
	sup   *supervisor.Supervisor

	gpsTask *gps.Task
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...interface{}) {}

// New builds a Client from DefaultConfig plus the given options. It does
// not open or restore the queue's backing file, and its error result is
// nil in every case.
func New(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}

	q := &queue.Queue{}
	q.Init(cfg.QueueCapacity)
	q.SetOverwrite(cfg.QueueOverwrite)
	if cfg.QueuePath != "" {
		q.SetBackingPath(cfg.QueuePath)
	}

	props := property.NewStore()
	property.RegisterDefaults(props)

	var sup *supervisor.Supervisor

	var updater *supervisor.Updater
	if cfg.UpdateExtractDir != "" {
		updater = supervisor.NewUpdater(cfg.UpdateExtractDir,
			func() { cfg.Logger.Printf("dmtp: update extracted, reboot pending") },
			func(err error) { cfg.Logger.Printf("dmtp: update failed: %v", err) },
		)
	}

	var uploader supervisor.LogUploader
	if cfg.LogUploadEndpoint != "" {
		uploader = supervisor.NewHTTPLogUploader(cfg.LogUploadEndpoint, cfg.LogUploadUsername, cfg.LogUploadPassword)
	}

	engCfg := engine.Config{
		URLPrimary:   cfg.URLPrimary,
		URLSecondary: cfg.URLSecondary,
		UniqueID:     cfg.UniqueID,
		Account:      cfg.Account,
		Device:       cfg.Device,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		OnLinkDown:   func() { sup.LinkDown() },
		LinkUp:       func(ctx context.Context) error { return sup.LinkUp(ctx) },
		Logger:       cfg.Logger,
	}
	eng := engine.New(engCfg, q, props)

	supCfg := supervisor.Config{
		Timing:           cfg.SupervisorTiming,
		ProbeTargets:     cfg.ProbeTargets,
		WatchdogInterval: cfg.WatchdogInterval,
		CommMaxDelay:     cfg.CommMaxDelay,
		Transport:        cfg.Transport,
		LogPath:          cfg.QueuePath,
		Logger:           cfg.Logger,
	}
	sup = supervisor.New(supCfg, eng, q, updater, uploader, props, cfg.Link)

	c := &Client{cfg: cfg, queue: q, props: props, eng: eng, sup: sup}

	if cfg.GPSSource != nil {
		last := &gps.LastFix{}
		sink := gps.NewQueueSink(q, cfg.EventPriority)
		motion := gps.NewMotionTracker(cfg.MotionConfig, sink)
		onClock := func(serverTime, localTime time.Time) {
			eng.AdjustClock(serverTime, localTime)
		}
		c.gpsTask = gps.NewTask(cfg.GPSSource, last, motion, onClock)
		if v, ok := props.Get(property.GPSClockDelta); ok && v.Kind == property.KindU32 {
			c.gpsTask.ClockDeltaThreshold = time.Duration(v.U32) * time.Second
		}
		if v, ok := props.Get(property.GPSExpiration); ok && v.Kind == property.KindU32 {
			c.gpsTask.ExpirationThreshold = time.Duration(v.U32) * time.Second
		}
		if v, ok := props.Get(property.GPSPowerSaving); ok && v.Kind == property.KindU32 && v.U32 != 0 {
			c.gpsTask.PowerSavingEnabled = true
		}
		if v, ok := props.Get(property.GPSPowerSavingCycle); ok && v.Kind == property.KindU32 {
			c.gpsTask.PowerSavingCycle = time.Duration(v.U32) * time.Second
		}
		if v, ok := props.Get(property.GPSPowerSavingWake); ok && v.Kind == property.KindU32 {
			c.gpsTask.PowerSavingWakeSamples = int(v.U32)
		}
	}

	return c, nil
}

// Properties exposes the device property store for remote-configuration
// wiring (SetProperty handling lives in internal/parser; callers that
// need to read or watch properties directly use this accessor).
func (c *Client) Properties() *property.Store { return c.props }

// Enqueue queues an application event at priority, wrapping the
// queue's overflow error in the package's typed error hierarchy.
func (c *Client) Enqueue(headerType uint16, priority protocol.Priority, data []byte, formatSpec uint16) error {
	if err := c.queue.Enqueue(queue.NewPacket(headerType, priority, data, formatSpec)); err != nil {
		return &QueueOverflowError{Err: err}
	}
	return nil
}

// State reports the connectivity supervisor's current state.
func (c *Client) State() supervisor.State { return c.sup.State() }

// Run starts the GPS task (if configured) and the connectivity
// supervisor, blocking until ctx is canceled or the supervisor stops.
func (c *Client) Run(ctx context.Context) error {
	if c.gpsTask != nil {
		go func() {
			if err := c.gpsTask.Run(); err != nil {
				c.cfg.Logger.Printf("dmtp: gps task stopped: %v", err)
			}
		}()
	}

	if err := c.sup.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("dmtp: supervisor stopped: %w", err)
	}
	return nil
}

// Shutdown requests a graceful teardown; Run returns once every
// managed goroutine has observed it.
func (c *Client) Shutdown() { c.sup.Shutdown() }
