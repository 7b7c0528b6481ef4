package dmtp

import (
	"time"

	"github.com/intelcon-group/telematics-core/internal/gps"
	"github.com/intelcon-group/telematics-core/internal/protocol"
	"github.com/intelcon-group/telematics-core/internal/supervisor"
	"github.com/intelcon-group/telematics-core/internal/wireless"
)

// Config holds every setting a Client needs. Use DefaultConfig and the
// With* options to build one; the zero value is not ready to use.
type Config struct {
	URLPrimary   string
	URLSecondary string
	Transport    string // "udp" or "tcp"

	UniqueID []byte
	Account  string
	Device   string

	QueueCapacity int
	QueuePath     string
	QueueOverwrite bool

	DialTimeout time.Duration
	ReadTimeout time.Duration

	GPSSource   gps.Source
	MotionConfig gps.MotionConfig
	EventPriority protocol.Priority

	SupervisorTiming supervisor.Timing
	ProbeTargets     []string
	WatchdogInterval time.Duration
	CommMaxDelay     time.Duration
	Link             wireless.Link

	UpdateExtractDir string

	LogUploadEndpoint string
	LogUploadUsername string
	LogUploadPassword string

	Logger supervisor.Logger
}

// DefaultConfig returns a Config with the same defaults the embedded
// client ships with: a 256-packet queue, normal-priority events, and
// the source's NETWORK_TERMINATE_IDLE/NETWORK_DOWN_IDLE timing.
func DefaultConfig() Config {
	return Config{
		Transport:        "udp",
		QueueCapacity:    256,
		DialTimeout:      15 * time.Second,
		ReadTimeout:      30 * time.Second,
		EventPriority:    protocol.PriorityNormal,
		SupervisorTiming: supervisor.DefaultTiming,
		WatchdogInterval: 30 * time.Second,
		CommMaxDelay:     10 * time.Second,
	}
}

// Option mutates a Config during New.
type Option func(*Config)

// WithServers sets the primary/secondary DMTP server addresses.
func WithServers(primary, secondary string) Option {
	return func(c *Config) { c.URLPrimary = primary; c.URLSecondary = secondary }
}

// WithTransport selects "udp" or "tcp".
func WithTransport(name string) Option {
	return func(c *Config) { c.Transport = name }
}

// WithIdentity sets the unique-ID or account/device identification the
// engine presents at session start.
func WithIdentity(uniqueID []byte, account, device string) Option {
	return func(c *Config) { c.UniqueID = uniqueID; c.Account = account; c.Device = device }
}

// WithQueue configures the durable event queue's capacity, optional
// backing file, and overwrite-oldest behavior.
func WithQueue(capacity int, backingPath string, overwrite bool) Option {
	return func(c *Config) {
		c.QueueCapacity = capacity
		c.QueuePath = backingPath
		c.QueueOverwrite = overwrite
	}
}

// WithGPSSource wires a gps.Source (serial port or remote publisher
// feed) and the motion-derivation thresholds it should drive.
func WithGPSSource(source gps.Source, motion gps.MotionConfig) Option {
	return func(c *Config) { c.GPSSource = source; c.MotionConfig = motion }
}

// WithSupervisor configures the connectivity supervisor's probe
// targets, timing, watchdog interval, and wireless link collaborator.
func WithSupervisor(timing supervisor.Timing, probeTargets []string, watchdogInterval, commMaxDelay time.Duration, link wireless.Link) Option {
	return func(c *Config) {
		c.SupervisorTiming = timing
		c.ProbeTargets = probeTargets
		c.WatchdogInterval = watchdogInterval
		c.CommMaxDelay = commMaxDelay
		c.Link = link
	}
}

// WithUpdate enables the update downloader, extracting verified
// firmware/software archives under extractDir. Without this option, a
// server-pushed UPDATE_URL property is stored but triggers no download.
func WithUpdate(extractDir string) Option {
	return func(c *Config) { c.UpdateExtractDir = extractDir }
}

// WithLogUpload enables shipping the queue's backing log to endpoint
// over HTTPS PUT with HTTP Basic auth. Without this option, the
// supervisor's log uploader collaborator is left unconfigured.
func WithLogUpload(endpoint, username, password string) Option {
	return func(c *Config) {
		c.LogUploadEndpoint = endpoint
		c.LogUploadUsername = username
		c.LogUploadPassword = password
	}
}

// WithLogger sets the logger every collaborator reports through.
// *log.Logger satisfies supervisor.Logger directly; a *zap.SugaredLogger
// needs a thin Printf wrapper (see cmd/telematics-client).
func WithLogger(logger supervisor.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}
