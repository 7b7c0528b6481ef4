package gps

import (
	"encoding/binary"
	"math"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

// ClockSyncFunc is invoked whenever a fresh RMC sentence's UTC time
// differs from the local clock by more than the configured threshold.
type ClockSyncFunc func(serverTime, localTime time.Time)

// tickInterval drives the Dormant and GPS_EXPIRATION checks independent
// of whatever rate sentences happen to arrive at.
const tickInterval = time.Second

// Task owns the GPS source, the assembling Fix, and the derived-event
// pipeline. It is the sole writer of LastFix.
type Task struct {
	Source  Source
	Last    *LastFix
	Motion  *MotionTracker
	OnClock ClockSyncFunc

	// ClockDeltaThreshold is GPS_CLOCK_DELTA: how far the RMC-derived
	// UTC time may drift from the local clock before OnClock fires.
	ClockDeltaThreshold time.Duration

	// ExpirationThreshold is GPS_EXPIRATION: how long the last fix may
	// go without a fresh valid RMC before it is invalidated and GPS_LOST
	// fires. Zero disables expiration checking.
	ExpirationThreshold time.Duration

	// PowerSavingEnabled mirrors GPS_POWER_SAVING: once a fix locks (or
	// PowerSavingWakeSamples dead ticks pass without one), the GPS is
	// closed for PowerSavingCycle before reopening.
	PowerSavingEnabled     bool
	PowerSavingCycle       time.Duration
	PowerSavingWakeSamples int

	building Fix
	now      func() time.Time
	sleep    func(time.Duration)
}

// NewTask wires a Task around source and shared state. last and motion
// must not be nil; onClock may be nil if clock sync is not wanted.
func NewTask(source Source, last *LastFix, motion *MotionTracker, onClock ClockSyncFunc) *Task {
	return &Task{
		Source:                 source,
		Last:                   last,
		Motion:                 motion,
		OnClock:                onClock,
		ClockDeltaThreshold:    30 * time.Second,
		PowerSavingCycle:       300 * time.Second,
		PowerSavingWakeSamples: 5,
		now:                    time.Now,
		sleep:                  time.Sleep,
	}
}

// Run reads sentences from Source, deriving and publishing fixes, until
// the source reports a fatal error. GPS_EXPIRATION and Dormant are
// checked on an independent tick so silence alone can still surface
// them. When PowerSavingEnabled, an awake window ends as soon as a fix
// locks or PowerSavingWakeSamples dead ticks pass, after which the GPS
// is closed for the remainder of PowerSavingCycle and reopened with a
// cold-start initialization message.
func (t *Task) Run() error {
	for {
		wokeAt := t.now()
		if err := t.Source.Open(); err != nil {
			return err
		}

		_, err := t.runAwake()
		t.Flush()
		t.Source.Close()
		if err != nil {
			return err
		}
		if !t.PowerSavingEnabled {
			return nil
		}

		remaining := t.PowerSavingCycle - t.now().Sub(wokeAt)
		if remaining > 0 {
			t.sleep(remaining)
		}
		t.sendInit()
	}
}

// runAwake reads sentences until a fatal source error, a locked fix (if
// power-saving is on), or PowerSavingWakeSamples dead ticks elapse.
func (t *Task) runAwake() (gotFix bool, err error) {
	lines := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		for {
			line, rerr := t.Source.ReadSentence()
			if rerr != nil {
				errs <- rerr
				return
			}
			lines <- line
		}
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	deadTicks := 0
	for {
		select {
		case line := <-lines:
			wasValid := t.building.Valid()
			t.Feed(line)
			deadTicks = 0
			if t.PowerSavingEnabled && !wasValid && t.building.Valid() {
				return true, nil
			}

		case now := <-ticker.C:
			t.tick(now)
			if t.PowerSavingEnabled && t.PowerSavingWakeSamples > 0 {
				deadTicks++
				if deadTicks >= t.PowerSavingWakeSamples {
					return false, nil
				}
			}

		case rerr := <-errs:
			return false, rerr
		}
	}
}

// tick runs the checks that depend on wall-clock time passing rather
// than on a sentence arriving: GPS_EXPIRATION fix staleness and the
// dormant-tick cadence.
func (t *Task) tick(now time.Time) {
	if t.ExpirationThreshold > 0 {
		if fix, ok := t.Last.Snapshot(); ok && now.Sub(fix.AcquiredAt) > t.ExpirationThreshold {
			t.Last.Invalidate()
			if t.Motion != nil {
				t.Motion.ExpireLost(now)
			}
		}
	}
	if t.Motion != nil {
		t.Motion.Dormant(now)
	}
}

// Feed parses one NMEA line and folds it into the fix under assembly,
// publishing it to Last (and running motion derivation) whenever a new
// RMC sentence starts a fresh cycle.
func (t *Task) Feed(line string) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.HasPrefix(line, "$") {
		return
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return
	}

	now := t.now()

	switch sentence.DataType() {
	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)
		if t.building.NMEABits != 0 {
			t.publish(now)
		}
		t.building = Fix{AcquiredAt: now}
		if m.Validity == "A" {
			t.building.Latitude = m.Latitude
			t.building.Longitude = m.Longitude
			t.building.Speed = m.Speed * knotsToMPS
			t.building.Heading = m.Course
			t.building.Fixtime = rmcUTC(m)
			t.building.NMEABits |= BitRMC
			t.checkClockSync(t.building.Fixtime, now)
		}

	case nmea.TypeGGA:
		m := sentence.(nmea.GGA)
		t.building.Altitude = m.Altitude
		t.building.HDOP = m.HDOP
		t.building.NMEABits |= BitGGA
		if m.FixQuality == 0 && t.Motion != nil {
			t.Motion.ObserveLost(now)
		}

	case nmea.TypeGSA:
		m := sentence.(nmea.GSA)
		t.building.PDOP = m.PDOP
		t.building.HDOP = m.HDOP
		t.building.VDOP = m.VDOP
		t.building.FixType = fixTypeFromGSA(m.FixType)
		t.building.NMEABits |= BitGSA
	}
}

// publish snapshots the fix under assembly into Last and runs motion
// derivation against it.
func (t *Task) publish(now time.Time) {
	fix := t.building
	t.Last.Store(fix)
	if t.Motion != nil && fix.Valid() {
		t.Motion.Observe(fix, now)
	}
}

// Flush publishes whatever fix is currently under assembly, used when
// the source is about to go quiet (e.g. entering power-save).
func (t *Task) Flush() {
	if t.building.NMEABits == 0 {
		return
	}
	t.publish(t.now())
	t.building = Fix{}
}

// sendInit announces the last known fix to a Source that implements
// Initializer, so a receiver coming back from a cold GPS chip can lock
// faster: last position, altitude, GPS week number, and time-of-week.
func (t *Task) sendInit() {
	initializer, ok := t.Source.(Initializer)
	if !ok {
		return
	}
	fix, ok := t.Last.Snapshot()
	if !ok {
		return
	}
	week, tow := gpsWeekAndTOW(t.now())

	msg := make([]byte, 0, 30)
	msg = appendFloat64BE(msg, fix.Latitude)
	msg = appendFloat64BE(msg, fix.Longitude)
	msg = appendFloat64BE(msg, fix.Altitude)
	msg = appendUint16BE(msg, week)
	msg = appendUint32BE(msg, tow)

	_ = initializer.SendInit(msg)
}

func (t *Task) checkClockSync(serverTime, localTime time.Time) {
	if t.OnClock == nil || serverTime.IsZero() {
		return
	}
	delta := serverTime.Sub(localTime)
	if delta < 0 {
		delta = -delta
	}
	if delta > t.ClockDeltaThreshold {
		t.OnClock(serverTime, localTime)
	}
}

const knotsToMPS = 0.514444

// gpsEpoch is the start of GPS week 0.
var gpsEpoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

// gpsWeekAndTOW derives the GPS week number and milliseconds-of-week
// (time-of-week) a cold receiver's almanac search uses to narrow down
// satellite visibility.
func gpsWeekAndTOW(t time.Time) (week uint16, towMillis uint32) {
	elapsed := t.UTC().Sub(gpsEpoch)
	if elapsed < 0 {
		return 0, 0
	}
	const weekDuration = 7 * 24 * time.Hour
	w := elapsed / weekDuration
	tow := elapsed % weekDuration
	return uint16(w), uint32(tow.Milliseconds())
}

func appendFloat64BE(b []byte, v float64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(v))
	return append(b, buf[:]...)
}

func appendUint16BE(b []byte, v uint16) []byte {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	return append(b, buf[:]...)
}

func appendUint32BE(b []byte, v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return append(b, buf[:]...)
}

func rmcUTC(m nmea.RMC) time.Time {
	d := m.Date
	tm := m.Time
	return time.Date(2000+int(d.YY), time.Month(d.MM), int(d.DD), tm.Hour, tm.Minute, tm.Second, tm.Millisecond*1_000_000, time.UTC)
}

func fixTypeFromGSA(mode string) FixType {
	switch mode {
	case "2":
		return Fix2D
	case "3":
		return Fix3D
	default:
		return FixNone
	}
}
