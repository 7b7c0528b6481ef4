package property

// Essential configuration keys. Values are arbitrary but stable 16-bit
// identifiers grouped by subsystem so a hex dump of a cache file sorts
// into readable blocks.
const (
	CfgGPSPort  uint16 = 0x0001
	CfgGPSBPS   uint16 = 0x0002
	CfgGPSModel uint16 = 0x0003

	GPSSampleRate     uint16 = 0x0010
	GPSDistanceDelta  uint16 = 0x0011
	GPSExpiration     uint16 = 0x0012
	GPSMinSpeed       uint16 = 0x0013
	GPSClockDelta     uint16 = 0x0014
	GPSPowerSaving    uint16 = 0x0015
	GPSPowerSavingCycle uint16 = 0x0016
	GPSPowerSavingWake  uint16 = 0x0017

	CommHost         uint16 = 0x0020
	CommPort         uint16 = 0x0021
	CommMinXmitRate  uint16 = 0x0022
	CommMaxXmitRate  uint16 = 0x0023
	CommMaxDelay     uint16 = 0x0024
	CommPowerSaving  uint16 = 0x0025
	CommMTU          uint16 = 0x0026
	CommEncodings    uint16 = 0x0027

	MotionStart         uint16 = 0x0030
	MotionStop          uint16 = 0x0031
	MotionStartType     uint16 = 0x0032
	MotionStopType      uint16 = 0x0033
	MotionExcessSpeed   uint16 = 0x0034
	MotionInMotion      uint16 = 0x0035
	MotionDormantIntrvl uint16 = 0x0036
	MotionDormantCount  uint16 = 0x0037

	StateDiagnostic    uint16 = 0x0040
	StateProtocol      uint16 = 0x0041
	StateBootupReport  uint16 = 0x0042

	UpdateURL    uint16 = 0x0050
	UpdateMD5    uint16 = 0x0051
	UpdateAuthUser uint16 = 0x0052
	UpdateAuthPass uint16 = 0x0053

	LogUploadTrigger uint16 = 0x0060
)

// RegisterDefaults declares every essential key with its factory
// default, wiring the defaults a fresh device would boot with before
// any cache file is loaded.
func RegisterDefaults(s *Store) {
	s.Register(CfgGPSPort, "CFG_GPS_PORT", KindBytes, false, true, BytesValue([]byte("/dev/ttyUSB0")))
	s.Register(CfgGPSBPS, "CFG_GPS_BPS", KindU32, false, true, U32Value(4800))
	s.Register(CfgGPSModel, "CFG_GPS_MODEL", KindBytes, false, true, BytesValue([]byte("generic-nmea")))

	s.Register(GPSSampleRate, "GPS_SAMPLE_RATE", KindU32, false, true, U32Value(10))
	s.Register(GPSDistanceDelta, "GPS_DISTANCE_DELTA", KindF64, false, true, F64Value(100.0))
	s.Register(GPSExpiration, "GPS_EXPIRATION", KindU32, false, true, U32Value(60))
	s.Register(GPSMinSpeed, "GPS_MIN_SPEED", KindF64, false, true, F64Value(2.0))
	s.Register(GPSClockDelta, "GPS_CLOCK_DELTA", KindU32, false, true, U32Value(30))
	s.Register(GPSPowerSaving, "GPS_POWER_SAVING", KindU32, false, true, U32Value(0))
	s.Register(GPSPowerSavingCycle, "GPS_POWER_SAVING_CYCLE", KindU32, false, true, U32Value(300))
	s.Register(GPSPowerSavingWake, "GPS_POWER_SAVING_WAKE_PERIOD", KindU32, false, true, U32Value(5))

	s.Register(CommHost, "COMM_HOST", KindBytes, false, true, BytesValue([]byte("")))
	s.Register(CommPort, "COMM_PORT", KindU32, false, true, U32Value(31000))
	s.Register(CommMinXmitRate, "COMM_MIN_XMIT_RATE", KindU32, false, true, U32Value(300))
	s.Register(CommMaxXmitRate, "COMM_MAX_XMIT_RATE", KindU32, false, true, U32Value(3600))
	s.Register(CommMaxDelay, "COMM_MAX_DELAY", KindU32, false, true, U32Value(10))
	s.Register(CommPowerSaving, "COMM_POWER_SAVING", KindU32, false, true, U32Value(0))
	s.Register(CommMTU, "COMM_MTU", KindU32, false, true, U32Value(512))
	s.Register(CommEncodings, "COMM_ENCODINGS", KindU32, false, true, U32Value(0x0F))

	s.Register(MotionStart, "MOTION_START", KindF64, false, true, F64Value(5.0))
	s.Register(MotionStop, "MOTION_STOP", KindU32, false, true, U32Value(180))
	s.Register(MotionStartType, "MOTION_START_TYPE", KindU32, false, true, U32Value(0))
	s.Register(MotionStopType, "MOTION_STOP_TYPE", KindU32, false, true, U32Value(0))
	s.Register(MotionExcessSpeed, "MOTION_EXCESS_SPEED", KindF64, false, true, F64Value(30.0))
	s.Register(MotionInMotion, "MOTION_IN_MOTION", KindU32, false, true, U32Value(60))
	s.Register(MotionDormantIntrvl, "MOTION_DORMANT_INTRVL", KindU32, false, true, U32Value(3600))
	s.Register(MotionDormantCount, "MOTION_DORMANT_COUNT", KindU32, false, true, U32Value(24))

	s.Register(StateDiagnostic, "STATE_DIAGNOSTIC", KindU32, true, false, U32Value(0))
	s.Register(StateProtocol, "STATE_PROTOCOL", KindU32, false, true, U32Value(0))
	s.Register(StateBootupReport, "STATE_BOOTUP_REPORT", KindU32, false, false, U32Value(1))

	s.Register(UpdateURL, "UPDATE_URL", KindBytes, false, false, BytesValue(nil))
	s.Register(UpdateMD5, "UPDATE_MD5", KindBytes, false, false, BytesValue(nil))
	s.Register(UpdateAuthUser, "UPDATE_AUTH_USER", KindBytes, false, false, BytesValue(nil))
	s.Register(UpdateAuthPass, "UPDATE_AUTH_PASS", KindBytes, false, false, BytesValue(nil))

	s.Register(LogUploadTrigger, "LOG_UPLOAD_TRIGGER", KindU32, false, false, U32Value(0))
}
