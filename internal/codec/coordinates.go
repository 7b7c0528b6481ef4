package codec

import "encoding/binary"

// GPS point wire encoding: 8 bytes, two big-endian signed 32-bit scaled
// integers, latitude then longitude, each scaled by 10^7 decimal degrees.

// CoordinateScale is the fixed-point scale applied to decimal degrees
// before encoding a GPS point on the wire.
const CoordinateScale = 1e7

// EncodeGPSPoint packs latitude and longitude (decimal degrees, signed)
// into the 8-byte wire representation.
func EncodeGPSPoint(latitude, longitude float64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], uint32(int32(latitude*CoordinateScale)))
	binary.BigEndian.PutUint32(buf[4:8], uint32(int32(longitude*CoordinateScale)))
	return buf
}

// DecodeGPSPoint unpacks the 8-byte wire representation into signed
// decimal-degree latitude and longitude.
func DecodeGPSPoint(data []byte) (latitude, longitude float64) {
	if len(data) < 8 {
		return 0, 0
	}
	lat := int32(binary.BigEndian.Uint32(data[0:4]))
	lon := int32(binary.BigEndian.Uint32(data[4:8]))
	return float64(lat) / CoordinateScale, float64(lon) / CoordinateScale
}
