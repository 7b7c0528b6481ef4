package splitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPacket(typeLow, typeByte byte, payload []byte) []byte {
	pkt := []byte{0xE0 | (typeLow & 0x0F), typeByte, byte(len(payload))}
	return append(pkt, payload...)
}

func TestSplitPacketsSingle(t *testing.T) {
	pkt := buildPacket(0x0, 0x01, []byte{0xAA, 0xBB})
	packets, residue, err := SplitPackets(pkt)
	require.NoError(t, err)
	assert.Empty(t, residue)
	require.Len(t, packets, 1)
	assert.Equal(t, pkt, packets[0])
}

func TestSplitPacketsMultipleAndResidue(t *testing.T) {
	p1 := buildPacket(0x0, 0x01, []byte{0x01})
	p2 := buildPacket(0x0, 0xFE, nil)
	partial := []byte{0xE0, 0x02}

	stream := append(append(append([]byte{}, p1...), p2...), partial...)

	packets, residue, err := SplitPackets(stream)
	require.NoError(t, err)
	require.Len(t, packets, 2)
	assert.Equal(t, p1, packets[0])
	assert.Equal(t, p2, packets[1])
	assert.Equal(t, partial, residue)
}

func TestSplitPacketsResynchronizesAfterGarbage(t *testing.T) {
	garbage := []byte{0x00, 0x11, 0x22}
	pkt := buildPacket(0x0, 0x13, []byte{0x01})
	stream := append(append([]byte{}, garbage...), pkt...)

	packets, residue, err := SplitPackets(stream)
	require.NoError(t, err)
	assert.Empty(t, residue)
	require.Len(t, packets, 1)
	assert.Equal(t, pkt, packets[0])
}

func TestSplitPacketsNoMarkerFound(t *testing.T) {
	garbage := []byte{0x00, 0x01, 0x02, 0x03, 0x04}
	_, _, err := SplitPackets(garbage)
	assert.Error(t, err)
}

func TestHasCompletePacket(t *testing.T) {
	pkt := buildPacket(0x0, 0x01, []byte{0x01, 0x02})
	assert.True(t, HasCompletePacket(pkt))
	assert.False(t, HasCompletePacket(pkt[:2]))
	assert.False(t, HasCompletePacket(nil))
}

func TestGetPacketType(t *testing.T) {
	pkt := buildPacket(0x3, 0x07, nil)
	typ, err := GetPacketType(pkt)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0307), typ)
}

func TestGetPayload(t *testing.T) {
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	pkt := buildPacket(0x0, 0x01, payload)
	got, err := GetPayload(pkt)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	_, err = GetPayload(pkt[:len(pkt)-1])
	assert.Error(t, err)
}

func TestEstimatePacketCount(t *testing.T) {
	p1 := buildPacket(0x0, 0x01, []byte{0x01})
	p2 := buildPacket(0x0, 0xFE, nil)
	stream := append(append([]byte{}, p1...), p2...)
	assert.Equal(t, 2, EstimatePacketCount(stream))
}
