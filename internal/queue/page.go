package queue

// PageSize is the number of slots per page.
const PageSize = 32

// PageArraySize is the maximum number of pages the queue may grow to
// before Enqueue starts reporting overflow even with overwrite
// disabled.
const PageArraySize = 64

// slot holds one packet plus whether it currently carries live data;
// an empty slot is distinct from a packet with a zero sequence number.
type slot struct {
	packet Packet
	filled bool
}

// page is PageSize slots, allocated as a unit when the ring grows into
// it.
type page [PageSize]slot

// addressOf converts a global slot index to its (page, offset) address.
func addressOf(i int) (pageIdx, offset int) {
	return i / PageSize, i % PageSize
}
