package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/intelcon-group/telematics-core/internal/protocol"
)

// ErrOverflow is returned by Enqueue when the queue is full, overwrite
// is disabled, and no more pages may be allocated.
var ErrOverflow = fmt.Errorf("queue: overflow")

// Queue is a paged circular buffer of Packets, safe for concurrent use.
// The zero value is not ready to use; call Init.
type Queue struct {
	mu sync.Mutex

	pages []page
	first int // global slot index of the oldest filled slot
	count int // number of currently filled slots

	overwrite    bool
	nextSequence uint32

	backingPath string
}

// Init allocates the queue's first page and readies it for use.
// capacity is advisory: it is rounded up to a whole number of pages and
// used only to pre-allocate, since the queue always grows on demand up
// to PageArraySize pages.
func (q *Queue) Init(capacity int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pages := (capacity + PageSize - 1) / PageSize
	if pages < 1 {
		pages = 1
	}
	if pages > PageArraySize {
		pages = PageArraySize
	}
	q.pages = make([]page, pages)
	q.first = 0
	q.count = 0
	q.overwrite = false
}

// SetBackingPath configures where PreserveAll/Restore read and write.
func (q *Queue) SetBackingPath(path string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.backingPath = path
}

// SetOverwrite toggles whether Enqueue drops the oldest packet instead
// of failing when the queue is full. The protocol engine disables
// overwrite while a session is open and re-enables it on close.
func (q *Queue) SetOverwrite(enabled bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.overwrite = enabled
}

func (q *Queue) capacity() int {
	return len(q.pages) * PageSize
}

// Enqueue appends packet to the ring, assigning it the next sequence
// number. It returns ErrOverflow if the queue is full, overwrite is
// disabled, and the page array is already at PageArraySize.
func (q *Queue) Enqueue(p Packet) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == q.capacity() {
		if len(q.pages) < PageArraySize {
			q.growLocked()
		} else if q.overwrite {
			q.advanceFirstLocked()
		} else {
			return ErrOverflow
		}
	}

	q.nextSequence++
	p.Sequence = q.nextSequence
	p.Status |= protocol.StatusFilled

	idx := (q.first + q.count) % q.capacity()
	pIdx, off := addressOf(idx)
	q.pages[pIdx][off] = slot{packet: p, filled: true}
	q.count++
	return nil
}

// growLocked appends one page to the ring. If the filled region is
// currently wrapped (first != 0), appending a page alone is not
// enough: (first+count) % newCapacity can land inside the still-filled
// old region rather than the new page, since the modulus changed out
// from under the existing addressing. Relocate the whole filled region
// down to slot 0 first so every subsequent index is computed against
// a ring that isn't wrapped. Caller must hold q.mu.
func (q *Queue) growLocked() {
	oldCapacity := q.capacity()
	first := q.first
	count := q.count

	q.pages = append(q.pages, page{})

	if first == 0 {
		return
	}

	relocated := make([]slot, count)
	for i := 0; i < count; i++ {
		srcIdx := (first + i) % oldCapacity
		pIdx, off := addressOf(srcIdx)
		relocated[i] = q.pages[pIdx][off]
	}
	for i := 0; i < oldCapacity; i++ {
		pIdx, off := addressOf(i)
		q.pages[pIdx][off] = slot{}
	}
	for i, s := range relocated {
		pIdx, off := addressOf(i)
		q.pages[pIdx][off] = s
	}
	q.first = 0
}

// advanceFirstLocked drops the oldest slot to make room, used by the
// overwrite path. Caller must hold q.mu.
func (q *Queue) advanceFirstLocked() {
	pIdx, off := addressOf(q.first)
	q.pages[pIdx][off] = slot{}
	q.first = (q.first + 1) % q.capacity()
	q.count--
}

// Iterator walks the queue from oldest to newest without mutating it.
type Iterator struct {
	pos int
}

// Iterator returns a fresh cursor positioned before the oldest packet.
func (q *Queue) Iterator() *Iterator {
	return &Iterator{}
}

// Next advances it and returns the next packet, or ok=false once
// exhausted. The returned pointer aliases internal storage and must not
// be retained past the next queue mutation.
func (q *Queue) Next(it *Iterator) (p *Packet, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if it.pos >= q.count {
		return nil, false
	}
	idx := (q.first + it.pos) % q.capacity()
	it.pos++
	pIdx, off := addressOf(idx)
	return &q.pages[pIdx][off].packet, true
}

// MarkSent sets the SENT status bit on p. p must be a pointer obtained
// from Next (or Iterator traversal) on this queue.
func (q *Queue) MarkSent(p *Packet) {
	q.mu.Lock()
	defer q.mu.Unlock()
	p.Status |= protocol.StatusSent
}

// AcknowledgeFirst deletes the first n packets, provided all of them
// are currently SENT, starting at the queue's oldest slot. It reports
// false and makes no change if any of the first n packets is not SENT
// or n exceeds the current count.
func (q *Queue) AcknowledgeFirst(n int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n <= 0 {
		return n == 0
	}
	if n > q.count {
		return false
	}
	for i := 0; i < n; i++ {
		idx := (q.first + i) % q.capacity()
		pIdx, off := addressOf(idx)
		s := q.pages[pIdx][off]
		if !s.filled || !s.packet.IsSent() {
			return false
		}
	}
	for i := 0; i < n; i++ {
		pIdx, off := addressOf(q.first)
		q.pages[pIdx][off] = slot{}
		q.first = (q.first + 1) % q.capacity()
	}
	q.count -= n
	return true
}

// HighestPriority returns the highest Priority among filled, not-yet-
// sent packets, or protocol.PriorityNone if there are none.
func (q *Queue) HighestPriority() protocol.Priority {
	q.mu.Lock()
	defer q.mu.Unlock()

	highest := protocol.PriorityNone
	for i := 0; i < q.count; i++ {
		idx := (q.first + i) % q.capacity()
		pIdx, off := addressOf(idx)
		s := q.pages[pIdx][off]
		if !s.filled || s.packet.IsSent() {
			continue
		}
		if s.packet.Priority > highest {
			highest = s.packet.Priority
		}
	}
	return highest
}

// HasUnsent reports whether any filled slot lacks the SENT status bit.
func (q *Queue) HasUnsent() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := 0; i < q.count; i++ {
		idx := (q.first + i) % q.capacity()
		pIdx, off := addressOf(idx)
		s := q.pages[pIdx][off]
		if s.filled && !s.packet.IsSent() {
			return true
		}
	}
	return false
}

// Reset clears every slot and frees all but one page.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pages = q.pages[:1]
	q.pages[0] = page{}
	q.first = 0
	q.count = 0
}

// LastSequence returns the sequence number and embedded fixtime of the
// most recently enqueued packet. ok is false if the queue is empty.
func (q *Queue) LastSequence() (seq uint32, ts time.Time, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return 0, time.Time{}, false
	}
	idx := (q.first + q.count - 1) % q.capacity()
	pIdx, off := addressOf(idx)
	p := q.pages[pIdx][off].packet
	t, err := p.Fixtime()
	if err != nil {
		return p.Sequence, time.Time{}, true
	}
	return p.Sequence, t, true
}

// UpdateTimestamps rewrites every queued packet's embedded fixtime by
// delta, honoring the pre-sync heuristic in codec.ShiftFixtime.
func (q *Queue) UpdateTimestamps(delta time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := 0; i < q.count; i++ {
		idx := (q.first + i) % q.capacity()
		pIdx, off := addressOf(idx)
		_ = q.pages[pIdx][off].packet.ShiftFixtime(delta)
	}
}

// ClearUnacknowledgedSent clears the SENT bit on every filled slot,
// returning packets a session marked SENT but never got acknowledged to
// the unsent pool so the next session retransmits them.
func (q *Queue) ClearUnacknowledgedSent() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := 0; i < q.count; i++ {
		idx := (q.first + i) % q.capacity()
		pIdx, off := addressOf(idx)
		q.pages[pIdx][off].packet.Status &^= protocol.StatusSent
	}
}

// Len reports how many packets are currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}
