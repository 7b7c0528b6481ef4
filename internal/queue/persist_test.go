package queue

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/intelcon-group/telematics-core/internal/protocol"
)

func TestPreserveAllAndRestore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.dat")

	var q Queue
	q.Init(PageSize)
	q.SetBackingPath(path)

	q.Enqueue(eventPacket(protocol.PriorityNormal, time.Now()))
	q.Enqueue(eventPacket(protocol.PriorityHigh, time.Now()))

	if err := q.PreserveAll(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	it := q.Iterator()
	p, _ := q.Next(it)
	if !p.IsPreserved() {
		t.Fatal("expected packet to be marked preserved")
	}

	var restored Queue
	restored.Init(PageSize)
	restored.SetBackingPath(path)

	n, err := restored.Restore()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 restored packets, got %d", n)
	}
	if restored.Len() != 2 {
		t.Fatalf("expected 2 packets in restored queue, got %d", restored.Len())
	}
}

func TestPreserveAllOnlyWritesNewRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.dat")

	var q Queue
	q.Init(PageSize)
	q.SetBackingPath(path)

	q.Enqueue(eventPacket(protocol.PriorityNormal, time.Now()))
	if err := q.PreserveAll(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q.Enqueue(eventPacket(protocol.PriorityNormal, time.Now()))
	if err := q.PreserveAll(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var restored Queue
	restored.Init(PageSize)
	restored.SetBackingPath(path)

	n, err := restored.Restore()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 total records across both preserve_all calls, got %d", n)
	}
}

func TestRestoreMissingFileIsNotAnError(t *testing.T) {
	var q Queue
	q.Init(PageSize)
	q.SetBackingPath(filepath.Join(t.TempDir(), "does-not-exist.dat"))

	n, err := q.Restore()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 restored packets, got %d", n)
	}
}

func TestDiscardBackingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.dat")

	var q Queue
	q.Init(PageSize)
	q.SetBackingPath(path)
	q.Enqueue(eventPacket(protocol.PriorityNormal, time.Now()))
	if err := q.PreserveAll(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := q.DiscardBackingFile(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// discarding twice should not error
	if err := q.DiscardBackingFile(); err != nil {
		t.Fatalf("unexpected error on second discard: %v", err)
	}
}
