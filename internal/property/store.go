// Package property implements the typed key/value configuration store
// shared by every task: GPS sampling parameters, comm endpoints, motion
// thresholds, and state flags. Values round-trip through two rotating
// KEY=VALUE cache files so a crash mid-write never loses the prior good
// copy.
package property

import (
	"fmt"
	"sort"
	"sync"
)

// Kind identifies a property's value type.
type Kind uint8

const (
	KindU32 Kind = iota
	KindI32
	KindF64
	KindBytes
	KindArray
)

// Value holds exactly one of the fields selected by Kind.
type Value struct {
	Kind  Kind
	U32   uint32
	I32   int32
	F64   float64
	Bytes []byte
	Array []Value
}

// U32Value, I32Value, F64Value, and BytesValue build a Value of the
// named kind.
func U32Value(v uint32) Value   { return Value{Kind: KindU32, U32: v} }
func I32Value(v int32) Value    { return Value{Kind: KindI32, I32: v} }
func F64Value(v float64) Value  { return Value{Kind: KindF64, F64: v} }
func BytesValue(v []byte) Value { return Value{Kind: KindBytes, Bytes: append([]byte{}, v...)} }

// entry is one property's registered shape plus its current value.
type entry struct {
	key          uint16
	name         string
	kind         Kind
	readOnly     bool
	savePolicy   bool
	value        Value
	subscribers  []func(key uint16, old, new Value)
}

// Store is a typed key/value configuration store keyed by a 16-bit
// integer, guarded by one mutex.
type Store struct {
	mu      sync.RWMutex
	entries map[uint16]*entry
	dirty   bool
	unknown *unknownKeys
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[uint16]*entry)}
}

// Register declares a property's shape. Registering the same key twice
// is a programming error.
func (s *Store) Register(key uint16, name string, kind Kind, readOnly, savePolicy bool, initial Value) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; exists {
		panic(fmt.Sprintf("property: key 0x%04X already registered", key))
	}
	s.entries[key] = &entry{
		key:        key,
		name:       name,
		kind:       kind,
		readOnly:   readOnly,
		savePolicy: savePolicy,
		value:      initial,
	}
}

// Get returns a property's current value.
func (s *Store) Get(key uint16) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return Value{}, false
	}
	return e.value, true
}

// Name returns a registered property's human-readable name.
func (s *Store) Name(key uint16) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return "", false
	}
	return e.name, true
}

// Each calls fn for every registered property in ascending key order,
// the same ordering Save uses, so callers printing the store (the -pp
// CLI flag) see a stable listing.
func (s *Store) Each(fn func(key uint16, name string, v Value)) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]uint16, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, k := range keys {
		e := s.entries[k]
		fn(k, e.name, e.value)
	}
}

// Set overwrites a property's value, marks the store dirty if the
// property has SavePolicy set, and fires every subscribed callback.
// Returns an error if key is unregistered or read-only.
func (s *Store) Set(key uint16, v Value) error {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("property: unknown key 0x%04X", key)
	}
	if e.readOnly {
		s.mu.Unlock()
		return fmt.Errorf("property: key 0x%04X (%s) is read-only", key, e.name)
	}
	old := e.value
	e.value = v
	if e.savePolicy {
		s.dirty = true
	}
	subs := append([]func(uint16, Value, Value){}, e.subscribers...)
	s.mu.Unlock()

	for _, cb := range subs {
		cb(key, old, v)
	}
	return nil
}

// Subscribe registers cb to run after every successful Set on key.
func (s *Store) Subscribe(key uint16, cb func(key uint16, old, new Value)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return fmt.Errorf("property: unknown key 0x%04X", key)
	}
	e.subscribers = append(e.subscribers, cb)
	return nil
}

// Dirty reports whether any save-policy property has changed since the
// last successful Save.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// clearDirty marks the store clean. Caller must hold s.mu for writing.
func (s *Store) clearDirty() {
	s.dirty = false
}
