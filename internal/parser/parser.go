// Package parser decodes server-to-client DMTP packets into typed
// values, dispatched by a registry keyed on packet type for O(1)
// lookup.
package parser

import (
	"fmt"
	"sync"

	"github.com/intelcon-group/telematics-core/internal/protocol"
)

// Parser decodes one server packet type.
type Parser interface {
	// PacketType returns the 16-bit packet type this parser handles.
	PacketType() uint16

	// Parse decodes payload (the packet body, header already stripped)
	// into a protocol.ServerPacket. raw is the full framed packet, kept
	// for ServerPacket.Raw().
	Parse(payload, raw []byte) (protocol.ServerPacket, error)

	// Name returns the human-readable parser name.
	Name() string
}

// Registry maps packet types to their parser.
type Registry struct {
	mu      sync.RWMutex
	parsers map[uint16]Parser
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[uint16]Parser)}
}

// Register adds p to the registry. Returns an error if a parser is
// already registered for p's packet type.
func (r *Registry) Register(p Parser) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := p.PacketType()
	if _, exists := r.parsers[t]; exists {
		return fmt.Errorf("parser for packet type 0x%04X already registered", t)
	}
	r.parsers[t] = p
	return nil
}

// MustRegister adds p and panics if registration fails.
func (r *Registry) MustRegister(p Parser) {
	if err := r.Register(p); err != nil {
		panic(err)
	}
}

// Get returns the parser registered for packetType, if any.
func (r *Registry) Get(packetType uint16) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.parsers[packetType]
	return p, ok
}

// Has reports whether a parser is registered for packetType.
func (r *Registry) Has(packetType uint16) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.parsers[packetType]
	return ok
}

// Parse dispatches to the parser registered for packetType.
func (r *Registry) Parse(packetType uint16, payload, raw []byte) (protocol.ServerPacket, error) {
	p, ok := r.Get(packetType)
	if !ok {
		return nil, fmt.Errorf("no parser registered for packet type 0x%04X", packetType)
	}
	return p.Parse(payload, raw)
}

// List returns every registered packet type.
func (r *Registry) List() []uint16 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]uint16, 0, len(r.parsers))
	for t := range r.parsers {
		types = append(types, t)
	}
	return types
}

// Count returns the number of registered parsers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.parsers)
}

// NewDefaultRegistry returns a registry with every server-packet parser
// registered, ready to drive the session engine.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(&EOBParser{})
	r.MustRegister(&EOBSpeakFreelyParser{})
	r.MustRegister(&ACKParser{})
	r.MustRegister(&EOTParser{})
	r.MustRegister(&AuthParser{})
	r.MustRegister(&GetPropertyParser{})
	r.MustRegister(&SetPropertyParser{})
	r.MustRegister(&FileUploadParser{})
	r.MustRegister(&ErrorParser{})
	return r
}
