package protocol

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrNoProtocol is returned when neither a specific nor a default protocol
// matches the requested stream/subject pair.
var ErrNoProtocol = errors.New("no protocol registered")

type registryKey struct {
	stream  string
	subject string
}

// Registry resolves the exam protocol for a (stream, subject) pair. Lookup
// falls back to a stream-wide entry (empty subject) and then to the default
// protocol, so new subjects work before they get a dedicated protocol.
type Registry struct {
	mu        sync.RWMutex
	protocols map[registryKey]Protocol
	fallback  Protocol
}

// NewRegistry creates an empty registry with the given default protocol.
func NewRegistry(fallback Protocol) *Registry {
	return &Registry{
		protocols: make(map[registryKey]Protocol),
		fallback:  fallback,
	}
}

// Register binds a protocol to a stream/subject pair. An empty subject
// registers a stream-wide protocol. Registration is case-insensitive.
func (r *Registry) Register(stream, subject string, p Protocol) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.protocols[keyFor(stream, subject)] = p
}

// Resolve returns the protocol for the given stream/subject pair.
func (r *Registry) Resolve(stream, subject string) (Protocol, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.protocols[keyFor(stream, subject)]; ok {
		return p, nil
	}
	if p, ok := r.protocols[keyFor(stream, "")]; ok {
		return p, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("%w for stream %q subject %q", ErrNoProtocol, stream, subject)
}

func keyFor(stream, subject string) registryKey {
	return registryKey{
		stream:  strings.ToLower(strings.TrimSpace(stream)),
		subject: strings.ToLower(strings.TrimSpace(subject)),
	}
}
