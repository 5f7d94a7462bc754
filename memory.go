package gosim

import "sync"

// MemoryModule holds the double-buffered state for one memory
// component: current is the write side for this cycle, snapshot is
// the read-only view frozen at the start of the cycle.
//
// T must implement Cloner[T] so CreateSnapshot can produce an
// isolated copy per address without reflection.
type MemoryModule[T Cloner[T]] struct {
	mu       sync.RWMutex
	current  map[string]T
	snapshot map[string]T
	updater  func(T) T
}

// NewMemoryModule creates an empty memory module.
func NewMemoryModule[T Cloner[T]]() *MemoryModule[T] {
	return &MemoryModule[T]{
		current:  make(map[string]T),
		snapshot: make(map[string]T),
	}
}

// WithUpdater installs an optional per-cycle update hook, invoked by
// Cycle() for every address currently held. This is how a memory
// payload can carry its own autonomous evolution (e.g. a countdown)
// independent of any write a processing component performs.
func (m *MemoryModule[T]) WithUpdater(fn func(T) T) *MemoryModule[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updater = fn
	return m
}

// Read returns the value at addr in the read-only snapshot.
func (m *MemoryModule[T]) Read(addr string) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.snapshot[addr]
	return v, ok
}

// Write stores v at addr in the current (write-side) map. It is not
// visible to Read until the next CreateSnapshot.
func (m *MemoryModule[T]) Write(addr string, v T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current[addr] = v
}

// ReadAny implements MemoryCell for the type-erased proxy/registry path.
func (m *MemoryModule[T]) ReadAny(addr string) (TypedValue, bool) {
	v, ok := m.Read(addr)
	if !ok {
		return TypedValue{}, false
	}
	return NewTypedValue(v), true
}

// WriteAny implements MemoryCell, rejecting a payload whose runtime
// type does not match T. A rejected write is reported and dropped --
// the snapshot retains its previous value.
func (m *MemoryModule[T]) WriteAny(addr string, tv TypedValue) error {
	v, err := Get[T](tv)
	if err != nil {
		return err
	}
	m.Write(addr, v)
	return nil
}

// CreateSnapshot assigns snapshot := current, cloning each value so
// the two maps never alias the same payload.
func (m *MemoryModule[T]) CreateSnapshot() {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := make(map[string]T, len(m.current))
	for k, v := range m.current {
		snap[k] = v.Clone()
	}
	m.snapshot = snap
}

// Cycle applies the optional per-cycle updater to every address in the
// current map. It runs as part of the engine's end-of-cycle commit,
// before CreateSnapshot.
func (m *MemoryModule[T]) Cycle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updater == nil {
		return
	}
	for k, v := range m.current {
		m.current[k] = m.updater(v)
	}
}

// Addresses returns the set of addresses present in the current map,
// primarily for introspection and testing.
func (m *MemoryModule[T]) Addresses() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.current))
	for k := range m.current {
		out = append(out, k)
	}
	return out
}
