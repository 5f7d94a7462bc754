package gosim

// MemoryProxy is the per-evaluation façade a processing component uses
// to reach the memory components bound to its declared memory ports.
// It never exposes any memory module the component did not declare a
// port for.
//
// The proxy is always backed by the engine's full memory index, in
// both sequential and parallel mode. Safety against concurrent writes
// to the same memory module comes from the engine's scheduler instead:
// evaluateSubLevel forces sequential evaluation for any sub-level
// whose components share a writable memory binding, so a proxy never
// runs concurrently with another proxy targeting the same module.
type MemoryProxy struct {
	componentID     ComponentId
	bindings        map[string]ComponentId
	cells           map[ComponentId]MemoryCell
	onWriteRejected func(port, addr string, memID ComponentId, err error)
}

func newMemoryProxy(id ComponentId, bindings map[string]ComponentId, cells map[ComponentId]MemoryCell, onWriteRejected func(port, addr string, memID ComponentId, err error)) *MemoryProxy {
	return &MemoryProxy{componentID: id, bindings: bindings, cells: cells, onWriteRejected: onWriteRejected}
}

// IsConnected reports whether port has a memory binding.
func (p *MemoryProxy) IsConnected(port string) bool {
	_, ok := p.bindings[port]
	return ok
}

// GetMemoryId returns the memory component id bound to port, if any.
func (p *MemoryProxy) GetMemoryId(port string) (ComponentId, bool) {
	id, ok := p.bindings[port]
	return id, ok
}

func (p *MemoryProxy) resolve(port string) (MemoryCell, error) {
	memID, ok := p.bindings[port]
	if !ok {
		return nil, newErr(MemoryError, "memory port %q is not connected for component %s", port, p.componentID.ID)
	}
	cell, ok := p.cells[memID]
	if !ok {
		return nil, newErr(MemoryError, "memory module %s is not available to component %s (missing or outside its subset)", memID.ID, p.componentID.ID)
	}
	return cell, nil
}

// ReadMemory resolves port to its bound memory module and reads addr
// from that module's snapshot. The bool result reports whether addr
// held a value; a false result with a nil error means the address was
// simply never written, not a failure.
func ReadMemory[T any](p *MemoryProxy, port, addr string) (T, bool, error) {
	var zero T
	cell, err := p.resolve(port)
	if err != nil {
		return zero, false, err
	}
	tv, ok := cell.ReadAny(addr)
	if !ok {
		return zero, false, nil
	}
	v, err := Get[T](tv)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// WriteMemory resolves port to its bound memory module and writes v at
// addr into that module's current (write-side) state. The write is not
// visible to any Read until the module's next CreateSnapshot. A type
// mismatch is reported via the proxy's failure reporter, if one was
// installed, before the error is returned to the caller; the snapshot
// keeps its prior value either way.
func WriteMemory[T any](p *MemoryProxy, port, addr string, v T) error {
	cell, err := p.resolve(port)
	if err != nil {
		return err
	}
	if err := cell.WriteAny(addr, NewTypedValue(v)); err != nil {
		if p.onWriteRejected != nil {
			memID := p.bindings[port]
			p.onWriteRejected(port, addr, memID, err)
		}
		return err
	}
	return nil
}
