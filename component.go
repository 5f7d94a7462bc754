package gosim

// ComponentId is an opaque handle pairing a unique string id with a
// caller-supplied type tag. It is comparable, so it can be used
// directly as a map key.
type ComponentId struct {
	ID   string
	Type string
}

// Cloner is implemented by types used as memory-component payloads.
// Clone must return a deep copy where mutations to the clone never
// affect the original.
type Cloner[T any] interface {
	Clone() T
}

// ComponentKind discriminates the two component variants the registry
// holds.
type ComponentKind int

const (
	KindProcessing ComponentKind = iota
	KindMemory
)

// EvalContext is the read surface a processing component's Evaluate
// function receives: this cycle's assembled inputs and a memory proxy
// scoped to the component's declared memory ports.
type EvalContext struct {
	ComponentID ComponentId
	Cycle       uint64
	Inputs      *InputMap
	Memory      *MemoryProxy
}

// ProcessorModule is the static, stateless description of a processing
// component type: its declared ports and its evaluation function. Any
// instance state a component needs must live in a connected memory
// component -- the module itself carries no state across cycles.
type ProcessorModule struct {
	Name        string
	Inputs      []PortSpec
	Outputs     []PortSpec
	MemoryPorts []PortSpec
	Evaluate    func(ctx *EvalContext, out *OutputMap) error
}

func (m *ProcessorModule) findPort(ports []PortSpec, name string) (PortSpec, bool) {
	for _, p := range ports {
		if p.Name == name {
			return p, true
		}
	}
	return PortSpec{}, false
}

// InputPort looks up a declared input port by name.
func (m *ProcessorModule) InputPort(name string) (PortSpec, bool) {
	return m.findPort(m.Inputs, name)
}

// OutputPort looks up a declared output port by name.
func (m *ProcessorModule) OutputPort(name string) (PortSpec, bool) {
	return m.findPort(m.Outputs, name)
}

// MemoryPort looks up a declared memory port by name.
func (m *ProcessorModule) MemoryPort(name string) (PortSpec, bool) {
	return m.findPort(m.MemoryPorts, name)
}

// MemoryCell is the type-erased capability a memory component exposes
// to the registry, connection graph, and memory proxy. Concrete memory
// components implement this through *MemoryModule[T].
type MemoryCell interface {
	ReadAny(addr string) (TypedValue, bool)
	WriteAny(addr string, v TypedValue) error
	CreateSnapshot()
	Cycle()
}

// ComponentInstance is a registered component: its id plus exactly one
// of a processing module or a memory cell.
type ComponentInstance struct {
	ID        ComponentId
	Kind      ComponentKind
	Processor *ProcessorModule
	Memory    MemoryCell
}

// NewProcessingInstance builds a ComponentInstance wrapping a
// processing module.
func NewProcessingInstance(id ComponentId, module *ProcessorModule) ComponentInstance {
	return ComponentInstance{ID: id, Kind: KindProcessing, Processor: module}
}

// NewMemoryInstance builds a ComponentInstance wrapping a memory cell.
// Memory components are addressed only through processing components'
// memory ports -- the MemoryCell itself only needs read/write access by
// address, so no PortSpec bookkeeping lives here.
func NewMemoryInstance(id ComponentId, cell MemoryCell) ComponentInstance {
	return ComponentInstance{ID: id, Kind: KindMemory, Memory: cell}
}
