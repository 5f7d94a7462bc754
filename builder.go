package gosim

// Builder is a thin, fluent front door over Registry and
// ConnectionGraph: add components, wire them, then Build an Engine.
// Grounded on chain.go's NewChain/Add/method-chaining idiom, applied
// to graph construction instead of a processor list. Unlike Chain.Add
// (which cannot fail), every Builder call can fail structurally, so
// the first error is captured and every subsequent call becomes a
// no-op until Build reports it.
type Builder struct {
	registry *Registry
	graph    *ConnectionGraph
	err      error
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	registry := NewRegistry()
	return &Builder{
		registry: registry,
		graph:    NewConnectionGraph(registry),
	}
}

// AddProcessing registers a processing component under id, backed by
// module.
func (b *Builder) AddProcessing(id ComponentId, module *ProcessorModule) *Builder {
	if b.err != nil {
		return b
	}
	b.err = b.registry.Register(NewProcessingInstance(id, module))
	return b
}

// AddMemory registers a memory component under id, backed by cell.
func (b *Builder) AddMemory(id ComponentId, cell MemoryCell) *Builder {
	if b.err != nil {
		return b
	}
	b.err = b.registry.Register(NewMemoryInstance(id, cell))
	return b
}

// Connect wires an output port to an input port.
func (b *Builder) Connect(sourceID ComponentId, sourcePort string, targetID ComponentId, targetPort string) *Builder {
	if b.err != nil {
		return b
	}
	b.err = b.graph.Connect(sourceID, sourcePort, targetID, targetPort)
	return b
}

// ConnectMemory binds a processing component's memory port to a
// memory component.
func (b *Builder) ConnectMemory(componentID ComponentId, memoryPort string, memoryID ComponentId) *Builder {
	if b.err != nil {
		return b
	}
	b.err = b.graph.ConnectMemory(componentID, memoryPort, memoryID)
	return b
}

// Err returns the first structural error encountered, if any.
func (b *Builder) Err() error {
	return b.err
}

// Build validates the registry's memory-index consistency and the
// graph's Required port bindings, and returns a new Engine configured
// with cfg. Id uniqueness is already enforced by each Register call. The
// engine's execution plan is not built yet; call
// Engine.BuildExecutionOrder or Engine.Cycle to build it.
func (b *Builder) Build(cfg EngineConfig) (*Engine, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.registry.ValidateConsistency(); err != nil {
		return nil, err
	}
	if err := b.graph.ValidateRequired(); err != nil {
		return nil, err
	}
	return NewEngine(b.registry, b.graph, cfg), nil
}
