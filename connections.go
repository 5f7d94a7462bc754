package gosim

import "sync"

// portRef identifies one named port on one component.
type portRef struct {
	id   ComponentId
	port string
}

// ConnectionGraph holds port-to-port and port-to-memory edges, and
// enforces the single-writer and single-binding invariants on every
// Connect/ConnectMemory call.
type ConnectionGraph struct {
	mu       sync.RWMutex
	registry *Registry

	// portEdges maps a target (component, input port) to its unique
	// source (component, output port) -- the single-writer invariant.
	portEdges map[portRef]portRef
	// bySource is the reverse index supporting fan-out: one source
	// port may feed many targets.
	bySource map[portRef][]portRef

	// memoryBindings maps (component, memory port) to the memory
	// component id it is bound to -- the single-binding invariant.
	memoryBindings map[portRef]ComponentId
}

// NewConnectionGraph creates an empty graph bound to registry, which
// it consults to validate endpoints and port declarations.
func NewConnectionGraph(registry *Registry) *ConnectionGraph {
	return &ConnectionGraph{
		registry:       registry,
		portEdges:      make(map[portRef]portRef),
		bySource:       make(map[portRef][]portRef),
		memoryBindings: make(map[portRef]ComponentId),
	}
}

// Connect wires sourceID.sourcePort (an output) to targetID.targetPort
// (an input). Fails with ComponentNotFound, PortNotFound,
// InvalidPortType, or InvalidConnection (single-writer violation).
func (g *ConnectionGraph) Connect(sourceID ComponentId, sourcePort string, targetID ComponentId, targetPort string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	src, err := g.registry.Get(sourceID)
	if err != nil {
		return err
	}
	dst, err := g.registry.Get(targetID)
	if err != nil {
		return err
	}
	if src.Kind != KindProcessing || src.Processor == nil {
		return newErr(PortNotFound, "component %q has no output ports (not a processing component)", sourceID.ID)
	}
	if dst.Kind != KindProcessing || dst.Processor == nil {
		return newErr(PortNotFound, "component %q has no input ports (not a processing component)", targetID.ID)
	}
	srcSpec, ok := src.Processor.OutputPort(sourcePort)
	if !ok {
		return newErr(PortNotFound, "component %q has no output port %q", sourceID.ID, sourcePort)
	}
	dstSpec, ok := dst.Processor.InputPort(targetPort)
	if !ok {
		return newErr(PortNotFound, "component %q has no input port %q", targetID.ID, targetPort)
	}
	if !srcSpec.Kind.CanConnectTo(dstSpec.Kind) {
		return newErr(InvalidPortType, "cannot connect %s port %q to %s port %q", srcSpec.Kind, sourcePort, dstSpec.Kind, targetPort)
	}

	target := portRef{id: targetID, port: targetPort}
	if _, exists := g.portEdges[target]; exists {
		return newErr(InvalidConnection, "input port %q of component %q already has a source", targetPort, targetID.ID)
	}

	source := portRef{id: sourceID, port: sourcePort}
	g.portEdges[target] = source
	g.bySource[source] = append(g.bySource[source], target)
	return nil
}

// ConnectMemory binds componentID.memoryPort to memoryID. Fails with
// ComponentNotFound, PortNotFound, InvalidPortType (memoryID is not a
// memory component), or InvalidConnection (single-binding violation).
func (g *ConnectionGraph) ConnectMemory(componentID ComponentId, memoryPort string, memoryID ComponentId) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	comp, err := g.registry.Get(componentID)
	if err != nil {
		return err
	}
	if comp.Kind != KindProcessing || comp.Processor == nil {
		return newErr(PortNotFound, "component %q has no memory ports (not a processing component)", componentID.ID)
	}
	if _, ok := comp.Processor.MemoryPort(memoryPort); !ok {
		return newErr(PortNotFound, "component %q has no memory port %q", componentID.ID, memoryPort)
	}

	mem, err := g.registry.Get(memoryID)
	if err != nil {
		return err
	}
	if mem.Kind != KindMemory {
		return newErr(InvalidPortType, "component %q is not a memory component", memoryID.ID)
	}

	key := portRef{id: componentID, port: memoryPort}
	if _, exists := g.memoryBindings[key]; exists {
		return newErr(InvalidConnection, "memory port %q of component %q is already bound", memoryPort, componentID.ID)
	}
	g.memoryBindings[key] = memoryID
	return nil
}

// TargetsOf returns the (component, port) pairs fed by sourceID.sourcePort.
func (g *ConnectionGraph) TargetsOf(sourceID ComponentId, sourcePort string) []portRef {
	g.mu.RLock()
	defer g.mu.RUnlock()
	src := g.bySource[portRef{id: sourceID, port: sourcePort}]
	out := make([]portRef, len(src))
	copy(out, src)
	return out
}

// SourceOf returns the source feeding targetID.targetPort, if any.
func (g *ConnectionGraph) SourceOf(targetID ComponentId, targetPort string) (ComponentId, string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	src, ok := g.portEdges[portRef{id: targetID, port: targetPort}]
	return src.id, src.port, ok
}

// MemoryIDFor returns the memory component id bound to
// componentID.memoryPort, if any.
func (g *ConnectionGraph) MemoryIDFor(componentID ComponentId, memoryPort string) (ComponentId, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.memoryBindings[portRef{id: componentID, port: memoryPort}]
	return id, ok
}

// MemoryBindingsFor returns every memory port binding declared by
// componentID, as a port-name -> memory-id map, used by the engine to
// build per-component memory proxies and to detect sub-levels whose
// components share a memory module, and by Schema.
func (g *ConnectionGraph) MemoryBindingsFor(componentID ComponentId) map[string]ComponentId {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]ComponentId)
	for ref, memID := range g.memoryBindings {
		if ref.id == componentID {
			out[ref.port] = memID
		}
	}
	return out
}

// ValidateRequired checks every registered processing component's
// Required input and memory ports against the accumulated edges and
// bindings, failing with InvalidConnection naming the first
// unconnected one it finds. Ports with Required == false are never
// checked, so a component with no Required ports always passes.
func (g *ConnectionGraph) ValidateRequired() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, inst := range g.registry.Filter(KindProcessing) {
		for _, spec := range inst.Processor.Inputs {
			if !spec.Required {
				continue
			}
			if _, ok := g.portEdges[portRef{id: inst.ID, port: spec.Name}]; !ok {
				return newErr(InvalidConnection, "component %q has an unconnected required input port %q", inst.ID.ID, spec.Name)
			}
		}
		for _, spec := range inst.Processor.MemoryPorts {
			if !spec.Required {
				continue
			}
			if _, ok := g.memoryBindings[portRef{id: inst.ID, port: spec.Name}]; !ok {
				return newErr(InvalidConnection, "component %q has an unconnected required memory port %q", inst.ID.ID, spec.Name)
			}
		}
	}
	return nil
}

// portEdgesSnapshot returns a copy of the target->source port edge map,
// for the execution-order builder.
func (g *ConnectionGraph) portEdgesSnapshot() map[portRef]portRef {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[portRef]portRef, len(g.portEdges))
	for k, v := range g.portEdges {
		out[k] = v
	}
	return out
}
