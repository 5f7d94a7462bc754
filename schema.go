package gosim

import (
	"encoding/json"
	"strconv"
)

// FlowVariant discriminates the Flow implementations below, used for
// runtime type identification when walking a Schema.
type FlowVariant string

const (
	FlowVariantPlan      FlowVariant = "plan"
	FlowVariantStage     FlowVariant = "stage"
	FlowVariantSubLevel  FlowVariant = "sub_level"
	FlowVariantComponent FlowVariant = "component"
)

// Flow describes how a Node's children relate to it.
type Flow interface {
	Variant() FlowVariant
}

// PlanFlow is the root: an ordered sequence of stage nodes.
type PlanFlow struct {
	Stages []Node `json:"stages"`
}

func (PlanFlow) Variant() FlowVariant { return FlowVariantPlan }

// StageFlow holds the sub-levels that run, in order, within one stage.
type StageFlow struct {
	SubLevels []Node `json:"sub_levels"`
}

func (StageFlow) Variant() FlowVariant { return FlowVariantStage }

// SubLevelFlow holds the components that may run concurrently within
// one sub-level.
type SubLevelFlow struct {
	Components []Node `json:"components"`
}

func (SubLevelFlow) Variant() FlowVariant { return FlowVariantSubLevel }

// ComponentFlow is a leaf node describing one component's declared
// memory bindings. Component nodes with no memory bindings have no
// Flow (nil); memory components do not appear as nodes at all.
type ComponentFlow struct {
	MemoryBindings map[string]string `json:"memory_bindings,omitempty"`
}

func (ComponentFlow) Variant() FlowVariant { return FlowVariantComponent }

// Node is one node in the schema tree: a plan, a stage, a sub-level, or
// a component. Leaf component nodes carry Kind/ID instead of a Flow
// when they have no memory bindings to show.
type Node struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Kind string `json:"kind,omitempty"`
	Flow Flow   `json:"flow,omitempty"`
}

type nodeJSON struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Kind string `json:"kind,omitempty"`
	Flow Flow   `json:"flow,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (n Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(nodeJSON{Type: n.Type, ID: n.ID, Kind: n.Kind, Flow: n.Flow})
}

// Schema is a serializable snapshot of an engine's execution plan and
// the memory bindings of its processing components, useful for
// debugging and tooling without running a cycle. Port-to-port edges
// and memory components are not included.
type Schema struct {
	Root Node `json:"root"`
}

// Schema renders the engine's current execution plan and connection
// graph as a Schema tree. It calls BuildExecutionOrder first if the
// plan is stale, so the returned tree always reflects the live graph.
func (e *Engine) Schema() (Schema, error) {
	if err := e.BuildExecutionOrder(); err != nil {
		return Schema{}, err
	}
	e.mu.RLock()
	plan := e.plan
	e.mu.RUnlock()

	stageNodes := make([]Node, 0, len(plan.Stages))
	for si, stage := range plan.Stages {
		subNodes := make([]Node, 0, len(stage.SubLevels))
		for _, sub := range stage.SubLevels {
			compNodes := make([]Node, 0, len(sub.Components))
			for _, id := range sub.Components {
				compNodes = append(compNodes, e.componentNode(id))
			}
			subNodes = append(subNodes, Node{
				Type: "sub_level",
				Flow: SubLevelFlow{Components: compNodes},
			})
		}
		stageNodes = append(stageNodes, Node{
			Type: "stage",
			ID:   strconv.Itoa(si),
			Flow: StageFlow{SubLevels: subNodes},
		})
	}

	return Schema{Root: Node{
		Type: "plan",
		Flow: PlanFlow{Stages: stageNodes},
	}}, nil
}

func (e *Engine) componentNode(id ComponentId) Node {
	bindings := e.graph.MemoryBindingsFor(id)
	var flow Flow
	if len(bindings) > 0 {
		m := make(map[string]string, len(bindings))
		for port, memID := range bindings {
			m[port] = memID.ID
		}
		flow = ComponentFlow{MemoryBindings: m}
	}
	return Node{Type: "component", ID: id.ID, Kind: id.Type, Flow: flow}
}

// Walk traverses the schema tree depth-first, pre-order.
func (s Schema) Walk(fn func(Node)) {
	walkNode(s.Root, fn)
}

func walkNode(node Node, fn func(Node)) {
	fn(node)
	if node.Flow == nil {
		return
	}
	switch f := node.Flow.(type) {
	case PlanFlow:
		for _, n := range f.Stages {
			walkNode(n, fn)
		}
	case StageFlow:
		for _, n := range f.SubLevels {
			walkNode(n, fn)
		}
	case SubLevelFlow:
		for _, n := range f.Components {
			walkNode(n, fn)
		}
	case ComponentFlow:
		// leaf
	}
}

// FindByID returns the first component node with the given id.
func (s Schema) FindByID(id string) *Node {
	var result *Node
	s.Walk(func(n Node) {
		if result == nil && n.Type == "component" && n.ID == id {
			found := n
			result = &found
		}
	})
	return result
}

// Count returns the total number of nodes in the schema.
func (s Schema) Count() int {
	count := 0
	s.Walk(func(Node) { count++ })
	return count
}
