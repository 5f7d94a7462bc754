package gosim

// PortType classifies a port as a data input, data output, or memory
// binding point.
type PortType int

const (
	PortInput PortType = iota
	PortOutput
	PortMemory
)

func (p PortType) String() string {
	switch p {
	case PortInput:
		return "Input"
	case PortOutput:
		return "Output"
	case PortMemory:
		return "Memory"
	default:
		return "Unknown"
	}
}

// CanConnectTo reports whether a port of type p may be the source of a
// connection terminating at a port of type other: Output -> Input, and
// Memory <-> Memory only.
func (p PortType) CanConnectTo(other PortType) bool {
	switch {
	case p == PortOutput && other == PortInput:
		return true
	case p == PortMemory && other == PortMemory:
		return true
	default:
		return false
	}
}

// PortSpec describes one declared port on a processing component.
// Required, if true on an input or memory port, makes
// ConnectionGraph.ValidateRequired (run by Builder.Build) reject the
// engine if that port has no source or memory binding by build time.
// It has no effect on output ports. PayloadType, if set, pins that
// port's payload type for the component's whole lifetime: every
// SetOutput call on it, in any cycle, must agree with this
// declaration, not just calls within the same cycle. Set it with
// TypedPort rather than assigning it directly.
type PortSpec struct {
	Name        string
	Kind        PortType
	Required    bool
	PayloadType string
}

// TypedPort declares a port whose payload type is pinned to T for the
// component's lifetime, the persistent counterpart to the cycle-scoped
// type check OutputMap already performs on every port.
func TypedPort[T any](name string, kind PortType) PortSpec {
	var zero T
	return PortSpec{Name: name, Kind: kind, PayloadType: NewTypedValue(zero).TypeName()}
}
