package gosim

import "sort"

// InputMap is a component's assembled input collection for one cycle,
// built by the engine from the previous cycle's output buffer. Absent
// ports read as not-found, never as a zero value.
type InputMap struct {
	events map[string]Event
}

func newInputMap() *InputMap {
	return &InputMap{events: make(map[string]Event)}
}

func (in *InputMap) set(port string, e Event) {
	in.events[port] = e
}

// GetEvent returns the full Event on port, or a PortNotFound error.
func (in *InputMap) GetEvent(port string) (Event, error) {
	e, ok := in.events[port]
	if !ok {
		return Event{}, newErr(PortNotFound, "input port %q has no value this cycle", port)
	}
	return e, nil
}

// GetTimestamp returns the cycle at which the value on port was produced.
func (in *InputMap) GetTimestamp(port string) (uint64, error) {
	e, err := in.GetEvent(port)
	if err != nil {
		return 0, err
	}
	return e.Timestamp, nil
}

// HasInput reports whether port carries a value this cycle.
func (in *InputMap) HasInput(port string) bool {
	_, ok := in.events[port]
	return ok
}

// Len returns the number of ports carrying a value this cycle.
func (in *InputMap) Len() int {
	return len(in.events)
}

// Ports returns the names of ports carrying a value this cycle, sorted
// for deterministic iteration.
func (in *InputMap) Ports() []string {
	out := make([]string, 0, len(in.events))
	for p := range in.events {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// GetInputValue returns the typed payload on port, or an error if the
// port is absent this cycle or its payload is not a T.
func GetInputValue[T any](in *InputMap, port string) (T, error) {
	var zero T
	e, err := in.GetEvent(port)
	if err != nil {
		return zero, err
	}
	return Get[T](e.Payload)
}

// OutputMap is a component's output collection for one cycle. It is
// strict: only the component's declared output ports may be set, and
// every set on a given port within the map's lifetime must agree on
// payload type. An any-port, undeclared-output variant was considered
// and dropped in favor of this strict one; see DESIGN.md.
type OutputMap struct {
	cycle    uint64
	declared []PortSpec
	events   map[string]Event
	types    map[string]string
}

func newOutputMap(cycle uint64, declared []PortSpec) *OutputMap {
	return &OutputMap{
		cycle:    cycle,
		declared: declared,
		events:   make(map[string]Event),
		types:    make(map[string]string),
	}
}

func (o *OutputMap) findDeclared(port string) (PortSpec, bool) {
	for _, p := range o.declared {
		if p.Name == port {
			return p, true
		}
	}
	return PortSpec{}, false
}

// SetOutput stores v on port, tagging it with the current cycle number
// as its timestamp. Fails with PortNotFound if port was not declared
// on the component's module, TypeMismatch if port carries a PayloadType
// declaration (see TypedPort) that v does not satisfy, or TypeMismatch
// if a prior set on the same port this cycle used a different payload
// type (this second check also catches undeclared-type ports, but only
// within one cycle; TypedPort is what makes the declaration persist
// across cycles).
func SetOutput[T any](o *OutputMap, port string, v T) error {
	spec, ok := o.findDeclared(port)
	if !ok {
		return newErr(PortNotFound, "output port %q is not declared", port)
	}
	if spec.Kind != PortOutput {
		return newErr(InvalidPortType, "port %q is not an output port", port)
	}
	tv := NewTypedValue(v)
	if spec.PayloadType != "" && spec.PayloadType != tv.TypeName() {
		return newErr(TypeMismatch, "output port %q: declared type %s, got %s", port, spec.PayloadType, tv.TypeName())
	}
	if existing, seen := o.types[port]; seen && existing != tv.TypeName() {
		return newErr(TypeMismatch, "output port %q: expected %s, got %s", port, existing, tv.TypeName())
	}
	o.types[port] = tv.TypeName()
	o.events[port] = Event{Payload: tv, EventID: nextEventID(), Timestamp: o.cycle}
	return nil
}

// EmitEvent stores a caller-supplied Event verbatim on port, without
// rewrapping it. Used to forward an input event to an output port
// unchanged (e.g. a pass-through component).
func (o *OutputMap) EmitEvent(port string, e Event) error {
	if _, ok := o.findDeclared(port); !ok {
		return newErr(PortNotFound, "output port %q is not declared", port)
	}
	o.events[port] = e
	return nil
}

// drain returns the events accumulated on this map, for the engine's
// internal use when folding them into the next cycle's output buffer.
func (o *OutputMap) drain() map[string]Event {
	return o.events
}
