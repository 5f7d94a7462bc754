package gosim

import "testing"

func procModuleWithPorts(name string, inputs, outputs, memPorts []PortSpec) *ProcessorModule {
	return &ProcessorModule{Name: name, Inputs: inputs, Outputs: outputs, MemoryPorts: memPorts}
}

func newRegistryWithAB(t *testing.T) (*Registry, ComponentId, ComponentId) {
	t.Helper()
	r := NewRegistry()
	a := ComponentId{ID: "a", Type: "proc"}
	b := ComponentId{ID: "b", Type: "proc"}
	amod := procModuleWithPorts("a", nil, []PortSpec{{Name: "out", Kind: PortOutput}}, nil)
	bmod := procModuleWithPorts("b", []PortSpec{{Name: "in", Kind: PortInput}}, nil, nil)
	if err := r.Register(NewProcessingInstance(a, amod)); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := r.Register(NewProcessingInstance(b, bmod)); err != nil {
		t.Fatalf("register b: %v", err)
	}
	return r, a, b
}

func TestConnectHappyPath(t *testing.T) {
	r, a, b := newRegistryWithAB(t)
	g := NewConnectionGraph(r)

	if err := g.Connect(a, "out", b, "in"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	srcID, srcPort, ok := g.SourceOf(b, "in")
	if !ok || srcID != a || srcPort != "out" {
		t.Errorf("expected source (a, out), got (%v, %v, %v)", srcID, srcPort, ok)
	}
	targets := g.TargetsOf(a, "out")
	if len(targets) != 1 || targets[0].id != b || targets[0].port != "in" {
		t.Errorf("expected fan-out target (b, in), got %v", targets)
	}
}

func TestConnectSingleWriterViolation(t *testing.T) {
	r := NewRegistry()
	a := ComponentId{ID: "a", Type: "proc"}
	b := ComponentId{ID: "b", Type: "proc"}
	c := ComponentId{ID: "c", Type: "proc"}
	amod := procModuleWithPorts("a", nil, []PortSpec{{Name: "out", Kind: PortOutput}}, nil)
	bmod := procModuleWithPorts("b", nil, []PortSpec{{Name: "out", Kind: PortOutput}}, nil)
	cmod := procModuleWithPorts("c", []PortSpec{{Name: "in", Kind: PortInput}}, nil, nil)
	for _, reg := range []struct {
		id  ComponentId
		mod *ProcessorModule
	}{{a, amod}, {b, bmod}, {c, cmod}} {
		if err := r.Register(NewProcessingInstance(reg.id, reg.mod)); err != nil {
			t.Fatalf("register %s: %v", reg.id.ID, err)
		}
	}
	g := NewConnectionGraph(r)

	if err := g.Connect(a, "out", c, "in"); err != nil {
		t.Fatalf("first Connect: %v", err)
	}
	err := g.Connect(b, "out", c, "in")
	if !Is(err, InvalidConnection) {
		t.Errorf("expected InvalidConnection on second driver of c.in, got %v", err)
	}
}

func TestConnectFanOutIsAllowed(t *testing.T) {
	r := NewRegistry()
	a := ComponentId{ID: "a", Type: "proc"}
	b := ComponentId{ID: "b", Type: "proc"}
	c := ComponentId{ID: "c", Type: "proc"}
	amod := procModuleWithPorts("a", nil, []PortSpec{{Name: "out", Kind: PortOutput}}, nil)
	bmod := procModuleWithPorts("b", []PortSpec{{Name: "in", Kind: PortInput}}, nil, nil)
	cmod := procModuleWithPorts("c", []PortSpec{{Name: "in", Kind: PortInput}}, nil, nil)
	for _, reg := range []struct {
		id  ComponentId
		mod *ProcessorModule
	}{{a, amod}, {b, bmod}, {c, cmod}} {
		if err := r.Register(NewProcessingInstance(reg.id, reg.mod)); err != nil {
			t.Fatalf("register %s: %v", reg.id.ID, err)
		}
	}
	g := NewConnectionGraph(r)
	if err := g.Connect(a, "out", b, "in"); err != nil {
		t.Fatalf("Connect a->b: %v", err)
	}
	if err := g.Connect(a, "out", c, "in"); err != nil {
		t.Fatalf("Connect a->c (fan-out): %v", err)
	}
	if len(g.TargetsOf(a, "out")) != 2 {
		t.Errorf("expected 2 fan-out targets, got %d", len(g.TargetsOf(a, "out")))
	}
}

func TestConnectInputPortAsSourceIsPortNotFound(t *testing.T) {
	r := NewRegistry()
	a := ComponentId{ID: "a", Type: "proc"}
	b := ComponentId{ID: "b", Type: "proc"}
	amod := procModuleWithPorts("a", []PortSpec{{Name: "in", Kind: PortInput}}, nil, nil)
	bmod := procModuleWithPorts("b", []PortSpec{{Name: "in2", Kind: PortInput}}, nil, nil)
	if err := r.Register(NewProcessingInstance(a, amod)); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := r.Register(NewProcessingInstance(b, bmod)); err != nil {
		t.Fatalf("register b: %v", err)
	}
	g := NewConnectionGraph(r)
	err := g.Connect(a, "in", b, "in2")
	if !Is(err, PortNotFound) {
		t.Errorf("expected PortNotFound (a has no output 'in'), got %v", err)
	}
}

func TestConnectUnknownComponentFails(t *testing.T) {
	r, a, _ := newRegistryWithAB(t)
	g := NewConnectionGraph(r)
	ghost := ComponentId{ID: "ghost", Type: "proc"}
	err := g.Connect(a, "out", ghost, "in")
	if !Is(err, ComponentNotFound) {
		t.Errorf("expected ComponentNotFound, got %v", err)
	}
}

func TestConnectMemorySingleBinding(t *testing.T) {
	r := NewRegistry()
	p := ComponentId{ID: "p", Type: "proc"}
	m1 := ComponentId{ID: "m1", Type: "mem"}
	m2 := ComponentId{ID: "m2", Type: "mem"}
	pmod := procModuleWithPorts("p", nil, nil, []PortSpec{{Name: "state", Kind: PortMemory}})
	if err := r.Register(NewProcessingInstance(p, pmod)); err != nil {
		t.Fatalf("register p: %v", err)
	}
	if err := r.Register(NewMemoryInstance(m1, fakeMemoryCell{})); err != nil {
		t.Fatalf("register m1: %v", err)
	}
	if err := r.Register(NewMemoryInstance(m2, fakeMemoryCell{})); err != nil {
		t.Fatalf("register m2: %v", err)
	}
	g := NewConnectionGraph(r)

	if err := g.ConnectMemory(p, "state", m1); err != nil {
		t.Fatalf("first ConnectMemory: %v", err)
	}
	err := g.ConnectMemory(p, "state", m2)
	if !Is(err, InvalidConnection) {
		t.Errorf("expected InvalidConnection on re-binding an already-bound memory port, got %v", err)
	}

	gotID, ok := g.MemoryIDFor(p, "state")
	if !ok || gotID != m1 {
		t.Errorf("expected state bound to m1, got %v (ok=%v)", gotID, ok)
	}
}

func TestConnectMemoryRejectsNonMemoryTarget(t *testing.T) {
	r, a, b := newRegistryWithAB(t)
	// Give a a memory port for this test.
	a = ComponentId{ID: "with-mem", Type: "proc"}
	amod := procModuleWithPorts("with-mem", nil, nil, []PortSpec{{Name: "state", Kind: PortMemory}})
	if err := r.Register(NewProcessingInstance(a, amod)); err != nil {
		t.Fatalf("register: %v", err)
	}
	g := NewConnectionGraph(r)
	err := g.ConnectMemory(a, "state", b)
	if !Is(err, InvalidPortType) {
		t.Errorf("expected InvalidPortType binding memory port to a non-memory component, got %v", err)
	}
}
