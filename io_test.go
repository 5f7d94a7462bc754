package gosim

import "testing"

func TestInputMapAbsentPortIsNotFound(t *testing.T) {
	in := newInputMap()
	if in.HasInput("x") {
		t.Fatal("expected HasInput to be false for an unset port")
	}
	_, err := in.GetEvent("x")
	if !Is(err, PortNotFound) {
		t.Errorf("expected PortNotFound, got %v", err)
	}
	_, err = GetInputValue[int](in, "x")
	if !Is(err, PortNotFound) {
		t.Errorf("expected PortNotFound from GetInputValue, got %v", err)
	}
}

func TestInputMapSetAndGet(t *testing.T) {
	in := newInputMap()
	in.set("x", NewEvent(5, 10))

	if !in.HasInput("x") {
		t.Fatal("expected HasInput to be true")
	}
	if in.Len() != 1 {
		t.Errorf("expected Len 1, got %d", in.Len())
	}
	v, err := GetInputValue[int](in, "x")
	if err != nil {
		t.Fatalf("GetInputValue: %v", err)
	}
	if v != 10 {
		t.Errorf("expected 10, got %d", v)
	}
	ts, err := in.GetTimestamp("x")
	if err != nil {
		t.Fatalf("GetTimestamp: %v", err)
	}
	if ts != 5 {
		t.Errorf("expected timestamp 5, got %d", ts)
	}
}

func TestInputMapPortsIsSorted(t *testing.T) {
	in := newInputMap()
	in.set("zebra", NewEvent(0, 1))
	in.set("alpha", NewEvent(0, 1))
	in.set("mid", NewEvent(0, 1))

	got := in.Ports()
	want := []string{"alpha", "mid", "zebra"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
			break
		}
	}
}

func TestOutputMapSetUnknownPortFails(t *testing.T) {
	out := newOutputMap(1, []PortSpec{{Name: "declared", Kind: PortOutput}})
	err := SetOutput(out, "undeclared", 1)
	if !Is(err, PortNotFound) {
		t.Errorf("expected PortNotFound, got %v", err)
	}
}

func TestOutputMapSetWrongKindFails(t *testing.T) {
	out := newOutputMap(1, []PortSpec{{Name: "in", Kind: PortInput}})
	err := SetOutput(out, "in", 1)
	if !Is(err, InvalidPortType) {
		t.Errorf("expected InvalidPortType, got %v", err)
	}
}

func TestOutputMapSetStampsCurrentCycle(t *testing.T) {
	out := newOutputMap(42, []PortSpec{{Name: "o", Kind: PortOutput}})
	if err := SetOutput(out, "o", "hi"); err != nil {
		t.Fatalf("SetOutput: %v", err)
	}
	events := out.drain()
	ev, ok := events["o"]
	if !ok {
		t.Fatal("expected event on port o")
	}
	if ev.Timestamp != 42 {
		t.Errorf("expected timestamp 42, got %d", ev.Timestamp)
	}
}

func TestOutputMapSetTypeMismatchAcrossCalls(t *testing.T) {
	out := newOutputMap(1, []PortSpec{{Name: "o", Kind: PortOutput}})
	if err := SetOutput(out, "o", 1); err != nil {
		t.Fatalf("first SetOutput: %v", err)
	}
	err := SetOutput(out, "o", "now a string")
	if !Is(err, TypeMismatch) {
		t.Errorf("expected TypeMismatch on second differently-typed set, got %v", err)
	}
}

func TestOutputMapTypedPortRejectsMismatchAcrossCycles(t *testing.T) {
	declared := []PortSpec{TypedPort[int]("o", PortOutput)}

	first := newOutputMap(1, declared)
	if err := SetOutput(first, "o", 7); err != nil {
		t.Fatalf("SetOutput on cycle 1: %v", err)
	}

	// A fresh OutputMap for the next cycle still carries the same
	// declared PortSpec slice, so the port's pinned payload type must
	// still be enforced even though the per-cycle types map was reset.
	second := newOutputMap(2, declared)
	err := SetOutput(second, "o", "not an int")
	if !Is(err, TypeMismatch) {
		t.Errorf("expected TypeMismatch from a TypedPort declaration honored across cycles, got %v", err)
	}
}

func TestOutputMapWithoutTypedPortAllowsChangingTypeAcrossCycles(t *testing.T) {
	declared := []PortSpec{{Name: "o", Kind: PortOutput}}

	first := newOutputMap(1, declared)
	if err := SetOutput(first, "o", 7); err != nil {
		t.Fatalf("SetOutput on cycle 1: %v", err)
	}
	second := newOutputMap(2, declared)
	if err := SetOutput(second, "o", "a string now"); err != nil {
		t.Errorf("expected no error without a TypedPort declaration, got %v", err)
	}
}

func TestOutputMapEmitEventForwardsVerbatim(t *testing.T) {
	out := newOutputMap(5, []PortSpec{{Name: "o", Kind: PortOutput}})
	original := NewEvent(1, "forwarded")
	if err := out.EmitEvent("o", original); err != nil {
		t.Fatalf("EmitEvent: %v", err)
	}
	events := out.drain()
	ev := events["o"]
	if ev.EventID != original.EventID || ev.Timestamp != original.Timestamp {
		t.Errorf("expected EmitEvent to forward the event unchanged, got %+v vs %+v", ev, original)
	}
}

func TestOutputMapEmitEventUndeclaredPortFails(t *testing.T) {
	out := newOutputMap(5, nil)
	err := out.EmitEvent("missing", NewEvent(0, 1))
	if !Is(err, PortNotFound) {
		t.Errorf("expected PortNotFound, got %v", err)
	}
}
