package gosim

import (
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Signal constants for engine lifecycle and cycle events, collapsed
// into one file since the engine is the sole observable component here.
const (
	SignalPlanBuilt         capitan.Signal = "engine.plan.built"
	SignalCycleStarted      capitan.Signal = "engine.cycle.started"
	SignalCycleCompleted    capitan.Signal = "engine.cycle.completed"
	SignalComponentErrored  capitan.Signal = "engine.component.errored"
	SignalMemoryWriteFailed capitan.Signal = "engine.memory.write_failed"
	SignalEngineHalted      capitan.Signal = "engine.halted"
)

// Field keys used with the signals above.
var (
	FieldComponentID = capitan.NewStringKey("component_id")
	FieldPort        = capitan.NewStringKey("port")
	FieldCycle       = capitan.NewIntKey("cycle")
	FieldStageCount  = capitan.NewIntKey("stage_count")
	FieldError       = capitan.NewStringKey("error")
	FieldDurationMs  = capitan.NewFloat64Key("duration_ms")
)

// Metrics keys exposed on Engine.Metrics().
const (
	MetricCyclesTotal          = metricz.Key("engine.cycles.total")
	MetricComponentErrorsTotal = metricz.Key("engine.component.errors.total")
	MetricMemoryRejectedTotal  = metricz.Key("engine.memory.write_rejected.total")
	MetricPlanStages           = metricz.Key("engine.plan.stages")
	MetricCycleDurationMs      = metricz.Key("engine.cycle.duration_ms")
)

// Span keys and tags exposed on Engine.Tracer().
const (
	SpanCycle     = tracez.Key("engine.cycle")
	SpanComponent = tracez.Key("engine.component.evaluate")
	SpanCommit    = tracez.Key("engine.memory.commit")
)

var (
	TagComponentID = tracez.Tag("engine.component_id")
	TagStage       = tracez.Tag("engine.stage")
	TagSubLevel    = tracez.Tag("engine.sub_level")
	TagSuccess     = tracez.Tag("engine.success")
	TagError       = tracez.Tag("engine.error")
)

// Hook event keys for Engine.On... subscriptions.
const (
	EventComponentError     = hookz.Key("engine.component_error")
	EventCycleCompleted     = hookz.Key("engine.cycle_completed")
	EventMemoryWriteFailure = hookz.Key("engine.memory_write_failure")
)

// ComponentErrorEvent is published via hookz whenever a component's
// Evaluate returns an error. The error is recovered locally: the
// component simply produces no outputs for the cycle.
type ComponentErrorEvent struct {
	ComponentID ComponentId
	Cycle       uint64
	Err         error
}

// CycleCompletedEvent is published once per completed cycle.
type CycleCompletedEvent struct {
	Cycle        uint64
	ErroredCount int
}

// MemoryWriteFailureEvent is published when a memory write is rejected
// for a type mismatch; the snapshot retains its previous value.
type MemoryWriteFailureEvent struct {
	ComponentID ComponentId
	MemoryID    ComponentId
	Port        string
	Address     string
	Err         error
}
