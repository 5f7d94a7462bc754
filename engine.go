package gosim

import (
	"context"
	"fmt"
	"sync"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// State is the engine's lifecycle state: Built -> Planned -> Running ->
// Halted. A halted engine can still be introspected but never cycles
// again.
type State int

const (
	Built State = iota
	Planned
	Running
	Halted
)

func (s State) String() string {
	switch s {
	case Built:
		return "Built"
	case Planned:
		return "Planned"
	case Running:
		return "Running"
	case Halted:
		return "Halted"
	default:
		return "Unknown"
	}
}

// Concurrency selects how components within one sub-level are evaluated.
// Parallel must be observably identical to Sequential.
type Concurrency int

const (
	Sequential Concurrency = iota
	Parallel
)

// EngineConfig configures an Engine's execution mode and observability.
// Every field is optional; the zero value produces sequential execution
// with fresh, unshared observability registries -- a "works with no
// setup" default.
type EngineConfig struct {
	Concurrency    Concurrency
	ThreadPoolSize int // bounds concurrent evaluations per sub-level in Parallel mode; 0 means unbounded
	Clock          clockz.Clock
	Metrics        *metricz.Registry
	Tracer         *tracez.Tracer
	DiagnosticCap  int // ring buffer capacity for LastDiagnostics; 0 means a default of 256
}

// Diagnostic records one component's evaluation error for one cycle.
// Evaluation errors are never fatal to the sweep, only recorded.
type Diagnostic struct {
	ComponentID ComponentId
	Cycle       uint64
	Err         error
}

// Engine drives the cycle-by-cycle evaluation of a built component
// graph: it owns the registry, the connection graph, the execution
// plan, and the double-buffered output state carried between cycles.
type Engine struct {
	registry *Registry
	graph    *ConnectionGraph

	concurrency Concurrency
	poolSize    int
	clock       clockz.Clock

	metrics *metricz.Registry
	tracer  *tracez.Tracer

	componentErrHooks *hookz.Hooks[ComponentErrorEvent]
	cycleHooks        *hookz.Hooks[CycleCompletedEvent]
	memFailHooks      *hookz.Hooks[MemoryWriteFailureEvent]

	mu        sync.RWMutex
	state     State
	plan      Plan
	planDirty bool
	cycle     uint64

	// previous holds, per source component id, the events it produced on
	// its output ports during the last completed cycle. Empty before the
	// first cycle runs, so cycle 0 sees no inputs anywhere.
	previous map[ComponentId]map[string]Event

	memCells map[ComponentId]MemoryCell

	diagMu        sync.Mutex
	diagnostics   []Diagnostic
	diagnosticCap int
}

// NewEngine wires registry and graph into a runnable Engine. The plan
// is not built until BuildExecutionOrder (or the first Cycle) runs.
func NewEngine(registry *Registry, graph *ConnectionGraph, cfg EngineConfig) *Engine {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = metricz.New()
	}
	metrics.Counter(MetricCyclesTotal)
	metrics.Counter(MetricComponentErrorsTotal)
	metrics.Counter(MetricMemoryRejectedTotal)
	metrics.Gauge(MetricPlanStages)
	metrics.Gauge(MetricCycleDurationMs)

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = tracez.New()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockz.RealClock
	}

	diagCap := cfg.DiagnosticCap
	if diagCap <= 0 {
		diagCap = 256
	}

	memCells := make(map[ComponentId]MemoryCell)
	for _, inst := range registry.Filter(KindMemory) {
		memCells[inst.ID] = inst.Memory
	}

	return &Engine{
		registry:          registry,
		graph:             graph,
		concurrency:       cfg.Concurrency,
		poolSize:          cfg.ThreadPoolSize,
		clock:             clock,
		metrics:           metrics,
		tracer:            tracer,
		componentErrHooks: hookz.New[ComponentErrorEvent](),
		cycleHooks:        hookz.New[CycleCompletedEvent](),
		memFailHooks:      hookz.New[MemoryWriteFailureEvent](),
		state:             Built,
		planDirty:         true,
		previous:          make(map[ComponentId]map[string]Event),
		memCells:          memCells,
		diagnosticCap:     diagCap,
	}
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// CurrentCycle returns the number of cycles completed so far.
func (e *Engine) CurrentCycle() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cycle
}

// Metrics returns the engine's metrics registry.
func (e *Engine) Metrics() *metricz.Registry {
	return e.metrics
}

// Tracer returns the engine's tracer.
func (e *Engine) Tracer() *tracez.Tracer {
	return e.tracer
}

// BuildExecutionOrder computes (or recomputes) the execution plan from
// the current processing subgraph. It is idempotent: a second call
// with no intervening graph change is a no-op, since the plan only
// needs to change when the graph does.
func (e *Engine) BuildExecutionOrder() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Running {
		return newErr(InvalidConnection, "cannot rebuild execution plan while engine is running")
	}
	if !e.planDirty && e.state != Built {
		return nil
	}

	var ids []ComponentId
	for _, inst := range e.registry.Filter(KindProcessing) {
		ids = append(ids, inst.ID)
	}
	plan, err := buildExecutionOrder(ids, e.graph.portEdgesSnapshot())
	if err != nil {
		return err
	}

	e.plan = plan
	e.planDirty = false
	if e.state != Halted {
		e.state = Planned
	}
	e.metrics.Gauge(MetricPlanStages).Set(float64(len(plan.Stages)))
	capitan.Info(context.Background(), SignalPlanBuilt,
		FieldStageCount.Field(len(plan.Stages)),
	)
	return nil
}

// MarkGraphChanged flags the current plan as stale, forcing the next
// BuildExecutionOrder call to recompute it. Callers that mutate the
// connection graph after the first plan must call this.
func (e *Engine) MarkGraphChanged() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.planDirty = true
}

// Halt transitions the engine to Halted. A halted engine rejects
// further Cycle calls; its state and last diagnostics remain readable.
func (e *Engine) Halt() {
	e.mu.Lock()
	e.state = Halted
	e.mu.Unlock()
	capitan.Info(context.Background(), SignalEngineHalted, FieldCycle.Field(int(e.CurrentCycle())))
}

// Cycle runs exactly one evaluation sweep: every processing component
// reads the previous cycle's outputs and the current memory snapshot,
// produces this cycle's outputs, and every memory component commits
// its writes into a fresh snapshot -- all after the full sweep
// completes.
func (e *Engine) Cycle(ctx context.Context) error {
	e.mu.Lock()
	if e.state == Built || e.planDirty {
		e.mu.Unlock()
		if err := e.BuildExecutionOrder(); err != nil {
			return err
		}
		e.mu.Lock()
	}
	if e.state == Halted {
		e.mu.Unlock()
		return newErr(InvalidConnection, "engine is halted")
	}
	e.state = Running
	plan := e.plan
	cycleNum := e.cycle
	prevOutputs := e.previous
	e.mu.Unlock()

	start := e.clock.Now()
	ctx, span := e.tracer.StartSpan(ctx, SpanCycle)
	span.SetTag(TagStage, fmt.Sprintf("%d", cycleNum))
	defer span.Finish()

	capitan.Info(ctx, SignalCycleStarted, FieldCycle.Field(int(cycleNum)))

	nextOutputs := make(map[ComponentId]map[string]Event)
	var erroredCount int

	for stageIdx, stage := range plan.Stages {
		for subIdx, sub := range stage.SubLevels {
			results := e.evaluateSubLevel(ctx, sub, cycleNum, prevOutputs, stageIdx, subIdx)
			for id, res := range results {
				if res.err != nil {
					erroredCount++
					e.recordDiagnostic(Diagnostic{ComponentID: id, Cycle: cycleNum, Err: res.err})
					e.metrics.Counter(MetricComponentErrorsTotal).Inc()
					capitan.Warn(ctx, SignalComponentErrored,
						FieldComponentID.Field(id.ID),
						FieldCycle.Field(int(cycleNum)),
						FieldError.Field(res.err.Error()),
					)
					_ = e.componentErrHooks.Emit(ctx, EventComponentError, ComponentErrorEvent{ //nolint:errcheck
						ComponentID: id, Cycle: cycleNum, Err: res.err,
					})
					continue
				}
				nextOutputs[id] = res.events
			}
		}
	}

	e.commitMemory(ctx, cycleNum)

	e.mu.Lock()
	e.previous = nextOutputs
	e.cycle++
	if e.state != Halted {
		e.state = Planned
	}
	e.mu.Unlock()

	elapsed := e.clock.Now().Sub(start)
	span.SetTag(TagSuccess, boolTag(erroredCount == 0))
	e.metrics.Counter(MetricCyclesTotal).Inc()
	e.metrics.Gauge(MetricCycleDurationMs).Set(float64(elapsed.Milliseconds()))

	capitan.Info(ctx, SignalCycleCompleted,
		FieldCycle.Field(int(cycleNum)),
		FieldDurationMs.Field(float64(elapsed.Milliseconds())),
	)
	_ = e.cycleHooks.Emit(ctx, EventCycleCompleted, CycleCompletedEvent{ //nolint:errcheck
		Cycle: cycleNum, ErroredCount: erroredCount,
	})
	return nil
}

type evalResult struct {
	events map[string]Event
	err    error
}

// sharesWritableMemory reports whether two or more components among
// ids bind a memory port to the same memory component id. Running such
// components concurrently would race on that module's writes with no
// defined ordering, so the sub-level containing them must be
// serialized instead.
func (e *Engine) sharesWritableMemory(ids []ComponentId) bool {
	owner := make(map[ComponentId]ComponentId, len(ids))
	for _, id := range ids {
		for _, memID := range e.graph.MemoryBindingsFor(id) {
			if first, ok := owner[memID]; ok && first != id {
				return true
			}
			owner[memID] = id
		}
	}
	return false
}

// evaluateSubLevel runs every component in sub, either sequentially or
// concurrently depending on e.concurrency. The two modes must produce
// identical results: components in one sub-level share no port
// dependency, but two of them could still name the same memory module
// through independent memory-port bindings (ConnectMemory only
// enforces single-binding per component/port, not exclusivity across
// components). When sharesWritableMemory detects that, this sub-level
// falls back to sequential evaluation regardless of e.concurrency, so
// no two components ever write the same memory module concurrently.
func (e *Engine) evaluateSubLevel(ctx context.Context, sub SubLevel, cycleNum uint64, prevOutputs map[ComponentId]map[string]Event, stageIdx, subIdx int) map[ComponentId]evalResult {
	results := make(map[ComponentId]evalResult, len(sub.Components))

	if e.concurrency == Sequential || len(sub.Components) <= 1 || e.sharesWritableMemory(sub.Components) {
		for _, id := range sub.Components {
			results[id] = e.evaluateOne(ctx, id, cycleNum, prevOutputs, stageIdx, subIdx)
		}
		return results
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	var sem chan struct{}
	if e.poolSize > 0 {
		sem = make(chan struct{}, e.poolSize)
	}

	for _, id := range sub.Components {
		wg.Add(1)
		go func(id ComponentId) {
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					results[id] = evalResult{err: fmt.Errorf("component %s panicked: %v", id.ID, r)}
					mu.Unlock()
				}
				wg.Done()
			}()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			res := e.evaluateOne(ctx, id, cycleNum, prevOutputs, stageIdx, subIdx)
			mu.Lock()
			results[id] = res
			mu.Unlock()
		}(id)
	}
	wg.Wait()
	return results
}

func (e *Engine) evaluateOne(ctx context.Context, id ComponentId, cycleNum uint64, prevOutputs map[ComponentId]map[string]Event, stageIdx, subIdx int) evalResult {
	inst, err := e.registry.Get(id)
	if err != nil {
		return evalResult{err: err}
	}
	module := inst.Processor

	_, span := e.tracer.StartSpan(ctx, SpanComponent)
	span.SetTag(TagComponentID, id.ID)
	span.SetTag(TagStage, fmt.Sprintf("%d", stageIdx))
	span.SetTag(TagSubLevel, fmt.Sprintf("%d", subIdx))
	defer span.Finish()

	in := newInputMap()
	for _, spec := range module.Inputs {
		srcID, srcPort, ok := e.graph.SourceOf(id, spec.Name)
		if !ok {
			continue
		}
		events, ok := prevOutputs[srcID]
		if !ok {
			continue
		}
		if ev, ok := events[srcPort]; ok {
			in.set(spec.Name, ev)
		}
	}

	bindings := e.graph.MemoryBindingsFor(id)
	proxy := newMemoryProxy(id, bindings, e.memCells, func(port, addr string, memID ComponentId, werr error) {
		e.reportMemoryWriteRejected(ctx, id, memID, port, addr, werr)
	})

	out := newOutputMap(cycleNum, module.Outputs)
	evalCtx := &EvalContext{ComponentID: id, Cycle: cycleNum, Inputs: in, Memory: proxy}

	if err := module.Evaluate(evalCtx, out); err != nil {
		span.SetTag(TagSuccess, "false")
		span.SetTag(TagError, err.Error())
		return evalResult{err: err}
	}
	span.SetTag(TagSuccess, "true")
	return evalResult{events: out.drain()}
}

// commitMemory applies each memory component's per-cycle updater, then
// takes its snapshot, making this cycle's writes visible to the next
// cycle's reads. This always runs after the full sweep, so
// writes made by any component this cycle can never be observed by
// another component in the same cycle.
func (e *Engine) commitMemory(ctx context.Context, cycleNum uint64) {
	_, span := e.tracer.StartSpan(ctx, SpanCommit)
	span.SetTag(TagStage, fmt.Sprintf("%d", cycleNum))
	defer span.Finish()

	for _, inst := range e.registry.Filter(KindMemory) {
		inst.Memory.Cycle()
		inst.Memory.CreateSnapshot()
	}
}

// reportMemoryWriteRejected records a rejected memory write: the
// snapshot keeps its previous value, but the failure is surfaced
// via metrics, a log signal, and the OnMemoryWriteRejected hook.
func (e *Engine) reportMemoryWriteRejected(ctx context.Context, componentID, memID ComponentId, port, addr string, werr error) {
	e.metrics.Counter(MetricMemoryRejectedTotal).Inc()
	capitan.Warn(ctx, SignalMemoryWriteFailed,
		FieldComponentID.Field(componentID.ID),
		FieldPort.Field(port),
		FieldError.Field(werr.Error()),
	)
	_ = e.memFailHooks.Emit(ctx, EventMemoryWriteFailure, MemoryWriteFailureEvent{ //nolint:errcheck
		ComponentID: componentID, MemoryID: memID, Port: port, Address: addr, Err: werr,
	})
}

func (e *Engine) recordDiagnostic(d Diagnostic) {
	e.diagMu.Lock()
	defer e.diagMu.Unlock()
	e.diagnostics = append(e.diagnostics, d)
	if len(e.diagnostics) > e.diagnosticCap {
		e.diagnostics = e.diagnostics[len(e.diagnostics)-e.diagnosticCap:]
	}
}

// LastDiagnostics returns every recorded component-evaluation error for
// cycle, most recent registration order preserved.
func (e *Engine) LastDiagnostics(cycle uint64) []Diagnostic {
	e.diagMu.Lock()
	defer e.diagMu.Unlock()
	var out []Diagnostic
	for _, d := range e.diagnostics {
		if d.Cycle == cycle {
			out = append(out, d)
		}
	}
	return out
}

// Run drives the engine for up to maxCycles cycles, stopping early if
// ctx is canceled or the engine halts. Reaching the cap halts the
// engine; an early return leaves it resumable. It returns the number
// of cycles actually completed.
func (e *Engine) Run(ctx context.Context, maxCycles uint64) (uint64, error) {
	var done uint64
	for done < maxCycles {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if e.State() == Halted {
			return done, nil
		}
		if err := e.Cycle(ctx); err != nil {
			return done, err
		}
		done++
	}
	e.Halt()
	return done, nil
}

// QueryMemory reads addr directly from memID's current read snapshot,
// bypassing any processing component's declared memory ports. Useful
// for test assertions and external introspection between cycles.
func QueryMemory[T any](e *Engine, memID ComponentId, addr string) (T, bool, error) {
	var zero T
	cell, ok := e.memCells[memID]
	if !ok {
		return zero, false, newErr(ComponentNotFound, "memory component %q not found", memID.ID)
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

// OnComponentError subscribes handler to every component evaluation
// error, across all cycles.
func (e *Engine) OnComponentError(handler func(context.Context, ComponentErrorEvent) error) error {
	_, err := e.componentErrHooks.Hook(EventComponentError, handler)
	return err
}

// OnCycleCompleted subscribes handler to every completed cycle.
func (e *Engine) OnCycleCompleted(handler func(context.Context, CycleCompletedEvent) error) error {
	_, err := e.cycleHooks.Hook(EventCycleCompleted, handler)
	return err
}

// OnMemoryWriteRejected subscribes handler to every rejected memory
// write (a type mismatch between the write payload and the memory
// module's declared type).
func (e *Engine) OnMemoryWriteRejected(handler func(context.Context, MemoryWriteFailureEvent) error) error {
	_, err := e.memFailHooks.Hook(EventMemoryWriteFailure, handler)
	return err
}

// Close releases the engine's observability resources. It does not
// affect registered components or accumulated memory state.
func (e *Engine) Close() error {
	e.tracer.Close()
	e.componentErrHooks.Close()
	e.cycleHooks.Close()
	e.memFailHooks.Close()
	return nil
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
