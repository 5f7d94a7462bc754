// Package simtesting provides test doubles and assertion helpers for
// gosim-based component graphs: configurable return behavior, call
// history, and panic injection, with no assertion library -- plain
// *testing.T calls throughout.
package simtesting

import (
	"sync"
	"testing"
	"time"

	"github.com/windofbitter/gosim"
)

// MockCall records one invocation of a MockProcessingComponent.
type MockCall struct {
	Cycle     uint64
	InputKeys []string
	Timestamp time.Time
}

// MockProcessingComponent is a configurable gosim.ProcessorModule double.
// By default it records every call and returns nil with no outputs;
// configure WithEvaluate, WithReturnErr, or WithPanic to change that.
type MockProcessingComponent struct {
	mu          sync.RWMutex
	name        string
	inputs      []gosim.PortSpec
	outputs     []gosim.PortSpec
	memoryPorts []gosim.PortSpec
	evaluate    func(*gosim.EvalContext, *gosim.OutputMap) error
	returnErr   error
	panicMsg    string

	callCount   int64
	callHistory []MockCall
	maxHistory  int
}

// NewMockProcessingComponent creates a mock with no declared ports. Use
// WithInputs/WithOutputs/WithMemoryPorts to declare the ports it should
// expose once wired into a Builder.
func NewMockProcessingComponent(name string) *MockProcessingComponent {
	return &MockProcessingComponent{name: name, maxHistory: 100}
}

// WithInputs declares the component's input ports.
func (m *MockProcessingComponent) WithInputs(specs ...gosim.PortSpec) *MockProcessingComponent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = specs
	return m
}

// WithOutputs declares the component's output ports.
func (m *MockProcessingComponent) WithOutputs(specs ...gosim.PortSpec) *MockProcessingComponent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputs = specs
	return m
}

// WithMemoryPorts declares the component's memory ports.
func (m *MockProcessingComponent) WithMemoryPorts(specs ...gosim.PortSpec) *MockProcessingComponent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memoryPorts = specs
	return m
}

// WithEvaluate overrides the default no-op behavior with fn, still
// wrapped in call recording and panic/error injection.
func (m *MockProcessingComponent) WithEvaluate(fn func(*gosim.EvalContext, *gosim.OutputMap) error) *MockProcessingComponent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluate = fn
	return m
}

// WithReturnErr configures every call to fail with err, regardless of
// any WithEvaluate override.
func (m *MockProcessingComponent) WithReturnErr(err error) *MockProcessingComponent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.returnErr = err
	return m
}

// WithPanic configures every call to panic with msg, for testing the
// engine's per-component panic recovery in parallel mode.
func (m *MockProcessingComponent) WithPanic(msg string) *MockProcessingComponent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicMsg = msg
	return m
}

// WithHistorySize configures how many calls to keep in history. Zero
// disables history tracking.
func (m *MockProcessingComponent) WithHistorySize(size int) *MockProcessingComponent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxHistory = size
	if size == 0 {
		m.callHistory = nil
	} else if len(m.callHistory) > size {
		m.callHistory = m.callHistory[len(m.callHistory)-size:]
	}
	return m
}

// Module builds the gosim.ProcessorModule this mock backs. Register it
// with a Builder via gosim.NewProcessingInstance or Builder.AddProcessing.
func (m *MockProcessingComponent) Module() *gosim.ProcessorModule {
	return &gosim.ProcessorModule{
		Name:        m.name,
		Inputs:      m.inputs,
		Outputs:     m.outputs,
		MemoryPorts: m.memoryPorts,
		Evaluate:    m.record,
	}
}

func (m *MockProcessingComponent) record(ctx *gosim.EvalContext, out *gosim.OutputMap) error {
	m.mu.Lock()
	m.callCount++
	if m.maxHistory > 0 {
		call := MockCall{Cycle: ctx.Cycle, InputKeys: ctx.Inputs.Ports(), Timestamp: time.Now()}
		m.callHistory = append(m.callHistory, call)
		if len(m.callHistory) > m.maxHistory {
			m.callHistory = m.callHistory[1:]
		}
	}
	panicMsg := m.panicMsg
	returnErr := m.returnErr
	evaluate := m.evaluate
	m.mu.Unlock()

	if panicMsg != "" {
		panic(panicMsg)
	}
	if returnErr != nil {
		return returnErr
	}
	if evaluate != nil {
		return evaluate(ctx, out)
	}
	return nil
}

// CallCount returns the number of times the mock has been evaluated.
func (m *MockProcessingComponent) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int(m.callCount)
}

// CallHistory returns a copy of recorded calls.
func (m *MockProcessingComponent) CallHistory() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MockCall, len(m.callHistory))
	copy(out, m.callHistory)
	return out
}

// Reset clears call tracking.
func (m *MockProcessingComponent) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.callHistory = nil
}

// Value wraps a plain value type so it satisfies gosim.Cloner[Value[T]]
// via a shallow copy, for tests that don't need custom clone semantics
// (e.g. plain strings, ints, small structs with no reference fields).
type Value[T any] struct {
	V T
}

// Clone implements gosim.Cloner[Value[T]].
func (v Value[T]) Clone() Value[T] {
	return v
}

// NewMockMemoryComponent builds a memory component instance backed by a
// plain value type T (wrapped in Value[T]), ready to register under id
// via Builder.AddMemory.
func NewMockMemoryComponent[T any](id gosim.ComponentId) gosim.ComponentInstance {
	mod := gosim.NewMemoryModule[Value[T]]()
	return gosim.NewMemoryInstance(id, mod)
}

// Assertion helpers.

// AssertEvaluated verifies that mock was evaluated exactly n times.
func AssertEvaluated(t *testing.T, mock *MockProcessingComponent, n int) {
	t.Helper()
	if got := mock.CallCount(); got != n {
		t.Errorf("expected component to be evaluated %d times, got %d", n, got)
	}
}

// AssertNotEvaluated verifies that mock was never evaluated.
func AssertNotEvaluated(t *testing.T, mock *MockProcessingComponent) {
	t.Helper()
	AssertEvaluated(t, mock, 0)
}
