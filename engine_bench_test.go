package gosim

import (
	"context"
	"testing"
)

// Focused benchmarks for the cycle engine -- measuring sequential vs.
// parallel sweep throughput over graphs of varying fan-out width.

func buildBenchFanOut(width int, cfg EngineConfig) *Engine {
	builder := NewBuilder()
	src := ComponentId{ID: "source"}
	builder.AddProcessing(src, emitCycleNumber("source", "out"))

	sink := ComponentId{ID: "sink"}
	sinkInputs := make([]PortSpec, width)
	for i := 0; i < width; i++ {
		sinkInputs[i] = PortSpec{Name: portName(i), Kind: PortInput}
	}
	builder.AddProcessing(sink, &ProcessorModule{
		Name:     "sink",
		Inputs:   sinkInputs,
		Evaluate: func(*EvalContext, *OutputMap) error { return nil },
	})

	for i := 0; i < width; i++ {
		id := ComponentId{ID: portName(i)}
		builder.AddProcessing(id, forwardUint64(portName(i), "in", "out"))
		builder.Connect(src, "out", id, "in")
		builder.Connect(id, "out", sink, portName(i))
	}

	eng, err := builder.Build(cfg)
	if err != nil {
		panic(err)
	}
	return eng
}

func portName(i int) string {
	return string(rune('a' + i))
}

func BenchmarkEngineCycle(b *testing.B) {
	ctx := context.Background()

	b.Run("Sequential/Width8", func(b *testing.B) {
		eng := buildBenchFanOut(8, EngineConfig{Concurrency: Sequential})
		defer eng.Close()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if err := eng.Cycle(ctx); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Parallel/Width8", func(b *testing.B) {
		eng := buildBenchFanOut(8, EngineConfig{Concurrency: Parallel, ThreadPoolSize: 4})
		defer eng.Close()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if err := eng.Cycle(ctx); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Sequential/Width20", func(b *testing.B) {
		eng := buildBenchFanOut(20, EngineConfig{Concurrency: Sequential})
		defer eng.Close()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if err := eng.Cycle(ctx); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Parallel/Width20", func(b *testing.B) {
		eng := buildBenchFanOut(20, EngineConfig{Concurrency: Parallel, ThreadPoolSize: 8})
		defer eng.Close()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if err := eng.Cycle(ctx); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkBuildExecutionOrder(b *testing.B) {
	eng := buildBenchFanOut(20, EngineConfig{})
	defer eng.Close()
	eng.MarkGraphChanged()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		eng.MarkGraphChanged()
		if err := eng.BuildExecutionOrder(); err != nil {
			b.Fatal(err)
		}
	}
}
