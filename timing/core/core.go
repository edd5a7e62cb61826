// Package core provides the cycle-accurate CPU core model.
// It wraps the pipeline implementation to provide a high-level interface.
package core

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/mipssim/emu"
	"github.com/sarchlab/mipssim/insts"
	"github.com/sarchlab/mipssim/timing/latency"
	"github.com/sarchlab/mipssim/timing/pipeline"
)

// ErrCycleLimit is returned by Run when the program has not drained from
// the pipeline within the cycle limit.
var ErrCycleLimit = errors.New("cycle limit reached before the pipeline drained")

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Stalls is the number of stall cycles.
	Stalls uint64
	// Flushes is the number of pipeline flushes.
	Flushes uint64
	// StallPercentage is Stalls over retired instructions plus Stalls.
	StallPercentage float64
	// Seconds is the simulated time at the pipeline clock.
	Seconds float64
	// Mix counts retired instructions per class.
	Mix map[latency.Class]uint64
}

// CPI returns the cycles per instruction.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Core represents a cycle-accurate CPU core model.
// It wraps a 4-stage pipeline and provides a simple interface for simulation.
type Core struct {
	// Pipeline is the underlying 4-stage pipeline.
	Pipeline *pipeline.Pipeline

	table *latency.Table
	mix   map[latency.Class]uint64

	// Shared resources
	regFile *emu.RegFile
	memory  *emu.Memory
}

// NewCore creates a new Core running program with the given register file
// and memory. A nil config selects the defaults.
func NewCore(
	config *latency.PipelineConfig,
	program []insts.Instruction,
	regFile *emu.RegFile,
	memory *emu.Memory,
) (*Core, error) {
	if config == nil {
		config = latency.DefaultPipelineConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	table := latency.NewTableWithConfig(config)
	pipe := pipeline.NewPipeline(program, regFile, memory,
		pipeline.WithStageLatencies(
			table.StageCycles(insts.StageID),
			table.StageCycles(insts.StageEX),
			table.StageCycles(insts.StageMEM),
			table.StageCycles(insts.StageWB),
		),
		pipeline.WithStageFrequencies(
			table.StageFrequency(insts.StageID),
			table.StageFrequency(insts.StageEX),
			table.StageFrequency(insts.StageMEM),
			table.StageFrequency(insts.StageWB),
		),
	)

	edges, err := config.Edges()
	if err != nil {
		return nil, err
	}
	for _, e := range edges {
		if err := pipe.SetupForwarding(e.From, e.To); err != nil {
			return nil, fmt.Errorf("failed to set up forwarding: %w", err)
		}
	}

	c := &Core{
		Pipeline: pipe,
		table:    table,
		mix:      make(map[latency.Class]uint64),
		regFile:  regFile,
		memory:   memory,
	}
	pipe.AcceptHook(c)

	slog.Debug("core created",
		"instructions", len(program),
		"length", pipe.Length(),
		"forwarding", config.Forwarding)

	return c, nil
}

// Func implements sim.Hook. The core counts the instruction mix of every
// commit.
func (c *Core) Func(ctx sim.HookCtx) {
	if ctx.Pos != pipeline.HookPosCommit {
		return
	}
	if record, ok := ctx.Item.(pipeline.CommitRecord); ok {
		c.mix[c.table.Classify(record.Op)]++
	}
}

// AcceptHook registers a hook on the underlying pipeline.
func (c *Core) AcceptHook(hook sim.Hook) {
	c.Pipeline.AcceptHook(hook)
}

// SetPC sets the program counter.
func (c *Core) SetPC(pc uint32) {
	c.Pipeline.SetPC(pc)
}

// Tick executes one pipeline cycle.
func (c *Core) Tick() error {
	return c.Pipeline.Tick()
}

// Halted returns true if the core has halted on a fault.
func (c *Core) Halted() bool {
	return c.Pipeline.Halted()
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	pipeStats := c.Pipeline.Stats()
	mix := make(map[latency.Class]uint64, len(c.mix))
	for k, v := range c.mix {
		mix[k] = v
	}
	return Stats{
		Cycles:          pipeStats.Cycles,
		Instructions:    pipeStats.Instructions,
		Stalls:          pipeStats.Stalls,
		Flushes:         pipeStats.Flushes,
		StallPercentage: pipeStats.StallPercentage(),
		Seconds:         c.Pipeline.TimeInSecondsSoFar(),
		Mix:             mix,
	}
}

// Run executes the core until the pipeline drains, returning the number
// of cycles run. The pipeline drains once the program counter has left
// the program and every in-flight instruction has retired. Run gives up
// after maxCycles cycles.
func (c *Core) Run(maxCycles uint64) (uint64, error) {
	var n uint64
	for n < maxCycles {
		if err := c.Tick(); err != nil {
			return n, err
		}
		n++

		if c.Pipeline.IsDone() && !c.Pipeline.HasInstructionAt(c.Pipeline.PC()) {
			return n, nil
		}
	}
	return n, ErrCycleLimit
}

// RunCycles executes the core for the specified number of cycles.
func (c *Core) RunCycles(cycles uint64) error {
	return c.Pipeline.RunCycles(cycles)
}

// RegFile returns the register file.
func (c *Core) RegFile() *emu.RegFile {
	return c.regFile
}

// Memory returns the data memory.
func (c *Core) Memory() *emu.Memory {
	return c.memory
}
