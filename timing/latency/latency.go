// Package latency provides the stage timing model of the pipeline.
//
// Stage latencies, clock rates and forwarding paths are configured via
// PipelineConfig.
package latency

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/mipssim/insts"
)

// Class groups instructions by the pipeline resources they use.
type Class uint8

// Instruction classes.
const (
	ClassALU Class = iota
	ClassLoad
	ClassStore
	ClassBranch
	ClassJump
)

var classNames = [...]string{"alu", "load", "store", "branch", "jump"}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return "unknown"
}

// Classes lists every class in report order.
func Classes() []Class {
	return []Class{ClassALU, ClassLoad, ClassStore, ClassBranch, ClassJump}
}

// Table provides stage timing lookups.
type Table struct {
	config *PipelineConfig
}

// NewTable creates a new latency table with the default configuration.
func NewTable() *Table {
	return &Table{
		config: DefaultPipelineConfig(),
	}
}

// NewTableWithConfig creates a new latency table with a custom
// configuration.
func NewTableWithConfig(config *PipelineConfig) *Table {
	return &Table{
		config: config,
	}
}

// StageCycles returns the number of cycles spent in a stage.
func (t *Table) StageCycles(s insts.Stage) int {
	if n := t.config.StageCycles(s); n > 0 {
		return n
	}
	return 1
}

// StageFrequency returns the clock rate of a stage.
func (t *Table) StageFrequency(s insts.Stage) sim.Freq {
	return sim.Freq(t.config.StageMHz(s)) * sim.MHz
}

// Depth returns the number of cycles an instruction takes from entering
// decode to leaving writeback.
func (t *Table) Depth() int {
	n := 0
	for s := insts.StageID; s <= insts.StageWB; s++ {
		n += t.StageCycles(s)
	}
	return n
}

// ResultLatency returns the number of cycles from an instruction entering
// execute until its result is final.
func (t *Table) ResultLatency(op insts.Op) int {
	n := 0
	for s := insts.StageEX; s <= op.ReadyAfter(); s++ {
		n += t.StageCycles(s)
	}
	return n
}

// Classify returns the class of an opcode.
func (t *Table) Classify(op insts.Op) Class {
	switch op {
	case insts.OpLW:
		return ClassLoad
	case insts.OpSW:
		return ClassStore
	case insts.OpBEQ, insts.OpBNE:
		return ClassBranch
	case insts.OpJ, insts.OpJAL, insts.OpJR:
		return ClassJump
	default:
		return ClassALU
	}
}

// IsMemoryOp returns true if the instruction accesses memory.
func (t *Table) IsMemoryOp(inst insts.Instruction) bool {
	return t.IsLoadOp(inst) || t.IsStoreOp(inst)
}

// IsLoadOp returns true if the instruction is a load operation.
func (t *Table) IsLoadOp(inst insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return t.Classify(inst.Op()) == ClassLoad
}

// IsStoreOp returns true if the instruction is a store operation.
func (t *Table) IsStoreOp(inst insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return t.Classify(inst.Op()) == ClassStore
}

// IsBranchOp returns true if the instruction may redirect the program
// counter.
func (t *Table) IsBranchOp(inst insts.Instruction) bool {
	if inst == nil {
		return false
	}
	c := t.Classify(inst.Op())
	return c == ClassBranch || c == ClassJump
}

// Config returns the current pipeline configuration.
func (t *Table) Config() *PipelineConfig {
	return t.config
}
