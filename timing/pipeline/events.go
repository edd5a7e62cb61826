package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/mipssim/insts"
)

// LevelTrace sits below slog.LevelDebug and carries per-cycle pipeline
// events.
const LevelTrace slog.Level = slog.LevelDebug - 4

func trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}

var (
	// HookPosIssue marks an instruction being queued for decode. The item
	// is an IssueRecord.
	HookPosIssue = &sim.HookPos{Name: "Pipeline Issue"}

	// HookPosStall marks bubbles being inserted ahead of an instruction.
	// The item is an IssueRecord.
	HookPosStall = &sim.HookPos{Name: "Pipeline Stall"}

	// HookPosCommit marks an instruction retiring from writeback. The item
	// is a CommitRecord.
	HookPosCommit = &sim.HookPos{Name: "Pipeline Commit"}

	// HookPosFlush marks a control-flow redirection. The item is a
	// FlushRecord.
	HookPosFlush = &sim.HookPos{Name: "Pipeline Flush"}
)

// IssueRecord describes an instruction entering the issue queue.
type IssueRecord struct {
	Cycle uint64
	PC    uint32
	Inst  string

	// Stalls is the number of bubbles queued ahead of the instruction.
	Stalls int

	// Hazards lists the registers that had an in-flight producer.
	Hazards []uint8
}

// CommitRecord describes an instruction retiring from writeback.
type CommitRecord struct {
	Cycle uint64
	PC    uint32
	Op    insts.Op
	Inst  string

	// HasOutput is false for instructions without output registers, in
	// which case Reg and Value are zero.
	HasOutput bool
	Reg       uint8
	Value     int32
}

func (c CommitRecord) String() string {
	if !c.HasOutput {
		return fmt.Sprintf("0x%08X %s", c.PC, c.Inst)
	}
	return fmt.Sprintf("0x%08X %s => $%d = %d", c.PC, c.Inst, c.Reg, c.Value)
}

// FlushRecord describes a control-flow redirection.
type FlushRecord struct {
	Cycle uint64

	// PC is the address of the redirecting instruction.
	PC     uint32
	Target uint32

	// Squashed is the number of discarded instructions and bubbles.
	Squashed int
}

// EventRecorder is a hook that keeps every pipeline event it observes.
type EventRecorder struct {
	Issues  []IssueRecord
	Stalls  []IssueRecord
	Commits []CommitRecord
	Flushes []FlushRecord
}

// NewEventRecorder creates an empty recorder.
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

// Func implements sim.Hook.
func (r *EventRecorder) Func(ctx sim.HookCtx) {
	switch item := ctx.Item.(type) {
	case IssueRecord:
		if ctx.Pos == HookPosStall {
			r.Stalls = append(r.Stalls, item)
		} else {
			r.Issues = append(r.Issues, item)
		}
	case CommitRecord:
		r.Commits = append(r.Commits, item)
	case FlushRecord:
		r.Flushes = append(r.Flushes, item)
	}
}

func (p *Pipeline) invokeHook(pos *sim.HookPos, item interface{}) {
	if p.NumHooks() == 0 {
		return
	}
	p.InvokeHook(sim.HookCtx{
		Domain: p,
		Pos:    pos,
		Item:   item,
	})
}
