package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/mipssim/emu"
	"github.com/sarchlab/mipssim/insts"
)

// BaseAddress is where the first program instruction is placed.
const BaseAddress uint32 = 0x40000000

// DefaultStageFreq is the clock rate of a stage unless configured.
const DefaultStageFreq = 1 * sim.GHz

var (
	// ErrHazardViolation is returned when an instruction executes before a
	// value it reads has been produced.
	ErrHazardViolation = errors.New("operand read before it was produced")

	// ErrForwardingAfterStart is returned when forwarding is configured
	// after the first cycle has run.
	ErrForwardingAfterStart = errors.New("forwarding must be configured before the first cycle")
)

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions committed (retired).
	Instructions uint64
	// Stalls is the number of wasted cycles: hazard bubbles retiring from
	// writeback plus instructions and bubbles squashed by redirection.
	Stalls uint64
	// Bubbles is the number of hazard bubbles inserted.
	Bubbles uint64
	// DataHazards is the number of instructions that needed bubbles.
	DataHazards uint64
	// Flushes is the number of pipeline flushes.
	Flushes uint64
	// Squashed is the number of instructions discarded by flushes.
	Squashed uint64
}

// CPI returns the cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// StallPercentage returns stalls / (committed + stalls), or 0 before any
// instruction or stall has retired.
func (s Statistics) StallPercentage() float64 {
	total := s.Instructions + s.Stalls
	if total == 0 {
		return 0
	}
	return float64(s.Stalls) / float64(total)
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithStageLatencies sets the number of cycles spent in the decode,
// execute, memory and writeback stages. Values below 1 are treated as 1.
func WithStageLatencies(id, ex, mem, wb int) PipelineOption {
	return func(p *Pipeline) {
		p.latencies = [insts.NumStages]int{id, ex, mem, wb}
	}
}

// WithStageFrequencies sets the maximum clock rate of each stage.
func WithStageFrequencies(id, ex, mem, wb sim.Freq) PipelineOption {
	return func(p *Pipeline) {
		p.freqs = [insts.NumStages]sim.Freq{id, ex, mem, wb}
	}
}

// Pipeline implements a 4-stage in-order pipelined CPU model.
// Stages: Decode (ID) -> Execute (EX) -> Memory (MEM) -> Writeback (WB).
// Instructions are fetched from an instruction memory that is not modelled
// as a stage.
type Pipeline struct {
	*sim.HookableBase

	latencies [insts.NumStages]int
	freqs     [insts.NumStages]sim.Freq

	stages     [insts.NumStages]*Stage
	hazardUnit *HazardUnit

	// Instruction memory, keyed by address.
	instrMem map[uint32]insts.Instruction

	// Shared resources
	regFile *emu.RegFile
	memory  *emu.Memory

	// Program counter
	pc uint32

	// busy counts in-flight producers per register.
	busy [emu.NumRegs]int

	// issueQueue holds bubbles and the next instruction waiting for
	// decode. A nil element is an idle cycle.
	issueQueue []*Entry

	// Per-cycle state.
	outputs    [insts.NumStages]*Entry
	redirected bool

	cycle   uint64
	nextSeq uint64
	started bool

	stats Statistics
	err   error
}

// NewPipeline creates a pipeline with program placed at consecutive
// addresses from BaseAddress.
func NewPipeline(
	program []insts.Instruction,
	regFile *emu.RegFile,
	memory *emu.Memory,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		HookableBase: sim.NewHookableBase(),
		latencies:    [insts.NumStages]int{1, 1, 1, 1},
		freqs: [insts.NumStages]sim.Freq{
			DefaultStageFreq, DefaultStageFreq, DefaultStageFreq, DefaultStageFreq,
		},
		instrMem: make(map[uint32]insts.Instruction, len(program)),
		regFile:  regFile,
		memory:   memory,
		pc:       BaseAddress,
	}

	// Apply options
	for _, opt := range opts {
		opt(p)
	}

	var sizes [insts.NumStages]int
	for i := range p.stages {
		p.stages[i] = NewStage(insts.Stage(i), p.latencies[i], p.freqs[i])
		sizes[i] = p.stages[i].Size()
	}
	p.hazardUnit = NewHazardUnit(sizes)

	p.stages[insts.StageID].SetBehavior(func(e *Entry) error {
		return e.Inst.Decode()
	})
	p.stages[insts.StageEX].SetBehavior(func(e *Entry) error {
		return e.Inst.Execute(&execContext{p: p, entry: e})
	})
	p.stages[insts.StageMEM].SetBehavior(func(e *Entry) error {
		e.Inst.Memory(p.memory)
		return nil
	})
	p.stages[insts.StageWB].SetBehavior(func(e *Entry) error {
		e.Inst.Writeback(p.regFile)
		return nil
	})

	addr := BaseAddress
	for _, inst := range program {
		p.instrMem[addr] = inst
		addr += 4
	}

	return p
}

// PC returns the current program counter.
func (p *Pipeline) PC() uint32 {
	return p.pc
}

// SetPC moves the program counter to pc and flushes the pipeline.
func (p *Pipeline) SetPC(pc uint32) {
	p.pc = pc
	p.FlushAll()
}

// MovePC moves the program counter by n instructions and flushes the
// pipeline.
func (p *Pipeline) MovePC(n int) {
	p.pc += uint32(4 * n)
	p.FlushAll()
}

// JumpPC replaces the low 26 bits of the program counter, keeping the
// upper region bits, and flushes the pipeline.
func (p *Pipeline) JumpPC(lowerBits uint32) {
	const regionMask = 0xFC000000
	p.pc = (p.pc & regionMask) | (lowerBits &^ regionMask)
	p.FlushAll()
}

// HasInstructionAt returns true if instruction memory holds an
// instruction at addr.
func (p *Pipeline) HasInstructionAt(addr uint32) bool {
	_, ok := p.instrMem[addr]
	return ok
}

// RegFile returns the register file the pipeline commits to.
func (p *Pipeline) RegFile() *emu.RegFile {
	return p.regFile
}

// Memory returns the data memory.
func (p *Pipeline) Memory() *emu.Memory {
	return p.memory
}

// Stage returns one of the four stages.
func (p *Pipeline) Stage(kind insts.Stage) *Stage {
	return p.stages[kind]
}

// HazardUnit returns the hazard unit.
func (p *Pipeline) HazardUnit() *HazardUnit {
	return p.hazardUnit
}

// SetupForwarding enables one directional bypass from a stage to another.
// It must be called before the first cycle.
func (p *Pipeline) SetupForwarding(from, to insts.Stage) error {
	if p.started {
		return ErrForwardingAfterStart
	}
	if err := p.hazardUnit.EnableForwarding(from, to); err != nil {
		return err
	}

	p.stages[from].AcceptForwardingConfiguration(to)
	return nil
}

// Length returns the total number of slots across all stages.
func (p *Pipeline) Length() int {
	return p.hazardUnit.Length()
}

// BusyCount returns the number of in-flight instructions that will write
// register id.
func (p *Pipeline) BusyCount(id uint8) int {
	if int(id) >= emu.NumRegs {
		return 0
	}
	return p.busy[id]
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	return p.stats
}

// NumberOfInstructions returns the number of committed instructions.
func (p *Pipeline) NumberOfInstructions() uint64 {
	return p.stats.Instructions
}

// StallPercentage returns the fraction of retired slots that were stalls.
func (p *Pipeline) StallPercentage() float64 {
	return p.stats.StallPercentage()
}

// Frequency returns the pipeline clock: the slowest stage's rate.
func (p *Pipeline) Frequency() sim.Freq {
	freq := sim.Freq(math.Inf(1))
	for _, s := range p.stages {
		if s.MaxFrequency() < freq {
			freq = s.MaxFrequency()
		}
	}
	return freq
}

// TimeInSecondsSoFar returns the simulated time of the cycles run so far.
func (p *Pipeline) TimeInSecondsSoFar() float64 {
	return float64(p.stats.Cycles) / float64(p.Frequency())
}

// Halted returns true if the pipeline stopped on a fault.
func (p *Pipeline) Halted() bool {
	return p.err != nil
}

// Err returns the fault that halted the pipeline, if any.
func (p *Pipeline) Err() error {
	return p.err
}

// IsDone returns true when no stage slot and no queued issue slot holds
// an instruction or bubble.
func (p *Pipeline) IsDone() bool {
	for _, s := range p.stages {
		if !s.IsEmpty() {
			return false
		}
	}
	for _, e := range p.issueQueue {
		if e != nil {
			return false
		}
	}
	return true
}

// FlushAll discards every in-flight instruction and queued bubble.
func (p *Pipeline) FlushAll() {
	var discarded []*Entry
	for _, s := range p.stages {
		discarded = append(discarded, s.Flush()...)
	}
	discarded = append(discarded, p.drainIssueQueue()...)

	squashed := p.release(discarded)
	p.stats.Flushes++
	p.stats.Squashed += uint64(squashed)
}

// RunCycles executes the pipeline for the specified number of cycles. It
// stops early only on a fault.
func (p *Pipeline) RunCycles(cycles uint64) error {
	for i := uint64(0); i < cycles; i++ {
		if err := p.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// Tick executes one pipeline cycle.
//
// Stages are drained in reverse order (WB, MEM, EX, ID) so that a value
// written back in a cycle is visible to an instruction executing in the
// same cycle. The outputs are then latched into the next stage and the
// head of the issue queue enters decode.
//
// Once a fault occurs the pipeline halts and every later Tick returns the
// same fault.
func (p *Pipeline) Tick() error {
	if p.err != nil {
		return p.err
	}

	p.started = true
	p.cycle++
	p.stats.Cycles++
	p.redirected = false

	// Fetch
	var fetched insts.Instruction
	fetchPC := p.pc
	if len(p.issueQueue) == 0 {
		if inst, ok := p.instrMem[p.pc]; ok {
			fetched = inst.Clone()
		}
		p.pc += 4
	}

	// Drain every stage, oldest first.
	for i := insts.NumStages - 1; i >= 0; i-- {
		out, err := p.stages[i].DoExecute()
		if err != nil {
			return p.fail(fmt.Errorf("cycle %d, %s stage: %w", p.cycle, insts.Stage(i), err))
		}
		p.outputs[i] = out
	}

	p.retire(p.outputs[insts.StageWB])

	if fetched != nil && p.redirected {
		p.stats.Squashed++
		p.stats.Stalls++
	} else if fetched != nil {
		if err := p.issue(fetched, fetchPC); err != nil {
			return p.fail(err)
		}
	} else if len(p.issueQueue) == 0 {
		p.issueQueue = append(p.issueQueue, nil)
	}

	if err := p.latch(); err != nil {
		return p.fail(err)
	}

	return nil
}

func (p *Pipeline) fail(err error) error {
	p.err = err
	slog.Error("pipeline halted", "cycle", p.cycle, "err", err)
	return err
}

func (p *Pipeline) retire(out *Entry) {
	if out == nil {
		return
	}

	if out.IsBubble() {
		p.stats.Stalls++
		return
	}

	for _, id := range out.Inst.Outputs() {
		p.busy[id]--
	}
	p.stats.Instructions++

	record := CommitRecord{
		Cycle: p.cycle,
		PC:    out.PC,
		Op:    out.Inst.Op(),
		Inst:  out.Inst.String(),
	}
	if outs := out.Inst.Outputs(); len(outs) > 0 {
		record.HasOutput = true
		record.Reg = outs[0]
		record.Value = p.regFile.ReadInt(outs[0])
	}

	trace("commit", "cycle", p.cycle, "pc", record.PC, "inst", record.Inst,
		"reg", record.Reg, "value", record.Value)
	p.invokeHook(HookPosCommit, record)
}

// issue computes the bubbles inst needs and queues them ahead of it.
func (p *Pipeline) issue(inst insts.Instruction, pc uint32) error {
	p.nextSeq++
	e := &Entry{Seq: p.nextSeq, PC: pc, Inst: inst}

	producers, err := p.producersFor(inst)
	if err != nil {
		return err
	}

	stalls, err := p.hazardUnit.StallsFor(producers)
	if err != nil {
		return fmt.Errorf("cycle %d, %s at 0x%08X: %w", p.cycle, inst, pc, err)
	}

	for i := 0; i < stalls; i++ {
		p.issueQueue = append(p.issueQueue, newBubble())
	}
	p.issueQueue = append(p.issueQueue, e)

	for _, id := range inst.Outputs() {
		p.busy[id]++
	}

	record := IssueRecord{
		Cycle:  p.cycle,
		PC:     pc,
		Inst:   inst.String(),
		Stalls: stalls,
	}
	for _, prod := range producers {
		record.Hazards = append(record.Hazards, prod.Reg)
	}

	p.invokeHook(HookPosIssue, record)
	if stalls > 0 {
		p.stats.DataHazards++
		p.stats.Bubbles += uint64(stalls)
		trace("stall", "cycle", p.cycle, "pc", pc, "inst", record.Inst,
			"stalls", stalls, "hazards", record.Hazards)
		p.invokeHook(HookPosStall, record)
	}

	return nil
}

// producersFor finds, for every busy register inst reads, the youngest
// in-flight instruction writing it.
func (p *Pipeline) producersFor(inst insts.Instruction) ([]Producer, error) {
	var producers []Producer
	seen := make(map[uint8]bool)

	for _, id := range inst.Inputs() {
		if seen[id] || p.BusyCount(id) == 0 {
			continue
		}
		seen[id] = true

		youngest := p.youngestProducer(id)
		if youngest == nil {
			return nil, fmt.Errorf("%w: register $%d busy with no producer in flight",
				ErrUnresolvedHazard, id)
		}

		producers = append(producers, Producer{
			Reg:        id,
			Age:        int(p.cycle - youngest.IssueCycle),
			ReadyAfter: youngest.Inst.ReadyAfter(),
		})
	}

	return producers, nil
}

func (p *Pipeline) youngestProducer(id uint8) *Entry {
	var youngest *Entry
	p.forEachInFlight(func(e *Entry) {
		if e.Writes(id) && (youngest == nil || e.Seq > youngest.Seq) {
			youngest = e
		}
	})
	return youngest
}

// forEachInFlight visits every instruction in a stage slot or in transit
// between stages in the current cycle. Retired instructions are excluded.
func (p *Pipeline) forEachInFlight(fn func(e *Entry)) {
	for _, s := range p.stages {
		for _, e := range s.slots {
			if e != nil && !e.IsBubble() {
				fn(e)
			}
		}
	}
	for i := insts.StageID; i < insts.StageWB; i++ {
		if e := p.outputs[i]; e != nil && !e.IsBubble() {
			fn(e)
		}
	}
}

// latch moves each stage's output into the next stage and the head of
// the issue queue into decode.
func (p *Pipeline) latch() error {
	for i := insts.NumStages - 1; i > 0; i-- {
		if err := p.stages[i].Load(p.outputs[i-1]); err != nil {
			return fmt.Errorf("cycle %d: %w", p.cycle, err)
		}
	}

	var head *Entry
	if len(p.issueQueue) > 0 {
		head = p.issueQueue[0]
		p.issueQueue = p.issueQueue[1:]
	}
	if head != nil && !head.IsBubble() {
		head.IssueCycle = p.cycle
	}
	if err := p.stages[insts.StageID].Load(head); err != nil {
		return fmt.Errorf("cycle %d: %w", p.cycle, err)
	}

	p.outputs = [insts.NumStages]*Entry{}
	return nil
}

// redirect moves the program counter and squashes everything younger than
// the executing instruction: the rest of the execute stage, the decode
// stage, the issue queue and this cycle's fetch. Unlike FlushAll, older
// work in the memory and writeback stages is kept and retires normally.
// Single-slot memory and writeback stages have already drained when
// execute runs, so the difference shows only with multi-cycle stages.
func (p *Pipeline) redirect(from *Entry, target uint32) {
	p.pc = target
	p.redirected = true

	discarded := p.stages[insts.StageEX].Flush()
	discarded = append(discarded, p.stages[insts.StageID].Flush()...)
	discarded = append(discarded, p.drainIssueQueue()...)

	squashed := p.release(discarded)
	p.stats.Flushes++
	p.stats.Squashed += uint64(squashed)
	p.stats.Stalls += uint64(len(discarded))

	record := FlushRecord{
		Cycle:    p.cycle,
		PC:       from.PC,
		Target:   target,
		Squashed: len(discarded),
	}
	trace("flush", "cycle", p.cycle, "pc", from.PC, "target", target,
		"squashed", record.Squashed)
	p.invokeHook(HookPosFlush, record)
}

func (p *Pipeline) drainIssueQueue() []*Entry {
	var drained []*Entry
	for _, e := range p.issueQueue {
		if e != nil {
			drained = append(drained, e)
		}
	}
	p.issueQueue = p.issueQueue[:0]
	return drained
}

// release returns the busy counts held by discarded instructions and
// reports how many instructions (not bubbles) were discarded.
func (p *Pipeline) release(discarded []*Entry) int {
	n := 0
	for _, e := range discarded {
		if e.IsBubble() {
			continue
		}
		for _, id := range e.Inst.Outputs() {
			p.busy[id]--
		}
		n++
	}
	return n
}

// execContext is the view an executing instruction has of the pipeline.
type execContext struct {
	p     *Pipeline
	entry *Entry
}

func (c *execContext) PC() uint32 {
	return c.entry.PC
}

func (c *execContext) Redirect(target uint32) {
	c.p.redirect(c.entry, target)
}

// ReadReg returns the value of register id as seen by the executing
// instruction. The youngest older instruction still in flight that writes
// id supplies its result if the result is ready; with no such instruction
// the register file holds the value.
func (c *execContext) ReadReg(id uint8) (emu.Word, error) {
	producer := c.p.olderProducer(id)
	if producer == nil {
		return c.p.regFile.ReadReg(id), nil
	}

	if !producer.ResultReady() {
		return 0, fmt.Errorf("%w: %s reads $%d from %s",
			ErrHazardViolation, c.entry.Inst, id, producer.Inst)
	}

	return producer.Inst.Result(), nil
}

// olderProducer scans, youngest first, the instructions older than the one
// completing execute in this cycle: the memory stage, the memory stage's
// output and the writeback stage.
func (p *Pipeline) olderProducer(id uint8) *Entry {
	var candidates []*Entry
	candidates = append(candidates, p.stages[insts.StageMEM].slots...)
	candidates = append(candidates, p.outputs[insts.StageMEM])
	candidates = append(candidates, p.stages[insts.StageWB].slots...)

	for _, e := range candidates {
		if e != nil && e.Writes(id) {
			return e
		}
	}
	return nil
}
