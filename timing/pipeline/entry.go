package pipeline

import "github.com/sarchlab/mipssim/insts"

// Entry is the content of one occupied stage slot: either an in-flight
// instruction or a stall bubble inserted by the hazard unit.
type Entry struct {
	// Seq orders instructions by fetch; larger is younger.
	Seq uint64

	// PC is the address the instruction was fetched from.
	PC uint32

	// Inst is the instruction, or nil for a bubble.
	Inst insts.Instruction

	// IssueCycle is the cycle at whose end the entry entered decode.
	IssueCycle uint64

	// stagesDone counts the stages the instruction has completed.
	stagesDone int
}

func newBubble() *Entry {
	return &Entry{}
}

// IsBubble returns true for a stall bubble.
func (e *Entry) IsBubble() bool {
	return e.Inst == nil
}

// Completed returns true once the entry has completed the given stage.
func (e *Entry) Completed(s insts.Stage) bool {
	return e.stagesDone > int(s)
}

// ResultReady returns true once the instruction's result is final.
func (e *Entry) ResultReady() bool {
	return !e.IsBubble() && e.Completed(e.Inst.ReadyAfter())
}

// Writes returns true if the instruction writes register id.
func (e *Entry) Writes(id uint8) bool {
	if e.IsBubble() {
		return false
	}
	for _, out := range e.Inst.Outputs() {
		if out == id {
			return true
		}
	}
	return false
}

func (e *Entry) String() string {
	if e.IsBubble() {
		return "bubble"
	}
	return e.Inst.String()
}
