// Package pipeline provides a 4-stage (ID, EX, MEM, WB) pipeline model for
// cycle-accurate timing simulation of MIPS32 programs.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/mipssim/insts"
)

// ErrDoubleLoad is returned when a stage is loaded twice in one cycle.
var ErrDoubleLoad = errors.New("stage loaded twice in one cycle")

// StageFunc is the work a stage performs on an instruction as the
// instruction completes the stage.
type StageFunc func(e *Entry) error

// Stage is one pipeline stage modelled as a chain of slots, one per cycle
// of latency. Slot 0 is the entry slot; the last slot is the exit.
type Stage struct {
	kind      insts.Stage
	slots     []*Entry
	loaded    bool
	freq      sim.Freq
	forwardTo map[insts.Stage]bool
	behavior  StageFunc
}

// NewStage creates a stage with the given latency in cycles (at least 1)
// and clock frequency.
func NewStage(kind insts.Stage, cycles int, freq sim.Freq) *Stage {
	if cycles < 1 {
		cycles = 1
	}
	return &Stage{
		kind:      kind,
		slots:     make([]*Entry, cycles),
		freq:      freq,
		forwardTo: make(map[insts.Stage]bool),
	}
}

// Kind returns which pipeline stage this is.
func (s *Stage) Kind() insts.Stage {
	return s.kind
}

// SetBehavior sets the work run on each instruction leaving the stage.
func (s *Stage) SetBehavior(fn StageFunc) {
	s.behavior = fn
}

// Load places e (an instruction, a bubble, or nil for nothing) into the
// entry slot. A stage accepts one load per cycle.
func (s *Stage) Load(e *Entry) error {
	if s.loaded || s.slots[0] != nil {
		return fmt.Errorf("%s: %w", s.kind, ErrDoubleLoad)
	}
	s.slots[0] = e
	s.loaded = true
	return nil
}

// DoExecute advances the stage by one cycle. The content of the exit slot
// falls out, every other slot shifts one position toward the exit, and the
// stage behaviour runs on the instruction that fell out. The returned
// entry is the stage's output for the cycle.
func (s *Stage) DoExecute() (*Entry, error) {
	last := len(s.slots) - 1
	out := s.slots[last]
	copy(s.slots[1:], s.slots[:last])
	s.slots[0] = nil
	s.loaded = false

	if out == nil || out.IsBubble() {
		return out, nil
	}

	if s.behavior != nil {
		if err := s.behavior(out); err != nil {
			return nil, err
		}
	}
	out.stagesDone = int(s.kind) + 1

	return out, nil
}

// Size returns the number of slots.
func (s *Stage) Size() int {
	return len(s.slots)
}

// Flush empties every slot and returns what was discarded, youngest first.
func (s *Stage) Flush() []*Entry {
	var discarded []*Entry
	for i, e := range s.slots {
		if e != nil {
			discarded = append(discarded, e)
		}
		s.slots[i] = nil
	}
	return discarded
}

// AcceptForwardingConfiguration records that this stage may supply a
// forwarded value to target.
func (s *Stage) AcceptForwardingConfiguration(target insts.Stage) {
	s.forwardTo[target] = true
}

// ForwardsTo returns true if a forwarding path to target was configured.
func (s *Stage) ForwardsTo(target insts.Stage) bool {
	return s.forwardTo[target]
}

// MaxFrequency returns the highest clock rate the stage supports.
func (s *Stage) MaxFrequency() sim.Freq {
	return s.freq
}

// IsEmpty returns true if no slot holds an instruction or bubble.
func (s *Stage) IsEmpty() bool {
	for _, e := range s.slots {
		if e != nil {
			return false
		}
	}
	return true
}

// Occupants returns a copy of the slots, entry slot first. Empty slots
// are nil.
func (s *Stage) Occupants() []*Entry {
	out := make([]*Entry, len(s.slots))
	copy(out, s.slots)
	return out
}
