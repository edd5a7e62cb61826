package pipeline

import (
	"errors"
	"fmt"

	"github.com/sarchlab/mipssim/insts"
)

var (
	// ErrUnresolvedHazard is returned when no stall count up to the
	// safety ceiling satisfies every in-flight producer.
	ErrUnresolvedHazard = errors.New("hazard not resolvable within stall ceiling")

	// ErrUnsupportedForwarding is returned for a forwarding edge the
	// hazard unit has no timing model for.
	ErrUnsupportedForwarding = errors.New("unsupported forwarding path")
)

// Producer describes an in-flight instruction that will write a register
// a newly fetched instruction reads.
type Producer struct {
	// Reg is the register being produced.
	Reg uint8

	// Age is the number of cycles since the producer entered decode.
	Age int

	// ReadyAfter is the stage after which the producer's result is final.
	ReadyAfter insts.Stage
}

// HazardUnit decides how many bubbles must precede an instruction so that
// every value it reads is available when it executes.
//
// Distances are counted in decode-entry cycles: an instruction entering
// decode k cycles after its producer executes k cycles after it too.
// Operands are read as the consumer completes EX, and writeback happens
// before execute within a cycle, so with stage sizes d, e, m, w:
//   - without forwarding the value is available from k >= m+w;
//   - EX->EX forwarding covers 1 <= k <= m for results ready after EX;
//   - MEM->EX forwarding covers m < k <= m+w for results ready after EX
//     or MEM.
type HazardUnit struct {
	sizes      [insts.NumStages]int
	forwarding map[insts.Stage]map[insts.Stage]bool
}

// NewHazardUnit creates a hazard unit for stages of the given sizes,
// indexed by insts.Stage.
func NewHazardUnit(sizes [insts.NumStages]int) *HazardUnit {
	h := &HazardUnit{
		sizes:      sizes,
		forwarding: make(map[insts.Stage]map[insts.Stage]bool),
	}
	for s := 0; s < insts.NumStages; s++ {
		h.forwarding[insts.Stage(s)] = make(map[insts.Stage]bool)
	}
	return h
}

// EnableForwarding enables the bypass from one stage to another. Only
// EX->EX and MEM->EX are modelled.
func (h *HazardUnit) EnableForwarding(from, to insts.Stage) error {
	if !insts.CanForward(from, to) {
		return fmt.Errorf("%w: %s->%s", ErrUnsupportedForwarding, from, to)
	}

	h.forwarding[from][to] = true
	return nil
}

// IsForwarding returns true if the bypass from one stage to another is
// enabled.
func (h *HazardUnit) IsForwarding(from, to insts.Stage) bool {
	return h.forwarding[from][to]
}

// Length returns the total number of slots across all stages.
func (h *HazardUnit) Length() int {
	n := 0
	for _, s := range h.sizes {
		n += s
	}
	return n
}

// ViableOffsets returns, for every distance k in 0..3*Length, whether a
// consumer entering decode k cycles after a producer whose result is ready
// after readyAfter observes the produced value.
func (h *HazardUnit) ViableOffsets(readyAfter insts.Stage) []bool {
	m := h.sizes[insts.StageMEM]
	w := h.sizes[insts.StageWB]

	exToEX := h.IsForwarding(insts.StageEX, insts.StageEX) &&
		readyAfter <= insts.StageEX
	memToEX := h.IsForwarding(insts.StageMEM, insts.StageEX) &&
		readyAfter <= insts.StageMEM

	viable := make([]bool, 3*h.Length()+1)
	for k := 1; k < len(viable); k++ {
		switch {
		case k >= m+w:
			viable[k] = true
		case k <= m:
			viable[k] = exToEX
		default:
			viable[k] = memToEX
		}
	}

	return viable
}

// StallsFor returns the fewest bubbles that satisfy every producer at
// once. Candidates are scanned from 0 up to Length+1.
func (h *HazardUnit) StallsFor(producers []Producer) (int, error) {
	if len(producers) == 0 {
		return 0, nil
	}

	viable := make([][]bool, len(producers))
	for i, p := range producers {
		viable[i] = h.ViableOffsets(p.ReadyAfter)
	}

	ceiling := h.Length() + 1
	for stalls := 0; stalls <= ceiling; stalls++ {
		if h.allViable(producers, viable, stalls) {
			return stalls, nil
		}
	}

	return 0, fmt.Errorf("%w: %d producers, ceiling %d",
		ErrUnresolvedHazard, len(producers), ceiling)
}

func (h *HazardUnit) allViable(producers []Producer, viable [][]bool, stalls int) bool {
	for i, p := range producers {
		k := p.Age + stalls
		if k < 0 || k >= len(viable[i]) || !viable[i][k] {
			return false
		}
	}
	return true
}
