package insts

import (
	"fmt"
	"strings"

	"github.com/sarchlab/mipssim/emu"
)

// Decoder decodes MIPS32 machine words into instructions.
type Decoder struct {
	byOpcode map[uint32]Op
	byFunct  map[uint32]Op
}

// NewDecoder creates a new MIPS32 instruction decoder.
func NewDecoder() *Decoder {
	d := &Decoder{
		byOpcode: make(map[uint32]Op),
		byFunct:  make(map[uint32]Op),
	}

	for op, info := range opTable {
		if info.format == FormatR {
			d.byFunct[info.funct] = op
		} else {
			d.byOpcode[info.opcode] = op
		}
	}

	return d
}

// Identify returns the op encoded by word without building an instruction.
// R-format words (opcode 0) are identified by their funct field.
func (d *Decoder) Identify(word emu.Word) Op {
	opcode := word.Bits(31, 26)
	if opcode == 0 {
		return d.byFunct[word.Bits(5, 0)]
	}
	return d.byOpcode[opcode]
}

// Decode decodes a 32-bit MIPS32 word into a typed instruction.
func (d *Decoder) Decode(word emu.Word) (Instruction, error) {
	op := d.Identify(word)
	if op == OpUnknown {
		return nil, fmt.Errorf("%w: no instruction matches %s", ErrMalformedEncoding, word)
	}
	return New(op, word)
}

// New builds an instruction of the given kind from word. It fails when
// word does not encode that kind.
func New(op Op, word emu.Word) (Instruction, error) {
	info, ok := opTable[op]
	if !ok {
		return nil, fmt.Errorf("%w: unknown op %d", ErrMalformedEncoding, op)
	}

	b := base{op: op, word: word}

	var inst Instruction
	switch info.format {
	case FormatR:
		inst = &RType{base: b}
	case FormatI:
		inst = &IType{base: b}
	case FormatJ:
		inst = &JType{base: b}
	}

	if err := inst.Decode(); err != nil {
		return nil, err
	}

	return inst, nil
}

// DecodeProgram decodes a sequence of words, reporting the index of the
// first malformed one.
func DecodeProgram(words []emu.Word) ([]Instruction, error) {
	d := NewDecoder()
	program := make([]Instruction, 0, len(words))

	for i, w := range words {
		inst, err := d.Decode(w)
		if err != nil {
			return nil, fmt.Errorf("failed to decode instruction %d: %w", i, err)
		}
		program = append(program, inst)
	}

	return program, nil
}

func lower(op Op) string {
	return strings.ToLower(op.Name())
}
