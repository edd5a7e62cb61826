// Package insts provides MIPS32 instruction definitions, decoding and the
// per-instruction contract the timing pipeline drives.
//
// This package implements decoding of MIPS32 machine words into typed
// instruction kinds. It supports:
//   - R-format: ADD, ADDU, SUB, SUBU, AND, OR, XOR, NOR, SLT, SLTU,
//     SLL, SRL, SRA, JR
//   - I-format: ADDI, ADDIU, SLTI, ANDI, ORI, XORI, LUI, LW, SW, BEQ, BNE
//   - J-format: J, JAL
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst, err := decoder.Decode(0x00221820) // add $3, $1, $2
//	fmt.Printf("%s reads %v writes %v\n", inst, inst.Inputs(), inst.Outputs())
package insts

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedEncoding is returned when a word cannot be interpreted as the
// requested instruction kind.
var ErrMalformedEncoding = errors.New("malformed instruction encoding")

// Stage names one of the four pipeline stages an instruction flows through.
type Stage uint8

// Pipeline stages, in flow order.
const (
	StageID Stage = iota
	StageEX
	StageMEM
	StageWB
)

// NumStages is the number of pipeline stages.
const NumStages = 4

var stageNames = [NumStages]string{"ID", "EX", "MEM", "WB"}

// String returns the short stage name.
func (s Stage) String() string {
	if int(s) >= NumStages {
		return fmt.Sprintf("Stage(%d)", s)
	}
	return stageNames[s]
}

// CanForward returns true if a bypass from one stage to another has a
// timing model. Only EX->EX and MEM->EX do.
func CanForward(from, to Stage) bool {
	return to == StageEX && (from == StageEX || from == StageMEM)
}

// ParseStage parses a short stage name such as "EX" (case-insensitive).
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown pipeline stage %q", name)
}

// Op represents a MIPS32 opcode.
type Op uint8

// MIPS32 opcodes.
const (
	OpUnknown Op = iota
	OpADD
	OpADDU
	OpSUB
	OpSUBU
	OpAND
	OpOR
	OpXOR
	OpNOR
	OpSLT
	OpSLTU
	OpSLL
	OpSRL
	OpSRA
	OpJR
	OpADDI
	OpADDIU
	OpSLTI
	OpANDI
	OpORI
	OpXORI
	OpLUI
	OpLW
	OpSW
	OpBEQ
	OpBNE
	OpJ
	OpJAL
)

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR              // opcode | rs | rt | rd | shamt | funct
	FormatI              // opcode | rs | rt | imm16
	FormatJ              // opcode | index26
)

// opInfo describes how an opcode is encoded and when its result exists.
type opInfo struct {
	name       string
	format     Format
	opcode     uint32 // bits [31:26]
	funct      uint32 // bits [5:0], R-format only
	readyAfter Stage
}

var opTable = map[Op]opInfo{
	OpADD:   {"ADD", FormatR, 0x00, 0x20, StageEX},
	OpADDU:  {"ADDU", FormatR, 0x00, 0x21, StageEX},
	OpSUB:   {"SUB", FormatR, 0x00, 0x22, StageEX},
	OpSUBU:  {"SUBU", FormatR, 0x00, 0x23, StageEX},
	OpAND:   {"AND", FormatR, 0x00, 0x24, StageEX},
	OpOR:    {"OR", FormatR, 0x00, 0x25, StageEX},
	OpXOR:   {"XOR", FormatR, 0x00, 0x26, StageEX},
	OpNOR:   {"NOR", FormatR, 0x00, 0x27, StageEX},
	OpSLT:   {"SLT", FormatR, 0x00, 0x2A, StageEX},
	OpSLTU:  {"SLTU", FormatR, 0x00, 0x2B, StageEX},
	OpSLL:   {"SLL", FormatR, 0x00, 0x00, StageEX},
	OpSRL:   {"SRL", FormatR, 0x00, 0x02, StageEX},
	OpSRA:   {"SRA", FormatR, 0x00, 0x03, StageEX},
	OpJR:    {"JR", FormatR, 0x00, 0x08, StageEX},
	OpADDI:  {"ADDI", FormatI, 0x08, 0, StageEX},
	OpADDIU: {"ADDIU", FormatI, 0x09, 0, StageEX},
	OpSLTI:  {"SLTI", FormatI, 0x0A, 0, StageEX},
	OpANDI:  {"ANDI", FormatI, 0x0C, 0, StageEX},
	OpORI:   {"ORI", FormatI, 0x0D, 0, StageEX},
	OpXORI:  {"XORI", FormatI, 0x0E, 0, StageEX},
	OpLUI:   {"LUI", FormatI, 0x0F, 0, StageEX},
	OpLW:    {"LW", FormatI, 0x23, 0, StageMEM},
	OpSW:    {"SW", FormatI, 0x2B, 0, StageMEM},
	OpBEQ:   {"BEQ", FormatI, 0x04, 0, StageEX},
	OpBNE:   {"BNE", FormatI, 0x05, 0, StageEX},
	OpJ:     {"J", FormatJ, 0x02, 0, StageEX},
	OpJAL:   {"JAL", FormatJ, 0x03, 0, StageEX},
}

// Name returns the upper-case mnemonic of the op.
func (o Op) Name() string {
	info, ok := opTable[o]
	if !ok {
		return "UNKNOWN"
	}
	return info.name
}

// String implements fmt.Stringer.
func (o Op) String() string {
	return o.Name()
}

// Format returns the encoding format of the op.
func (o Op) Format() Format {
	return opTable[o].format
}

// ReadyAfter returns the stage after which the op's result is final.
func (o Op) ReadyAfter() Stage {
	return opTable[o].readyAfter
}

// LookupOp finds an op by mnemonic (case-insensitive).
func LookupOp(mnemonic string) (Op, bool) {
	for op, info := range opTable {
		if strings.EqualFold(info.name, mnemonic) {
			return op, true
		}
	}
	return OpUnknown, false
}
