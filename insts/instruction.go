package insts

import (
	"fmt"

	"github.com/sarchlab/mipssim/emu"
)

// ExecContext is what an instruction sees while it completes the execute
// stage.
type ExecContext interface {
	// ReadReg returns the current value of a register, either from the
	// register file or forwarded from an older in-flight instruction.
	ReadReg(id uint8) (emu.Word, error)

	// PC returns the address the executing instruction was fetched from.
	PC() uint32

	// Redirect moves the program counter to target and discards all work
	// younger than the executing instruction.
	Redirect(target uint32)
}

// Instruction is a unit of work that flows through the pipeline.
//
// The operand set is fixed once Decode succeeds. Execute, Memory and
// Writeback run at most once each, in that order, and only Writeback
// touches register storage.
type Instruction interface {
	Op() Op
	Name() string
	Format() Format
	Word() emu.Word

	// Decode populates operand ids and immediates from the encoding.
	// It is idempotent.
	Decode() error

	// Inputs lists the register ids read by Execute, in operand order.
	Inputs() []uint8

	// Outputs lists the register ids written by Writeback. The first
	// entry is the primary output.
	Outputs() []uint8

	// ReadyAfter names the stage after which Result is final.
	ReadyAfter() Stage

	Execute(ctx ExecContext) error
	Memory(mem *emu.Memory)
	Writeback(rf *emu.RegFile)

	// Result returns the value destined for the primary output register.
	Result() emu.Word

	// Clone returns an independent copy, so that one program instruction
	// can be in flight more than once.
	Clone() Instruction

	String() string
}

type base struct {
	op      Op
	word    emu.Word
	inputs  []uint8
	outputs []uint8
	result  emu.Word
}

func (b *base) Op() Op { return b.op }
func (b *base) Name() string { return b.op.Name() }
func (b *base) Format() Format { return b.op.Format() }
func (b *base) Word() emu.Word { return b.word }
func (b *base) Inputs() []uint8 { return b.inputs }
func (b *base) Outputs() []uint8 { return b.outputs }
func (b *base) ReadyAfter() Stage { return b.op.ReadyAfter() }
func (b *base) Result() emu.Word { return b.result }
func (b *base) Memory(_ *emu.Memory) {}

func (b *base) Writeback(rf *emu.RegFile) {
	for _, id := range b.outputs {
		rf.WriteReg(id, b.result)
	}
}

func (b *base) clone() base {
	c := *b
	c.inputs = append([]uint8(nil), b.inputs...)
	c.outputs = append([]uint8(nil), b.outputs...)
	return c
}

// setOperands resets the operand lists. A $zero destination is dropped.
func (b *base) setOperands(inputs []uint8, dest ...uint8) {
	b.inputs = inputs
	b.outputs = b.outputs[:0]
	for _, d := range dest {
		if d != 0 {
			b.outputs = append(b.outputs, d)
		}
	}
}

func (b *base) checkOpcode() error {
	info := opTable[b.op]
	opcode := b.word.Bits(31, 26)
	if opcode != info.opcode {
		return fmt.Errorf("%w: %s expects opcode 0x%02X, got 0x%02X in %s",
			ErrMalformedEncoding, info.name, info.opcode, opcode, b.word)
	}
	if info.format == FormatR && b.word.Bits(5, 0) != info.funct {
		return fmt.Errorf("%w: %s expects funct 0x%02X, got 0x%02X in %s",
			ErrMalformedEncoding, info.name, info.funct, b.word.Bits(5, 0), b.word)
	}
	return nil
}

func readInputs(ctx ExecContext, ids ...uint8) ([]emu.Word, error) {
	vals := make([]emu.Word, len(ids))
	for i, id := range ids {
		v, err := ctx.ReadReg(id)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// RType is an R-format instruction: opcode | rs | rt | rd | shamt | funct.
type RType struct {
	base

	Rs    uint8
	Rt    uint8
	Rd    uint8
	Shamt uint8
}

// Decode implements Instruction.
func (i *RType) Decode() error {
	if err := i.checkOpcode(); err != nil {
		return err
	}

	i.Rs = uint8(i.word.Bits(25, 21))
	i.Rt = uint8(i.word.Bits(20, 16))
	i.Rd = uint8(i.word.Bits(15, 11))
	i.Shamt = uint8(i.word.Bits(10, 6))

	switch i.op {
	case OpSLL, OpSRL, OpSRA:
		if i.Rs != 0 {
			return fmt.Errorf("%w: %s requires rs=0 in %s", ErrMalformedEncoding, i.Name(), i.word)
		}
		i.setOperands([]uint8{i.Rt}, i.Rd)
	case OpJR:
		if i.Rt != 0 || i.Rd != 0 || i.Shamt != 0 {
			return fmt.Errorf("%w: JR requires rt=rd=shamt=0 in %s", ErrMalformedEncoding, i.word)
		}
		i.setOperands([]uint8{i.Rs})
	default:
		if i.Shamt != 0 {
			return fmt.Errorf("%w: %s requires shamt=0 in %s", ErrMalformedEncoding, i.Name(), i.word)
		}
		i.setOperands([]uint8{i.Rs, i.Rt}, i.Rd)
	}

	return nil
}

// Execute implements Instruction.
func (i *RType) Execute(ctx ExecContext) error {
	vals, err := readInputs(ctx, i.inputs...)
	if err != nil {
		return err
	}

	switch i.op {
	case OpSLL:
		i.result = vals[0] << i.Shamt
		return nil
	case OpSRL:
		i.result = vals[0] >> i.Shamt
		return nil
	case OpSRA:
		i.result = emu.WordFromInt(vals[0].Int32() >> i.Shamt)
		return nil
	case OpJR:
		ctx.Redirect(vals[0].Uint32())
		return nil
	}

	rs, rt := vals[0], vals[1]
	switch i.op {
	case OpADD, OpADDU:
		// Overflow traps are not modelled; ADD wraps like ADDU.
		i.result = rs + rt
	case OpSUB, OpSUBU:
		i.result = rs - rt
	case OpAND:
		i.result = rs & rt
	case OpOR:
		i.result = rs | rt
	case OpXOR:
		i.result = rs ^ rt
	case OpNOR:
		i.result = ^(rs | rt)
	case OpSLT:
		i.result = boolWord(rs.Int32() < rt.Int32())
	case OpSLTU:
		i.result = boolWord(rs < rt)
	}

	return nil
}

// Clone implements Instruction.
func (i *RType) Clone() Instruction {
	c := *i
	c.base = i.base.clone()
	return &c
}

func (i *RType) String() string {
	switch i.op {
	case OpSLL, OpSRL, OpSRA:
		return fmt.Sprintf("%s $%d, $%d, %d", lower(i.op), i.Rd, i.Rt, i.Shamt)
	case OpJR:
		return fmt.Sprintf("jr $%d", i.Rs)
	}
	return fmt.Sprintf("%s $%d, $%d, $%d", lower(i.op), i.Rd, i.Rs, i.Rt)
}

// IType is an I-format instruction: opcode | rs | rt | imm16.
type IType struct {
	base

	Rs  uint8
	Rt  uint8
	Imm uint16

	addr      uint32
	storeData emu.Word
}

// SignedImm returns the sign-extended immediate.
func (i *IType) SignedImm() int32 {
	return int32(int16(i.Imm))
}

// Decode implements Instruction.
func (i *IType) Decode() error {
	if err := i.checkOpcode(); err != nil {
		return err
	}

	i.Rs = uint8(i.word.Bits(25, 21))
	i.Rt = uint8(i.word.Bits(20, 16))
	i.Imm = uint16(i.word.Bits(15, 0))

	switch i.op {
	case OpLUI:
		if i.Rs != 0 {
			return fmt.Errorf("%w: LUI requires rs=0 in %s", ErrMalformedEncoding, i.word)
		}
		i.setOperands(nil, i.Rt)
	case OpSW, OpBEQ, OpBNE:
		i.setOperands([]uint8{i.Rs, i.Rt})
	default:
		i.setOperands([]uint8{i.Rs}, i.Rt)
	}

	return nil
}

// Execute implements Instruction.
func (i *IType) Execute(ctx ExecContext) error {
	vals, err := readInputs(ctx, i.inputs...)
	if err != nil {
		return err
	}

	imm := i.SignedImm()
	zimm := emu.Word(i.Imm)

	switch i.op {
	case OpADDI, OpADDIU:
		i.result = vals[0] + emu.WordFromInt(imm)
	case OpSLTI:
		i.result = boolWord(vals[0].Int32() < imm)
	case OpANDI:
		i.result = vals[0] & zimm
	case OpORI:
		i.result = vals[0] | zimm
	case OpXORI:
		i.result = vals[0] ^ zimm
	case OpLUI:
		i.result = zimm << 16
	case OpLW:
		i.addr = uint32(vals[0] + emu.WordFromInt(imm))
	case OpSW:
		i.addr = uint32(vals[0] + emu.WordFromInt(imm))
		i.storeData = vals[1]
	case OpBEQ, OpBNE:
		equal := vals[0] == vals[1]
		if equal == (i.op == OpBEQ) {
			ctx.Redirect(ctx.PC() + 4 + uint32(imm<<2))
		}
	}

	return nil
}

// Memory implements Instruction.
func (i *IType) Memory(mem *emu.Memory) {
	switch i.op {
	case OpLW:
		i.result = mem.Read32(i.addr)
	case OpSW:
		mem.Write32(i.addr, i.storeData)
	}
}

// Addr returns the effective address computed by a load or store.
func (i *IType) Addr() uint32 {
	return i.addr
}

// Clone implements Instruction.
func (i *IType) Clone() Instruction {
	c := *i
	c.base = i.base.clone()
	return &c
}

func (i *IType) String() string {
	switch i.op {
	case OpLUI:
		return fmt.Sprintf("lui $%d, %d", i.Rt, i.Imm)
	case OpLW, OpSW:
		return fmt.Sprintf("%s $%d, %d($%d)", lower(i.op), i.Rt, i.SignedImm(), i.Rs)
	case OpBEQ, OpBNE:
		return fmt.Sprintf("%s $%d, $%d, %d", lower(i.op), i.Rs, i.Rt, i.SignedImm())
	case OpANDI, OpORI, OpXORI:
		return fmt.Sprintf("%s $%d, $%d, %d", lower(i.op), i.Rt, i.Rs, i.Imm)
	}
	return fmt.Sprintf("%s $%d, $%d, %d", lower(i.op), i.Rt, i.Rs, i.SignedImm())
}

// JType is a J-format instruction: opcode | index26.
type JType struct {
	base

	Index uint32
}

// Target returns the jump target for an instruction fetched at pc.
func (i *JType) Target(pc uint32) uint32 {
	return ((pc + 4) & 0xF0000000) | (i.Index << 2)
}

// Decode implements Instruction.
func (i *JType) Decode() error {
	if err := i.checkOpcode(); err != nil {
		return err
	}

	i.Index = i.word.Bits(25, 0)
	if i.op == OpJAL {
		i.setOperands(nil, 31)
	} else {
		i.setOperands(nil)
	}

	return nil
}

// Execute implements Instruction. JAL links to the next sequential
// instruction since there is no branch delay slot.
func (i *JType) Execute(ctx ExecContext) error {
	pc := ctx.PC()
	if i.op == OpJAL {
		i.result = emu.Word(pc + 4)
	}
	ctx.Redirect(i.Target(pc))
	return nil
}

// Clone implements Instruction.
func (i *JType) Clone() Instruction {
	c := *i
	c.base = i.base.clone()
	return &c
}

func (i *JType) String() string {
	return fmt.Sprintf("%s 0x%X", lower(i.op), i.Index<<2)
}

func boolWord(b bool) emu.Word {
	if b {
		return 1
	}
	return 0
}
