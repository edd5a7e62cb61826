package insts

import (
	"fmt"

	"github.com/sarchlab/mipssim/emu"
)

// EncodeR encodes an R-format instruction.
func EncodeR(op Op, rd, rs, rt, shamt uint8) (emu.Word, error) {
	info, ok := opTable[op]
	if !ok || info.format != FormatR {
		return 0, fmt.Errorf("%s is not an R-format instruction", op)
	}
	if rd > 31 || rs > 31 || rt > 31 || shamt > 31 {
		return 0, fmt.Errorf("%s: register or shift amount out of range", op)
	}

	w := info.opcode<<26 |
		uint32(rs)<<21 |
		uint32(rt)<<16 |
		uint32(rd)<<11 |
		uint32(shamt)<<6 |
		info.funct

	return emu.Word(w), nil
}

// EncodeI encodes an I-format instruction. imm must fit in 16 bits,
// signed or unsigned.
func EncodeI(op Op, rt, rs uint8, imm int32) (emu.Word, error) {
	info, ok := opTable[op]
	if !ok || info.format != FormatI {
		return 0, fmt.Errorf("%s is not an I-format instruction", op)
	}
	if rt > 31 || rs > 31 {
		return 0, fmt.Errorf("%s: register out of range", op)
	}
	if imm < -0x8000 || imm > 0xFFFF {
		return 0, fmt.Errorf("%s: immediate %d does not fit in 16 bits", op, imm)
	}

	w := info.opcode<<26 |
		uint32(rs)<<21 |
		uint32(rt)<<16 |
		uint32(imm)&0xFFFF

	return emu.Word(w), nil
}

// EncodeJ encodes a J-format instruction jumping to the byte address
// target. Only the low 28 bits of target are encoded.
func EncodeJ(op Op, target uint32) (emu.Word, error) {
	info, ok := opTable[op]
	if !ok || info.format != FormatJ {
		return 0, fmt.Errorf("%s is not a J-format instruction", op)
	}
	if target&3 != 0 {
		return 0, fmt.Errorf("%s: target 0x%X is not word aligned", op, target)
	}

	return emu.Word(info.opcode<<26 | (target>>2)&0x3FFFFFF), nil
}
