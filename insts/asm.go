package insts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sarchlab/mipssim/emu"
)

// Assembler turns MIPS assembly text into machine words placed at
// consecutive 4-byte addresses starting from a base address.
type Assembler struct {
	base uint32
}

// NewAssembler creates an assembler that places the first instruction at
// base.
func NewAssembler(base uint32) *Assembler {
	return &Assembler{base: base}
}

// Assemble assembles a program. Lines may carry "label:" prefixes and
// "#" comments; blank lines are skipped. Branch and jump operands may name
// labels.
func (a *Assembler) Assemble(lines []string) ([]emu.Word, error) {
	labels := make(map[string]uint32)
	var body []string
	var lineNos []int

	pc := a.base
	for n, raw := range lines {
		text := stripComment(raw)
		for {
			colon := strings.Index(text, ":")
			if colon < 0 {
				break
			}
			label := strings.TrimSpace(text[:colon])
			if label == "" || strings.ContainsAny(label, " \t$,") {
				return nil, fmt.Errorf("line %d: bad label %q", n+1, label)
			}
			if _, dup := labels[label]; dup {
				return nil, fmt.Errorf("line %d: duplicate label %q", n+1, label)
			}
			labels[label] = pc
			text = strings.TrimSpace(text[colon+1:])
		}
		if text == "" {
			continue
		}
		body = append(body, text)
		lineNos = append(lineNos, n+1)
		pc += 4
	}

	words := make([]emu.Word, 0, len(body))
	for i, text := range body {
		w, err := AssembleLine(text, a.base+uint32(4*i), labels)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNos[i], err)
		}
		words = append(words, w)
	}

	return words, nil
}

// Assemble assembles a single instruction with numeric operands only.
func Assemble(line string) (emu.Word, error) {
	return AssembleLine(line, 0, nil)
}

// AssembleLine assembles one instruction located at pc. labels resolves
// symbolic branch and jump targets and may be nil.
func AssembleLine(line string, pc uint32, labels map[string]uint32) (emu.Word, error) {
	text := stripComment(line)
	if text == "" {
		return 0, fmt.Errorf("empty instruction")
	}

	if raw, err := strconv.ParseUint(text, 0, 32); err == nil {
		return emu.Word(raw), nil
	}

	mnemonic, rest := text, ""
	if i := strings.IndexAny(text, " \t"); i >= 0 {
		mnemonic, rest = text[:i], text[i+1:]
	}
	mnemonic = strings.ToLower(mnemonic)
	args := splitOperands(rest)

	if mnemonic == "nop" {
		return EncodeR(OpSLL, 0, 0, 0, 0)
	}

	op, ok := LookupOp(mnemonic)
	if !ok {
		return 0, fmt.Errorf("unknown mnemonic %q", mnemonic)
	}

	switch op {
	case OpSLL, OpSRL, OpSRA:
		if err := wantArgs(op, args, 3); err != nil {
			return 0, err
		}
		rd, rt, err := parseRegPair(args[0], args[1])
		if err != nil {
			return 0, err
		}
		shamt, err := strconv.ParseUint(args[2], 0, 5)
		if err != nil {
			return 0, fmt.Errorf("%s: bad shift amount %q", op, args[2])
		}
		return EncodeR(op, rd, 0, rt, uint8(shamt))

	case OpJR:
		if err := wantArgs(op, args, 1); err != nil {
			return 0, err
		}
		rs, err := ParseReg(args[0])
		if err != nil {
			return 0, err
		}
		return EncodeR(op, 0, rs, 0, 0)

	case OpLUI:
		if err := wantArgs(op, args, 2); err != nil {
			return 0, err
		}
		rt, err := ParseReg(args[0])
		if err != nil {
			return 0, err
		}
		imm, err := parseImm(args[1])
		if err != nil {
			return 0, err
		}
		return EncodeI(op, rt, 0, imm)

	case OpLW, OpSW:
		if err := wantArgs(op, args, 2); err != nil {
			return 0, err
		}
		rt, err := ParseReg(args[0])
		if err != nil {
			return 0, err
		}
		imm, rs, err := parseMemOperand(args[1])
		if err != nil {
			return 0, err
		}
		return EncodeI(op, rt, rs, imm)

	case OpBEQ, OpBNE:
		if err := wantArgs(op, args, 3); err != nil {
			return 0, err
		}
		rs, rt, err := parseRegPair(args[0], args[1])
		if err != nil {
			return 0, err
		}
		offset, err := branchOffset(args[2], pc, labels)
		if err != nil {
			return 0, err
		}
		return EncodeI(op, rt, rs, offset)

	case OpJ, OpJAL:
		if err := wantArgs(op, args, 1); err != nil {
			return 0, err
		}
		target, err := jumpTarget(args[0], labels)
		if err != nil {
			return 0, err
		}
		return EncodeJ(op, target)
	}

	switch op.Format() {
	case FormatR:
		if err := wantArgs(op, args, 3); err != nil {
			return 0, err
		}
		rd, rs, err := parseRegPair(args[0], args[1])
		if err != nil {
			return 0, err
		}
		rt, err := ParseReg(args[2])
		if err != nil {
			return 0, err
		}
		return EncodeR(op, rd, rs, rt, 0)

	default:
		if err := wantArgs(op, args, 3); err != nil {
			return 0, err
		}
		rt, rs, err := parseRegPair(args[0], args[1])
		if err != nil {
			return 0, err
		}
		imm, err := parseImm(args[2])
		if err != nil {
			return 0, err
		}
		return EncodeI(op, rt, rs, imm)
	}
}

func stripComment(line string) string {
	if i := strings.IndexAny(line, "#;"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

func splitOperands(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func wantArgs(op Op, args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s takes %d operands, got %d", op, n, len(args))
	}
	return nil
}

func parseRegPair(a, b string) (uint8, uint8, error) {
	x, err := ParseReg(a)
	if err != nil {
		return 0, 0, err
	}
	y, err := ParseReg(b)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func parseImm(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad immediate %q", s)
	}
	return int32(v), nil
}

// parseMemOperand parses "imm($rs)"; the immediate may be omitted.
func parseMemOperand(s string) (int32, uint8, error) {
	open := strings.Index(s, "(")
	if open < 0 || !strings.HasSuffix(s, ")") {
		return 0, 0, fmt.Errorf("bad memory operand %q", s)
	}

	var imm int32
	if immText := strings.TrimSpace(s[:open]); immText != "" {
		v, err := parseImm(immText)
		if err != nil {
			return 0, 0, err
		}
		imm = v
	}

	rs, err := ParseReg(s[open+1 : len(s)-1])
	if err != nil {
		return 0, 0, err
	}

	return imm, rs, nil
}

func branchOffset(arg string, pc uint32, labels map[string]uint32) (int32, error) {
	if target, ok := labels[arg]; ok {
		return int32(target-(pc+4)) / 4, nil
	}
	return parseImm(arg)
}

func jumpTarget(arg string, labels map[string]uint32) (uint32, error) {
	if target, ok := labels[arg]; ok {
		return target, nil
	}
	v, err := strconv.ParseUint(arg, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown jump target %q", arg)
	}
	return uint32(v), nil
}
