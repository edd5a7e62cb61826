// Package loader reads MIPS program files.
//
// A program file is YAML. It lists the program either as assembly lines or
// as raw instruction words, and optionally the initial register and data
// memory contents:
//
//	registers:
//	  - {reg: $t1, value: 5}
//	memory:
//	  - {addr: 0x100, value: -7}
//	program:
//	  - "loop: addi $t1, $t1, -1"
//	  - "      bne $t1, $zero, loop"
package loader

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/mipssim/emu"
	"github.com/sarchlab/mipssim/insts"
	"github.com/sarchlab/mipssim/timing/pipeline"
)

// ErrNoProgram is returned for a file that lists neither assembly nor
// instruction words.
var ErrNoProgram = errors.New("program file has no instructions")

// RegisterInit is the initial value of one register.
type RegisterInit struct {
	Reg   string `yaml:"reg"`
	Value int32  `yaml:"value"`
}

// MemoryInit is the initial value of one data memory word.
type MemoryInit struct {
	Addr  uint32 `yaml:"addr"`
	Value int32  `yaml:"value"`
}

type programFile struct {
	Registers []RegisterInit `yaml:"registers"`
	Memory    []MemoryInit   `yaml:"memory"`
	Program   []string       `yaml:"program"`
	Words     []uint32       `yaml:"words"`
}

// Program is a loaded program ready to be placed in a pipeline.
type Program struct {
	// Words are the instruction encodings, the first placed at
	// pipeline.BaseAddress.
	Words []emu.Word

	// Registers and Memory are the initial machine state.
	Registers []RegisterInit
	Memory    []MemoryInit
}

// Load reads and assembles a program file.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program file: %w", err)
	}

	prog, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return prog, nil
}

// Parse assembles a program from the YAML text of a program file.
func Parse(data []byte) (*Program, error) {
	var f programFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse program file: %w", err)
	}

	if len(f.Program) > 0 && len(f.Words) > 0 {
		return nil, fmt.Errorf("program file lists both assembly and words")
	}

	prog := &Program{
		Registers: f.Registers,
		Memory:    f.Memory,
	}

	switch {
	case len(f.Program) > 0:
		words, err := insts.NewAssembler(pipeline.BaseAddress).Assemble(f.Program)
		if err != nil {
			return nil, fmt.Errorf("failed to assemble program: %w", err)
		}
		prog.Words = words
	case len(f.Words) > 0:
		for _, w := range f.Words {
			prog.Words = append(prog.Words, emu.Word(w))
		}
	}

	if len(prog.Words) == 0 {
		return nil, ErrNoProgram
	}

	for _, r := range prog.Registers {
		if _, err := insts.ParseReg(r.Reg); err != nil {
			return nil, fmt.Errorf("initial registers: %w", err)
		}
	}

	return prog, nil
}

// Instructions decodes the program words. Every call returns fresh
// instructions, so a program can be run more than once.
func (p *Program) Instructions() ([]insts.Instruction, error) {
	return insts.DecodeProgram(p.Words)
}

// Apply writes the initial register and memory contents.
func (p *Program) Apply(regFile *emu.RegFile, memory *emu.Memory) error {
	for _, r := range p.Registers {
		id, err := insts.ParseReg(r.Reg)
		if err != nil {
			return err
		}
		regFile.WriteInt(id, r.Value)
	}

	for _, m := range p.Memory {
		memory.Write32(m.Addr, emu.WordFromInt(m.Value))
	}

	return nil
}
