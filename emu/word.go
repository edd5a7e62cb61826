// Package emu provides the functional state of a MIPS32 machine: words,
// the register file and data memory.
package emu

import "fmt"

// Word is a 32-bit machine word.
type Word uint32

// Int32 returns the word interpreted as a two's-complement integer.
func (w Word) Int32() int32 {
	return int32(w)
}

// Uint32 returns the raw bits of the word.
func (w Word) Uint32() uint32 {
	return uint32(w)
}

// Uint64 returns the word zero-extended to 64 bits.
func (w Word) Uint64() uint64 {
	return uint64(w)
}

// Bits extracts the bit field [hi:lo] (inclusive) of the word.
func (w Word) Bits(hi, lo uint) uint32 {
	width := hi - lo + 1
	return (uint32(w) >> lo) & (1<<width - 1)
}

// String formats the word as fixed-width hex.
func (w Word) String() string {
	return fmt.Sprintf("0x%08X", uint32(w))
}

// WordFromInt builds a word from a signed integer.
func WordFromInt(v int32) Word {
	return Word(uint32(v))
}
