package emu

// Memory is a sparse, word-granular data memory.
//
// Addresses are byte addresses; accesses are aligned down to the
// containing word since misaligned access faults are not modelled.
type Memory struct {
	words map[uint32]Word
}

// NewMemory creates an empty memory. Unwritten words read as 0.
func NewMemory() *Memory {
	return &Memory{
		words: make(map[uint32]Word),
	}
}

// Read32 reads the word containing addr.
func (m *Memory) Read32(addr uint32) Word {
	return m.words[addr&^3]
}

// Write32 writes the word containing addr.
func (m *Memory) Write32(addr uint32, value Word) {
	m.words[addr&^3] = value
}

// Len returns the number of words that have been written.
func (m *Memory) Len() int {
	return len(m.words)
}
