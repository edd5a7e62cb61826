package emu

// NumRegs is the number of general-purpose registers.
const NumRegs = 32

// RegFile represents the MIPS32 general-purpose register file.
//
// Storage is plain: register 0 is not hardwired here. Instructions that
// name $zero as their destination declare no output register, so nothing
// in the pipeline ever writes it.
type RegFile struct {
	// R holds registers $0-$31.
	R [NumRegs]Word
}

// ReadReg reads a register value. Ids outside 0-31 read as 0.
func (r *RegFile) ReadReg(id uint8) Word {
	if int(id) >= NumRegs {
		return 0
	}
	return r.R[id]
}

// WriteReg writes a register value. Writes to ids outside 0-31 are
// ignored.
func (r *RegFile) WriteReg(id uint8, value Word) {
	if int(id) >= NumRegs {
		return
	}
	r.R[id] = value
}

// ReadInt reads a register as a signed integer.
func (r *RegFile) ReadInt(id uint8) int32 {
	return r.ReadReg(id).Int32()
}

// WriteInt writes a signed integer to a register.
func (r *RegFile) WriteInt(id uint8, value int32) {
	r.WriteReg(id, WordFromInt(value))
}
