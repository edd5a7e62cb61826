package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mipssim/emu"
	"github.com/sarchlab/mipssim/insts"
)

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	Describe("R-format", func() {
		// add $8, $9, $10 -> 0x012A4020
		It("should decode add $8, $9, $10", func() {
			inst, err := decoder.Decode(0x012A4020)
			Expect(err).NotTo(HaveOccurred())

			r, ok := inst.(*insts.RType)
			Expect(ok).To(BeTrue())
			Expect(r.Op()).To(Equal(insts.OpADD))
			Expect(r.Format()).To(Equal(insts.FormatR))
			Expect(r.Rs).To(Equal(uint8(9)))
			Expect(r.Rt).To(Equal(uint8(10)))
			Expect(r.Rd).To(Equal(uint8(8)))
			Expect(r.Inputs()).To(Equal([]uint8{9, 10}))
			Expect(r.Outputs()).To(Equal([]uint8{8}))
			Expect(r.ReadyAfter()).To(Equal(insts.StageEX))
			Expect(r.String()).To(Equal("add $8, $9, $10"))
		})

		// sll $8, $9, 4 -> 0x00094100
		It("should decode shifts reading rt", func() {
			inst, err := decoder.Decode(0x00094100)
			Expect(err).NotTo(HaveOccurred())

			Expect(inst.Op()).To(Equal(insts.OpSLL))
			Expect(inst.Inputs()).To(Equal([]uint8{9}))
			Expect(inst.Outputs()).To(Equal([]uint8{8}))
			Expect(inst.(*insts.RType).Shamt).To(Equal(uint8(4)))
		})

		// jr $31 -> 0x03E00008
		It("should decode jr with no outputs", func() {
			inst, err := decoder.Decode(0x03E00008)
			Expect(err).NotTo(HaveOccurred())

			Expect(inst.Op()).To(Equal(insts.OpJR))
			Expect(inst.Inputs()).To(Equal([]uint8{31}))
			Expect(inst.Outputs()).To(BeEmpty())
		})

		It("should decode the zero word as a shift into $zero", func() {
			inst, err := decoder.Decode(0)
			Expect(err).NotTo(HaveOccurred())

			Expect(inst.Op()).To(Equal(insts.OpSLL))
			Expect(inst.Outputs()).To(BeEmpty())
		})

		It("should reject a non-zero shift amount on add", func() {
			_, err := decoder.Decode(0x012A4060)
			Expect(err).To(MatchError(insts.ErrMalformedEncoding))
		})

		It("should reject a shift with rs set", func() {
			_, err := decoder.Decode(0x00294100)
			Expect(err).To(MatchError(insts.ErrMalformedEncoding))
		})

		It("should reject an unknown funct", func() {
			_, err := decoder.Decode(0x0000003F)
			Expect(err).To(MatchError(insts.ErrMalformedEncoding))
		})
	})

	Describe("I-format", func() {
		// addi $8, $0, -1 -> 0x2008FFFF
		It("should decode addi with a negative immediate", func() {
			inst, err := decoder.Decode(0x2008FFFF)
			Expect(err).NotTo(HaveOccurred())

			i := inst.(*insts.IType)
			Expect(i.Op()).To(Equal(insts.OpADDI))
			Expect(i.SignedImm()).To(Equal(int32(-1)))
			Expect(i.Inputs()).To(Equal([]uint8{0}))
			Expect(i.Outputs()).To(Equal([]uint8{8}))
			Expect(i.String()).To(Equal("addi $8, $0, -1"))
		})

		// lw $9, 8($29) -> 0x8FA90008
		It("should decode lw as ready after memory", func() {
			inst, err := decoder.Decode(0x8FA90008)
			Expect(err).NotTo(HaveOccurred())

			Expect(inst.Op()).To(Equal(insts.OpLW))
			Expect(inst.ReadyAfter()).To(Equal(insts.StageMEM))
			Expect(inst.Inputs()).To(Equal([]uint8{29}))
			Expect(inst.Outputs()).To(Equal([]uint8{9}))
			Expect(inst.String()).To(Equal("lw $9, 8($29)"))
		})

		// sw $9, -4($29) -> 0xAFA9FFFC
		It("should decode sw with two inputs and no outputs", func() {
			inst, err := decoder.Decode(0xAFA9FFFC)
			Expect(err).NotTo(HaveOccurred())

			Expect(inst.Op()).To(Equal(insts.OpSW))
			Expect(inst.Inputs()).To(Equal([]uint8{29, 9}))
			Expect(inst.Outputs()).To(BeEmpty())
		})

		// lui $8, 0x1234 -> 0x3C081234
		It("should decode lui with no inputs", func() {
			inst, err := decoder.Decode(0x3C081234)
			Expect(err).NotTo(HaveOccurred())

			Expect(inst.Op()).To(Equal(insts.OpLUI))
			Expect(inst.Inputs()).To(BeEmpty())
			Expect(inst.Outputs()).To(Equal([]uint8{8}))
		})

		// beq $8, $9, -2 -> 0x1109FFFE
		It("should decode beq", func() {
			inst, err := decoder.Decode(0x1109FFFE)
			Expect(err).NotTo(HaveOccurred())

			Expect(inst.Op()).To(Equal(insts.OpBEQ))
			Expect(inst.Inputs()).To(Equal([]uint8{8, 9}))
			Expect(inst.Outputs()).To(BeEmpty())
		})

		It("should reject an unknown opcode", func() {
			_, err := decoder.Decode(0xFC000000)
			Expect(err).To(MatchError(insts.ErrMalformedEncoding))
		})
	})

	Describe("J-format", func() {
		// j 0x40000010 -> 0x08000004
		It("should decode j and compute its target", func() {
			inst, err := decoder.Decode(0x08000004)
			Expect(err).NotTo(HaveOccurred())

			j := inst.(*insts.JType)
			Expect(j.Op()).To(Equal(insts.OpJ))
			Expect(j.Index).To(Equal(uint32(4)))
			Expect(j.Target(0x40000000)).To(Equal(uint32(0x40000010)))
			Expect(j.Outputs()).To(BeEmpty())
		})

		// jal 0x40000100 -> 0x0C000040
		It("should decode jal as writing $31", func() {
			inst, err := decoder.Decode(0x0C000040)
			Expect(err).NotTo(HaveOccurred())

			Expect(inst.Op()).To(Equal(insts.OpJAL))
			Expect(inst.Outputs()).To(Equal([]uint8{31}))
		})
	})

	Describe("New", func() {
		It("should build the requested kind", func() {
			inst, err := insts.New(insts.OpADD, 0x012A4020)
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Op()).To(Equal(insts.OpADD))
		})

		It("should reject a word of another kind", func() {
			_, err := insts.New(insts.OpSUB, 0x012A4020)
			Expect(err).To(MatchError(insts.ErrMalformedEncoding))

			_, err = insts.New(insts.OpLW, 0x2008FFFF)
			Expect(err).To(MatchError(insts.ErrMalformedEncoding))
		})

		It("should keep Decode idempotent", func() {
			inst, err := insts.New(insts.OpADD, 0x012A4020)
			Expect(err).NotTo(HaveOccurred())

			Expect(inst.Decode()).To(Succeed())
			Expect(inst.Inputs()).To(Equal([]uint8{9, 10}))
			Expect(inst.Outputs()).To(Equal([]uint8{8}))
		})
	})

	Describe("DecodeProgram", func() {
		It("should report the index of a malformed word", func() {
			_, err := insts.DecodeProgram([]emu.Word{0x012A4020, 0xFC000000})
			Expect(err).To(MatchError(insts.ErrMalformedEncoding))
			Expect(err.Error()).To(ContainSubstring("instruction 1"))
		})
	})
})
