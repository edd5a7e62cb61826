package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mipssim/emu"
	"github.com/sarchlab/mipssim/insts"
)

var _ = Describe("Assembler", func() {
	DescribeTable("single instructions",
		func(line string, want emu.Word) {
			w, err := insts.Assemble(line)
			Expect(err).NotTo(HaveOccurred())
			Expect(w).To(Equal(want))
		},
		Entry("add", "add $t0, $t1, $t2", emu.Word(0x012A4020)),
		Entry("numeric registers", "add $8, $9, $10", emu.Word(0x012A4020)),
		Entry("tab separated", "add\t$8, $9, $10", emu.Word(0x012A4020)),
		Entry("sub", "sub $s0, $s1, $s2", emu.Word(0x02328022)),
		Entry("sll", "sll $t0, $t1, 4", emu.Word(0x00094100)),
		Entry("jr", "jr $ra", emu.Word(0x03E00008)),
		Entry("addi", "addi $t0, $zero, -1", emu.Word(0x2008FFFF)),
		Entry("lw", "lw $t1, 8($sp)", emu.Word(0x8FA90008)),
		Entry("sw", "sw $t1, -4($sp)", emu.Word(0xAFA9FFFC)),
		Entry("lui", "lui $t0, 0x1234", emu.Word(0x3C081234)),
		Entry("beq", "beq $t0, $t1, -2", emu.Word(0x1109FFFE)),
		Entry("j", "j 0x40000010", emu.Word(0x08000004)),
		Entry("jal", "jal 0x40000100", emu.Word(0x0C000040)),
		Entry("nop", "nop", emu.Word(0)),
		Entry("raw word", "0x012A4020", emu.Word(0x012A4020)),
		Entry("trailing comment", "add $8, $9, $10 # sum", emu.Word(0x012A4020)),
	)

	DescribeTable("errors",
		func(line string) {
			_, err := insts.Assemble(line)
			Expect(err).To(HaveOccurred())
		},
		Entry("unknown mnemonic", "mul $8, $9, $10"),
		Entry("unknown register", "add $8, $9, $x1"),
		Entry("missing operand", "add $8, $9"),
		Entry("immediate too wide", "addi $8, $9, 70000"),
		Entry("bad memory operand", "lw $8, 4"),
		Entry("empty", "   # only a comment"),
	)

	Describe("programs", func() {
		It("should resolve labels relative to the base address", func() {
			a := insts.NewAssembler(0x40000000)
			words, err := a.Assemble([]string{
				"# countdown",
				"start: addi $t1, $t1, -1",
				"",
				"       bne $t1, $zero, start",
				"       j end",
				"       nop",
				"end:   nop",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(words).To(HaveLen(5))

			bne, err := insts.NewDecoder().Decode(words[1])
			Expect(err).NotTo(HaveOccurred())
			Expect(bne.(*insts.IType).SignedImm()).To(Equal(int32(-2)))

			j, err := insts.NewDecoder().Decode(words[2])
			Expect(err).NotTo(HaveOccurred())
			Expect(j.(*insts.JType).Target(0x40000008)).To(Equal(uint32(0x40000010)))
		})

		It("should report the line of an error", func() {
			_, err := insts.NewAssembler(0).Assemble([]string{
				"nop",
				"bogus $1",
			})
			Expect(err).To(MatchError(ContainSubstring("line 2")))
		})

		It("should reject duplicate labels", func() {
			_, err := insts.NewAssembler(0).Assemble([]string{
				"a: nop",
				"a: nop",
			})
			Expect(err).To(MatchError(ContainSubstring("duplicate label")))
		})
	})

	Describe("registers", func() {
		It("should name and parse registers", func() {
			Expect(insts.RegName(29)).To(Equal("$sp"))

			for _, name := range []string{"$29", "29", "$sp", "sp"} {
				id, err := insts.ParseReg(name)
				Expect(err).NotTo(HaveOccurred())
				Expect(id).To(Equal(uint8(29)))
			}

			id, err := insts.ParseReg("$s8")
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal(uint8(30)))

			_, err = insts.ParseReg("$32")
			Expect(err).To(HaveOccurred())
		})
	})
})
