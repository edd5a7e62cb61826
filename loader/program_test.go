package loader_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mipssim/emu"
	"github.com/sarchlab/mipssim/insts"
	"github.com/sarchlab/mipssim/loader"
)

const countdown = `
registers:
  - {reg: $t1, value: 3}
  - {reg: "10", value: -1}
memory:
  - {addr: 0x100, value: 42}
program:
  - "loop: addi $t1, $t1, -1   # decrement"
  - "      bne $t1, $zero, loop"
  - "      lw $t2, 0x100($zero)"
`

var _ = Describe("Program Loader", func() {
	Describe("Parse", func() {
		It("should assemble the program", func() {
			prog, err := loader.Parse([]byte(countdown))

			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Words).To(HaveLen(3))

			program, err := prog.Instructions()
			Expect(err).NotTo(HaveOccurred())
			Expect(program[0].Op()).To(Equal(insts.OpADDI))
			Expect(program[1].Op()).To(Equal(insts.OpBNE))
			Expect(program[1].(*insts.IType).SignedImm()).To(Equal(int32(-2)))
			Expect(program[2].Op()).To(Equal(insts.OpLW))
		})

		It("should return fresh instructions on every call", func() {
			prog, err := loader.Parse([]byte(countdown))
			Expect(err).NotTo(HaveOccurred())

			a, err := prog.Instructions()
			Expect(err).NotTo(HaveOccurred())
			b, err := prog.Instructions()
			Expect(err).NotTo(HaveOccurred())

			Expect(a[0]).NotTo(BeIdenticalTo(b[0]))
		})

		It("should apply the initial state", func() {
			prog, err := loader.Parse([]byte(countdown))
			Expect(err).NotTo(HaveOccurred())

			regFile := &emu.RegFile{}
			memory := emu.NewMemory()
			Expect(prog.Apply(regFile, memory)).To(Succeed())

			Expect(regFile.ReadInt(9)).To(Equal(int32(3)))
			Expect(regFile.ReadInt(10)).To(Equal(int32(-1)))
			Expect(memory.Read32(0x100).Int32()).To(Equal(int32(42)))
		})

		It("should accept raw instruction words", func() {
			prog, err := loader.Parse([]byte("words: [0x012A4020, 0x2008FFFF]"))

			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Words).To(Equal([]emu.Word{0x012A4020, 0x2008FFFF}))
		})

		It("should reject a file without instructions", func() {
			_, err := loader.Parse([]byte("registers: []"))
			Expect(err).To(MatchError(loader.ErrNoProgram))
		})

		It("should reject both assembly and words", func() {
			_, err := loader.Parse([]byte("program: [nop]\nwords: [0]"))
			Expect(err).To(HaveOccurred())
		})

		It("should reject unknown registers", func() {
			_, err := loader.Parse([]byte("program: [nop]\nregisters: [{reg: $q9, value: 1}]"))
			Expect(err).To(MatchError(ContainSubstring("unknown register")))
		})

		It("should report assembly errors", func() {
			_, err := loader.Parse([]byte("program: [\"frob $1\"]"))
			Expect(err).To(MatchError(ContainSubstring("line 1")))
		})

		It("should reject malformed YAML", func() {
			_, err := loader.Parse([]byte("program: [nop"))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Load", func() {
		It("should read a program file", func() {
			path := filepath.Join(GinkgoT().TempDir(), "countdown.yaml")
			Expect(os.WriteFile(path, []byte(countdown), 0644)).To(Succeed())

			prog, err := loader.Load(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Registers).To(HaveLen(2))
			Expect(prog.Memory).To(Equal([]loader.MemoryInit{{Addr: 0x100, Value: 42}}))
		})

		It("should fail on a missing file", func() {
			_, err := loader.Load(filepath.Join(GinkgoT().TempDir(), "missing.yaml"))
			Expect(err).To(HaveOccurred())
		})
	})
})
