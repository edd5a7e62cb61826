package latency_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/mipssim/emu"
	"github.com/sarchlab/mipssim/insts"
	"github.com/sarchlab/mipssim/timing/latency"
)

var _ = Describe("Latency", func() {
	var table *latency.Table

	BeforeEach(func() {
		table = latency.NewTable()
	})

	decode := func(w emu.Word) insts.Instruction {
		inst, err := insts.NewDecoder().Decode(w)
		Expect(err).NotTo(HaveOccurred())
		return inst
	}

	Describe("Default Timing Values", func() {
		It("should use single-cycle stages", func() {
			for s := insts.StageID; s <= insts.StageWB; s++ {
				Expect(table.StageCycles(s)).To(Equal(1))
			}
			Expect(table.Depth()).To(Equal(4))
		})

		It("should clock every stage at 1 GHz", func() {
			Expect(table.StageFrequency(insts.StageEX)).To(Equal(1 * sim.GHz))
		})

		It("should not forward", func() {
			Expect(table.Config().Forwarding).To(BeEmpty())
		})
	})

	Describe("Result latencies", func() {
		It("should have ALU results after execute", func() {
			Expect(table.ResultLatency(insts.OpADD)).To(Equal(1))
		})

		It("should have load results after memory", func() {
			Expect(table.ResultLatency(insts.OpLW)).To(Equal(2))
		})

		It("should follow configured stage latencies", func() {
			config := latency.DefaultPipelineConfig()
			config.ExecuteCycles = 2
			config.MemoryCycles = 3
			table = latency.NewTableWithConfig(config)

			Expect(table.ResultLatency(insts.OpADD)).To(Equal(2))
			Expect(table.ResultLatency(insts.OpLW)).To(Equal(5))
			Expect(table.Depth()).To(Equal(7))
		})
	})

	Describe("Classification", func() {
		It("should classify loads", func() {
			// lw $9, 8($29) -> 0x8FA90008
			inst := decode(0x8FA90008)
			Expect(table.IsLoadOp(inst)).To(BeTrue())
			Expect(table.IsMemoryOp(inst)).To(BeTrue())
			Expect(table.IsStoreOp(inst)).To(BeFalse())
		})

		It("should classify stores", func() {
			// sw $9, -4($29) -> 0xAFA9FFFC
			inst := decode(0xAFA9FFFC)
			Expect(table.IsStoreOp(inst)).To(BeTrue())
			Expect(table.IsMemoryOp(inst)).To(BeTrue())
		})

		It("should classify branches and jumps", func() {
			// beq $8, $9, -2 -> 0x1109FFFE
			Expect(table.IsBranchOp(decode(0x1109FFFE))).To(BeTrue())
			// jr $31 -> 0x03E00008
			Expect(table.IsBranchOp(decode(0x03E00008))).To(BeTrue())
			Expect(table.Classify(insts.OpJAL)).To(Equal(latency.ClassJump))
		})

		It("should classify ALU operations", func() {
			// add $8, $9, $10 -> 0x012A4020
			inst := decode(0x012A4020)
			Expect(table.Classify(inst.Op())).To(Equal(latency.ClassALU))
			Expect(table.IsMemoryOp(inst)).To(BeFalse())
			Expect(table.IsBranchOp(inst)).To(BeFalse())
		})

		It("should handle nil instructions", func() {
			Expect(table.IsLoadOp(nil)).To(BeFalse())
			Expect(table.IsBranchOp(nil)).To(BeFalse())
		})

		It("should name every class", func() {
			names := []string{}
			for _, c := range latency.Classes() {
				names = append(names, c.String())
			}
			Expect(names).To(Equal([]string{"alu", "load", "store", "branch", "jump"}))
		})
	})

	Describe("PipelineConfig", func() {
		var tempDir string

		BeforeEach(func() {
			tempDir = GinkgoT().TempDir()
		})

		It("should validate the defaults", func() {
			Expect(latency.DefaultPipelineConfig().Validate()).To(Succeed())
		})

		It("should reject a zero-cycle stage", func() {
			config := latency.DefaultPipelineConfig()
			config.MemoryCycles = 0

			Expect(config.Validate()).To(MatchError(latency.ErrInvalidConfig))
		})

		It("should reject a non-positive frequency", func() {
			config := latency.DefaultPipelineConfig()
			config.WritebackMHz = 0

			Expect(config.Validate()).To(MatchError(latency.ErrInvalidConfig))
		})

		It("should reject malformed forwarding paths", func() {
			config := latency.DefaultPipelineConfig()
			config.Forwarding = []string{"EX=>EX"}

			Expect(config.Validate()).To(MatchError(latency.ErrInvalidConfig))
		})

		It("should reject forwarding paths the pipeline cannot model", func() {
			config := latency.DefaultPipelineConfig()
			config.Forwarding = []string{"EX->EX", "WB->ID"}

			err := config.Validate()

			Expect(err).To(MatchError(latency.ErrInvalidConfig))
			Expect(err.Error()).To(ContainSubstring("WB->ID"))
		})

		It("should accept both supported forwarding paths", func() {
			config := latency.DefaultPipelineConfig()
			config.Forwarding = []string{"EX->EX", "MEM->EX"}

			Expect(config.Validate()).To(Succeed())
		})

		It("should parse forwarding paths", func() {
			config := latency.DefaultPipelineConfig()
			config.Forwarding = []string{"EX->EX", " mem -> ex "}

			edges, err := config.Edges()

			Expect(err).NotTo(HaveOccurred())
			Expect(edges).To(Equal([]latency.Edge{
				{From: insts.StageEX, To: insts.StageEX},
				{From: insts.StageMEM, To: insts.StageEX},
			}))
			Expect(edges[1].String()).To(Equal("MEM->EX"))
		})

		It("should round-trip through JSON", func() {
			config := latency.DefaultPipelineConfig()
			config.ExecuteCycles = 3
			config.MemoryMHz = 500
			config.Forwarding = []string{"MEM->EX"}
			path := filepath.Join(tempDir, "pipeline.json")

			Expect(config.SaveConfig(path)).To(Succeed())
			loaded, err := latency.LoadConfig(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(config))
		})

		It("should keep defaults for missing fields", func() {
			path := filepath.Join(tempDir, "partial.json")
			Expect(os.WriteFile(path, []byte(`{"memory_cycles": 2}`), 0644)).To(Succeed())

			loaded, err := latency.LoadConfig(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.MemoryCycles).To(Equal(2))
			Expect(loaded.DecodeCycles).To(Equal(1))
			Expect(loaded.ExecuteMHz).To(Equal(1000.0))
		})

		It("should fail on a missing file", func() {
			_, err := latency.LoadConfig(filepath.Join(tempDir, "missing.json"))
			Expect(err).To(HaveOccurred())
		})

		It("should clone deeply", func() {
			config := latency.DefaultPipelineConfig()
			config.Forwarding = []string{"EX->EX"}

			clone := config.Clone()
			clone.Forwarding[0] = "MEM->EX"
			clone.DecodeCycles = 4

			Expect(config.Forwarding[0]).To(Equal("EX->EX"))
			Expect(config.DecodeCycles).To(Equal(1))
		})
	})
})
