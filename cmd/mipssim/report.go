package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sarchlab/mipssim/emu"
	"github.com/sarchlab/mipssim/insts"
	"github.com/sarchlab/mipssim/timing/core"
	"github.com/sarchlab/mipssim/timing/latency"
	"github.com/sarchlab/mipssim/timing/pipeline"
)

// Report is the end-of-run summary of a simulation.
type Report struct {
	Program  string
	Config   *latency.PipelineConfig
	Stats    core.Stats
	Recorder *pipeline.EventRecorder
	RegFile  *emu.RegFile
}

// Print writes the report tables.
func (r *Report) Print(w io.Writer, withCommits, withState bool) {
	fmt.Fprintln(w, r.statsTable().Render())
	fmt.Fprintln(w)
	fmt.Fprintln(w, r.mixTable().Render())

	if withCommits {
		fmt.Fprintln(w)
		fmt.Fprintln(w, r.commitTable().Render())
	}

	if withState {
		fmt.Fprintln(w)
		fmt.Fprintln(w, r.registerTable().Render())
	}
}

func (r *Report) statsTable() table.Writer {
	s := r.Stats

	t := table.NewWriter()
	t.SetTitle(r.Program)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Forwarding", fmt.Sprintf("%v", r.Config.Forwarding)},
		{"Cycles", s.Cycles},
		{"Instructions", s.Instructions},
		{"CPI", fmt.Sprintf("%.2f", s.CPI())},
		{"Stalls", s.Stalls},
		{"Stall %", fmt.Sprintf("%.1f%%", 100*s.StallPercentage)},
		{"Flushes", s.Flushes},
		{"Data hazards", len(r.Recorder.Stalls)},
		{"Simulated time", fmt.Sprintf("%.3g s", s.Seconds)},
	})

	return t
}

func (r *Report) mixTable() table.Writer {
	t := table.NewWriter()
	t.SetTitle("Instruction Mix")
	t.AppendHeader(table.Row{"Class", "Retired"})
	for _, c := range latency.Classes() {
		t.AppendRow(table.Row{c, r.Stats.Mix[c]})
	}

	return t
}

func (r *Report) commitTable() table.Writer {
	t := table.NewWriter()
	t.SetTitle("Commit Log")
	t.AppendHeader(table.Row{"Cycle", "PC", "Instruction", "Result"})
	for _, c := range r.Recorder.Commits {
		result := ""
		if c.HasOutput {
			result = fmt.Sprintf("%s = %d", insts.RegName(c.Reg), c.Value)
		}
		t.AppendRow(table.Row{c.Cycle, fmt.Sprintf("0x%08X", c.PC), c.Inst, result})
	}

	return t
}

func (r *Report) registerTable() table.Writer {
	t := table.NewWriter()
	t.SetTitle("Registers")
	t.AppendHeader(table.Row{"Row", "+0", "+1", "+2", "+3", "+4", "+5", "+6", "+7"})
	for row := 0; row < emu.NumRegs/8; row++ {
		cells := table.Row{fmt.Sprintf("$%d", row*8)}
		for col := 0; col < 8; col++ {
			cells = append(cells, r.RegFile.ReadInt(uint8(row*8+col)))
		}
		t.AppendRow(cells)
	}

	return t
}
