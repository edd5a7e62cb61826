// Package main provides the entry point for mipssim.
// mipssim is a cycle-level simulator of a 4-stage pipelined MIPS32 CPU.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/mipssim/emu"
	"github.com/sarchlab/mipssim/loader"
	"github.com/sarchlab/mipssim/timing/core"
	"github.com/sarchlab/mipssim/timing/latency"
	"github.com/sarchlab/mipssim/timing/pipeline"
)

var (
	configPath = flag.String("config", "", "Path to pipeline configuration JSON file")
	saveConfig = flag.String("save-config", "", "Write the effective pipeline configuration to this path")
	forward    = flag.String("forward", "", "Comma-separated forwarding paths, e.g. EX->EX,MEM->EX (overrides the config)")
	maxCycles  = flag.Uint64("max-cycles", 1_000_000, "Give up after this many cycles")
	commits    = flag.Bool("commits", false, "Print the commit log")
	state      = flag.Bool("state", false, "Print the final register file")
	verbose    = flag.Bool("v", false, "Verbose output")
	traceLog   = flag.String("trace", "", "Write per-cycle JSON trace to this file")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: mipssim [options] <program.yaml>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		atexit.Exit(2)
	}

	setupLogging()

	config, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading pipeline config: %v\n", err)
		atexit.Exit(1)
	}

	if *saveConfig != "" {
		if err := config.SaveConfig(*saveConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving pipeline config: %v\n", err)
			atexit.Exit(1)
		}
	}

	programPath := flag.Arg(0)
	atexit.Exit(run(programPath, config, os.Stdout))
}

func setupLogging() {
	var trace io.Writer
	if *traceLog != "" {
		f, err := os.Create(*traceLog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating trace file: %v\n", err)
			atexit.Exit(1)
		}
		atexit.Register(func() { _ = f.Close() })
		trace = f
	}

	slog.SetDefault(slog.New(newLogHandler(os.Stderr, trace, *verbose)))
}

func loadConfig() (*latency.PipelineConfig, error) {
	config := latency.DefaultPipelineConfig()
	if *configPath != "" {
		var err error
		config, err = latency.LoadConfig(*configPath)
		if err != nil {
			return nil, err
		}
	}

	if *forward != "" {
		config = config.Clone()
		config.Forwarding = nil
		for _, edge := range strings.Split(*forward, ",") {
			config.Forwarding = append(config.Forwarding, strings.TrimSpace(edge))
		}
	}

	return config, config.Validate()
}

// run simulates the program file and prints the report. It returns the
// process exit code.
func run(programPath string, config *latency.PipelineConfig, out io.Writer) int {
	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		return 1
	}

	program, err := prog.Instructions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding program: %v\n", err)
		return 1
	}

	regFile := &emu.RegFile{}
	memory := emu.NewMemory()
	if err := prog.Apply(regFile, memory); err != nil {
		fmt.Fprintf(os.Stderr, "Error applying initial state: %v\n", err)
		return 1
	}

	c, err := core.NewCore(config, program, regFile, memory)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating core: %v\n", err)
		return 1
	}

	recorder := pipeline.NewEventRecorder()
	c.AcceptHook(recorder)

	slog.Info("simulation started", "program", programPath, "instructions", len(program))

	exitCode := 0
	if _, err := c.Run(*maxCycles); err != nil {
		fmt.Fprintf(os.Stderr, "Simulation stopped: %v\n", err)
		exitCode = 1
	}

	report := &Report{
		Program:  programPath,
		Config:   config,
		Stats:    c.Stats(),
		Recorder: recorder,
		RegFile:  regFile,
	}
	report.Print(out, *commits, *state)

	return exitCode
}
