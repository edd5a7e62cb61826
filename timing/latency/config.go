package latency

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sarchlab/mipssim/insts"
)

// ErrInvalidConfig is returned by Validate for an unusable configuration.
var ErrInvalidConfig = errors.New("invalid pipeline config")

// PipelineConfig holds the per-stage timing of the pipeline.
type PipelineConfig struct {
	// DecodeCycles is the number of cycles an instruction spends in the
	// decode stage. Default: 1 cycle.
	DecodeCycles int `json:"decode_cycles"`

	// ExecuteCycles is the number of cycles spent in the execute stage.
	// Default: 1 cycle.
	ExecuteCycles int `json:"execute_cycles"`

	// MemoryCycles is the number of cycles spent in the memory stage.
	// Default: 1 cycle.
	MemoryCycles int `json:"memory_cycles"`

	// WritebackCycles is the number of cycles spent in the writeback
	// stage. Default: 1 cycle.
	WritebackCycles int `json:"writeback_cycles"`

	// DecodeMHz, ExecuteMHz, MemoryMHz and WritebackMHz are the highest
	// clock rates each stage supports. Default: 1000 MHz.
	DecodeMHz    float64 `json:"decode_mhz"`
	ExecuteMHz   float64 `json:"execute_mhz"`
	MemoryMHz    float64 `json:"memory_mhz"`
	WritebackMHz float64 `json:"writeback_mhz"`

	// Forwarding lists the enabled bypass paths, written "FROM->TO" with
	// stage names ID, EX, MEM and WB (e.g. "EX->EX").
	Forwarding []string `json:"forwarding"`
}

// Edge is one forwarding path.
type Edge struct {
	From insts.Stage
	To   insts.Stage
}

func (e Edge) String() string {
	return e.From.String() + "->" + e.To.String()
}

// ParseEdge parses a forwarding path written "FROM->TO".
func ParseEdge(s string) (Edge, error) {
	from, to, ok := strings.Cut(s, "->")
	if !ok {
		return Edge{}, fmt.Errorf("forwarding path %q: expected FROM->TO", s)
	}

	fromStage, err := insts.ParseStage(strings.TrimSpace(from))
	if err != nil {
		return Edge{}, fmt.Errorf("forwarding path %q: %w", s, err)
	}

	toStage, err := insts.ParseStage(strings.TrimSpace(to))
	if err != nil {
		return Edge{}, fmt.Errorf("forwarding path %q: %w", s, err)
	}

	return Edge{From: fromStage, To: toStage}, nil
}

// DefaultPipelineConfig returns a PipelineConfig with single-cycle stages
// at 1 GHz and no forwarding.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		DecodeCycles:    1,
		ExecuteCycles:   1,
		MemoryCycles:    1,
		WritebackCycles: 1,
		DecodeMHz:       1000,
		ExecuteMHz:      1000,
		MemoryMHz:       1000,
		WritebackMHz:    1000,
	}
}

// LoadConfig loads a PipelineConfig from a JSON file. Fields missing from
// the file keep their default values.
func LoadConfig(path string) (*PipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline config file: %w", err)
	}

	config := DefaultPipelineConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a PipelineConfig to a JSON file.
func (c *PipelineConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize pipeline config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write pipeline config file: %w", err)
	}

	return nil
}

// Validate checks that every stage takes at least one cycle, every stage
// has a positive clock rate and every forwarding path parses and is one
// the pipeline can model.
func (c *PipelineConfig) Validate() error {
	for _, s := range []insts.Stage{
		insts.StageID, insts.StageEX, insts.StageMEM, insts.StageWB,
	} {
		if c.StageCycles(s) < 1 {
			return fmt.Errorf("%w: %s cycles must be > 0", ErrInvalidConfig, s)
		}
		if c.StageMHz(s) <= 0 {
			return fmt.Errorf("%w: %s frequency must be > 0", ErrInvalidConfig, s)
		}
	}

	edges, err := c.Edges()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for _, e := range edges {
		if !insts.CanForward(e.From, e.To) {
			return fmt.Errorf("%w: unsupported forwarding path %s", ErrInvalidConfig, e)
		}
	}

	return nil
}

// Edges parses the forwarding paths.
func (c *PipelineConfig) Edges() ([]Edge, error) {
	edges := make([]Edge, 0, len(c.Forwarding))
	for _, s := range c.Forwarding {
		e, err := ParseEdge(s)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, nil
}

// StageCycles returns the configured latency of a stage.
func (c *PipelineConfig) StageCycles(s insts.Stage) int {
	switch s {
	case insts.StageID:
		return c.DecodeCycles
	case insts.StageEX:
		return c.ExecuteCycles
	case insts.StageMEM:
		return c.MemoryCycles
	case insts.StageWB:
		return c.WritebackCycles
	default:
		return 0
	}
}

// StageMHz returns the configured clock rate of a stage in MHz.
func (c *PipelineConfig) StageMHz(s insts.Stage) float64 {
	switch s {
	case insts.StageID:
		return c.DecodeMHz
	case insts.StageEX:
		return c.ExecuteMHz
	case insts.StageMEM:
		return c.MemoryMHz
	case insts.StageWB:
		return c.WritebackMHz
	default:
		return 0
	}
}

// Clone returns a deep copy of the PipelineConfig.
func (c *PipelineConfig) Clone() *PipelineConfig {
	clone := *c
	clone.Forwarding = append([]string(nil), c.Forwarding...)
	return &clone
}
