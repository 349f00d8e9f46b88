package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of variable operations.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario checks.
	Description string `yaml:"description"`

	// Profile is a CUE profile directory applied before the first step.
	// Relative paths are resolved against the scenario file.
	Profile string `yaml:"profile,omitempty"`

	// MaxIndex caps indexed array subscripts. Zero keeps the default.
	MaxIndex int `yaml:"max_index,omitempty"`

	// Seed is the initial RANDOM seed. Zero keeps the default.
	Seed uint64 `yaml:"seed,omitempty"`

	// Dir is the starting working directory, "/" if empty.
	Dir string `yaml:"dir,omitempty"`

	// NoDirHandles makes directory capture fail, so a cd inside a scope
	// escapes to a fork.
	NoDirHandles bool `yaml:"no_dir_handles,omitempty"`

	Steps []Step `yaml:"steps"`

	base string
}

// Step is one operation. Which fields apply depends on Op.
type Step struct {
	Op string `yaml:"op"`

	Name   string  `yaml:"name,omitempty"`
	Value  *string `yaml:"value,omitempty"`
	Append bool    `yaml:"append,omitempty"`

	// Attrs are typeset flags such as "-i -x". With Clear they are removed.
	Attrs string `yaml:"attrs,omitempty"`
	Clear bool   `yaml:"clear,omitempty"`

	Target string `yaml:"target,omitempty"`
	Dims   []int  `yaml:"dims,omitempty"`
	Dir    string `yaml:"dir,omitempty"`

	Elements  []ScanElement `yaml:"elements,omitempty"`
	Journaled *bool         `yaml:"journaled,omitempty"`
	Depth     *int          `yaml:"depth,omitempty"`
	Contains  []string      `yaml:"contains,omitempty"`
	Excludes  []string      `yaml:"excludes,omitempty"`

	// Error is the nv error code the step must fail with.
	Error string `yaml:"error,omitempty"`
}

// ScanElement is one expected element of an array scan.
type ScanElement struct {
	Sub   string `yaml:"sub"`
	Value string `yaml:"value"`
}

// Step operations.
const (
	OpSet          = "set"
	OpUnset        = "unset"
	OpTypeset      = "typeset"
	OpEnter        = "enter"
	OpExit         = "exit"
	OpFork         = "fork"
	OpChdir        = "chdir"
	OpConvert      = "convert"
	OpRef          = "ref"
	OpDeclareFixed = "declare_fixed"

	OpExpect        = "expect"
	OpExpectUnset   = "expect_unset"
	OpExpectScan    = "expect_scan"
	OpExpectJournal = "expect_journal"
	OpExpectDepth   = "expect_depth"
	OpExpectEnv     = "expect_env"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields, or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	s.base = filepath.Dir(path)
	return s, nil
}

// ParseScenario parses scenario YAML. Relative profile paths are resolved
// against the working directory.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// ProfilePath returns the resolved profile directory, or "".
func (s *Scenario) ProfilePath() string {
	if s.Profile == "" || filepath.IsAbs(s.Profile) {
		return s.Profile
	}
	return filepath.Join(s.base, s.Profile)
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.MaxIndex < 0 {
		return fmt.Errorf("max_index must be non-negative")
	}
	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, st *Step) error {
	need := func(ok bool, what string) error {
		if !ok {
			return fmt.Errorf("steps[%d]: %s is required for %s", i, what, st.Op)
		}
		return nil
	}
	if st.Op == "" {
		return fmt.Errorf("steps[%d]: op is required", i)
	}

	switch st.Op {
	case OpSet, OpExpect:
		if err := need(st.Name != "", "name"); err != nil {
			return err
		}
		return need(st.Value != nil, "value")
	case OpUnset, OpConvert, OpExpectUnset, OpExpectScan:
		return need(st.Name != "", "name")
	case OpTypeset:
		if err := need(st.Name != "", "name"); err != nil {
			return err
		}
		return need(st.Attrs != "", "attrs")
	case OpRef:
		if err := need(st.Name != "", "name"); err != nil {
			return err
		}
		return need(st.Target != "", "target")
	case OpDeclareFixed:
		if err := need(st.Name != "", "name"); err != nil {
			return err
		}
		return need(len(st.Dims) > 0, "dims")
	case OpChdir:
		return need(st.Dir != "", "dir")
	case OpExpectJournal:
		if err := need(st.Name != "", "name"); err != nil {
			return err
		}
		return need(st.Journaled != nil, "journaled")
	case OpExpectDepth:
		return need(st.Depth != nil, "depth")
	case OpExpectEnv:
		return need(len(st.Contains)+len(st.Excludes) > 0, "contains or excludes")
	case OpEnter, OpExit, OpFork:
		return nil
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", i, st.Op)
	}
}
