package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/snc/internal/ir"
)

// DefaultDocument is the document name used when a revision names none.
const DefaultDocument = "doc"

// Expected error kinds.
const (
	ErrorCycle             = "cycle"
	ErrorDuplicateIdentity = "duplicate_identity"
)

// Scenario is one conformance test.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Workers bounds the pool; 0 uses the compiler default.
	Workers int `yaml:"workers,omitempty"`

	// Sequential runs the sequential variant instead of the pool.
	Sequential bool `yaml:"sequential,omitempty"`

	// SkipValidation disables the validation step.
	SkipValidation bool `yaml:"skip_validation,omitempty"`

	// RepairAttempts bounds the self-repair loop.
	RepairAttempts int `yaml:"repair_attempts,omitempty"`

	Collaborators Script     `yaml:"collaborators,omitempty"`
	Revisions     []Revision `yaml:"revisions"`
}

// Script scripts the fake collaborators.
type Script struct {
	FailGenerate  []Failure   `yaml:"fail_generate,omitempty"`
	PanicGenerate []string    `yaml:"panic_generate,omitempty"`
	Reject        []Rejection `yaml:"reject,omitempty"`
	ErrorValidate []string    `yaml:"error_validate,omitempty"`
	FailEvaluate  []string    `yaml:"fail_evaluate,omitempty"`
	Fix           *Fix        `yaml:"fix,omitempty"`
}

// Failure fails generation of content containing Marker. Times 0 fails
// every call.
type Failure struct {
	Marker string `yaml:"marker"`
	Times  int    `yaml:"times,omitempty"`
}

// Rejection fails validation of code containing Marker.
type Rejection struct {
	Marker  string `yaml:"marker"`
	Message string `yaml:"message"`
}

// Fix replaces From with To when repairing code.
type Fix struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Revision is one document update and what it should produce.
type Revision struct {
	Document string `yaml:"document,omitempty"`
	Text     string `yaml:"text"`
	Expect   Expect `yaml:"expect"`
}

// Expect lists the checks for one revision. Nil fields are not checked.
type Expect struct {
	Error          string          `yaml:"error,omitempty"`
	Diff           *ir.DiffSummary `yaml:"diff,omitempty"`
	Levels         [][]string      `yaml:"levels,omitempty"`
	Compiled       []string        `yaml:"compiled,omitempty"`
	Cached         []string        `yaml:"cached,omitempty"`
	Invalid        []string        `yaml:"invalid,omitempty"`
	Errored        []string        `yaml:"errored,omitempty"`
	GeneratorCalls *int            `yaml:"generator_calls,omitempty"`
}

// DocumentName returns the revision's document, or DefaultDocument.
func (r Revision) DocumentName() string {
	if r.Document == "" {
		return DefaultDocument
	}
	return r.Document
}

// LoadScenario reads and validates a scenario file. Unknown keys are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// LoadDir loads every .yaml and .yml file in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenarios: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", dir)
	}
	sort.Strings(names)

	scenarios := make([]*Scenario, 0, len(names))
	for _, n := range names {
		s, err := LoadScenario(filepath.Join(dir, n))
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Workers < 0 {
		return fmt.Errorf("workers must be non-negative")
	}
	if s.RepairAttempts < 0 {
		return fmt.Errorf("repair_attempts must be non-negative")
	}
	if len(s.Revisions) == 0 {
		return fmt.Errorf("revisions list is required and must be non-empty")
	}

	for i, f := range s.Collaborators.FailGenerate {
		if f.Marker == "" {
			return fmt.Errorf("collaborators.fail_generate[%d]: marker is required", i)
		}
		if f.Times < 0 {
			return fmt.Errorf("collaborators.fail_generate[%d]: times must be non-negative", i)
		}
	}
	for i, r := range s.Collaborators.Reject {
		if r.Marker == "" {
			return fmt.Errorf("collaborators.reject[%d]: marker is required", i)
		}
	}
	if f := s.Collaborators.Fix; f != nil && f.From == "" {
		return fmt.Errorf("collaborators.fix: from is required")
	}

	for i, r := range s.Revisions {
		if err := validateExpect(r.Expect); err != nil {
			return fmt.Errorf("revisions[%d].expect: %w", i, err)
		}
	}
	return nil
}

func validateExpect(e Expect) error {
	switch e.Error {
	case "", ErrorCycle, ErrorDuplicateIdentity:
	default:
		return fmt.Errorf("unknown error kind %q (want %q or %q)", e.Error, ErrorCycle, ErrorDuplicateIdentity)
	}
	for _, list := range [][]string{e.Compiled, e.Cached, e.Invalid, e.Errored} {
		for _, k := range list {
			if _, err := ir.ParseIdentityKey(k); err != nil {
				return err
			}
		}
	}
	if e.GeneratorCalls != nil && *e.GeneratorCalls < 0 {
		return fmt.Errorf("generator_calls must be non-negative")
	}
	return nil
}
