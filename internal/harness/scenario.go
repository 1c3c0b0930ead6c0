package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cmsync/internal/model"
	"github.com/roach88/cmsync/internal/reconcile"
)

// Scenario defines a reconciliation test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Files maps slash-separated paths to file contents. Declarations
	// reference them by path.
	Files map[string]string `yaml:"files,omitempty"`

	// Runs are reconciled in order against the same store.
	Runs []Run `yaml:"runs"`

	// Assertions are evaluated after the last run.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Run is one reconciliation within a scenario.
type Run struct {
	Declaration model.Declaration `yaml:"declaration"`

	// Expect lists item results in report order. Items not listed are not
	// checked.
	Expect []ExpectItem `yaml:"expect,omitempty"`

	// Assertions are evaluated right after this run.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ExpectItem is the expected result of one declared item.
type ExpectItem struct {
	Phase   string `yaml:"phase"`
	Key     string `yaml:"key"`
	Outcome string `yaml:"outcome"`

	// ErrorKind, if set, must equal the item's error kind.
	ErrorKind string `yaml:"error_kind,omitempty"`
}

// Assertion validates reports or final store state.
type Assertion struct {
	Type string `yaml:"type"`

	// Run selects one run (1-based) for outcome_count and item_order.
	// Zero means every run for outcome_count and the last run for
	// item_order.
	Run int `yaml:"run,omitempty"`

	// Phase narrows outcome_count to one phase.
	Phase string `yaml:"phase,omitempty"`

	// Outcome is the counted outcome (outcome_count).
	Outcome string `yaml:"outcome,omitempty"`

	// Key is the item followed across runs (same_ids).
	Key string `yaml:"key,omitempty"`

	// Keys is the expected key order (item_order).
	Keys []string `yaml:"keys,omitempty"`

	// Table and Where select store rows (row_count, final_state).
	Table string         `yaml:"table,omitempty"`
	Where map[string]any `yaml:"where,omitempty"`

	// Expect holds expected column values (final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of items or rows.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertOutcomeCount = "outcome_count"
	AssertItemOrder    = "item_order"
	AssertSameIDs      = "same_ids"
	AssertRowCount     = "row_count"
	AssertFinalState   = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
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

// LoadScenarios loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Runs) == 0 {
		return fmt.Errorf("at least one run is required")
	}

	for i, run := range s.Runs {
		for j, e := range run.Expect {
			if err := validateExpect(e); err != nil {
				return fmt.Errorf("runs[%d].expect[%d]: %w", i, j, err)
			}
		}
		for j, a := range run.Assertions {
			if err := validateAssertion(a, len(s.Runs)); err != nil {
				return fmt.Errorf("runs[%d].assertions[%d]: %w", i, j, err)
			}
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a, len(s.Runs)); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateExpect(e ExpectItem) error {
	if !slices.Contains(reconcile.Phases, reconcile.Phase(e.Phase)) {
		return fmt.Errorf("unknown phase %q", e.Phase)
	}
	if e.Key == "" {
		return fmt.Errorf("key is required")
	}
	if !slices.Contains(reconcile.Outcomes, reconcile.Outcome(e.Outcome)) {
		return fmt.Errorf("unknown outcome %q", e.Outcome)
	}
	return nil
}

// validateAssertion checks that an assertion has the fields its type needs.
func validateAssertion(a Assertion, runs int) error {
	if a.Run < 0 || a.Run > runs {
		return fmt.Errorf("run %d out of range 1..%d", a.Run, runs)
	}
	if a.Phase != "" && !slices.Contains(reconcile.Phases, reconcile.Phase(a.Phase)) {
		return fmt.Errorf("unknown phase %q", a.Phase)
	}
	if a.Count < 0 {
		return fmt.Errorf("count must be non-negative")
	}

	switch a.Type {
	case AssertOutcomeCount:
		if !slices.Contains(reconcile.Outcomes, reconcile.Outcome(a.Outcome)) {
			return fmt.Errorf("unknown outcome %q for outcome_count", a.Outcome)
		}
	case AssertItemOrder:
		if len(a.Keys) < 2 {
			return fmt.Errorf("item_order needs at least two keys")
		}
	case AssertSameIDs:
		if a.Key == "" {
			return fmt.Errorf("key is required for same_ids")
		}
	case AssertRowCount:
		if a.Table == "" {
			return fmt.Errorf("table is required for row_count")
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("table is required for final_state")
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("expect is required for final_state")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
