package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"
)

// Step operations.
const (
	OpRegister = "register"
	OpClaim    = "claim"
	OpRelease  = "release"
	OpOwner    = "owner"
	OpList     = "list"
	OpGet      = "get"
)

// Scenario defines a sequence of ledger operations issued by several masters.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Masters lists the participating masters. Each gets its own store.
	Masters []string `yaml:"masters"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`
}

// Step is one ledger operation.
type Step struct {
	// Op is one of register, claim, release, owner, list, get.
	Op string `yaml:"op"`

	// Master selects the store that runs the step. For claim it is also
	// the claiming master; for owner-checked release the releasing one.
	Master string `yaml:"master,omitempty"`

	// Name is the change-source name (register).
	Name string `yaml:"name,omitempty"`

	// ID is the change-source id (claim, release, owner, get).
	ID int64 `yaml:"id,omitempty"`

	// OwnerChecked makes release remove only Master's own claim.
	OwnerChecked bool `yaml:"owner_checked,omitempty"`

	// Filter holds the list criteria. Unset fields are not applied.
	Filter *FilterSpec `yaml:"filter,omitempty"`

	// Expect is checked against the step's outcome. Nil means no check.
	Expect *Expect `yaml:"expect,omitempty"`
}

// FilterSpec mirrors the optional list criteria.
type FilterSpec struct {
	ID     *int64  `yaml:"id,omitempty"`
	Owner  *string `yaml:"owner,omitempty"`
	Active *bool   `yaml:"active,omitempty"`
}

// Expect specifies the expected outcome of a step. Only set fields are checked.
type Expect struct {
	// Outcome is the expected outcome (ok, claimed, already_claimed, not_found, ...).
	Outcome string `yaml:"outcome,omitempty"`

	// ID is the expected id returned by register.
	ID *int64 `yaml:"id,omitempty"`

	// Owner is the expected owner; empty string means unowned.
	Owner *string `yaml:"owner,omitempty"`

	// Released is the expected result of an owner-checked release.
	Released *bool `yaml:"released,omitempty"`

	// Views is the expected list (or get) result, in order.
	Views *[]ViewSpec `yaml:"views,omitempty"`
}

// ViewSpec is an expected directory row.
type ViewSpec struct {
	ID    int64  `yaml:"id"`
	Name  string `yaml:"name"`
	Owner string `yaml:"owner,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "expects:" vs "expect:"
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
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
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

	if len(s.Masters) == 0 {
		return fmt.Errorf("masters list is required and must be non-empty")
	}
	for i, m := range s.Masters {
		if m == "" {
			return fmt.Errorf("masters[%d]: must be non-empty", i)
		}
		if slices.Index(s.Masters, m) != i {
			return fmt.Errorf("masters[%d]: duplicate master %q", i, m)
		}
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, step := range s.Steps {
		if err := validateStep(s, step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	return nil
}

// validateStep validates a single step based on its op.
func validateStep(s *Scenario, step Step) error {
	if step.Master != "" && !slices.Contains(s.Masters, step.Master) {
		return fmt.Errorf("unknown master %q", step.Master)
	}

	switch step.Op {
	case OpRegister:
		if step.Name == "" {
			return fmt.Errorf("name is required for register")
		}
	case OpClaim:
		if step.Master == "" {
			return fmt.Errorf("master is required for claim")
		}
		if step.ID <= 0 {
			return fmt.Errorf("positive id is required for claim")
		}
	case OpRelease:
		if step.ID <= 0 {
			return fmt.Errorf("positive id is required for release")
		}
		if step.OwnerChecked && step.Master == "" {
			return fmt.Errorf("master is required for owner_checked release")
		}
	case OpOwner, OpGet:
		if step.ID <= 0 {
			return fmt.Errorf("positive id is required for %s", step.Op)
		}
	case OpList:
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	return nil
}
