package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/instrumentd/internal/engine"
	"github.com/roach88/instrumentd/internal/ir"
)

// Scenario defines one instrument lifecycle to execute and check.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog is inline CUE source for the instrument catalog.
	Catalog string `yaml:"catalog,omitempty"`

	// CatalogFile is a catalog path, relative to the scenario file.
	// Exactly one of Catalog and CatalogFile is set.
	CatalogFile string `yaml:"catalog_file,omitempty"`

	// Start is the time of the first action. Defaults to 1000.
	Start ir.Timestamp `yaml:"start,omitempty"`

	// Flow holds the actions to execute after the catalog's boot actions.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`

	// FlowToken is the fixed flow token for every action. If empty,
	// defaults to "test-flow-default".
	FlowToken string `yaml:"flow_token,omitempty"`
}

// DefaultStart is the scenario clock's start when none is given.
const DefaultStart ir.Timestamp = 1000

// FlowStep is one action, optionally preceded by a clock advance.
type FlowStep struct {
	engine.Action `yaml:",inline"`

	// Advance moves the scenario clock forward by seconds before the action.
	Advance ir.Timestamp `yaml:"advance,omitempty"`

	// AdvanceDays moves the clock forward by whole days before the action.
	AdvanceDays int `yaml:"advance_days,omitempty"`

	// Expect validates the action's outcome. If nil the action must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a flow step.
type ExpectClause struct {
	// Outcome is "ok" or "error".
	Outcome string `yaml:"outcome"`

	// Code is the expected error code when Outcome is "error".
	Code string `yaml:"code,omitempty"`

	// Instrument is the expected id from activate_instrument.
	Instrument ir.InstrumentID `yaml:"instrument,omitempty"`

	// Issuance is the expected id from create_issuance.
	Issuance ir.IssuanceID `yaml:"issuance,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Event is the event kind (event_contains, event_count).
	Event string `yaml:"event,omitempty"`

	// Fields are expected event payload fields, subset match (event_contains).
	Fields map[string]any `yaml:"fields,omitempty"`

	// Events is the expected event kind order (event_order).
	Events []string `yaml:"events,omitempty"`

	// Count is the expected number of occurrences (event_count).
	Count int `yaml:"count,omitempty"`

	// Instrument and Issuance locate state (balance, state, custom_data).
	// Issuance 0 means the instrument escrow (balance).
	Instrument ir.InstrumentID `yaml:"instrument,omitempty"`
	Issuance   ir.IssuanceID   `yaml:"issuance,omitempty"`

	Owner  ir.Address `yaml:"owner,omitempty"`
	Asset  ir.AssetID `yaml:"asset,omitempty"`
	Amount *int64     `yaml:"amount,omitempty"`

	// State is the expected issuance state name (state).
	State string `yaml:"state,omitempty"`

	// Key is the custom data key; Fields holds the expected decoded
	// properties (custom_data).
	Key string `yaml:"key,omitempty"`
}

// Assertion type constants.
const (
	AssertEventContains = "event_contains"
	AssertEventOrder    = "event_order"
	AssertEventCount    = "event_count"
	AssertBalance       = "balance"
	AssertWallet        = "wallet"
	AssertState         = "state"
	AssertCustomData    = "custom_data"
	AssertReplay        = "replay"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative catalog_file is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if scenario.CatalogFile != "" && !filepath.IsAbs(scenario.CatalogFile) {
		scenario.CatalogFile = filepath.Join(filepath.Dir(path), scenario.CatalogFile)
	}
	if scenario.CatalogFile != "" {
		if _, err := os.Stat(scenario.CatalogFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: catalog file not found: %s", scenario.CatalogFile)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML. catalog_file is left unresolved.
func ParseScenario(data []byte) (*Scenario, error) {
	// Reject unknown fields (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if scenario.Start == 0 {
		scenario.Start = DefaultStart
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if (s.Catalog == "") == (s.CatalogFile == "") {
		return fmt.Errorf("exactly one of catalog and catalog_file is required")
	}
	if s.Start < 0 {
		return fmt.Errorf("start must not be negative")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if step.Kind == "" {
			return fmt.Errorf("flow[%d]: kind is required", i)
		}
		if step.Advance < 0 || step.AdvanceDays < 0 {
			return fmt.Errorf("flow[%d]: advance must not be negative", i)
		}
		if step.Expect != nil {
			switch ir.Outcome(step.Expect.Outcome) {
			case ir.OutcomeOK:
			case ir.OutcomeError:
				if step.Expect.Code == "" {
					return fmt.Errorf("flow[%d].expect: code is required for outcome error", i)
				}
			default:
				return fmt.Errorf("flow[%d].expect: outcome must be ok or error, got %q", i, step.Expect.Outcome)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEventContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_contains", index)
		}
	case AssertEventOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for event_order", index)
		}
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertBalance:
		if a.Instrument == 0 || a.Owner == "" || a.Asset == "" || a.Amount == nil {
			return fmt.Errorf("assertions[%d]: instrument, owner, asset and amount are required for balance", index)
		}
	case AssertWallet:
		if a.Owner == "" || a.Amount == nil {
			return fmt.Errorf("assertions[%d]: owner and amount are required for wallet", index)
		}
	case AssertState:
		if a.Instrument == 0 || a.Issuance == 0 || a.State == "" {
			return fmt.Errorf("assertions[%d]: instrument, issuance and state are required for state", index)
		}
		if _, err := ir.ParseState(a.State); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertCustomData:
		if a.Instrument == 0 || a.Issuance == 0 || a.Key == "" || len(a.Fields) == 0 {
			return fmt.Errorf("assertions[%d]: instrument, issuance, key and fields are required for custom_data", index)
		}
	case AssertReplay:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
