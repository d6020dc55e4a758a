package harness

import (
	"bytes"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/roach88/liquidator/internal/ir"
)

// Scenario is a conformance test: a sequence of events and bids fed to a
// fresh orchestrator, followed by assertions on the resulting trace and
// final mirror.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Failures makes the submitter reject every action for a target.
	Failures []Failure `yaml:"failures,omitempty"`

	// Steps run in order. Each step is an event record or a bid.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Failure injects a submission error for one target address.
type Failure struct {
	Target string `yaml:"target"`
	Error  string `yaml:"error"`
}

// Step is either an event (the record fields, with event set) or a bid.
type Step struct {
	ir.Record `yaml:",inline"`

	Bid *BidStep `yaml:"bid,omitempty"`
}

// BidStep places a bid through the orchestrator.
type BidStep struct {
	Auction       string `yaml:"auction"`
	Amount        string `yaml:"amount"`
	MinCollateral string `yaml:"min_collateral"`
}

// Assertion validates the trace or the final mirror.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Kind is the action kind (action_contains, action_count).
	Kind string `yaml:"kind,omitempty"`

	// Kinds is the expected action order (action_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Target restricts action assertions to one address.
	Target string `yaml:"target,omitempty"`

	// Count is the expected number (action_count, store_count, error_count).
	Count int `yaml:"count,omitempty"`

	// Family selects the mirror (final_state, store_count).
	Family string `yaml:"family,omitempty"`

	// Address selects the entity (final_state).
	Address string `yaml:"address,omitempty"`

	// Expect holds expected entity fields (final_state): state, token, amount.
	// Subset match.
	Expect map[string]string `yaml:"expect,omitempty"`

	// Absent asserts the entity is not in the mirror (final_state).
	Absent bool `yaml:"absent,omitempty"`

	// Code restricts error_count to one error code.
	Code string `yaml:"code,omitempty"`
}

// Assertion types.
const (
	AssertActionContains = "action_contains"
	AssertActionOrder    = "action_order"
	AssertActionCount    = "action_count"
	AssertFinalState     = "final_state"
	AssertStoreCount     = "store_count"
	AssertErrorCount     = "error_count"
)

// LoadScenario reads and validates a scenario YAML file.
// Unknown fields are rejected so that typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document.
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
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, f := range s.Failures {
		if !common.IsHexAddress(f.Target) {
			return fmt.Errorf("failures[%d]: invalid target %q", i, f.Target)
		}
		if f.Error == "" {
			return fmt.Errorf("failures[%d]: error is required", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch {
	case step.Bid != nil && step.Event != "":
		return fmt.Errorf("a step is either an event or a bid, not both")
	case step.Bid != nil:
		if !common.IsHexAddress(step.Bid.Auction) {
			return fmt.Errorf("bid: invalid auction %q", step.Bid.Auction)
		}
		if _, err := ir.ParseAmount(step.Bid.Amount); err != nil {
			return fmt.Errorf("bid: %w", err)
		}
		if _, err := ir.ParseAmount(step.Bid.MinCollateral); err != nil {
			return fmt.Errorf("bid: %w", err)
		}
		return nil
	default:
		_, err := step.Record.ToEvent()
		return err
	}
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Target != "" && !common.IsHexAddress(a.Target) {
		return fmt.Errorf("assertions[%d]: invalid target %q", index, a.Target)
	}

	switch a.Type {
	case AssertActionContains:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for action_contains", index)
		}
	case AssertActionOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for action_order", index)
		}
	case AssertActionCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for action_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for action_count", index)
		}
	case AssertFinalState:
		if err := validateFamily(index, a.Family); err != nil {
			return err
		}
		if !common.IsHexAddress(a.Address) {
			return fmt.Errorf("assertions[%d]: invalid address %q for final_state", index, a.Address)
		}
		if !a.Absent && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect or absent is required for final_state", index)
		}
	case AssertStoreCount:
		if err := validateFamily(index, a.Family); err != nil {
			return err
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for store_count", index)
		}
	case AssertErrorCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for error_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func validateFamily(index int, family string) error {
	switch ir.Family(family) {
	case ir.FamilyDeposit, ir.FamilyAuction:
		return nil
	}
	return fmt.Errorf("assertions[%d]: family must be deposit or auction, got %q", index, family)
}
