package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/liquidator/internal/ir"
)

// GoldenDir is where RunWithGolden keeps golden traces.
const GoldenDir = "testdata/golden"

// FormatTrace renders a trace snapshot: a header line naming the scenario,
// then one canonical JSON object per trace entry. Every line ends with a
// newline.
func FormatTrace(scenarioName string, trace []TraceEntry) ([]byte, error) {
	var buf bytes.Buffer

	header, err := ir.MarshalCanonical(map[string]any{"scenario": scenarioName})
	if err != nil {
		return nil, err
	}
	buf.Write(header)
	buf.WriteByte('\n')

	for i, e := range trace {
		line, err := ir.MarshalCanonical(e.canonical())
		if err != nil {
			return nil, fmt.Errorf("trace[%d]: %w", i, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func (e TraceEntry) canonical() map[string]any {
	m := map[string]any{
		"type": e.Type,
		"seq":  e.Seq,
		"name": e.Name,
		"key":  e.Key,
	}
	put := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	put("status", e.Status)
	put("code", e.Code)
	put("bid_amount", e.BidAmount)
	put("min_collateral", e.MinCollateral)
	return m
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := FormatTrace(scenarioName, result.Trace)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
