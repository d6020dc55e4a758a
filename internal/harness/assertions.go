package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/liquidator/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes the full trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEntry
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, entry := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s", entry.Seq, entry.Type, entry.Name, entry.Key)
			if entry.Status != "" {
				fmt.Fprintf(&buf, " (%s)", entry.Status)
			}
			if entry.Code != "" {
				fmt.Fprintf(&buf, " (%s)", entry.Code)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertActionContains:
		return assertActionContains(result.Trace, a)
	case AssertActionOrder:
		return assertActionOrder(result.Trace, a)
	case AssertActionCount:
		return assertActionCount(result.Trace, a)
	case AssertFinalState:
		return assertFinalState(result, a)
	case AssertStoreCount:
		return assertStoreCount(result, a)
	case AssertErrorCount:
		return assertErrorCount(result.Trace, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// actions returns the action entries, optionally restricted to target.
func actions(trace []TraceEntry, target string) []TraceEntry {
	var out []TraceEntry
	for _, e := range trace {
		if e.Type != EntryAction {
			continue
		}
		if target != "" && !sameAddress(e.Key, target) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func assertActionContains(trace []TraceEntry, a Assertion) error {
	for _, e := range actions(trace, a.Target) {
		if e.Name == a.Kind {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertActionContains,
		Expected: fmt.Sprintf("action %s%s", a.Kind, forTarget(a.Target)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertActionOrder checks that the kinds occur as a subsequence of the
// actions. Intervening actions are allowed.
func assertActionOrder(trace []TraceEntry, a Assertion) error {
	next := 0
	for _, e := range actions(trace, a.Target) {
		if next < len(a.Kinds) && e.Name == a.Kinds[next] {
			next++
		}
	}
	if next == len(a.Kinds) {
		return nil
	}
	return &AssertionError{
		Type:     AssertActionOrder,
		Expected: fmt.Sprintf("actions in order%s: %v", forTarget(a.Target), a.Kinds),
		Actual:   fmt.Sprintf("matched %d of %d, missing %s", next, len(a.Kinds), a.Kinds[next]),
		Trace:    trace,
	}
}

func assertActionCount(trace []TraceEntry, a Assertion) error {
	count := 0
	for _, e := range actions(trace, a.Target) {
		if e.Name == a.Kind {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertActionCount,
		Expected: fmt.Sprintf("%d occurrences of %s%s", a.Count, a.Kind, forTarget(a.Target)),
		Actual:   fmt.Sprintf("%d occurrences", count),
		Trace:    trace,
	}
}

func assertErrorCount(trace []TraceEntry, a Assertion) error {
	count := 0
	for _, e := range trace {
		if e.Type == EntryError && (a.Code == "" || e.Code == a.Code) {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	what := "errors"
	if a.Code != "" {
		what = a.Code + " errors"
	}
	return &AssertionError{
		Type:     AssertErrorCount,
		Expected: fmt.Sprintf("%d %s", a.Count, what),
		Actual:   fmt.Sprintf("%d", count),
		Trace:    trace,
	}
}

func assertStoreCount(result *Result, a Assertion) error {
	var count int
	switch ir.Family(a.Family) {
	case ir.FamilyDeposit:
		count = len(result.Deposits)
	case ir.FamilyAuction:
		count = len(result.Auctions)
	default:
		return fmt.Errorf("unknown family %q", a.Family)
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertStoreCount,
		Expected: fmt.Sprintf("%d live %s entities", a.Count, a.Family),
		Actual:   fmt.Sprintf("%d", count),
	}
}

// assertFinalState checks one entity of the final mirror. Expect is a
// subset match over the entity's fields.
func assertFinalState(result *Result, a Assertion) error {
	fields, found, err := entityFields(result, a.Family, a.Address)
	if err != nil {
		return err
	}

	if a.Absent {
		if !found {
			return nil
		}
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s %s absent", a.Family, a.Address),
			Actual:   fmt.Sprintf("present with %s", formatFields(fields)),
		}
	}
	if !found {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s %s present", a.Family, a.Address),
			Actual:   "not found",
		}
	}

	for _, key := range sortedFieldKeys(a.Expect) {
		want := a.Expect[key]
		got, ok := fields[key]
		if !ok {
			return fmt.Errorf("unknown %s field %q", a.Family, key)
		}
		if key == "token" {
			if sameAddress(got, want) {
				continue
			}
		} else if got == want {
			continue
		}
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s %s %s=%s", a.Family, a.Address, key, want),
			Actual:   fmt.Sprintf("%s=%s", key, got),
		}
	}
	return nil
}

func entityFields(result *Result, family, address string) (map[string]string, bool, error) {
	switch ir.Family(family) {
	case ir.FamilyDeposit:
		for _, d := range result.Deposits {
			if sameAddress(d.Address, address) {
				return map[string]string{"state": d.State}, true, nil
			}
		}
		return nil, false, nil
	case ir.FamilyAuction:
		for _, au := range result.Auctions {
			if sameAddress(au.Address, address) {
				return map[string]string{
					"state":  au.State,
					"token":  au.Token,
					"amount": au.Amount,
				}, true, nil
			}
		}
		return nil, false, nil
	}
	return nil, false, fmt.Errorf("unknown family %q", family)
}

func sameAddress(a, b string) bool {
	return common.HexToAddress(a) == common.HexToAddress(b)
}

func forTarget(target string) string {
	if target == "" {
		return ""
	}
	return " for " + target
}

func sortedFieldKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func formatFields(m map[string]string) string {
	parts := make([]string, 0, len(m))
	for _, k := range sortedFieldKeys(m) {
		parts = append(parts, k+"="+m[k])
	}
	return strings.Join(parts, " ")
}
