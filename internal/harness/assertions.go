package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/csledger/internal/changesource"
)

// AssertionError is returned when a step's expect clause does not match.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Step     int          // Index of the failing step
	Op       string       // Step operation
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Trace up to and including the failing step
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Expectation failed: steps[%d] %s\n", e.Step, e.Op)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nTrace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s %v -> %s\n", event.Seq, event.Master, event.Op, event.Args, event.Outcome)
	}

	return buf.String()
}

// checkExpect compares a step's outcome against its expect clause.
// The first mismatch is reported.
func checkExpect(index int, step Step, out stepOutcome, trace []TraceEvent) error {
	exp := step.Expect
	fail := func(expected, actual string) error {
		return &AssertionError{
			Step:     index,
			Op:       step.Op,
			Expected: expected,
			Actual:   actual,
			Trace:    trace,
		}
	}

	wantOutcome := exp.Outcome
	if wantOutcome == "" && step.Op != OpClaim {
		// Value expectations imply the step succeeded.
		wantOutcome = OutcomeOK
	}
	if wantOutcome != "" && out.outcome != wantOutcome {
		return fail("outcome "+wantOutcome, "outcome "+out.outcome)
	}

	if exp.ID != nil && int64(out.id) != *exp.ID {
		return fail(fmt.Sprintf("id %d", *exp.ID), fmt.Sprintf("id %d", out.id))
	}

	if exp.Owner != nil && string(out.owner) != *exp.Owner {
		return fail(fmt.Sprintf("owner %q", *exp.Owner), fmt.Sprintf("owner %q", out.owner))
	}

	if exp.Released != nil && out.released != *exp.Released {
		return fail(fmt.Sprintf("released %t", *exp.Released), fmt.Sprintf("released %t", out.released))
	}

	if exp.Views != nil {
		want := formatViewSpecs(*exp.Views)
		got := formatViews(out.views)
		if want != got {
			return fail("views "+want, "views "+got)
		}
	}

	return nil
}

func formatViewSpecs(specs []ViewSpec) string {
	views := make([]changesource.View, len(specs))
	for i, s := range specs {
		views[i] = changesource.View{
			ID:    changesource.ID(s.ID),
			Name:  s.Name,
			Owner: changesource.MasterID(s.Owner),
		}
	}
	return formatViews(views)
}

// formatViews renders views as [{id name owner} ...] with "-" for unowned.
func formatViews(views []changesource.View) string {
	parts := make([]string, len(views))
	for i, v := range views {
		owner := string(v.Owner)
		if owner == "" {
			owner = "-"
		}
		parts[i] = fmt.Sprintf("{%d %s %s}", v.ID, v.Name, owner)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
