package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/csledger/internal/changesource"
	"github.com/roach88/csledger/internal/store"
)

// Harness executes scenario steps against one store per master.
type Harness struct {
	stores  map[string]*store.Store
	masters []string
	logger  *slog.Logger
}

// stepOutcome is what a step observed, before it is recorded in the trace.
type stepOutcome struct {
	outcome  string
	id       changesource.ID
	owner    changesource.MasterID
	released bool
	views    []changesource.View
	result   any
}

// Run executes a scenario against a fresh database at dbPath.
//
// Execution flow:
// 1. Open one store per master on dbPath
// 2. Execute steps in order, recording a trace event for each
// 3. Check each step's expect clause, collecting failures in the result
//
// An error is returned only when the harness itself cannot run; expectation
// failures are reported through Result.
func Run(ctx context.Context, scenario *Scenario, dbPath string) (*Result, error) {
	h := &Harness{
		stores:  make(map[string]*store.Store, len(scenario.Masters)),
		masters: scenario.Masters,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	defer h.close()

	for _, m := range scenario.Masters {
		st, err := store.Open(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open store for %s: %w", m, err)
		}
		h.stores[m] = st
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		out, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}

		event := TraceEvent{
			Seq:     int64(i + 1),
			Master:  step.Master,
			Op:      step.Op,
			Args:    stepArgs(step),
			Outcome: out.outcome,
			Result:  out.result,
		}
		result.AddTrace(event)
		h.logger.Debug("step executed", "seq", event.Seq, "op", step.Op, "outcome", out.outcome)

		if step.Expect != nil {
			if err := checkExpect(i, step, out, result.Trace); err != nil {
				result.AddError(err.Error())
			}
		}
	}

	return result, nil
}

func (h *Harness) close() {
	for _, st := range h.stores {
		st.Close()
	}
}

// storeFor returns the store a step runs on.
func (h *Harness) storeFor(step Step) *store.Store {
	if step.Master != "" {
		return h.stores[step.Master]
	}
	return h.stores[h.masters[0]]
}

// execute runs one step. Ledger errors become outcomes; only a canceled
// context aborts the run.
func (h *Harness) execute(ctx context.Context, step Step) (stepOutcome, error) {
	st := h.storeFor(step)
	id := changesource.ID(step.ID)
	master := changesource.MasterID(step.Master)

	var (
		out stepOutcome
		err error
	)
	switch step.Op {
	case OpRegister:
		out.id, err = st.FindOrCreateChangeSource(ctx, step.Name)
		out.result = map[string]any{"id": out.id}

	case OpClaim:
		var res changesource.ClaimResult
		res, err = st.ClaimChangeSource(ctx, id, master)
		out.outcome = res.String()

	case OpRelease:
		if step.OwnerChecked {
			out.released, err = st.ReleaseChangeSourceFor(ctx, id, master)
			out.result = map[string]any{"released": out.released}
		} else {
			err = st.ReleaseChangeSource(ctx, id)
		}

	case OpOwner:
		var ok bool
		out.owner, ok, err = st.ChangeSourceOwner(ctx, id)
		if ok {
			out.result = map[string]any{"owner": out.owner}
		} else {
			out.result = map[string]any{"owner": nil}
		}

	case OpList:
		out.views, err = st.ListChangeSources(ctx, step.Filter.filter())
		out.result = out.views

	case OpGet:
		var (
			view changesource.View
			ok   bool
		)
		view, ok, err = st.GetChangeSource(ctx, id)
		if err == nil && !ok {
			out.outcome = OutcomeNotFound
			return out, nil
		}
		out.views = []changesource.View{view}
		out.owner = view.Owner
		out.result = view

	default:
		return out, fmt.Errorf("unknown op %q", step.Op)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return out, err
		}
		return stepOutcome{outcome: classify(err)}, nil
	}
	if out.outcome == "" {
		out.outcome = OutcomeOK
	}
	return out, nil
}

// classify maps a ledger error to a trace outcome.
func classify(err error) string {
	switch {
	case changesource.IsNotFound(err):
		return OutcomeNotFound
	case changesource.IsAlreadyClaimed(err):
		return OutcomeAlreadyClaimed
	case changesource.IsStoreUnavailable(err):
		return OutcomeStoreUnavailable
	case errors.Is(err, changesource.ErrInvalidName):
		return OutcomeInvalidName
	default:
		return OutcomeError
	}
}

// filter folds the criteria into a Filter. Nil criteria list everything.
func (f *FilterSpec) filter() changesource.Filter {
	if f == nil {
		return changesource.All{}
	}
	var (
		id    *changesource.ID
		owner *changesource.MasterID
	)
	if f.ID != nil {
		v := changesource.ID(*f.ID)
		id = &v
	}
	if f.Owner != nil {
		v := changesource.MasterID(*f.Owner)
		owner = &v
	}
	return changesource.NewFilter(id, owner, f.Active)
}

// stepArgs renders the inputs of a step for the trace.
func stepArgs(step Step) map[string]any {
	args := map[string]any{}
	switch step.Op {
	case OpRegister:
		args["name"] = step.Name
	case OpClaim, OpOwner, OpGet:
		args["id"] = step.ID
	case OpRelease:
		args["id"] = step.ID
		if step.OwnerChecked {
			args["owner_checked"] = true
		}
	case OpList:
		if step.Filter != nil {
			if step.Filter.ID != nil {
				args["id"] = *step.Filter.ID
			}
			if step.Filter.Owner != nil {
				args["owner"] = *step.Filter.Owner
			}
			if step.Filter.Active != nil {
				args["active"] = *step.Filter.Active
			}
		}
	}
	if len(args) == 0 {
		return nil
	}
	return args
}
