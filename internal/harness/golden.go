package harness

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Masters      []string     `json:"masters"`
	Trace        []TraceEvent `json:"trace"`
}

// RunWithGolden executes a scenario on a temporary database, reports
// expectation failures, and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	result, err := Run(context.Background(), scenario, dbPath)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}

	return assertSnapshot(t, TraceSnapshot{
		ScenarioName: scenario.Name,
		Masters:      scenario.Masters,
		Trace:        result.Trace,
	})
}

func assertSnapshot(t *testing.T, snapshot TraceSnapshot) error {
	t.Helper()

	traceJSON, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	traceJSON = append(traceJSON, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, snapshot.ScenarioName, traceJSON)

	return nil
}
