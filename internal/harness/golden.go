package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/instrumentd/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string        `json:"scenario_name"`
	FlowToken    string        `json:"flow_token,omitempty"`
	Trace        []TraceAction `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization. Event payloads already carry their kind.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, a := range s.Trace {
		events := make([]any, len(a.Events))
		for j, ev := range a.Events {
			events[j] = ev.Payload
		}
		entry := map[string]any{
			"seq":     a.Seq,
			"kind":    a.Kind,
			"now":     a.Now,
			"outcome": a.Outcome,
			"events":  events,
		}
		if len(a.Args) > 0 {
			entry["args"] = a.Args
		}
		if a.Code != "" {
			entry["code"] = a.Code
		}
		trace[i] = entry
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
	}
	if s.FlowToken != "" {
		result["flow_token"] = s.FlowToken
	}
	return result
}

// Marshal returns the snapshot as canonical JSON.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	traceJSON, err := snapshotOf(scenario, result).Marshal()
	if err != nil {
		return nil, err
	}

	newGoldie(t).Assert(t, scenario.Name, traceJSON)
	return result, nil
}

// GoldenPath returns the golden file kept beside a scenario file:
// <dir>/golden/<base>.golden.
func GoldenPath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

// WriteGolden writes the scenario's trace to path, creating its directory.
func WriteGolden(path string, scenario *Scenario, result *Result) error {
	data, err := snapshotOf(scenario, result).Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// MatchesGolden reports whether the scenario's trace equals the golden
// file at path byte for byte.
func MatchesGolden(path string, scenario *Scenario, result *Result) (bool, error) {
	want, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	got, err := snapshotOf(scenario, result).Marshal()
	if err != nil {
		return false, fmt.Errorf("failed to marshal trace: %w", err)
	}
	return bytes.Equal(want, got), nil
}

func snapshotOf(scenario *Scenario, result *Result) *TraceSnapshot {
	return &TraceSnapshot{
		ScenarioName: scenario.Name,
		FlowToken:    scenario.FlowToken,
		Trace:        result.Trace,
	}
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}
