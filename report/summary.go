// Package report reads the engine's JSON report and drives the collaborators that turn a
// finished workspace into something a person looks at.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Status is a scenario or step status as written by the engine.
type Status string

const (
	StatusPassed    Status = "passed"
	StatusFailed    Status = "failed"
	StatusError     Status = "error"
	StatusHookError Status = "hook_error"
	StatusSkipped   Status = "skipped"
	StatusUntested  Status = "untested"
	StatusUndefined Status = "undefined"
)

// elementBackground marks the shared steps of a feature; they are not scenarios.
const elementBackground = "background"

// Feature is one entry of the engine's JSON report.
type Feature struct {
	Keyword  string    `json:"keyword"`
	Name     string    `json:"name"`
	Location string    `json:"location"`
	Status   Status    `json:"status"`
	Tags     []string  `json:"tags,omitempty"`
	Elements []Element `json:"elements"`
}

// Element is a scenario or background.
type Element struct {
	Type     string   `json:"type"`
	Keyword  string   `json:"keyword"`
	Name     string   `json:"name"`
	Location string   `json:"location"`
	Status   Status   `json:"status"`
	Tags     []string `json:"tags,omitempty"`
	Steps    []Step   `json:"steps"`
}

type Step struct {
	Keyword string      `json:"keyword"`
	Name    string      `json:"name"`
	Result  *StepResult `json:"result,omitempty"`
}

type StepResult struct {
	Status   Status  `json:"status"`
	Duration float64 `json:"duration"` // seconds
	// ErrorMessage is a string or a list of lines depending on the engine version.
	ErrorMessage json.RawMessage `json:"error_message,omitempty"`
}

// Error flattens the error message into one string.
func (r *StepResult) Error() string {
	if r == nil || len(r.ErrorMessage) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.ErrorMessage, &s); err == nil {
		return s
	}
	var lines []string
	if err := json.Unmarshal(r.ErrorMessage, &lines); err == nil {
		return strings.Join(lines, "\n")
	}
	return string(r.ErrorMessage)
}

// Stats counts scenarios by outcome.
type Stats struct {
	Total     int
	Passed    int
	Failed    int
	Skipped   int
	Undefined int
}

func (s *Stats) add(status Status) {
	s.Total++
	switch status {
	case StatusPassed:
		s.Passed++
	case StatusFailed, StatusError, StatusHookError:
		s.Failed++
	case StatusUndefined:
		s.Undefined++
	default:
		s.Skipped++
	}
}

func (s *Stats) merge(o Stats) {
	s.Total += o.Total
	s.Passed += o.Passed
	s.Failed += o.Failed
	s.Skipped += o.Skipped
	s.Undefined += o.Undefined
}

// HasFailures is true when any scenario failed or used an undefined step.
func (s Stats) HasFailures() bool {
	return s.Failed > 0 || s.Undefined > 0
}

// PassRate is the share of passed scenarios in percent.
func (s Stats) PassRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Passed) * 100 / float64(s.Total)
}

type ScenarioSummary struct {
	Name     string
	Status   Status
	Duration time.Duration
	Error    string // first failing step's message
}

type FeatureSummary struct {
	Name      string
	File      string // scenario file name taken from the feature's location
	Status    Status
	Stats     Stats
	Scenarios []ScenarioSummary
}

// Summary aggregates a whole report.
type Summary struct {
	Features []FeatureSummary
	Stats    Stats
}

// Load reads and summarises the report at path.
func Load(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report %s: %w", path, err)
	}
	return Parse(data)
}

// Parse summarises an engine JSON report. An empty document is an empty summary.
func Parse(data []byte) (*Summary, error) {
	if strings.TrimSpace(string(data)) == "" {
		return &Summary{}, nil
	}
	var features []Feature
	if err := json.Unmarshal(data, &features); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	summary := &Summary{}
	for _, f := range features {
		fs := FeatureSummary{
			Name:   f.Name,
			File:   fileFromLocation(f.Location),
			Status: f.Status,
		}
		for _, el := range f.Elements {
			if el.Type == elementBackground {
				continue
			}
			sc := summariseScenario(el)
			fs.Stats.add(sc.Status)
			fs.Scenarios = append(fs.Scenarios, sc)
		}
		summary.Stats.merge(fs.Stats)
		summary.Features = append(summary.Features, fs)
	}
	return summary, nil
}

func summariseScenario(el Element) ScenarioSummary {
	sc := ScenarioSummary{Name: el.Name, Status: el.Status}
	for _, step := range el.Steps {
		if step.Result == nil {
			continue
		}
		sc.Duration += time.Duration(step.Result.Duration * float64(time.Second))
		if sc.Error == "" {
			sc.Error = step.Result.Error()
		}
	}
	if sc.Status == "" {
		sc.Status = StatusUntested
	}
	return sc
}

// fileFromLocation turns "features/walls.feature:3" into "walls.feature".
func fileFromLocation(location string) string {
	if location == "" {
		return ""
	}
	if i := strings.LastIndexByte(location, ':'); i > 0 {
		if _, err := strconv.Atoi(location[i+1:]); err == nil {
			location = location[:i]
		}
	}
	return filepath.Base(location)
}
