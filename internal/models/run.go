// Package models holds the types shared between the runner, the stores and
// the HTTP API.
package models

import "time"

// Call is one remote call observed on the DUT control interfaces.
type Call struct {
	Name     string        `json:"name"`
	At       time.Time     `json:"at"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// CaseResult is the outcome of one test case.
type CaseResult struct {
	Name     string    `json:"name"`
	Passed   bool      `json:"passed"`
	Error    string    `json:"error,omitempty"`
	Calls    []Call    `json:"calls"`
	Console  []string  `json:"console,omitempty"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// CallNames returns the names of the recorded calls in order.
func (r CaseResult) CallNames() []string {
	names := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		names[i] = c.Name
	}
	return names
}

// Run is one execution of (a filtered subset of) the case matrix.
type Run struct {
	ID        string       `json:"id"`
	Target    string       `json:"target"`
	Transport string       `json:"transport"`
	Filter    string       `json:"filter,omitempty"`
	Cases     []CaseResult `json:"cases"`
	Started   time.Time    `json:"started"`
	Finished  time.Time    `json:"finished,omitempty"`
}

// Passed reports whether every case in the run passed.
// A run with no cases has not passed.
func (r Run) Passed() bool {
	if len(r.Cases) == 0 {
		return false
	}
	for _, c := range r.Cases {
		if !c.Passed {
			return false
		}
	}
	return true
}

// Failed returns the number of failed cases.
func (r Run) Failed() int {
	n := 0
	for _, c := range r.Cases {
		if !c.Passed {
			n++
		}
	}
	return n
}

// RunSummary is the list view of a stored run.
type RunSummary struct {
	ID       string    `json:"id"`
	Target   string    `json:"target"`
	Cases    int       `json:"cases"`
	Failed   int       `json:"failed"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Info describes the harness itself.
type Info struct {
	Hostname string `json:"hostname"`
	Version  string `json:"version"`
	Kernel   string `json:"kernel,omitempty"`
	Target   string `json:"target"`
	Busy     bool   `json:"busy"`
	// ActiveRun is the ID of the run in progress, if any.
	ActiveRun string `json:"active_run,omitempty"`
	// DUTReachable is the last maintenance probe result. It is nil when the
	// transport has no network endpoint or no probe has finished yet.
	DUTReachable *bool `json:"dut_reachable,omitempty"`
}

// CaseInfo describes one case of the matrix.
type CaseInfo struct {
	Name  string   `json:"name"`
	Steps []string `json:"steps"`
}
