// Package suite defines the suspend/resume case matrix and runs it against a
// DUT, one case at a time.
package suite

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/RisingTechOSS/android-packages-modules-Bluetooth/internal/power"
)

// StepKind is one power sequence.
type StepKind int

const (
	NoWakeSuspend StepKind = iota
	NoWakeResume
	WakefulSuspend
	WakefulResume
)

func (k StepKind) String() string {
	switch k {
	case NoWakeSuspend:
		return "no_wake_suspend"
	case NoWakeResume:
		return "no_wake_resume"
	case WakefulSuspend:
		return "wakeful_suspend"
	case WakefulResume:
		return "wakeful_resume"
	}
	return fmt.Sprintf("step(%d)", int(k))
}

// Step is one sequence in a case. A2DP only applies to wakeful steps.
type Step struct {
	Kind StepKind
	A2DP bool
}

// Case is a named, fixed list of steps.
type Case struct {
	Name  string
	Steps []Step
}

var (
	noWakeSuspend  = Step{Kind: NoWakeSuspend}
	noWakeResume   = Step{Kind: NoWakeResume}
	wakefulSuspend = Step{Kind: WakefulSuspend}
	wakefulResume  = Step{Kind: WakefulResume}
)

var matrix = []Case{
	{"no_wake_suspend", []Step{noWakeSuspend}},
	{"no_wake_resume", []Step{noWakeResume}},
	{"no_wake_suspend_then_resume", []Step{noWakeSuspend, noWakeResume}},
	{"no_wake_suspend_then_resume_then_suspend", []Step{noWakeSuspend, noWakeResume, noWakeSuspend}},
	{"wakeful_suspend_no_a2dp", []Step{wakefulSuspend}},
	{"wakeful_resume_no_a2dp", []Step{wakefulResume}},
	{"wakeful_suspend_then_resume_no_a2dp", []Step{wakefulSuspend, wakefulResume}},
	{"wakeful_suspend_then_resume_then_suspend_no_a2dp", []Step{wakefulSuspend, wakefulResume, wakefulSuspend}},
}

// Cases returns the full matrix in execution order.
func Cases() []Case {
	out := make([]Case, len(matrix))
	for i, c := range matrix {
		out[i] = Case{Name: c.Name, Steps: append([]Step(nil), c.Steps...)}
	}
	return out
}

// Names returns the case names in execution order.
func Names() []string {
	out := make([]string, len(matrix))
	for i, c := range matrix {
		out[i] = c.Name
	}
	return out
}

// Lookup returns the case with the given name.
func Lookup(name string) (Case, bool) {
	for _, c := range Cases() {
		if c.Name == name {
			return c, true
		}
	}
	return Case{}, false
}

// Select returns the cases whose name matches the filter regexp, in matrix
// order. An empty filter selects every case.
func Select(filter string) ([]Case, error) {
	if filter == "" {
		return Cases(), nil
	}
	re, err := regexp.Compile(filter)
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", filter, err)
	}
	var out []Case
	for _, c := range Cases() {
		if re.MatchString(c.Name) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Exec runs the steps in order and stops at the first failure. The state
// returned by a wakeful suspend feeds the next wakeful resume; a resume with
// no preceding suspend in the case uses the step's own A2DP flag.
func (c Case) Exec(ctx context.Context, seq *power.Sequencer) error {
	var (
		st      power.SuspendState
		haveSt  bool
		err     error
		liveVal uint64
	)
	for i, step := range c.Steps {
		switch step.Kind {
		case NoWakeSuspend:
			liveVal, err = seq.NoWakeSuspend(ctx)
		case NoWakeResume:
			liveVal, err = seq.NoWakeResume(ctx)
		case WakefulSuspend:
			st, err = seq.WakefulSuspend(ctx, step.A2DP)
			haveSt = err == nil
			liveVal = st.Rand
		case WakefulResume:
			if !haveSt {
				st = power.SuspendState{A2DPConnected: step.A2DP}
			}
			liveVal, err = seq.WakefulResume(ctx, st)
			haveSt = false
		default:
			err = fmt.Errorf("unknown step %v", step.Kind)
		}
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Kind, err)
		}
		slog.Debug("suite: step done", "case", c.Name, "step", step.Kind.String(), "le_rand", liveVal)
	}
	return nil
}
