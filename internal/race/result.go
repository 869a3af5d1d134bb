package race

import "time"

// PhaseResult is the outcome of one harness phase.
type PhaseResult struct {
	Name       string        `json:"name" yaml:"name"`
	Locked     bool          `json:"locked" yaml:"locked"`
	FinalValue int64         `json:"final_value" yaml:"final_value"`
	Expected   int64         `json:"expected" yaml:"expected"`
	Elapsed    time.Duration `json:"elapsed" yaml:"elapsed"`
	Err        error         `json:"-" yaml:"-"`
}

// LostUpdates returns how far the final value ended from the expected one.
func (r PhaseResult) LostUpdates() int64 {
	d := r.FinalValue - r.Expected
	if d < 0 {
		return -d
	}
	return d
}

// Diverged reports whether the phase ended away from the expected value.
func (r PhaseResult) Diverged() bool {
	return r.FinalValue != r.Expected
}

// Result holds both phases of a harness run.
type Result struct {
	Config   Config      `json:"-" yaml:"-"`
	Unlocked PhaseResult `json:"unlocked" yaml:"unlocked"`
	Locked   PhaseResult `json:"locked" yaml:"locked"`
}

// RaceObserved reports whether the unlocked phase lost updates.
func (r *Result) RaceObserved() bool {
	return r.Unlocked.Err == nil && r.Unlocked.Diverged()
}

// LockOverhead returns how much longer the locked phase took.
func (r *Result) LockOverhead() time.Duration {
	return r.Locked.Elapsed - r.Unlocked.Elapsed
}

// TrialSummary aggregates repeated unlocked runs.
type TrialSummary struct {
	Expected int64   `json:"expected" yaml:"expected"`
	Trials   int     `json:"trials" yaml:"trials"`
	Diverged int     `json:"diverged" yaml:"diverged"`
	MaxLost  int64   `json:"max_lost" yaml:"max_lost"`
	Values   []int64 `json:"values" yaml:"values"`
}

func (s *TrialSummary) add(r PhaseResult) {
	s.Trials++
	s.Values = append(s.Values, r.FinalValue)
	if r.Diverged() {
		s.Diverged++
	}
	if lost := r.LostUpdates(); lost > s.MaxLost {
		s.MaxLost = lost
	}
}
