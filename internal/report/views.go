package report

import (
	"github.com/Iron-Ham/bufferlab/internal/buffer"
	"github.com/Iron-Ham/bufferlab/internal/compare"
	"github.com/Iron-Ham/bufferlab/internal/pipeline"
	"github.com/Iron-Ham/bufferlab/internal/race"
)

// Encoded views flatten errors to strings and durations to seconds.

type phaseView struct {
	Name           string  `json:"name" yaml:"name"`
	Locked         bool    `json:"locked" yaml:"locked"`
	FinalValue     int64   `json:"final_value" yaml:"final_value"`
	Expected       int64   `json:"expected" yaml:"expected"`
	LostUpdates    int64   `json:"lost_updates" yaml:"lost_updates"`
	ElapsedSeconds float64 `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	Error          string  `json:"error,omitempty" yaml:"error,omitempty"`
}

func newPhaseView(p race.PhaseResult) phaseView {
	v := phaseView{
		Name:           p.Name,
		Locked:         p.Locked,
		FinalValue:     p.FinalValue,
		Expected:       p.Expected,
		LostUpdates:    p.LostUpdates(),
		ElapsedSeconds: p.Elapsed.Seconds(),
	}
	if p.Err != nil {
		v.Error = p.Err.Error()
	}
	return v
}

type raceView struct {
	Iterations   int       `json:"iterations" yaml:"iterations"`
	Incrementers int       `json:"incrementers" yaml:"incrementers"`
	Decrementers int       `json:"decrementers" yaml:"decrementers"`
	Unlocked     phaseView `json:"unlocked" yaml:"unlocked"`
	Locked       phaseView `json:"locked" yaml:"locked"`
	RaceObserved bool      `json:"race_observed" yaml:"race_observed"`
	LockOverhead float64   `json:"lock_overhead_seconds" yaml:"lock_overhead_seconds"`
}

type pipelineView struct {
	Produced         int64            `json:"produced" yaml:"produced"`
	Consumed         int64            `json:"consumed" yaml:"consumed"`
	PerConsumer      map[string]int64 `json:"per_consumer" yaml:"per_consumer"`
	Checksum         int64            `json:"checksum" yaml:"checksum"`
	ExpectedChecksum int64            `json:"expected_checksum" yaml:"expected_checksum"`
	Balanced         bool             `json:"balanced" yaml:"balanced"`
	ElapsedSeconds   float64          `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	Buffer           buffer.Stats     `json:"buffer" yaml:"buffer"`
}

func newPipelineView(s *pipeline.Summary) pipelineView {
	return pipelineView{
		Produced:         s.Produced,
		Consumed:         s.Consumed,
		PerConsumer:      s.PerConsumer,
		Checksum:         s.Checksum,
		ExpectedChecksum: s.ExpectedChecksum,
		Balanced:         s.Balanced(),
		ElapsedSeconds:   s.Elapsed.Seconds(),
		Buffer:           s.Buffer,
	}
}

type measurementView struct {
	Workers        int     `json:"workers" yaml:"workers"`
	ElapsedSeconds float64 `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	Scaling        float64 `json:"scaling" yaml:"scaling"`
}

type compareView struct {
	Number       int64             `json:"number" yaml:"number"`
	Measurements []measurementView `json:"measurements" yaml:"measurements"`
}

func newCompareView(r *compare.Report) compareView {
	v := compareView{Number: r.Number}
	for _, m := range r.Measurements {
		v.Measurements = append(v.Measurements, measurementView{
			Workers:        m.Workers,
			ElapsedSeconds: m.Elapsed.Seconds(),
			Scaling:        r.Scaling(m),
		})
	}
	return v
}
