package pipeline

import (
	"time"

	"github.com/Iron-Ham/bufferlab/internal/buffer"
	"github.com/Iron-Ham/bufferlab/internal/errors"
)

// Stage names used in pool names, logs and events.
const (
	StageProducers = "producers"
	StageConsumers = "consumers"
)

// Pair is the unit of data flowing through the buffer.
type Pair struct {
	X int64 `json:"x" yaml:"x"`
	Y int64 `json:"y" yaml:"y"`
}

// Product returns X*Y.
func (p Pair) Product() int64 {
	return p.X * p.Y
}

// Config sizes a pipeline run.
type Config struct {
	Capacity         int
	Producers        int
	Consumers        int
	ItemsPerProducer int
	// MaxValue bounds both components of generated pairs, inclusive.
	MaxValue int64
	// Seed makes the generated pairs reproducible. Each producer derives its
	// own stream from Seed and its worker ID.
	Seed uint64
	// ProduceDelay and ConsumeDelay pace the stages, mostly for the live view.
	ProduceDelay time.Duration
	ConsumeDelay time.Duration
	// JoinTimeout bounds each stage join; zero waits indefinitely.
	JoinTimeout time.Duration
}

// DefaultConfig returns a single producer and consumer moving ten pairs
// through a ten-slot buffer.
func DefaultConfig() Config {
	return Config{
		Capacity:         10,
		Producers:        1,
		Consumers:        1,
		ItemsPerProducer: 10,
		MaxValue:         10,
		Seed:             1,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	fields := []struct {
		name  string
		value int
	}{
		{"capacity", c.Capacity},
		{"producers", c.Producers},
		{"consumers", c.Consumers},
		{"items_per_producer", c.ItemsPerProducer},
	}
	for _, f := range fields {
		if f.value < 1 {
			return errors.NewValidationError(f.name + " must be at least 1").WithField(f.name).WithValue(f.value)
		}
	}
	if c.MaxValue < 1 {
		return errors.NewValidationError("max value must be at least 1").WithField("max_value").WithValue(c.MaxValue)
	}
	if c.ProduceDelay < 0 || c.ConsumeDelay < 0 || c.JoinTimeout < 0 {
		return errors.NewValidationError("durations must not be negative").WithField("delay")
	}
	return nil
}

// Summary is the outcome of a run.
type Summary struct {
	Produced         int64            `json:"produced" yaml:"produced"`
	Consumed         int64            `json:"consumed" yaml:"consumed"`
	PerConsumer      map[string]int64 `json:"per_consumer" yaml:"per_consumer"`
	Checksum         int64            `json:"checksum" yaml:"checksum"`
	ExpectedChecksum int64            `json:"expected_checksum" yaml:"expected_checksum"`
	Elapsed          time.Duration    `json:"elapsed" yaml:"elapsed"`
	Buffer           buffer.Stats     `json:"buffer" yaml:"buffer"`
}

// Balanced reports whether every produced item was consumed exactly once.
func (s *Summary) Balanced() bool {
	return s.Produced == s.Consumed && s.Checksum == s.ExpectedChecksum
}
