// Package compare measures how a CPU-bound workload scales with the number
// of workers. Every worker computes the same factorial, so with perfect
// parallelism the elapsed time stays flat as workers are added.
package compare

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/Iron-Ham/bufferlab/internal/errors"
	"github.com/Iron-Ham/bufferlab/internal/logging"
	"github.com/Iron-Ham/bufferlab/internal/pool"
)

// Defaults for the factorial workload.
const (
	DefaultNumber     = 50000
	DefaultMaxWorkers = 4
)

// cancelCheckInterval is how many multiplications run between context checks.
const cancelCheckInterval = 256

// Config selects the workload and the worker counts to measure.
type Config struct {
	// Number is the factorial each worker computes.
	Number int64
	// MaxWorkers is the largest pool measured; pools of 1..MaxWorkers run.
	MaxWorkers int
}

// DefaultConfig returns the default workload.
func DefaultConfig() Config {
	return Config{Number: DefaultNumber, MaxWorkers: DefaultMaxWorkers}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Number < 1 {
		return errors.NewValidationError("number must be at least 1").WithField("number").WithValue(c.Number)
	}
	if c.MaxWorkers < 1 {
		return errors.NewValidationError("max workers must be at least 1").WithField("max_workers").WithValue(c.MaxWorkers)
	}
	return nil
}

// Measurement is the outcome for one pool size.
type Measurement struct {
	Workers int           `json:"workers" yaml:"workers"`
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
	// Digits is the decimal length of the computed factorial.
	Digits int `json:"digits" yaml:"digits"`
}

// Report collects one Measurement per pool size, in increasing order.
type Report struct {
	Number       int64         `json:"number" yaml:"number"`
	Measurements []Measurement `json:"measurements" yaml:"measurements"`
}

// Scaling returns the elapsed time of m relative to the single-worker run.
// A value near 1 means the extra workers ran fully in parallel.
func (r *Report) Scaling(m Measurement) float64 {
	if len(r.Measurements) == 0 || r.Measurements[0].Elapsed <= 0 {
		return 0
	}
	return float64(m.Elapsed) / float64(r.Measurements[0].Elapsed)
}

// Run measures pools of 1..cfg.MaxWorkers workers.
func Run(ctx context.Context, cfg Config, logger *logging.Logger) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.WithComponent("compare")

	report := &Report{Number: cfg.Number}
	for workers := 1; workers <= cfg.MaxWorkers; workers++ {
		m, err := measure(ctx, cfg.Number, workers, logger)
		if err != nil {
			return report, err
		}
		logger.Info("measured",
			"workers", workers,
			"elapsed", m.Elapsed.String())
		report.Measurements = append(report.Measurements, m)
	}
	return report, nil
}

func measure(ctx context.Context, n int64, workers int, logger *logging.Logger) (Measurement, error) {
	var (
		mu     sync.Mutex
		digits int
	)
	p, err := pool.New(workers, n, func(ctx context.Context, _ pool.Worker, n int64) error {
		f, err := Factorial(ctx, n)
		if err != nil {
			return err
		}
		d := len(f.String())
		mu.Lock()
		digits = d
		mu.Unlock()
		return nil
	}, pool.WithName("compute"), pool.WithIterations(1), pool.WithLogger(logger))
	if err != nil {
		return Measurement{}, err
	}

	start := time.Now()
	if err := p.Start(ctx); err != nil {
		return Measurement{}, err
	}
	if err := p.JoinAll(0); err != nil {
		return Measurement{}, err
	}
	if err := ctx.Err(); err != nil {
		return Measurement{}, err
	}
	return Measurement{Workers: workers, Elapsed: time.Since(start), Digits: digits}, nil
}

// Factorial returns n! computed by repeated multiplication. It stops early
// with ctx's error when ctx is done.
func Factorial(ctx context.Context, n int64) (*big.Int, error) {
	if n < 0 {
		return nil, errors.NewValidationError("factorial of a negative number").WithField("n").WithValue(n)
	}
	result := big.NewInt(1)
	var factor big.Int
	for i := int64(2); i <= n; i++ {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		result.Mul(result, factor.SetInt64(i))
	}
	return result, nil
}
