package config

import (
	"fmt"
	"net"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "race.iterations")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidOutputFormats returns the list of valid output formats
func ValidOutputFormats() []string {
	return []string{"text", "json", "yaml"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateBuffer()...)
	errors = append(errors, c.validatePool()...)
	errors = append(errors, c.validateRace()...)
	errors = append(errors, c.validatePipeline()...)
	errors = append(errors, c.validateCompare()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateMetrics()...)
	errors = append(errors, c.validateOutput()...)

	return errors
}

// atLeast appends an error when value is below minimum
func atLeast(errors []ValidationError, field string, value, minimum int64) []ValidationError {
	if value < minimum {
		errors = append(errors, ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("must be at least %d", minimum),
		})
	}
	return errors
}

func (c *Config) validateBuffer() []ValidationError {
	return atLeast(nil, "buffer.capacity", int64(c.Buffer.Capacity), 1)
}

func (c *Config) validatePool() []ValidationError {
	return atLeast(nil, "pool.join_timeout_ms", int64(c.Pool.JoinTimeoutMs), 0)
}

func (c *Config) validateRace() []ValidationError {
	var errors []ValidationError
	errors = atLeast(errors, "race.iterations", int64(c.Race.Iterations), 1)
	errors = atLeast(errors, "race.incrementers", int64(c.Race.Incrementers), 1)
	errors = atLeast(errors, "race.decrementers", int64(c.Race.Decrementers), 1)
	errors = atLeast(errors, "race.trials", int64(c.Race.Trials), 0)
	return errors
}

func (c *Config) validatePipeline() []ValidationError {
	var errors []ValidationError
	errors = atLeast(errors, "pipeline.producers", int64(c.Pipeline.Producers), 1)
	errors = atLeast(errors, "pipeline.consumers", int64(c.Pipeline.Consumers), 1)
	errors = atLeast(errors, "pipeline.items_per_producer", int64(c.Pipeline.ItemsPerProducer), 1)
	errors = atLeast(errors, "pipeline.max_value", c.Pipeline.MaxValue, 1)
	errors = atLeast(errors, "pipeline.produce_delay_ms", int64(c.Pipeline.ProduceDelayMs), 0)
	errors = atLeast(errors, "pipeline.consume_delay_ms", int64(c.Pipeline.ConsumeDelayMs), 0)

	// Products must fit in an int64 checksum
	const maxPairValue = 1 << 20
	if c.Pipeline.MaxValue > maxPairValue {
		errors = append(errors, ValidationError{
			Field:   "pipeline.max_value",
			Value:   c.Pipeline.MaxValue,
			Message: fmt.Sprintf("exceeds maximum of %d", maxPairValue),
		})
	}
	return errors
}

func (c *Config) validateCompare() []ValidationError {
	var errors []ValidationError
	errors = atLeast(errors, "compare.number", c.Compare.Number, 1)
	errors = atLeast(errors, "compare.max_workers", int64(c.Compare.MaxWorkers), 1)
	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	errors = atLeast(errors, "logging.max_size_mb", int64(c.Logging.MaxSizeMB), 0)
	errors = atLeast(errors, "logging.max_backups", int64(c.Logging.MaxBackups), 0)

	return errors
}

func (c *Config) validateMetrics() []ValidationError {
	var errors []ValidationError

	if c.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			errors = append(errors, ValidationError{
				Field:   "metrics.addr",
				Value:   c.Metrics.Addr,
				Message: "must be a host:port listen address",
			})
		}
	}

	return errors
}

func (c *Config) validateOutput() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidOutputFormats(), c.Output.Format) {
		errors = append(errors, ValidationError{
			Field:   "output.format",
			Value:   c.Output.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidOutputFormats(), ", ")),
		})
	}

	return errors
}
