package tracing

import (
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	// SamplerAlways samples all traces
	SamplerAlways = "always"

	// SamplerNever samples no traces
	SamplerNever = "never"

	// SamplerRatio samples a percentage of traces
	SamplerRatio = "ratio"
)

// createSampler creates a sampler based on the strategy and ratio. Every
// sampler is wrapped in ParentBased so a sampled caller keeps its whole
// trace:
//
//	telemetry:
//	  tracing:
//	    sampler: ratio
//	    sample_ratio: 0.1
func createSampler(strategy string, ratio float64) (sdktrace.Sampler, error) {
	if err := ValidateSampler(strategy, ratio); err != nil {
		return nil, err
	}

	var base sdktrace.Sampler
	switch strategy {
	case SamplerAlways, "":
		base = sdktrace.AlwaysSample()
	case SamplerNever:
		base = sdktrace.NeverSample()
	case SamplerRatio:
		base = sdktrace.TraceIDRatioBased(ratio)
	}
	return sdktrace.ParentBased(base), nil
}

// ValidateSampler checks a sampler strategy and ratio. An empty strategy
// means always.
func ValidateSampler(strategy string, ratio float64) error {
	switch strategy {
	case SamplerAlways, SamplerNever, "":
	case SamplerRatio:
		if ratio < 0.0 || ratio > 1.0 {
			return fmt.Errorf("sample ratio must be between 0.0 and 1.0, got %f", ratio)
		}
	default:
		return fmt.Errorf("unknown sampler strategy: %s (valid: always, never, ratio)", strategy)
	}
	return nil
}
