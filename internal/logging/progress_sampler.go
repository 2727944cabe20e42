package logging

// ProgressSampler thins out percentage updates from a running tool so that
// only the first report inside each step-sized band is logged. A sampler
// belongs to a single stage attempt and is not safe for concurrent use.
type ProgressSampler struct {
	step float64
	band int
}

// DefaultProgressStep is the band width used when NewProgressSampler gets a
// non-positive step.
const DefaultProgressStep = 10.0

// NewProgressSampler returns a sampler that reports once per step percent.
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 {
		step = DefaultProgressStep
	}
	return &ProgressSampler{step: step, band: -1}
}

// Observe reports whether percent should be logged. Negative values mean
// unknown progress and are never logged; values above 100 are clamped.
func (s *ProgressSampler) Observe(percent float64) bool {
	if s == nil {
		return percent >= 0
	}
	if percent < 0 {
		return false
	}
	band := int(min(percent, 100) / s.step)
	if band <= s.band {
		return false
	}
	s.band = band
	return true
}

// Reset forgets the last band, for example before a retried attempt.
func (s *ProgressSampler) Reset() {
	if s != nil {
		s.band = -1
	}
}
