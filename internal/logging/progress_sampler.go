package logging

import "strings"

// ProgressSampler suppresses repetitive progress logs while preserving signal
// when steps or percentage buckets change.
type ProgressSampler struct {
	bucketSize int
	lastStep   string
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 5%) or when the step changes.
func NewProgressSampler(bucketSize int) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a progress event should be logged. Percent can be
// negative to indicate "unknown"; step is trimmed and case-folded before
// comparison.
func (s *ProgressSampler) ShouldLog(percent int, step string) bool {
	if s == nil {
		return true
	}
	step = strings.ToLower(strings.TrimSpace(step))
	emit := false
	if step != "" && step != s.lastStep {
		s.lastStep = step
		s.lastBucket = -1
		emit = true
	}
	if percent >= 0 {
		bucket := percent / s.bucketSize
		if percent >= 100 {
			bucket = 100 / s.bucketSize
		}
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}

// Reset clears the sampler state (e.g. when a new job starts).
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastStep = ""
	s.lastBucket = -1
}
