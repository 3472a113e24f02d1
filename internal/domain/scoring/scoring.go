// Package scoring converts engaged time into an XP reward.
package scoring

import (
	"math"
	"strings"

	"github.com/okian/studyroom/internal/domain/model"
	"github.com/okian/studyroom/pkg/metrics"
)

// XP formula constants.
const (
	xpPerMinute = 10

	fullRate    = 1.0
	strongRate  = 0.7
	partialRate = 0.5

	fullMultiplier    = 1.20
	strongMultiplier  = 1.10
	partialMultiplier = 1.05
	studyMultiplier   = 1.10
)

// DefaultStudyTags are the tags that earn the study bonus.
var DefaultStudyTags = []string{"study"} //nolint:gochecknoglobals // default tag set

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithStudyTags replaces the recognized study tags. Tags are matched
// case-insensitively; blank entries are ignored.
func WithStudyTags(tags []string) Option {
	return func(c *Calculator) {
		set := make(map[string]struct{}, len(tags))
		for _, t := range tags {
			if n := normalizeTag(t); n != "" {
				set[n] = struct{}{}
			}
		}
		if len(set) > 0 {
			c.studyTags = set
		}
	}
}

// Scorer computes the XP for an input.
type Scorer interface {
	Score(in model.XPInput) int
}

// Calculator implements Scorer with the tiered-bonus formula.
type Calculator struct {
	studyTags map[string]struct{}
}

// NewCalculator creates a calculator recognizing DefaultStudyTags unless overridden.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{}
	WithStudyTags(DefaultStudyTags)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Score returns the XP for in. Each multiplier rounds before the next applies.
func (c *Calculator) Score(in model.XPInput) int {
	xp := int(in.FocusMS/model.MillisPerMinute) * xpPerMinute

	rate := 0.0
	if in.PlannedMS > 0 {
		rate = float64(in.FocusMS) / float64(in.PlannedMS)
	}
	switch {
	case rate >= fullRate:
		xp = applyMultiplier(xp, fullMultiplier)
	case rate >= strongRate:
		xp = applyMultiplier(xp, strongMultiplier)
	case rate >= partialRate:
		xp = applyMultiplier(xp, partialMultiplier)
	}

	if c.IsStudyTag(in.Tag) {
		xp = applyMultiplier(xp, studyMultiplier)
	}

	metrics.RecordScore(xp)
	return xp
}

// IsStudyTag reports whether tag earns the study bonus.
func (c *Calculator) IsStudyTag(tag string) bool {
	_, ok := c.studyTags[normalizeTag(tag)]
	return ok
}

// applyMultiplier rounds half up, matching the reference rounding for non-negative values.
func applyMultiplier(xp int, m float64) int {
	return int(math.Floor(float64(xp)*m + 0.5))
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
