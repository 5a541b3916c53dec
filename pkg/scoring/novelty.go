package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	DefaultNoveltyWindowDays = 60
	DefaultNoveltyMultiplier = 1.3
)

// NoveltyModel rewards recently first-seen entities with a bonus that decays
// linearly to zero over WindowDays.
type NoveltyModel struct {
	WindowDays int
	Multiplier float64
	Now        func() time.Time
}

// NewNoveltyModel creates a model. A non-positive window and a negative
// multiplier take the defaults; a zero multiplier turns novelty off.
func NewNoveltyModel(windowDays int, multiplier float64) NoveltyModel {
	if windowDays <= 0 {
		windowDays = DefaultNoveltyWindowDays
	}
	if multiplier < 0 {
		multiplier = DefaultNoveltyMultiplier
	}
	return NoveltyModel{WindowDays: windowDays, Multiplier: multiplier, Now: time.Now}
}

// Compute returns Multiplier * (1 - age/WindowDays) while the floored age in
// days is within the window, else 0. A first-seen time in the future gives a
// negative age and a bonus above Multiplier; that is intentional.
func (m NoveltyModel) Compute(firstSeen time.Time) float64 {
	window := m.WindowDays
	if window <= 0 {
		window = DefaultNoveltyWindowDays
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}

	ageDays := int(math.Floor(now().UTC().Sub(firstSeen.UTC()).Hours() / 24))
	if ageDays > window {
		return 0.0
	}
	return m.Multiplier * (1.0 - float64(ageDays)/float64(window))
}

// ComputeString parses an ISO-8601 timestamp and calls Compute.
func (m NoveltyModel) ComputeString(firstSeen string) (float64, error) {
	t, err := ParseTimestamp(firstSeen)
	if err != nil {
		return 0, err
	}
	return m.Compute(t), nil
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 ("Z" or a numeric offset) and the common
// zone-less ISO-8601 forms, which are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: unsupported format", s)
}
