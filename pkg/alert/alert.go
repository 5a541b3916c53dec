// Package alert pushes finished narratives to chat and webhook destinations.
package alert

import (
	"context"
	"errors"
	"fmt"
)

// IdeaSummary is the short form of an idea carried in a notification.
type IdeaSummary struct {
	Title      string  `json:"title"`
	Saturation string  `json:"saturation"`
	Score      float64 `json:"saturation_score"`
}

// Notification describes one narrative from a completed report.
type Notification struct {
	ReportID    string        `json:"report_id"`
	NarrativeID string        `json:"narrative_id"`
	Title       string        `json:"title"`
	Summary     string        `json:"summary"`
	URL         string        `json:"url,omitempty"`
	Momentum    float64       `json:"momentum"`
	Novelty     float64       `json:"novelty"`
	Saturation  float64       `json:"saturation"`
	Members     []string      `json:"members"`
	Ideas       []IdeaSummary `json:"ideas"`
}

// Score ranks a narrative for alerting: momentum plus novelty.
func (n *Notification) Score() float64 {
	return n.Momentum + n.Novelty
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
	minScore  float64
}

// NewManager creates a manager that only sends narratives scoring at least minScore.
func NewManager(notifiers []Notifier, minScore float64) *Manager {
	return &Manager{notifiers: notifiers, minScore: minScore}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Eligible reports whether n clears the score threshold.
func (m *Manager) Eligible(n *Notification) bool {
	return n.Score() >= m.minScore
}

// Broadcast sends n to every notifier; failures are joined, not short-circuited.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func scoreLine(n *Notification, bold string) string {
	return fmt.Sprintf("%sMomentum:%s %.2f | %sNovelty:%s %.2f | %sSaturation:%s %.2f",
		bold, bold, n.Momentum, bold, bold, n.Novelty, bold, bold, n.Saturation)
}

func topIdeas(n *Notification, limit int) []IdeaSummary {
	return n.Ideas[:min(limit, len(n.Ideas))]
}
