package source

import "strings"

// DefaultHypeKeywords mark promotional, low-substance posts.
var DefaultHypeKeywords = []string{
	"moon", "mooning", "100x", "1000x", "to the moon", "gem", "wagmi", "lfg",
	"pump", "next big", "don't miss", "dont miss", "early", "aping", "ape in",
	"bullish af", "send it", "alpha leak", "🚀",
}

// DefaultPainKeywords mark posts describing a concrete problem.
var DefaultPainKeywords = []string{
	"bug", "broken", "fails", "failing", "failed", "error", "stuck", "slow",
	"expensive", "too costly", "can't", "cannot", "doesn't work", "does not work",
	"issue", "problem", "painful", "confusing", "missing", "no docs", "lost funds",
	"wish there was", "frustrating",
}

// Classifier assigns a SnippetClass to free text by keyword matching.
type Classifier struct {
	hype []string
	pain []string
}

// NewClassifier creates a classifier with the default keyword lists plus extras.
func NewClassifier(extraHype, extraPain []string) *Classifier {
	return &Classifier{
		hype: lowerAll(DefaultHypeKeywords, extraHype),
		pain: lowerAll(DefaultPainKeywords, extraPain),
	}
}

// Classify returns the class of text. Pain points win over questions, questions
// over hype; anything unmatched is an announcement.
func (c *Classifier) Classify(text string) SnippetClass {
	lower := strings.ToLower(text)

	switch {
	case containsAny(lower, c.pain):
		return ClassPainPoint
	case strings.Contains(lower, "?"):
		return ClassQuestion
	case containsAny(lower, c.hype):
		return ClassHype
	default:
		return ClassAnnouncement
	}
}

// Mentions reports whether text mentions label as a whole phrase, case-insensitively.
func Mentions(text, label string) bool {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return false
	}
	lower := strings.ToLower(text)

	for start := 0; ; {
		idx := strings.Index(lower[start:], label)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(label)
		if isBoundary(lower, idx-1) && isBoundary(lower, end) {
			return true
		}
		start = idx + 1
	}
}

func isBoundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	b := s[i]
	return !(b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_')
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func lowerAll(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	for _, kw := range base {
		out = append(out, strings.ToLower(kw))
	}
	for _, kw := range extra {
		out = append(out, strings.ToLower(kw))
	}
	return out
}
