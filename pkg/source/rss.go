package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// RSSFeed is a named RSS/Atom feed URL.
type RSSFeed struct {
	Name string
	URL  string
}

// RSS enriches signals with social mentions found in RSS/Atom feeds.
type RSS struct {
	client     *http.Client
	parser     *gofeed.Parser
	feeds      []RSSFeed
	classifier *Classifier
	lookback   time.Duration
	now        func() time.Time
}

// NewRSS creates a new RSS mention enricher. Entries older than lookback are ignored.
func NewRSS(feeds []RSSFeed, classifier *Classifier, lookback time.Duration) *RSS {
	if classifier == nil {
		classifier = NewClassifier(nil, nil)
	}
	if lookback <= 0 {
		lookback = 14 * 24 * time.Hour
	}
	return &RSS{
		client:     &http.Client{Timeout: 30 * time.Second},
		parser:     gofeed.NewParser(),
		feeds:      feeds,
		classifier: classifier,
		lookback:   lookback,
		now:        time.Now,
	}
}

func (r *RSS) Name() SourceType { return SourceRSS }

// feedEntry is the subset of a feed item the enricher needs.
type feedEntry struct {
	text   string
	title  string
	author string
	link   string
}

// Enrich adds a snippet per mentioning entry and bumps the signal's
// mentions_count and unique_authors metrics. A failing feed does not stop the others.
func (r *RSS) Enrich(ctx context.Context, signals []Signal) error {
	var entries []feedEntry
	var errs []error

	for _, feed := range r.feeds {
		got, err := r.collectFeed(ctx, feed)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		entries = append(entries, got...)
	}

	for i := range signals {
		r.apply(&signals[i], entries)
	}
	return errors.Join(errs...)
}

func (r *RSS) apply(sig *Signal, entries []feedEntry) {
	authors := make(map[string]bool)
	mentions := 0

	for _, e := range entries {
		if !Mentions(e.text, sig.Label) && !Mentions(e.text, sig.Key) {
			continue
		}
		mentions++
		if e.author != "" {
			authors[e.author] = true
		}
		sig.Social.Snippets = append(sig.Social.Snippets, Snippet{
			Text:   e.title,
			Class:  r.classifier.Classify(e.text),
			Author: e.author,
			URL:    e.link,
		})
	}

	if mentions == 0 {
		return
	}
	if sig.Social.Metrics == nil {
		sig.Social.Metrics = make(map[string]float64)
	}
	sig.Social.Metrics["mentions_count"] += float64(mentions)
	sig.Social.Metrics["unique_authors"] += float64(len(authors))
}

func (r *RSS) collectFeed(ctx context.Context, feed RSSFeed) ([]feedEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create rss request %s: %w", feed.Name, err)
	}
	req.Header.Set("User-Agent", "narradar/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rss %s: %w", feed.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rss %s status %d", feed.Name, resp.StatusCode)
	}

	parsed, err := r.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse rss %s: %w", feed.Name, err)
	}

	cutoff := r.now().Add(-r.lookback)
	var entries []feedEntry

	for _, item := range parsed.Items {
		if item.PublishedParsed != nil && item.PublishedParsed.Before(cutoff) {
			continue
		}

		link := item.Link
		if link == "" && len(item.Links) > 0 {
			link = item.Links[0]
		}

		author := ""
		if item.Author != nil {
			author = item.Author.Name
		}

		entries = append(entries, feedEntry{
			text:   item.Title + " " + item.Description,
			title:  truncate(item.Title, 280),
			author: author,
			link:   link,
		})
	}

	return entries, nil
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
