package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const hnSearchURL = "https://hn.algolia.com/api/v1"

// HackerNews enriches signals with Hacker News stories and comments that
// mention them, via the Algolia search API.
type HackerNews struct {
	client     *http.Client
	baseURL    string
	maxHits    int
	classifier *Classifier
	lookback   time.Duration
	now        func() time.Time
}

// NewHackerNews creates a new HN mention enricher.
func NewHackerNews(baseURL string, maxHits int, classifier *Classifier, lookback time.Duration) *HackerNews {
	if baseURL == "" {
		baseURL = hnSearchURL
	}
	if maxHits <= 0 {
		maxHits = 20
	}
	if classifier == nil {
		classifier = NewClassifier(nil, nil)
	}
	if lookback <= 0 {
		lookback = 14 * 24 * time.Hour
	}
	return &HackerNews{
		client:     &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxHits:    maxHits,
		classifier: classifier,
		lookback:   lookback,
		now:        time.Now,
	}
}

func (h *HackerNews) Name() SourceType { return SourceHackerNews }

// Enrich searches for every signal's label concurrently. Failed searches are
// joined into the returned error; the other signals are still enriched.
func (h *HackerNews) Enrich(ctx context.Context, signals []Signal) error {
	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
		sem  = make(chan struct{}, 5) // concurrency limit
	)

	for i := range signals {
		sig := &signals[i]
		if sig.Label == "" {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			hits, err := h.search(ctx, sig.Label)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			// Each goroutine owns its signal.
			h.apply(sig, hits)
		}()
	}

	wg.Wait()
	return errors.Join(errs...)
}

type hnHit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	StoryTitle  string `json:"story_title"`
	CommentText string `json:"comment_text"`
	URL         string `json:"url"`
	Author      string `json:"author"`
	CreatedAtI  int64  `json:"created_at_i"`
}

func (hit hnHit) text() string {
	if hit.CommentText != "" {
		return hit.CommentText
	}
	return hit.Title
}

func (h *HackerNews) apply(sig *Signal, hits []hnHit) {
	authors := make(map[string]bool)
	mentions := 0

	for _, hit := range hits {
		text := hit.text()
		if !Mentions(text+" "+hit.StoryTitle, sig.Label) {
			continue
		}
		mentions++
		if hit.Author != "" {
			authors[hit.Author] = true
		}
		sig.Social.Snippets = append(sig.Social.Snippets, Snippet{
			Text:   truncate(text, 280),
			Class:  h.classifier.Classify(text),
			Author: hit.Author,
			URL:    "https://news.ycombinator.com/item?id=" + hit.ObjectID,
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

func (h *HackerNews) search(ctx context.Context, query string) ([]hnHit, error) {
	since := h.now().Add(-h.lookback).Unix()
	params := url.Values{
		"query":          {query},
		"tags":           {"(story,comment)"},
		"numericFilters": {fmt.Sprintf("created_at_i>%d", since)},
		"hitsPerPage":    {fmt.Sprintf("%d", h.maxHits)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/search_by_date?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create hn request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search hn %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search hn %q: status %d", query, resp.StatusCode)
	}

	var body struct {
		Hits []hnHit `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode hn search %q: %w", query, err)
	}
	return body.Hits, nil
}
