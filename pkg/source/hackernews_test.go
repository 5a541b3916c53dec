package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hnResponse = `{"hits": [
  {"objectID": "101", "title": "Show HN: Light Protocol SDK", "author": "alice", "created_at_i": 1736500000},
  {"objectID": "102", "comment_text": "Light Protocol docs are broken and confusing", "story_title": "Compression on Solana", "author": "bob", "created_at_i": 1736500100},
  {"objectID": "103", "comment_text": "unrelated take on validators", "story_title": "Validators", "author": "carol", "created_at_i": 1736500200}
]}`

func TestHackerNews_Enrich(t *testing.T) {
	var (
		mu      sync.Mutex
		queries []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search_by_date", r.URL.Path)
		mu.Lock()
		queries = append(queries, r.URL.Query().Get("query"))
		mu.Unlock()
		assert.True(t, strings.HasPrefix(r.URL.Query().Get("numericFilters"), "created_at_i>"))
		if r.URL.Query().Get("query") != "Light Protocol" {
			_, _ = w.Write([]byte(`{"hits": []}`))
			return
		}
		_, _ = w.Write([]byte(hnResponse))
	}))
	defer srv.Close()

	h := NewHackerNews(srv.URL, 10, nil, 0)
	h.now = func() time.Time { return time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC) }

	signals := []Signal{
		{Key: "light", Label: "Light Protocol"},
		{Key: "quiet", Label: "Quiet Labs", Social: SocialData{Metrics: map[string]float64{"mentions_count": 1}}},
		{Key: "nolabel"},
	}
	require.NoError(t, h.Enrich(context.Background(), signals))

	assert.ElementsMatch(t, []string{"Light Protocol", "Quiet Labs"}, queries)

	light := signals[0]
	require.Len(t, light.Social.Snippets, 2)
	assert.Equal(t, 2.0, light.Social.Metrics["mentions_count"])
	assert.Equal(t, 2.0, light.Social.Metrics["unique_authors"])
	assert.Equal(t, "https://news.ycombinator.com/item?id=101", light.Social.Snippets[0].URL)
	assert.Equal(t, ClassPainPoint, light.Social.Snippets[1].Class)

	assert.Equal(t, 1.0, signals[1].Social.Metrics["mentions_count"])
	assert.Empty(t, signals[1].Social.Snippets)
}

func TestHackerNews_EnrichJoinsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") == "Broken" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(hnResponse))
	}))
	defer srv.Close()

	h := NewHackerNews(srv.URL, 0, nil, 0)
	signals := []Signal{{Label: "Broken"}, {Label: "Light Protocol"}}

	err := h.Enrich(context.Background(), signals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.Len(t, signals[1].Social.Snippets, 2)
}
