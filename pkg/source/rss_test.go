package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Solana News</title>
  <item>
    <title>Light Protocol launches batch compression</title>
    <link>https://example.com/a</link>
    <description>Now live on mainnet.</description>
    <author>alice@example.com (Alice)</author>
    <pubDate>Mon, 06 Jan 2025 10:00:00 +0000</pubDate>
  </item>
  <item>
    <title>Why is Light Protocol so slow to index?</title>
    <link>https://example.com/b</link>
    <description>Indexer issue again.</description>
    <pubDate>Tue, 07 Jan 2025 10:00:00 +0000</pubDate>
  </item>
  <item>
    <title>Old Light Protocol post</title>
    <link>https://example.com/old</link>
    <pubDate>Mon, 01 Jan 2024 10:00:00 +0000</pubDate>
  </item>
  <item>
    <title>Unrelated validator news</title>
    <link>https://example.com/c</link>
    <pubDate>Tue, 07 Jan 2025 11:00:00 +0000</pubDate>
  </item>
</channel>
</rss>`

func newTestRSS(t *testing.T, feeds ...RSSFeed) *RSS {
	t.Helper()
	r := NewRSS(feeds, nil, 14*24*time.Hour)
	r.now = func() time.Time { return time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC) }
	return r
}

func TestRSS_EnrichCountsMentions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(testFeed))
	}))
	defer srv.Close()

	signals := []Signal{
		{Key: "light-protocol-zk", Label: "Light Protocol", Social: SocialData{Metrics: map[string]float64{"mentions_count": 2}}},
		{Key: "sanctum", Label: "Sanctum"},
	}

	r := newTestRSS(t, RSSFeed{Name: "news", URL: srv.URL})
	require.Equal(t, SourceRSS, r.Name())
	require.NoError(t, r.Enrich(context.Background(), signals))

	light := signals[0]
	assert.Equal(t, 4.0, light.Social.Metrics["mentions_count"])
	require.Len(t, light.Social.Snippets, 2)
	assert.Equal(t, ClassAnnouncement, light.Social.Snippets[0].Class)
	assert.Equal(t, "https://example.com/a", light.Social.Snippets[0].URL)
	assert.Equal(t, ClassPainPoint, light.Social.Snippets[1].Class)

	assert.Nil(t, signals[1].Social.Metrics)
	assert.Empty(t, signals[1].Social.Snippets)
}

func TestTruncateKeepsRunes(t *testing.T) {
	got := truncate("ünïcödé", 3)
	assert.Equal(t, "ünï...", got)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "short", truncate("short", 280))
}

func TestRSS_FailingFeedIsReportedButOthersApply(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testFeed))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	signals := []Signal{{Key: "light", Label: "Light Protocol"}}
	r := newTestRSS(t, RSSFeed{Name: "bad", URL: bad.URL}, RSSFeed{Name: "good", URL: good.URL})

	err := r.Enrich(context.Background(), signals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rss bad status 502")
	assert.Equal(t, 2.0, signals[0].Social.Metrics["mentions_count"])
}
