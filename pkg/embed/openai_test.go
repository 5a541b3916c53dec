package embed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	baseRetryDelay = time.Millisecond
}

func TestOpenAI_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "text-embedding-3-small", body["model"])
		assert.Equal(t, "zk compression", body["input"])

		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	vec, err := NewOpenAI(srv.URL, "", "sk-test").Embed(context.Background(), "zk compression")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
}

func TestOpenAI_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"data":[{"embedding":[1]}]}`))
	}))
	defer srv.Close()

	vec, err := NewOpenAI(srv.URL, "m", "k").Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, vec)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpenAI_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewOpenAI(srv.URL, "m", "k").Embed(context.Background(), "x")
	assert.ErrorContains(t, err, "embeddings status 429")
	assert.Equal(t, int32(4), calls.Load())
}

func TestOpenAI_ClientErrorIsFinal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewOpenAI(srv.URL, "m", "k").Embed(context.Background(), "x")
	assert.ErrorContains(t, err, "embeddings status 401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAI_EmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[]}`)
	}))
	defer srv.Close()

	_, err := NewOpenAI(srv.URL, "m", "k").Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoEmbedding)
}

func TestOpenAI_CancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewOpenAI(srv.URL, "m", "k").Embed(ctx, "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryDelay(t *testing.T) {
	old := baseRetryDelay
	baseRetryDelay = 200 * time.Millisecond
	defer func() { baseRetryDelay = old }()

	assert.Equal(t, 200*time.Millisecond, retryDelay(0))
	assert.Equal(t, 800*time.Millisecond, retryDelay(2))
	assert.Equal(t, 5*time.Second, retryDelay(10))
}

type fakeEmbedder struct {
	vec   []float64
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	f.calls++
	return f.vec, f.err
}

func TestResolver(t *testing.T) {
	store := NewStore()
	store.Put("known", []float64{1, 2})
	fe := &fakeEmbedder{vec: []float64{3, 4}}
	r := NewResolver(store, fe, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	assert.Equal(t, []float64{1, 2}, r.Vector(ctx, "known", "ignored"))
	assert.Zero(t, fe.calls)

	assert.Equal(t, []float64{3, 4}, r.Vector(ctx, "fresh", "fresh text"))
	assert.Equal(t, []float64{3, 4}, r.Vector(ctx, "fresh", "fresh text"))
	assert.Equal(t, 1, fe.calls)
}

func TestResolver_ZeroVectorFallback(t *testing.T) {
	store := NewStore()
	store.Put("known", []float64{1, 2, 3})
	ctx := context.Background()

	failing := NewResolver(store, &fakeEmbedder{err: errors.New("down")}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, []float64{0, 0, 0}, failing.Vector(ctx, "missing", "x"))

	v, found := failing.Resolve(ctx, "missing", "x")
	assert.False(t, found)
	assert.Equal(t, []float64{0, 0, 0}, v)
	v, found = failing.Resolve(ctx, "known", "x")
	assert.True(t, found)
	assert.Equal(t, []float64{1, 2, 3}, v)

	bare := NewResolver(nil, nil, nil)
	got := bare.Vectors(ctx, []string{"a", "b"}, []string{"a", "b"})
	require.Len(t, got, 2)
	assert.Len(t, got[0], DefaultDim)
}
