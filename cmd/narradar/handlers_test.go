package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/narradar/internal/pipeline"
)

func TestParsePeriod(t *testing.T) {
	p := pipeline.New(pipeline.Options{Now: func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }})
	day := func(s string) time.Time {
		d, err := time.Parse(time.DateOnly, s)
		require.NoError(t, err)
		return d
	}

	tests := []struct {
		name       string
		start, end string
		wantStart  string
		wantEnd    string
		wantErr    string
	}{
		{name: "defaults", wantStart: "2025-02-15", wantEnd: "2025-03-01"},
		{name: "end only", end: "2025-01-31", wantStart: "2025-01-17", wantEnd: "2025-01-31"},
		{name: "both", start: "2025-01-01", end: "2025-01-31", wantStart: "2025-01-01", wantEnd: "2025-01-31"},
		{name: "bad start", start: "01/01/2025", wantErr: "parse --start"},
		{name: "reversed", start: "2025-02-01", end: "2025-01-01", wantErr: "is before start"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, e, err := parsePeriod(p, 14, tt.start, tt.end)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, day(tt.wantStart), s)
			assert.Equal(t, day(tt.wantEnd), e)
		})
	}
}
