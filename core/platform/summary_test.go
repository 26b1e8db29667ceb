package platform

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	pts := []Point{
		{TS: base.Add(2 * time.Minute), Value: "24"},
		{TS: base, Value: "20"},
		{TS: base.Add(time.Minute), Value: "22"},
		{TS: base.Add(3 * time.Minute), Value: "n/a"},
	}
	s, err := Summarize(pts)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 20.0, s.Min)
	assert.Equal(t, 24.0, s.Max)
	assert.InDelta(t, 22.0, s.Mean, 1e-9)
	assert.InDelta(t, 2.0, s.StdDev, 1e-9)
	assert.Equal(t, base, s.First)
	assert.Equal(t, base.Add(2*time.Minute), s.Last)
}

func TestSummarizeNoNumericSamples(t *testing.T) {
	_, err := Summarize([]Point{{Value: "on"}})
	assert.Error(t, err)
}

func TestTelemetryLatest(t *testing.T) {
	base := time.Now()
	tel := Telemetry{"temp": {{TS: base.Add(-time.Minute), Value: "1"}, {TS: base, Value: "2"}}}
	p, ok := tel.Latest("temp")
	require.True(t, ok)
	assert.Equal(t, "2", p.Value)
	_, ok = tel.Latest("humidity")
	assert.False(t, ok)
}

func TestTokenValidAt(t *testing.T) {
	now := time.Now()
	tok := Token{Access: "a", ExpiresAt: now.Add(2 * time.Minute)}
	assert.True(t, tok.ValidAt(now, time.Minute))
	assert.False(t, tok.ValidAt(now.Add(90*time.Second), time.Minute))
	assert.False(t, Token{ExpiresAt: now.Add(time.Hour)}.ValidAt(now, 0))
}

func TestStatusErrorIsConnection(t *testing.T) {
	err := &StatusError{Method: "GET", Path: "/x", Code: 500}
	assert.True(t, errors.Is(err, ErrConnection))
	assert.False(t, errors.Is(err, ErrAuth))
}
