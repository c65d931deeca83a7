package utils

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "04:00", want: 240},
		{in: "09:29", want: 569},
		{in: " 16:00 ", want: 960},
		{in: "24:00", wantErr: true},
		{in: "9", wantErr: true},
		{in: "aa:10", wantErr: true},
		{in: "10:75", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClockWindow_Contains(t *testing.T) {
	et := newYork(t)
	w, err := NewClockWindow("04:00", "09:29", et)
	require.NoError(t, err)

	tests := []struct {
		name string
		ts   time.Time
		want bool
	}{
		{name: "start bound", ts: time.Date(2024, 3, 14, 4, 0, 0, 0, et), want: true},
		{name: "end bound", ts: time.Date(2024, 3, 14, 9, 29, 0, 0, et), want: true},
		{name: "end bound seconds", ts: time.Date(2024, 3, 14, 9, 29, 59, 0, et), want: true},
		{name: "regular open", ts: time.Date(2024, 3, 14, 9, 30, 0, 0, et), want: false},
		{name: "before start", ts: time.Date(2024, 3, 14, 3, 59, 0, 0, et), want: false},
		// 12:00 UTC is 08:00 EDT
		{name: "utc converted", ts: time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC), want: true},
		// 09:00 UTC is 05:00 EDT in summer but 04:00 EST in winter
		{name: "utc winter", ts: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC), want: true},
		{name: "utc too early winter", ts: time.Date(2024, 1, 10, 8, 30, 0, 0, time.UTC), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Contains(tt.ts))
		})
	}
}

func TestNewClockWindow_Errors(t *testing.T) {
	et := newYork(t)
	_, err := NewClockWindow("09:30", "04:00", et)
	assert.Error(t, err)
	_, err = NewClockWindow("04:00", "09:29", nil)
	assert.Error(t, err)
}

func TestCheckMarketStatus(t *testing.T) {
	et := newYork(t)
	w, err := NewClockWindow("04:00", "09:29", et)
	require.NoError(t, err)

	assert.Equal(t, StatusPremarket, CheckMarketStatus(time.Date(2024, 3, 14, 8, 0, 0, 0, et), w))
	assert.Equal(t, StatusOpen, CheckMarketStatus(time.Date(2024, 3, 14, 10, 0, 0, 0, et), w))
	assert.Equal(t, StatusClosed, CheckMarketStatus(time.Date(2024, 3, 14, 17, 0, 0, 0, et), w))
	assert.Equal(t, StatusClosed, CheckMarketStatus(time.Date(2024, 3, 16, 8, 0, 0, 0, et), w), "saturday")
}

func TestAverageAndMedian(t *testing.T) {
	avg, ok := Average([]float64{1, 2, math.NaN(), 6})
	require.True(t, ok)
	assert.InDelta(t, 3.0, avg, 1e-12)

	_, ok = Average(nil)
	assert.False(t, ok)

	med, ok := Median([]float64{5, 1, 3})
	require.True(t, ok)
	assert.Equal(t, 3.0, med)

	med, ok = Median([]float64{4, 1, 3, 2})
	require.True(t, ok)
	assert.Equal(t, 2.5, med)
}

func TestRollingMaxMin(t *testing.T) {
	values := []float64{3, 1, 4, 1, 5}
	assert.Equal(t, []float64{3, 3, 4, 4, 5}, RollingMax(values, 3))
	assert.Equal(t, []float64{3, 1, 1, 1, 1}, RollingMin(values, 3))
}

func TestRetryWithBackoff(t *testing.T) {
	fast := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2}

	t.Run("succeeds after transient errors", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errors.New("temporary")
			}
			return nil
		}, fast)
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on permanent error", func(t *testing.T) {
		sentinel := errors.New("bad symbol")
		calls := 0
		err := RetryWithBackoff(context.Background(), func() error {
			calls++
			return Permanent(sentinel)
		}, fast)
		assert.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up with last error", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(context.Background(), func() error {
			calls++
			return errors.New("down")
		}, fast)
		assert.EqualError(t, err, "down")
		assert.Equal(t, 3, calls)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := RetryWithBackoff(ctx, func() error { return errors.New("down") }, RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
