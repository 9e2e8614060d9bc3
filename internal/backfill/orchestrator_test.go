package backfill

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwakaf/weather-stats-app/internal/config"
	"github.com/gwakaf/weather-stats-app/internal/weather"
)

type fakeFetcher struct {
	calls int
	fn    func(date string) (weather.DayBatch, error)
}

func (f *fakeFetcher) FetchFullDay(ctx context.Context, lat, lon float64, date, locationName string) (weather.DayBatch, error) {
	f.calls++
	return f.fn(date)
}

type fakeWriter struct {
	calls   int
	succeed bool
}

func (w *fakeWriter) WriteDay(ctx context.Context, batch weather.DayBatch, location, date string) bool {
	w.calls++
	return w.succeed
}

func testLocations() *config.LocationSet {
	return config.NewLocationSet([]config.LocationCoordinate{
		{Name: "San Francisco, CA", Latitude: 37.7749, Longitude: -122.4194},
		{Name: "Paris, France", Latitude: 48.8566, Longitude: 2.3522},
	})
}

func goodDay(location, date string) weather.DayBatch {
	batch := make(weather.DayBatch, 0, 24)
	for hour := 0; hour < 24; hour++ {
		batch = append(batch, weather.NewZeroObservation(location, date, hour, time.Now()))
	}
	return batch
}

func TestRunAllDaysSucceed(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(date string) (weather.DayBatch, error) {
		return goodDay("San Francisco, CA", date), nil
	}}
	writer := &fakeWriter{succeed: true}
	o := New(fetcher, writer, testLocations(), 0)

	res := o.Run(context.Background(), "2024-01-15", "2024-01-16", "San Francisco, CA", true)
	assert.Equal(t, 2, res.SuccessfulDays)
	assert.Equal(t, 2, res.TotalDays)
	assert.Equal(t, 0, res.FailedDays)
	assert.Equal(t, 100.0, res.SuccessRate)
	assert.Equal(t, 2, fetcher.calls)
	assert.Equal(t, 2, writer.calls)
	assert.NotEmpty(t, res.RunID)
}

func TestRunUnknownLocationShortCircuits(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(date string) (weather.DayBatch, error) {
		return goodDay("x", date), nil
	}}
	o := New(fetcher, &fakeWriter{succeed: true}, testLocations(), 0)

	res := o.Run(context.Background(), "2024-01-15", "2024-01-16", "Atlantis", true)
	assert.Equal(t, 0, res.SuccessfulDays)
	assert.Equal(t, 0, res.TotalDays)
	assert.Equal(t, 0, res.FailedDays)
	assert.Zero(t, fetcher.calls)
}

func TestRunInvalidDatesShortCircuit(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(date string) (weather.DayBatch, error) {
		return goodDay("x", date), nil
	}}
	o := New(fetcher, &fakeWriter{succeed: true}, testLocations(), 0)

	for _, tc := range [][2]string{
		{"15-01-2024", "2024-01-16"},
		{"2024-01-15", "bogus"},
		{"2024-01-16", "2024-01-15"}, // end before start
	} {
		res := o.Run(context.Background(), tc[0], tc[1], "Paris, France", true)
		assert.Equal(t, 0, res.TotalDays, "range %v", tc)
		assert.Equal(t, 0, res.SuccessfulDays)
		assert.Equal(t, 0, res.FailedDays)
	}
	assert.Zero(t, fetcher.calls)
}

func TestRunFetchFailureCountsFailedDayAndContinues(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(date string) (weather.DayBatch, error) {
		if date == "2024-01-16" {
			return nil, errors.New("provider down")
		}
		return goodDay("Paris, France", date), nil
	}}
	writer := &fakeWriter{succeed: true}
	o := New(fetcher, writer, testLocations(), 0)

	res := o.Run(context.Background(), "2024-01-15", "2024-01-17", "Paris, France", true)
	assert.Equal(t, 3, res.TotalDays)
	assert.Equal(t, 2, res.SuccessfulDays)
	assert.Equal(t, 1, res.FailedDays)
	assert.Equal(t, 3, fetcher.calls, "a failed day must not stop the run")
	assert.InDelta(t, 66.7, res.SuccessRate, 0.1)
}

func TestRunWriterFailureCountsFailedDay(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(date string) (weather.DayBatch, error) {
		return goodDay("Paris, France", date), nil
	}}
	writer := &fakeWriter{succeed: false}
	o := New(fetcher, writer, testLocations(), 0)

	res := o.Run(context.Background(), "2024-01-15", "2024-01-15", "Paris, France", true)
	assert.Equal(t, 1, res.TotalDays)
	assert.Equal(t, 0, res.SuccessfulDays)
	assert.Equal(t, 1, res.FailedDays)
}

func TestRunWithoutPersistenceSkipsWriter(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(date string) (weather.DayBatch, error) {
		return goodDay("Paris, France", date), nil
	}}
	writer := &fakeWriter{succeed: false}
	o := New(fetcher, writer, testLocations(), 0)

	res := o.Run(context.Background(), "2024-01-15", "2024-01-16", "Paris, France", false)
	assert.Equal(t, 2, res.SuccessfulDays)
	assert.Zero(t, writer.calls)
}

func TestRunContainsPanicsPerDay(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(date string) (weather.DayBatch, error) {
		if date == "2024-01-15" {
			panic("boom")
		}
		return goodDay("Paris, France", date), nil
	}}
	o := New(fetcher, &fakeWriter{succeed: true}, testLocations(), 0)

	res := o.Run(context.Background(), "2024-01-15", "2024-01-16", "Paris, France", true)
	assert.Equal(t, 2, res.TotalDays)
	assert.Equal(t, 1, res.SuccessfulDays)
	assert.Equal(t, 1, res.FailedDays)
}

func TestRunCountsAlwaysReconcile(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(date string) (weather.DayBatch, error) {
		if date < "2024-01-18" {
			return nil, errors.New("nope")
		}
		return goodDay("Paris, France", date), nil
	}}
	o := New(fetcher, &fakeWriter{succeed: true}, testLocations(), 0)

	res := o.Run(context.Background(), "2024-01-15", "2024-01-20", "Paris, France", true)
	assert.Equal(t, 6, res.TotalDays)
	assert.Equal(t, res.TotalDays, res.SuccessfulDays+res.FailedDays)
}

func TestRunAllIndependentLocations(t *testing.T) {
	fetcher := &fakeFetcher{fn: func(date string) (weather.DayBatch, error) {
		return goodDay("x", date), nil
	}}
	o := New(fetcher, &fakeWriter{succeed: true}, testLocations(), 0)

	results := o.RunAll(context.Background(), "2024-01-15", "2024-01-16",
		[]string{"San Francisco, CA", "Atlantis", "Paris, France"}, true)

	require.Len(t, results, 3)
	assert.Equal(t, 2, results["San Francisco, CA"].SuccessfulDays)
	assert.Equal(t, 0, results["Atlantis"].TotalDays, "unknown location must not affect others")
	assert.Equal(t, 2, results["Paris, France"].SuccessfulDays)
}

func TestRunAllEmptyLocationList(t *testing.T) {
	o := New(&fakeFetcher{fn: func(string) (weather.DayBatch, error) { return nil, nil }}, &fakeWriter{}, testLocations(), 0)
	results := o.RunAll(context.Background(), "2024-01-15", "2024-01-16", nil, true)
	assert.Empty(t, results)
}
