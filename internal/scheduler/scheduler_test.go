package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwakaf/weather-stats-app/internal/backfill"
	"github.com/gwakaf/weather-stats-app/internal/config"
	"github.com/gwakaf/weather-stats-app/internal/quality"
)

type fakeIngestor struct {
	starts    []string
	ends      []string
	locations [][]string
	persist   []bool
}

func (f *fakeIngestor) RunAll(_ context.Context, startDate, endDate string, locationNames []string, persist bool) map[string]backfill.RunResult {
	f.starts = append(f.starts, startDate)
	f.ends = append(f.ends, endDate)
	f.locations = append(f.locations, locationNames)
	f.persist = append(f.persist, persist)

	results := make(map[string]backfill.RunResult, len(locationNames))
	for _, name := range locationNames {
		results[name] = backfill.RunResult{Location: name, SuccessfulDays: 1, TotalDays: 1}
	}
	return results
}

type fakeQuality struct {
	dates  []string
	report quality.RunReport
}

func (f *fakeQuality) Run(_ context.Context, targetDate string) quality.RunReport {
	f.dates = append(f.dates, targetDate)
	return f.report
}

func newTestScheduler(ingestor Ingestor, qualityRunner QualityRunner, now time.Time) *Scheduler {
	cfg := config.AppConfig{IngestionTime: "06:00", QualityCheckTime: "07:00"}
	locations := config.NewLocationSet([]config.LocationCoordinate{
		{Name: "San Francisco, CA", Latitude: 37.7749, Longitude: -122.4194},
		{Name: "Paris, France", Latitude: 48.8566, Longitude: 2.3522},
	})
	s := New(cfg, ingestor, qualityRunner, locations)
	s.now = func() time.Time { return now }
	return s
}

func TestIngestionTargetsWeekAgoDay(t *testing.T) {
	now := time.Date(2024, 1, 22, 6, 0, 0, 0, time.UTC)
	ingestor := &fakeIngestor{}
	s := newTestScheduler(ingestor, &fakeQuality{}, now)

	s.runIngestion()

	require.Len(t, ingestor.starts, 1)
	assert.Equal(t, "2024-01-15", ingestor.starts[0])
	assert.Equal(t, "2024-01-15", ingestor.ends[0])
	assert.Equal(t, []string{"San Francisco, CA", "Paris, France"}, ingestor.locations[0])
	assert.True(t, ingestor.persist[0])
}

func TestQualityJobTargetsSameDayAsIngestion(t *testing.T) {
	now := time.Date(2024, 1, 22, 7, 0, 0, 0, time.UTC)
	qualityRunner := &fakeQuality{report: quality.RunReport{Success: true}}
	s := newTestScheduler(&fakeIngestor{}, qualityRunner, now)

	s.runQuality()

	require.Len(t, qualityRunner.dates, 1)
	assert.Equal(t, "2024-01-15", qualityRunner.dates[0])
}

func TestQualityFailureIsAdvisory(t *testing.T) {
	now := time.Date(2024, 1, 22, 7, 0, 0, 0, time.UTC)
	qualityRunner := &fakeQuality{report: quality.RunReport{
		Success: false,
		Summary: quality.Summary{TotalLocations: 2, FailedLocations: 2, TotalChecks: 10, FailedChecks: 3},
	}}
	s := newTestScheduler(&fakeIngestor{}, qualityRunner, now)

	// Must not panic or escalate; the report is logged and dropped.
	s.runQuality()
	require.Len(t, qualityRunner.dates, 1)
}

func TestStartWithoutLocationsSchedulesNothing(t *testing.T) {
	cfg := config.AppConfig{IngestionTime: "06:00", QualityCheckTime: "07:00"}
	s := New(cfg, &fakeIngestor{}, &fakeQuality{}, config.NewLocationSet(nil))

	err := s.Start()
	require.NoError(t, err)
	assert.Zero(t, len(s.scheduler.Jobs()))
	s.Stop()
}

func TestStartSchedulesBothDailyJobs(t *testing.T) {
	now := time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC)
	s := newTestScheduler(&fakeIngestor{}, &fakeQuality{}, now)

	err := s.Start()
	require.NoError(t, err)
	defer s.Stop()

	assert.Len(t, s.scheduler.Jobs(), 2)
}
