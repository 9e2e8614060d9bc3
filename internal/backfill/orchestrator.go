// Package backfill drives historical ingestion: it walks a date range for
// one or more configured locations, fetching one full day per provider call
// and persisting each day at its partitioned key. Failures are contained per
// day and per location; a run always finishes and reports counts.
package backfill

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gwakaf/weather-stats-app/internal/config"
	"github.com/gwakaf/weather-stats-app/internal/logging"
	"github.com/gwakaf/weather-stats-app/internal/weather"
)

// DayFetcher fetches the full 24-hour batch for one date.
type DayFetcher interface {
	FetchFullDay(ctx context.Context, lat, lon float64, date, locationName string) (weather.DayBatch, error)
}

// DayWriter persists one day batch, reporting success as a boolean.
type DayWriter interface {
	WriteDay(ctx context.Context, batch weather.DayBatch, location, date string) bool
}

// RunResult is the immutable summary of one backfill run for one location.
type RunResult struct {
	RunID          string  `json:"run_id"`
	Location       string  `json:"location"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	SuccessfulDays int     `json:"successful_days"`
	TotalDays      int     `json:"total_days"`
	FailedDays     int     `json:"failed_days"`
	SuccessRate    float64 `json:"success_rate"`
}

// Orchestrator coordinates the fetch-write cycle across a date range.
type Orchestrator struct {
	fetcher   DayFetcher
	writer    DayWriter
	locations *config.LocationSet
	delay     time.Duration
}

// New creates an Orchestrator. delay is the pause honored between days to
// respect provider rate limits.
func New(fetcher DayFetcher, writer DayWriter, locations *config.LocationSet, delay time.Duration) *Orchestrator {
	return &Orchestrator{
		fetcher:   fetcher,
		writer:    writer,
		locations: locations,
		delay:     delay,
	}
}

// Run backfills [startDate, endDate] inclusive for one configured location.
// An unknown location name or an unparseable date short-circuits to a
// zero-count result rather than an error: the run is a no-op, not a crash.
func (o *Orchestrator) Run(ctx context.Context, startDate, endDate, locationName string, persist bool) RunResult {
	result := RunResult{
		RunID:     uuid.NewString(),
		Location:  locationName,
		StartDate: startDate,
		EndDate:   endDate,
	}

	logging.Infof("starting historic weather backfill for %s: %s to %s", locationName, startDate, endDate)

	loc, ok := o.locations.Coordinates(locationName)
	if !ok {
		logging.Errorf("location %q not found in configuration", locationName)
		return result
	}

	start, err := time.Parse(weather.DateLayout, startDate)
	if err != nil {
		logging.Errorf("invalid start date %q: %v", startDate, err)
		return result
	}
	end, err := time.Parse(weather.DateLayout, endDate)
	if err != nil {
		logging.Errorf("invalid end date %q: %v", endDate, err)
		return result
	}
	if end.Before(start) {
		logging.Errorf("end date %s is before start date %s", endDate, startDate)
		return result
	}

	// Total is known up front from the range, independent of how many days
	// actually get attempts.
	result.TotalDays = int(end.Sub(start).Hours()/24) + 1
	logging.Infof("processing %d days from %s to %s (coordinates: %g, %g)",
		result.TotalDays, startDate, endDate, loc.Latitude, loc.Longitude)

	for day, current := 0, start; !current.After(end); day, current = day+1, current.AddDate(0, 0, 1) {
		dateStr := current.Format(weather.DateLayout)
		logging.Infof("processing %s (%d/%d)", dateStr, day+1, result.TotalDays)

		if o.processDay(ctx, loc, dateStr, persist) {
			result.SuccessfulDays++
		} else {
			result.FailedDays++
		}

		if current.Before(end) && o.delay > 0 {
			sleepCtx(ctx, o.delay)
		}
	}

	if result.TotalDays > 0 {
		result.SuccessRate = float64(result.SuccessfulDays) / float64(result.TotalDays) * 100
	}

	logging.Infof("backfill summary for %s: %d/%d successful, %d failed (%.1f%%)",
		locationName, result.SuccessfulDays, result.TotalDays, result.FailedDays, result.SuccessRate)
	return result
}

// processDay handles one date. Any failure, including a panic out of a
// collaborator, is absorbed here and counted as a failed day; one bad day
// must never abort the run.
func (o *Orchestrator) processDay(ctx context.Context, loc config.LocationCoordinate, date string, persist bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("unexpected error processing %s for %s: %v", date, loc.Name, r)
			ok = false
		}
	}()

	batch, err := o.fetcher.FetchFullDay(ctx, loc.Latitude, loc.Longitude, date, loc.Name)
	if err != nil {
		logging.Warnf("no weather data available for %s on %s: %v", loc.Name, date, err)
		return false
	}
	if len(batch) == 0 {
		logging.Warnf("no weather data available for %s on %s", loc.Name, date)
		return false
	}

	if !persist {
		logging.Infof("successfully fetched %s - %d records (persistence disabled)", date, len(batch))
		return true
	}

	if !o.writer.WriteDay(ctx, batch, loc.Name, date) {
		logging.Errorf("failed to persist %s for %s", date, loc.Name)
		return false
	}
	logging.Infof("successfully processed %s - %d records", date, len(batch))
	return true
}

// RunAll backfills the same window for each named location, sequentially and
// independently. One location's failure leaves the others untouched. An
// empty location list yields an empty map.
func (o *Orchestrator) RunAll(ctx context.Context, startDate, endDate string, locationNames []string, persist bool) map[string]RunResult {
	logging.Infof("starting multi-location backfill: %s to %s across %d locations", startDate, endDate, len(locationNames))

	results := make(map[string]RunResult, len(locationNames))
	totalSuccessful, totalFailed := 0, 0

	for _, name := range locationNames {
		res := o.Run(ctx, startDate, endDate, name, persist)
		results[name] = res
		totalSuccessful += res.SuccessfulDays
		totalFailed += res.FailedDays
	}

	logging.Infof("multi-location backfill summary: %d locations, %d successful days, %d failed days",
		len(locationNames), totalSuccessful, totalFailed)
	return results
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
