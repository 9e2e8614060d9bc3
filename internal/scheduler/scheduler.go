package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/gwakaf/weather-stats-app/internal/backfill"
	"github.com/gwakaf/weather-stats-app/internal/config"
	"github.com/gwakaf/weather-stats-app/internal/logging"
	"github.com/gwakaf/weather-stats-app/internal/quality"
	"github.com/gwakaf/weather-stats-app/internal/weather"
)

// ingestionLagDays is how far behind the calendar the daily ingestion
// targets. The upstream archive needs a few days before a day is final;
// a week is comfortably past that.
const ingestionLagDays = 7

// jobTimeout bounds one scheduled run across all locations.
const jobTimeout = 30 * time.Minute

// Ingestor runs a backfill window for a set of locations.
type Ingestor interface {
	RunAll(ctx context.Context, startDate, endDate string, locationNames []string, persist bool) map[string]backfill.RunResult
}

// QualityRunner validates a stored day across all locations.
type QualityRunner interface {
	Run(ctx context.Context, targetDate string) quality.RunReport
}

// Scheduler drives the two daily jobs: archive ingestion for the week-ago
// day, and the data quality sweep that follows it.
type Scheduler struct {
	scheduler *gocron.Scheduler
	ingestor  Ingestor
	quality   QualityRunner
	locations *config.LocationSet

	ingestionTime string
	qualityTime   string

	now func() time.Time
}

// New creates a Scheduler with jobs at the configured wall-clock times.
func New(cfg config.AppConfig, ingestor Ingestor, qualityRunner QualityRunner, locations *config.LocationSet) *Scheduler {
	return &Scheduler{
		scheduler:     gocron.NewScheduler(time.UTC),
		ingestor:      ingestor,
		quality:       qualityRunner,
		locations:     locations,
		ingestionTime: cfg.IngestionTime,
		qualityTime:   cfg.QualityCheckTime,
		now:           time.Now,
	}
}

// Start schedules both daily jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.locations.Names()) == 0 {
		logging.Warnf("scheduler: no locations configured; nothing to schedule")
		return nil
	}

	if _, err := s.scheduler.Every(1).Day().At(s.ingestionTime).Do(s.runIngestion); err != nil {
		return err
	}
	if _, err := s.scheduler.Every(1).Day().At(s.qualityTime).Do(s.runQuality); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	logging.Infof("scheduler: daily ingestion at %s, quality checks at %s", s.ingestionTime, s.qualityTime)
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// targetDate is the day both jobs operate on.
func (s *Scheduler) targetDate() string {
	return s.now().UTC().AddDate(0, 0, -ingestionLagDays).Format(weather.DateLayout)
}

func (s *Scheduler) runIngestion() {
	date := s.targetDate()
	logging.Infof("scheduler: running daily ingestion for %s", date)

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	results := s.ingestor.RunAll(ctx, date, date, s.locations.Names(), true)
	for location, result := range results {
		if result.FailedDays > 0 {
			logging.Warnf("scheduler: ingestion for %s on %s failed", location, date)
		}
	}
	logging.Infof("scheduler: completed daily ingestion for %s", date)
}

// runQuality is advisory: a failed report is logged, never escalated.
func (s *Scheduler) runQuality() {
	date := s.targetDate()
	logging.Infof("scheduler: running data quality checks for %s", date)

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	report := s.quality.Run(ctx, date)
	if !report.Success {
		logging.Warnf("scheduler: data quality checks for %s reported problems: %d/%d locations failed, %d failed checks",
			date, report.Summary.FailedLocations, report.Summary.TotalLocations, report.Summary.FailedChecks)
		return
	}
	logging.Infof("scheduler: data quality checks for %s passed", date)
}
