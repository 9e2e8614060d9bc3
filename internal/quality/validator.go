package quality

import (
	"context"
	"fmt"
	"time"

	"github.com/gwakaf/weather-stats-app/internal/config"
	"github.com/gwakaf/weather-stats-app/internal/logging"
	"github.com/gwakaf/weather-stats-app/internal/weather"
)

// Status is the outcome of a single check or of a whole location.
type Status string

const (
	StatusPass  Status = "PASS"
	StatusFail  Status = "FAIL"
	StatusError Status = "ERROR"
)

// CheckResult holds one check's outcome for one location. ERROR marks a
// check that could not run; at the location level that still reads as FAIL.
type CheckResult struct {
	Status  Status   `json:"status"`
	Errors  []string `json:"errors,omitempty"`
	Message string   `json:"message,omitempty"`
}

// LocationReport aggregates every check run against one location's day.
type LocationReport struct {
	Location      string                 `json:"location"`
	Date          string                 `json:"date"`
	OverallStatus Status                 `json:"overall_status"`
	Checks        map[string]CheckResult `json:"checks"`
	Errors        []string               `json:"errors,omitempty"`
}

// Summary counts both locations and individual checks across a run. The
// data_availability entry is reported per location but not counted as a
// check.
type Summary struct {
	TotalLocations  int `json:"total_locations"`
	PassedLocations int `json:"passed_locations"`
	FailedLocations int `json:"failed_locations"`
	TotalChecks     int `json:"total_checks"`
	PassedChecks    int `json:"passed_checks"`
	FailedChecks    int `json:"failed_checks"`
}

// RunReport is the full result of one validation run.
type RunReport struct {
	Success          bool                      `json:"success"`
	Date             string                    `json:"date"`
	LocationsChecked int                       `json:"locations_checked"`
	Results          map[string]LocationReport `json:"results"`
	Summary          Summary                   `json:"summary"`
	Error            string                    `json:"error,omitempty"`
}

// Querier reads back a stored day batch for validation.
type Querier interface {
	ReadDay(ctx context.Context, location, date string) ([]weather.HourlyObservation, error)
}

// Validator runs the data quality checks for every configured location.
type Validator struct {
	querier   Querier
	locations *config.LocationSet
	now       func() time.Time
}

func NewValidator(querier Querier, locations *config.LocationSet) *Validator {
	return &Validator{
		querier:   querier,
		locations: locations,
		now:       time.Now,
	}
}

type checkFunc func(records []weather.HourlyObservation, location, date string) (bool, []string)

// checkOrder fixes the sequence checks run and report in.
var checkOrder = []string{"schema", "completeness", "data_ranges", "null_values", "data_freshness"}

func (v *Validator) checks() map[string]checkFunc {
	return map[string]checkFunc{
		"schema":       ValidateSchema,
		"completeness": ValidateCompleteness,
		"data_ranges":  ValidateDataRanges,
		"null_values":  ValidateNullValues,
		"data_freshness": func(records []weather.HourlyObservation, location, date string) (bool, []string) {
			return ValidateDataFreshness(records, location, date, v.now())
		},
	}
}

// Run validates the stored data for targetDate across every configured
// location. The run is advisory: it reports, it never aborts ingestion.
func (v *Validator) Run(ctx context.Context, targetDate string) RunReport {
	report := RunReport{
		Date:    targetDate,
		Results: make(map[string]LocationReport),
	}

	names := v.locations.Names()
	if len(names) == 0 {
		report.Error = "no locations configured"
		logging.Warnf("quality run skipped: no locations configured")
		return report
	}
	report.LocationsChecked = len(names)
	report.Summary.TotalLocations = len(names)

	logging.Infof("starting data quality checks for %d locations, date %s", len(names), targetDate)

	for _, name := range names {
		loc := v.validateLocation(ctx, name, targetDate)
		report.Results[name] = loc

		if loc.OverallStatus == StatusPass {
			report.Summary.PassedLocations++
		} else {
			report.Summary.FailedLocations++
		}
		for _, checkName := range checkOrder {
			result, ran := loc.Checks[checkName]
			if !ran {
				continue
			}
			report.Summary.TotalChecks++
			if result.Status == StatusPass {
				report.Summary.PassedChecks++
			} else {
				report.Summary.FailedChecks++
			}
		}
	}
	report.Success = report.Summary.FailedLocations == 0

	logging.Infof("data quality run for %s complete: %d/%d locations passed, %d/%d checks passed",
		targetDate, report.Summary.PassedLocations, report.Summary.TotalLocations,
		report.Summary.PassedChecks, report.Summary.TotalChecks)
	return report
}

func (v *Validator) validateLocation(ctx context.Context, location, date string) LocationReport {
	report := LocationReport{
		Location:      location,
		Date:          date,
		OverallStatus: StatusPass,
		Checks:        make(map[string]CheckResult),
	}

	records, err := v.querier.ReadDay(ctx, location, date)
	if err != nil {
		report.OverallStatus = StatusFail
		report.Checks["data_availability"] = CheckResult{
			Status:  StatusError,
			Message: fmt.Sprintf("query failed: %v", err),
		}
		report.Errors = append(report.Errors, fmt.Sprintf("failed to query data: %v", err))
		logging.Errorf("quality check for %s on %s: query failed: %v", location, date, err)
		return report
	}
	if len(records) == 0 {
		report.OverallStatus = StatusFail
		report.Checks["data_availability"] = CheckResult{
			Status:  StatusFail,
			Message: "no data found",
		}
		report.Errors = append(report.Errors, fmt.Sprintf("no data found for %s on %s", location, date))
		logging.Warnf("quality check for %s on %s: no data found", location, date)
		return report
	}

	report.Checks["data_availability"] = CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("found %d records", len(records)),
	}

	checks := v.checks()
	for _, name := range checkOrder {
		result := runCheck(checks[name], records, location, date)
		report.Checks[name] = result
		if result.Status != StatusPass {
			report.OverallStatus = StatusFail
			report.Errors = append(report.Errors, result.Errors...)
		}
	}

	logging.Infof("quality check for %s on %s: %s", location, date, report.OverallStatus)
	return report
}

// runCheck shields the run from a panicking check; the panic becomes an
// ERROR result for that check alone.
func runCheck(fn checkFunc, records []weather.HourlyObservation, location, date string) (result CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			result = CheckResult{
				Status:  StatusError,
				Errors:  []string{fmt.Sprintf("check panicked: %v", r)},
				Message: fmt.Sprintf("check failed with panic: %v", r),
			}
		}
	}()

	ok, errs := fn(records, location, date)
	if ok {
		return CheckResult{Status: StatusPass, Message: "passed with 0 error(s)"}
	}
	return CheckResult{
		Status:  StatusFail,
		Errors:  errs,
		Message: fmt.Sprintf("failed with %d error(s)", len(errs)),
	}
}
