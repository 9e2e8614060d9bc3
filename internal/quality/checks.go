// Package quality validates previously stored day batches against the
// pipeline's data contract: schema, completeness, value ranges, null-freedom
// and freshness. Checks warn, they never gate; a failed check downgrades a
// location to FAIL in the report and nothing else.
package quality

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/gwakaf/weather-stats-app/internal/weather"
)

// ExpectedHoursPerDay is the record count a complete stored day must have.
const ExpectedHoursPerDay = 24

// MaxDataAgeHours is the freshness bound on ingestion timestamps.
const MaxDataAgeHours = 24.0

type fieldRange struct {
	name string
	min  float64
	max  float64
}

// Bounds every stored measurement must respect. Hour is included so a
// corrupted partition shows up here too.
var dataRanges = []fieldRange{
	{"temperature_celsius", -50, 60},
	{"wind_speed_kmh", 0, 300},
	{"precipitation_mm", 0, 500},
	{"cloud_coverage_percent", 0, 100},
	{"hour", 0, 23},
}

var criticalFields = []string{
	"temperature_celsius",
	"wind_speed_kmh",
	"precipitation_mm",
	"cloud_coverage_percent",
}

func measurement(obs *weather.HourlyObservation, field string) *float64 {
	switch field {
	case "temperature_celsius":
		return obs.TemperatureCelsius
	case "wind_speed_kmh":
		return obs.WindSpeedKmh
	case "precipitation_mm":
		return obs.PrecipitationMm
	case "cloud_coverage_percent":
		return obs.CloudCoveragePercent
	default:
		return nil
	}
}

// ValidateSchema checks that the stored records carry the expected seven
// fields with sane coarse types. Only the first record's shape is inspected;
// it is treated as authoritative for the whole batch.
func ValidateSchema(records []weather.HourlyObservation, location, date string) (bool, []string) {
	var errs []string

	if len(records) == 0 {
		return false, []string{fmt.Sprintf("no data found for %s on %s", location, date)}
	}

	first := records[0]
	var missing []string
	if first.Date == "" {
		missing = append(missing, "date")
	}
	for _, field := range criticalFields {
		if measurement(&first, field) == nil {
			missing = append(missing, field)
		}
	}
	if first.IngestionTimestamp == "" {
		missing = append(missing, "ingestion_timestamp")
	}
	if len(missing) > 0 {
		errs = append(errs, fmt.Sprintf("missing columns: %v", missing))
	}

	if first.Date != "" {
		if _, err := time.Parse(weather.DateLayout, first.Date); err != nil {
			errs = append(errs, fmt.Sprintf("column 'date' has wrong format: %q, expected YYYY-MM-DD", first.Date))
		}
	}
	if first.IngestionTimestamp != "" {
		if _, err := parseIngestionTimestamp(first.IngestionTimestamp); err != nil {
			errs = append(errs, fmt.Sprintf("column 'ingestion_timestamp' has wrong format: %q", first.IngestionTimestamp))
		}
	}

	return len(errs) == 0, errs
}

// ValidateCompleteness checks that the batch holds exactly 24 records and
// covers every hour 0-23 exactly once. Missing and duplicate hours are
// reported as separate error classes.
func ValidateCompleteness(records []weather.HourlyObservation, location, date string) (bool, []string) {
	var errs []string

	if len(records) == 0 {
		return false, []string{fmt.Sprintf("no data to validate completeness for %s on %s", location, date)}
	}

	if len(records) != ExpectedHoursPerDay {
		errs = append(errs, fmt.Sprintf("expected %d records (24 hours), found %d", ExpectedHoursPerDay, len(records)))
	}

	counts := make(map[int]int)
	for _, rec := range records {
		counts[int(rec.Hour)]++
	}

	var missing []int
	for hour := 0; hour < ExpectedHoursPerDay; hour++ {
		if counts[hour] == 0 {
			missing = append(missing, hour)
		}
	}
	if len(missing) > 0 {
		errs = append(errs, fmt.Sprintf("missing hours: %v", missing))
	}

	var duplicates []int
	for hour, n := range counts {
		if n > 1 {
			duplicates = append(duplicates, hour)
		}
	}
	if len(duplicates) > 0 {
		sort.Ints(duplicates)
		errs = append(errs, fmt.Sprintf("duplicate hours found: %v", duplicates))
	}

	return len(errs) == 0, errs
}

// ValidateDataRanges checks every record's bounded fields against their
// expected ranges. Each violation is an individual error citing the record
// index and hour.
func ValidateDataRanges(records []weather.HourlyObservation, location, date string) (bool, []string) {
	var errs []string

	for i := range records {
		rec := &records[i]
		for _, fr := range dataRanges {
			var value float64
			if fr.name == "hour" {
				value = float64(rec.Hour)
			} else {
				ptr := measurement(rec, fr.name)
				if ptr == nil {
					continue // null values are the null check's concern
				}
				value = *ptr
			}

			if math.IsNaN(value) || math.IsInf(value, 0) {
				errs = append(errs, fmt.Sprintf("record %d, hour %d: %s = %v is not a valid number", i, rec.Hour, fr.name, value))
				continue
			}
			if value < fr.min || value > fr.max {
				errs = append(errs, fmt.Sprintf("record %d, hour %d: %s = %v is outside valid range [%g, %g]",
					i, rec.Hour, fr.name, value, fr.min, fr.max))
			}
		}
	}

	return len(errs) == 0, errs
}

// ValidateNullValues checks that none of the four critical measurement
// fields is absent on any record.
func ValidateNullValues(records []weather.HourlyObservation, location, date string) (bool, []string) {
	var errs []string

	for i := range records {
		rec := &records[i]
		for _, field := range criticalFields {
			if measurement(rec, field) == nil {
				errs = append(errs, fmt.Sprintf("record %d, hour %d: missing or null value for %s", i, rec.Hour, field))
			}
		}
	}

	return len(errs) == 0, errs
}

// ValidateDataFreshness checks that every record was ingested within the
// last 24 hours relative to now. Unparseable timestamps are errors too.
func ValidateDataFreshness(records []weather.HourlyObservation, location, date string, now time.Time) (bool, []string) {
	var errs []string

	for i := range records {
		rec := &records[i]
		if rec.IngestionTimestamp == "" {
			continue
		}
		ingested, err := parseIngestionTimestamp(rec.IngestionTimestamp)
		if err != nil {
			errs = append(errs, fmt.Sprintf("record %d, hour %d: invalid ingestion_timestamp format: %s", i, rec.Hour, rec.IngestionTimestamp))
			continue
		}
		ageHours := now.Sub(ingested).Hours()
		if ageHours > MaxDataAgeHours {
			errs = append(errs, fmt.Sprintf("record %d, hour %d: data is %.1f hours old (max: %g hours)", i, rec.Hour, ageHours, MaxDataAgeHours))
		}
	}

	return len(errs) == 0, errs
}

func parseIngestionTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", s)
}
