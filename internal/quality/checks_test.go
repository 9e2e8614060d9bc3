package quality

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwakaf/weather-stats-app/internal/weather"
)

func ptr(v float64) *float64 { return &v }

func cleanDay(t *testing.T, now time.Time) []weather.HourlyObservation {
	t.Helper()
	batch := make([]weather.HourlyObservation, 0, 24)
	for hour := 0; hour < 24; hour++ {
		batch = append(batch, weather.HourlyObservation{
			Location:             "San Francisco, CA",
			Date:                 "2024-01-15",
			Hour:                 int32(hour),
			TemperatureCelsius:   ptr(12.5),
			WindSpeedKmh:         ptr(18.0),
			PrecipitationMm:      ptr(0.2),
			CloudCoveragePercent: ptr(40),
			IngestionTimestamp:   now.Add(-2 * time.Hour).Format(time.RFC3339),
		})
	}
	return batch
}

func TestValidateSchemaPassesOnCleanDay(t *testing.T) {
	now := time.Now().UTC()
	ok, errs := ValidateSchema(cleanDay(t, now), "San Francisco, CA", "2024-01-15")
	assert.True(t, ok)
	assert.Empty(t, errs)
}

func TestValidateSchemaReportsMissingColumns(t *testing.T) {
	now := time.Now().UTC()
	batch := cleanDay(t, now)
	batch[0].TemperatureCelsius = nil
	batch[0].WindSpeedKmh = nil

	ok, errs := ValidateSchema(batch, "San Francisco, CA", "2024-01-15")
	assert.False(t, ok)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "missing columns")
	assert.Contains(t, errs[0], "temperature_celsius")
	assert.Contains(t, errs[0], "wind_speed_kmh")
}

func TestValidateSchemaInspectsFirstRecordOnly(t *testing.T) {
	now := time.Now().UTC()
	batch := cleanDay(t, now)
	batch[5].TemperatureCelsius = nil

	ok, errs := ValidateSchema(batch, "San Francisco, CA", "2024-01-15")
	assert.True(t, ok)
	assert.Empty(t, errs)
}

func TestValidateSchemaRejectsBadDateFormat(t *testing.T) {
	now := time.Now().UTC()
	batch := cleanDay(t, now)
	for i := range batch {
		batch[i].Date = "01/15/2024"
	}

	ok, errs := ValidateSchema(batch, "San Francisco, CA", "2024-01-15")
	assert.False(t, ok)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "wrong format")
}

func TestValidateCompletenessReportsMissingHours(t *testing.T) {
	now := time.Now().UTC()
	full := cleanDay(t, now)
	// drop hours 4-7
	batch := append([]weather.HourlyObservation{}, full[:4]...)
	batch = append(batch, full[8:]...)

	ok, errs := ValidateCompleteness(batch, "San Francisco, CA", "2024-01-15")
	assert.False(t, ok)
	require.Len(t, errs, 2)
	assert.Equal(t, "expected 24 records (24 hours), found 20", errs[0])
	assert.Equal(t, "missing hours: [4 5 6 7]", errs[1])
}

func TestValidateCompletenessReportsDuplicateHours(t *testing.T) {
	now := time.Now().UTC()
	batch := cleanDay(t, now)
	batch[23].Hour = 10

	ok, errs := ValidateCompleteness(batch, "San Francisco, CA", "2024-01-15")
	assert.False(t, ok)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "missing hours: [23]")
	assert.Contains(t, errs[1], "duplicate hours found: [10]")
}

func TestValidateCompletenessPassesOnFullDay(t *testing.T) {
	now := time.Now().UTC()
	ok, errs := ValidateCompleteness(cleanDay(t, now), "San Francisco, CA", "2024-01-15")
	assert.True(t, ok)
	assert.Empty(t, errs)
}

func TestValidateDataRangesFlagsOutOfRangeTemperature(t *testing.T) {
	now := time.Now().UTC()
	batch := cleanDay(t, now)
	batch[14].TemperatureCelsius = ptr(75)

	ok, errs := ValidateDataRanges(batch, "San Francisco, CA", "2024-01-15")
	assert.False(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "record 14, hour 14: temperature_celsius = 75 is outside valid range [-50, 60]", errs[0])
}

func TestValidateDataRangesFlagsNonFiniteValues(t *testing.T) {
	now := time.Now().UTC()
	nan := 0.0
	nan = nan / nan
	batch := cleanDay(t, now)
	batch[3].WindSpeedKmh = &nan

	ok, errs := ValidateDataRanges(batch, "San Francisco, CA", "2024-01-15")
	assert.False(t, ok)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "wind_speed_kmh")
	assert.Contains(t, errs[0], "not a valid number")
}

func TestValidateDataRangesSkipsNullValues(t *testing.T) {
	now := time.Now().UTC()
	batch := cleanDay(t, now)
	batch[6].PrecipitationMm = nil

	ok, errs := ValidateDataRanges(batch, "San Francisco, CA", "2024-01-15")
	assert.True(t, ok)
	assert.Empty(t, errs)
}

func TestValidateNullValuesFlagsEveryNullField(t *testing.T) {
	now := time.Now().UTC()
	batch := cleanDay(t, now)
	batch[0].CloudCoveragePercent = nil
	batch[9].TemperatureCelsius = nil

	ok, errs := ValidateNullValues(batch, "San Francisco, CA", "2024-01-15")
	assert.False(t, ok)
	require.Len(t, errs, 2)
	assert.Equal(t, "record 0, hour 0: missing or null value for cloud_coverage_percent", errs[0])
	assert.Equal(t, "record 9, hour 9: missing or null value for temperature_celsius", errs[1])
}

func TestValidateDataFreshnessFlagsStaleRecords(t *testing.T) {
	now := time.Date(2024, 1, 16, 12, 0, 0, 0, time.UTC)
	batch := cleanDay(t, now)
	batch[0].IngestionTimestamp = now.Add(-30 * time.Hour).Format(time.RFC3339)

	ok, errs := ValidateDataFreshness(batch, "San Francisco, CA", "2024-01-15", now)
	assert.False(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "record 0, hour 0: data is 30.0 hours old (max: 24 hours)", errs[0])
}

func TestValidateDataFreshnessFlagsUnparseableTimestamp(t *testing.T) {
	now := time.Date(2024, 1, 16, 12, 0, 0, 0, time.UTC)
	batch := cleanDay(t, now)
	batch[2].IngestionTimestamp = "not-a-timestamp"

	ok, errs := ValidateDataFreshness(batch, "San Francisco, CA", "2024-01-15", now)
	assert.False(t, ok)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "invalid ingestion_timestamp format")
}

func TestValidateDataFreshnessAcceptsRecentData(t *testing.T) {
	now := time.Date(2024, 1, 16, 12, 0, 0, 0, time.UTC)
	ok, errs := ValidateDataFreshness(cleanDay(t, now), "San Francisco, CA", "2024-01-15", now)
	assert.True(t, ok)
	assert.Empty(t, errs)
}

func TestChecksAreIndependent(t *testing.T) {
	// A batch violating exactly one check must leave the other checks green.
	now := time.Now().UTC()
	batch := cleanDay(t, now)
	batch[14].TemperatureCelsius = ptr(75)

	for name, fn := range map[string]func() (bool, []string){
		"schema": func() (bool, []string) {
			return ValidateSchema(batch, "San Francisco, CA", "2024-01-15")
		},
		"completeness": func() (bool, []string) {
			return ValidateCompleteness(batch, "San Francisco, CA", "2024-01-15")
		},
		"null_values": func() (bool, []string) {
			return ValidateNullValues(batch, "San Francisco, CA", "2024-01-15")
		},
		"data_freshness": func() (bool, []string) {
			return ValidateDataFreshness(batch, "San Francisco, CA", "2024-01-15", now)
		},
	} {
		ok, errs := fn()
		assert.True(t, ok, fmt.Sprintf("%s should not be affected by a range violation", name))
		assert.Empty(t, errs)
	}

	ok, _ := ValidateDataRanges(batch, "San Francisco, CA", "2024-01-15")
	assert.False(t, ok)
}
