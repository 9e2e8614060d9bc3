package weather

import (
	"fmt"
	"time"
)

// HourlyObservation is one weather reading for one location and one calendar
// hour. It is the unit stored in the partitioned archive, so it carries both
// JSON tags (API responses) and parquet tags (columnar storage).
//
// The four measurement fields are pointers: a nil value means the provider
// had no reading for that hour, which the quality checks report separately
// from out-of-range values.
type HourlyObservation struct {
	Location             string   `json:"location" parquet:"name=location, type=BYTE_ARRAY, convertedtype=UTF8"`
	Date                 string   `json:"date" parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Hour                 int32    `json:"hour" parquet:"name=hour, type=INT32"`
	TemperatureCelsius   *float64 `json:"temperature_celsius" parquet:"name=temperature_celsius, type=DOUBLE, repetitiontype=OPTIONAL"`
	WindSpeedKmh         *float64 `json:"wind_speed_kmh" parquet:"name=wind_speed_kmh, type=DOUBLE, repetitiontype=OPTIONAL"`
	PrecipitationMm      *float64 `json:"precipitation_mm" parquet:"name=precipitation_mm, type=DOUBLE, repetitiontype=OPTIONAL"`
	CloudCoveragePercent *float64 `json:"cloud_coverage_percent" parquet:"name=cloud_coverage_percent, type=DOUBLE, repetitiontype=OPTIONAL"`
	IngestionTimestamp   string   `json:"ingestion_timestamp" parquet:"name=ingestion_timestamp, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// DayBatch is the ordered set of hourly observations for one (location, date).
// A successful full-day fetch always produces exactly 24 entries, hours 0-23.
type DayBatch []HourlyObservation

// CurrentObservation is a single best-effort reading of right-now conditions.
// Unlike HourlyObservation it also carries relative humidity, which the
// forecast endpoint reports but the archive does not.
type CurrentObservation struct {
	Location             string   `json:"location"`
	Timestamp            string   `json:"timestamp"`
	Date                 string   `json:"date"`
	Hour                 int      `json:"hour"`
	TemperatureCelsius   *float64 `json:"temperature_celsius"`
	WindSpeedKmh         *float64 `json:"wind_speed_kmh"`
	PrecipitationMm      *float64 `json:"precipitation_mm"`
	CloudCoveragePercent *float64 `json:"cloud_coverage_percent"`
	HumidityPercent      *float64 `json:"humidity"`
}

// DateLayout is the calendar-date format used throughout the pipeline.
const DateLayout = "2006-01-02"

// LabelFor returns the location label to attach to observations: the given
// name if present, otherwise "lat, lon".
func LabelFor(lat, lon float64, name string) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("%g, %g", lat, lon)
}

// NewZeroObservation builds a fully zero-valued observation for the given
// hour. Missing hours in a provider response are backfilled with these so a
// stored day is always complete.
func NewZeroObservation(location, date string, hour int, ingestedAt time.Time) HourlyObservation {
	z := func() *float64 { v := 0.0; return &v }
	return HourlyObservation{
		Location:             location,
		Date:                 date,
		Hour:                 int32(hour),
		TemperatureCelsius:   z(),
		WindSpeedKmh:         z(),
		PrecipitationMm:      z(),
		CloudCoveragePercent: z(),
		IngestionTimestamp:   ingestedAt.Format(time.RFC3339),
	}
}
