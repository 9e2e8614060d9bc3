// Package objectstore persists day batches of hourly observations as parquet
// objects under a deterministic, Hive-partitioned key layout, and reads them
// back for the quality checks.
package objectstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/gwakaf/weather-stats-app/internal/logging"
	"github.com/gwakaf/weather-stats-app/internal/weather"
)

const keyPrefix = "weather-data"

// CleanLocation normalizes a location name into its partition value: commas
// removed, spaces replaced with underscores. "San Francisco, CA" becomes
// "San_Francisco_CA". Both the writer and the query side must use this.
func CleanLocation(location string) string {
	cleaned := strings.ReplaceAll(location, ",", "")
	return strings.ReplaceAll(cleaned, " ", "_")
}

// ObjectKey derives the partitioned storage key for one (location, date):
//
//	weather-data/location={loc}/year={YYYY}/month={MM}/day={DD}/weather_data_{date}.parquet
//
// If date does not parse as YYYY-MM-DD, the partition components fall back to
// the current date while the filename keeps the original string. This mirrors
// long-standing behavior; it can misfile data and is logged loudly.
func ObjectKey(location, date string) string {
	return objectKeyAt(location, date, time.Now())
}

func objectKeyAt(location, date string, now time.Time) string {
	var year, month, day string
	if t, err := time.Parse(weather.DateLayout, date); err == nil {
		year = fmt.Sprintf("%04d", t.Year())
		month = fmt.Sprintf("%02d", int(t.Month()))
		day = fmt.Sprintf("%02d", t.Day())
	} else {
		logging.Warnf("date %q does not parse as YYYY-MM-DD; partitioning under current date", date)
		year = fmt.Sprintf("%04d", now.Year())
		month = fmt.Sprintf("%02d", int(now.Month()))
		day = fmt.Sprintf("%02d", now.Day())
	}

	return fmt.Sprintf("%s/location=%s/year=%s/month=%s/day=%s/weather_data_%s.parquet",
		keyPrefix, CleanLocation(location), year, month, day, date)
}
