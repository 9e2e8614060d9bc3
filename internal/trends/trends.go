// Package trends builds decadal temperature series by sampling the same
// calendar day and hour across past years, and summarizes them with basic
// statistics.
package trends

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/gwakaf/weather-stats-app/internal/logging"
	"github.com/gwakaf/weather-stats-app/internal/weather"
)

// DefaultYearsBack is how many years a decadal series spans.
const DefaultYearsBack = 10

// HourFetcher retrieves a single archived hour for a coordinate.
type HourFetcher interface {
	FetchHour(ctx context.Context, lat, lon float64, date, timeOfDay string) (weather.HourlyObservation, error)
}

// Point is one sampled year in a series. Value is nil when that year's
// observation was unavailable or null.
type Point struct {
	Year  int      `json:"year"`
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// Stats summarizes the non-null points of a series.
type Stats struct {
	Samples int     `json:"samples"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	// Slope is the least-squares trend in value units per year.
	Slope float64 `json:"slope_per_year"`
}

// Series is a decadal sample of one metric for one location.
type Series struct {
	Location  string  `json:"location"`
	Metric    string  `json:"metric"`
	TimeOfDay string  `json:"time_of_day"`
	Points    []Point `json:"points"`
	Stats     Stats   `json:"stats"`
}

// Collector samples historic hours year by year.
type Collector struct {
	fetcher HourFetcher
	years   int
}

func NewCollector(fetcher HourFetcher) *Collector {
	return &Collector{fetcher: fetcher, years: DefaultYearsBack}
}

// TemperatureSeries samples the temperature at timeOfDay on endDate's
// calendar day for each of the preceding years, oldest first. Years whose
// fetch fails are kept as null points so the series always spans the full
// window.
func (c *Collector) TemperatureSeries(ctx context.Context, lat, lon float64, location, endDate, timeOfDay string) (Series, error) {
	end, err := time.Parse(weather.DateLayout, endDate)
	if err != nil {
		return Series{}, fmt.Errorf("invalid date %q: %w", endDate, err)
	}

	series := Series{
		Location:  location,
		Metric:    "temperature_celsius",
		TimeOfDay: timeOfDay,
		Points:    make([]Point, 0, c.years),
	}

	for offset := c.years - 1; offset >= 0; offset-- {
		sample := end.AddDate(-offset, 0, 0)
		date := sample.Format(weather.DateLayout)

		point := Point{Year: sample.Year(), Date: date}
		obs, err := c.fetcher.FetchHour(ctx, lat, lon, date, timeOfDay)
		if err != nil {
			logging.Warnf("trend sample for %s on %s failed: %v", location, date, err)
		} else {
			point.Value = obs.TemperatureCelsius
		}
		series.Points = append(series.Points, point)
	}

	series.Stats = Summarize(series.Points)
	return series, nil
}

// Summarize computes statistics over the non-null points of a series.
// Fewer than two samples yields zero spread and slope.
func Summarize(points []Point) Stats {
	var years, values []float64
	for _, p := range points {
		if p.Value == nil {
			continue
		}
		years = append(years, float64(p.Year))
		values = append(values, *p.Value)
	}

	stats := Stats{Samples: len(values)}
	if len(values) == 0 {
		return stats
	}

	stats.Mean = stat.Mean(values, nil)
	stats.Min = math.Inf(1)
	stats.Max = math.Inf(-1)
	for _, v := range values {
		stats.Min = math.Min(stats.Min, v)
		stats.Max = math.Max(stats.Max, v)
	}

	if len(values) >= 2 {
		stats.StdDev = stat.StdDev(values, nil)
		_, stats.Slope = stat.LinearRegression(years, values, nil, false)
	}
	return stats
}
