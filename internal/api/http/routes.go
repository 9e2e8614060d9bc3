package httpapi

import (
	"context"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/gwakaf/weather-stats-app/internal/config"
	"github.com/gwakaf/weather-stats-app/internal/trends"
	"github.com/gwakaf/weather-stats-app/internal/weather"
)

var validate = validator.New()

// InstantFetcher retrieves the current conditions for a coordinate.
type InstantFetcher interface {
	FetchInstant(ctx context.Context, lat, lon float64, locationName string) (weather.CurrentObservation, error)
}

// HourFetcher retrieves one archived hour for a coordinate.
type HourFetcher interface {
	FetchHour(ctx context.Context, lat, lon float64, date, timeOfDay string) (weather.HourlyObservation, error)
}

// StoredReader reads back a previously persisted day batch.
type StoredReader interface {
	ReadDay(ctx context.Context, location, date string) ([]weather.HourlyObservation, error)
}

// TrendCollector samples a metric across past years.
type TrendCollector interface {
	TemperatureSeries(ctx context.Context, lat, lon float64, location, endDate, timeOfDay string) (trends.Series, error)
}

// Deps bundles the collaborators the HTTP handlers need.
type Deps struct {
	Instant   InstantFetcher
	Hours     HourFetcher
	Stored    StoredReader
	Trends    TrendCollector
	Locations *config.LocationSet
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	v1 := app.Group("/api/v1")

	v1.Get("/locations", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"locations": deps.Locations.Names()})
	})

	v1.Post("/weather/current", func(c *fiber.Ctx) error {
		var req currentRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}

		loc, err := resolveLocation(deps.Locations, req.Location)
		if err != nil {
			return err
		}

		obs, err := deps.Instant.FetchInstant(c.Context(), loc.Latitude, loc.Longitude, loc.Name)
		if err != nil {
			return fetchStatus(err, "failed to fetch current weather")
		}
		return c.JSON(obs)
	})

	v1.Post("/weather/historic", func(c *fiber.Ctx) error {
		var req historicRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}

		loc, err := resolveLocation(deps.Locations, req.Location)
		if err != nil {
			return err
		}

		obs, err := deps.Hours.FetchHour(c.Context(), loc.Latitude, loc.Longitude, req.Date, req.Time)
		if err != nil {
			return fetchStatus(err, "failed to fetch historic weather")
		}

		temperature := obs.TemperatureCelsius
		unit := req.unit()
		if unit == "fahrenheit" && temperature != nil {
			f := celsiusToFahrenheit(*temperature)
			temperature = &f
		}

		return c.JSON(fiber.Map{
			"location":               loc.Name,
			"date":                   req.Date,
			"time":                   req.Time,
			"unit":                   unit,
			"temperature":            temperature,
			"wind_speed_kmh":         obs.WindSpeedKmh,
			"precipitation_mm":       obs.PrecipitationMm,
			"cloud_coverage_percent": obs.CloudCoveragePercent,
		})
	})

	v1.Post("/weather/trends", func(c *fiber.Ctx) error {
		var req trendsRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}

		loc, err := resolveLocation(deps.Locations, req.Location)
		if err != nil {
			return err
		}

		series, err := deps.Trends.TemperatureSeries(c.Context(), loc.Latitude, loc.Longitude, loc.Name, req.Date, req.Time)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(series)
	})

	v1.Get("/weather/stored", func(c *fiber.Ctx) error {
		location := c.Query("location")
		date := c.Query("date")
		if location == "" || date == "" {
			return fiber.NewError(fiber.StatusBadRequest, "location and date query parameters are required")
		}
		if _, err := resolveLocation(deps.Locations, location); err != nil {
			return err
		}

		records, err := deps.Stored.ReadDay(c.Context(), location, date)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read stored weather data")
		}
		if len(records) == 0 {
			return fiber.NewError(fiber.StatusNotFound, "no stored weather data for requested day")
		}

		if hourStr := c.Query("hour"); hourStr != "" {
			hour, err := strconv.Atoi(hourStr)
			if err != nil || hour < 0 || hour > 23 {
				return fiber.NewError(fiber.StatusBadRequest, "hour must be an integer between 0 and 23")
			}
			for i := range records {
				if int(records[i].Hour) == hour {
					return c.JSON(records[i])
				}
			}
			return fiber.NewError(fiber.StatusNotFound, "requested hour not present in stored day")
		}

		return c.JSON(fiber.Map{
			"location": location,
			"date":     date,
			"records":  records,
		})
	})
}

// currentRequest holds the body for the current weather endpoint.
type currentRequest struct {
	Location string `json:"location" validate:"required"`
}

// historicRequest holds the body for the historic weather endpoint.
type historicRequest struct {
	Location string `json:"location" validate:"required"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	Time     string `json:"time" validate:"required,datetime=15:04"`
	Unit     string `json:"unit" validate:"omitempty,oneof=celsius fahrenheit"`
}

func (h historicRequest) unit() string {
	if h.Unit == "" {
		return "celsius"
	}
	return h.Unit
}

// trendsRequest holds the body for the decadal trends endpoint.
type trendsRequest struct {
	Location string `json:"location" validate:"required"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	Time     string `json:"time" validate:"required,datetime=15:04"`
}

func bindBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func resolveLocation(locations *config.LocationSet, name string) (config.LocationCoordinate, error) {
	loc, ok := locations.Coordinates(name)
	if !ok {
		return config.LocationCoordinate{}, fiber.NewError(fiber.StatusNotFound, "unknown location: "+name)
	}
	return loc, nil
}

// fetchStatus maps an upstream fetch failure onto an HTTP status.
func fetchStatus(err error, fallback string) error {
	if fe, ok := weather.AsFetchError(err); ok {
		switch fe.Kind {
		case weather.FailureBadRequest:
			return fiber.NewError(fiber.StatusBadRequest, "upstream rejected the request")
		case weather.FailureRateLimited:
			return fiber.NewError(fiber.StatusServiceUnavailable, "upstream rate limit reached")
		}
	}
	return fiber.NewError(fiber.StatusBadGateway, fallback)
}

func celsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}
