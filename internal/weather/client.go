package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/gwakaf/weather-stats-app/internal/logging"
)

const (
	defaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	defaultArchiveURL  = "https://archive-api.open-meteo.com/v1/archive"

	defaultMaxRetries  = 3
	defaultBackoffBase = 1 * time.Second
	defaultRetryAfter  = 60 * time.Second

	hoursPerDay = 24
)

// ClientConfig bundles the HTTP client and resilience settings for the
// Open-Meteo client. Zero values fall back to production defaults.
type ClientConfig struct {
	HTTPClient  *http.Client
	ForecastURL string
	ArchiveURL  string
	MaxRetries  int
	BackoffBase time.Duration
}

// Client fetches current and historical observations from Open-Meteo.
// Both endpoints are free and keyless; the archive endpoint is the one the
// backfill pipeline leans on, so it gets the full retry treatment.
type Client struct {
	httpClient  *http.Client
	forecastURL string
	archiveURL  string
	maxRetries  int
	backoffBase time.Duration
	circuit     *gobreaker.CircuitBreaker
	now         func() time.Time
}

// NewClient creates a new Open-Meteo client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = defaultForecastURL
	}
	if cfg.ArchiveURL == "" {
		cfg.ArchiveURL = defaultArchiveURL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo-forecast",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		httpClient:  cfg.HTTPClient,
		forecastURL: cfg.ForecastURL,
		archiveURL:  cfg.ArchiveURL,
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.BackoffBase,
		circuit:     cb,
		now:         time.Now,
	}
}

type currentPayload struct {
	Current struct {
		Time             string   `json:"time"`
		Temperature2M    *float64 `json:"temperature_2m"`
		WindSpeed10M     *float64 `json:"wind_speed_10m"`
		Precipitation    *float64 `json:"precipitation"`
		CloudCover       *float64 `json:"cloud_cover"`
		RelativeHumidity *float64 `json:"relative_humidity_2m"`
	} `json:"current"`
}

type archivePayload struct {
	Hourly *struct {
		Time          []string   `json:"time"`
		Temperature2M []*float64 `json:"temperature_2m"`
		WindSpeed10M  []*float64 `json:"wind_speed_10m"`
		Precipitation []*float64 `json:"precipitation"`
		CloudCover    []*float64 `json:"cloud_cover"`
	} `json:"hourly"`
}

// FetchInstant retrieves the current conditions for a coordinate pair with a
// single best-effort call through the circuit breaker. There is no retry: a
// stale current reading is worthless by the time a backoff would finish.
func (c *Client) FetchInstant(ctx context.Context, lat, lon float64, locationName string) (CurrentObservation, error) {
	label := LabelFor(lat, lon, locationName)

	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	values.Set("current", "temperature_2m,wind_speed_10m,precipitation,cloud_cover,relative_humidity_2m")
	values.Set("timezone", "auto")

	result, err := c.circuit.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.forecastURL+"?"+values.Encode(), nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
		}
		var payload currentPayload
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, err
		}
		return payload, nil
	})
	if err != nil {
		logging.Errorf("error fetching current weather for %s: %v", label, err)
		return CurrentObservation{}, &FetchError{Kind: FailureTransient, Attempts: 1, Err: err}
	}

	payload := result.(currentPayload)
	now := c.now()
	ts := payload.Current.Time
	if ts == "" {
		ts = now.Format(time.RFC3339)
	}

	obs := CurrentObservation{
		Location:             label,
		Timestamp:            ts,
		Date:                 now.Format(DateLayout),
		Hour:                 now.Hour(),
		TemperatureCelsius:   payload.Current.Temperature2M,
		WindSpeedKmh:         payload.Current.WindSpeed10M,
		PrecipitationMm:      payload.Current.Precipitation,
		CloudCoveragePercent: payload.Current.CloudCover,
		HumidityPercent:      payload.Current.RelativeHumidity,
	}
	logging.Infof("retrieved current weather for %s", label)
	return obs, nil
}

// FetchHour retrieves the observation for a single hour of a historical day.
// timeOfDay is "HH:MM". If the provider response lacks the requested hour the
// returned observation has nil measurement fields, so callers can distinguish
// "hour missing" from "call failed".
func (c *Client) FetchHour(ctx context.Context, lat, lon float64, date, timeOfDay string) (HourlyObservation, error) {
	t, err := time.Parse("15:04", timeOfDay)
	if err != nil {
		return HourlyObservation{}, fmt.Errorf("invalid time of day %q: %w", timeOfDay, err)
	}
	targetHour := t.Hour()
	label := LabelFor(lat, lon, "")

	payload, status, err := c.doArchiveRequest(ctx, lat, lon, date)
	if err != nil || status != http.StatusOK {
		if err == nil {
			err = fmt.Errorf("%w: %d", errUnexpected, status)
		}
		logging.Errorf("error fetching historical weather for %s on %s at %s: %v", label, date, timeOfDay, err)
		return HourlyObservation{}, &FetchError{Kind: archiveFailureKind(status), Attempts: 1, Err: err}
	}

	obs := HourlyObservation{
		Location: label,
		Date:     date,
		Hour:     int32(targetHour),
	}
	for i, timeStr := range payload.Hourly.Time {
		parsed, perr := parseHourlyTime(timeStr)
		if perr != nil {
			continue
		}
		if parsed.Hour() == targetHour {
			obs.TemperatureCelsius = at(payload.Hourly.Temperature2M, i)
			obs.WindSpeedKmh = at(payload.Hourly.WindSpeed10M, i)
			obs.PrecipitationMm = at(payload.Hourly.Precipitation, i)
			obs.CloudCoveragePercent = at(payload.Hourly.CloudCover, i)
			break
		}
	}
	logging.Infof("retrieved historical weather for %s on %s at %s", label, date, timeOfDay)
	return obs, nil
}

// FetchFullDay retrieves all 24 hourly observations for one date with a
// single archive call, retrying on transient failures. On success the batch
// is always exactly 24 records: hours the provider skipped are synthesized
// with zero-valued measurements so downstream storage gets a complete day.
func (c *Client) FetchFullDay(ctx context.Context, lat, lon float64, date, locationName string) (DayBatch, error) {
	label := LabelFor(lat, lon, locationName)

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		payload, status, err := c.doArchiveRequest(ctx, lat, lon, date)

		switch {
		case err != nil && status == 0:
			// Transport failure: timeout or connection error.
			logging.Warnf("request error for %s on %s: %v (attempt %d/%d)", label, date, err, attempt+1, c.maxRetries)
			if attempt < c.maxRetries-1 {
				if serr := sleepCtx(ctx, c.backoffBase<<attempt); serr != nil {
					return nil, &FetchError{Kind: FailureTransient, Attempts: attempt + 1, Err: serr}
				}
				continue
			}
			return nil, &FetchError{Kind: FailureTransient, Attempts: attempt + 1, Err: err}

		case status == http.StatusTooManyRequests:
			retryAfter := retryAfterDelay(err)
			logging.Warnf("rate limit exceeded for %s on %s, retry after %s (attempt %d/%d)", label, date, retryAfter, attempt+1, c.maxRetries)
			if attempt < c.maxRetries-1 {
				if serr := sleepCtx(ctx, retryAfter); serr != nil {
					return nil, &FetchError{Kind: FailureRateLimited, Attempts: attempt + 1, Err: serr}
				}
				continue
			}
			return nil, &FetchError{Kind: FailureRateLimited, Attempts: attempt + 1, Err: errRateLimited}

		case status == http.StatusBadRequest || status == http.StatusNotFound:
			logging.Errorf("permanent request failure (%d) for %s on %s", status, label, date)
			return nil, &FetchError{Kind: FailureBadRequest, Attempts: attempt + 1, Err: fmt.Errorf("%w: %d", errUnexpected, status)}

		case status >= http.StatusInternalServerError:
			logging.Warnf("server error (%d) for %s on %s (attempt %d/%d)", status, label, date, attempt+1, c.maxRetries)
			if attempt < c.maxRetries-1 {
				if serr := sleepCtx(ctx, c.backoffBase<<attempt); serr != nil {
					return nil, &FetchError{Kind: FailureTransient, Attempts: attempt + 1, Err: serr}
				}
				continue
			}
			return nil, &FetchError{Kind: FailureTransient, Attempts: attempt + 1, Err: errServerError}

		case status != http.StatusOK:
			logging.Errorf("unexpected HTTP status %d for %s on %s", status, label, date)
			return nil, &FetchError{Kind: FailureMalformed, Attempts: attempt + 1, Err: fmt.Errorf("%w: %d", errUnexpected, status)}

		case err != nil:
			// 200 with an undecodable or structurally invalid body. This is a
			// request-shape problem, not transience, so do not retry.
			logging.Errorf("invalid API response for %s on %s: %v", label, date, err)
			return nil, &FetchError{Kind: FailureMalformed, Attempts: attempt + 1, Err: err}

		default:
			batch, berr := c.buildDayBatch(payload, label, date)
			if berr != nil {
				logging.Errorf("invalid API response for %s on %s: %v", label, date, berr)
				return nil, &FetchError{Kind: FailureMalformed, Attempts: attempt + 1, Err: berr}
			}
			logging.Infof("retrieved historical weather for %s on %s (%d hours, 1 API call)", label, date, len(batch))
			return batch, nil
		}
	}
	return nil, &FetchError{Kind: FailureTransient, Attempts: c.maxRetries, Err: errServerError}
}

// doArchiveRequest performs one archive call. It returns the decoded payload
// on 200, the HTTP status (0 for transport failures), and any error. For 429
// responses the error carries the parsed Retry-After duration.
func (c *Client) doArchiveRequest(ctx context.Context, lat, lon float64, date string) (archivePayload, int, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	values.Set("start_date", date)
	values.Set("end_date", date)
	values.Set("hourly", "temperature_2m,wind_speed_10m,precipitation,cloud_cover")
	values.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.archiveURL+"?"+values.Encode(), nil)
	if err != nil {
		return archivePayload{}, 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return archivePayload{}, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return archivePayload{}, resp.StatusCode, &retryAfterError{delay: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode != http.StatusOK {
		return archivePayload{}, resp.StatusCode, nil
	}

	var payload archivePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return archivePayload{}, resp.StatusCode, err
	}
	if payload.Hourly == nil || payload.Hourly.Time == nil {
		return archivePayload{}, resp.StatusCode, errMissingHourly
	}
	return payload, resp.StatusCode, nil
}

// buildDayBatch normalizes an archive payload into exactly 24 records.
func (c *Client) buildDayBatch(payload archivePayload, label, date string) (DayBatch, error) {
	hourly := payload.Hourly
	if len(hourly.Time) == 0 {
		return nil, errEmptyHourly
	}

	ingestedAt := c.now()
	var seen [hoursPerDay]*HourlyObservation

	for i, timeStr := range hourly.Time {
		parsed, err := parseHourlyTime(timeStr)
		if err != nil {
			logging.Warnf("error processing hour %d for %s on %s: %v", i, label, date, err)
			continue
		}
		hour := parsed.Hour()
		obs := HourlyObservation{
			Location:             label,
			Date:                 date,
			Hour:                 int32(hour),
			TemperatureCelsius:   orZero(at(hourly.Temperature2M, i)),
			WindSpeedKmh:         orZero(at(hourly.WindSpeed10M, i)),
			PrecipitationMm:      orZero(at(hourly.Precipitation, i)),
			CloudCoveragePercent: orZero(at(hourly.CloudCover, i)),
			IngestionTimestamp:   ingestedAt.Format(time.RFC3339),
		}
		seen[hour] = &obs
	}

	batch := make(DayBatch, 0, hoursPerDay)
	for hour := 0; hour < hoursPerDay; hour++ {
		if seen[hour] != nil {
			batch = append(batch, *seen[hour])
		} else {
			batch = append(batch, NewZeroObservation(label, date, hour, ingestedAt))
		}
	}
	return batch, nil
}

// CurrentTemperature returns just the current temperature for a coordinate pair.
func (c *Client) CurrentTemperature(ctx context.Context, lat, lon float64) (*float64, error) {
	obs, err := c.FetchInstant(ctx, lat, lon, "")
	if err != nil {
		return nil, err
	}
	return obs.TemperatureCelsius, nil
}

// CurrentWindSpeed returns just the current wind speed for a coordinate pair.
func (c *Client) CurrentWindSpeed(ctx context.Context, lat, lon float64) (*float64, error) {
	obs, err := c.FetchInstant(ctx, lat, lon, "")
	if err != nil {
		return nil, err
	}
	return obs.WindSpeedKmh, nil
}

// CurrentPrecipitation returns just the current precipitation for a coordinate pair.
func (c *Client) CurrentPrecipitation(ctx context.Context, lat, lon float64) (*float64, error) {
	obs, err := c.FetchInstant(ctx, lat, lon, "")
	if err != nil {
		return nil, err
	}
	return obs.PrecipitationMm, nil
}

// CurrentCloudCoverage returns just the current cloud coverage for a coordinate pair.
func (c *Client) CurrentCloudCoverage(ctx context.Context, lat, lon float64) (*float64, error) {
	obs, err := c.FetchInstant(ctx, lat, lon, "")
	if err != nil {
		return nil, err
	}
	return obs.CloudCoveragePercent, nil
}

// archiveFailureKind classifies a single-shot archive failure by its HTTP
// status: 0 means the transport failed, 200 means the body was unusable.
func archiveFailureKind(status int) FailureKind {
	switch {
	case status == http.StatusTooManyRequests:
		return FailureRateLimited
	case status == http.StatusBadRequest || status == http.StatusNotFound:
		return FailureBadRequest
	case status == http.StatusOK:
		return FailureMalformed
	default:
		return FailureTransient
	}
}

type retryAfterError struct {
	delay time.Duration
}

func (e *retryAfterError) Error() string {
	return fmt.Sprintf("%v (retry after %s)", errRateLimited, e.delay)
}

func (e *retryAfterError) Unwrap() error { return errRateLimited }

func retryAfterDelay(err error) time.Duration {
	var ra *retryAfterError
	if errors.As(err, &ra) {
		return ra.delay
	}
	return defaultRetryAfter
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

// parseHourlyTime accepts the timestamp shapes Open-Meteo emits for hourly
// series: local "2006-01-02T15:04" or the same with a trailing Z.
func parseHourlyTime(s string) (time.Time, error) {
	s = strings.TrimSuffix(s, "Z")
	if t, err := time.Parse("2006-01-02T15:04", s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", s)
}

func at(values []*float64, i int) *float64 {
	if i < 0 || i >= len(values) {
		return nil
	}
	return values[i]
}

func orZero(v *float64) *float64 {
	if v != nil {
		return v
	}
	zero := 0.0
	return &zero
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
