package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/climareal/clima-service/internal/observability"
)

// WeatherClient fetches current conditions from the weather provider.
type WeatherClient interface {
	FetchByCity(ctx context.Context, city, country, lang, units string) (*CurrentPayload, error)
	FetchByCoords(ctx context.Context, lat, lon float64, lang, units string) (*CurrentPayload, error)
}

var (
	ErrInvalidAPIKey = errors.New("invalid API key")
	ErrProvider      = errors.New("provider failure")
)

// CurrentPayload is the Weatherbit /v2.0/current response envelope.
type CurrentPayload struct {
	Count int          `json:"count"`
	Data  []CurrentObs `json:"data"`
}

// CurrentObs is one element of the response data array. Pointer fields keep
// missing provider values distinguishable from zero.
type CurrentObs struct {
	CityName    *string  `json:"city_name"`
	CountryCode *string  `json:"country_code"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	// Ts is epoch seconds. The provider documents it loosely, but it is
	// always UTC (ob_time is UTC as well, despite the docs).
	Ts       *int64       `json:"ts"`
	Timezone *string      `json:"timezone"`
	Temp     *float64     `json:"temp"`
	AppTemp  *float64     `json:"app_temp"`
	RH       *int64       `json:"rh"`
	Pres     *float64     `json:"pres"`
	WindSpd  *float64     `json:"wind_spd"`
	WindDir  *int64       `json:"wind_dir"`
	Clouds   *int64       `json:"clouds"`
	Vis      *float64     `json:"vis"`
	Weather  *WeatherInfo `json:"weather"`
	Sunrise  *string      `json:"sunrise"`
	Sunset   *string      `json:"sunset"`
	ObTime   *string      `json:"ob_time"`
}

// WeatherInfo is the nested weather object carrying the text description.
type WeatherInfo struct {
	Icon        string `json:"icon"`
	Code        int    `json:"code"`
	Description string `json:"description"`
}

// WeatherbitClient calls the Weatherbit current-conditions endpoint. One
// outbound call per invocation, no retries; retry policy belongs to callers.
type WeatherbitClient struct {
	apiKey  string
	apiURL  string
	timeout time.Duration
	client  *http.Client
}

func NewWeatherbitClient(apiKey, apiURL string, timeout time.Duration) (*WeatherbitClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}

	return &WeatherbitClient{
		apiKey:  apiKey,
		apiURL:  apiURL,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// FetchByCity fetches current conditions by city display name. Country is an
// optional ISO-3166-1 alpha-2 code; lang and units are provider enumerations
// passed through unvalidated.
func (c *WeatherbitClient) FetchByCity(ctx context.Context, city, country, lang, units string) (*CurrentPayload, error) {
	if city == "" {
		return nil, fmt.Errorf("%w: city is required", ErrProvider)
	}

	params := url.Values{}
	params.Set("city", city)
	if country != "" {
		params.Set("country", country)
	}
	return c.call(ctx, params, lang, units)
}

// FetchByCoords fetches current conditions by latitude and longitude.
func (c *WeatherbitClient) FetchByCoords(ctx context.Context, lat, lon float64, lang, units string) (*CurrentPayload, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	return c.call(ctx, params, lang, units)
}

func (c *WeatherbitClient) call(ctx context.Context, params url.Values, lang, units string) (*CurrentPayload, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, params, lang, units)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: request timeout: %v", ErrProvider, err)
		}
		return nil, fmt.Errorf("%w: http request failed: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(duration)

	if err := c.handleErrorResponse(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %v", ErrProvider, err)
	}

	var payload CurrentPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", ErrProvider, err)
	}

	return &payload, nil
}

func (c *WeatherbitClient) buildRequest(ctx context.Context, params url.Values, lang, units string) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params.Set("key", c.apiKey)
	if lang != "" {
		params.Set("lang", lang)
	}
	if units != "" {
		params.Set("units", units)
	}
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *WeatherbitClient) handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: invalid API key", ErrInvalidAPIKey)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrProvider, resp.StatusCode)
	}

	return nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
