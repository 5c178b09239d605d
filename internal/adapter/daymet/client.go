// Package daymet fetches daily climate observations from the ORNL Daymet
// single-pixel API for the study area's center point.
package daymet

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Adrian2901/bloomwatch/internal/domain"
)

// Client implements the pipeline precipitation and temperature sources.
type Client struct {
	baseURL    string
	lat, lon   float64
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Daymet single-pixel client for the given point.
func NewClient(baseURL string, lat, lon float64, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		lat:     lat,
		lon:     lon,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// FetchPrecip returns daily precipitation (mm) for the date window.
func (c *Client) FetchPrecip(ctx context.Context, start, end time.Time) (domain.Series, error) {
	return c.fetchRange(ctx, start, end, "prcp", func(row map[string]float64, date time.Time) (domain.Observation, bool) {
		v, ok := row["prcp"]
		if !ok {
			return domain.Observation{}, false
		}
		return domain.Observation{Time: date, Value: v, Metric: domain.MetricPrecipMM}, true
	})
}

// FetchTemp returns daily mean temperature (degrees C) for the date window.
// Daymet publishes daily minimum and maximum; the mean is their midpoint.
func (c *Client) FetchTemp(ctx context.Context, start, end time.Time) (domain.Series, error) {
	return c.fetchRange(ctx, start, end, "tmax,tmin", func(row map[string]float64, date time.Time) (domain.Observation, bool) {
		tmax, okMax := row["tmax"]
		tmin, okMin := row["tmin"]
		if !okMax || !okMin {
			return domain.Observation{}, false
		}
		return domain.Observation{Time: date, Value: (tmax + tmin) / 2, Metric: domain.MetricTempC}, true
	})
}

// fetchRange requests the window one calendar year at a time, matching the
// provider's own yearly file organization and keeping any single response
// small.
func (c *Client) fetchRange(ctx context.Context, start, end time.Time, vars string,
	mapRow func(map[string]float64, time.Time) (domain.Observation, bool)) (domain.Series, error) {
	var series domain.Series
	for year := start.Year(); year <= end.Year(); year++ {
		yearStart := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
		if yearStart.Before(start) {
			yearStart = start
		}
		yearEnd := time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC)
		if yearEnd.After(end) {
			yearEnd = end
		}

		obs, err := c.fetchYear(ctx, yearStart, yearEnd, vars, mapRow)
		if err != nil {
			return nil, fmt.Errorf("daymet %d: %w", year, err)
		}
		c.logger.Debug("daymet year fetched", "year", year, "vars", vars, "days", len(obs))
		series = append(series, obs...)
	}
	return series, nil
}

func (c *Client) fetchYear(ctx context.Context, start, end time.Time, vars string,
	mapRow func(map[string]float64, time.Time) (domain.Observation, bool)) (domain.Series, error) {
	params := url.Values{
		"lat":   {strconv.FormatFloat(c.lat, 'f', 4, 64)},
		"lon":   {strconv.FormatFloat(c.lon, 'f', 4, 64)},
		"vars":  {vars},
		"start": {start.Format("2006-01-02")},
		"end":   {end.Format("2006-01-02")},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return parseCSV(resp.Body, mapRow)
}

// parseCSV reads a Daymet single-pixel CSV response: free-form metadata
// lines, then a header row starting with "year,yday", then daily rows.
// Column names carry units ("prcp (mm/day)"), so matching is by prefix.
// Daymet calendars are 365 days; leap years simply have no December 31, and
// no day is synthesized for it.
func parseCSV(r io.Reader, mapRow func(map[string]float64, time.Time) (domain.Observation, bool)) (domain.Series, error) {
	scanner := bufio.NewScanner(r)

	var columns []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "year,yday") {
			for _, col := range strings.Split(line, ",") {
				name, _, _ := strings.Cut(strings.TrimSpace(col), " ")
				columns = append(columns, name)
			}
			break
		}
	}
	if columns == nil {
		return nil, fmt.Errorf("no header row in response")
	}

	var series domain.Series
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != len(columns) {
			continue
		}

		row := make(map[string]float64, len(columns))
		for i, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				continue
			}
			row[columns[i]] = v
		}

		year, okYear := row["year"]
		yday, okDay := row["yday"]
		if !okYear || !okDay {
			continue
		}
		date := time.Date(int(year), 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(yday)-1)

		if obs, ok := mapRow(row, date); ok {
			series = append(series, obs)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return series, nil
}
