// Package sentinel fetches monthly mean NDVI statistics for the study area
// from the Sentinel Hub Statistical API over Sentinel-2 L2A imagery.
package sentinel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Adrian2901/bloomwatch/internal/config"
	"github.com/Adrian2901/bloomwatch/internal/domain"
)

// ndviEvalscript computes per-pixel NDVI and masks out no-data (SCL 0),
// cloud shadow (3), and cloud (8, 9) pixels so they are excluded from the
// monthly mean. The 0.0001 denominator offset avoids division by zero over
// water and bare rock.
const ndviEvalscript = `//VERSION=3
function setup() {
  return {
    input: [{ bands: ["B04", "B08", "SCL", "dataMask"] }],
    output: [
      { id: "ndvi", bands: 1, sampleType: "FLOAT32" },
      { id: "dataMask", bands: 1 }
    ]
  };
}

function evaluatePixel(sample) {
  var valid = sample.dataMask;
  if (sample.SCL == 0 || sample.SCL == 3 || sample.SCL == 8 || sample.SCL == 9) {
    valid = 0;
  }
  var ndvi = (sample.B08 - sample.B04) / (sample.B08 + sample.B04 + 0.0001);
  return { ndvi: [ndvi], dataMask: [valid] };
}
`

// Target pixel size for the statistics grid. The API expects resx/resy in
// the units of the bounds CRS, which for EPSG:4326 is degrees, so the meter
// target is converted at the bbox latitude before each request.
const (
	targetResolutionMeters = 30
	metersPerDegreeLat     = 111320.0
)

// Client implements the pipeline NDVI source.
type Client struct {
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
	aoi          config.BBox
	httpClient   *http.Client
	logger       *slog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a Sentinel Hub statistics client for the given bounding box.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL:      cfg.SentinelURL,
		tokenURL:     cfg.SentinelTokenURL,
		clientID:     cfg.SentinelClientID,
		clientSecret: cfg.SentinelClientSecret,
		aoi:          cfg.AOI,
		httpClient: &http.Client{
			Timeout: cfg.SentinelTimeout,
		},
		logger: logger,
	}
}

// FetchNDVI returns one observation per calendar month in [start, end], each
// the mean NDVI over cloud-free pixels of the study area. Months with no
// valid pixels carry NaN; the scoring engine treats those as missing.
func (c *Client) FetchNDVI(ctx context.Context, start, end time.Time) (domain.Series, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("sentinel auth: %w", err)
	}

	reqBody := statsRequest{}
	reqBody.Input.Bounds.BBox = [4]float64{c.aoi.West, c.aoi.South, c.aoi.East, c.aoi.North}
	reqBody.Input.Bounds.Properties.CRS = "http://www.opengis.net/def/crs/EPSG/0/4326"
	reqBody.Input.Data = []statsData{{
		Type:       "sentinel-2-l2a",
		DataFilter: dataFilter{MosaickingOrder: "leastCC"},
	}}
	reqBody.Aggregation.TimeRange.From = start.Format(time.RFC3339)
	reqBody.Aggregation.TimeRange.To = end.Format(time.RFC3339)
	reqBody.Aggregation.AggregationInterval.Of = "P1M"
	reqBody.Aggregation.Evalscript = ndviEvalscript
	midLat := (c.aoi.South + c.aoi.North) / 2
	reqBody.Aggregation.ResX = targetResolutionMeters / (metersPerDegreeLat * math.Cos(midLat*math.Pi/180))
	reqBody.Aggregation.ResY = targetResolutionMeters / metersPerDegreeLat

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/statistics", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("statistics request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("statistics API: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var stats statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	series := make(domain.Series, 0, len(stats.Data))
	for _, item := range stats.Data {
		from, err := time.Parse(time.RFC3339, item.Interval.From)
		if err != nil {
			c.logger.Warn("skipping interval with bad timestamp", "from", item.Interval.From)
			continue
		}

		value := math.NaN()
		if band, ok := item.Outputs.NDVI.Bands["B0"]; ok && band.Stats.SampleCount > band.Stats.NoDataCount {
			value = band.Stats.Mean
		}
		series = append(series, domain.Observation{
			Time:   from,
			Value:  value,
			Metric: domain.MetricNDVI,
		})
	}

	c.logger.Debug("sentinel ndvi fetched", "months", len(series))
	return series, nil
}

// accessToken returns a cached OAuth token, refreshing via the
// client-credentials grant when it is within a minute of expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.tokenExpiry) > time.Minute {
		return c.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("token endpoint: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access_token")
	}

	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.token, nil
}

// Sentinel Hub API request/response types.

type statsRequest struct {
	Input struct {
		Bounds struct {
			BBox       [4]float64 `json:"bbox"`
			Properties struct {
				CRS string `json:"crs"`
			} `json:"properties"`
		} `json:"bounds"`
		Data []statsData `json:"data"`
	} `json:"input"`
	Aggregation struct {
		TimeRange struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"timeRange"`
		AggregationInterval struct {
			Of string `json:"of"`
		} `json:"aggregationInterval"`
		Evalscript string  `json:"evalscript"`
		ResX       float64 `json:"resx"`
		ResY       float64 `json:"resy"`
	} `json:"aggregation"`
}

type statsData struct {
	Type       string     `json:"type"`
	DataFilter dataFilter `json:"dataFilter"`
}

type dataFilter struct {
	MosaickingOrder string `json:"mosaickingOrder"`
}

type statsResponse struct {
	Data []struct {
		Interval struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"interval"`
		Outputs struct {
			NDVI struct {
				Bands map[string]struct {
					Stats struct {
						Mean        float64 `json:"mean"`
						SampleCount int     `json:"sampleCount"`
						NoDataCount int     `json:"noDataCount"`
					} `json:"stats"`
				} `json:"bands"`
			} `json:"ndvi"`
		} `json:"outputs"`
	} `json:"data"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}
