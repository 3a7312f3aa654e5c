package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"shiftplanner.ebus.dev/internal/logging"
	"shiftplanner.ebus.dev/internal/models"
)

// OpenElevationClient looks up altitudes with the Open-Elevation lookup API.
type OpenElevationClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewOpenElevationClient(baseURL string, timeout time.Duration) *OpenElevationClient {
	return &OpenElevationClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type elevationLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type elevationRequest struct {
	Locations []elevationLocation `json:"locations"`
}

type elevationResponse struct {
	Results []struct {
		Latitude  float64  `json:"latitude"`
		Longitude float64  `json:"longitude"`
		Elevation *float64 `json:"elevation"`
	} `json:"results"`
}

// Elevations returns one altitude in meters per input point, in input order.
func (c *OpenElevationClient) Elevations(ctx context.Context, points []models.Coordinate) ([]float64, error) {
	body := elevationRequest{Locations: make([]elevationLocation, len(points))}
	for i, p := range points {
		body.Locations[i] = elevationLocation{Latitude: p.Lat, Longitude: p.Lon}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/lookup", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer logging.SafeCloseWithLogging(resp.Body,
		slog.Default().With(slog.String("component", "elevation_client")),
		"http_response_body")

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var out elevationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(out.Results) != len(points) {
		return nil, fmt.Errorf("elevation batch size mismatch: sent %d points, got %d", len(points), len(out.Results))
	}

	alts := make([]float64, len(out.Results))
	for i, r := range out.Results {
		if r.Elevation == nil {
			return nil, fmt.Errorf("missing elevation for point %d", i)
		}
		alts[i] = *r.Elevation
	}
	return alts, nil
}
