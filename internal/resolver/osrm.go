package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/twpayne/go-polyline"
	"shiftplanner.ebus.dev/internal/logging"
	"shiftplanner.ebus.dev/internal/models"
)

// OSRMClient asks an OSRM server for the driving path between two points.
type OSRMClient struct {
	baseURL    string
	profile    string
	httpClient *http.Client
}

func NewOSRMClient(baseURL string, timeout time.Duration) *OSRMClient {
	return &OSRMClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: "driving",
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

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	Routes  []struct {
		Geometry string  `json:"geometry"`
		Distance float64 `json:"distance"`
	} `json:"routes"`
}

// Route returns the full-detail polyline of the first route. A NoRoute
// answer yields an empty slice.
func (c *OSRMClient) Route(ctx context.Context, from, to models.Coordinate) ([]models.Coordinate, error) {
	params := url.Values{}
	params.Set("overview", "full")
	params.Set("geometries", "polyline")

	reqURL := fmt.Sprintf("%s/route/v1/%s/%s;%s?%s",
		c.baseURL, c.profile, lonLat(from), lonLat(to), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer logging.SafeCloseWithLogging(resp.Body,
		slog.Default().With(slog.String("component", "osrm_client")),
		"http_response_body")

	if err := checkStatus(resp); err != nil {
		// OSRM answers 400 with code NoRoute when no path exists.
		if resp.StatusCode == http.StatusBadRequest {
			var body osrmResponse
			if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Code == "NoRoute" {
				return nil, nil
			}
		}
		return nil, err
	}

	var body osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	switch body.Code {
	case "Ok":
	case "NoRoute":
		return nil, nil
	default:
		return nil, fmt.Errorf("routing error %s: %s", body.Code, body.Message)
	}
	if len(body.Routes) == 0 {
		return nil, nil
	}

	coords, _, err := polyline.DecodeCoords([]byte(body.Routes[0].Geometry))
	if err != nil {
		return nil, fmt.Errorf("decoding geometry: %w", err)
	}

	out := make([]models.Coordinate, len(coords))
	for i, c := range coords {
		out[i] = models.Coordinate{Lat: c[0], Lon: c[1]}
	}
	return out, nil
}

func lonLat(c models.Coordinate) string {
	return strconv.FormatFloat(c.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lat, 'f', -1, 64)
}
