// Package places wraps the external points-of-interest lookup. The rest of
// the system only sees the normalized PlaceCandidate shape.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/strollia/questhunt/internal/geo"
	"github.com/strollia/questhunt/internal/questhunt"
)

// Client calls a nearby-search API and normalizes its results.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a places client. rps bounds outbound request rate.
func NewClient(baseURL, apiKey string, rps float64) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

type searchResponse struct {
	Status  string        `json:"status"`
	Results []placeResult `json:"results"`
}

type placeResult struct {
	PlaceID  string   `json:"place_id"`
	Name     string   `json:"name"`
	Vicinity string   `json:"vicinity"`
	Types    []string `json:"types"`
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

// Search returns candidate points of interest around center. categories is
// optional; when set it is passed through as a type filter.
func (c *Client) Search(ctx context.Context, center geo.Coordinates, radiusM int, categories []string) ([]questhunt.PlaceCandidate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("location", fmt.Sprintf("%f,%f", center.Lat, center.Lng))
	q.Set("radius", strconv.Itoa(radiusM))
	if len(categories) > 0 {
		q.Set("type", strings.Join(categories, "|"))
	}
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/nearbysearch/json?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading places response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places API returned status %d: %s", resp.StatusCode, body)
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("parsing places response: %w", err)
	}
	if sr.Status != "" && sr.Status != "OK" && sr.Status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("places API status %s", sr.Status)
	}

	candidates := make([]questhunt.PlaceCandidate, 0, len(sr.Results))
	for _, r := range sr.Results {
		if r.PlaceID == "" {
			continue
		}
		candidates = append(candidates, questhunt.PlaceCandidate{
			PlaceID: r.PlaceID,
			Name:    r.Name,
			Address: r.Vicinity,
			Coordinates: geo.Coordinates{
				Lat: r.Geometry.Location.Lat,
				Lng: r.Geometry.Location.Lng,
			},
			Types: r.Types,
		})
	}
	return candidates, nil
}
