package distance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/strollia/questhunt/internal/geo"
)

// OSRMRouter queries an OSRM-compatible routing server in foot profile.
type OSRMRouter struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewOSRMRouter(baseURL string, rps float64) *OSRMRouter {
	return &OSRMRouter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		DistanceM float64 `json:"distance"`
		DurationS float64 `json:"duration"`
	} `json:"routes"`
}

// Route implements Router. Any non-Ok code or empty route list is an error;
// the engine turns that into its geometric fallback.
func (r *OSRMRouter) Route(ctx context.Context, origin, dest geo.Coordinates) (Leg, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Leg{}, err
	}

	// OSRM wants lng,lat ordering.
	u := fmt.Sprintf("%s/route/v1/foot/%f,%f;%f,%f?overview=false",
		r.baseURL, origin.Lng, origin.Lat, dest.Lng, dest.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Leg{}, fmt.Errorf("creating request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Leg{}, fmt.Errorf("routing request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Leg{}, fmt.Errorf("reading routing response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Leg{}, fmt.Errorf("routing API returned status %d: %s", resp.StatusCode, body)
	}

	var or osrmResponse
	if err := json.Unmarshal(body, &or); err != nil {
		return Leg{}, fmt.Errorf("parsing routing response: %w", err)
	}
	if or.Code != "Ok" || len(or.Routes) == 0 {
		return Leg{}, fmt.Errorf("no route (code %s)", or.Code)
	}

	route := or.Routes[0]
	return Leg{
		DistanceKm:      route.DistanceM / 1000,
		DurationMinutes: int(math.Round(route.DurationS / 60)),
	}, nil
}
