package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

// Config is process configuration from the environment. Heuristic tuning
// lives in the TOML tunables file instead (see Tunables).
type Config struct {
	HTTPAddr     string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath       string     `env:"DB_PATH" envDefault:"data/questhunt.db"`
	LogLevel     slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	SPADir       string     `env:"SPA_DIR" envDefault:"../web/dist"`
	TunablesPath string     `env:"TUNABLES_PATH" envDefault:"tunables.toml"`

	PlacesBaseURL  string  `env:"PLACES_BASE_URL" envDefault:"https://maps.googleapis.com/maps/api/place"`
	PlacesAPIKey   string  `env:"PLACES_API_KEY"`
	RoutingBaseURL string  `env:"ROUTING_BASE_URL" envDefault:"https://router.project-osrm.org"`
	ProviderRPS    float64 `env:"PROVIDER_RPS" envDefault:"5"`

	AdjudicatorURL   string `env:"ADJUDICATOR_URL" envDefault:"https://api.anthropic.com/v1/messages"`
	AdjudicatorKey   string `env:"ADJUDICATOR_API_KEY"`
	AdjudicatorModel string `env:"ADJUDICATOR_MODEL" envDefault:"claude-sonnet-4-20250514"`

	// OperatorKeyHash is the bcrypt hash of the key required by operator
	// endpoints (ledger reset). Empty disables them.
	OperatorKeyHash string `env:"OPERATOR_KEY_HASH"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
