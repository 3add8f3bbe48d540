package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/strollia/questhunt/internal/adjudicator"
	"github.com/strollia/questhunt/internal/appeal"
	"github.com/strollia/questhunt/internal/geo"
	"github.com/strollia/questhunt/internal/gpsgate"
	"github.com/strollia/questhunt/internal/ledger"
	"github.com/strollia/questhunt/internal/questhunt"
)

// CampaignBuilder assembles a new campaign for a start point and range tier.
type CampaignBuilder interface {
	Generate(ctx context.Context, start geo.Coordinates, tier questhunt.RangeTier, questCount int, rng *rand.Rand) (questhunt.Campaign, error)
}

// Verifier adjudicates submissions and appeals.
type Verifier interface {
	Verify(ctx context.Context, req adjudicator.VerifyRequest) (questhunt.VerificationOutcome, error)
	Reconsider(ctx context.Context, appealCtx appeal.Context) (questhunt.VerificationOutcome, error)
}

// Deps wires the handlers to the rest of the service.
type Deps struct {
	Logger   *slog.Logger
	DB       *sql.DB
	Store    Store
	Builder  CampaignBuilder
	Verifier Verifier
	Ledger   *ledger.Ledger

	Curve               gpsgate.Curve
	DefaultMaxDistanceM float64

	// OperatorKeyHash is a bcrypt hash; empty disables operator routes.
	OperatorKeyHash string
	SPADir          string
}

type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

func New(addr string, d Deps) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(newStructuredLogger(d.Logger))
	r.Use(middleware.Recoverer)

	addRoutes(r, d)

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: d.Logger,
	}
}

func (s *Server) Run(_ context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}

	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func newStructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
