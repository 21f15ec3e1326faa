// Package api exposes the metrics engine over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vectorquant/internal/domain"
	"vectorquant/internal/metrics"
)

// Banner returned by GET /.
const (
	BannerMessage = "VectorQuant Backend API"
	BannerStatus  = "running"
)

// Engine is the live state the handlers read and mutate.
type Engine interface {
	Tick() domain.Snapshot
	Snapshot() domain.Snapshot
	ApplyControls(c domain.Controls) (domain.Snapshot, error)
	Alerts() (domain.Snapshot, []domain.Alert)
}

// History serves warehouse backed reads.
type History interface {
	Prices(ctx context.Context, window time.Duration, limit int) ([]*domain.CryptoPrice, string)
	SymbolPrices(ctx context.Context, symbol string, window time.Duration) ([]*domain.CryptoPrice, string)
	Summaries(ctx context.Context, name string, window time.Duration) ([]*metrics.Summary, error)
	Alerts(ctx context.Context, limit int) ([]*domain.AlertRecord, error)
	Resolve(ctx context.Context, alertID string) (*domain.AlertRecord, error)
}

// Config tunes the HTTP surface.
type Config struct {
	// RatePerSecond and Burst bound the global request rate. Zero disables limiting.
	RatePerSecond float64
	Burst         int
	// AllowOrigins for CORS. Empty allows any origin.
	AllowOrigins []string
}

// Deps are the collaborators behind the routes. History and Stream are optional;
// their routes are only mounted when set.
type Deps struct {
	Engine  Engine
	History History
	Stream  http.Handler
	Logger  *zap.Logger
	Clock   func() time.Time
}

// Server is the HTTP API.
type Server struct {
	router  *gin.Engine
	engine  Engine
	history History
	stream  http.Handler
	logger  *zap.Logger
	clock   func() time.Time
}

// NewServer builds the router and registers every route.
func NewServer(deps Deps, cfg Config) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	s := &Server{
		engine:  deps.Engine,
		history: deps.History,
		stream:  deps.Stream,
		logger:  logger.Named("api"),
		clock:   clock,
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(s.logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(s.logger, true))
	router.Use(Metrics())
	router.Use(cors.New(corsConfig(cfg.AllowOrigins)))
	if cfg.RatePerSecond > 0 {
		router.Use(RateLimit(cfg.RatePerSecond, cfg.Burst))
	}

	s.router = router
	s.registerRoutes()
	return s
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

func (s *Server) registerRoutes() {
	r := s.router

	r.GET("/", s.root)
	r.GET("/health", s.health)

	r.GET("/metrics", s.metrics)
	r.POST("/update_controls", s.updateControls)
	r.GET("/alerts", s.alerts)

	r.GET("/performance", s.performance)
	r.GET("/system", s.system)
	r.GET("/crypto-prices", s.cryptoPrices)

	if s.history != nil {
		r.GET("/crypto-prices/history", s.priceHistory)
		r.GET("/metrics/summary", s.metricsSummary)
		r.GET("/alerts/history", s.alertHistory)
		r.POST("/alerts/:id/resolve", s.resolveAlert)
	}

	if s.stream != nil {
		r.GET("/ws/metrics", gin.WrapH(s.stream))
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
