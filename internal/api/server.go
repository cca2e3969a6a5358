// Package api exposes the bot's state and controls over HTTP: JWT-protected
// JSON endpoints plus a websocket stream of price ticks.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"accum-core/internal/coordinator"
	"accum-core/internal/domain"
	"accum-core/internal/events"
	"accum-core/internal/ledger"
	"accum-core/internal/monitor"
	"accum-core/pkg/exchange"
	"accum-core/pkg/store"
)

// Server wires HTTP endpoints around the running pipeline.
type Server struct {
	Router    *gin.Engine
	Bus       *events.Bus
	Store     *store.Store
	Ledger    *ledger.Ledger
	Runner    coordinator.Runner
	Orders    exchange.OrderAPI
	Symbol    domain.Symbol
	Metrics   *monitor.SystemMetrics
	JWTSecret string
	Meta      SystemMeta
}

// SystemMeta describes runtime status exposed to clients.
type SystemMeta struct {
	DryRun  bool
	Venue   string
	Version string
}

func NewServer(bus *events.Bus, st *store.Store, led *ledger.Ledger, runner coordinator.Runner,
	orders exchange.OrderAPI, symbol domain.Symbol, metrics *monitor.SystemMetrics,
	meta SystemMeta, jwtSecret string) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Bus:       bus,
		Store:     st,
		Ledger:    led,
		Runner:    runner,
		Orders:    orders,
		Symbol:    symbol,
		Metrics:   metrics,
		JWTSecret: jwtSecret,
		Meta:      meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		// Auth endpoints (no auth required)
		auth := api.Group("/auth")
		{
			auth.POST("/register", s.registerUser)
			auth.POST("/login", s.loginUser)
		}

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.GET("/status", s.getStatus)
			protected.GET("/metrics", s.getMetrics)
			protected.GET("/position", s.getPosition)
			protected.GET("/balance", s.getBalances)
			protected.GET("/price/history", s.getPriceHistory)
			protected.GET("/orders/open", s.getOpenOrders)
			protected.POST("/cycle", s.triggerCycle)
			protected.GET("/cycles", s.getRecentCycles)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
