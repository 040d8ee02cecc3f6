package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/scriptwarden/scriptwarden/internal/api/middleware"
	"github.com/scriptwarden/scriptwarden/internal/config"
	"github.com/scriptwarden/scriptwarden/internal/http"
	"github.com/scriptwarden/scriptwarden/internal/logging"
	"github.com/scriptwarden/scriptwarden/internal/monitoring"
	"github.com/scriptwarden/scriptwarden/internal/page"
	"github.com/scriptwarden/scriptwarden/internal/scan"
	"github.com/scriptwarden/scriptwarden/internal/session"
	"github.com/scriptwarden/scriptwarden/internal/ws"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	cfg      *config.Config
	log      *logging.Logger
	metrics  *monitoring.Metrics
	sessions *session.Manager
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, log *logging.Logger) (*Server, error) {
	metrics := monitoring.NewMetrics()

	var fetcher page.Fetcher
	if cfg.Fetch.Enabled {
		fetcher = scan.NewFetcher(cfg.Fetch.RequestsPerSecond)
	}

	sessions := session.NewManager(cfg, fetcher, func() session.PromptBroadcaster {
		return ws.NewHub(log)
	}, log, metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	router.Use(monitoring.Middleware(metrics))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := http.NewHandlers(sessions, log)
	wsHandler := ws.NewHandler(sessions, log, metrics)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Session lifecycle
	router.POST("/sessions", handlers.CreateSession)
	router.GET("/sessions", handlers.ListSessions)
	router.GET("/sessions/:id", handlers.GetSession)
	router.DELETE("/sessions/:id", handlers.DeleteSession)

	// Analysis
	router.GET("/sessions/:id/scripts", handlers.GetScripts)
	router.GET("/sessions/:id/flags", handlers.GetFlags)
	router.GET("/sessions/:id/dependencies", handlers.GetDependencies)
	router.GET("/sessions/:id/dependencies/tree", handlers.GetDependencyTree)
	router.GET("/sessions/:id/console", handlers.GetConsole)
	router.GET("/sessions/:id/timings", handlers.GetTimings)

	// Control
	router.POST("/sessions/:id/permission-response", handlers.PermissionResponse)
	router.PUT("/sessions/:id/settings/permission-prompt", handlers.SetPermissionPrompt)
	router.PUT("/sessions/:id/delays", handlers.SetDelays)
	router.GET("/sessions/:id/delays", handlers.GetDelays)
	router.POST("/sessions/:id/events/click", handlers.Click)
	router.POST("/sessions/:id/events/scroll", handlers.Scroll)

	// WebSocket
	router.GET("/sessions/:id/stream", wsHandler.HandleConnection)

	return &Server{
		router:   router,
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		sessions: sessions,
	}, nil
}

// Run starts the server
func (s *Server) Run() error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.log.Info("starting server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close tears down every live session
func (s *Server) Close() error {
	for _, sess := range s.sessions.List() {
		s.sessions.Delete(sess.ID)
	}
	return nil
}
