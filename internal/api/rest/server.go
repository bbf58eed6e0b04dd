package rest

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/KevinKickass/FleetView/internal/api/websocket"
	"github.com/KevinKickass/FleetView/internal/auth"
	"github.com/KevinKickass/FleetView/internal/config"
	"github.com/KevinKickass/FleetView/internal/interfaces"
	"github.com/KevinKickass/FleetView/internal/session"
	"github.com/KevinKickass/FleetView/internal/ui"
	"github.com/KevinKickass/FleetView/internal/upstream"
	"github.com/KevinKickass/FleetView/internal/vehicle"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Services are the components the HTTP layer drives.
type Services struct {
	Sessions *session.Manager
	Guard    *auth.Guard
	Login    *auth.LoginFlow
	Profiles *auth.ProfileService
	Upstream *upstream.Client
	Vehicles *vehicle.Service
}

type Server struct {
	router *gin.Engine
	cfg    *config.Config
	lm     interfaces.LifecycleManager
	logger *zap.Logger
	server *http.Server
	wsHub  *websocket.Hub
	svc    Services
}

func NewServer(cfg *config.Config, lm interfaces.LifecycleManager, logger *zap.Logger, wsHub *websocket.Hub, svc Services) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router: gin.New(),
		cfg:    cfg,
		lm:     lm,
		logger: logger,
		wsHub:  wsHub,
		svc:    svc,
	}

	s.router.SetHTMLTemplate(template.Must(template.New("pages").ParseFS(pageFS, "templates/*.html")))
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("REST server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(gin.Recovery())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(s.svc.Sessions.Middleware())

	guard := s.svc.Guard

	s.router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusSeeOther, auth.DashboardPath)
	})

	// ==================== PAGES ====================
	s.router.GET(auth.LoginPath, guard.RedirectAuthenticated(), s.loginPage)
	s.router.POST(auth.LoginPath, guard.RedirectAuthenticated(), s.loginSubmit)
	s.router.GET(auth.DashboardPath, guard.RequirePage(), s.dashboardPage)
	s.router.POST("/logout", s.logout)

	api := s.router.Group("/api")
	{
		// ==================== PROXY (PUBLIC, CORS) ====================
		proxy := api.Group("")
		proxy.Use(CORSMiddleware())
		{
			proxy.OPTIONS("/*path", preflight)
			proxy.POST("/auth/login", s.proxyLogin)
			proxy.GET("/user/details", s.proxyUserDetails)
			proxy.GET("/user/details/", s.proxyUserDetails)
			proxy.GET("/health", s.healthCheck)
		}

		// ==================== VEHICLE ====================
		vehicles := api.Group("/vehicle")
		{
			vehicles.GET("/config/bounds", s.vehicleBounds)
			vehicles.POST("/model", guard.RequireAPI(), s.vehicleModel)
			vehicles.POST("/render", guard.RequireAPI(), s.vehicleRender)
		}

		// ==================== SETTINGS ====================
		settings := api.Group("/settings")
		{
			// The endpoint can be chosen on the login page, before any token exists.
			settings.GET("/endpoint", s.getEndpoint)
			settings.PUT("/endpoint", s.setEndpoint)
			settings.PUT("/sidebar", guard.RequireAPI(), s.setSidebar)
		}

		// ==================== SYSTEM ====================
		system := api.Group("/system")
		system.Use(guard.RequireAPI())
		{
			system.GET("/status", s.getSystemStatus)
			system.GET("/ws", s.wsStatus)
		}
	}

	// ==================== WEBSOCKET ====================
	s.router.GET("/ws/ui", guard.RequireAPI(), s.wsConnection)
}

// WebSocket handlers
func (s *Server) wsConnection(c *gin.Context) {
	sess := session.FromContext(c)
	d := ui.NewDispatcher(
		sess,
		s.svc.Profiles,
		s.svc.Vehicles,
		s.svc.Vehicles.Rand(),
		s.cfg.Report.URL,
		s.logger.With(zap.String("session", sess.ID)),
	)
	websocket.ServeWs(s.wsHub, c.Writer, c.Request, sess.ID, d)
}

func (s *Server) wsStatus(c *gin.Context) {
	sess := session.FromContext(c)
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": s.wsHub.GetClientCount(),
		"session_clients":   s.wsHub.SessionClientCount(sess.ID),
	})
}
