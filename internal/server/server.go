package server

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"canvas-backend/internal/auth"
	"canvas-backend/internal/cache"
	"canvas-backend/internal/config"
	"canvas-backend/internal/handler"
	"canvas-backend/internal/layout"
	"canvas-backend/internal/middleware"
	"canvas-backend/internal/session"
)

// Server Fiber 서버 래퍼
type Server struct {
	app             *fiber.App
	cfg             *config.Config
	log             *zap.Logger
	canvasHandler   *handler.CanvasHandler
	canvasWSHandler *handler.CanvasWSHandler
	healthHandler   *handler.HealthHandler
	jwtManager      *auth.JWTManager
}

// New 새 서버 인스턴스 생성. exportCache 는 nil 이면 캐시 없이 동작
func New(cfg *config.Config, db *gorm.DB, sessions *session.Manager, exportCache *cache.ExportCache, log *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "Canvas Backend",
		ServerHeader:          "Fiber",
		StrictRouting:         true,
		CaseSensitive:         true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		Prefork:               false, // WebSocket과 호환성 문제로 비활성화
		ReadBufferSize:        16384, // 16KB - 큰 헤더 허용
		WriteBufferSize:       16384,
		BodyLimit:             cfg.Server.BodyLimit,
		DisableStartupMessage: true,
	})

	// Auth 초기화 (JWT_SECRET 이 없으면 로컬 모드)
	var jwtManager *auth.JWTManager
	if cfg.Auth.Enabled() {
		jwtManager = auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
	} else {
		log.Info("auth disabled, running in local mode")
	}

	pageSize := layout.Size{Width: cfg.Canvas.PageWidth, Height: cfg.Canvas.PageHeight}

	return &Server{
		app:           app,
		cfg:           cfg,
		log:           log,
		canvasHandler: handler.NewCanvasHandler(sessions, exportCache, pageSize, cfg.Canvas.AllowReset, log),
		canvasWSHandler: handler.NewCanvasWSHandler(sessions, pageSize,
			cfg.WebSocket.PingInterval, cfg.WebSocket.WriteTimeout, log),
		healthHandler: handler.NewHealthHandler(db, exportCache),
		jwtManager:    jwtManager,
	}
}

// App 내부 fiber 앱 (테스트용)
func (s *Server) App() *fiber.App {
	return s.app
}

// SetupMiddleware 미들웨어 설정
func (s *Server) SetupMiddleware() {
	// 패닉 복구
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// 로깅
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "UTC",
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/health/live"
		},
	}))

	// CORS
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: s.cfg.CORS.AllowOrigins,
		AllowHeaders: s.cfg.CORS.AllowHeaders,
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
}

// SetupRoutes 라우트 설정
func (s *Server) SetupRoutes() {
	// Health check
	s.app.Get("/health", s.healthHandler.Check)
	s.app.Get("/health/live", s.healthHandler.Liveness)
	s.app.Get("/health/ready", s.healthHandler.Readiness)

	// 내보내기는 렌더링 비용이 커서 IP 당 요청 수 제한
	exportLimiter := limiter.New(limiter.Config{
		Max:        20,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many export requests, please try again later",
			})
		},
	})

	// Canvas 라우트
	canvasGroup := s.app.Group("/api/canvas", auth.AuthMiddleware(s.jwtManager))
	canvasGroup.Post("/documents", s.canvasHandler.OpenDocument)
	canvasGroup.Delete("/data", s.canvasHandler.ClearAllData)

	docGroup := canvasGroup.Group("/documents/:id", middleware.RequireDocumentID())
	docGroup.Get("", s.canvasHandler.GetDocument)
	docGroup.Delete("", s.canvasHandler.DeleteDocument)
	docGroup.Post("/pages", s.canvasHandler.AddPage)
	docGroup.Delete("/pages/:pageId", middleware.RequirePageID(), s.canvasHandler.DeletePage)
	docGroup.Post("/pages/:pageId/strokes", middleware.RequirePageID(), s.canvasHandler.SaveStroke)
	docGroup.Post("/pages/:pageId/preview.png", middleware.RequirePageID(), exportLimiter, s.canvasHandler.Preview)
	docGroup.Post("/retry", s.canvasHandler.Retry)
	docGroup.Get("/export.json", s.canvasHandler.ExportJSON)
	docGroup.Post("/export.pdf", exportLimiter, s.canvasHandler.ExportPDF)

	// WebSocket 업그레이드 체크 미들웨어
	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket 캔버스 엔드포인트 (문서 단위)
	s.app.Get("/ws/canvas/:id", auth.AuthMiddleware(s.jwtManager), middleware.RequireDocumentID(),
		websocket.New(s.canvasWSHandler.HandleWebSocket, websocket.Config{
			ReadBufferSize:  s.cfg.WebSocket.ReadBufferSize,
			WriteBufferSize: s.cfg.WebSocket.WriteBufferSize,
		}))
}

// Start 서버 시작 (Graceful Shutdown 지원)
func (s *Server) Start() error {
	// Graceful Shutdown 설정
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		s.log.Info("shutting down server")
		if err := s.app.ShutdownWithTimeout(30 * time.Second); err != nil {
			s.log.Error("server shutdown error", zap.Error(err))
		}
	}()

	s.log.Info("canvas backend starting",
		zap.String("addr", s.cfg.Server.Port),
		zap.String("websocket", "/ws/canvas/:id"),
		zap.Bool("auth", s.jwtManager != nil))

	return s.app.Listen(s.cfg.Server.Port)
}

// Shutdown 서버 종료
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(30 * time.Second)
}
