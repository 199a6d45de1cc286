package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"canvas-backend/internal/cache"
	"canvas-backend/internal/config"
	"canvas-backend/internal/database"
	"canvas-backend/internal/logger"
	"canvas-backend/internal/server"
	"canvas-backend/internal/session"
	"canvas-backend/internal/store"
)

func main() {
	// 설정 로드
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Config load failed: %v", err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.ServiceName)
	if err != nil {
		log.Fatalf("❌ Logger init failed: %v", err)
	}
	defer zlog.Sync()

	if !cfg.EnvFile {
		zlog.Info(".env not found, using environment variables only")
	}

	// 데이터베이스 연결
	db, err := database.ConnectDB(database.LoadConfig(), zlog)
	if err != nil {
		zlog.Fatal("database connection failed", zap.Error(err))
	}
	defer database.Close()

	// Ping 테스트
	if err := database.Ping(); err != nil {
		zlog.Fatal("database ping failed", zap.Error(err))
	}

	// Redis 내보내기 캐시 (선택적)
	var exportCache *cache.ExportCache
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			zlog.Warn("redis unavailable, export cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			exportCache = cache.NewExportCache(client, cfg.Redis.ExportTTL, zlog)
			defer exportCache.Close()
			zlog.Info("export cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.ExportTTL))
		}
	}

	sessions := session.NewManager(store.NewDocumentStore(db), zlog)

	// 유휴 세션 정리
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sessions.Run(sweepCtx, cfg.Canvas.SessionSweepInterval, cfg.Canvas.SessionIdleTTL)

	// 서버 생성 및 설정
	srv := server.New(cfg, db, sessions, exportCache, zlog)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	// 서버 시작
	if err := srv.Start(); err != nil {
		zlog.Fatal("server failed to start", zap.Error(err))
	}
}
