package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// insecureSecret is the placeholder shipped in sample .env files.
const insecureSecret = "change-this-secret-in-production"

// Config 애플리케이션 전체 설정
type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
	Auth      AuthConfig
	Redis     RedisConfig
	Canvas    CanvasConfig
	Log       LogConfig

	// EnvFile is true when a .env file was loaded.
	EnvFile bool
}

// ServerConfig HTTP 서버 설정
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	BodyLimit    int
}

// WebSocketConfig WebSocket 관련 설정
type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	PingInterval    time.Duration
	WriteTimeout    time.Duration
}

// CORSConfig CORS 설정
type CORSConfig struct {
	AllowOrigins string
	AllowHeaders string
}

// AuthConfig 인증 설정. JWTSecret 이 비어 있으면 인증 없이 동작 (로컬 모드)
type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
}

// Enabled 토큰 검증 사용 여부
func (a AuthConfig) Enabled() bool { return a.JWTSecret != "" }

// RedisConfig Redis 설정
type RedisConfig struct {
	Enabled   bool
	Addr      string
	Password  string
	DB        int
	ExportTTL time.Duration
}

// CanvasConfig 캔버스 페이지 설정
type CanvasConfig struct {
	PageWidth  float64
	PageHeight float64
	// AllowReset enables the wipe-everything endpoint.
	AllowReset bool
	// SessionIdleTTL 연결 없는 세션을 메모리에서 내리는 유휴 시간
	SessionIdleTTL       time.Duration
	SessionSweepInterval time.Duration
}

// LogConfig 로깅 설정
type LogConfig struct {
	Level       string
	Format      string
	ServiceName string
}

// Load 환경 변수에서 설정 로드 (.env 파일이 있으면 먼저 로드)
func Load() (*Config, error) {
	envFile := godotenv.Load() == nil

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  getDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
			BodyLimit:    getInt("BODY_LIMIT", 8*1024*1024),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  getInt("WS_READ_BUFFER_SIZE", 16*1024),
			WriteBufferSize: getInt("WS_WRITE_BUFFER_SIZE", 16*1024),
			PingInterval:    getDuration("WS_PING_INTERVAL", 30*time.Second),
			WriteTimeout:    getDuration("WS_WRITE_TIMEOUT", 5*time.Second),
		},
		CORS: CORSConfig{
			AllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "*"),
			AllowHeaders: getEnv("CORS_ALLOW_HEADERS", "Origin, Content-Type, Accept, Authorization"),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: getDuration("ACCESS_TOKEN_EXPIRY", 1*time.Hour),
		},
		Redis: RedisConfig{
			Enabled:   getBool("REDIS_ENABLED", false),
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getInt("REDIS_DB", 0),
			ExportTTL: getDuration("EXPORT_CACHE_TTL", 10*time.Minute),
		},
		Canvas: CanvasConfig{
			PageWidth:  getFloat("CANVAS_PAGE_WIDTH", 794),
			PageHeight: getFloat("CANVAS_PAGE_HEIGHT", 1123),
			AllowReset: getBool("CANVAS_ALLOW_RESET", false),

			SessionIdleTTL:       getDuration("CANVAS_SESSION_IDLE_TTL", 15*time.Minute),
			SessionSweepInterval: getDuration("CANVAS_SESSION_SWEEP_INTERVAL", time.Minute),
		},
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Format:      getEnv("LOG_FORMAT", "json"),
			ServiceName: getEnv("SERVICE_NAME", "canvas-backend"),
		},
		EnvFile: envFile,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 설정값 검증
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == insecureSecret {
		return errors.New("JWT_SECRET must be changed from the sample value")
	}
	if c.Canvas.PageWidth <= 0 || c.Canvas.PageHeight <= 0 {
		return errors.New("CANVAS_PAGE_WIDTH and CANVAS_PAGE_HEIGHT must be positive")
	}
	if c.Canvas.SessionSweepInterval <= 0 {
		return errors.New("CANVAS_SESSION_SWEEP_INTERVAL must be positive")
	}
	return nil
}

// getEnv 환경 변수 조회 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getInt 정수형 환경 변수 조회
func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getFloat 실수형 환경 변수 조회
func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getBool 불리언 환경 변수 조회
func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getDuration 시간 환경 변수 조회
func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		// 숫자만 있으면 초로 간주
		if !strings.ContainsAny(value, "smh") {
			if secs, err := strconv.Atoi(value); err == nil {
				return time.Duration(secs) * time.Second
			}
		}
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
