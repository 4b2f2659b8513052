package app

import (
	"context"
	"log"
	"strconv"
	"time"

	"Gin_postgres_redis_tool_lending/config"
	"Gin_postgres_redis_tool_lending/db"
	"Gin_postgres_redis_tool_lending/session"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// 简化别名，便于 handlers 调用
type Ctx = gin.Context
type H = gin.H

// App 聚合各依赖
type App struct {
	Router *gin.Engine
	DB     *gorm.DB
	RDB    *redis.Client
	WA     *webauthn.WebAuthn
	Config Config

	appSess *session.AppSessionStore
}

// Config 从环境变量读取
type Config struct {
	DatabaseURL string
	RedisAddr   string
	RedisPwd    string
	WebOrigin   string
	RPID        string
	RPOrigins   []string
	AppName     string

	SessionTTL       time.Duration // WebAuthn 仪式数据
	AppSessionTTL    time.Duration // 登录会话
	LastSeenThrottle time.Duration

	AdminEmails       []string
	BootstrapEmail    string
	BootstrapPassword string
	SeedDepartment    string

	// 邀请邮件；SMTPHost 为空时只打日志
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
}

func (a *App) AppSessions() *session.AppSessionStore { return a.appSess }

func MustNew() *App {
	cfg := LoadConfig()

	// --- DB: Postgres ---
	dbConn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.Setup(ctx, dbConn); err != nil {
		log.Fatalf("database: %v", err)
	}
	log.Println("database ready")

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPwd, DB: 0})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}

	// --- WebAuthn RP ---
	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.AppName + " Passkeys",
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		log.Fatalf("webauthn: %v", err)
	}

	// --- Gin ---
	r := gin.Default()
	useCORS(r, cfg)
	r.Use(Metrics())
	a := &App{
		Router: r, DB: dbConn, RDB: rdb, WA: wa, Config: cfg,
		appSess: session.NewAppSessionStore(rdb, cfg.AppSessionTTL),
	}
	return a
}

func (a *App) Close() { _ = a.RDB.Close() }

func seconds(k string, def time.Duration) time.Duration {
	v := config.Get(k, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[CONFIG] ignoring %s=%q, using %s", k, v, def)
		return def
	}
	return time.Duration(n) * time.Second
}

func LoadConfig() Config {
	origins := config.CSV("RP_ORIGINS", false)
	webOrigin := config.Get("WEB_ORIGIN", "http://localhost:5173")
	if len(origins) == 0 {
		origins = []string{webOrigin}
	}
	return Config{
		DatabaseURL: config.DatabaseDSN(),
		RedisAddr:   config.Get("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPwd:    config.Get("REDIS_PASSWORD", ""),
		WebOrigin:   webOrigin,
		RPID:        config.Get("RP_ID", "localhost"),
		RPOrigins:   origins,
		AppName:     config.Get("APP_NAME", "Tool Lending"),

		SessionTTL:       seconds("SESSION_TTL_SECONDS", 10*time.Minute),
		AppSessionTTL:    seconds("APP_SESSION_TTL_SECONDS", 24*time.Hour),
		LastSeenThrottle: seconds("LAST_SEEN_THROTTLE_SECONDS", 5*time.Minute),

		AdminEmails:       config.CSV("ADMIN_EMAILS", true), // 例如: "admin@ex.com,ops@ex.com"
		BootstrapEmail:    config.Get("BOOTSTRAP_EMAIL", ""),
		BootstrapPassword: config.Get("BOOTSTRAP_PASSWORD", ""),
		SeedDepartment:    config.Get("SEED_DEPARTMENT", "Verwaltung"),

		SMTPHost:     config.Get("SMTP_HOST", ""),
		SMTPPort:     config.Get("SMTP_PORT", "587"),
		SMTPUser:     config.Get("SMTP_USERNAME", ""),
		SMTPPassword: config.Get("SMTP_PASSWORD", ""),
		SMTPFrom:     config.Get("SMTP_FROM", ""),
	}
}
