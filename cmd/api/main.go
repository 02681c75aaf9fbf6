package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hums/internal/attendance"
	"hums/internal/auth"
	"hums/internal/config"
	"hums/internal/httpmiddleware"
	"hums/internal/queue"
	"hums/internal/schedule"
	"hums/internal/session"
	"hums/internal/shifttime"
	"hums/internal/store"
	"hums/internal/tap"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if db == nil {
		// Bad DSN; a reachable-but-down database still yields a handle.
		return err
	}
	if err != nil {
		log.Printf("warning: db not reachable: %v", err)
	}
	defer func() { _ = db.Close() }()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "hums:taps")
	}

	grace := shifttime.Grace{LateAfter: cfg.LateGrace, EarlyBefore: cfg.EarlyGrace}
	att := attendance.NewService(grace, nil)
	sessions := session.NewService(att)
	taps := tap.NewService(tap.NewRepository(db.Client), sessions, time.Minute)

	srv := &server{
		cfg:       cfg,
		db:        db,
		queue:     q,
		scheduler: schedule.NewService(nil),
		att:       att,
		sessions:  sessions,
		taps:      taps,
	}

	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	// CORS middleware
	r.Use(corsMiddleware())

	// Security headers
	r.Use(securityHeaders())

	// Rate limiting
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/kiosks/register", srv.registerKiosk)
	r.GET("/v1/users/:id/calendar.ics", srv.calendarFeed)

	kiosk := r.Group("/v1", auth.RequireRole(cfg.JWTSigningKey, cfg.JWTIssuer, "kiosk", "admin"))
	kiosk.POST("/taps", srv.postTap)
	kiosk.GET("/taps", srv.listTaps)
	kiosk.GET("/sessions/open", srv.openSession)

	admin := r.Group("/v1", auth.RequireRole(cfg.JWTSigningKey, cfg.JWTIssuer, "admin"))
	admin.GET("/users", srv.listUsers)
	admin.POST("/users", srv.createUser)
	admin.POST("/users/:id/calendar-token", srv.mintCalendarToken)

	admin.GET("/periods", srv.listPeriods)
	admin.POST("/periods", srv.createPeriod)
	admin.GET("/periods/:id", srv.getPeriod)
	admin.PUT("/periods/:id", srv.updatePeriod)
	admin.DELETE("/periods/:id", srv.deletePeriod)
	admin.POST("/periods/:id/regenerate", srv.regeneratePeriod)

	admin.GET("/periods/:id/exceptions", srv.listExceptions)
	admin.POST("/periods/:id/exceptions", srv.createException)
	admin.PUT("/exceptions/:id", srv.updateException)
	admin.DELETE("/exceptions/:id", srv.deleteException)

	admin.GET("/shift-types", srv.listShiftTypes)
	admin.POST("/shift-types", srv.createShiftType)
	admin.DELETE("/shift-types/:id", srv.deleteShiftType)

	admin.GET("/periods/:id/schedules", srv.listSchedules)
	admin.POST("/periods/:id/schedules", srv.createSchedule)
	admin.PUT("/schedules/:id", srv.updateSchedule)
	admin.DELETE("/schedules/:id", srv.deleteSchedule)

	admin.POST("/schedules/:id/registrations", srv.register)
	admin.DELETE("/schedules/:id/registrations/:userID", srv.unregister)

	admin.GET("/users/:id/attendance", srv.listAttendance)
	admin.GET("/users/:id/attendance/stats", srv.attendanceStats)
	admin.GET("/attendance/review", srv.reviewQueue)
	admin.POST("/occurrences/:id/attendance/:userID/excuse", srv.excuseAttendance)
	admin.POST("/occurrences/:id/attendance/:userID/drop", srv.dropAttendance)
	admin.POST("/occurrences/:id/attendance/:userID/reinstate", srv.reinstateAttendance)

	// Graceful shutdown
	httpSrv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
