package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mmdatafocus/invoice-sieve/api"
	"github.com/mmdatafocus/invoice-sieve/config"
	"github.com/mmdatafocus/invoice-sieve/internal/auth"
	"github.com/mmdatafocus/invoice-sieve/internal/configstore"
	"github.com/mmdatafocus/invoice-sieve/internal/dupscore"
	"github.com/mmdatafocus/invoice-sieve/internal/orchestrator"
	"github.com/mmdatafocus/invoice-sieve/internal/textindex"
	"github.com/mmdatafocus/invoice-sieve/middlewares"
	"github.com/mmdatafocus/invoice-sieve/models"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	if auth.ConfiguredTenant() == "" {
		logger.WithFields(logrus.Fields{"field": "auth"}).Warn("TENANT_ID is unset; tenant-mismatch enforcement is disabled")
	} else {
		logger.WithFields(logrus.Fields{"tenant_id": auth.ConfiguredTenant()}).Info("tenant-mismatch enforcement active")
	}

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start listening immediately so Cloud Run's TCP startup probe succeeds;
	// until DB/Redis are ready the readiness gate below returns 503.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Next()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("Authorization", "Content-Type", "Idempotency-Key", "X-Correlation-Id", "X-Request-Id")
	corsConfig.AddExposeHeaders("Content-Length")
	r.Use(cors.New(corsConfig))
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", api.Healthz)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	configs := configstore.NewStore(db, config.GetRedisDB())
	predictor := dupscore.Load(strings.TrimSpace(os.Getenv("DUPSCORE_MODEL_PATH")))

	var indexer textindex.Indexer
	if strings.EqualFold(strings.TrimSpace(os.Getenv("TEXT_INDEX_DISABLED")), "true") {
		indexer = textindex.NewNoopIndexer()
	} else {
		indexer = textindex.NewSQLIndexer(db)
	}

	orch := orchestrator.New(db, configs, indexer, predictor, logger, config.GetRedisLock())
	handler := api.NewHandler(orch)

	scored := r.Group("/")
	scored.Use(middlewares.Auth())
	scored.POST("/scoreInvoice", handler.ScoreInvoice)
	scored.GET("/invoice/:invoice_id/decision", handler.GetDecision)

	logger.WithFields(logrus.Fields{"info": "ready"}).Info("listening on :", port)

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
