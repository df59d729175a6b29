package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
	"bitbucket.org/mmdatafocus/warehouse_backend/middlewares"
	"bitbucket.org/mmdatafocus/warehouse_backend/models"
	"bitbucket.org/mmdatafocus/warehouse_backend/utils"
	"bitbucket.org/mmdatafocus/warehouse_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func customNotFoundHandler(c *gin.Context) {
	utils.ErrorStatus(c, http.StatusNotFound, "route not found")
}

// setupRouter builds the gin engine with middlewares and routes.
func setupRouter(logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// the port opens before the DB connects
		if config.GetDB() == nil {
			utils.ErrorStatus(c, http.StatusServiceUnavailable, "service not ready")
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.Use(cors.New(corsConfig()))

	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		if client := config.GetRedisDB(); client != nil {
			limit := int64(600)
			if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
				if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
					limit = n
				}
			}
			windowSec := int64(60)
			if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
				if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
					windowSec = n
				}
			}
			rateLimiter := middlewares.NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
			r.Use(rateLimiter.RateLimitMiddleware)
		} else {
			logger.WithFields(logrus.Fields{"field": "rateLimiter"}).Warn("RATE_LIMIT_ENABLED set but redis is not connected; rate limiting disabled")
		}
	}

	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.Use(middlewares.SessionMiddleware())
	api.Use(middlewares.IdempotencyMiddleware())
	registerStockInputRoutes(api)

	r.NoRoute(customNotFoundHandler)
	return r
}

func registerStockInputRoutes(api *gin.RouterGroup) {
	stockInputs := api.Group("/stock-inputs")
	stockInputs.POST("", createStockInputHandler)
	stockInputs.GET("", listStockInputsHandler)
	stockInputs.GET("/:id", getStockInputHandler)
	stockInputs.PUT("/:id", updateStockInputHandler)
	stockInputs.POST("/:id/checking", setCheckingHandler)
	stockInputs.POST("/:id/checked", setCheckedHandler)
	stockInputs.POST("/:id/cancel", cancelStockInputHandler)
	stockInputs.POST("/:id/payments/full", payInFullHandler)
	stockInputs.POST("/:id/payments/partial", partialPaymentHandler)
	stockInputs.GET("/:id/payments", paymentSummaryHandler)
	stockInputs.GET("/:id/history", stockInputHistoryHandler)
	stockInputs.GET("/:id/export", exportStockInputHandler)

	api.GET("/inventories", listInventoriesHandler)
	api.GET("/inventories/:warehouseId/:productId", getInventoryHandler)

	ops := api.Group("/ops", adminOnly)
	ops.GET("/reconciliation/inventory", reconcileInventoryHandler)
	ops.POST("/outbox/:id/replay", outboxReplayHandler)
}

func corsConfig() cors.Config {
	corsConfig := cors.DefaultConfig()
	// production requires an explicit allowlist, everything else allows all
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOriginFunc = func(string) bool { return false }
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization",
		middlewares.HeaderCorrelationId, middlewares.HeaderIdempotencyKey)
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", middlewares.HeaderCorrelationId)
	if !corsConfig.AllowAllOrigins {
		corsConfig.AllowCredentials = true
	}
	return corsConfig
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	if config.RedisConfigured() {
		config.ConnectRedisWithRetry()
	}
	r := setupRouter(logger)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
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

	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	if config.OutboxDispatcherEnabled() {
		ensurePubSubTopic(sigCtx, logger)
		go workflow.NewOutboxDispatcher(db, logger).Run(dispatcherCtx)
	} else {
		logger.WithFields(logrus.Fields{"field": "outbox"}).Warn("outbox dispatcher disabled; events stay PENDING")
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on :", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	cancelDispatcher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// ensurePubSubTopic creates PUBSUB_TOPIC when PUBSUB_CREATE_TOPIC=true, for
// emulators and fresh projects.
func ensurePubSubTopic(ctx context.Context, logger *logrus.Logger) {
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("PUBSUB_CREATE_TOPIC")), "true") {
		return
	}
	client, err := config.GetClient(ctx)
	if err == nil {
		_, err = config.CreateTopicIfNotExists(ctx, client, os.Getenv("PUBSUB_TOPIC"))
	}
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "pubsub"}).Error("ensure topic failed: " + err.Error())
	}
}

// customErrorLogger logs only requests that attached errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			logger.WithFields(logrus.Fields{
				"method":         c.Request.Method,
				"path":           c.FullPath(),
				"status":         c.Writer.Status(),
				"correlation_id": cid,
			}).Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
