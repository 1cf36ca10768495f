package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/materialsync_backend/config"
	"bitbucket.org/mmdatafocus/materialsync_backend/materialsync"
	"bitbucket.org/mmdatafocus/materialsync_backend/models"
	"bitbucket.org/mmdatafocus/materialsync_backend/shopify"
	"bitbucket.org/mmdatafocus/materialsync_backend/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultPort = "3000"

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	tokens := models.ShopTokenSource{Shop: strings.TrimSpace(os.Getenv("SHOP"))}
	client, err := shopify.NewClient(tokens, logger)
	if err != nil {
		logger.Fatalf("shopify client: %v", err)
	}
	engine := materialsync.NewEngine(client, logger)
	worker := materialsync.NewWorker(engine, logger)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Next()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"db":    config.GetDB() != nil,
			"redis": config.GetRedisDB() != nil,
		})
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
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))
	r.Use(requestLogger(logger))
	r.Use(gin.Recovery())

	// API routes must be registered before the static SPA catch-all.
	r.POST("/app/variant-titles", materialsync.VariantTitlesHandler(engine))
	r.POST("/app/validate-variants", materialsync.ValidateVariantsHandler(engine))
	r.GET("/app/config", materialsync.ConfigGetHandler(engine))
	r.POST("/app/config", materialsync.ConfigSetHandler(engine))
	r.POST("/app/sync", materialsync.TriggerSyncHandler(worker))
	r.GET("/app/sync-runs", materialsync.SyncHistoryHandler())
	r.GET("/app/sync-runs/:id", materialsync.SyncRunDetailHandler())

	// OAuth install flow.
	r.GET("/", materialsync.InstallHandler())
	r.GET("/auth/callback", materialsync.OAuthCallbackHandler())

	// Order webhook.
	r.POST("/webhook/orders/create", materialsync.OrderWebhookHandler(engine))

	// Static frontend (config editor SPA) with an /app catch-all.
	distDir := strings.TrimSpace(os.Getenv("DIST_DIR"))
	if distDir == "" {
		distDir = "./dist"
	}
	if info, statErr := os.Stat(distDir); statErr == nil && info.IsDir() {
		r.Static("/assets", filepath.Join(distDir, "assets"))
		r.GET("/app", func(c *gin.Context) {
			c.File(filepath.Join(distDir, "index.html"))
		})
		r.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/app/") {
				c.File(filepath.Join(distDir, "index.html"))
				return
			}
			c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
		})
	} else {
		r.NoRoute(func(c *gin.Context) {
			c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
		})
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

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

	// Periodic reconciliation: immediate pass at startup, then every
	// interval until shutdown.
	go worker.Run(sigCtx)

	logger.Infof("server running on http://localhost:%s", port)
	logger.Infof("install url: %s", shopify.AuthorizeURL())

	select {
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
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

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		logger.WithFields(logrus.Fields{
			"status":         c.Writer.Status(),
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"latency":        latency.String(),
			"correlation_id": cid,
		}).Info("request")
	}
}
