package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/goldloan_backend/config"
	"bitbucket.org/mmdatafocus/goldloan_backend/middlewares"
	"bitbucket.org/mmdatafocus/goldloan_backend/models"
	"bitbucket.org/mmdatafocus/goldloan_backend/utils"
	"bitbucket.org/mmdatafocus/goldloan_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
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

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	r := newRouter(logger)

	// Start listening immediately (startup probe is TCP based); app routes
	// return 503 until the DB is ready.
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
	config.ConnectRedis()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations as
	// a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.Migrate(db); err != nil {
			logger.WithFields(logrus.Fields{"module": "server.go"}).Panic("migration failed: " + err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"module": "server.go"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	workflow.RegisterTrackingProvisioner(logger)

	logger.WithFields(logrus.Fields{
		"module": "server.go",
		"port":   port,
	}).Info("server ready")
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"module": "server.go"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"module": "server.go"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

func newRouter(logger *logrus.Logger) *gin.Engine {
	r := gin.New()

	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})

	// Readiness gate: the health probe always passes, everything else waits
	// for the DB.
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

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
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "Idempotency-Key")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/api/login", loginHandler())
	r.GET("/api/track/:loanNo", trackLoanHandler())

	api := r.Group("/api", middlewares.RequireAuth())
	{
		api.POST("/users", createUserHandler())

		api.GET("/branches", listBranchesHandler())
		api.POST("/branches", createBranchHandler())
		api.PUT("/branches/:id", updateBranchHandler())

		api.GET("/customers", listCustomersHandler())
		api.GET("/customers/:id", getCustomerHandler())
		api.POST("/customers", createCustomerHandler())
		api.PUT("/customers/:id", updateCustomerHandler())

		api.GET("/money-sources", listMoneySourcesHandler())
		api.GET("/money-sources/:id", getMoneySourceHandler())
		api.POST("/money-sources", createMoneySourceHandler())
		api.PUT("/money-sources/:id", updateMoneySourceHandler())
		api.PUT("/money-sources/:id/active", toggleMoneySourceHandler())

		api.GET("/capital-sources", listCapitalSourcesHandler())
		api.POST("/capital-sources", createCapitalSourceHandler())

		api.GET("/transactions", listTransactionsHandler())
		api.GET("/transactions/:id", getTransactionHandler())
		api.POST("/transactions", postTransactionHandler(logger))

		api.GET("/pledges", listPledgesHandler())
		api.GET("/pledges/:id", getPledgeHandler())
		api.POST("/pledges", createPledgeHandler())
		api.POST("/pledges/:id/approve", approvePledgeHandler())
		api.POST("/pledges/:id/release", transitionPledgeHandler(models.ReleasePledge))
		api.POST("/pledges/:id/cancel", transitionPledgeHandler(models.CancelPledge))
		api.POST("/pledges/:id/default", transitionPledgeHandler(models.MarkPledgeDefault))
		api.POST("/pledges/:id/closure", initiateClosureHandler())
		api.GET("/pledges/:id/closure", getClosureHandler())

		api.GET("/repledge-sources", listRepledgeSourcesHandler())
		api.POST("/repledge-sources", createRepledgeSourceHandler())

		api.GET("/repledges", listRepledgesHandler())
		api.GET("/repledges/:id", getRepledgeHandler())
		api.POST("/repledges", createRepledgeHandler())
		api.POST("/repledges/:id/close", closeRepledgeHandler())

		api.GET("/tasks", listTasksHandler())
		api.POST("/tasks", createTaskHandler())
		api.POST("/tasks/:id/complete", completeTaskHandler())
	}

	internal := r.Group("/internal", middlewares.RequireAuth())
	{
		internal.POST("/jobs/overdue-sweep", overdueSweepHandler(logger))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}

// customErrorLogger logs only requests that accumulated errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
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
