package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/mmdatafocus/mpms/config"
	"github.com/mmdatafocus/mpms/middlewares"
	"github.com/mmdatafocus/mpms/models"
	"github.com/mmdatafocus/mpms/utils"
	"github.com/mmdatafocus/mpms/workflow"
)

var tracer = otel.Tracer("mpms")

const correlationIdHeader = "X-Correlation-Id"

// App carries the dependencies shared by every handler.
type App struct {
	cfg    *config.Config
	db     *gorm.DB
	logger *logrus.Logger
	cache  *config.RedisCache
	mailer utils.Mailer
	images utils.ImageStore
	events *workflow.Dispatcher
	now    func() time.Time
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := config.NewLogger(cfg.LogLevel)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.OpenDatabase(cfg.Database)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "database"}).Fatal("open database: " + err.Error())
	}
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	if !cfg.SkipMigrations {
		if err := models.MigrateTable(sigCtx, db, logger); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal("migrate: " + err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping migrations on startup")
	}

	// Redis is optional: without it users are read from the database and
	// reset mails are not throttled.
	cache, err := config.ConnectRedis(sigCtx, cfg.RedisAddress)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "redis"}).Warn("redis disabled: " + err.Error())
		cache = nil
	}
	defer func() {
		_ = cache.Close()
	}()

	images, err := utils.NewImageStore(sigCtx, cfg.Storage)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "storage"}).Fatal("image store: " + err.Error())
	}
	defer closeImageStore(images, logger)
	if err := utils.EnsureDefaultAvatar(sigCtx, images); err != nil {
		logger.WithFields(logrus.Fields{"field": "storage"}).Warn("default avatar: " + err.Error())
	}

	publisher, closePublisher := newPublisher(sigCtx, cfg, logger)
	defer closePublisher()
	dispatcher := workflow.NewDispatcher(publisher, logger, 256)
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	dispatcher.Start(dispatcherCtx)

	app := &App{
		cfg:    cfg,
		db:     db,
		logger: logger,
		cache:  cache,
		mailer: utils.NewSMTPMailer(cfg.Mail),
		images: images,
		events: dispatcher,
		now:    time.Now,
	}
	r, err := app.router()
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "templates"}).Fatal(err.Error())
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()
	logger.WithFields(logrus.Fields{
		"info": "Server Started",
	}).Info("listening on http://localhost:", cfg.Port, "/")

	select {
	case <-sigCtx.Done():
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

	// flush change events of the drained requests
	cancelDispatcher()
	dispatcher.Wait()
}

// closeImageStore releases backends that hold a client, such as GCS.
func closeImageStore(images utils.ImageStore, logger *logrus.Logger) {
	closer, ok := images.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		logger.WithFields(logrus.Fields{"field": "storage"}).Warn("close image store: " + err.Error())
	}
}

// newPublisher falls back to logging change events when no topic is set
// or Pub/Sub cannot be reached.
func newPublisher(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (workflow.Publisher, func()) {
	fallback := workflow.LogPublisher{Logger: logger}
	if cfg.PubSub.Topic == "" {
		return fallback, func() {}
	}
	client, err := config.NewPubSubClient(ctx, cfg.PubSub)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "pubsub"}).Warn("pubsub disabled: " + err.Error())
		return fallback, func() {}
	}
	topic, err := config.CreateTopicIfNotExists(ctx, client, cfg.PubSub.Topic)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "pubsub"}).Warn("pubsub disabled: " + err.Error())
		_ = client.Close()
		return fallback, func() {}
	}
	publisher := workflow.NewPubSubPublisher(topic)
	return publisher, func() {
		publisher.Stop()
		_ = client.Close()
	}
}

func (app *App) router() (*gin.Engine, error) {
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.MaxMultipartMemory = utils.MaxUploadSizeBytes

	r.Use(correlationIdMiddleware())
	r.Use(traceMiddleware())
	r.Use(requestLogger(app.logger))
	r.Use(customErrorLogger(app.logger))
	r.Use(gin.CustomRecovery(app.recovered))
	r.Use(cors.New(corsConfig(app.cfg)))
	r.Use(middlewares.AuthMiddleware(app.sessionOptions(), app.db, app.cache, app.logger))
	r.Use(middlewares.LoaderMiddleware(app.db))

	if app.cfg.Storage.Provider == config.StorageProviderLocal {
		r.Static("/static", app.cfg.Storage.StaticDir)
	}

	r.GET("/", app.homeHandler)
	r.GET("/healthz", app.healthHandler)

	r.GET("/register", app.anonymousOnly(app.registerHandler))
	r.POST("/register", app.anonymousOnly(app.registerHandler))
	r.GET("/login", app.anonymousOnly(app.loginHandler))
	r.POST("/login", app.anonymousOnly(app.loginHandler))
	r.GET("/logout", app.logoutHandler)
	r.POST("/logout", app.logoutHandler)

	r.GET("/account", app.authenticated(app.accountHandler))
	r.GET("/account/update", app.authenticated(app.updateAccountHandler))
	r.POST("/account/update", app.authenticated(app.updateAccountHandler))
	r.GET("/account/password", app.authenticated(app.changePasswordHandler))
	r.POST("/account/password", app.authenticated(app.changePasswordHandler))

	r.GET("/reset_password", app.anonymousOnly(app.resetRequestHandler))
	r.POST("/reset_password", app.anonymousOnly(app.resetRequestHandler))
	r.GET("/reset_password/:token", app.anonymousOnly(app.resetTokenHandler))
	r.POST("/reset_password/:token", app.anonymousOnly(app.resetTokenHandler))

	r.GET("/guests", app.authenticated(app.guestsHandler))
	r.POST("/guests", app.authenticated(app.guestsHandler))
	r.GET("/guests/new", app.authenticated(app.newGuestHandler))
	r.POST("/guests/new", app.authenticated(app.newGuestHandler))
	r.GET("/guests/query", app.authenticated(app.queryGuestHandler))
	r.POST("/guests/query", app.authenticated(app.queryGuestHandler))
	r.GET("/guests/:guest_id", app.authenticated(app.guestHandler))
	r.GET("/guests/:guest_id/edit", app.authenticated(app.editGuestHandler))
	r.POST("/guests/:guest_id/edit", app.authenticated(app.editGuestHandler))
	r.GET("/guests/:guest_id/contacts/new", app.authenticated(app.newContactHandler))
	r.POST("/guests/:guest_id/contacts/new", app.authenticated(app.newContactHandler))
	r.GET("/contacts/:contact_id/edit", app.authenticated(app.editContactHandler))
	r.POST("/contacts/:contact_id/edit", app.authenticated(app.editContactHandler))
	r.GET("/guests/:guest_id/cases/new", app.authenticated(app.newCaseHandler))
	r.POST("/guests/:guest_id/cases/new", app.authenticated(app.newCaseHandler))

	r.GET("/cases/:case_id", app.authenticated(app.caseHandler))
	r.GET("/cases/:case_id/export", app.authenticated(app.exportCaseHandler))
	r.GET("/cases/:case_id/vendors", app.authenticated(app.caseVendorsHandler))
	r.POST("/cases/:case_id/vendors", app.authenticated(app.caseVendorsHandler))
	r.GET("/cases/:case_id/vendors/:vendor_id/details/new", app.authenticated(app.newCaseDetailHandler))
	r.POST("/cases/:case_id/vendors/:vendor_id/details/new", app.authenticated(app.newCaseDetailHandler))
	r.POST("/cases/:case_id/details/:detail_id/delete", app.authenticated(app.deleteCaseDetailHandler))

	r.GET("/vendors", app.authenticated(app.vendorsHandler))
	r.GET("/vendors/new", app.authenticated(app.newVendorHandler))
	r.POST("/vendors/new", app.authenticated(app.newVendorHandler))
	r.GET("/vendors/:vendor_id/edit", app.authenticated(app.editVendorHandler))
	r.POST("/vendors/:vendor_id/edit", app.authenticated(app.editVendorHandler))
	r.POST("/vendors/:vendor_id/delete", app.authenticated(app.deleteVendorHandler))

	r.NoRoute(app.notFound)
	return r, nil
}

func (app *App) sessionOptions() middlewares.SessionOptions {
	return middlewares.SessionOptions{
		Secret: app.cfg.SecretKey,
		Secure: app.cfg.IsProduction(),
	}
}

func (app *App) healthHandler(c *gin.Context) {
	sqlDB, err := app.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		config.LogError(app.logger, "main", "healthHandler", "ping database", nil, err)
		c.Status(http.StatusServiceUnavailable)
		return
	}
	c.Status(http.StatusNoContent)
}

// emit queues a change event for a committed write.
func (app *App) emit(ctx context.Context, refType workflow.ReferenceType, action workflow.Action, refId int, obj interface{}) {
	if app.events == nil {
		return
	}
	app.events.Enqueue(workflow.NewChange(ctx, refType, action, refId, obj))
}

func corsConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.DefaultConfig()
	if len(cfg.CORSAllowedOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.CORSAllowedOrigins
		corsCfg.AllowCredentials = true
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, correlationIdHeader)
	corsCfg.ExposeHeaders = []string{correlationIdHeader, "Content-Disposition"}
	return corsCfg
}

func correlationIdMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader(correlationIdHeader)
		if cid == "" || len(cid) > 64 {
			cid = uuid.NewString()
		}
		c.Header(correlationIdHeader, cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	}
}

func traceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+route, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.status_code", c.Writer.Status()),
		)
	}
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		logger.WithFields(logrus.Fields{
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"status":         c.Writer.Status(),
			"latency":        time.Since(start).String(),
			"correlation_id": cid,
		}).Info("request")
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}
