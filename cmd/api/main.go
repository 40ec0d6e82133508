package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/posgrado-epg/pagos-api/api/swagger"
	"github.com/posgrado-epg/pagos-api/internal/handler"
	"github.com/posgrado-epg/pagos-api/internal/middleware"
	"github.com/posgrado-epg/pagos-api/internal/models"
	"github.com/posgrado-epg/pagos-api/internal/repository"
	"github.com/posgrado-epg/pagos-api/internal/service"
	"github.com/posgrado-epg/pagos-api/pkg/cache"
	"github.com/posgrado-epg/pagos-api/pkg/config"
	"github.com/posgrado-epg/pagos-api/pkg/database"
	"github.com/posgrado-epg/pagos-api/pkg/export"
	"github.com/posgrado-epg/pagos-api/pkg/jobs"
	"github.com/posgrado-epg/pagos-api/pkg/logger"
	corsmiddleware "github.com/posgrado-epg/pagos-api/pkg/middleware/cors"
	reqidmiddleware "github.com/posgrado-epg/pagos-api/pkg/middleware/requestid"
	"github.com/posgrado-epg/pagos-api/pkg/storage"
)

// @title Posgrado Pagos API
// @version 1.0.0
// @description Ledger de inscripciones y comprobantes de pago para cursos de posgrado
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
		} else {
			repo := repository.NewCacheRepository(redisClient, logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
		}
	}

	validate := validator.New()

	metricsService := service.NewMetricsService()
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Cache.DefaultTTL, logr, cfg.Cache.Enabled && cacheRepo != nil)

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	discountRepo := repository.NewDiscountRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	paymentConfigRepo := repository.NewPaymentConfigRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)

	voucherStore, err := storage.NewLocalStorage(cfg.Vouchers.StorageDir)
	if err != nil {
		logr.Fatal("failed to init voucher storage", zap.Error(err))
	}
	receiptStore, err := storage.NewLocalStorage(cfg.Receipts.StorageDir)
	if err != nil {
		logr.Fatal("failed to init receipt storage", zap.Error(err))
	}
	voucherSigner := storage.NewSignedURLSigner(cfg.Vouchers.SignedURLSecret, cfg.Vouchers.SignedURLTTL)
	receiptSigner := storage.NewSignedURLSigner(cfg.Receipts.SignedURLSecret, cfg.Receipts.SignedURLTTL)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})
	userService := service.NewUserService(userRepo, validate, logr)
	studentService := service.NewStudentService(studentRepo, userRepo, validate, logr)
	courseService := service.NewCourseService(courseRepo, discountRepo, cacheService, validate, logr)
	discountService := service.NewDiscountService(discountRepo, validate, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, studentRepo, courseRepo, discountRepo, validate, logr)
	ledgerService := service.NewLedgerService(ledgerRepo, paymentRepo, enrollmentRepo, validate, logr)
	paymentConfigService := service.NewPaymentConfigService(paymentConfigRepo, cacheService, validate, logr)
	voucherService := service.NewVoucherService(voucherStore, voucherSigner, service.VoucherConfig{
		APIPrefix:    cfg.APIPrefix,
		MaxSizeBytes: cfg.Vouchers.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Vouchers.AllowedMIMEs,
	}, logr)
	exportService := service.NewExportService(paymentRepo, receiptStore, receiptSigner, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Receipts.SignedURLTTL,
	}, logr, export.NewCSVExporter(), export.NewPDFExporter())

	cleanupQueue := jobs.NewQueue("export-cleanup", func(ctx context.Context, job jobs.Job) error {
		removed, err := exportService.Cleanup(cfg.Receipts.SignedURLTTL)
		if err != nil {
			return err
		}
		if len(removed) > 0 {
			logr.Info("expired exports removed", zap.Int("count", len(removed)))
		}
		return nil
	}, jobs.QueueConfig{Workers: 1, Logger: logr})
	cleanupQueue.Start(ctx)
	defer cleanupQueue.Stop()
	go scheduleCleanup(ctx, cleanupQueue, cfg.Receipts.CleanupInterval, logr)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	studentHandler := handler.NewStudentHandler(studentService)
	courseHandler := handler.NewCourseHandler(courseService)
	discountHandler := handler.NewDiscountHandler(discountService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService, ledgerService)
	paymentHandler := handler.NewPaymentHandler(ledgerService, voucherService)
	paymentConfigHandler := handler.NewPaymentConfigHandler(paymentConfigService)
	exportHandler := handler.NewExportHandler(exportService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeHandlers{
		auth:          authHandler,
		users:         userHandler,
		students:      studentHandler,
		courses:       courseHandler,
		discounts:     discountHandler,
		enrollments:   enrollmentHandler,
		payments:      paymentHandler,
		paymentConfig: paymentConfigHandler,
		exports:       exportHandler,
	}, authService, userRepo)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type routeHandlers struct {
	auth          *handler.AuthHandler
	users         *handler.UserHandler
	students      *handler.StudentHandler
	courses       *handler.CourseHandler
	discounts     *handler.DiscountHandler
	enrollments   *handler.EnrollmentHandler
	payments      *handler.PaymentHandler
	paymentConfig *handler.PaymentConfigHandler
	exports       *handler.ExportHandler
}

func registerRoutes(api *gin.RouterGroup, h routeHandlers, authService *service.AuthService, userRepo *repository.UserRepository) {
	adminOnly := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)

	// Signed-token downloads carry their own auth in the token.
	api.GET("/vouchers/:token", h.payments.DownloadVoucher)
	api.GET("/exports/:token", h.exports.Download)

	auth := api.Group("/auth")
	{
		auth.POST("/login", h.auth.Login)
		auth.POST("/refresh", h.auth.Refresh)

		protected := auth.Group("", middleware.JWT(authService))
		protected.POST("/logout", h.auth.Logout)
		protected.POST("/change-password", h.auth.ChangePassword)
		protected.GET("/me", h.auth.Me)
	}

	private := api.Group("", middleware.JWT(authService))

	users := private.Group("/users", adminOnly)
	{
		users.GET("", h.users.List)
		users.GET("/:id", h.users.Get)
		users.POST("", h.users.Create)
		users.PUT("/:id", h.users.Update)
		users.DELETE("/:id", h.users.Delete)
	}

	students := private.Group("/estudiantes")
	{
		students.GET("", adminOnly, h.students.List)
		students.GET("/:id", h.students.Get)
		students.POST("", adminOnly, h.students.Create)
		students.PUT("/:id", adminOnly, h.students.Update)
	}

	courses := private.Group("/cursos")
	{
		courses.GET("", h.courses.List)
		courses.GET("/:id", h.courses.Get)
		courses.POST("", adminOnly, h.courses.Create)
		courses.PUT("/:id", adminOnly, h.courses.Update)
	}

	discounts := private.Group("/descuentos", adminOnly)
	{
		discounts.GET("", h.discounts.List)
		discounts.GET("/:id", h.discounts.Get)
		discounts.POST("", h.discounts.Create)
		discounts.PUT("/:id", h.discounts.Update)
	}

	enrollments := private.Group("/inscripciones")
	{
		enrollments.GET("", h.enrollments.List)
		enrollments.GET("/:id", h.enrollments.Get)
		enrollments.POST("", adminOnly, h.enrollments.Create)
		enrollments.PUT("/:id/estado", adminOnly, h.enrollments.ChangeState)
		enrollments.GET("/:id/siguiente-pago", h.enrollments.DueInfo)
		enrollments.GET("/:id/pagos", h.enrollments.Payments)
		enrollments.GET("/:id/resumen", h.enrollments.Summary)
		enrollments.POST("/:id/pagos", h.payments.Create)
	}

	payments := private.Group("/pagos")
	{
		payments.GET("", h.payments.List)
		payments.GET("/pendientes", adminOnly, h.payments.Pending)
		payments.GET("/:id", h.payments.Get)
		payments.POST("/comprobantes", h.payments.UploadVoucher)
		payments.PUT("/:id/aprobar", adminOnly, middleware.Audit(userRepo, "APPROVE", "payment"), h.payments.Approve)
		payments.PUT("/:id/rechazar", adminOnly, middleware.Audit(userRepo, "REJECT", "payment"), h.payments.Reject)
		payments.POST("/:id/recibo", h.exports.Receipt)
	}

	paymentConfig := private.Group("/configuracion-pago")
	{
		paymentConfig.GET("", h.paymentConfig.GetActive)
		paymentConfig.POST("", adminOnly, middleware.Audit(userRepo, "ACTIVATE", "payment_config"), h.paymentConfig.Activate)
		paymentConfig.PUT("/:id", adminOnly, h.paymentConfig.Update)
		paymentConfig.DELETE("/:id", adminOnly, h.paymentConfig.Deactivate)
	}

	reports := private.Group("/reportes", adminOnly)
	{
		reports.POST("/pagos", h.exports.PaymentsReport)
	}
}

func scheduleCleanup(ctx context.Context, q *jobs.Queue, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			job := jobs.Job{ID: fmt.Sprintf("cleanup-%d", t.Unix()), Type: "export-cleanup"}
			if err := q.Enqueue(job); err != nil {
				logr.Warn("failed to enqueue export cleanup", zap.Error(err))
			}
		}
	}
}
