package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/staff-remuneration-api/api/swagger"
	"github.com/noah-isme/staff-remuneration-api/internal/handler"
	"github.com/noah-isme/staff-remuneration-api/internal/middleware"
	"github.com/noah-isme/staff-remuneration-api/internal/models"
	"github.com/noah-isme/staff-remuneration-api/internal/repository"
	"github.com/noah-isme/staff-remuneration-api/internal/service"
	"github.com/noah-isme/staff-remuneration-api/pkg/cache"
	"github.com/noah-isme/staff-remuneration-api/pkg/config"
	"github.com/noah-isme/staff-remuneration-api/pkg/database"
	"github.com/noah-isme/staff-remuneration-api/pkg/export"
	"github.com/noah-isme/staff-remuneration-api/pkg/imagehost"
	"github.com/noah-isme/staff-remuneration-api/pkg/logger"
	"github.com/noah-isme/staff-remuneration-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/staff-remuneration-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/staff-remuneration-api/pkg/middleware/requestid"
	"github.com/noah-isme/staff-remuneration-api/pkg/storage"
)

// @title Staff Remuneration API
// @version 1.0.0
// @description Examination remuneration bills, reports and staff accounts
// @BasePath /api
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, bill cache disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	images, mediaHandler, err := buildImageHost(cfg.Media)
	if err != nil {
		logr.Fatal("failed to prepare media storage", zap.Error(err))
	}

	metrics := service.NewMetricsService()
	validate := service.NewValidator()
	mail := mailer.NewSMTPMailer(cfg.Mail)

	billRepo := repository.NewBillRepository(db)
	userRepo := repository.NewUserRepository(db)
	otpRepo := repository.NewOTPRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Bills.CacheTTL, logr, cfg.Bills.CacheEnabled && redisClient != nil)
	calc := service.NewAmountCalculator()
	billValidator := service.NewBillValidator(validate, calc, service.BillValidatorConfig{
		StrictTotals: cfg.Bills.StrictTotals,
		Tolerance:    cfg.Bills.TotalsTolerance,
	})
	billSvc := service.NewBillService(billRepo, billValidator, calc, cacheSvc, logr)
	otpSvc := service.NewOTPService(otpRepo, mail, metrics, logr, service.OTPConfig{
		LoginTTL: cfg.OTP.LoginTTL,
		ResetTTL: cfg.OTP.ResetTTL,
	})
	authSvc := service.NewAuthService(userRepo, auditRepo, otpSvc, images, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	profileSvc := service.NewProfileService(userRepo, auditRepo, otpSvc, images, validate, logr)
	assembler := service.NewDocumentAssembler(cfg.Institution, cfg.Renderer.IncludeBankForm, calc)
	renderer := export.NewPDFRenderer(export.PDFOptions{
		PageSize:   cfg.Renderer.PageSize,
		MarginMM:   cfg.Renderer.MarginMM,
		FontFamily: cfg.Renderer.FontFamily,
	}, metrics)
	reportSvc := service.NewReportService(billSvc, userRepo, assembler, renderer, mail, metrics, logr)

	authHandler := handler.NewAuthHandler(authSvc, cfg.Media.MaxFileSizeBytes)
	profileHandler := handler.NewProfileHandler(profileSvc, cfg.Media.MaxFileSizeBytes)
	billHandler := handler.NewBillHandler(billSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, readinessChecks(db, redisClient))

	r := gin.New()
	r.MaxMultipartMemory = cfg.Media.MaxFileSizeBytes
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/metrics/summary", middleware.JWT(authSvc), middleware.RequireRole(models.RoleAdmin), metricsHandler.Snapshot)
	if mediaHandler != nil {
		r.GET("/media/:token", mediaHandler.Serve)
	}

	api := r.Group(cfg.APIPrefix)

	authGroup := api.Group("/authentication")
	authGroup.POST("/signup", authHandler.Signup)
	authGroup.POST("/login/email-password", authHandler.LoginEmailPassword)
	authGroup.POST("/login/number-password", authHandler.LoginMobilePassword)
	authGroup.POST("/login/sent-otp", authHandler.SendLoginOTP)
	authGroup.POST("/login/email-otp", authHandler.LoginEmailOTP)

	profileGroup := api.Group("/profile")
	profileGroup.POST("/change-password/send-otp", profileHandler.SendResetOTP)
	profileGroup.POST("/change-password/verify-otp", profileHandler.ResetPassword)
	profileGroup.GET("", middleware.JWT(authSvc), profileHandler.Get)
	profileGroup.PUT("", middleware.JWT(authSvc), profileHandler.Update)

	audit := func(action string) gin.HandlerFunc {
		return middleware.Audit(auditRepo, logr, action, "bill")
	}

	billGroup := api.Group("/bill")
	billGroup.Use(middleware.JWT(authSvc))
	billGroup.POST("", audit(models.AuditActionBillCreate), billHandler.Create)
	billGroup.GET("", billHandler.List)
	billGroup.GET("/:id", billHandler.Get)
	billGroup.PUT("/:id", audit(models.AuditActionBillUpdate), billHandler.Update)
	billGroup.DELETE("/:id", audit(models.AuditActionBillDelete), billHandler.Delete)

	billGroup.GET("/download/bank-detail-form", reportHandler.DownloadBankForm)
	billGroup.GET("/download/personalBill/:id", reportHandler.DownloadPersonal)
	billGroup.GET("/download/:id", reportHandler.DownloadMain)

	billGroup.GET("/mail/mainBill/:id", audit(models.AuditActionBillMail), reportHandler.MailMain)
	billGroup.POST("/mail/mainBill/other/:id", audit(models.AuditActionBillMail), reportHandler.MailMainOther)
	billGroup.GET("/mail/personalBill/:id", audit(models.AuditActionBillMail), reportHandler.MailPersonal)
	billGroup.POST("/mail/personalBill/other/:id", audit(models.AuditActionBillMail), reportHandler.MailPersonalOther)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
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

// buildImageHost prefers Cloudinary and falls back to signed local storage,
// in which case the returned media handler serves the stored files.
func buildImageHost(cfg config.MediaConfig) (imagehost.Host, *handler.MediaHandler, error) {
	if cfg.CloudinaryEnabled() {
		return imagehost.NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder), nil, nil
	}
	store, err := storage.NewLocalStorage(cfg.StorageDir)
	if err != nil {
		return nil, nil, err
	}
	signer := storage.NewSignedURLSigner(cfg.SignedURLSecret, cfg.SignedURLTTL)
	return imagehost.NewLocal(store, signer, "/media/", cfg.CloudinaryFolder), handler.NewMediaHandler(signer, store), nil
}

func readinessChecks(db handler.Pinger, client *redis.Client) map[string]handler.Pinger {
	checks := map[string]handler.Pinger{"postgres": db}
	if client != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}
	return checks
}
