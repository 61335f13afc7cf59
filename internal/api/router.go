package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/technotronz/portal-api/docs"
	"github.com/technotronz/portal-api/internal/api/handler"
	"github.com/technotronz/portal-api/internal/api/middleware"
	"github.com/technotronz/portal-api/internal/core/ports"
	"github.com/technotronz/portal-api/internal/core/service"
	"github.com/technotronz/portal-api/internal/infrastructure/config"
	mongodb "github.com/technotronz/portal-api/internal/infrastructure/db/mongo"
	redisdb "github.com/technotronz/portal-api/internal/infrastructure/db/redis"
	"github.com/technotronz/portal-api/internal/infrastructure/gateway"
	"github.com/technotronz/portal-api/pkg/logger"
)

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, mailer ports.Mailer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(logger.Component("http"))

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("portal"))
	e.Use(middleware.Gate([]byte(cfg.JWTSecret)))

	// --- Dependencies ---
	userRepo := mongodb.NewUserRepository(db)
	resetRepo := mongodb.NewResetTokenRepository(db)
	paymentRepo := mongodb.NewPaymentRepository(db)
	entitlementRepo := mongodb.NewEntitlementRepository(db)
	dedup := redisdb.NewCallbackDedup(rdb)

	payapp := gateway.NewClient(gateway.Config{
		BaseURL:      cfg.PayApp.BaseURL,
		ClientID:     cfg.PayApp.ClientID,
		ClientSecret: cfg.PayApp.ClientSecret,
	}, logger.Component("payapp"))

	authService := service.NewAuthService(
		userRepo, resetRepo, mailer,
		cfg.JWTSecret, 0, cfg.AppBaseURL,
		logger.Component("auth"),
	)
	paymentService := service.NewPaymentService(
		paymentRepo, entitlementRepo, payapp, dedup,
		cfg.PayApp.Provider, cfg.PayApp.ReturnToken,
		cfg.Payment.MockMode(),
		logger.Component("payment"),
	)

	secureCookies := cfg.Env == "production"
	authHandler := handler.NewAuthHandler(authService, cfg.JWTSecret, secureCookies)
	userHandler := handler.NewUserHandler(authService, paymentService, secureCookies)
	paymentHandler := handler.NewPaymentHandler(paymentService, authService, logger.Component("payment"))

	// --- Auth routes (public) ---
	auth := e.Group("/api/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/logout", authHandler.LogoutRedirect)
	auth.GET("/session", authHandler.Session)
	auth.POST("/forgot-password", authHandler.ForgotPassword)
	auth.POST("/reset-password", authHandler.ResetPassword)

	// --- User routes (session required) ---
	user := e.Group("/api/user")
	user.GET("/me", userHandler.Me)
	user.GET("/payment-status", userHandler.PaymentStatus)
	user.POST("/complete-registration", userHandler.CompleteRegistration)

	// --- Payment routes ---
	e.POST("/api/payment/create", paymentHandler.Create) // session required
	e.GET("/api/payment/verify", paymentHandler.Verify)
	e.GET("/api/payment/check-status", paymentHandler.CheckStatus)
	// Legacy callback alias kept for gateway configs that still point at
	// the old confirmation page.
	e.GET("/ranleeconfirmation.aspx", paymentHandler.Verify)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(db, rdb)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Observability & docs ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
