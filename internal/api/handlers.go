package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/heavenslive/cred-parity-service/internal/logger"
	"github.com/heavenslive/cred-parity-service/internal/middleware"
	"github.com/heavenslive/cred-parity-service/internal/models"
	"github.com/heavenslive/cred-parity-service/internal/parity"
	"github.com/heavenslive/cred-parity-service/internal/ratelimit"
)

const serviceVersion = "1.0.0"

// HandlerConfig carries the collaborators the handlers need
type HandlerConfig struct {
	Logger      *logger.Logger
	Cache       *parity.Cache
	Engine      *parity.Engine
	RateLimiter *ratelimit.Limiter
}

// Handlers contains all HTTP handlers
type Handlers struct {
	logger      *logger.Logger
	cache       *parity.Cache
	engine      *parity.Engine
	rateLimiter *ratelimit.Limiter
	startTime   time.Time
}

// NewHandlers creates a new handlers instance
func NewHandlers(handlerConfig HandlerConfig) *Handlers {
	return &Handlers{
		logger:      handlerConfig.Logger,
		cache:       handlerConfig.Cache,
		engine:      handlerConfig.Engine,
		rateLimiter: handlerConfig.RateLimiter,
		startTime:   time.Now(),
	}
}

// SetupRoutes configures all the routes using Gin
func (handlers *Handlers) SetupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.RequestLogger(handlers.logger))
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestID())
	router.Use(handlers.corsMiddleware())

	if handlers.rateLimiter != nil {
		router.Use(handlers.rateLimitMiddleware())
	}

	// Health check endpoint
	router.GET("/health", handlers.HealthCheck)

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/currencies", handlers.ListCurrencies)
		apiV1.POST("/convert", handlers.ConvertAmount)
	}

	return router
}

// HealthCheck handles health check requests
func (handlers *Handlers) HealthCheck(context *gin.Context) {
	healthStatus := "healthy"
	if handlers.cache != nil && handlers.cache.Stale() {
		// A stale cache still serves; flag it so operators can see a source
		// that has stopped answering.
		healthStatus = "degraded"
	}

	context.JSON(http.StatusOK, models.HealthCheck{
		Status:    healthStatus,
		Timestamp: time.Now(),
		Version:   serviceVersion,
		Uptime:    time.Since(handlers.startTime).String(),
	})
}

// ListCurrencies returns every supported currency with its parity rate
func (handlers *Handlers) ListCurrencies(context *gin.Context) {
	requestContext := context.Request.Context()

	currencies, listError := handlers.cache.GetAllCurrencies(requestContext)
	if listError != nil {
		handlers.logger.Errorf("Failed to list currencies: %v", listError)
		handlers.writeErrorResponse(context, http.StatusInternalServerError, "failed to load currencies")
		return
	}

	context.JSON(http.StatusOK, models.CurrenciesResponse{
		Currencies: currencies,
		Total:      len(currencies),
		Timestamp:  time.Now(),
	})
}

// ConvertAmount converts an amount between two currency codes
func (handlers *Handlers) ConvertAmount(context *gin.Context) {
	var request models.ConvertRequest
	if bindError := context.ShouldBindJSON(&request); bindError != nil {
		handlers.writeErrorResponse(context, http.StatusBadRequest, "invalid request body")
		return
	}

	if request.FromCurrency == "" || request.ToCurrency == "" {
		handlers.writeErrorResponse(context, http.StatusBadRequest, "fromCurrency and toCurrency are required")
		return
	}

	fromCode := strings.ToUpper(request.FromCurrency)
	toCode := strings.ToUpper(request.ToCurrency)
	requestContext := context.Request.Context()

	conversion, convertError := handlers.engine.Convert(requestContext, request.Amount, fromCode, toCode)
	if convertError != nil {
		handlers.writeConversionError(context, convertError)
		return
	}

	context.JSON(http.StatusOK, models.ConvertResponse{Conversion: conversion})
}

// writeConversionError maps parity error kinds onto HTTP statuses. Internal
// failures get a generic body so source details never reach the client.
func (handlers *Handlers) writeConversionError(context *gin.Context, convertError error) {
	parityError, isParityError := parity.AsError(convertError)
	if !isParityError {
		handlers.logger.Errorf("Conversion failed: %v", convertError)
		handlers.writeErrorResponse(context, http.StatusInternalServerError, "conversion failed")
		return
	}

	switch parityError.Type {
	case parity.ErrorTypeInvalidAmount, parity.ErrorTypeUnsupportedCurrency:
		handlers.writeErrorResponse(context, http.StatusBadRequest, parityError.Message)
	default:
		handlers.logger.Errorf("Conversion failed: %v", convertError)
		handlers.writeErrorResponse(context, http.StatusInternalServerError, "conversion temporarily unavailable")
	}
}

// writeErrorResponse writes an error response using Gin context
func (handlers *Handlers) writeErrorResponse(context *gin.Context, statusCode int, errorMessage string) {
	context.JSON(statusCode, models.ErrorResponse{Error: errorMessage})
}

// corsMiddleware adds CORS headers using Gin middleware
func (handlers *Handlers) corsMiddleware() gin.HandlerFunc {
	return func(context *gin.Context) {
		context.Header("Access-Control-Allow-Origin", "*")
		context.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		context.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if context.Request.Method == "OPTIONS" {
			context.AbortWithStatus(http.StatusOK)
			return
		}

		context.Next()
	}
}

// rateLimitMiddleware provides rate limiting using Gin middleware
func (handlers *Handlers) rateLimitMiddleware() gin.HandlerFunc {
	return func(context *gin.Context) {
		clientIP := handlers.rateLimiter.GetClientIP(context.Request)

		if !handlers.rateLimiter.Allow(clientIP) {
			handlers.logger.Warnf("Rate limit exceeded for IP: %s", clientIP)
			context.Header("X-RateLimit-Limit", strconv.Itoa(handlers.rateLimiter.Configuration.RateLimitRequests))
			context.Header("X-RateLimit-Remaining", "0")
			context.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(handlers.rateLimiter.Configuration.RateLimitWindow).Unix(), 10))
			context.JSON(http.StatusTooManyRequests, models.ErrorResponse{Error: "Rate limit exceeded"})
			context.Abort()
			return
		}

		context.Next()
	}
}
