// Package httpapi wires the HTTP transport (Gin) to the assistant services,
// middleware and route handlers.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID and Identity
//  3. AccessLog (redacting, request-scoped logger)
//  4. Recovery
//  5. BodyLimit
//  6. Metrics
//  7. Idempotency validator, before the limiter so replays bypass it
//  8. Rate limiter, chat turns weighted
//  9. CORS, security headers and gzip
package httpapi

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-vehicle-assistant/docs"
	"github.com/tbourn/go-vehicle-assistant/internal/config"
	"github.com/tbourn/go-vehicle-assistant/internal/http/handlers"
	"github.com/tbourn/go-vehicle-assistant/internal/http/middleware"
	"github.com/tbourn/go-vehicle-assistant/internal/repo"
	"github.com/tbourn/go-vehicle-assistant/internal/services"
)

// turnCost is the rate-limit weight of one chat turn. A turn can fan out
// into several model and OCR calls.
const turnCost = 5

// already-compressed bodies
var noGzipPaths = regexp.MustCompile(`^/metrics$|/invoices/[^/]+/image$`)

var corsHeaders = []string{
	"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match",
	middleware.HeaderUserID, middleware.HeaderIdempotencyKey,
}

// RegisterRoutes attaches middleware and endpoints to r. Turns and Vehicles
// in d are required; chat and message services default to the gorm-backed
// ones over db.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config, d handlers.Deps) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID(), middleware.Identity())
	r.Use(middleware.AccessLog(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(middleware.BodyLimit(cfg.MaxUploadBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, userID, chatID, key string) (string, bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, chatID, key, time.Now().UTC())
			if err != nil || rec == nil {
				return "", false, err
			}
			return rec.RequestHash, true, nil
		},
	))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP(), middleware.TurnCost(turnCost))
	r.Use(rl.Handler())

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{noGzipPaths.String()})))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if d.Chats == nil {
		d.Chats = services.NewChatService(db, services.RepoChats{})
	}
	if d.Messages == nil {
		d.Messages = services.NewMessageService(db)
	}
	d.DB = db
	if d.IdempotencyTTL == 0 {
		d.IdempotencyTTL = cfg.IdempotencyTTL
	}
	h := handlers.New(d)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.POST("/chats", h.CreateChat)
		api.GET("/chats", h.ListChats)
		api.PUT("/chats/:id/title", h.UpdateChatTitle)

		api.GET("/chats/:id/messages", h.ListMessages)
		api.POST("/chats/:id/messages", h.PostMessage)
		api.GET("/chats/:id/messages/:mid", h.GetMessage)

		api.GET("/vehicles", h.ListVehicles)
		api.GET("/vehicles/:id/maintenance-status", h.MaintenanceStatus)
		api.GET("/invoices/:id/image", h.InvoiceImage)
	}
}

// corsMiddleware allows every origin when none are configured, otherwise
// only the listed ones.
func corsMiddleware(origins []string) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  corsHeaders,
		ExposeHeaders: []string{"X-Request-ID", "ETag", "Retry-After", "Idempotency-Replayed"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return cors.New(c)
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
