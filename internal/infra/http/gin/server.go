package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"chatdesk/internal/infra/config"
	"chatdesk/internal/infra/obs"
)

// WebhookHTTP receives inbound provider updates.
type WebhookHTTP interface {
	Receive(c *gin.Context)
	Status(c *gin.Context)
}

// DeskHTTP serves the external ticketing system.
type DeskHTTP interface {
	PendingSync(c *gin.Context)
	MarkSynced(c *gin.Context)
	AttachTicket(c *gin.Context)
	Get(c *gin.Context)
	ByTicket(c *gin.Context)
	Recent(c *gin.Context)
	Stats(c *gin.Context)
}

// AdminHTTP exposes the operational endpoints.
type AdminHTTP interface {
	RegisterWebhook(c *gin.Context)
	DeleteWebhook(c *gin.Context)
	WebhookInfo(c *gin.Context)
	TestMessage(c *gin.Context)
}

type Handlers struct {
	Webhook WebhookHTTP
	Desk    DeskHTTP
	Admin   AdminHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length", "Content-Type", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	if h.Webhook != nil {
		router.POST("/webhook/telegram", h.Webhook.Receive)
		router.GET("/webhook/telegram", h.Webhook.Status)
	}

	if h.Desk != nil {
		api := router.Group("/api/v1")
		api.GET("/conversations/pending-sync", h.Desk.PendingSync)
		api.GET("/conversations/recent", h.Desk.Recent)
		api.GET("/conversations/stats", h.Desk.Stats)
		api.GET("/conversations/ticket/:ticket_id", h.Desk.ByTicket)
		api.GET("/conversations/:id", h.Desk.Get)
		api.POST("/conversations/:id/synced", h.Desk.MarkSynced)
		api.PUT("/conversations/:id/ticket", h.Desk.AttachTicket)
	}

	if h.Admin != nil {
		admin := router.Group("/admin")
		admin.POST("/webhook/register", h.Admin.RegisterWebhook)
		admin.POST("/webhook/delete", h.Admin.DeleteWebhook)
		admin.GET("/webhook/info", h.Admin.WebhookInfo)
		admin.POST("/test/message", h.Admin.TestMessage)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
