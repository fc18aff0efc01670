package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/vaultdesk/internal/biometric"
	"github.com/nao1215/vaultdesk/internal/chatbot"
	"github.com/nao1215/vaultdesk/internal/config"
	"github.com/nao1215/vaultdesk/internal/mfa"
	"github.com/nao1215/vaultdesk/internal/notification"
	"github.com/nao1215/vaultdesk/internal/realtime"
	"github.com/nao1215/vaultdesk/internal/stats"
	"github.com/nao1215/vaultdesk/internal/ticket"
	"github.com/nao1215/vaultdesk/internal/user"
	"github.com/nao1215/vaultdesk/internal/vault"
	"github.com/nao1215/vaultdesk/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// routes はルーターに登録するハンドラ群。
type routes struct {
	ws           *realtime.Handler
	users        *user.Server
	notification *notification.Server
	tickets      *ticket.Server
	biometric    *biometric.Server
	vault        *vault.Server
	chatbot      *chatbot.Server
	mfa          *mfa.Server
	stats        *stats.Reader
}

func newRouter(cfg *config.Config, r routes) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.Recovery(),
		middleware.CORS(cfg.Server.CORSOrigins),
	)

	// ヘルスチェック
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "vaultdesk"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", r.ws.Serve())

	api := router.Group("/api/v1")
	r.users.RegisterPublicRoutes(api)

	protected := api.Group("", middleware.JWTAuth(cfg.Auth.JWTSecret))
	{
		r.users.RegisterRoutes(protected)
		r.notification.RegisterRoutes(protected)
		r.tickets.RegisterRoutes(protected)
		r.biometric.RegisterRoutes(protected)
		r.vault.RegisterRoutes(protected)
		r.chatbot.RegisterRoutes(protected)
		r.mfa.RegisterRoutes(protected)
		protected.GET("/stats", stats.Handler(r.stats))
	}
	return router
}
