package realtime

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/nao1215/vaultdesk/pkg/logging"
	"github.com/nao1215/vaultdesk/pkg/middleware"
)

// Handler は /ws エンドポイント。
type Handler struct {
	registry   *Registry
	jwtSecret  string
	sendBuffer int
	upgrader   websocket.Upgrader
}

// NewHandler は新しいHandlerを生成する。allowedOrigins が空の場合は同一オリジンのみ許可し、
// "*" を含む場合はすべて許可する。
func NewHandler(registry *Registry, jwtSecret string, sendBuffer int, allowedOrigins []string) *Handler {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	h := &Handler{
		registry:   registry,
		jwtSecret:  jwtSecret,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	if len(allowedOrigins) > 0 {
		origins := middleware.NewOrigins(allowedOrigins)
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || origins.Allows(origin)
		}
	}
	return h
}

// Serve はトークンを検証してWebSocketにアップグレードするハンドラ。
// トークンは token クエリパラメータまたはAuthorizationヘッダーで渡す。
func (h *Handler) Serve() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token, _ = middleware.BearerToken(c.GetHeader("Authorization"))
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "トークンが必要です"})
			return
		}
		claims, err := middleware.ParseToken(h.jwtSecret, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logging.Ctx(c.Request.Context()).Warn().Err(err).Msg("WebSocketへのアップグレードに失敗")
			return
		}

		client := NewClient(h.registry, conn, Identity{UserID: claims.UserID, IsAdmin: claims.IsAdmin}, h.sendBuffer)
		logging.Ctx(c.Request.Context()).Debug().Uint64("connection_id", client.ID()).
			Str("user_id", claims.UserID).Msg("WebSocket接続を開始")
		client.Serve()
	}
}
