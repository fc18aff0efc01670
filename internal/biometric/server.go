package biometric

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/vaultdesk/internal/notification"
	"github.com/nao1215/vaultdesk/pkg/event"
	"github.com/nao1215/vaultdesk/pkg/logging"
	"github.com/nao1215/vaultdesk/pkg/middleware"
)

// Notifier は通知をバックグラウンドで配信する。
type Notifier interface {
	Dispatch(ctx context.Context, req notification.Request)
}

// Server は生体認証ログAPIのハンドラ群。
type Server struct {
	log      *Log
	notifier Notifier
}

// NewServer は新しいServerを生成する。
func NewServer(log *Log, notifier Notifier) *Server {
	return &Server{log: log, notifier: notifier}
}

// RegisterRoutes は認証済みグループにルートを登録する。
func (s *Server) RegisterRoutes(api *gin.RouterGroup) {
	g := api.Group("/biometric")
	g.POST("/log", s.handleLog())
	g.GET("/history", s.handleHistory())
}

// logRequest は試行記録リクエストのJSON構造。
type logRequest struct {
	Success *bool  `json:"success" binding:"required"`
	Method  string `json:"method" binding:"max=50"`
}

// handleLog は試行を記録し、失敗なら全管理者に biometric_failure 通知を送るハンドラ。
func (s *Server) handleLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req logRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "successを真偽値で指定してください"})
			return
		}
		userID := middleware.GetUserID(c)
		a, err := s.log.Record(c.Request.Context(), Attempt{
			UserID:    userID,
			Success:   *req.Success,
			Method:    req.Method,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("生体認証ログ記録エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "生体認証ログの記録に失敗しました"})
			return
		}

		if !a.Success {
			logging.Ctx(c.Request.Context()).Warn().Str("user_id", userID).Str("ip", a.IPAddress).Msg("生体認証に失敗")
			s.notifier.Dispatch(c.Request.Context(), notification.Request{
				Selector: notification.AllAdmins(),
				Type:     event.TypeBiometricFailure,
				Payload: event.MustPayload(event.BiometricFailureData{
					UserID:   userID,
					Username: middleware.GetUsername(c),
					IP:       a.IPAddress,
					Method:   a.Method,
				}),
			})
		}
		c.JSON(http.StatusCreated, a)
	}
}

// handleHistory は直近の試行履歴を返すハンドラ。
func (s *Server) handleHistory() gin.HandlerFunc {
	return func(c *gin.Context) {
		attempts, err := s.log.History(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("生体認証履歴取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "生体認証履歴の取得に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, attempts)
	}
}
