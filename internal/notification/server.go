package notification

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/vaultdesk/pkg/event"
	"github.com/nao1215/vaultdesk/pkg/logging"
	"github.com/nao1215/vaultdesk/pkg/middleware"
)

// Server は通知APIのハンドラ群。
type Server struct {
	// ledger は通知台帳。
	ledger *Ledger
	// prefs は配信設定ストア。
	prefs *Preferences
	// orchestrator は管理者からの送信要求を配信する。
	orchestrator *Orchestrator
}

// NewServer は新しいServerを生成する。
func NewServer(ledger *Ledger, prefs *Preferences, orchestrator *Orchestrator) *Server {
	return &Server{ledger: ledger, prefs: prefs, orchestrator: orchestrator}
}

// RegisterRoutes は認証済みグループに通知APIを登録する。
func (s *Server) RegisterRoutes(api *gin.RouterGroup) {
	notifications := api.Group("/notifications")
	{
		// 通知一覧取得
		notifications.GET("", s.handleList())
		// 未読通知一覧取得
		notifications.GET("/unread", s.handleListUnread())
		// 未読件数取得
		notifications.GET("/unread/count", s.handleUnreadCount())
		// 通知を既読にする
		notifications.PUT("/:id/read", s.handleMarkAsRead())
		// 全通知を既読にする
		notifications.PUT("/read-all", s.handleMarkAllAsRead())
		// 配信設定
		notifications.GET("/preferences", s.handleGetPreferences())
		notifications.PUT("/preferences", s.handleUpdatePreferences())
		// 管理者による通知送信
		notifications.POST("/send", middleware.RequireAdmin(), s.handleSend())
	}
}

// parseLimit はlimitクエリを読む。未指定の場合は0（既定件数）。
func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// handleList は認証済みユーザーの通知一覧を新しい順に返すハンドラ。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := parseLimit(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limitは0以上の整数で指定してください"})
			return
		}
		notifications, err := s.ledger.ListForUser(c.Request.Context(), middleware.GetUserID(c), limit)
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("通知一覧取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知一覧の取得に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, notifications)
	}
}

// handleListUnread は認証済みユーザーの未読通知一覧を返すハンドラ。
func (s *Server) handleListUnread() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := parseLimit(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limitは0以上の整数で指定してください"})
			return
		}
		notifications, err := s.ledger.ListUnread(c.Request.Context(), middleware.GetUserID(c), limit)
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("未読通知一覧取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "未読通知一覧の取得に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, notifications)
	}
}

// handleUnreadCount は未読件数を返すハンドラ。
func (s *Server) handleUnreadCount() gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := s.ledger.UnreadCount(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("未読件数取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "未読件数の取得に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": count})
	}
}

// handleMarkAsRead は指定された通知を既読にするハンドラ。
// 他のユーザーの通知は存在しないものとして404を返す。
func (s *Server) handleMarkAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		_, err := s.ledger.MarkRead(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "通知が見つかりません"})
			return
		}
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("通知既読処理エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の既読処理に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "通知を既読にしました"})
	}
}

// handleMarkAllAsRead は認証済みユーザーの全通知を既読にし、更新件数を返すハンドラ。
func (s *Server) handleMarkAllAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := s.ledger.MarkAllRead(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("全通知既読処理エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "全通知の既読処理に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "全通知を既読にしました", "count": n})
	}
}

// handleGetPreferences は認証済みユーザーの配信設定を返すハンドラ。
func (s *Server) handleGetPreferences() gin.HandlerFunc {
	return func(c *gin.Context) {
		pref, err := s.prefs.Get(c.Request.Context(), middleware.GetUserID(c))
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("通知設定取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知設定の取得に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, pref)
	}
}

// preferenceRequest は配信設定更新リクエストのJSON構造。両方の項目が必須。
type preferenceRequest struct {
	// EmailEnabled はメール通知を受け取るかどうか。
	EmailEnabled *bool `json:"email_enabled" binding:"required"`
	// InAppEnabled はアプリ内通知を受け取るかどうか。
	InAppEnabled *bool `json:"in_app_enabled" binding:"required"`
}

// handleUpdatePreferences は認証済みユーザーの配信設定を上書きするハンドラ。
func (s *Server) handleUpdatePreferences() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req preferenceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email_enabled と in_app_enabled を真偽値で指定してください"})
			return
		}

		pref := Preference{EmailEnabled: *req.EmailEnabled, InAppEnabled: *req.InAppEnabled}
		err := s.prefs.Set(c.Request.Context(), middleware.GetUserID(c), pref)
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("通知設定更新エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知設定の更新に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, pref)
	}
}

// sendRequest は管理者による通知送信リクエストのJSON構造。
type sendRequest struct {
	// UserID は通知先のユーザーID。空の場合は全管理者に送る。
	UserID string `json:"user_id"`
	// Type は通知の種類。
	Type event.Type `json:"type" binding:"required"`
	// Title はタイトル。空の場合は種類ごとのテンプレートを使う。
	Title string `json:"title"`
	// Message は本文。空の場合は種類ごとのテンプレートを使う。
	Message string `json:"message"`
	// Data は添付データ。
	Data event.Payload `json:"data"`
}

// handleSend は通知の配信を受け付けるハンドラ。配信の完了は待たずに202を返す。
func (s *Server) handleSend() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です"})
			return
		}
		if !req.Type.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "未定義の通知種別です"})
			return
		}

		selector := AllAdmins()
		if req.UserID != "" {
			if _, err := s.prefs.Get(c.Request.Context(), req.UserID); errors.Is(err, ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
				return
			} else if err != nil {
				logging.Ctx(c.Request.Context()).Error().Err(err).Msg("通知先ユーザー取得エラー")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の送信に失敗しました"})
				return
			}
			selector = SingleUser(req.UserID)
		}

		s.orchestrator.Dispatch(c.Request.Context(), Request{
			Selector: selector,
			Type:     req.Type,
			Title:    req.Title,
			Message:  req.Message,
			Payload:  req.Data,
		})
		c.JSON(http.StatusAccepted, gin.H{"message": "通知の送信を受け付けました", "selector": selector.String()})
	}
}
