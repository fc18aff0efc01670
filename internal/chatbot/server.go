package chatbot

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/vaultdesk/pkg/logging"
	"github.com/nao1215/vaultdesk/pkg/middleware"
)

// Server はチャットボットAPIのハンドラ群。
type Server struct {
	responder Responder
	history   *History
}

// NewServer は新しいServerを生成する。
func NewServer(responder Responder, history *History) *Server {
	return &Server{responder: responder, history: history}
}

// RegisterRoutes は認証済みグループにルートを登録する。
func (s *Server) RegisterRoutes(api *gin.RouterGroup) {
	chat := api.Group("/chat")
	chat.POST("", s.handleChat())
	chat.GET("/history", s.handleHistory())
}

type chatRequest struct {
	Message string `json:"message" binding:"required,max=2000"`
}

// handleChat は応答を生成して会話履歴に残すハンドラ。
// 履歴の記録に失敗しても応答は返す。
func (s *Server) handleChat() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req chatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "messageは必須です"})
			return
		}
		ctx := c.Request.Context()
		userID := middleware.GetUserID(c)

		reply, err := s.responder.Respond(ctx, userID, req.Message)
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Msg("チャットボット応答エラー")
			c.JSON(http.StatusBadGateway, gin.H{"error": "チャットボットが応答できませんでした"})
			return
		}
		if _, err := s.history.Append(ctx, Exchange{UserID: userID, Message: req.Message, Response: reply}); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("会話履歴の記録に失敗")
		}
		c.JSON(http.StatusOK, gin.H{"response": reply})
	}
}

// handleHistory は直近の会話履歴を古い順に返すハンドラ。
func (s *Server) handleHistory() gin.HandlerFunc {
	return func(c *gin.Context) {
		history, err := s.history.Recent(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("会話履歴取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "会話履歴の取得に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, history)
	}
}
