package mfa

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/vaultdesk/pkg/logging"
	"github.com/nao1215/vaultdesk/pkg/middleware"
)

// Server はMFA APIのハンドラ群。
type Server struct {
	svc *Service
}

// NewServer は新しいServerを生成する。
func NewServer(svc *Service) *Server {
	return &Server{svc: svc}
}

// RegisterRoutes は認証済みグループにルートを登録する。
func (s *Server) RegisterRoutes(api *gin.RouterGroup) {
	g := api.Group("/mfa")
	{
		g.POST("/setup", s.handleSetup())
		g.POST("/verify", s.handleVerify())
		g.POST("/disable", s.handleDisable())
		g.GET("/status", s.handleStatus())
	}
}

type codeRequest struct {
	Code string `json:"code" binding:"required,len=6,numeric"`
}

func (s *Server) handleSetup() gin.HandlerFunc {
	return func(c *gin.Context) {
		enrollment, err := s.svc.Setup(c.Request.Context(), middleware.GetUserID(c))
		if s.writeError(c, err, "MFA設定") {
			return
		}
		c.JSON(http.StatusOK, enrollment)
	}
}

func (s *Server) handleVerify() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req codeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "6桁の確認コードを指定してください"})
			return
		}
		err := s.svc.Verify(c.Request.Context(), middleware.GetUserID(c), req.Code)
		if s.writeError(c, err, "MFA確認") {
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "MFAを有効にしました"})
	}
}

func (s *Server) handleDisable() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req codeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "6桁の確認コードを指定してください"})
			return
		}
		err := s.svc.Disable(c.Request.Context(), middleware.GetUserID(c), req.Code)
		if s.writeError(c, err, "MFA無効化") {
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "MFAを無効にしました"})
	}
}

func (s *Server) handleStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := s.svc.Status(c.Request.Context(), middleware.GetUserID(c))
		if s.writeError(c, err, "MFA状態取得") {
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

func (s *Server) writeError(c *gin.Context, err error, op string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
	case errors.Is(err, ErrNotConfigured):
		c.JSON(http.StatusBadRequest, gin.H{"error": "先にMFAの設定を開始してください"})
	case errors.Is(err, ErrInvalidCode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "確認コードが正しくありません"})
	default:
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg(op + "エラー")
		c.JSON(http.StatusInternalServerError, gin.H{"error": op + "に失敗しました"})
	}
	return true
}
