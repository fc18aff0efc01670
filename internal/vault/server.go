package vault

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/vaultdesk/pkg/logging"
	"github.com/nao1215/vaultdesk/pkg/middleware"
)

// Server は保管庫APIのハンドラ群。
type Server struct {
	repo *Repository
}

// NewServer は新しいServerを生成する。
func NewServer(repo *Repository) *Server {
	return &Server{repo: repo}
}

// RegisterRoutes は認証済みグループに保管庫APIを登録する。
func (s *Server) RegisterRoutes(api *gin.RouterGroup) {
	v := api.Group("/vault")
	{
		v.GET("", s.handleList())
		v.POST("", s.handleCreate())
		v.GET("/:id", s.handleGet())
		v.PUT("/:id", s.handleUpdate())
		v.DELETE("/:id", s.handleDelete())
	}
}

// itemRequest はアイテム作成・更新リクエストのJSON構造。
type itemRequest struct {
	Title    string `json:"title" binding:"required,max=200"`
	Username string `json:"username" binding:"max=200"`
	Password string `json:"password"`
	URL      string `json:"url" binding:"omitempty,url"`
	Notes    string `json:"notes"`
}

func (r itemRequest) input() Input {
	return Input{Title: r.Title, Username: r.Username, Password: r.Password, URL: r.URL, Notes: r.Notes}
}

// handleList は保管庫アイテムの一覧を返すハンドラ。パスワードは含めない。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := s.repo.List(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("保管庫一覧取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "保管庫一覧の取得に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

// handleCreate はアイテムを作成するハンドラ。作成時はパスワード必須。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req itemRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "タイトルとパスワードは必須です"})
			return
		}
		item, err := s.repo.Create(c.Request.Context(), middleware.GetUserID(c), req.input())
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("保管庫アイテム作成エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "保管庫アイテムの作成に失敗しました"})
			return
		}
		c.JSON(http.StatusCreated, item)
	}
}

// handleGet は復号済みのアイテムを返すハンドラ。
func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := s.repo.Get(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
		if s.writeError(c, err, "保管庫アイテム取得") {
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

// handleUpdate はアイテムを更新するハンドラ。パスワードが空なら変更しない。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req itemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "保管庫アイテムの入力値が不正です"})
			return
		}
		err := s.repo.Update(c.Request.Context(), c.Param("id"), middleware.GetUserID(c), req.input())
		if s.writeError(c, err, "保管庫アイテム更新") {
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "保管庫アイテムを更新しました"})
	}
}

// handleDelete はアイテムを削除するハンドラ。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := s.repo.Delete(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
		if s.writeError(c, err, "保管庫アイテム削除") {
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "保管庫アイテムを削除しました"})
	}
}

func (s *Server) writeError(c *gin.Context, err error, op string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "保管庫アイテムが見つかりません"})
	default:
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg(op + "エラー")
		c.JSON(http.StatusInternalServerError, gin.H{"error": op + "に失敗しました"})
	}
	return true
}
