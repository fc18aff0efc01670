package user

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/vaultdesk/internal/notification"
	"github.com/nao1215/vaultdesk/pkg/event"
	"github.com/nao1215/vaultdesk/pkg/logging"
	"github.com/nao1215/vaultdesk/pkg/middleware"
)

// Notifier は通知をバックグラウンドで配信する。*notification.Orchestrator が満たす。
type Notifier interface {
	Dispatch(ctx context.Context, req notification.Request)
}

// Server は認証・ユーザー管理APIのハンドラ群。
type Server struct {
	repo      *Repository
	notifier  Notifier
	jwtSecret string
	tokenTTL  time.Duration
}

// NewServer は新しいServerを生成する。
func NewServer(repo *Repository, notifier Notifier, jwtSecret string, tokenTTL time.Duration) *Server {
	return &Server{repo: repo, notifier: notifier, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

// RegisterPublicRoutes は認証不要のルートを登録する。
func (s *Server) RegisterPublicRoutes(api *gin.RouterGroup) {
	api.POST("/auth/login", s.handleLogin())
}

// RegisterRoutes は認証済みグループにルートを登録する。
func (s *Server) RegisterRoutes(api *gin.RouterGroup) {
	auth := api.Group("/auth")
	{
		auth.GET("/profile", s.handleGetProfile())
		auth.PUT("/profile", s.handleUpdateProfile())
		auth.PUT("/password", s.handleChangePassword())
	}

	admin := api.Group("/admin/users", middleware.RequireAdmin())
	{
		admin.GET("", s.handleList())
		admin.POST("", s.handleCreate())
		admin.PUT("/:id", s.handleUpdate())
		admin.DELETE("/:id", s.handleDelete())
	}
}

// loginRequest はログインリクエストのJSON構造。
type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// handleLogin は認証に成功したらJWTとユーザー情報を返すハンドラ。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ユーザー名とパスワードは必須です"})
			return
		}

		u, err := s.repo.Authenticate(c.Request.Context(), req.Username, req.Password)
		if errors.Is(err, ErrInvalidCredentials) {
			logging.Ctx(c.Request.Context()).Info().Str("username", req.Username).Msg("ログイン失敗")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザー名またはパスワードが正しくありません"})
			return
		}
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("ログイン処理エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ログインに失敗しました"})
			return
		}

		token, err := middleware.GenerateJWT(s.jwtSecret, u.ID, u.Username, u.IsAdmin, s.tokenTTL)
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("トークン生成エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ログインに失敗しました"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "user": u})
	}
}

// handleGetProfile は認証済みユーザーのプロフィールを返すハンドラ。
func (s *Server) handleGetProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := s.repo.Get(c.Request.Context(), middleware.GetUserID(c))
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("プロフィール取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "プロフィールの取得に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// profileRequest はプロフィール更新リクエストのJSON構造。
type profileRequest struct {
	Name       string `json:"name" binding:"max=100"`
	Email      string `json:"email" binding:"omitempty,email"`
	Department string `json:"department" binding:"max=100"`
	Avatar     string `json:"avatar" binding:"omitempty,url"`
}

// handleUpdateProfile は本人のプロフィールを更新するハンドラ。
func (s *Server) handleUpdateProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req profileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "プロフィールの入力値が不正です"})
			return
		}
		id := middleware.GetUserID(c)
		err := s.repo.UpdateProfile(c.Request.Context(), id, Profile(req))
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("プロフィール更新エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "プロフィールの更新に失敗しました"})
			return
		}
		u, err := s.repo.Get(c.Request.Context(), id)
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("プロフィール取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "プロフィールの取得に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// passwordRequest はパスワード変更リクエストのJSON構造。
type passwordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
}

// handleChangePassword はパスワードを変更し、本人に password_reset 通知を送るハンドラ。
func (s *Server) handleChangePassword() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req passwordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "新しいパスワードは8文字以上で指定してください"})
			return
		}
		id := middleware.GetUserID(c)
		err := s.repo.ChangePassword(c.Request.Context(), id, req.CurrentPassword, req.NewPassword)
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			c.JSON(http.StatusBadRequest, gin.H{"error": "現在のパスワードが正しくありません"})
			return
		case errors.Is(err, ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		case err != nil:
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("パスワード変更エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "パスワードの変更に失敗しました"})
			return
		}

		s.notifier.Dispatch(c.Request.Context(), notification.Request{
			Selector: notification.SingleUser(id),
			Type:     event.TypePasswordReset,
		})
		c.JSON(http.StatusOK, gin.H{"message": "パスワードを変更しました"})
	}
}

// handleList は全ユーザーを返すハンドラ。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := s.repo.List(c.Request.Context())
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("ユーザー一覧取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー一覧の取得に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

// createRequest はユーザー作成リクエストのJSON構造。
type createRequest struct {
	Username   string `json:"username" binding:"required,min=3,max=50"`
	Password   string `json:"password" binding:"required,min=8,max=72"`
	Name       string `json:"name" binding:"required,max=100"`
	Email      string `json:"email" binding:"omitempty,email"`
	Department string `json:"department" binding:"max=100"`
	IsAdmin    bool   `json:"is_admin"`
}

// handleCreate はユーザーを作成し、全管理者に user_created 通知を送るハンドラ。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ユーザー作成の入力値が不正です"})
			return
		}
		u, err := s.repo.Create(c.Request.Context(), CreateParams(req))
		if errors.Is(err, ErrDuplicateUsername) {
			c.JSON(http.StatusConflict, gin.H{"error": "ユーザー名は既に使われています"})
			return
		}
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("ユーザー作成エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの作成に失敗しました"})
			return
		}

		s.notifier.Dispatch(c.Request.Context(), notification.Request{
			Selector: notification.AllAdmins(),
			Type:     event.TypeUserCreated,
			Payload:  event.MustPayload(event.UserCreatedData{UserID: u.ID, Username: u.Username, IsAdmin: u.IsAdmin}),
		})
		c.JSON(http.StatusCreated, u)
	}
}

// updateRequest は管理者によるユーザー更新リクエストのJSON構造。
type updateRequest struct {
	Name       string `json:"name" binding:"required,max=100"`
	Email      string `json:"email" binding:"omitempty,email"`
	Department string `json:"department" binding:"max=100"`
	IsAdmin    bool   `json:"is_admin"`
}

// handleUpdate はユーザーの属性と管理者フラグを更新するハンドラ。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ユーザー更新の入力値が不正です"})
			return
		}
		err := s.repo.Update(c.Request.Context(), c.Param("id"), AdminUpdate(req))
		if s.writeMutationError(c, err, "ユーザー更新") {
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "ユーザーを更新しました"})
	}
}

// handleDelete はユーザーを削除するハンドラ。自分自身は削除できない。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if id == middleware.GetUserID(c) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "自分自身は削除できません"})
			return
		}
		err := s.repo.Delete(c.Request.Context(), id)
		if s.writeMutationError(c, err, "ユーザー削除") {
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "ユーザーを削除しました"})
	}
}

// writeMutationError は更新系エラーをレスポンスに変換する。エラーを書いた場合は true。
func (s *Server) writeMutationError(c *gin.Context, err error, op string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
	case errors.Is(err, ErrLastAdmin):
		c.JSON(http.StatusBadRequest, gin.H{"error": "最後の管理者は削除・降格できません"})
	default:
		logging.Ctx(c.Request.Context()).Error().Err(err).Msg(op + "エラー")
		c.JSON(http.StatusInternalServerError, gin.H{"error": op + "に失敗しました"})
	}
	return true
}
