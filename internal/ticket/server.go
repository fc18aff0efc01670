package ticket

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/vaultdesk/internal/notification"
	"github.com/nao1215/vaultdesk/internal/realtime"
	"github.com/nao1215/vaultdesk/pkg/event"
	"github.com/nao1215/vaultdesk/pkg/logging"
	"github.com/nao1215/vaultdesk/pkg/middleware"
)

// Notifier は通知をバックグラウンドで配信する。
type Notifier interface {
	Dispatch(ctx context.Context, req notification.Request)
}

// Pusher はライブ接続へ永続化しないフレームをプッシュする。
type Pusher interface {
	Push(key realtime.Key, msg realtime.Message) int
}

// Server はチケットAPIのハンドラ群。
type Server struct {
	repo     *Repository
	notifier Notifier
	pusher   Pusher
}

// NewServer は新しいServerを生成する。
func NewServer(repo *Repository, notifier Notifier, pusher Pusher) *Server {
	return &Server{repo: repo, notifier: notifier, pusher: pusher}
}

// RegisterRoutes は認証済みグループにチケットAPIを登録する。
func (s *Server) RegisterRoutes(api *gin.RouterGroup) {
	tickets := api.Group("/tickets")
	{
		tickets.GET("", s.handleListOwn())
		tickets.POST("", s.handleCreate())
		tickets.GET("/:id", s.handleGet())
	}

	admin := api.Group("/admin/tickets", middleware.RequireAdmin())
	{
		admin.GET("", s.handleListAll())
		admin.PUT("/:id/status", s.handleUpdateStatus())
	}
}

// ticketEvent は管理者グループへプッシュするライブ更新フレームのデータ。
type ticketEvent struct {
	Action string `json:"action"`
	Ticket Ticket `json:"ticket"`
}

func (s *Server) pushAdmins(action string, t Ticket) {
	if s.pusher == nil {
		return
	}
	s.pusher.Push(realtime.GroupKey(realtime.AdminGroup), realtime.Message{
		Type: "ticket_event",
		Data: ticketEvent{Action: action, Ticket: t},
	})
}

// handleListOwn は自分のチケット一覧を返すハンドラ。
func (s *Server) handleListOwn() gin.HandlerFunc {
	return func(c *gin.Context) {
		tickets, err := s.repo.ListForUser(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("チケット一覧取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "チケット一覧の取得に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, tickets)
	}
}

// createRequest はチケット作成リクエストのJSON構造。
type createRequest struct {
	Subject     string   `json:"subject" binding:"required,max=200"`
	Description string   `json:"description" binding:"required"`
	Priority    Priority `json:"priority" binding:"omitempty,oneof=low medium high"`
}

// handleCreate はチケットを作成し、全管理者に ticket_created 通知を送るハンドラ。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "件名と内容は必須です"})
			return
		}
		t, err := s.repo.Create(c.Request.Context(), middleware.GetUserID(c), req.Subject, req.Description, req.Priority)
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("チケット作成エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "チケットの作成に失敗しました"})
			return
		}

		s.notifier.Dispatch(c.Request.Context(), notification.Request{
			Selector: notification.AllAdmins(),
			Type:     event.TypeTicketCreated,
			Payload: event.MustPayload(event.TicketCreatedData{
				TicketID: t.ID,
				Subject:  t.Subject,
				Priority: string(t.Priority),
				Username: middleware.GetUsername(c),
			}),
		})
		s.pushAdmins("created", t)
		c.JSON(http.StatusCreated, t)
	}
}

// handleGet はチケットを返すハンドラ。起票者と管理者以外には存在しないものとして404を返す。
func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := s.repo.Get(c.Request.Context(), c.Param("id"))
		if errors.Is(err, ErrNotFound) || (err == nil && t.UserID != middleware.GetUserID(c) && !middleware.IsAdmin(c)) {
			c.JSON(http.StatusNotFound, gin.H{"error": "チケットが見つかりません"})
			return
		}
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("チケット取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "チケットの取得に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// handleListAll は全チケットを起票者情報付きで返すハンドラ。
func (s *Server) handleListAll() gin.HandlerFunc {
	return func(c *gin.Context) {
		tickets, err := s.repo.ListAll(c.Request.Context())
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("全チケット一覧取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "チケット一覧の取得に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, tickets)
	}
}

// statusRequest はステータス更新リクエストのJSON構造。
type statusRequest struct {
	Status Status `json:"status" binding:"required,oneof=open processing resolved closed"`
}

// handleUpdateStatus はステータスを更新し、起票者に ticket_updated 通知を送るハンドラ。
func (s *Server) handleUpdateStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "statusは open, processing, resolved, closed のいずれかです"})
			return
		}
		t, err := s.repo.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "チケットが見つかりません"})
			return
		}
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("ステータス更新エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ステータスの更新に失敗しました"})
			return
		}

		s.notifier.Dispatch(c.Request.Context(), notification.Request{
			Selector: notification.SingleUser(t.UserID),
			Type:     event.TypeTicketUpdated,
			Payload: event.MustPayload(event.TicketUpdatedData{
				TicketID: t.ID,
				Subject:  t.Subject,
				Status:   string(t.Status),
			}),
		})
		s.pushAdmins("updated", t)
		c.JSON(http.StatusOK, t)
	}
}
