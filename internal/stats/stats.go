// Package stats はダッシュボード向けの集計値を提供する。
package stats

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/nao1215/vaultdesk/pkg/logging"
	"github.com/nao1215/vaultdesk/pkg/middleware"
)

// Summary はユーザー1人分の集計。
type Summary struct {
	VaultItems          int `db:"vault_items" json:"vault_items"`
	OpenTickets         int `db:"open_tickets" json:"open_tickets"`
	ResolvedTickets     int `db:"resolved_tickets" json:"resolved_tickets"`
	UnreadNotifications int `db:"unread_notifications" json:"unread_notifications"`
}

// Reader は集計クエリを実行する。
type Reader struct {
	db *sqlx.DB
}

// NewReader は新しいReaderを生成する。
func NewReader(db *sqlx.DB) *Reader {
	return &Reader{db: db}
}

// ForUser はユーザーの集計を返す。未対応のチケットは open と processing を数える。
func (r *Reader) ForUser(ctx context.Context, userID string) (Summary, error) {
	var s Summary
	err := r.db.GetContext(ctx, &s, `SELECT
		(SELECT COUNT(*) FROM vault_items WHERE user_id = ?) AS vault_items,
		(SELECT COUNT(*) FROM tickets WHERE user_id = ? AND status IN ('open', 'processing')) AS open_tickets,
		(SELECT COUNT(*) FROM tickets WHERE user_id = ? AND status = 'resolved') AS resolved_tickets,
		(SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0) AS unread_notifications`,
		userID, userID, userID, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("集計の取得に失敗: %w", err)
	}
	return s, nil
}

// Handler は集計APIのハンドラを返す。
func Handler(r *Reader) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := r.ForUser(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("集計取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "集計の取得に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, s)
	}
}
