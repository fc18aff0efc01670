package chatbot

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// HistoryLimit は履歴として返す件数。
const HistoryLimit = 50

// Exchange はメッセージと応答の1往復。
type Exchange struct {
	ID        int64     `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Message   string    `db:"message" json:"message"`
	Response  string    `db:"response" json:"response"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// History はchat_historyテーブルへのアクセスを提供する。
type History struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewHistory は新しいHistoryを生成する。
func NewHistory(db *sqlx.DB) *History {
	return &History{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Append は1往復を記録する。
func (h *History) Append(ctx context.Context, e Exchange) (Exchange, error) {
	e.CreatedAt = h.now()
	res, err := h.db.NamedExecContext(ctx, `INSERT INTO chat_history (user_id, message, response, created_at)
		VALUES (:user_id, :message, :response, :created_at)`, e)
	if err != nil {
		return Exchange{}, fmt.Errorf("会話履歴の記録に失敗: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return Exchange{}, fmt.Errorf("会話履歴IDの取得に失敗: %w", err)
	}
	return e, nil
}

// Recent は直近の往復を古い順に返す。
func (h *History) Recent(ctx context.Context, userID string) ([]Exchange, error) {
	out := []Exchange{}
	err := h.db.SelectContext(ctx, &out, `SELECT id, user_id, message, response, created_at FROM (
			SELECT * FROM chat_history WHERE user_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, userID, HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("会話履歴の取得に失敗: %w", err)
	}
	return out, nil
}
