package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nao1215/vaultdesk/pkg/event"
)

// DefaultListLimit は一覧取得の既定件数。
const DefaultListLimit = 50

// Ledger は通知台帳。通知は受信者ごとに追記され、既読フラグ以外は変更されない。
type Ledger struct {
	db           *sqlx.DB
	defaultLimit int
	maxLimit     int
	now          func() time.Time
}

// NewLedger は新しいLedgerを生成する。defaultLimit / maxLimit が0以下の場合は既定値を使う。
func NewLedger(db *sqlx.DB, defaultLimit, maxLimit int) *Ledger {
	if defaultLimit <= 0 {
		defaultLimit = DefaultListLimit
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &Ledger{
		db:           db,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// notificationRow はnotificationsテーブルの1行。
type notificationRow struct {
	Notification
	Data string `db:"data"`
}

func (r notificationRow) toNotification() (Notification, error) {
	n := r.Notification
	n.Payload = event.Payload{}
	if r.Data != "" {
		if err := json.Unmarshal([]byte(r.Data), &n.Payload); err != nil {
			return Notification{}, fmt.Errorf("通知 %s のデータ展開に失敗: %w", n.ID, err)
		}
	}
	return n, nil
}

// Append は新しい通知を未読として追記する。IDと作成日時はここで採番する。
func (l *Ledger) Append(ctx context.Context, e Entry) (Notification, error) {
	if e.RecipientID == "" {
		return Notification{}, fmt.Errorf("受信者が空です: %w", ErrValidation)
	}
	payload := e.Payload
	if payload == nil {
		payload = event.Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Notification{}, fmt.Errorf("通知データのシリアライズに失敗: %w", err)
	}

	n := Notification{
		ID:          uuid.New().String(),
		RecipientID: e.RecipientID,
		Type:        e.Type,
		Title:       e.Title,
		Message:     e.Message,
		Payload:     payload,
		CreatedAt:   l.now(),
	}
	_, err = l.db.ExecContext(ctx, `INSERT INTO notifications
		(id, user_id, type, title, message, data, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		n.ID, n.RecipientID, n.Type, n.Title, n.Message, string(data), n.CreatedAt)
	if err != nil {
		return Notification{}, fmt.Errorf("通知の保存に失敗: %w", err)
	}
	notificationsPersisted.WithLabelValues(string(n.Type)).Inc()
	return n, nil
}

// clamp は一覧の件数を既定値と上限の範囲に収める。
func (l *Ledger) clamp(limit int) int {
	if limit <= 0 {
		return l.defaultLimit
	}
	if limit > l.maxLimit {
		return l.maxLimit
	}
	return limit
}

const selectColumns = `SELECT id, user_id, type, title, message, data, is_read, created_at FROM notifications`

// ListForUser はユーザーの通知を新しい順に最大 limit 件返す。
func (l *Ledger) ListForUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	return l.list(ctx, selectColumns+` WHERE user_id = ? ORDER BY created_at DESC, seq DESC LIMIT ?`,
		userID, l.clamp(limit))
}

// ListUnread はユーザーの未読通知を新しい順に最大 limit 件返す。
func (l *Ledger) ListUnread(ctx context.Context, userID string, limit int) ([]Notification, error) {
	return l.list(ctx, selectColumns+` WHERE user_id = ? AND is_read = 0 ORDER BY created_at DESC, seq DESC LIMIT ?`,
		userID, l.clamp(limit))
}

func (l *Ledger) list(ctx context.Context, query string, args ...any) ([]Notification, error) {
	var rows []notificationRow
	if err := l.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗: %w", err)
	}
	out := make([]Notification, 0, len(rows))
	for _, r := range rows {
		n, err := r.toNotification()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// UnreadCount はユーザーの未読件数を返す。
func (l *Ledger) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	if err := l.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`, userID); err != nil {
		return 0, fmt.Errorf("未読件数の取得に失敗: %w", err)
	}
	return count, nil
}

// MarkRead は userID が所有する通知を既読にする。
// 通知が存在しないか他のユーザーの所有である場合は ErrNotFound を返す。
func (l *Ledger) MarkRead(ctx context.Context, id, userID string) (int64, error) {
	res, err := l.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return 0, fmt.Errorf("通知の既読処理に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("通知 %s: %w", id, ErrNotFound)
	}
	return n, nil
}

// MarkAllRead はユーザーの未読通知をすべて既読にし、更新件数を返す。
func (l *Ledger) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := l.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("全通知の既読処理に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	return n, nil
}

// PurgeRead は before より前に作成された既読通知を削除し、削除件数を返す。未読通知は残す。
func (l *Ledger) PurgeRead(ctx context.Context, before time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE is_read = 1 AND created_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("既読通知の削除に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return n, nil
}
