package biometric

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// HistoryLimit は履歴として返す件数。
const HistoryLimit = 10

// Attempt は生体認証の試行1件。
type Attempt struct {
	ID        int64     `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Success   bool      `db:"success" json:"success"`
	Method    string    `db:"method" json:"method"`
	IPAddress string    `db:"ip_address" json:"ip_address"`
	UserAgent string    `db:"user_agent" json:"user_agent"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Log はbiometric_logsテーブルへのアクセスを提供する。
type Log struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewLog は新しいLogを生成する。
func NewLog(db *sqlx.DB) *Log {
	return &Log{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Record は試行を記録する。
func (l *Log) Record(ctx context.Context, a Attempt) (Attempt, error) {
	a.CreatedAt = l.now()
	res, err := l.db.NamedExecContext(ctx, `INSERT INTO biometric_logs
		(user_id, success, method, ip_address, user_agent, created_at)
		VALUES (:user_id, :success, :method, :ip_address, :user_agent, :created_at)`, a)
	if err != nil {
		return Attempt{}, fmt.Errorf("生体認証ログの記録に失敗: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return Attempt{}, fmt.Errorf("生体認証ログIDの取得に失敗: %w", err)
	}
	return a, nil
}

// History はユーザーの直近の試行を新しい順に返す。
func (l *Log) History(ctx context.Context, userID string) ([]Attempt, error) {
	attempts := []Attempt{}
	err := l.db.SelectContext(ctx, &attempts, `SELECT id, user_id, success, method, ip_address, user_agent, created_at
		FROM biometric_logs WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, userID, HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("生体認証履歴の取得に失敗: %w", err)
	}
	return attempts, nil
}
