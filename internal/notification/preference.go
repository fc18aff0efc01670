package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Preferences はユーザーごとの配信設定を扱う。設定はusersテーブルの列として保持する。
type Preferences struct {
	db *sqlx.DB
}

// NewPreferences は新しいPreferencesを生成する。
func NewPreferences(db *sqlx.DB) *Preferences {
	return &Preferences{db: db}
}

// Get はユーザーの配信設定を返す。ユーザーが存在しない場合は ErrNotFound。
func (p *Preferences) Get(ctx context.Context, userID string) (Preference, error) {
	var pref Preference
	err := p.db.GetContext(ctx, &pref,
		`SELECT email_notifications, in_app_notifications FROM users WHERE id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return Preference{}, fmt.Errorf("ユーザー %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return Preference{}, fmt.Errorf("通知設定の取得に失敗: %w", err)
	}
	return pref, nil
}

// Set はユーザーの配信設定を上書きする。ユーザーが存在しない場合は ErrNotFound。
func (p *Preferences) Set(ctx context.Context, userID string, pref Preference) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE users SET email_notifications = ?, in_app_notifications = ? WHERE id = ?`,
		pref.EmailEnabled, pref.InAppEnabled, userID)
	if err != nil {
		return fmt.Errorf("通知設定の更新に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("ユーザー %s: %w", userID, ErrNotFound)
	}
	return nil
}
