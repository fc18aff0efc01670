package notification

import (
	"time"

	"github.com/nao1215/vaultdesk/pkg/event"
)

// Notification は台帳に記録された1件の通知。
type Notification struct {
	// ID は通知の一意識別子（UUID）。
	ID string `db:"id" json:"id"`
	// RecipientID は受信者のユーザーID。
	RecipientID string `db:"user_id" json:"user_id"`
	// Type は通知の種類。
	Type event.Type `db:"type" json:"type"`
	// Title はタイトル。
	Title string `db:"title" json:"title"`
	// Message は本文。
	Message string `db:"message" json:"message"`
	// Payload は添付データ。
	Payload event.Payload `db:"-" json:"data"`
	// IsRead は既読かどうか。
	IsRead bool `db:"is_read" json:"is_read"`
	// CreatedAt はサーバーが付与した作成日時（UTC）。
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Entry は台帳に追記する内容。
type Entry struct {
	RecipientID string
	Type        event.Type
	Title       string
	Message     string
	Payload     event.Payload
}

// Preference はユーザーごとの配信設定。
type Preference struct {
	EmailEnabled bool `db:"email_notifications" json:"email_enabled"`
	InAppEnabled bool `db:"in_app_notifications" json:"in_app_enabled"`
}

// DefaultPreference は新規ユーザーの配信設定。
func DefaultPreference() Preference {
	return Preference{EmailEnabled: true, InAppEnabled: true}
}

// Recipient は配信先として解決されたユーザー。
type Recipient struct {
	ID       string `db:"id"`
	Username string `db:"username"`
	Email    string `db:"email"`
	IsAdmin  bool   `db:"is_admin"`
}
