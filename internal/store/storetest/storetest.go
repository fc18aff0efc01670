// Package storetest はテスト用のマイグレーション済みデータベースとフィクスチャを提供する。
package storetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nao1215/vaultdesk/internal/store"
)

// New はマイグレーション済みのインメモリDBを返す。テスト終了時に自動でクローズする。
func New(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := store.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("テストDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("テストDBのクローズに失敗: %v", err)
		}
	})
	return db
}

// User はフィクスチャとして作成するユーザー。
type User struct {
	Username     string
	Email        string
	PasswordHash string
	IsAdmin      bool
	// EmailOff と InAppOff が true の場合、対応する通知設定を無効にする。
	EmailOff bool
	InAppOff bool
}

// CreateUser はユーザーを作成してIDを返す。
func CreateUser(t *testing.T, db *sqlx.DB, u User) string {
	t.Helper()

	id := uuid.New().String()
	if u.Username == "" {
		u.Username = "user-" + id[:8]
	}
	if u.PasswordHash == "" {
		u.PasswordHash = "x"
	}
	_, err := db.Exec(`INSERT INTO users
		(id, username, password_hash, name, email, is_admin, email_notifications, in_app_notifications)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, u.Username, u.PasswordHash, u.Username, u.Email, u.IsAdmin, !u.EmailOff, !u.InAppOff)
	if err != nil {
		t.Fatalf("ユーザー作成に失敗: %v", err)
	}
	return id
}
