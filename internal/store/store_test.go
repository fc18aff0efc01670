package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("ファイルDBを開いてスキーマを作成する", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "vaultdesk.db")

		db, err := Open(ctx, path)
		if err != nil {
			t.Fatalf("Open エラー: %v", err)
		}
		defer db.Close()

		var count int
		if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM notifications"); err != nil {
			t.Fatalf("notificationsテーブルが無い: %v", err)
		}

		var fk int
		if err := db.GetContext(ctx, &fk, "PRAGMA foreign_keys"); err != nil {
			t.Fatalf("PRAGMA取得エラー: %v", err)
		}
		if fk != 1 {
			t.Errorf("foreign_keys: got %d, want 1", fk)
		}
	})

	t.Run("再オープンしてもマイグレーションは再適用されない", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "vaultdesk.db")

		db, err := Open(ctx, path)
		if err != nil {
			t.Fatalf("Open エラー: %v", err)
		}
		_ = db.Close()

		db, err = Open(ctx, path)
		if err != nil {
			t.Fatalf("再Open エラー: %v", err)
		}
		defer db.Close()

		applied, err := Migrate(ctx, db)
		if err != nil {
			t.Fatalf("Migrate エラー: %v", err)
		}
		if len(applied) != 0 {
			t.Errorf("適用件数: got %d, want 0", len(applied))
		}
	})
}

func TestDSN(t *testing.T) {
	t.Parallel()

	if got := dsn(":memory:"); got != ":memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)" {
		t.Errorf("dsn(:memory:): got %s", got)
	}
	if got := dsn("a.db"); got != "a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)" {
		t.Errorf("dsn(a.db): got %s", got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db, err := Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open エラー: %v", err)
	}
	defer db.Close()

	insert := `INSERT INTO users (id, username, password_hash) VALUES (?, ?, 'x')`
	if _, err := db.ExecContext(ctx, insert, "1", "alice"); err != nil {
		t.Fatalf("INSERT エラー: %v", err)
	}
	_, err = db.ExecContext(ctx, insert, "2", "alice")
	if !IsUniqueViolation(err) {
		t.Errorf("重複ユーザー名: got %v, want UNIQUE違反", err)
	}
	if IsUniqueViolation(errors.New("other")) {
		t.Error("UNIQUE違反以外を誤判定した")
	}
}
