package migration

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("DB接続エラー: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunner(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"m/000002_add_index.up.sql": {Data: []byte("CREATE INDEX idx_items_name ON items(name);")},
		"m/000001_create.up.sql":    {Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT);")},
		"m/000001_create.down.sql":  {Data: []byte("DROP TABLE items;")},
		"m/README.md":               {Data: []byte("ignored")},
	}

	t.Run("バージョン順に適用し再実行では何もしない", func(t *testing.T) {
		t.Parallel()
		db := openDB(t)
		r := NewRunner(db, fsys, "m")
		ctx := context.Background()

		applied, err := r.Up(ctx)
		if err != nil {
			t.Fatalf("Up エラー: %v", err)
		}
		if len(applied) != 2 || applied[0].Version != 1 || applied[1].Version != 2 {
			t.Fatalf("適用結果: got %+v", applied)
		}

		again, err := r.Up(ctx)
		if err != nil {
			t.Fatalf("再実行エラー: %v", err)
		}
		if len(again) != 0 {
			t.Errorf("再実行で適用された件数: got %d, want 0", len(again))
		}
	})

	t.Run("失敗したマイグレーションは記録されない", func(t *testing.T) {
		t.Parallel()
		db := openDB(t)
		broken := fstest.MapFS{
			"m/000001_broken.up.sql": {Data: []byte("CREATE TABLE;")},
		}
		r := NewRunner(db, broken, "m")
		if _, err := r.Up(context.Background()); err == nil {
			t.Fatal("エラーが返されるべき")
		}
		pending, err := r.Pending(context.Background())
		if err != nil {
			t.Fatalf("Pending エラー: %v", err)
		}
		if len(pending) != 1 {
			t.Errorf("未適用件数: got %d, want 1", len(pending))
		}
	})
}
