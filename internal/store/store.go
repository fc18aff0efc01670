package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/nao1215/vaultdesk/pkg/migration"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Open はSQLiteデータベースを開き、未適用のマイグレーションを適用する。
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	db, err := Connect(ctx, path)
	if err != nil {
		return nil, err
	}
	if _, err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Connect はマイグレーションを適用せずにSQLiteデータベースを開く。
// 書き込みを直列化するため接続は1本に制限する。
func Connect(ctx context.Context, path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("データベース接続確認に失敗: %w", err)
	}
	return db, nil
}

// Migrate は組み込みのマイグレーションを適用し、適用したファイルを返す。
func Migrate(ctx context.Context, db *sqlx.DB) ([]migration.File, error) {
	applied, err := migration.NewRunner(db, migrations, "migrations").Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return applied, nil
}

// dsn はPRAGMAを付与した接続文字列を組み立てる。
func dsn(path string) string {
	params := []string{"_pragma=foreign_keys(1)", "_pragma=busy_timeout(5000)"}
	if path != ":memory:" && !strings.Contains(path, "mode=memory") {
		params = append(params, "_pragma=journal_mode(WAL)")
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&")
}

// IsUniqueViolation はエラーがUNIQUE制約違反かどうかを判定する。
func IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
