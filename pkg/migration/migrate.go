// Package migration はSQLiteスキーマのマイグレーションを適用する。
// embed.FS 上の 000001_name.up.sql 形式のファイルをバージョン順に実行し、
// schema_migrations テーブルで適用状態を管理する。
package migration

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/nao1215/vaultdesk/pkg/logging"
)

// File は1つのマイグレーションファイル。
type File struct {
	Version int
	Name    string
	path    string
}

// Runner はマイグレーションを適用する。
type Runner struct {
	db   *sqlx.DB
	fsys fs.FS
	dir  string
}

// NewRunner は fsys の dir 配下を読むRunnerを生成する。
func NewRunner(db *sqlx.DB, fsys fs.FS, dir string) *Runner {
	return &Runner{db: db, fsys: fsys, dir: dir}
}

// Up は未適用のマイグレーションをすべて適用し、適用したファイルを返す。
func (r *Runner) Up(ctx context.Context) ([]File, error) {
	pending, err := r.Pending(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range pending {
		if err := r.apply(ctx, f); err != nil {
			return nil, fmt.Errorf("マイグレーション %06d の適用に失敗: %w", f.Version, err)
		}
		logging.Info().Int("version", f.Version).Str("name", f.Name).Msg("マイグレーションを適用")
	}
	return pending, nil
}

// Pending は未適用のマイグレーションをバージョン順に返す。
func (r *Runner) Pending(ctx context.Context) ([]File, error) {
	if _, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
		)`); err != nil {
		return nil, fmt.Errorf("マイグレーション管理テーブルの作成に失敗: %w", err)
	}

	var applied []int
	if err := r.db.SelectContext(ctx, &applied, "SELECT version FROM schema_migrations"); err != nil {
		return nil, fmt.Errorf("適用済みバージョンの取得に失敗: %w", err)
	}

	files, err := r.collect()
	if err != nil {
		return nil, fmt.Errorf("マイグレーションファイルの収集に失敗: %w", err)
	}

	pending := make([]File, 0, len(files))
	for _, f := range files {
		if !slices.Contains(applied, f.Version) {
			pending = append(pending, f)
		}
	}
	return pending, nil
}

func (r *Runner) collect() ([]File, error) {
	entries, err := fs.ReadDir(r.fsys, r.dir)
	if err != nil {
		return nil, err
	}

	var files []File
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".up.sql") {
			continue
		}
		num, name, ok := strings.Cut(strings.TrimSuffix(e.Name(), ".up.sql"), "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(num)
		if err != nil {
			return nil, fmt.Errorf("不正なマイグレーションファイル名 %s: %w", e.Name(), err)
		}
		files = append(files, File{Version: version, Name: name, path: path.Join(r.dir, e.Name())})
	}

	slices.SortFunc(files, func(a, b File) int { return a.Version - b.Version })
	return files, nil
}

// apply は1つのマイグレーションをトランザクション内で適用する。
func (r *Runner) apply(ctx context.Context, f File) error {
	content, err := fs.ReadFile(r.fsys, f.path)
	if err != nil {
		return fmt.Errorf("ファイル読み込みに失敗: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("SQL実行に失敗: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", f.Version); err != nil {
		return fmt.Errorf("バージョン記録に失敗: %w", err)
	}
	return tx.Commit()
}
