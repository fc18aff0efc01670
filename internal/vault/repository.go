package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrNotFound はアイテムが存在しない、または呼び出し元の所有でないことを表す。
var ErrNotFound = errors.New("保管庫アイテムが見つかりません")

// Item は保管庫アイテム1件。Password は復号済みの値で、一覧では空のまま返す。
type Item struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	Username  string    `db:"username" json:"username"`
	Password  string    `db:"-" json:"password,omitempty"`
	URL       string    `db:"url" json:"url"`
	Notes     string    `db:"notes" json:"notes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Input はアイテムの作成・更新内容。
type Input struct {
	Title    string
	Username string
	Password string
	URL      string
	Notes    string
}

// itemRow はDBの1行。secret は暗号文。
type itemRow struct {
	Item
	Secret string `db:"secret"`
}

// Repository はvault_itemsテーブルへのアクセスを提供する。secret列は常に暗号化して扱う。
type Repository struct {
	db     *sqlx.DB
	sealer *Sealer
	now    func() time.Time
}

// NewRepository は新しいRepositoryを生成する。
func NewRepository(db *sqlx.DB, sealer *Sealer) *Repository {
	return &Repository{db: db, sealer: sealer, now: func() time.Time { return time.Now().UTC() }}
}

// List はユーザーのアイテムを復号せずにタイトル順で返す。
func (r *Repository) List(ctx context.Context, userID string) ([]Item, error) {
	items := []Item{}
	err := r.db.SelectContext(ctx, &items, `SELECT id, user_id, title, username, url, notes, created_at, updated_at
		FROM vault_items WHERE user_id = ? ORDER BY title COLLATE NOCASE, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("保管庫一覧の取得に失敗: %w", err)
	}
	return items, nil
}

// Get はアイテムを復号して返す。
func (r *Repository) Get(ctx context.Context, id, userID string) (Item, error) {
	var row itemRow
	err := r.db.GetContext(ctx, &row, `SELECT id, user_id, title, username, secret, url, notes, created_at, updated_at
		FROM vault_items WHERE id = ? AND user_id = ?`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("保管庫アイテムの取得に失敗: %w", err)
	}
	if row.Item.Password, err = r.sealer.Open(row.Secret); err != nil {
		return Item{}, err
	}
	return row.Item, nil
}

// Create はパスワードを暗号化してアイテムを作成する。
func (r *Repository) Create(ctx context.Context, userID string, in Input) (Item, error) {
	secret, err := r.sealer.Seal(in.Password)
	if err != nil {
		return Item{}, err
	}
	now := r.now()
	row := itemRow{
		Item: Item{
			ID:        uuid.New().String(),
			UserID:    userID,
			Title:     in.Title,
			Username:  in.Username,
			URL:       in.URL,
			Notes:     in.Notes,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Secret: secret,
	}
	_, err = r.db.NamedExecContext(ctx, `INSERT INTO vault_items
		(id, user_id, title, username, secret, url, notes, created_at, updated_at)
		VALUES (:id, :user_id, :title, :username, :secret, :url, :notes, :created_at, :updated_at)`, row)
	if err != nil {
		return Item{}, fmt.Errorf("保管庫アイテムの作成に失敗: %w", err)
	}
	return row.Item, nil
}

// Update はアイテムを上書きする。Password が空の場合は既存の暗号文を残す。
func (r *Repository) Update(ctx context.Context, id, userID string, in Input) error {
	var (
		res sql.Result
		err error
	)
	if in.Password == "" {
		res, err = r.db.ExecContext(ctx, `UPDATE vault_items SET title = ?, username = ?, url = ?, notes = ?, updated_at = ?
			WHERE id = ? AND user_id = ?`, in.Title, in.Username, in.URL, in.Notes, r.now(), id, userID)
	} else {
		secret, serr := r.sealer.Seal(in.Password)
		if serr != nil {
			return serr
		}
		res, err = r.db.ExecContext(ctx, `UPDATE vault_items SET title = ?, username = ?, secret = ?, url = ?, notes = ?, updated_at = ?
			WHERE id = ? AND user_id = ?`, in.Title, in.Username, secret, in.URL, in.Notes, r.now(), id, userID)
	}
	return affected(res, err, "保管庫アイテムの更新")
}

// Delete はアイテムを削除する。
func (r *Repository) Delete(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vault_items WHERE id = ? AND user_id = ?`, id, userID)
	return affected(res, err, "保管庫アイテムの削除")
}

func affected(res sql.Result, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%sに失敗: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%sの件数取得に失敗: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
