package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/nao1215/vaultdesk/internal/notification"
	"github.com/nao1215/vaultdesk/internal/store"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNotFound はユーザーが存在しないことを表す。notification.ErrNotFound としても判定できる。
	ErrNotFound = fmt.Errorf("ユーザーが見つかりません: %w", notification.ErrNotFound)
	// ErrDuplicateUsername はユーザー名が既に使われていることを表す。
	ErrDuplicateUsername = errors.New("ユーザー名は既に使われています")
	// ErrInvalidCredentials はユーザー名またはパスワードが一致しないことを表す。
	ErrInvalidCredentials = errors.New("ユーザー名またはパスワードが正しくありません")
	// ErrLastAdmin は最後の管理者を削除または降格しようとしたことを表す。
	ErrLastAdmin = errors.New("最後の管理者は削除・降格できません")
)

const userColumns = `id, username, password_hash, name, email, department, avatar, is_admin, mfa_enabled, created_at`

// Repository はusersテーブルへのアクセスを提供する。
type Repository struct {
	db *sqlx.DB
	// cost はbcryptのコスト。テストでは下げる。
	cost int
}

// NewRepository は新しいRepositoryを生成する。
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db, cost: bcrypt.DefaultCost}
}

// HashPassword はパスワードをbcryptでハッシュ化する。
func (r *Repository) HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), r.cost)
	if err != nil {
		return "", fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}
	return string(b), nil
}

// Get はIDでユーザーを取得する。
func (r *Repository) Get(ctx context.Context, id string) (User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("ユーザー取得に失敗: %w", err)
	}
	return u, nil
}

// FindByUsername はユーザー名でユーザーを取得する。
func (r *Repository) FindByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("ユーザー取得に失敗: %w", err)
	}
	return u, nil
}

// List は全ユーザーを新しい順に返す。
func (r *Repository) List(ctx context.Context) ([]User, error) {
	users := []User{}
	if err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, username`); err != nil {
		return nil, fmt.Errorf("ユーザー一覧取得に失敗: %w", err)
	}
	return users, nil
}

// GetRecipient は通知の受信者としてユーザーを解決する。
func (r *Repository) GetRecipient(ctx context.Context, id string) (notification.Recipient, error) {
	var rc notification.Recipient
	err := r.db.GetContext(ctx, &rc, `SELECT id, username, email, is_admin FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return notification.Recipient{}, ErrNotFound
	}
	if err != nil {
		return notification.Recipient{}, fmt.Errorf("受信者の取得に失敗: %w", err)
	}
	return rc, nil
}

// ListAdmins は全管理者を受信者として返す。
func (r *Repository) ListAdmins(ctx context.Context) ([]notification.Recipient, error) {
	admins := []notification.Recipient{}
	err := r.db.SelectContext(ctx, &admins, `SELECT id, username, email, is_admin FROM users WHERE is_admin = 1 ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("管理者一覧の取得に失敗: %w", err)
	}
	return admins, nil
}

// Create はアカウントを作成する。通知設定は両方有効で始まる。
func (r *Repository) Create(ctx context.Context, p CreateParams) (User, error) {
	hash, err := r.HashPassword(p.Password)
	if err != nil {
		return User{}, err
	}
	u := User{
		ID:           uuid.New().String(),
		Username:     p.Username,
		PasswordHash: hash,
		Name:         p.Name,
		Email:        p.Email,
		Department:   p.Department,
		IsAdmin:      p.IsAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	_, err = r.db.NamedExecContext(ctx, `INSERT INTO users
		(id, username, password_hash, name, email, department, avatar, is_admin, created_at)
		VALUES (:id, :username, :password_hash, :name, :email, :department, :avatar, :is_admin, :created_at)`, u)
	if store.IsUniqueViolation(err) {
		return User{}, ErrDuplicateUsername
	}
	if err != nil {
		return User{}, fmt.Errorf("ユーザー作成に失敗: %w", err)
	}
	return u, nil
}

// Authenticate はユーザー名とパスワードを照合する。
// 存在しないユーザーとパスワード不一致は区別せず ErrInvalidCredentials を返す。
func (r *Repository) Authenticate(ctx context.Context, username, password string) (User, error) {
	u, err := r.FindByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// UpdateProfile は本人のプロフィールを更新する。
func (r *Repository) UpdateProfile(ctx context.Context, id string, p Profile) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, department = ?, avatar = ? WHERE id = ?`,
		p.Name, p.Email, p.Department, p.Avatar, id)
	return affected(res, err, "プロフィール更新")
}

// ChangePassword は現在のパスワードを確認してから新しいパスワードに置き換える。
func (r *Repository) ChangePassword(ctx context.Context, id, current, next string) error {
	u, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := r.HashPassword(next)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
	return affected(res, err, "パスワード更新")
}

// Update は管理者によるユーザー更新。最後の管理者の降格は拒否する。
func (r *Repository) Update(ctx context.Context, id string, p AdminUpdate) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if !p.IsAdmin {
		if err := guardLastAdmin(ctx, tx, id); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, department = ?, is_admin = ? WHERE id = ?`,
		p.Name, p.Email, p.Department, p.IsAdmin, id)
	if err := affected(res, err, "ユーザー更新"); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

// Delete はユーザーを削除する。関連データは外部キーで連鎖削除される。最後の管理者は削除できない。
func (r *Repository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := guardLastAdmin(ctx, tx, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err := affected(res, err, "ユーザー削除"); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

// guardLastAdmin は id が唯一の管理者であれば ErrLastAdmin を返す。
func guardLastAdmin(ctx context.Context, tx *sqlx.Tx, id string) error {
	var isAdmin bool
	err := tx.GetContext(ctx, &isAdmin, `SELECT is_admin FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("ユーザー取得に失敗: %w", err)
	}
	if !isAdmin {
		return nil
	}
	var admins int
	if err := tx.GetContext(ctx, &admins, `SELECT COUNT(*) FROM users WHERE is_admin = 1`); err != nil {
		return fmt.Errorf("管理者数の取得に失敗: %w", err)
	}
	if admins <= 1 {
		return ErrLastAdmin
	}
	return nil
}

// CountAdmins は管理者の数を返す。
func (r *Repository) CountAdmins(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE is_admin = 1`); err != nil {
		return 0, fmt.Errorf("管理者数の取得に失敗: %w", err)
	}
	return n, nil
}

// EnsureAdmin は管理者が1人もいない場合に限り管理者アカウントを作成する。
// 作成した場合は true を返す。
func (r *Repository) EnsureAdmin(ctx context.Context, p CreateParams) (User, bool, error) {
	n, err := r.CountAdmins(ctx)
	if err != nil {
		return User{}, false, err
	}
	if n > 0 {
		return User{}, false, nil
	}
	p.IsAdmin = true
	u, err := r.Create(ctx, p)
	if err != nil {
		return User{}, false, err
	}
	return u, true, nil
}

// affected は更新件数が0の場合に ErrNotFound を返す。
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
