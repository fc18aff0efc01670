package user

import "time"

// User はアカウント1件。パスワードハッシュとMFAシークレットはJSONに出さない。
type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Department   string    `db:"department" json:"department"`
	Avatar       string    `db:"avatar" json:"avatar"`
	IsAdmin      bool      `db:"is_admin" json:"is_admin"`
	MFAEnabled   bool      `db:"mfa_enabled" json:"mfa_enabled"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// CreateParams はアカウント作成時の入力。
type CreateParams struct {
	Username   string
	Password   string
	Name       string
	Email      string
	Department string
	IsAdmin    bool
}

// Profile は本人が更新できる項目。
type Profile struct {
	Name       string `db:"name"`
	Email      string `db:"email"`
	Department string `db:"department"`
	Avatar     string `db:"avatar"`
}

// AdminUpdate は管理者が更新できる項目。
type AdminUpdate struct {
	Name       string
	Email      string
	Department string
	IsAdmin    bool
}
