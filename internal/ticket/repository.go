package ticket

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrNotFound はチケットが存在しないことを表す。
var ErrNotFound = errors.New("チケットが見つかりません")

// Status はチケットの状態。
type Status string

const (
	StatusOpen       Status = "open"
	StatusProcessing Status = "processing"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// Priority はチケットの優先度。
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Ticket はサポートチケット1件。
type Ticket struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Subject     string    `db:"subject" json:"subject"`
	Description string    `db:"description" json:"description"`
	Status      Status    `db:"status" json:"status"`
	Priority    Priority  `db:"priority" json:"priority"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
	// Username と Department は管理者向け一覧でのみ埋まる。
	Username   string `db:"username" json:"username,omitempty"`
	Department string `db:"department" json:"department,omitempty"`
}

const ticketColumns = `t.id, t.user_id, t.subject, t.description, t.status, t.priority, t.created_at, t.updated_at,
	u.username, u.department`

// Repository はticketsテーブルへのアクセスを提供する。
type Repository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewRepository は新しいRepositoryを生成する。
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create はチケットを作成する。優先度が空の場合は medium。
func (r *Repository) Create(ctx context.Context, userID, subject, description string, priority Priority) (Ticket, error) {
	if priority == "" {
		priority = PriorityMedium
	}
	now := r.now()
	t := Ticket{
		ID:          uuid.New().String(),
		UserID:      userID,
		Subject:     subject,
		Description: description,
		Status:      StatusOpen,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO tickets
		(id, user_id, subject, description, status, priority, created_at, updated_at)
		VALUES (:id, :user_id, :subject, :description, :status, :priority, :created_at, :updated_at)`, t)
	if err != nil {
		return Ticket{}, fmt.Errorf("チケット作成に失敗: %w", err)
	}
	return t, nil
}

// Get はIDでチケットを取得する。
func (r *Repository) Get(ctx context.Context, id string) (Ticket, error) {
	var t Ticket
	err := r.db.GetContext(ctx, &t, `SELECT `+ticketColumns+`
		FROM tickets t JOIN users u ON u.id = t.user_id WHERE t.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Ticket{}, ErrNotFound
	}
	if err != nil {
		return Ticket{}, fmt.Errorf("チケット取得に失敗: %w", err)
	}
	return t, nil
}

// ListForUser はユーザーのチケットを新しい順に返す。
func (r *Repository) ListForUser(ctx context.Context, userID string) ([]Ticket, error) {
	tickets := []Ticket{}
	err := r.db.SelectContext(ctx, &tickets, `SELECT `+ticketColumns+`
		FROM tickets t JOIN users u ON u.id = t.user_id
		WHERE t.user_id = ? ORDER BY t.created_at DESC, t.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("チケット一覧取得に失敗: %w", err)
	}
	return tickets, nil
}

// ListAll は全チケットを新しい順に返す。
func (r *Repository) ListAll(ctx context.Context) ([]Ticket, error) {
	tickets := []Ticket{}
	err := r.db.SelectContext(ctx, &tickets, `SELECT `+ticketColumns+`
		FROM tickets t JOIN users u ON u.id = t.user_id ORDER BY t.created_at DESC, t.id`)
	if err != nil {
		return nil, fmt.Errorf("チケット一覧取得に失敗: %w", err)
	}
	return tickets, nil
}

// UpdateStatus はステータスを更新し、更新後のチケットを返す。
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status) (Ticket, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE tickets SET status = ?, updated_at = ? WHERE id = ?`, status, r.now(), id)
	if err != nil {
		return Ticket{}, fmt.Errorf("ステータス更新に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Ticket{}, fmt.Errorf("ステータス更新の件数取得に失敗: %w", err)
	}
	if n == 0 {
		return Ticket{}, ErrNotFound
	}
	return r.Get(ctx, id)
}
