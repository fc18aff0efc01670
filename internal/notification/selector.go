package notification

import (
	"context"
	"fmt"
)

type selectorKind int

const (
	selectorInvalid selectorKind = iota
	selectorSingleUser
	selectorAllAdmins
)

// Selector は通知の受信者を表す。SingleUser か AllAdmins で生成する。
// ゼロ値は不正なセレクタとして扱われる。
type Selector struct {
	kind   selectorKind
	userID string
}

// SingleUser は1人のユーザーを表すセレクタを返す。
func SingleUser(userID string) Selector {
	return Selector{kind: selectorSingleUser, userID: userID}
}

// AllAdmins は全管理者を表すセレクタを返す。
func AllAdmins() Selector {
	return Selector{kind: selectorAllAdmins}
}

// String はログ出力用の表現を返す。
func (s Selector) String() string {
	switch s.kind {
	case selectorSingleUser:
		return "user:" + s.userID
	case selectorAllAdmins:
		return "all_admins"
	default:
		return "invalid"
	}
}

// Directory はユーザーディレクトリ。セレクタの解決に使う。
type Directory interface {
	// GetRecipient はユーザーを返す。存在しない場合は ErrNotFound。
	GetRecipient(ctx context.Context, userID string) (Recipient, error)
	// ListAdmins は全管理者を返す。
	ListAdmins(ctx context.Context) ([]Recipient, error)
}

// Resolve はセレクタを具体的な受信者の一覧に解決する。
func (s Selector) Resolve(ctx context.Context, dir Directory) ([]Recipient, error) {
	switch s.kind {
	case selectorSingleUser:
		if s.userID == "" {
			return nil, fmt.Errorf("ユーザーIDが空です: %w", ErrValidation)
		}
		r, err := dir.GetRecipient(ctx, s.userID)
		if err != nil {
			return nil, fmt.Errorf("受信者 %s の取得に失敗: %w", s.userID, err)
		}
		return []Recipient{r}, nil
	case selectorAllAdmins:
		admins, err := dir.ListAdmins(ctx)
		if err != nil {
			return nil, fmt.Errorf("管理者一覧の取得に失敗: %w", err)
		}
		return admins, nil
	default:
		return nil, fmt.Errorf("セレクタが指定されていません: %w", ErrValidation)
	}
}
