package notification

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound は通知またはユーザーが存在しない、あるいは呼び出し元の所有でないことを表す。
	ErrNotFound = errors.New("対象が見つかりません")
	// ErrValidation は入力値が不正であることを表す。
	ErrValidation = errors.New("入力値が不正です")

	errSendQueueFull = errors.New("送信キューが満杯です")
)

// Channel は配信経路を表す。
type Channel string

const (
	// ChannelInApp はWebSocketによるアプリ内配信。
	ChannelInApp Channel = "in_app"
	// ChannelEmail はメール配信。
	ChannelEmail Channel = "email"
)

// PersistenceError は台帳への追記に失敗したことを表す。その受信者への配信は中止される。
type PersistenceError struct {
	RecipientID string
	Err         error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("受信者 %s の通知保存に失敗: %v", e.RecipientID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// DeliveryError はプッシュまたはメール送信に失敗したことを表す。常に致命的ではない。
type DeliveryError struct {
	RecipientID    string
	NotificationID string
	Channel        Channel
	Err            error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("通知 %s の %s 配信に失敗 (受信者 %s): %v", e.NotificationID, e.Channel, e.RecipientID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
