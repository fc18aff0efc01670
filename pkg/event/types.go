// Package event は通知の種類と、種類ごとのペイロード・文面テンプレートを定義する。
package event

// Type は通知の種類を表す。
type Type string

const (
	// TypeTicketCreated はサポートチケットが作成されたことを表す。
	TypeTicketCreated Type = "ticket_created"
	// TypeTicketUpdated はチケットのステータスが更新されたことを表す。
	TypeTicketUpdated Type = "ticket_updated"
	// TypeTicketAssigned はチケットが担当者に割り当てられたことを表す。
	TypeTicketAssigned Type = "ticket_assigned"
	// TypeBiometricFailure は生体認証に失敗したことを表す。
	TypeBiometricFailure Type = "biometric_failure"
	// TypeSecurityAlert はセキュリティ上の警告を表す。
	TypeSecurityAlert Type = "security_alert"
	// TypeSystemMaintenance はメンテナンスの告知を表す。
	TypeSystemMaintenance Type = "system_maintenance"
	// TypePasswordReset はパスワードが変更されたことを表す。
	TypePasswordReset Type = "password_reset"
	// TypeUserCreated はユーザーアカウントが作成されたことを表す。
	TypeUserCreated Type = "user_created"
)

// Types は定義済みの通知種別の一覧。
var Types = []Type{
	TypeTicketCreated,
	TypeTicketUpdated,
	TypeTicketAssigned,
	TypeBiometricFailure,
	TypeSecurityAlert,
	TypeSystemMaintenance,
	TypePasswordReset,
	TypeUserCreated,
}

// Valid は定義済みの通知種別かどうかを返す。
func (t Type) Valid() bool {
	for _, v := range Types {
		if v == t {
			return true
		}
	}
	return false
}

// TicketCreatedData はticket_created通知のペイロード。
type TicketCreatedData struct {
	TicketID string `json:"ticket_id"`
	Subject  string `json:"subject"`
	Priority string `json:"priority"`
	Username string `json:"username"`
}

// TicketUpdatedData はticket_updated / ticket_assigned通知のペイロード。
type TicketUpdatedData struct {
	TicketID string `json:"ticket_id"`
	Subject  string `json:"subject"`
	Status   string `json:"status,omitempty"`
}

// BiometricFailureData はbiometric_failure通知のペイロード。
type BiometricFailureData struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IP       string `json:"ip"`
	Method   string `json:"method"`
}

// UserCreatedData はuser_created通知のペイロード。
type UserCreatedData struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// AlertData はsecurity_alert / system_maintenance通知のペイロード。
type AlertData struct {
	Message string `json:"message"`
}
