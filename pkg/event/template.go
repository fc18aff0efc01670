package event

import "fmt"

// Render は通知種別とペイロードから既定のタイトルと本文を生成する。
func Render(t Type, p Payload) (title, message string) {
	switch t {
	case TypeTicketCreated:
		return "New Support Ticket", fmt.Sprintf("A new support ticket has been created: %q", p.String("subject"))
	case TypeTicketUpdated:
		return "Ticket Updated", fmt.Sprintf("Ticket %q has been updated to status: %s", p.String("subject"), p.String("status"))
	case TypeTicketAssigned:
		return "Ticket Assigned", fmt.Sprintf("You have been assigned to ticket: %q", p.String("subject"))
	case TypeBiometricFailure:
		return "Biometric Access Failed", "Failed biometric access attempt detected for user: " + p.String("username")
	case TypeSecurityAlert:
		return "Security Alert", "Security alert: " + p.String("message")
	case TypeSystemMaintenance:
		return "System Maintenance", "Scheduled maintenance: " + p.String("message")
	case TypePasswordReset:
		return "Password Reset", "Your password has been successfully reset"
	case TypeUserCreated:
		return "New User Created", "New user account created: " + p.String("username")
	default:
		return "Notification", "You have a new notification"
	}
}
