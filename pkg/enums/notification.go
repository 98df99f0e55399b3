package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeWelcome       NotificationType = "welcome"
	NotificationTypeReengagement  NotificationType = "reengagement"
	NotificationTypeWelcomeBack   NotificationType = "welcome_back"
	NotificationTypeDueReminder   NotificationType = "due_reminder"
	NotificationTypeAccountUpdate NotificationType = "account_update"
	NotificationTypeBorrowReceipt NotificationType = "borrow_receipt"
	NotificationTypeReturnReceipt NotificationType = "return_receipt"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeWelcome,
	NotificationTypeReengagement,
	NotificationTypeWelcomeBack,
	NotificationTypeDueReminder,
	NotificationTypeAccountUpdate,
	NotificationTypeBorrowReceipt,
	NotificationTypeReturnReceipt,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
