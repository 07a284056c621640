package enums

import "fmt"

// NotificationSeverity drives how a notification is styled by clients.
type NotificationSeverity string

const (
	NotificationInfo    NotificationSeverity = "info"
	NotificationSuccess NotificationSeverity = "success"
	NotificationWarning NotificationSeverity = "warning"
	NotificationDanger  NotificationSeverity = "danger"
)

var validNotificationSeverities = []NotificationSeverity{
	NotificationInfo,
	NotificationSuccess,
	NotificationWarning,
	NotificationDanger,
}

// IsValid checks whether the given severity matches the canonical set.
func (n NotificationSeverity) IsValid() bool {
	for _, candidate := range validNotificationSeverities {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationSeverity converts raw strings into NotificationSeverity.
func ParseNotificationSeverity(value string) (NotificationSeverity, error) {
	for _, candidate := range validNotificationSeverities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification severity %q", value)
}
