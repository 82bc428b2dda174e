package models

// NotificationLevel is the severity of a transient notification.
type NotificationLevel string

const (
	NotifySuccess NotificationLevel = "success"
	NotifyInfo    NotificationLevel = "info"
	NotifyWarning NotificationLevel = "warning"
	NotifyError   NotificationLevel = "error"
)

// Notification is a transient message shown to the user.
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Message string            `json:"message"`
}
