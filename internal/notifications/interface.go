package notifications

import "github.com/brandguard/brandguard-bot/internal/models"

// NotificationInterface defines the notification service contract
type NotificationInterface interface {
	SendDigest(digest *models.Digest) error
	SendAlert(alert *models.Alert) error
}
