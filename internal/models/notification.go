package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NotificationType is the read state. Unread moves to Read, never back.
type NotificationType string

const (
	NotificationUnread NotificationType = "Unread"
	NotificationRead   NotificationType = "Read"
)

// Notification is the durable record of something that happened to a user.
type Notification struct {
	ID          uuid.UUID        `json:"id"`
	UserID      uuid.UUID        `json:"user_id"`
	MessageType string           `json:"message_type"`
	Type        NotificationType `json:"type"`
	Data        json.RawMessage  `json:"data"`
	CreatedAt   time.Time        `json:"time_created"`
}

// NotificationCounts summarises a user's notification set.
type NotificationCounts struct {
	All    int `json:"all_notifications_count"`
	Unread int `json:"not_read_notifications_count"`
}
