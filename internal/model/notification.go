package model

import (
	"encoding/json"
	"time"
)

// Notification is a message to a single user. Only Read changes after
// creation.
type Notification struct {
	ID        int64           `json:"id"`
	Username  string          `json:"username"`
	Message   string          `json:"message"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Read      bool            `json:"read"`
	CreatedAt time.Time       `json:"created_at"`
}

// Notification types.
const (
	NotificationMatch         = "match"
	NotificationClaimRequest  = "claim_request"
	NotificationClaimAccepted = "claim_accepted"
	NotificationClaimRejected = "claim_rejected"
	NotificationInfo          = "info"
)

// ValidNotificationType reports whether t is a known notification type.
func ValidNotificationType(t string) bool {
	switch t {
	case NotificationMatch, NotificationClaimRequest, NotificationClaimAccepted,
		NotificationClaimRejected, NotificationInfo:
		return true
	}
	return false
}

// OutboxEntry is a notification waiting to be delivered.
type OutboxEntry struct {
	ID        int64
	Username  string
	Message   string
	Type      string
	Payload   json.RawMessage
	Attempts  int
	LastError string
	CreatedAt time.Time
}

// Payload encodes a notification payload. Values must be JSON-encodable.
func Payload(fields map[string]any) json.RawMessage {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return data
}
