package dto

import "time"

// Notification is the real-time payload pushed to websocket clients.
type Notification struct {
	SessionID string                 `json:"session_id"`
	TypeCode  string                 `json:"type_code"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
