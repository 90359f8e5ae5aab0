package dto

// ArchiveSessionMessage asks the background consumer to persist a
// finished advisory session as a project snapshot.
type ArchiveSessionMessage struct {
	SessionID string `json:"session_id"`
	// Name is optional; the consumer derives one from the product type
	// when empty.
	Name string `json:"name,omitempty"`
	// Ephemeral marks sessions that should be removed from the live
	// store once archived.
	Ephemeral bool `json:"ephemeral,omitempty"`
}
