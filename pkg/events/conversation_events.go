package events

import "time"

// Event codes emitted by the conversation workflow.
const (
	TypeSessionStarted   = "SESSION_STARTED"
	TypeAnalysisComplete = "ANALYSIS_COMPLETED"
	TypeAnalysisFailed   = "ANALYSIS_FAILED"
)

// NewSessionStarted is emitted when a fresh advisory session is created.
func NewSessionStarted(sessionID string) Event {
	return BaseEvent{
		Type:       TypeSessionStarted,
		Data:       map[string]interface{}{"session_id": sessionID},
		OccurredAt: time.Now(),
	}
}

// NewAnalysisCompleted is emitted after a successful product analysis.
func NewAnalysisCompleted(sessionID, productType, message string, displayMode string, productCount int) Event {
	return BaseEvent{
		Type: TypeAnalysisComplete,
		Data: map[string]interface{}{
			"session_id":    sessionID,
			"product_type":  productType,
			"message":       message,
			"display_mode":  displayMode,
			"product_count": productCount,
		},
		OccurredAt: time.Now(),
	}
}

// NewAnalysisFailed is emitted when a product analysis run errors out.
func NewAnalysisFailed(sessionID, reason string) Event {
	return BaseEvent{
		Type: TypeAnalysisFailed,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"reason":     reason,
		},
		OccurredAt: time.Now(),
	}
}
