package dto

import (
	"time"

	"instrument-advisor-be/pkg/store"
)

type StartConversationResponse struct {
	SessionID string     `json:"session_id"`
	Step      store.Step `json:"step"`
	CreatedAt time.Time  `json:"created_at"`
}

type SendMessageRequest struct {
	Message string `json:"message" validate:"required"`
}

type FeedbackRequest struct {
	Type    string `json:"type" validate:"omitempty,oneof=positive negative"`
	Comment string `json:"comment" validate:"max=2000"`
}

type FeedbackResponse struct {
	SessionID string          `json:"session_id"`
	Reply     MessageResponse `json:"reply"`
}

type MessageResponse struct {
	ID        string                 `json:"id"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type SendMessageResponse struct {
	SessionID     string                 `json:"session_id"`
	Step          store.Step             `json:"step"`
	Replies       []MessageResponse      `json:"replies"`
	CollectedData map[string]interface{} `json:"collected_data"`
	ProductType   string                 `json:"product_type,omitempty"`
	Analysis      *AnalysisPayload       `json:"analysis,omitempty"`
}

type AnalysisPayload struct {
	Result      *store.AnalysisResult `json:"result"`
	DisplayMode string                `json:"display_mode"`
	Message     string                `json:"message"`
}

type ConversationResponse struct {
	SessionID     string                 `json:"session_id"`
	Step          store.Step             `json:"step"`
	Messages      []MessageResponse      `json:"messages"`
	CollectedData map[string]interface{} `json:"collected_data"`
	ProductType   string                 `json:"product_type,omitempty"`
	Analysis      *AnalysisPayload       `json:"analysis,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

func ToMessageResponse(m store.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.Content,
		Timestamp: m.Timestamp,
		Metadata:  m.Metadata,
	}
}

func ToMessageResponses(msgs []store.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ToMessageResponse(m))
	}
	return out
}
