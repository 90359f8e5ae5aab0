package dto

import (
	"time"

	"github.com/google/uuid"

	"instrument-advisor-be/pkg/store"
)

type SaveProjectRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Name      string `json:"name" validate:"required,min=1,max=120"`
}

type ProjectResponse struct {
	Id          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	SessionID   string    `json:"session_id"`
	ProductType string    `json:"product_type,omitempty"`
	Step        string    `json:"step"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProjectListResponse struct {
	Projects []ProjectResponse `json:"projects"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

type ProjectDetailResponse struct {
	ProjectResponse
	Messages      []MessageResponse      `json:"messages"`
	CollectedData map[string]interface{} `json:"collected_data"`
	Analysis      *store.AnalysisResult  `json:"analysis,omitempty"`
}

type RestoreProjectResponse struct {
	SessionID   string     `json:"session_id"`
	Step        store.Step `json:"step"`
	ProjectId   uuid.UUID  `json:"project_id"`
	ProductType string     `json:"product_type,omitempty"`
}
