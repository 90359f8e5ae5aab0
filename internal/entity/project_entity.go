package entity

import (
	"time"

	"github.com/google/uuid"

	"instrument-advisor-be/pkg/store"
)

// Project is a saved advisory session snapshot.
type Project struct {
	Id            uuid.UUID
	Name          string
	SessionID     string
	ProductType   string
	Step          store.Step
	Messages      []store.Message
	CollectedData map[string]interface{}
	Analysis      *store.AnalysisResult
	CreatedAt     time.Time
	UpdatedAt     *time.Time
	DeletedAt     *time.Time
	IsDeleted     bool
}
