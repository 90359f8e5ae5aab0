package mapper

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"instrument-advisor-be/internal/entity"
	"instrument-advisor-be/internal/model"
	"instrument-advisor-be/pkg/store"
)

type ProjectMapper struct{}

func NewProjectMapper() *ProjectMapper {
	return &ProjectMapper{}
}

func (m *ProjectMapper) ToEntity(p *model.Project) *entity.Project {
	if p == nil {
		return nil
	}

	var deletedAt *time.Time
	if p.DeletedAt.Valid {
		t := p.DeletedAt.Time
		deletedAt = &t
	}
	var updatedAt *time.Time
	if !p.UpdatedAt.IsZero() {
		t := p.UpdatedAt
		updatedAt = &t
	}

	var messages []store.Message
	if len(p.Messages) > 0 {
		_ = json.Unmarshal(p.Messages, &messages)
	}
	var collected map[string]interface{}
	if len(p.CollectedData) > 0 {
		_ = json.Unmarshal(p.CollectedData, &collected)
	}
	var analysis *store.AnalysisResult
	if len(p.Analysis) > 0 {
		analysis = &store.AnalysisResult{}
		if err := json.Unmarshal(p.Analysis, analysis); err != nil {
			analysis = nil
		}
	}

	return &entity.Project{
		Id:            p.Id,
		Name:          p.Name,
		SessionID:     p.SessionID,
		ProductType:   p.ProductType,
		Step:          store.Step(p.Step),
		Messages:      messages,
		CollectedData: collected,
		Analysis:      analysis,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     updatedAt,
		DeletedAt:     deletedAt,
		IsDeleted:     p.DeletedAt.Valid,
	}
}

func (m *ProjectMapper) ToModel(p *entity.Project) *model.Project {
	if p == nil {
		return nil
	}

	messages, _ := json.Marshal(p.Messages)
	collected, _ := json.Marshal(p.CollectedData)

	out := &model.Project{
		Id:            p.Id,
		Name:          p.Name,
		SessionID:     p.SessionID,
		ProductType:   p.ProductType,
		Step:          string(p.Step),
		Messages:      datatypes.JSON(messages),
		CollectedData: datatypes.JSON(collected),
		CreatedAt:     p.CreatedAt,
	}
	if p.Analysis != nil {
		analysis, _ := json.Marshal(p.Analysis)
		out.Analysis = datatypes.JSON(analysis)
	}
	if p.UpdatedAt != nil {
		out.UpdatedAt = *p.UpdatedAt
	}
	return out
}

func (m *ProjectMapper) ToEntities(models []*model.Project) []*entity.Project {
	entities := make([]*entity.Project, 0, len(models))
	for _, p := range models {
		entities = append(entities, m.ToEntity(p))
	}
	return entities
}
