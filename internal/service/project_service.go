package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"instrument-advisor-be/internal/dto"
	"instrument-advisor-be/internal/entity"
	"instrument-advisor-be/internal/pkg/logger"
	"instrument-advisor-be/internal/repository/contract"
	"instrument-advisor-be/internal/repository/memory"
	"instrument-advisor-be/internal/repository/specification"
	"instrument-advisor-be/pkg/store"
)

var ErrProjectNotFound = errors.New("project not found")

const (
	defaultProjectPageSize = 20
	maxProjectPageSize     = 100
)

type IProjectService interface {
	Save(ctx context.Context, req dto.SaveProjectRequest) (*dto.ProjectResponse, error)
	GetAll(ctx context.Context, page, limit int) (*dto.ProjectListResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.ProjectDetailResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Restore(ctx context.Context, id uuid.UUID) (*dto.RestoreProjectResponse, error)
}

type projectService struct {
	projects contract.ProjectRepository
	sessions *memory.SessionRepository
	logger   logger.ILogger
}

func NewProjectService(projects contract.ProjectRepository, sessions *memory.SessionRepository, log logger.ILogger) IProjectService {
	return &projectService{
		projects: projects,
		sessions: sessions,
		logger:   log,
	}
}

// Save snapshots a live session under the given name. Saving the same
// session twice updates the existing project instead of duplicating it.
func (s *projectService) Save(ctx context.Context, req dto.SaveProjectRequest) (*dto.ProjectResponse, error) {
	conv, ok := s.sessions.Get(req.SessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	existing, err := s.projects.FindOne(ctx, specification.BySessionID{SessionID: req.SessionID})
	if err != nil {
		return nil, err
	}

	project := snapshotProject(conv, req.Name)
	if existing != nil {
		project.Id = existing.Id
		project.CreatedAt = existing.CreatedAt
		err = s.projects.Update(ctx, project)
	} else {
		err = s.projects.Create(ctx, project)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("ProjectService", "Project saved", map[string]interface{}{
		"project_id": project.Id.String(), "session_id": req.SessionID, "name": req.Name,
	})
	return toProjectResponse(project), nil
}

// GetAll lists saved projects newest-first, one page at a time.
func (s *projectService) GetAll(ctx context.Context, page, limit int) (*dto.ProjectListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxProjectPageSize {
		limit = defaultProjectPageSize
	}

	total, err := s.projects.Count(ctx)
	if err != nil {
		return nil, err
	}

	projects, err := s.projects.FindAll(ctx,
		specification.OrderBy{Field: "updated_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: (page - 1) * limit},
	)
	if err != nil {
		return nil, err
	}

	out := make([]dto.ProjectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, *toProjectResponse(p))
	}
	return &dto.ProjectListResponse{Projects: out, Total: total, Page: page, Limit: limit}, nil
}

func (s *projectService) Get(ctx context.Context, id uuid.UUID) (*dto.ProjectDetailResponse, error) {
	project, err := s.projects.FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}

	return &dto.ProjectDetailResponse{
		ProjectResponse: *toProjectResponse(project),
		Messages:        dto.ToMessageResponses(project.Messages),
		CollectedData:   project.CollectedData,
		Analysis:        project.Analysis,
	}, nil
}

func (s *projectService) Delete(ctx context.Context, id uuid.UUID) error {
	project, err := s.projects.FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return err
	}
	if project == nil {
		return ErrProjectNotFound
	}
	return s.projects.Delete(ctx, id)
}

// Restore spins up a fresh live session seeded from a saved project so
// the conversation can continue where it was archived.
func (s *projectService) Restore(ctx context.Context, id uuid.UUID) (*dto.RestoreProjectResponse, error) {
	project, err := s.projects.FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}

	conv := store.NewConversation()
	conv.Step = project.Step
	conv.ProductType = project.ProductType
	conv.Messages = append(conv.Messages, project.Messages...)
	conv.Analysis = project.Analysis
	conv.HasValidated = project.ProductType != ""
	if project.CollectedData != nil {
		conv.CollectedData = make(map[string]interface{}, len(project.CollectedData))
		for k, v := range project.CollectedData {
			conv.CollectedData[k] = v
		}
	}
	s.sessions.Save(conv)

	s.logger.Info("ProjectService", "Project restored into live session", map[string]interface{}{
		"project_id": id.String(), "session_id": conv.SessionID,
	})
	return &dto.RestoreProjectResponse{
		SessionID:   conv.SessionID,
		Step:        conv.Step,
		ProjectId:   project.Id,
		ProductType: project.ProductType,
	}, nil
}

func snapshotProject(conv *store.Conversation, name string) *entity.Project {
	return &entity.Project{
		Id:            uuid.New(),
		Name:          name,
		SessionID:     conv.SessionID,
		ProductType:   conv.ProductType,
		Step:          conv.Step,
		Messages:      conv.Messages,
		CollectedData: conv.CollectedData,
		Analysis:      conv.Analysis,
		CreatedAt:     conv.CreatedAt,
	}
}

func toProjectResponse(p *entity.Project) *dto.ProjectResponse {
	resp := &dto.ProjectResponse{
		Id:          p.Id,
		Name:        p.Name,
		SessionID:   p.SessionID,
		ProductType: p.ProductType,
		Step:        string(p.Step),
		CreatedAt:   p.CreatedAt,
	}
	if p.UpdatedAt != nil {
		resp.UpdatedAt = *p.UpdatedAt
	}
	return resp
}
