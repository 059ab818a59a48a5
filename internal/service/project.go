package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/projectdesk/internal/core"
	domainauth "github.com/target/projectdesk/internal/domain/auth"
	"github.com/target/projectdesk/internal/domain/model"
	apperrors "github.com/target/projectdesk/internal/errors"
)

// ProjectServiceOptions groups dependencies for ProjectService.
type ProjectServiceOptions struct {
	Repo   core.ProjectRepository // Required: project persistence
	Logger *slog.Logger           // Optional: structured logger
}

// ProjectService provides owner-scoped project management.
type ProjectService struct {
	repo   core.ProjectRepository
	logger *slog.Logger
}

// NewProjectService constructs a ProjectService.
func NewProjectService(opts ProjectServiceOptions) (*ProjectService, error) {
	if opts.Repo == nil {
		return nil, errors.New("project repository is required")
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "project_service")
		logger.Debug("ProjectService initialized")
	}
	return &ProjectService{repo: opts.Repo, logger: logger}, nil
}

// Create creates a project owned by id.
func (s *ProjectService) Create(
	ctx context.Context,
	id domainauth.Identity,
	req *model.CreateProjectRequest,
) (*model.Project, error) {
	if req == nil {
		return nil, apperrors.Validation("name is required and cannot be empty")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	p, err := s.repo.Create(ctx, id.Email, req)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	if s.logger != nil {
		s.logger.DebugContext(ctx, "project created", "project_id", p.ID)
	}
	return p, nil
}

// List returns the projects owned by id, newest first.
func (s *ProjectService) List(ctx context.Context, id domainauth.Identity, limit, offset int) ([]*model.Project, error) {
	projects, err := s.repo.List(ctx, model.ProjectListOptions{OwnerEmail: id.Email, Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// Get returns one project owned by id.
func (s *ProjectService) Get(ctx context.Context, id domainauth.Identity, projectID string) (*model.Project, error) {
	p, err := s.repo.GetByID(ctx, core.ProjectRef{OwnerEmail: id.Email, ID: projectID})
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// UpdateProjectInput groups parameters for ProjectService.Update.
type UpdateProjectInput struct {
	ProjectID string
	Request   model.UpdateProjectRequest
}

// Update patches a project owned by id.
func (s *ProjectService) Update(
	ctx context.Context,
	id domainauth.Identity,
	in UpdateProjectInput,
) (*model.Project, error) {
	if err := in.Request.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	p, err := s.repo.Update(ctx, core.ProjectRef{OwnerEmail: id.Email, ID: in.ProjectID}, in.Request)
	if err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	return p, nil
}

// Delete removes a project owned by id.
func (s *ProjectService) Delete(ctx context.Context, id domainauth.Identity, projectID string) error {
	if err := s.repo.Delete(ctx, core.ProjectRef{OwnerEmail: id.Email, ID: projectID}); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}
