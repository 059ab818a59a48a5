package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/target/projectdesk/internal/core"
	"github.com/target/projectdesk/internal/domain/model"
	apperrors "github.com/target/projectdesk/internal/errors"
)

const (
	defaultProjectListLimit = 50
	maxProjectListLimit     = 1000
)

// ProjectRepo provides owner-scoped database operations for projects.
type ProjectRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var _ core.ProjectRepository = (*ProjectRepo)(nil)

// NewProjectRepo creates a new ProjectRepo instance with the given database connection.
func NewProjectRepo(db *sql.DB) *ProjectRepo {
	return &ProjectRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewProjectRepoWithTimeProvider creates a ProjectRepo with a custom TimeProvider (useful for testing).
func NewProjectRepoWithTimeProvider(db *sql.DB, timeProvider TimeProvider) *ProjectRepo {
	return &ProjectRepo{DB: db, timeProvider: timeProvider}
}

// Create inserts a project owned by the account with ownerEmail.
// A missing owner yields model.ErrAccountNotFound.
func (r *ProjectRepo) Create(
	ctx context.Context,
	ownerEmail string,
	req *model.CreateProjectRequest,
) (*model.Project, error) {
	if req == nil {
		return nil, errors.New("create project request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := r.queryOne(ctx, projectInsertQuery,
		ownerEmail, strings.TrimSpace(req.Name), req.Description, r.timeProvider.Now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to create project: %w", apperrors.MapDBError(err))
	}
	return p, nil
}

// List returns the owner's projects, newest first.
func (r *ProjectRepo) List(ctx context.Context, opts model.ProjectListOptions) ([]*model.Project, error) {
	limit, offset := opts.Limit, opts.Offset
	if limit <= 0 {
		limit = defaultProjectListLimit
	}
	if limit > maxProjectListLimit {
		limit = maxProjectListLimit
	}
	if offset < 0 {
		offset = 0
	}

	var projects []model.Project
	err := withPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, projectListQuery, opts.OwnerEmail, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		projects, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Project])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", apperrors.MapDBError(err))
	}

	result := make([]*model.Project, len(projects))
	for i := range projects {
		result[i] = &projects[i]
	}
	return result, nil
}

// GetByID retrieves one project owned by ref.OwnerEmail.
func (r *ProjectRepo) GetByID(ctx context.Context, ref core.ProjectRef) (*model.Project, error) {
	if !validProjectID(ref.ID) {
		return nil, model.ErrProjectNotFound
	}
	p, err := r.queryOne(ctx, projectGetQuery, ref.ID, ref.OwnerEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", apperrors.MapDBError(err))
	}
	return p, nil
}

// Update patches the non-nil fields of req and bumps updated_at.
func (r *ProjectRepo) Update(
	ctx context.Context,
	ref core.ProjectRef,
	req model.UpdateProjectRequest,
) (*model.Project, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !validProjectID(ref.ID) {
		return nil, model.ErrProjectNotFound
	}

	setParts := make([]string, 0, 3)
	args := make([]any, 0, 5)
	argIdx := 1
	if req.Name != nil {
		setParts = append(setParts, fmt.Sprintf("name = $%d", argIdx))
		args = append(args, strings.TrimSpace(*req.Name))
		argIdx++
	}
	if req.Description != nil {
		setParts = append(setParts, fmt.Sprintf("description = $%d", argIdx))
		args = append(args, *req.Description)
		argIdx++
	}
	setParts = append(setParts, fmt.Sprintf("updated_at = $%d", argIdx))
	args = append(args, r.timeProvider.Now(), ref.ID, ref.OwnerEmail)

	q := "UPDATE projects p SET " + strings.Join(setParts, ", ") +
		fmt.Sprintf(` FROM accounts a
		WHERE p.id = $%d AND p.owner_id = a.id AND a.email = $%d
		RETURNING %s`, argIdx+1, argIdx+2, projectColumnsQualified)

	p, err := r.queryOne(ctx, q, args...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to update project: %w", apperrors.MapDBError(err))
	}
	return p, nil
}

// Delete removes one project owned by ref.OwnerEmail.
func (r *ProjectRepo) Delete(ctx context.Context, ref core.ProjectRef) error {
	if !validProjectID(ref.ID) {
		return model.ErrProjectNotFound
	}
	result, err := r.DB.ExecContext(ctx, projectDeleteQuery, ref.ID, ref.OwnerEmail)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", apperrors.MapDBError(err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrProjectNotFound
	}
	return nil
}

func (r *ProjectRepo) queryOne(ctx context.Context, q string, args ...any) (*model.Project, error) {
	var p model.Project
	err := withPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		p, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Project])
		return err
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// validProjectID rejects non-UUID ids before they reach Postgres as a cast error.
func validProjectID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

const projectColumnsQualified = `p.id, p.owner_id, p.name, p.description, p.created_at, p.updated_at`

const (
	projectInsertQuery = `
		INSERT INTO projects AS p (owner_id, name, description, created_at, updated_at)
		SELECT a.id, $2, $3, $4, $4
		FROM accounts a
		WHERE a.email = $1
		RETURNING ` + projectColumnsQualified

	projectGetQuery = `
		SELECT ` + projectColumnsQualified + `
		FROM projects p
		JOIN accounts a ON a.id = p.owner_id
		WHERE p.id = $1 AND a.email = $2`

	projectListQuery = `
		SELECT ` + projectColumnsQualified + `
		FROM projects p
		JOIN accounts a ON a.id = p.owner_id
		WHERE a.email = $1
		ORDER BY p.created_at DESC, p.id
		LIMIT $2 OFFSET $3`

	projectDeleteQuery = `
		DELETE FROM projects p
		USING accounts a
		WHERE p.id = $1 AND p.owner_id = a.id AND a.email = $2`
)
