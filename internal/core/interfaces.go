package core

import (
	"context"

	"github.com/target/projectdesk/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// Service implementations depend on these interfaces, not on the data package.

// AccountRepository persists registered accounts. Emails are stored normalized.
type AccountRepository interface {
	Create(ctx context.Context, req model.CreateAccountRequest) (*model.Account, error)
	// GetByEmail returns model.ErrAccountNotFound when no account matches.
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	// Update patches the account identified by email. A taken email yields model.ErrAccountExists.
	Update(ctx context.Context, email string, upd model.AccountUpdate) (*model.Account, error)
}

// ProjectRef addresses one project as seen by its owner.
type ProjectRef struct {
	OwnerEmail string
	ID         string
}

// ProjectRepository persists projects. Every read and write is scoped to the owner;
// a project owned by someone else is reported as model.ErrProjectNotFound.
type ProjectRepository interface {
	Create(ctx context.Context, ownerEmail string, req *model.CreateProjectRequest) (*model.Project, error)
	List(ctx context.Context, opts model.ProjectListOptions) ([]*model.Project, error)
	GetByID(ctx context.Context, ref ProjectRef) (*model.Project, error)
	Update(ctx context.Context, ref ProjectRef, req model.UpdateProjectRequest) (*model.Project, error)
	Delete(ctx context.Context, ref ProjectRef) error
}

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
