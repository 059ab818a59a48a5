//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const maxDescriptionLen = 4096

// Project is a named workspace owned by one account.
type Project struct {
	ID          string    `json:"id"          db:"id"`
	OwnerID     string    `json:"-"           db:"owner_id"`
	Name        string    `json:"name"        db:"name"`
	Description *string   `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at"  db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"  db:"updated_at"`
}

// CreateProjectRequest represents a request to create a new project.
type CreateProjectRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// Validate validates the CreateProjectRequest fields.
func (r *CreateProjectRequest) Validate() error {
	if err := validateProjectName(r.Name); err != nil {
		return err
	}
	return validateDescription(r.Description)
}

// UpdateProjectRequest represents a request to update an existing project.
type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// HasUpdates reports whether any field is being changed.
func (r *UpdateProjectRequest) HasUpdates() bool {
	return r.Name != nil || r.Description != nil
}

// Validate validates the UpdateProjectRequest fields and ensures at least one field is being updated.
func (r *UpdateProjectRequest) Validate() error {
	if !r.HasUpdates() {
		return errors.New("at least one field must be updated")
	}
	if r.Name != nil {
		if err := validateProjectName(*r.Name); err != nil {
			return err
		}
	}
	return validateDescription(r.Description)
}

// ProjectListOptions scopes a project listing to one owner.
type ProjectListOptions struct {
	OwnerEmail string
	Limit      int
	Offset     int
}

func validateProjectName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name is required and cannot be empty")
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return errors.New("name cannot exceed 255 characters")
	}
	return nil
}

func validateDescription(desc *string) error {
	if desc != nil && utf8.RuneCountInString(*desc) > maxDescriptionLen {
		return errors.New("description cannot exceed 4096 characters")
	}
	return nil
}
