//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MinPasswordLen is the minimum accepted password length in characters.
	MinPasswordLen = 8
	maxEmailLen    = 254
	maxNameLen     = 255
)

// Account providers.
const (
	ProviderLocal = "local"
	ProviderOIDC  = "oidc"
)

// Account is a registered principal. Email is the login identifier.
type Account struct {
	ID           string    `json:"id"         db:"id"`
	Email        string    `json:"email"      db:"email"`
	Name         *string   `json:"name"       db:"name"`
	PasswordHash *string   `json:"-"          db:"password_hash"`
	Provider     string    `json:"provider"   db:"provider"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// HasPassword reports whether the account can log in with a local password.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// Settings returns the user-facing view of the account.
func (a *Account) Settings() AccountSettings {
	s := AccountSettings{Email: a.Email, Provider: a.Provider}
	if a.Name != nil {
		s.Name = *a.Name
	}
	return s
}

// AccountSettings is what GET /api/account returns.
type AccountSettings struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// SignupRequest is the body of POST /api/signup.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// Normalize trims whitespace and lowercases the email.
func (r *SignupRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
	r.Name = strings.TrimSpace(r.Name)
}

// Validate validates the SignupRequest fields.
func (r *SignupRequest) Validate() error {
	if err := ValidateEmail(r.Email); err != nil {
		return err
	}
	if err := ValidatePassword(r.Password); err != nil {
		return err
	}
	if utf8.RuneCountInString(r.Name) > maxNameLen {
		return errors.New("name cannot exceed 255 characters")
	}
	return nil
}

// CreateAccountRequest is the repository-level insert payload.
type CreateAccountRequest struct {
	Email        string
	Name         *string
	PasswordHash *string
	Provider     string
}

// UpdateAccountRequest is the body of PUT /api/account.
type UpdateAccountRequest struct {
	Email           *string `json:"email,omitempty"`
	Name            *string `json:"name,omitempty"`
	CurrentPassword string  `json:"current_password,omitempty"`
	NewPassword     string  `json:"new_password,omitempty"`
}

// HasUpdates reports whether any field is being changed.
func (r *UpdateAccountRequest) HasUpdates() bool {
	return r.Email != nil || r.Name != nil || r.WantsPasswordChange()
}

// WantsPasswordChange reports whether a non-blank new password was supplied.
func (r *UpdateAccountRequest) WantsPasswordChange() bool {
	return strings.TrimSpace(r.NewPassword) != ""
}

// Validate validates the UpdateAccountRequest fields and ensures at least one field is being updated.
func (r *UpdateAccountRequest) Validate() error {
	if !r.HasUpdates() {
		return errors.New("at least one field must be updated")
	}
	if r.Email != nil {
		if err := ValidateEmail(NormalizeEmail(*r.Email)); err != nil {
			return err
		}
	}
	if r.Name != nil && utf8.RuneCountInString(strings.TrimSpace(*r.Name)) > maxNameLen {
		return errors.New("name cannot exceed 255 characters")
	}
	if r.WantsPasswordChange() {
		return ValidatePassword(r.NewPassword)
	}
	return nil
}

// AccountUpdate is the repository-level patch. Nil fields are left unchanged.
type AccountUpdate struct {
	Email        *string
	Name         *string
	PasswordHash *string
}

// IsEmpty reports whether the patch changes nothing.
func (u AccountUpdate) IsEmpty() bool {
	return u.Email == nil && u.Name == nil && u.PasswordHash == nil
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare address.
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	if utf8.RuneCountInString(email) > maxEmailLen {
		return errors.New("email cannot exceed 254 characters")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return errors.New("email is not a valid address")
	}
	return nil
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLen {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
