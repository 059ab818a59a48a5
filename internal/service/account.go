package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/target/projectdesk/internal/core"
	domainauth "github.com/target/projectdesk/internal/domain/auth"
	"github.com/target/projectdesk/internal/domain/model"
	apperrors "github.com/target/projectdesk/internal/errors"
	"github.com/target/projectdesk/internal/ports"
)

var (
	// ErrCurrentPasswordRequired is returned when a password change omits the current password.
	ErrCurrentPasswordRequired = errors.New("current password is required to set a new password")
	// ErrInvalidCurrentPassword is returned when the supplied current password does not verify.
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")
	// ErrEmailManagedByProvider is returned when an account created through SSO tries to change its email.
	ErrEmailManagedByProvider = errors.New("email is managed by the identity provider")
)

// AccountServiceOptions groups dependencies for AccountService.
type AccountServiceOptions struct {
	Repo   core.AccountRepository // Required: account persistence
	Hasher ports.PasswordHasher   // Required: hashing new passwords
	Logger *slog.Logger           // Optional: structured logger
}

// AccountService handles signup and account settings.
type AccountService struct {
	repo   core.AccountRepository
	hasher ports.PasswordHasher
	logger *slog.Logger
}

// NewAccountService constructs an AccountService.
func NewAccountService(opts AccountServiceOptions) (*AccountService, error) {
	if opts.Repo == nil {
		return nil, errors.New("account repository is required")
	}
	if opts.Hasher == nil {
		return nil, errors.New("password hasher is required")
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "account_service")
		logger.Debug("AccountService initialized")
	}
	return &AccountService{repo: opts.Repo, hasher: opts.Hasher, logger: logger}, nil
}

// Register creates a local account. A taken email yields model.ErrAccountExists.
func (s *AccountService) Register(ctx context.Context, req model.SignupRequest) (*model.Account, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	create := model.CreateAccountRequest{Email: req.Email, PasswordHash: &hash, Provider: model.ProviderLocal}
	if req.Name != "" {
		create.Name = &req.Name
	}

	acct, err := s.repo.Create(ctx, create)
	if err != nil {
		return nil, fmt.Errorf("register account: %w", err)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "account registered", "account_id", acct.ID)
	}
	return acct, nil
}

// GetSettings returns the settings of the authenticated account.
func (s *AccountService) GetSettings(ctx context.Context, id domainauth.Identity) (model.AccountSettings, error) {
	acct, err := s.repo.GetByEmail(ctx, id.Email)
	if err != nil {
		return model.AccountSettings{}, fmt.Errorf("get account: %w", err)
	}
	return acct.Settings(), nil
}

// UpdateSettingsResult reports the new settings and whether the login email changed.
type UpdateSettingsResult struct {
	Settings     model.AccountSettings
	EmailChanged bool
}

// UpdateSettings applies a settings change for the authenticated account.
// A password change requires the current password when one is set.
func (s *AccountService) UpdateSettings(
	ctx context.Context,
	id domainauth.Identity,
	req model.UpdateAccountRequest,
) (UpdateSettingsResult, error) {
	if err := req.Validate(); err != nil {
		return UpdateSettingsResult{}, apperrors.Validation(err.Error())
	}

	acct, err := s.repo.GetByEmail(ctx, id.Email)
	if err != nil {
		return UpdateSettingsResult{}, fmt.Errorf("get account: %w", err)
	}

	upd, err := s.buildUpdate(acct, req)
	if err != nil {
		return UpdateSettingsResult{}, err
	}
	if upd.IsEmpty() {
		return UpdateSettingsResult{Settings: acct.Settings()}, nil
	}

	updated, err := s.repo.Update(ctx, acct.Email, upd)
	if err != nil {
		return UpdateSettingsResult{}, fmt.Errorf("update account: %w", err)
	}
	return UpdateSettingsResult{Settings: updated.Settings(), EmailChanged: upd.Email != nil}, nil
}

func (s *AccountService) buildUpdate(acct *model.Account, req model.UpdateAccountRequest) (model.AccountUpdate, error) {
	var upd model.AccountUpdate

	if req.Email != nil {
		if email := model.NormalizeEmail(*req.Email); email != acct.Email {
			// The IdP owns the address of SSO accounts; the next SSO login would not find a moved account.
			if acct.Provider != model.ProviderLocal {
				return upd, ErrEmailManagedByProvider
			}
			upd.Email = &email
		}
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		upd.Name = &name
	}
	if !req.WantsPasswordChange() {
		return upd, nil
	}

	if acct.HasPassword() {
		if req.CurrentPassword == "" {
			return upd, ErrCurrentPasswordRequired
		}
		ok, err := s.hasher.Verify(req.CurrentPassword, *acct.PasswordHash)
		if err != nil || !ok {
			return upd, ErrInvalidCurrentPassword
		}
	}
	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return upd, fmt.Errorf("hash password: %w", err)
	}
	upd.PasswordHash = &hash
	return upd, nil
}

// SetPassword replaces the password of the account identified by email without
// checking the old one. It backs operator tooling.
func (s *AccountService) SetPassword(ctx context.Context, email, password string) error {
	if err := model.ValidatePassword(password); err != nil {
		return apperrors.Validation(err.Error())
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.repo.Update(ctx, model.NormalizeEmail(email), model.AccountUpdate{PasswordHash: &hash}); err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}
