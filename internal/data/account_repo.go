package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/target/projectdesk/internal/core"
	"github.com/target/projectdesk/internal/domain/model"
	apperrors "github.com/target/projectdesk/internal/errors"
)

// AccountRepo provides database operations for registered accounts.
type AccountRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var _ core.AccountRepository = (*AccountRepo)(nil)

// NewAccountRepo creates a new AccountRepo instance with the given database connection.
func NewAccountRepo(db *sql.DB) *AccountRepo {
	return &AccountRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewAccountRepoWithTimeProvider creates an AccountRepo with a custom TimeProvider (useful for testing).
func NewAccountRepoWithTimeProvider(db *sql.DB, timeProvider TimeProvider) *AccountRepo {
	return &AccountRepo{DB: db, timeProvider: timeProvider}
}

// Create inserts a new account. The email must already be normalized.
func (r *AccountRepo) Create(ctx context.Context, req model.CreateAccountRequest) (*model.Account, error) {
	if req.Email == "" {
		return nil, errors.New("account email is required")
	}
	provider := req.Provider
	if provider == "" {
		provider = model.ProviderLocal
	}
	now := r.timeProvider.Now()

	acct, err := r.queryOne(ctx, accountInsertQuery, req.Email, req.Name, req.PasswordHash, provider, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", mapAccountWriteErr(err))
	}
	return acct, nil
}

// GetByEmail retrieves an account by its normalized email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	acct, err := r.queryOne(ctx, accountGetByEmailQuery, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by email: %w", apperrors.MapDBError(err))
	}
	return acct, nil
}

// Update applies the non-nil fields of upd to the account identified by email.
// An empty update returns the current row.
func (r *AccountRepo) Update(ctx context.Context, email string, upd model.AccountUpdate) (*model.Account, error) {
	if upd.IsEmpty() {
		return r.GetByEmail(ctx, email)
	}

	setParts := make([]string, 0, 4)
	args := make([]any, 0, 5)
	argIdx := 1
	add := func(column string, value any) {
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.PasswordHash != nil {
		add("password_hash", *upd.PasswordHash)
	}
	add("updated_at", r.timeProvider.Now())
	args = append(args, email)

	q := "UPDATE accounts SET " + strings.Join(setParts, ", ") +
		fmt.Sprintf(" WHERE email = $%d RETURNING %s", argIdx, accountColumns)

	acct, err := r.queryOne(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", mapAccountWriteErr(err))
	}
	return acct, nil
}

func (r *AccountRepo) queryOne(ctx context.Context, q string, args ...any) (*model.Account, error) {
	var acct model.Account
	err := withPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		acct, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Account])
		return err
	})
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func mapAccountWriteErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrAccountNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return model.ErrAccountExists
	}
	return apperrors.MapDBError(err)
}

const accountColumns = `id, email, name, password_hash, provider, created_at, updated_at`

const (
	accountInsertQuery = `
		INSERT INTO accounts (email, name, password_hash, provider, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING ` + accountColumns

	accountGetByEmailQuery = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE email = $1`
)
