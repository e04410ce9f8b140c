package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/sbilibin2017/watertemp-auth/internal/logger"
	"github.com/sbilibin2017/watertemp-auth/internal/models"
)

// Unique constraints declared by the accounts migration.
const (
	constraintUsername  = "accounts_username_key"
	constraintEmail     = "accounts_email_key"
	constraintSingleton = "accounts_singleton_idx"
)

const accountColumns = `id, username, password_hash, email, first_name, last_name, profile_picture, is_admin, created_at`

// txExecutor returns the request transaction when one is active, otherwise db.
func txExecutor(ctx context.Context, db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) sqlx.ExtContext {
	if txGetter != nil {
		if tx := txGetter(ctx); tx != nil {
			return tx
		}
	}
	return db
}

// classifyError maps unique violations onto store-level model errors.
func classifyError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return err
	}

	// constraintUsername and constraintSingleton both mean the account already exists.
	if pgErr.ConstraintName == constraintEmail {
		return models.ErrDuplicateEmail
	}
	return models.ErrDuplicateAccount
}

func oneLine(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

// AccountReadRepository handles account read operations.
type AccountReadRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
}

// NewAccountReadRepository creates a read repository. txGetter may be nil.
func NewAccountReadRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *AccountReadRepository {
	return &AccountReadRepository{db: db, txGetter: txGetter}
}

// Count returns the number of stored accounts.
func (r *AccountReadRepository) Count(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM accounts`

	var count int64
	err := sqlx.GetContext(ctx, txExecutor(ctx, r.db, r.txGetter), &count, query)

	logger.Log.Infow("db",
		"query", oneLine(query),
		"result", count,
		"error", err,
	)

	return count, err
}

// GetByUsername returns the account with exactly this username, or nil if none exists.
func (r *AccountReadRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE username = $1
	`
	return r.getOne(ctx, query, username)
}

// GetByID returns the account with the given id, or nil if none exists.
func (r *AccountReadRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1
	`
	return r.getOne(ctx, query, id)
}

// GetByIDForUpdate is GetByID with a row lock held until the request transaction ends.
func (r *AccountReadRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Account, error) {
	const query = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`
	return r.getOne(ctx, query, id)
}

func (r *AccountReadRepository) getOne(ctx context.Context, query string, arg any) (*models.Account, error) {
	var account models.Account
	err := sqlx.GetContext(ctx, txExecutor(ctx, r.db, r.txGetter), &account, query, arg)

	logger.Log.Infow("db",
		"query", oneLine(query),
		"args", []any{arg},
		"result", account.ID,
		"error", err,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	account.CreatedAt = account.CreatedAt.UTC()
	return &account, nil
}

// AccountWriteRepository handles account write operations.
type AccountWriteRepository struct {
	db       *sqlx.DB
	txGetter func(ctx context.Context) *sqlx.Tx
}

// NewAccountWriteRepository creates a write repository. txGetter may be nil.
func NewAccountWriteRepository(db *sqlx.DB, txGetter func(ctx context.Context) *sqlx.Tx) *AccountWriteRepository {
	return &AccountWriteRepository{db: db, txGetter: txGetter}
}

// Create inserts a new account and fills in its generated id and creation time.
// A rejected insert because an account already exists yields models.ErrDuplicateAccount.
func (r *AccountWriteRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	const query = `
		INSERT INTO accounts (username, password_hash, email, first_name, last_name, profile_picture, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	var (
		id        int64
		createdAt time.Time
	)
	err := txExecutor(ctx, r.db, r.txGetter).
		QueryRowxContext(ctx, query,
			account.Username, account.PasswordHash, account.Email,
			account.FirstName, account.LastName, account.ProfilePicture, account.IsAdmin,
		).
		Scan(&id, &createdAt)

	logger.Log.Infow("db",
		"query", oneLine(query),
		"args", []any{account.Username, account.Email, account.FirstName, account.LastName, account.IsAdmin},
		"result", id,
		"error", err,
	)

	if err != nil {
		return nil, classifyError(err)
	}

	created := *account
	created.ID = id
	created.CreatedAt = createdAt.UTC()
	return &created, nil
}

// Update stores the mutable profile fields of an account.
func (r *AccountWriteRepository) Update(ctx context.Context, account *models.Account) error {
	const query = `
		UPDATE accounts
		SET email = $2, first_name = $3, last_name = $4, profile_picture = $5
		WHERE id = $1
	`

	res, err := txExecutor(ctx, r.db, r.txGetter).ExecContext(ctx, query,
		account.ID, account.Email, account.FirstName, account.LastName, account.ProfilePicture,
	)
	affected := rowsAffected(res)

	logger.Log.Infow("db",
		"query", oneLine(query),
		"args", []any{account.ID, account.Email, account.FirstName, account.LastName},
		"result", affected,
		"error", err,
	)

	if err != nil {
		return classifyError(err)
	}
	return nil
}

// UpdatePasswordHash replaces the stored password hash of an account.
func (r *AccountWriteRepository) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	const query = `
		UPDATE accounts
		SET password_hash = $2
		WHERE id = $1
	`

	res, err := txExecutor(ctx, r.db, r.txGetter).ExecContext(ctx, query, id, passwordHash)
	affected := rowsAffected(res)

	logger.Log.Infow("db",
		"query", oneLine(query),
		"args", []any{id},
		"result", affected,
		"error", err,
	)

	return err
}

func rowsAffected(res sql.Result) int64 {
	if res == nil {
		return 0
	}
	n, _ := res.RowsAffected()
	return n
}
