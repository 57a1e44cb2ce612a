package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/task-api/internal/domain"
	"github.com/phrazzld/task-api/internal/platform/logger"
	"github.com/phrazzld/task-api/internal/store"
)

// maxCASAttempts bounds the retry loop for compare-and-swap writes against
// the user's version column before giving up with store.ErrConflict.
const maxCASAttempts = 5

// PostgresUserStore implements the store.UserStore interface
// using a PostgreSQL database as the storage backend.
//
// The user's session-token set is persisted as a JSONB array on the user
// row, and every mutation of the row goes through a compare-and-swap on the
// version column. Concurrent logins and logouts therefore retry instead of
// overwriting each other's token edits.
type PostgresUserStore struct {
	db     store.DBTX
	sqlDB  *sql.DB // nil when this instance is bound to a caller-managed transaction
	tasks  store.TaskStore
	logger *slog.Logger
}

// NewPostgresUserStore creates a new PostgreSQL implementation of the
// UserStore interface. It accepts a database connection that should be
// initialized and managed by the caller. The store owns a task store on the
// same connection for the account-deletion cascade.
func NewPostgresUserStore(db *sql.DB, logger *slog.Logger) *PostgresUserStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresUserStore{
		db:     db,
		sqlDB:  db,
		tasks:  NewPostgresTaskStore(db, logger),
		logger: logger.With(slog.String("component", "user_store")),
	}
}

// Ensure PostgresUserStore implements store.UserStore interface
var _ store.UserStore = (*PostgresUserStore)(nil)

// WithTx implements store.UserStore.WithTx
func (s *PostgresUserStore) WithTx(tx *sql.Tx) store.UserStore {
	return s.withTx(tx)
}

func (s *PostgresUserStore) withTx(tx *sql.Tx) *PostgresUserStore {
	return &PostgresUserStore{
		db:     tx,
		sqlDB:  nil,
		tasks:  s.tasks.WithTx(tx),
		logger: s.logger,
	}
}

const userColumns = `id, name, email, hashed_password, age, tokens, avatar, version, created_at, updated_at`

// Create implements store.UserStore.Create
// It saves a new user, returning store.ErrEmailExists when the canonical
// email is already taken.
func (s *PostgresUserStore) Create(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if user.HashedPassword == "" {
		return fmt.Errorf("%w: user must carry a hashed password", store.ErrInvalidEntity)
	}
	if err := user.Validate(); err != nil {
		log.Warn("user validation failed during create",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return err
	}

	tokens, err := marshalTokens(user.Tokens)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Name,
		user.Email,
		user.HashedPassword,
		user.Age,
		tokens,
		user.Avatar,
		user.Version,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if IsUniqueViolation(err) {
			log.Debug("email already exists",
				slog.String("email", user.Email))
			return store.ErrEmailExists
		}
		log.Error("failed to create user",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return MapError(err)
	}

	log.Info("user created successfully",
		slog.String("user_id", user.ID.String()))
	return nil
}

// GetByID implements store.UserStore.GetByID
func (s *PostgresUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.scanUser(ctx, s.db.QueryRowContext(ctx, query, id))
}

// GetByEmail implements store.UserStore.GetByEmail
// The email is canonicalized before the lookup.
func (s *PostgresUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return s.scanUser(ctx, s.db.QueryRowContext(ctx, query, domain.NormalizeEmail(email)))
}

func (s *PostgresUserStore) scanUser(ctx context.Context, row *sql.Row) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var user domain.User
	var tokens []byte

	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.HashedPassword,
		&user.Age,
		&tokens,
		&user.Avatar,
		&user.Version,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		log.Error("failed to scan user row", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	if err := json.Unmarshal(tokens, &user.Tokens); err != nil {
		return nil, fmt.Errorf("failed to decode token set: %w", err)
	}

	return &user, nil
}

// Update implements store.UserStore.Update
// It writes the mutable profile fields with a single compare-and-swap on
// user.Version; on success the version on the passed struct is advanced.
func (s *PostgresUserStore) Update(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := user.Validate(); err != nil {
		log.Warn("user validation failed during update",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return err
	}

	user.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET name = $1, email = $2, hashed_password = $3, age = $4,
		    version = version + 1, updated_at = $5
		WHERE id = $6 AND version = $7
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		user.Name,
		user.Email,
		user.HashedPassword,
		user.Age,
		user.UpdatedAt,
		user.ID,
		user.Version,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrEmailExists
		}
		log.Error("failed to update user",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if rows == 0 {
		// Either the row is gone or the version moved underneath us.
		if _, err := s.GetByID(ctx, user.ID); err != nil {
			return err
		}
		log.Warn("user update lost compare-and-swap race",
			slog.String("user_id", user.ID.String()),
			slog.Int64("version", user.Version))
		return store.ErrConflict
	}

	user.Version++
	return nil
}

// Delete implements store.UserStore.Delete
// The cascade is an explicit transaction: the user's tasks are deleted
// first, then the user row. If either statement fails the whole delete
// rolls back, so a user is never left without their tasks or vice versa.
func (s *PostgresUserStore) Delete(ctx context.Context, id uuid.UUID) error {
	if s.sqlDB != nil {
		return store.RunInTransaction(ctx, s.sqlDB, func(ctx context.Context, tx *sql.Tx) error {
			return s.withTx(tx).deleteCascade(ctx, id)
		})
	}
	// Already inside a caller-managed transaction.
	return s.deleteCascade(ctx, id)
}

// deleteCascade removes the user's tasks through the transaction-scoped task
// store, then the user row. Task deletion runs first so an error there
// aborts before the user row is touched.
func (s *PostgresUserStore) deleteCascade(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := s.tasks.DeleteAllByOwner(ctx, id); err != nil {
		log.Error("failed to cascade-delete tasks",
			slog.String("error", err.Error()),
			slog.String("user_id", id.String()))
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete user",
			slog.String("error", err.Error()),
			slog.String("user_id", id.String()))
		return MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if rows == 0 {
		return store.ErrUserNotFound
	}

	log.Info("user deleted with task cascade", slog.String("user_id", id.String()))
	return nil
}

// AddToken implements store.UserStore.AddToken
func (s *PostgresUserStore) AddToken(ctx context.Context, id uuid.UUID, token string) error {
	return s.mutateTokens(ctx, id, func(tokens []string) []string {
		return append(tokens, token)
	})
}

// RemoveToken implements store.UserStore.RemoveToken
// Removing a token that is not in the set is a no-op, which makes logout
// idempotent.
func (s *PostgresUserStore) RemoveToken(ctx context.Context, id uuid.UUID, token string) error {
	return s.mutateTokens(ctx, id, func(tokens []string) []string {
		kept := tokens[:0]
		for _, t := range tokens {
			if t != token {
				kept = append(kept, t)
			}
		}
		return kept
	})
}

// ClearTokens implements store.UserStore.ClearTokens
func (s *PostgresUserStore) ClearTokens(ctx context.Context, id uuid.UUID) error {
	return s.mutateTokens(ctx, id, func([]string) []string {
		return nil
	})
}

// mutateTokens applies an edit to the user's token set under the version
// compare-and-swap, retrying on lost races up to maxCASAttempts.
func (s *PostgresUserStore) mutateTokens(
	ctx context.Context,
	id uuid.UUID,
	mutate func([]string) []string,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		user, err := s.GetByID(ctx, id)
		if err != nil {
			return err
		}

		tokens, err := marshalTokens(mutate(user.Tokens))
		if err != nil {
			return err
		}

		query := `
			UPDATE users
			SET tokens = $1, version = version + 1, updated_at = $2
			WHERE id = $3 AND version = $4
		`
		result, err := s.db.ExecContext(ctx, query, tokens, time.Now().UTC(), id, user.Version)
		if err != nil {
			log.Error("failed to write token set",
				slog.String("error", err.Error()),
				slog.String("user_id", id.String()))
			return MapError(err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return MapError(err)
		}
		if rows == 1 {
			return nil
		}

		log.Debug("token set write lost compare-and-swap race, retrying",
			slog.String("user_id", id.String()),
			slog.Int("attempt", attempt+1))
	}

	return fmt.Errorf("%w: token set update for user %s", store.ErrConflict, id)
}

// UpdateAvatar implements store.UserStore.UpdateAvatar
func (s *PostgresUserStore) UpdateAvatar(ctx context.Context, id uuid.UUID, avatar []byte) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `UPDATE users SET avatar = $1, updated_at = $2 WHERE id = $3`
	result, err := s.db.ExecContext(ctx, query, avatar, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to update avatar",
			slog.String("error", err.Error()),
			slog.String("user_id", id.String()))
		return MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if rows == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

// marshalTokens encodes the token set for the JSONB column. A nil slice is
// stored as an empty array so the column never holds JSON null.
func marshalTokens(tokens []string) ([]byte, error) {
	if tokens == nil {
		tokens = []string{}
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to encode token set: %w", err)
	}
	return data, nil
}
