package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/task-api/internal/domain"
)

// UserStore defines the interface for user data persistence.
//
// Mutations of the user row (profile updates and token-set edits) use
// optimistic concurrency: writes compare-and-swap on the record's version
// column and retry on a miss, so concurrent logins and logouts cannot
// overwrite each other's token-set edits.
type UserStore interface {
	// Create saves a new user to the store. The user must already carry a
	// hashed password. Returns ErrEmailExists if the email is taken and
	// validation errors from the domain User if data is invalid.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByEmail retrieves a user by their canonical (lowercase) email.
	// Returns ErrUserNotFound if the user does not exist.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update writes the user's mutable profile fields (name, email, hashed
	// password, age) with a compare-and-swap on user.Version. Returns
	// ErrUserNotFound if the user does not exist, ErrEmailExists on a unique
	// violation and ErrConflict if the version check keeps failing.
	Update(ctx context.Context, user *domain.User) error

	// Delete removes a user and, atomically in the same transaction, every
	// task the user owns. If the task cascade fails the user row survives.
	// Returns ErrUserNotFound if the user does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// AddToken appends a session token to the user's active set.
	AddToken(ctx context.Context, id uuid.UUID, token string) error

	// RemoveToken removes one matching token from the user's active set.
	// Removing a token that is not present is a no-op.
	RemoveToken(ctx context.Context, id uuid.UUID, token string) error

	// ClearTokens empties the user's active token set.
	ClearTokens(ctx context.Context, id uuid.UUID) error

	// UpdateAvatar replaces the user's avatar blob. A nil avatar clears it.
	UpdateAvatar(ctx context.Context, id uuid.UUID, avatar []byte) error

	// WithTx returns a UserStore that runs its statements on the given
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) UserStore
}
