package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/task-api/internal/domain"
)

// Sort directions accepted by ListOptions.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// ListOptions carries the optional filter, sort and pagination parameters
// for listing a user's tasks. Zero values mean "no constraint".
type ListOptions struct {
	// Completed filters on the completed flag when non-nil.
	Completed *bool

	// SortBy names the column to order by. Implementations whitelist the
	// accepted fields; an unknown field is a validation error.
	SortBy string

	// SortDir is SortAsc or SortDesc; defaults to ascending.
	SortDir string

	// Limit caps the number of rows returned; 0 means no limit.
	Limit int

	// Skip offsets into the result set for pagination.
	Skip int
}

// TaskStore defines the interface for task data persistence.
//
// Every owner-scoped operation filters by the owner's ID in the query
// itself: a task that exists but belongs to another user behaves exactly
// like a missing one (ErrTaskNotFound), so ownership is never leaked.
type TaskStore interface {
	// Create saves a new task. Returns validation errors from the domain
	// Task if data is invalid and ErrInvalidEntity if the owner is gone.
	Create(ctx context.Context, task *domain.Task) error

	// GetByOwner retrieves the task with the given ID if it belongs to
	// ownerID. Returns ErrTaskNotFound otherwise.
	GetByOwner(ctx context.Context, ownerID, id uuid.UUID) (*domain.Task, error)

	// ListByOwner returns the owner's tasks, filtered, sorted and paginated
	// per opts. The relationship is always computed by query, never stored.
	ListByOwner(ctx context.Context, ownerID uuid.UUID, opts ListOptions) ([]*domain.Task, error)

	// Update persists the task's mutable fields (title, description,
	// completed), scoped to task.OwnerID. Returns ErrTaskNotFound if the
	// task does not exist for this owner.
	Update(ctx context.Context, task *domain.Task) error

	// DeleteByOwner removes the task with the given ID if it belongs to
	// ownerID. Returns ErrTaskNotFound otherwise.
	DeleteByOwner(ctx context.Context, ownerID, id uuid.UUID) error

	// DeleteAllByOwner removes every task the owner has. Used by the
	// account-deletion cascade; deleting zero tasks is not an error.
	DeleteAllByOwner(ctx context.Context, ownerID uuid.UUID) error

	// ListIncomplete returns every task with completed = false across all
	// owners. This is the reminder scheduler's scan query.
	ListIncomplete(ctx context.Context) ([]*domain.Task, error)

	// WithTx returns a TaskStore that runs its statements on the given
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) TaskStore
}
