package domain

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Task represents a single to-do item belonging to exactly one user.
// OwnerID is immutable after creation; every store operation on a task is
// scoped by it.
type Task struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewTask creates a new Task for the given owner. The title is normalized
// before validation.
func NewTask(ownerID uuid.UUID, title, description string) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Title:       NormalizeTitle(title),
		Description: strings.TrimSpace(description),
		Completed:   false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns a *ValidationError naming the first field that fails.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty")
	}
	if t.OwnerID == uuid.Nil {
		return NewValidationError("owner", "cannot be empty")
	}
	if t.Title == "" {
		return NewValidationError("title", "cannot be empty")
	}
	return nil
}

// SetTitle normalizes and applies a new title. Called on every title update
// so the normalization invariant holds regardless of entry path.
func (t *Task) SetTitle(title string) error {
	normalized := NormalizeTitle(title)
	if normalized == "" {
		return NewValidationError("title", "cannot be empty")
	}
	t.Title = normalized
	return nil
}

// NormalizeTitle trims the title, upper-cases the first rune and lower-cases
// the remainder. Normalization is idempotent. An all-whitespace title
// normalizes to the empty string, which fails validation.
func NormalizeTitle(title string) string {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return ""
	}

	runes := []rune(trimmed)
	head := unicode.ToUpper(runes[0])
	tail := strings.ToLower(string(runes[1:]))
	return string(head) + tail
}
