package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Password policy constants. The minimum length and the forbidden substring
// are part of the registration contract.
const (
	MinPasswordLength = 7
	MaxPasswordLength = 72 // bcrypt's practical limit
)

// User represents a registered account.
//
// Tokens is the set of active session tokens issued to this user and not yet
// revoked; a token's presence in the set is proof of a live session. Version
// is the optimistic-concurrency counter used by the store for
// compare-and-swap writes, so concurrent token-set edits cannot silently
// overwrite each other.
type User struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Password       string    `json:"-"` // Plaintext, only set transiently during registration/updates
	HashedPassword string    `json:"-"` // Never expose the hash in JSON
	Age            int       `json:"age"`
	Tokens         []string  `json:"-"` // Active session allow-list, never exposed
	Avatar         []byte    `json:"-"` // Raw avatar blob, served via its own endpoint
	Version        int64     `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewUser creates a new User with the given fields. The email is lowercased
// and trimmed, the name trimmed. The plaintext password is kept on the
// struct; the caller is responsible for hashing it before the user is
// persisted.
func NewUser(name, email, password string, age int) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		Email:     NormalizeEmail(email),
		Password:  password,
		Age:       age,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// NormalizeEmail trims surrounding whitespace and lowercases the address.
// Emails are stored and compared in this canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate checks if the User has valid data.
// Returns a *ValidationError naming the first field that fails.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty")
	}

	if u.Name == "" {
		return NewValidationError("name", "cannot be empty")
	}

	if u.Email == "" {
		return NewValidationError("email", "cannot be empty")
	}
	if !validEmailFormat(u.Email) {
		return NewValidationError("email", "invalid email format")
	}

	if u.Age < 0 {
		return NewValidationError("age", "must be a non-negative number")
	}

	// During creation or a password update the plaintext is present and the
	// policy applies; existing records carry only the hash.
	if u.Password != "" {
		if err := ValidatePassword(u.Password); err != nil {
			return err
		}
	} else if u.HashedPassword == "" {
		return NewValidationError("password", "cannot be empty")
	}

	return nil
}

// ValidatePassword applies the password policy: minimum length 7, maximum 72,
// and the literal substring "password" is rejected regardless of case.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return NewValidationError("password", "must be at least 7 characters long")
	}
	if len(password) > MaxPasswordLength {
		return NewValidationError("password", "must be at most 72 characters long")
	}
	if strings.Contains(strings.ToLower(password), "password") {
		return NewValidationError("password", `cannot contain "password"`)
	}
	return nil
}

// validEmailFormat performs basic structural validation of an email address:
// exactly one non-leading, non-trailing '@', and a dot inside the domain
// part. Request-level validation adds validator/v10's email tag on top.
func validEmailFormat(email string) bool {
	atIndex := strings.IndexByte(email, '@')
	if atIndex <= 0 || atIndex == len(email)-1 {
		return false
	}
	if strings.IndexByte(email[atIndex+1:], '@') != -1 {
		return false
	}

	domain := email[atIndex+1:]
	dotIndex := strings.IndexByte(domain, '.')
	return dotIndex > 0 && dotIndex < len(domain)-1
}

// HasToken reports whether the given session token is in the user's active set.
func (u *User) HasToken(token string) bool {
	for _, t := range u.Tokens {
		if t == token {
			return true
		}
	}
	return false
}
