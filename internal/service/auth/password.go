package auth

import "golang.org/x/crypto/bcrypt"

// DefaultBcryptCost is the work factor applied to new password hashes.
// Cost 8 balances hashing latency against brute-force resistance and is
// part of the credential contract; raising it only affects new hashes,
// since bcrypt embeds the cost in the digest.
const DefaultBcryptCost = 8

// PasswordHasher defines the interface for one-way password hashing.
type PasswordHasher interface {
	// Hash transforms a plaintext password into an irreversible digest.
	Hash(password string) (string, error)
}

// PasswordVerifier defines the interface for comparing passwords.
type PasswordVerifier interface {
	// Compare compares a hashed password with its possible plaintext
	// equivalent. Returns nil on success, or an error on mismatch.
	Compare(hashedPassword, password string) error
}

// BcryptCodec implements PasswordHasher and PasswordVerifier using bcrypt.
type BcryptCodec struct {
	cost int
}

// NewBcryptCodec creates a BcryptCodec with the given work factor.
// A cost outside bcrypt's valid range falls back to DefaultBcryptCost.
func NewBcryptCodec(cost int) *BcryptCodec {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptCodec{cost: cost}
}

// Hash implements the PasswordHasher interface using bcrypt.
func (c *BcryptCodec) Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Compare implements the PasswordVerifier interface using bcrypt.
func (c *BcryptCodec) Compare(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
