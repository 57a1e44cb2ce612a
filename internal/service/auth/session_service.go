package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/task-api/internal/domain"
	"github.com/phrazzld/task-api/internal/platform/logger"
	"github.com/phrazzld/task-api/internal/store"
)

// SessionService manages the session-token lifecycle: issuing signed tokens,
// verifying them against the owner's live allow-list, and revoking them.
type SessionService interface {
	// Issue creates a signed token bound to the user and appends it to the
	// user's active token set. The token is returned to the client and its
	// presence in the set is what keeps the session alive.
	Issue(ctx context.Context, userID uuid.UUID) (string, error)

	// Verify checks the token's signature and then its membership in the
	// referenced user's current token set. Returns the user and the raw
	// token on success; ErrInvalidToken for structural failures and
	// ErrRevokedToken when a structurally valid token has been revoked.
	Verify(ctx context.Context, token string) (*domain.User, error)

	// Revoke removes one matching token from the user's set. Idempotent.
	Revoke(ctx context.Context, userID uuid.UUID, token string) error

	// RevokeAll empties the user's token set, ending every session at once.
	RevokeAll(ctx context.Context, userID uuid.UUID) error

	// FindByCredentials resolves an email/password pair to a user, failing
	// with the uniform ErrAuthenticationFailed on any mismatch.
	FindByCredentials(ctx context.Context, email, password string) (*domain.User, error)
}

// hmacSessionService signs session tokens with HMAC-SHA256.
//
// Tokens are stateless-signed but capability-checked: Verify consults the
// user's persisted token set, so revocation takes effect immediately without
// a blacklist. The tokens deliberately carry no expiry claim — removal from
// the set is the only end of a session's life.
type hmacSessionService struct {
	signingKey []byte
	userStore  store.UserStore
	verifier   PasswordVerifier
	timeFunc   func() time.Time // Injectable for testing
}

// sessionClaims defines the JWT claims carried by a session token. Only the
// owning user's ID is encoded; nothing else sensitive goes on the wire.
type sessionClaims struct {
	UserID uuid.UUID `json:"uid"`
	jwt.RegisteredClaims
}

// Ensure hmacSessionService implements SessionService interface
var _ SessionService = (*hmacSessionService)(nil)

// NewSessionService creates a SessionService using HMAC-SHA256 signing.
// The secret must be at least 32 bytes; configuration enforces this at
// startup as well.
func NewSessionService(secret string, userStore store.UserStore, verifier PasswordVerifier) (SessionService, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("token secret must be at least 32 characters")
	}
	if userStore == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("password verifier is required")
	}

	return &hmacSessionService{
		signingKey: []byte(secret),
		userStore:  userStore,
		verifier:   verifier,
		timeFunc:   time.Now,
	}, nil
}

// Issue implements SessionService.Issue
func (s *hmacSessionService) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	log := logger.FromContext(ctx)

	claims := sessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID.String(),
			IssuedAt: jwt.NewNumericDate(s.timeFunc()),
			ID:       uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		log.Error("failed to sign session token",
			"error", err,
			"user_id", userID)
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	if err := s.userStore.AddToken(ctx, userID, signed); err != nil {
		log.Error("failed to persist session token",
			"error", err,
			"user_id", userID)
		return "", fmt.Errorf("failed to persist session token: %w", err)
	}

	return signed, nil
}

// Verify implements SessionService.Verify
func (s *hmacSessionService) Verify(ctx context.Context, tokenString string) (*domain.User, error) {
	log := logger.FromContext(ctx)

	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&sessionClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
	)
	if err != nil {
		log.Debug("session token validation failed", "error", err)
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid || claims.UserID == uuid.Nil {
		log.Debug("session token has invalid claims")
		return nil, ErrInvalidToken
	}

	user, err := s.userStore.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The account is gone; its tokens died with it.
			return nil, ErrRevokedToken
		}
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}

	if !user.HasToken(tokenString) {
		log.Debug("session token not in active set",
			"user_id", claims.UserID)
		return nil, ErrRevokedToken
	}

	return user, nil
}

// Revoke implements SessionService.Revoke
func (s *hmacSessionService) Revoke(ctx context.Context, userID uuid.UUID, token string) error {
	return s.userStore.RemoveToken(ctx, userID, token)
}

// RevokeAll implements SessionService.RevokeAll
func (s *hmacSessionService) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	return s.userStore.ClearTokens(ctx, userID)
}

// FindByCredentials implements SessionService.FindByCredentials
// Unknown email and wrong password produce the identical error, so callers
// cannot probe which addresses are registered.
func (s *hmacSessionService) FindByCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.userStore.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAuthenticationFailed
		}
		return nil, fmt.Errorf("failed to look up credentials: %w", err)
	}

	if err := s.verifier.Compare(user.HashedPassword, password); err != nil {
		return nil, ErrAuthenticationFailed
	}

	return user, nil
}
