package auth

import "errors"

// Common authentication service errors
var (
	// ErrInvalidToken indicates the token is malformed, missing, or its
	// signature doesn't match.
	ErrInvalidToken = errors.New("invalid authentication token")

	// ErrRevokedToken indicates the token's signature is valid but the token
	// is no longer in the user's active set (logout or logout-all).
	ErrRevokedToken = errors.New("authentication token has been revoked")

	// ErrAuthenticationFailed is the uniform credential failure. The message
	// deliberately doesn't distinguish an unknown email from a wrong
	// password, to avoid account enumeration.
	ErrAuthenticationFailed = errors.New("unable to login")
)
