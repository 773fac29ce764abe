package application

import "errors"

var (
	// ErrNotFound is returned when a referenced resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrUnauthorized is returned when the acting principal lacks permission
	// over the referenced resource.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrInvalidCredentials is returned for failed authentication attempts
	// and missing or unknown tokens.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrSessionExpired is returned when a presented token is past its TTL.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned when a presented token was logged out.
	ErrSessionRevoked = errors.New("application: session revoked")
	// ErrAlreadyExists is returned when a write collides with an existing
	// record (duplicate email, duplicate user-app link).
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrDuplicateRequest is returned when a friend request already exists
	// in the pending state.
	ErrDuplicateRequest = errors.New("application: friend request already pending")
	// ErrAlreadyFriends is returned when a friend request targets an
	// accepted edge.
	ErrAlreadyFriends = errors.New("application: already friends")
	// ErrBlocked is returned when a friend request targets a blocked edge.
	ErrBlocked = errors.New("application: relationship is blocked")
	// ErrNotImplemented is returned for surfaces that are declared but not
	// yet backed by behavior.
	ErrNotImplemented = errors.New("application: not implemented")
)

// ValidationError captures field level validation issues that callers can
// surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
