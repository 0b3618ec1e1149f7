package models

import "errors"

// Common errors for control plane operations.
var (
	// User errors
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateUser      = errors.New("user already exists")
	ErrUserDisabled       = errors.New("user account is disabled")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Config errors
	ErrPoolNotFound    = errors.New("pool not found")
	ErrReplicaNotFound = errors.New("replica not found")
	ErrNexusNotFound   = errors.New("nexus not found")
)
