package common

import "errors"

var (
	// Store-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrAlreadyTerminal = errors.New("session already in terminal state")
	ErrInvalidSession  = errors.New("invalid session")

	// Sealing errors.
	ErrKeyUnavailable = errors.New("key unavailable")
	ErrIntegrity      = errors.New("ciphertext integrity check failed")

	// Provider errors (response cannot be interpreted).
	ErrProtocol = errors.New("protocol error")

	// Inbound token lifecycle.
	ErrTokenExpired = errors.New("token expired")

	ErrorInternal = errors.New("internal error")
)
