package domain

import "errors"

// Sentinel errors for the application.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("resource already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrGroupFull      = errors.New("group is full")
	ErrBadCredentials = errors.New("wrong password")
)
