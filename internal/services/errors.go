package services

import (
	"errors"

	"github.com/bloglist/apiserver/internal/store"
)

var (
	// ErrNotFound is returned for operations on an unknown id.
	ErrNotFound = store.ErrNotFound

	// ErrConflict is returned when registering a username that is taken.
	ErrConflict = store.ErrConflict

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidInput       = errors.New("invalid input")
)
