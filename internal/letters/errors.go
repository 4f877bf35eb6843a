package letters

import "errors"

var (
	// ErrNotFound indicates the letter does not exist for this user.
	ErrNotFound = errors.New("letter not found")
	// ErrInvalidInput indicates a malformed request.
	ErrInvalidInput = errors.New("invalid input")
)
