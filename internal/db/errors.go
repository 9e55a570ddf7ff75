package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound   = errors.New("db: key not found")
	ErrIndexNotFound = errors.New("db: index not found")
	ErrIndexExists   = errors.New("db: index already exists")
)

// CommandError is a failed server command. Key is the key or index it addressed, if any.
type CommandError struct {
	Command string
	Key     string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Key == "" {
		return e.Command + ": " + e.Err.Error()
	}
	return e.Command + " " + e.Key + ": " + e.Err.Error()
}

func (e *CommandError) Unwrap() error { return e.Err }
