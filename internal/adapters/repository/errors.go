package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound          = errors.New("assessment not found")
	ErrDuplicate         = errors.New("assessment already stored")
	ErrInvalidLimit      = errors.New("invalid history limit")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)
