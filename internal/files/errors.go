package files

import "errors"

var (
	// ErrInvalidFile means the upload failed size, type or signature checks.
	ErrInvalidFile = errors.New("invalid file")
	// ErrNotFound covers unknown, deleted and inaccessible files alike.
	ErrNotFound = errors.New("file not found")
)
