package meetings

import "errors"

var (
	// ErrNotFound is returned for an unknown meeting.
	ErrNotFound = errors.New("meeting not found")
	// ErrForbidden is returned when the caller does not own the meeting.
	ErrForbidden = errors.New("meeting belongs to another user")
	// ErrOwnerNotFound is returned when creating a meeting for a user that does not exist.
	ErrOwnerNotFound = errors.New("meeting owner does not exist")
	// ErrInvalidMeeting wraps field validation failures.
	ErrInvalidMeeting = errors.New("invalid meeting")
)
