package transcript

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidRating is returned for a rating outside the 1-10 range.
var ErrInvalidRating = errors.New("rating must be between 1 and 10")

// Session is one logical conversation.
type Session struct {
	ID        string
	CreatedAt time.Time
	Title     string
	ThreadID  string
}

// Turn is one prompt or reply in a session's transcript. Rating is 0 when
// the exchange has not been rated.
type Turn struct {
	ID        string
	SessionID string
	CreatedAt time.Time
	Role      string
	Content   string
	Rating    int
	Feedback  string
}
