package core

import (
	"github.com/google/uuid"
)

// CallID identifies one public operation call in logs
type CallID string

// NewCallID creates a new unique identifier using UUID v7 for time-ordered generation
func NewCallID() CallID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return CallID(id.String())
}

// String returns the string representation
func (id CallID) String() string {
	return string(id)
}

// Short returns the trailing random segment, enough to tell calls apart in a log
func (id CallID) Short() string {
	s := string(id)
	if len(s) > 8 {
		return s[len(s)-8:]
	}
	return s
}

// IsEmpty checks if the ID is empty
func (id CallID) IsEmpty() bool {
	return id == ""
}
