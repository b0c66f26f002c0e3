package chat

import (
	"time"

	"github.com/google/uuid"
)

// Session correlates every message of one panel instance to one backend conversation.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewSession returns a session with the given id, or a fresh UUID when id is blank.
func NewSession(id string) Session {
	if id == "" {
		id = uuid.NewString()
	}
	return Session{ID: id, CreatedAt: time.Now().UTC()}
}
