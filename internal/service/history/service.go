package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionRequired = errors.New("session id is required")

// Turn is one stored message of a backend conversation.
type Turn struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Service keeps a bounded in-memory history per session.
type Service struct {
	mu       sync.RWMutex
	limit    int
	sessions map[string][]Turn
}

// NewService returns a store keeping at most limit turns per session.
func NewService(limit int) *Service {
	if limit < 1 {
		limit = 1
	}
	return &Service{
		limit:    limit,
		sessions: make(map[string][]Turn),
	}
}

// Append records a turn, dropping the oldest ones beyond the limit.
func (s *Service) Append(_ context.Context, sessionID, role, content string) (Turn, error) {
	if sessionID == "" {
		return Turn{}, ErrSessionRequired
	}

	turn := Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.sessions[sessionID], turn)
	if len(turns) > s.limit {
		turns = append([]Turn(nil), turns[len(turns)-s.limit:]...)
	}
	s.sessions[sessionID] = turns
	return turn, nil
}

// Transcript returns a copy of the stored turns for sessionID.
func (s *Service) Transcript(_ context.Context, sessionID string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.sessions[sessionID]
	copied := make([]Turn, len(turns))
	copy(copied, turns)
	return copied
}

// Sessions returns the number of known sessions.
func (s *Service) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
