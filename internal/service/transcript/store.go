package transcript

import (
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/zhouzirui/chat-relay/backend/internal/model/chat"
)

// Store is the append-only conversation log owned by one chat facade.
type Store struct {
	mu    sync.RWMutex
	turns []chat.Turn
	now   func() time.Time
}

// NewStore returns an empty transcript.
func NewStore() *Store {
	return &Store{
		turns: make([]chat.Turn, 0, 16),
		now:   time.Now,
	}
}

// Append records a turn stamped with the current time. Timestamps never go
// backwards even if the wall clock does.
func (s *Store) Append(role schema.RoleType, content string) chat.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UTC()
	if n := len(s.turns); n > 0 && ts.Before(s.turns[n-1].Timestamp) {
		ts = s.turns[n-1].Timestamp
	}

	turn := chat.Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: ts,
	}
	s.turns = append(s.turns, turn)
	return turn
}

// Snapshot returns a copy of the turns in conversation order.
func (s *Store) Snapshot() []chat.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]chat.Turn, len(s.turns))
	copy(copied, s.turns)
	return copied
}

// Len returns the number of recorded turns.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Clear empties the transcript so the owner can start a new conversation.
func (s *Store) Clear() {
	s.mu.Lock()
	s.turns = make([]chat.Turn, 0, 16)
	s.mu.Unlock()
}

// Messages returns the transcript as eino messages.
func (s *Store) Messages() []*schema.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := make([]*schema.Message, 0, len(s.turns))
	for _, turn := range s.turns {
		messages = append(messages, turn.Message())
	}
	return messages
}
