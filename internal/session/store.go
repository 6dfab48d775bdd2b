package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"astra-chat/internal/chat"
)

type entry struct {
	conv     *chat.Conversation
	lastSeen time.Time
}

// Store keeps one conversation per session for as long as the session is
// active. Nothing survives a restart.
type Store struct {
	mu       sync.Mutex
	entries  map[uuid.UUID]*entry
	model    chat.Model
	listener chat.Listener
	idleTTL  time.Duration
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewStore(model chat.Model, listener chat.Listener, idleTTL time.Duration) *Store {
	return &Store{
		entries:  make(map[uuid.UUID]*entry),
		model:    model,
		listener: listener,
		idleTTL:  idleTTL,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// GetOrCreate returns the session's conversation, starting an empty one on
// first use.
func (s *Store) GetOrCreate(ctx context.Context, id uuid.UUID) (*chat.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok {
		e.lastSeen = s.now()
		return e.conv, nil
	}

	handle, err := s.model.StartConversation(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start conversation: %w", err)
	}

	conv := chat.NewConversation(id, handle, s.listener)
	s.entries[id] = &entry{conv: conv, lastSeen: s.now()}
	return conv, nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep drops sessions idle for longer than the store's TTL and reports how
// many were removed.
func (s *Store) Sweep(now time.Time) int {
	if s.idleTTL <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if now.Sub(e.lastSeen) > s.idleTTL {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Start runs Sweep periodically until Stop is called.
func (s *Store) Start() {
	if s.idleTTL <= 0 {
		return
	}

	interval := s.idleTTL / 2
	if interval < time.Minute {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopChan:
				return
			case now := <-ticker.C:
				if n := s.Sweep(now); n > 0 {
					log.Printf("Session store: evicted %d idle sessions", n)
				}
			}
		}
	}()
}

func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}
