package sessions

import (
	"sync"
	"time"

	"github.com/driftwave/chatcore/messages"
)

// LocalSession implements an in-memory, process-local Session.
type LocalSession struct {
	history []messages.Message
	last    time.Time
	name    string
	mu      sync.RWMutex
	config  *SessionConfig
}

// SyncMapSessionStore implements a thread-safe in-memory SessionStore.
// Used by the demo CLI when no --context-dir persistence is requested.
type SyncMapSessionStore struct {
	sync.Map
	config *SessionConfig
}

// NewSyncMapSessionStore creates a new in-memory session store,
// starting a background expiry sweep when config.TTL is set.
func NewSyncMapSessionStore(config *SessionConfig) SessionStore {
	if config == nil {
		config = DefaultConfig()
	}

	store := &SyncMapSessionStore{config: config}

	if config.TTL > 0 {
		go func() {
			ticker := time.NewTicker(config.TTL)
			defer ticker.Stop()
			for range ticker.C {
				store.Expire()
			}
		}()
	}

	return store
}

// Get retrieves or creates a session.
func (s *SyncMapSessionStore) Get(id string) (Session, error) {
	if value, ok := s.Load(id); ok {
		session := value.(*LocalSession)
		session.mu.Lock()
		session.last = time.Now()
		session.mu.Unlock()
		return session, nil
	}

	session := &LocalSession{name: id, last: time.Now(), config: s.config}
	session.Clear()
	s.Store(id, session)
	return session, nil
}

// Delete removes a session.
func (s *SyncMapSessionStore) Delete(id string) {
	s.Map.Delete(id)
}

// Expire removes sessions idle longer than the store's TTL.
func (s *SyncMapSessionStore) Expire() {
	s.Range(func(key, value any) bool {
		session := value.(*LocalSession)
		session.mu.RLock()
		idle := time.Since(session.last)
		session.mu.RUnlock()
		if idle > s.config.TTL {
			s.Delete(key.(string))
		}
		return true
	})
}

// GetHistory returns a defensive copy of the session history.
func (s *LocalSession) GetHistory() []messages.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CopyHistory(s.history)
}

// AddMessage appends a message, then trims to the configured history
// budget.
func (s *LocalSession) AddMessage(msg messages.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msg)
	s.last = time.Now()
	if s.config != nil && s.config.MaxHistory > 0 {
		s.history = TrimHistory(s.history, s.config.MaxHistory)
	}
}

// Clear resets the history to just the configured system prompt, if
// any, per spec.md §4.1's Load semantics for a fresh context.
func (s *LocalSession) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = s.history[:0]
	if s.config != nil && s.config.SystemPrompt != "" {
		s.history = append(s.history, messages.Message{
			From:    messages.System,
			Content: messages.MessageContent{Text: s.config.SystemPrompt},
		})
	}
	s.last = time.Now()
}
