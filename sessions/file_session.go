package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/driftwave/chatcore/messages"
)

// FileSession implements a file-backed, cross-process-locked Session.
// It is the persistence layer behind the Load task in spec.md §4.1:
// loading a context replaces the controller's in-memory history with
// what was last written here.
type FileSession struct {
	ID          string            `json:"id"`
	History     []messages.Message `json:"history"`
	Created     time.Time         `json:"created"`
	Updated     time.Time         `json:"updated"`
	ContextInfo *ContextInfo      `json:"contextInfo"`
	path        string
	lock        *flock.Flock
	mu          sync.RWMutex
}

// ContextInfo stores metadata about a saved context (model, tools,
// trimming policy) alongside its message history. ContextUpdate
// shares its shape so a partial edit can be merged in with mergo, per
// ApplyContextUpdate.
type ContextInfo struct {
	Name           string        `json:"name"`
	Created        time.Time     `json:"created"`
	LastUsed       time.Time     `json:"lastUsed"`
	Model          string        `json:"model,omitempty"`
	Temperature    float64       `json:"temperature,omitempty"`
	SystemPrompt   string        `json:"systemPrompt,omitempty"`
	Description    string        `json:"description,omitempty"`
	ToolPaths      []string      `json:"toolPaths,omitempty"`
	MCPServers     []string      `json:"mcpServers,omitempty"`
	MaxTokens      int           `json:"maxTokens,omitempty"`
	MaxHistory     int           `json:"maxHistory,omitempty"`
	TTL            time.Duration `json:"ttl,omitempty"`
	ThinkingEffort string        `json:"thinkingEffort,omitempty"`
}

// ContextUpdate is a partial ContextInfo: zero-valued fields are left
// untouched by ApplyContextUpdate.
type ContextUpdate ContextInfo

// IndexEntry is a lightweight reference for fast lookups without
// reading every session file.
type IndexEntry struct {
	Name     string    `json:"name"`
	LastUsed time.Time `json:"lastUsed"`
}

// ContextIndex maps context names to lightweight references.
type ContextIndex struct {
	Entries     map[string]*IndexEntry `json:"entries"`
	LastContext string                 `json:"lastContext,omitempty"`
}

// FileSessionStore implements a file-based, multi-process-safe
// SessionStore using advisory file locks.
type FileSessionStore struct {
	baseDir string
	index   *ContextIndex
	indexMu sync.RWMutex
	config  *SessionConfig
}

// NewFileSessionStore creates a context store rooted at baseDir
// (~/.chatcore/contexts by default).
func NewFileSessionStore(baseDir string, config *SessionConfig) (*FileSessionStore, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".chatcore", "contexts")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create context directory: %w", err)
	}

	store := &FileSessionStore{baseDir: baseDir, config: config}
	if err := store.loadIndex(); err != nil {
		store.index = &ContextIndex{Entries: make(map[string]*IndexEntry)}
	}
	return store, nil
}

func validateContextName(name string) error {
	if name == "" {
		return fmt.Errorf("context name cannot be empty")
	}
	if strings.ContainsAny(name, "/\\:*?\"<>|") {
		return fmt.Errorf("context name contains invalid characters (/, \\, :, *, ?, \", <, >, |)")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("context name cannot be '.' or '..'")
	}
	if strings.HasPrefix(name, " ") || strings.HasSuffix(name, " ") {
		return fmt.Errorf("context name cannot start or end with spaces")
	}
	for _, r := range name {
		if r < 32 || r == 127 {
			return fmt.Errorf("context name contains control characters")
		}
	}
	return nil
}

// Get retrieves or creates a context, holding its file lock for the
// lifetime of the returned Session. Callers must call Close when done.
func (s *FileSessionStore) Get(name string) (Session, error) {
	if err := validateContextName(name); err != nil {
		return nil, fmt.Errorf("invalid context name '%s': %w", name, err)
	}

	sessionPath := filepath.Join(s.baseDir, name+".json")
	fileLock := flock.New(sessionPath)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	locked, err := fileLock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("could not acquire lock within 10 seconds")
	}

	if data, err := os.ReadFile(sessionPath); err == nil {
		var session FileSession
		if err := json.Unmarshal(data, &session); err == nil {
			session.path = sessionPath
			session.lock = fileLock
			session.Updated = time.Now()
			if session.ContextInfo == nil {
				session.ContextInfo = &ContextInfo{Name: name, Created: session.Created, LastUsed: time.Now()}
			} else {
				session.ContextInfo.LastUsed = time.Now()
			}
			s.touchIndex(name)
			session.save()
			return &session, nil
		}
	}

	session := &FileSession{
		ID:      name,
		History: []messages.Message{},
		Created: time.Now(),
		Updated: time.Now(),
		ContextInfo: &ContextInfo{
			Name:         name,
			Created:      time.Now(),
			LastUsed:     time.Now(),
			SystemPrompt: s.config.SystemPrompt,
			MaxHistory:   s.config.MaxHistory,
			TTL:          s.config.TTL,
		},
		path: sessionPath,
		lock: fileLock,
	}
	session.History = InitializeWithSystemPrompt(session.History, &SessionConfig{
		SystemPrompt: session.ContextInfo.SystemPrompt,
		MaxHistory:   session.ContextInfo.MaxHistory,
		TTL:          session.ContextInfo.TTL,
	})

	s.touchIndex(name)
	session.save()
	return session, nil
}

func (s *FileSessionStore) touchIndex(name string) {
	s.indexMu.Lock()
	s.index.Entries[name] = &IndexEntry{Name: name, LastUsed: time.Now()}
	s.index.LastContext = name
	s.indexMu.Unlock()
	s.saveIndex()
}

// Delete removes a context's file and index entry.
func (s *FileSessionStore) Delete(name string) {
	sessionPath := filepath.Join(s.baseDir, name+".json")
	_ = os.Remove(sessionPath)

	s.indexMu.Lock()
	delete(s.index.Entries, name)
	s.indexMu.Unlock()
	s.saveIndex()
}

// Expire removes contexts unmodified for longer than 7 days.
func (s *FileSessionStore) Expire() {
	expiry := 7 * 24 * time.Hour
	now := time.Now()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		filePath := filepath.Join(s.baseDir, entry.Name())
		fileLock := flock.New(filePath)
		locked, err := fileLock.TryLock()
		if err != nil || !locked {
			continue
		}
		data, err := os.ReadFile(filePath)
		if err == nil {
			var session FileSession
			if err := json.Unmarshal(data, &session); err == nil && now.Sub(session.Updated) > expiry {
				os.Remove(filePath)
			}
		}
		fileLock.Unlock()
	}
}

// List returns every saved context name.
func (s *FileSessionStore) List() []string {
	s.indexMu.RLock()
	defer s.indexMu.RUnlock()
	names := make([]string, 0, len(s.index.Entries))
	for name := range s.index.Entries {
		names = append(names, name)
	}
	return names
}

// GetLastContext returns the most recently accessed context name.
func (s *FileSessionStore) GetLastContext() string {
	s.indexMu.RLock()
	defer s.indexMu.RUnlock()
	return s.index.LastContext
}

// GetAllContextInfo reads every context's metadata off disk.
func (s *FileSessionStore) GetAllContextInfo() map[string]*ContextInfo {
	s.indexMu.RLock()
	entries := make(map[string]*IndexEntry)
	maps.Copy(entries, s.index.Entries)
	s.indexMu.RUnlock()

	result := make(map[string]*ContextInfo)
	for name := range entries {
		sessionPath := filepath.Join(s.baseDir, name+".json")
		if data, err := os.ReadFile(sessionPath); err == nil {
			var session FileSession
			if err := json.Unmarshal(data, &session); err == nil && session.ContextInfo != nil {
				result[name] = session.ContextInfo
			}
		}
	}
	return result
}

// Exists reports whether a context with the given name exists.
func (s *FileSessionStore) Exists(name string) bool {
	s.indexMu.RLock()
	defer s.indexMu.RUnlock()
	_, exists := s.index.Entries[name]
	return exists
}

// GetBaseDir returns the directory backing this store.
func (s *FileSessionStore) GetBaseDir() string { return s.baseDir }

// GetHistory returns a defensive copy of the session history.
func (s *FileSession) GetHistory() []messages.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CopyHistory(s.History)
}

// AddMessage appends a message, trims, and persists.
func (s *FileSession) AddMessage(msg messages.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.History = append(s.History, msg)
	s.Updated = time.Now()
	if s.ContextInfo.MaxHistory > 0 {
		s.History = TrimHistory(s.History, s.ContextInfo.MaxHistory)
	}
	s.save()
}

// Clear resets history back to just the system prompt and persists.
func (s *FileSession) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.History = InitializeWithSystemPrompt(nil, &SessionConfig{SystemPrompt: s.ContextInfo.SystemPrompt})
	s.Updated = time.Now()
	s.save()
}

// GetName returns the context's name.
func (s *FileSession) GetName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ID
}

// GetContextInfo returns the context metadata.
func (s *FileSession) GetContextInfo() *ContextInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ContextInfo
}

// UpdateContextInfo applies a partial update to the context metadata
// and persists it.
func (s *FileSession) UpdateContextInfo(update *ContextUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ContextInfo = ApplyContextUpdate(s.ContextInfo, update)
	s.Updated = time.Now()
	return s.save()
}

// GetLastUsed returns when the context was last modified.
func (s *FileSession) GetLastUsed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Updated
}

func (s *FileSession) save() error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

// Close releases the file lock without deleting anything.
func (s *FileSession) Close() {
	if s.lock != nil {
		s.lock.Unlock()
		s.lock = nil
	}
}

func withFileLock(lockPath string, exclusive bool, fn func() error) error {
	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		if f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644); err == nil {
			f.Close()
		}
	}

	fileLock := flock.New(lockPath)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var locked bool
	var err error
	if exclusive {
		locked, err = fileLock.TryLockContext(ctx, 100*time.Millisecond)
	} else {
		locked, err = fileLock.TryRLockContext(ctx, 100*time.Millisecond)
	}
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("could not acquire lock within 5 seconds")
	}
	defer fileLock.Unlock()

	return fn()
}

func (s *FileSessionStore) indexPath() string {
	return filepath.Join(filepath.Dir(s.baseDir), "index.json")
}

func (s *FileSessionStore) loadIndex() error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	indexPath := s.indexPath()
	return withFileLock(indexPath, false, func() error {
		data, err := os.ReadFile(indexPath)
		if err != nil {
			return err
		}
		var index ContextIndex
		if err := json.Unmarshal(data, &index); err != nil {
			return err
		}
		s.index = &index
		if s.index.Entries == nil {
			s.index.Entries = make(map[string]*IndexEntry)
		}
		return nil
	})
}

func (s *FileSessionStore) saveIndex() error {
	s.indexMu.RLock()
	defer s.indexMu.RUnlock()

	indexPath := s.indexPath()
	return withFileLock(indexPath, true, func() error {
		data, err := json.MarshalIndent(s.index, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(indexPath, data, 0644)
	})
}
