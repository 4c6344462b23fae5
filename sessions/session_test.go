package sessions

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/driftwave/chatcore/messages"
)

// testStores returns both store implementations for testing.
func testStores(t *testing.T) map[string]SessionStore {
	config := &SessionConfig{
		MaxHistory:   10,
		TTL:          0, // No expiry for tests
		SystemPrompt: "test system prompt",
	}

	fileStore, err := NewFileSessionStore(t.TempDir(), config)
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}

	return map[string]SessionStore{
		"SyncMap": NewSyncMapSessionStore(config),
		"File":    fileStore,
	}
}

func getSession(t *testing.T, store SessionStore, name string) Session {
	t.Helper()
	session, err := store.Get(name)
	if err != nil {
		t.Fatalf("store.Get(%q) error: %v", name, err)
	}
	return session
}

func userMsg(content string) messages.Message {
	return messages.Message{From: messages.User, Content: messages.MessageContent{Text: content}}
}

func appMsg(content string) messages.Message {
	return messages.Message{From: messages.App, Content: messages.MessageContent{Text: content}}
}

func toolMsg(content string) messages.Message {
	return messages.Message{From: messages.Tool, Content: messages.MessageContent{Text: content}}
}

// TestAddMessage verifies messages are added to history.
func TestAddMessage(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			session := getSession(t, store, "test")

			session.AddMessage(userMsg("Hello"))

			history := session.GetHistory()

			// Should have system prompt + our message
			if len(history) != 2 {
				t.Errorf("Expected 2 messages, got %d", len(history))
			}

			if history[1].Content.Text != "Hello" {
				t.Errorf("Expected 'Hello', got '%s'", history[1].Content.Text)
			}
		})
	}
}

// TestClearWithSystemPrompt verifies Clear() resets to system prompt.
func TestClearWithSystemPrompt(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			session := getSession(t, store, "test")

			session.AddMessage(userMsg("msg1"))
			session.AddMessage(appMsg("msg2"))

			session.Clear()

			history := session.GetHistory()
			if len(history) != 1 {
				t.Errorf("Expected 1 message after clear, got %d", len(history))
			}

			if history[0].From.Kind != messages.EntitySystem {
				t.Errorf("Expected system entity, got %v", history[0].From.Kind)
			}

			if history[0].Content.Text != "test system prompt" {
				t.Errorf("Expected 'test system prompt', got '%s'", history[0].Content.Text)
			}
		})
	}
}

// TestDelete verifies session deletion.
func TestDelete(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			session1 := getSession(t, store, "deleteme")
			session1.AddMessage(userMsg("test"))

			store.Delete("deleteme")

			session2 := getSession(t, store, "deleteme")
			history := session2.GetHistory()

			if len(history) != 1 {
				t.Errorf("Expected fresh session with 1 message, got %d", len(history))
			}
		})
	}
}

// TestTrimKeepsSystemPrompt verifies system prompt is never removed.
func TestTrimKeepsSystemPrompt(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			session := getSession(t, store, "test")

			for i := range 15 {
				session.AddMessage(userMsg(fmt.Sprintf("message-%d", i)))
			}

			history := session.GetHistory()

			if history[0].From.Kind != messages.EntitySystem {
				t.Errorf("First message should be system prompt, got %v", history[0].From.Kind)
			}

			if history[0].Content.Text != "test system prompt" {
				t.Errorf("System prompt content changed: %s", history[0].Content.Text)
			}

			if len(history) > 11 { // 10 + system prompt
				t.Errorf("History too long: %d messages", len(history))
			}
		})
	}
}

// TestTrimRemovesOrphanedToolResponse verifies orphaned tool responses are removed.
func TestTrimRemovesOrphanedToolResponse(t *testing.T) {
	config := &SessionConfig{
		MaxHistory:   3,
		TTL:          0,
		SystemPrompt: "system",
	}

	stores := map[string]SessionStore{
		"SyncMap": NewSyncMapSessionStore(config),
	}

	fileStore, err := NewFileSessionStore(t.TempDir(), config)
	if err == nil {
		stores["File"] = fileStore
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			session := getSession(t, store, "test")

			session.AddMessage(userMsg("first"))
			session.AddMessage(appMsg("calling tool"))
			session.AddMessage(toolMsg("tool response"))
			session.AddMessage(userMsg("second"))

			// This should trigger trim - with MaxHistory=3, we keep system + last 2
			session.AddMessage(userMsg("third"))

			history := session.GetHistory()

			if len(history) > 1 && history[1].From.Kind == messages.EntityTool {
				t.Error("Orphaned tool response at position 1 should be removed")
			}

			if history[0].Content.Text != "system" {
				t.Error("System prompt should be preserved")
			}
		})
	}
}

// TestTrimKeepsMaxHistory verifies only MaxHistory messages are kept.
func TestTrimKeepsMaxHistory(t *testing.T) {
	config := &SessionConfig{
		MaxHistory:   5,
		TTL:          0,
		SystemPrompt: "system",
	}

	stores := map[string]SessionStore{
		"SyncMap": NewSyncMapSessionStore(config),
	}

	fileStore, err := NewFileSessionStore(t.TempDir(), config)
	if err == nil {
		stores["File"] = fileStore
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			session := getSession(t, store, "test")

			for i := range 10 {
				session.AddMessage(userMsg(fmt.Sprintf("msg-%d", i)))
			}

			history := session.GetHistory()

			expectedLen := 6 // system + 5
			if len(history) != expectedLen {
				t.Errorf("Expected %d messages, got %d", expectedLen, len(history))
			}

			lastMsg := history[len(history)-1]
			if lastMsg.Content.Text != "msg-9" {
				t.Errorf("Expected last message to be 'msg-9', got '%s'", lastMsg.Content.Text)
			}
		})
	}
}

// TestConcurrentAddMessage verifies concurrent AddMessage calls leave a
// history filled to the MaxHistory budget with the system prompt first.
func TestConcurrentAddMessage(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			session := getSession(t, store, "concurrent")

			var wg sync.WaitGroup
			numGoroutines := 50
			messagesPerGoroutine := 10

			wg.Add(numGoroutines)

			for g := range numGoroutines {
				go func(goroutineID int) {
					defer wg.Done()
					for m := range messagesPerGoroutine {
						session.AddMessage(userMsg(fmt.Sprintf("g%d-m%d", goroutineID, m)))
					}
				}(g)
			}

			wg.Wait()

			history := session.GetHistory()

			minExpected := 11 // MaxHistory (10) + system prompt
			if len(history) < minExpected {
				t.Errorf("Expected at least %d messages, got %d", minExpected, len(history))
			}

			if history[0].From.Kind != messages.EntitySystem {
				t.Error("System prompt should still be first")
			}

			if name == "File" {
				if closer, ok := session.(interface{ Close() }); ok {
					closer.Close()
				}
			}
		})
	}
}

// TestExpiryGoroutine verifies the expiry goroutine actually runs and cleans up sessions.
func TestExpiryGoroutine(t *testing.T) {
	config := &SessionConfig{
		MaxHistory:   10,
		TTL:          50 * time.Millisecond, // Very short TTL for testing
		SystemPrompt: "test",
	}

	store := NewSyncMapSessionStore(config)

	session1 := getSession(t, store, "session1")
	session1.AddMessage(userMsg("msg1"))

	time.Sleep(30 * time.Millisecond)

	session2 := getSession(t, store, "session2")
	session2.AddMessage(userMsg("msg2"))

	history1 := session1.GetHistory()
	if len(history1) != 2 {
		t.Errorf("Session1 should have 2 messages, got %d", len(history1))
	}

	// Wait for expiry goroutine to run (it runs every TTL duration)
	time.Sleep(60 * time.Millisecond)

	// Access session2 to keep it alive
	session2.AddMessage(userMsg("keep alive"))

	time.Sleep(60 * time.Millisecond)

	// Session1 should be gone (expired)
	newSession1 := getSession(t, store, "session1")
	history1New := newSession1.GetHistory()
	if len(history1New) != 1 {
		t.Errorf("Session1 should have been expired and recreated with just system prompt, got %d messages", len(history1New))
	}

	// Session2 should still have its messages (was kept alive)
	history2 := session2.GetHistory()
	if len(history2) != 3 { // system + 2 messages
		t.Errorf("Session2 should still have 3 messages, got %d", len(history2))
	}

	time.Sleep(120 * time.Millisecond)

	// Both should now be expired
	finalSession2 := getSession(t, store, "session2")
	finalHistory2 := finalSession2.GetHistory()
	if len(finalHistory2) != 1 {
		t.Errorf("Session2 should have expired, expected 1 message, got %d", len(finalHistory2))
	}
}
