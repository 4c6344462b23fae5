package sessions

import (
	"github.com/driftwave/chatcore/messages"
)

// Session is a single conversation's persisted message history, the
// backing store behind the Load task in spec.md §4.1.
type Session interface {
	GetHistory() []messages.Message
	AddMessage(messages.Message)
	Clear()
}

// SessionStore manages a named collection of Sessions.
type SessionStore interface {
	Get(name string) (Session, error)
	Delete(name string)
	Expire()
}
