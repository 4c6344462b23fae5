package chat

import (
	"github.com/driftwave/chatcore/bot"
	"github.com/driftwave/chatcore/messages"
)

// State is the authoritative chat state, per spec.md §3. The
// controller edits its own copy (the tail message in place, see
// TailMessage), but Controller.State and the snapshots handed to
// plugins are copies made with Clone, so callers never need to
// defensively clone it themselves.
type State struct {
	Bots        []bot.Bot
	BotID       *bot.ID
	Messages    []messages.Message
	IsStreaming bool
}

// Clone returns an independent copy of s.
func (s State) Clone() State {
	out := State{
		BotID:       s.BotID,
		IsStreaming: s.IsStreaming,
	}
	if s.Bots != nil {
		out.Bots = append([]bot.Bot(nil), s.Bots...)
	}
	if s.Messages != nil {
		out.Messages = append([]messages.Message(nil), s.Messages...)
	}
	return out
}

// TailMessage returns a pointer to the last message, or nil if empty.
// The pointer aliases State's backing array; callers holding the
// controller's lock may use it to read or mutate the tail in place.
func (s *State) TailMessage() *messages.Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// MutationKind tags which field of ChatState a Mutation edits.
type MutationKind uint8

const (
	MutationSetBotID MutationKind = iota
	MutationSetIsStreaming
	MutationMutateBots
	MutationMutateMessages
)

// Mutation is the tagged-variant enumeration of every legal edit to
// State, per spec.md §3. Exactly one payload field is meaningful,
// selected by Kind — this is a closed family deliberately modeled as
// a struct (not an interface) so mutations stay comparable and easy
// to log/replay in tests, matching the rationale in spec.md §9.
type Mutation struct {
	Kind MutationKind

	BotID       *bot.ID // MutationSetBotID
	IsStreaming bool    // MutationSetIsStreaming

	MutateBots     *VecMutation[bot.Bot]         // MutationMutateBots
	MutateMessages *VecMutation[messages.Message] // MutationMutateMessages
}

// SetBotID builds a MutationSetBotID mutation.
func SetBotID(id *bot.ID) Mutation {
	return Mutation{Kind: MutationSetBotID, BotID: id}
}

// SetIsStreaming builds a MutationSetIsStreaming mutation.
func SetIsStreaming(v bool) Mutation {
	return Mutation{Kind: MutationSetIsStreaming, IsStreaming: v}
}

// MutateBots builds a MutationMutateBots mutation.
func MutateBots(m VecMutation[bot.Bot]) Mutation {
	return Mutation{Kind: MutationMutateBots, MutateBots: &m}
}

// MutateMessages builds a MutationMutateMessages mutation.
func MutateMessages(m VecMutation[messages.Message]) Mutation {
	return Mutation{Kind: MutationMutateMessages, MutateMessages: &m}
}

// Apply computes the state that results from applying m to s, without
// mutating s. This is the synchronous reference semantics that
// dispatch_mutation's async application must match, per the invariant
// in spec.md §8.
func (m Mutation) Apply(s State) State {
	next := s
	switch m.Kind {
	case MutationSetBotID:
		next.BotID = m.BotID
	case MutationSetIsStreaming:
		next.IsStreaming = m.IsStreaming
	case MutationMutateBots:
		if m.MutateBots != nil {
			next.Bots = m.MutateBots.Apply(s.Bots)
		}
	case MutationMutateMessages:
		if m.MutateMessages != nil {
			next.Messages = m.MutateMessages.Apply(s.Messages)
		}
	}
	return next
}
