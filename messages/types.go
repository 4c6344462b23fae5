// Package messages holds the provider-agnostic conversation data
// model: message authorship, streamed content, attachments and tool
// calls/results.
package messages

import (
	"encoding/base64"
	"encoding/json"
	"io"

	"github.com/driftwave/chatcore/bot"
)

// EntityKind tags the author of a message.
type EntityKind uint8

const (
	EntityUser EntityKind = iota
	EntitySystem
	EntityApp
	EntityBot
	EntityTool
)

// EntityID identifies the author of a message. BotID is only
// meaningful when Kind is EntityBot.
type EntityID struct {
	Kind  EntityKind
	BotID *bot.ID
}

// User, System, App and Tool are the constant non-bot entity ids.
var (
	User   = EntityID{Kind: EntityUser}
	System = EntityID{Kind: EntitySystem}
	App    = EntityID{Kind: EntityApp}
	Tool   = EntityID{Kind: EntityTool}
)

// FromBot constructs the EntityID for a specific bot.
func FromBot(id bot.ID) EntityID {
	return EntityID{Kind: EntityBot, BotID: &id}
}

// Attachment is a piece of content attached to a message. Availability
// and content reading are opaque callbacks supplied by the caller
// (e.g. the UI holding a file handle); neither is specified further by
// the core.
type Attachment struct {
	Name        string
	ContentType string
	IsAvailable func() bool
	Reader      func() (io.Reader, error)
}

// Base64 reads the attachment fully and returns it base64-encoded.
// Callers must check IsAvailable first; Base64 does not call it.
func (a Attachment) Base64() (string, error) {
	r, err := a.Reader()
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DataURI returns a data: URI suitable for inlining into a chat
// completions request.
func (a Attachment) DataURI() (string, error) {
	encoded, err := a.Base64()
	if err != nil {
		return "", err
	}
	return "data:" + a.ContentType + ";base64," + encoded, nil
}

// IsImage reports whether the attachment's content type is an image.
func (a Attachment) IsImage() bool {
	return len(a.ContentType) >= 6 && a.ContentType[:6] == "image/"
}

// Permission is the approval state of a tool call.
type Permission uint8

const (
	PermissionPending Permission = iota
	PermissionApproved
	PermissionDenied
)

// ToolCall is a model-initiated function invocation. Arguments are
// always a JSON object or the literal "{}" for a no-argument call;
// see ParseToolCallArgs for the lenient decode the spec mandates
// (null/non-object also count as empty).
type ToolCall struct {
	ID         string
	Name       string // namespaced "server::tool"
	Arguments  json.RawMessage
	Permission Permission
}

// ParseToolCallArgs decodes a tool call's Arguments, treating "{}",
// "null" or any non-object JSON value as an empty argument map. This
// mirrors the open question in spec.md §9: lenient parsing is kept for
// compatibility, at the cost of masking malformed provider output.
func (tc ToolCall) ParseToolCallArgs() map[string]any {
	if len(tc.Arguments) == 0 {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal(tc.Arguments, &v); err != nil {
		return map[string]any{}
	}
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

const toolResultMaxChars = 16384
const truncationMarker = "...[truncated]"

// ToolResult is the outcome of executing a ToolCall.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// NewToolResult builds a ToolResult, truncating content longer than
// 16384 characters with a trailing marker, per spec.md §3.
func NewToolResult(toolCallID, content string, isError bool) ToolResult {
	runes := []rune(content)
	if len(runes) > toolResultMaxChars {
		cut := toolResultMaxChars - len([]rune(truncationMarker))
		if cut < 0 {
			cut = 0
		}
		content = string(runes[:cut]) + truncationMarker
	}
	return ToolResult{ToolCallID: toolCallID, Content: content, IsError: isError}
}

// DeniedToolResult synthesizes the error result for a tool call the
// user declined to approve, per spec.md §4.4 step 1.
func DeniedToolResult(tc ToolCall) ToolResult {
	return ToolResult{
		ToolCallID: tc.ID,
		Content:    "Tool execution was denied by the user. Tool '" + tc.Name + "' was not executed.",
		IsError:    true,
	}
}

// Upgrade is a session-handle value embedded in a message that
// replaces chat-turn semantics with an alternate channel. Currently
// only a realtime audio channel is defined.
type Upgrade struct {
	Realtime RealtimeHandle
}

// RealtimeHandle is the minimal surface MessageContent needs from a
// realtime session without importing the realtime package (a Send()
// call living in providers returns the MessageContent that embeds
// this handle, and realtime itself has no reason to import messages
// beyond this interface).
type RealtimeHandle interface {
	// Close tears down the underlying realtime session.
	Close() error
}

// MessageContent is the payload of a Message.
type MessageContent struct {
	Text        string
	Reasoning   string
	Citations   []string // ordered, unique URLs
	Attachments []Attachment
	ToolCalls   []ToolCall
	ToolResults []ToolResult
	Data        json.RawMessage // opaque provider-specific structured payload
	Upgrade     *Upgrade
}

// IsEmpty reports whether the content carries nothing at all, per the
// invariant in spec.md §3.
func (c MessageContent) IsEmpty() bool {
	return c.Text == "" &&
		len(c.ToolCalls) == 0 &&
		len(c.ToolResults) == 0 &&
		len(c.Attachments) == 0 &&
		len(c.Data) == 0 &&
		c.Upgrade == nil
}

// AddCitation appends url to Citations if not already present,
// preserving insertion order.
func (c *MessageContent) AddCitation(url string) {
	for _, existing := range c.Citations {
		if existing == url {
			return
		}
	}
	c.Citations = append(c.Citations, url)
}

// Message is one turn of the conversation. IsWriting is true while a
// provider is still streaming into this message.
type Message struct {
	From      EntityID
	Content   MessageContent
	IsWriting bool
}
