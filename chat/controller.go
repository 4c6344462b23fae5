// Package chat implements the Chat Controller: the state machine that
// owns conversation state, drives provider requests, merges streaming
// deltas into messages, orchestrates multi-turn tool-call execution,
// and dispatches state mutations to observing plugins. See spec.md
// §4.1.
package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/driftwave/chatcore/bot"
	"github.com/driftwave/chatcore/messages"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type pluginEntry struct {
	id     PluginID
	plugin Plugin
}

// workItem is the single typed channel the controller serializes all
// dispatched tasks and mutations through, per spec.md §3's "all
// mutations flow through a single typed channel" and §5's FIFO
// ordering guarantee.
type workItem struct {
	task     *Task
	mutation *Mutation
}

// Controller owns ChatState behind a single mutex and exposes the
// task/mutation/plugin API from spec.md §4.1.
type Controller struct {
	mu      sync.Mutex
	state   State
	plugins []pluginEntry
	nextID  PluginID

	client BotClient
	tools  ToolManager

	streamCancel context.CancelFunc

	work chan workItem
	done chan struct{}
}

// NewController builds a Controller wired to client and tools and
// starts its background dispatch loop.
func NewController(client BotClient, tools ToolManager) *Controller {
	c := &Controller{
		client: client,
		tools:  tools,
		work:   make(chan workItem, 64),
		done:   make(chan struct{}),
	}
	go c.run()
	return c
}

// Close stops the dispatch loop. Any stream in flight is cancelled.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.streamCancel != nil {
		c.streamCancel()
	}
	c.mu.Unlock()
	close(c.work)
	<-c.done
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// DispatchTask enqueues a high-level operation.
func (c *Controller) DispatchTask(t Task) {
	c.work <- workItem{task: &t}
}

// DispatchMutation enqueues a low-level state edit.
func (c *Controller) DispatchMutation(m Mutation) {
	c.work <- workItem{mutation: &m}
}

// AppendPlugin registers a plugin and returns its id.
func (c *Controller) AppendPlugin(p Plugin) PluginID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.plugins = append(c.plugins, pluginEntry{id: id, plugin: p})
	return id
}

// RemovePlugin unregisters a plugin by id.
func (c *Controller) RemovePlugin(id PluginID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, entry := range c.plugins {
		if entry.id == id {
			c.plugins = append(c.plugins[:i], c.plugins[i+1:]...)
			return
		}
	}
}

// run is the single goroutine that serializes task and mutation
// processing in FIFO order.
func (c *Controller) run() {
	defer close(c.done)
	for item := range c.work {
		switch {
		case item.task != nil:
			c.handleTask(*item.task)
		case item.mutation != nil:
			c.applyLocked(*item.mutation)
		}
	}
}

// applyLocked applies muts to state and notifies plugins, all while
// holding the controller's mutex — the plugin contract in spec.md
// §4.1 requires callbacks to run under the lock and never block.
func (c *Controller) applyLocked(muts ...Mutation) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range muts {
		c.state = m.Apply(c.state)
	}
	snapshot := c.state.Clone()
	for _, entry := range c.plugins {
		entry.plugin.OnStateReady(snapshot, muts)
	}
	return c.state
}

func (c *Controller) handleTask(t Task) {
	switch t.Kind {
	case TaskLoad:
		c.applyLocked(MutateMessages(Set(t.LoadMessages)), SetBotID(t.LoadBotID))
	case TaskSend:
		c.startSend()
	case TaskStop:
		c.doStop()
	case TaskExecute:
		c.doExecute(t.ExecuteToolCalls, t.ExecuteBotID)
	}
}

// startSend implements the Send task semantics of spec.md §4.1.
func (c *Controller) startSend() {
	c.mu.Lock()
	botID := c.state.BotID
	history := append([]messages.Message(nil), c.state.Messages...)
	c.mu.Unlock()

	if botID == nil {
		return
	}

	// Boundary case: empty message send with no attachments is a
	// no-op (spec.md §8). The triggering user message is expected to
	// already be the tail of history at this point.
	if len(history) == 0 || history[len(history)-1].Content.IsEmpty() {
		return
	}

	var schemas []ToolSchema
	if c.tools != nil {
		if src, ok := c.tools.(ToolSchemaSource); ok {
			schemas = src.Schemas()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	placeholder := messages.Message{
		From:      messages.FromBot(*botID),
		Content:   messages.MessageContent{},
		IsWriting: true,
	}
	c.mu.Lock()
	c.streamCancel = cancel
	c.state = SetIsStreaming(true).Apply(c.state)
	c.state = MutateMessages(Push(placeholder)).Apply(c.state)
	snapshot := c.state.Clone()
	for _, entry := range c.plugins {
		entry.plugin.OnStateReady(snapshot, nil)
	}
	c.mu.Unlock()

	deltas, err := c.client.Send(ctx, *botID, history, schemas)
	if err != nil {
		cancel()
		c.failStream(*botID, err)
		return
	}

	go c.consumeStream(ctx, *botID, deltas)
}

func (c *Controller) consumeStream(ctx context.Context, botID bot.ID, deltas <-chan Delta) {
	var final messages.MessageContent
	var streamErr error

	for delta := range deltas {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if delta.Err != nil {
			streamErr = delta.Err
			break
		}
		merged := messages.MergeDelta(delta.Content)
		final = merged

		c.mu.Lock()
		if tail := c.state.TailMessage(); tail != nil {
			tail.Content = merged
		}
		snapshot := c.state.Clone()
		for _, entry := range c.plugins {
			entry.plugin.OnStateReady(snapshot, nil)
		}
		c.mu.Unlock()
	}

	if streamErr != nil {
		c.failStream(botID, streamErr)
		return
	}
	c.completeStream(botID, final)
}

// failStream implements the §7 failure path: the first error becomes
// an assistant message whose text begins with "<Kind> error: ...".
func (c *Controller) failStream(botID bot.ID, err error) {
	zap.S().Debugw("chat_stream_failed", "error", err)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streamCancel = nil
	if tail := c.state.TailMessage(); tail != nil {
		tail.Content = messages.MessageContent{Text: err.Error()}
		tail.IsWriting = false
	}
	c.state.IsStreaming = false
	snapshot := c.state.Clone()
	for _, entry := range c.plugins {
		entry.plugin.OnStateReady(snapshot, nil)
	}
}

// completeStream implements the stream-end semantics: finalize the
// tail message, dispatch any upgrade to the plugin chain, and
// auto-continue into Execute when tool calls are all pre-approved.
func (c *Controller) completeStream(botID bot.ID, final messages.MessageContent) {
	c.mu.Lock()
	c.streamCancel = nil
	c.state.IsStreaming = false

	if final.Upgrade != nil {
		consumed := false
		for _, entry := range c.plugins {
			if entry.plugin.OnUpgrade(*final.Upgrade, botID) == nil {
				consumed = true
				break
			}
		}
		if consumed {
			// spec.md §8 scenario 5: no assistant message body is
			// appended when a plugin consumes the upgrade.
			c.state.Messages = RemoveLast[messages.Message]().Apply(c.state.Messages)
		} else if tail := c.state.TailMessage(); tail != nil {
			tail.Content = final
			tail.IsWriting = false
		}
	} else if tail := c.state.TailMessage(); tail != nil {
		tail.Content = final
		tail.IsWriting = false
	}

	snapshot := c.state.Clone()
	for _, entry := range c.plugins {
		entry.plugin.OnStateReady(snapshot, nil)
	}
	c.mu.Unlock()

	if final.Upgrade != nil {
		return
	}

	pending, all := toolCallStatus(final.ToolCalls)
	if pending {
		return // surfaced to the UI; awaits ToolApprove/ToolDeny
	}
	if all && len(final.ToolCalls) > 0 {
		c.DispatchTask(Execute(final.ToolCalls, botID))
	}
}

func toolCallStatus(calls []messages.ToolCall) (anyPending bool, allApproved bool) {
	if len(calls) == 0 {
		return false, false
	}
	allApproved = true
	for _, tc := range calls {
		if tc.Permission == messages.PermissionPending {
			anyPending = true
		}
		if tc.Permission != messages.PermissionApproved {
			allApproved = false
		}
	}
	return anyPending, allApproved
}

// doStop implements the Stop task: cancel the in-flight stream, mark
// the tail message not-writing, clear is_streaming. No rollback of
// partial content (spec.md §4.1).
func (c *Controller) doStop() {
	c.mu.Lock()
	cancel := c.streamCancel
	c.streamCancel = nil
	if tail := c.state.TailMessage(); tail != nil {
		tail.IsWriting = false
	}
	c.state.IsStreaming = false
	snapshot := c.state.Clone()
	for _, entry := range c.plugins {
		entry.plugin.OnStateReady(snapshot, nil)
	}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// doExecute implements the Execute task: run every approved tool call
// concurrently, collect ToolResults into one Tool message, then
// implicitly re-issue Send (spec.md §4.1, §4.4).
func (c *Controller) doExecute(calls []messages.ToolCall, botID bot.ID) {
	approved := make([]messages.ToolCall, 0, len(calls))
	for _, tc := range calls {
		if tc.Permission == messages.PermissionApproved {
			approved = append(approved, tc)
		}
	}
	if len(approved) == 0 {
		return
	}

	results := make([]messages.ToolResult, len(approved))
	g, ctx := errgroup.WithContext(context.Background())
	for i, tc := range approved {
		i, tc := i, tc
		g.Go(func() error {
			server, tool := splitServerTool(tc.Name)
			content, isErr, err := c.tools.Execute(ctx, server, tool, tc.ParseToolCallArgs())
			if err != nil {
				content = err.Error()
				isErr = true
			}
			results[i] = messages.NewToolResult(tc.ID, content, isErr)
			return nil
		})
	}
	_ = g.Wait()

	toolMsg := messages.Message{
		From:    messages.Tool,
		Content: messages.MessageContent{ToolResults: results},
	}
	c.applyLocked(MutateMessages(Push(toolMsg)))
	c.DispatchTask(Send())
}

// splitServerTool splits a namespaced "server::tool" name, per
// spec.md §3/§4.4.
func splitServerTool(name string) (server, tool string) {
	if idx := strings.Index(name, "::"); idx >= 0 {
		return name[:idx], name[idx+2:]
	}
	return "", name
}

// ToolSchemaSource is an optional extension of ToolManager that
// exposes the schemas to advertise to providers. Kept separate from
// ToolManager.Execute so a minimal tool manager (no advertised tools,
// e.g. execute-only stubs in tests) doesn't need to implement it.
type ToolSchemaSource interface {
	Schemas() []ToolSchema
}

// ApproveToolCalls marks every tool call on the message at msgIndex as
// Approved and dispatches Execute, per spec.md §4.4's ToolApprove(index).
// Re-approving a message whose tool calls are all already Approved is
// a no-op (nothing is re-executed), matching the idempotence property
// in §8.
func (c *Controller) ApproveToolCalls(msgIndex int, botID bot.ID) {
	c.mu.Lock()
	if msgIndex < 0 || msgIndex >= len(c.state.Messages) {
		c.mu.Unlock()
		return
	}
	msg := c.state.Messages[msgIndex]
	if _, allApproved := toolCallStatus(msg.Content.ToolCalls); allApproved {
		c.mu.Unlock()
		return
	}
	calls := make([]messages.ToolCall, len(msg.Content.ToolCalls))
	for i, tc := range msg.Content.ToolCalls {
		tc.Permission = messages.PermissionApproved
		calls[i] = tc
	}
	msg.Content.ToolCalls = calls
	c.mu.Unlock()

	c.applyLocked(MutateMessages(Update(msgIndex, msg)))
	c.DispatchTask(Execute(calls, botID))
}

// DenyToolCalls marks every tool call on the message at msgIndex as
// Denied and synthesizes error ToolResults, per spec.md §4.4's
// ToolDeny(index) and §8 scenario 3. No subsequent Send.
func (c *Controller) DenyToolCalls(msgIndex int) {
	c.mu.Lock()
	if msgIndex < 0 || msgIndex >= len(c.state.Messages) {
		c.mu.Unlock()
		return
	}
	msg := c.state.Messages[msgIndex]
	calls := make([]messages.ToolCall, len(msg.Content.ToolCalls))
	results := make([]messages.ToolResult, len(msg.Content.ToolCalls))
	for i, tc := range msg.Content.ToolCalls {
		tc.Permission = messages.PermissionDenied
		calls[i] = tc
		results[i] = messages.DeniedToolResult(tc)
	}
	msg.Content.ToolCalls = calls
	c.mu.Unlock()

	toolMsg := messages.Message{From: messages.Tool, Content: messages.MessageContent{ToolResults: results}}
	c.applyLocked(MutateMessages(Update(msgIndex, msg)), MutateMessages(Push(toolMsg)))
}
