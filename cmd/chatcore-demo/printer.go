package main

import (
	"fmt"
	"sync"

	"github.com/driftwave/chatcore/bot"
	"github.com/driftwave/chatcore/chat"
	"github.com/driftwave/chatcore/messages"
)

// streamPrinter is a chat.Plugin that prints the assistant's streamed
// text to stdout as it arrives, auto-approves every tool call the
// model requests (there is no interactive approval surface in this
// demo), and closes done once a turn settles with nothing left
// in-flight.
type streamPrinter struct {
	controller *chat.Controller
	botID      bot.ID
	done       chan<- struct{}
	quiet      bool

	mu         sync.Mutex
	printed    int
	printedMsg int
	closed     bool
	approved   map[int]bool
}

func newStreamPrinter(controller *chat.Controller, botID bot.ID, done chan<- struct{}, quiet bool) *streamPrinter {
	return &streamPrinter{controller: controller, botID: botID, done: done, quiet: quiet, approved: map[int]bool{}}
}

func (p *streamPrinter) OnStateReady(state chat.State, applied []chat.Mutation) {
	if len(state.Messages) == 0 {
		return
	}
	tail := state.Messages[len(state.Messages)-1]
	if tail.From.Kind != messages.EntityBot {
		return
	}

	msgIndex := len(state.Messages) - 1
	if msgIndex != p.printedMsg {
		p.printedMsg = msgIndex
		p.printed = 0
	}
	if text := tail.Content.Text; len(text) > p.printed {
		if !p.quiet {
			fmt.Print(text[p.printed:])
		}
		p.printed = len(text)
	}

	if state.IsStreaming || tail.IsWriting {
		return
	}

	if len(tail.Content.ToolCalls) > 0 {
		if pending, _ := toolCallsPending(tail.Content.ToolCalls); pending {
			p.mu.Lock()
			already := p.approved[msgIndex]
			if !already {
				p.approved[msgIndex] = true
			}
			p.mu.Unlock()
			if !already {
				// ApproveToolCalls takes the controller's lock, which
				// is held while this callback runs.
				go p.controller.ApproveToolCalls(msgIndex, p.botID)
			}
		}
		// Approved calls go on to Execute and a follow-up Send; the
		// turn settles on the bot message that follows.
		return
	}

	p.finish()
}

func toolCallsPending(calls []messages.ToolCall) (anyPending bool, allResolved bool) {
	if len(calls) == 0 {
		return false, true
	}
	for _, tc := range calls {
		if tc.Permission == messages.PermissionPending {
			return true, false
		}
	}
	return false, true
}

func (p *streamPrinter) OnUpgrade(upgrade chat.Upgrade, botID bot.ID) *chat.Upgrade {
	if !p.quiet {
		fmt.Println("\n[realtime session offered but not supported by this demo client]")
	}
	p.finish()
	return &upgrade
}

func (p *streamPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if !p.quiet {
		fmt.Println()
	}
	close(p.done)
}
