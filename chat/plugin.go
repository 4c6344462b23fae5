package chat

import (
	"github.com/driftwave/chatcore/bot"
	"github.com/driftwave/chatcore/messages"
)

// PluginID identifies a registered plugin so it can be removed later
// without the controller holding a reference cycle back to it.
type PluginID uint64

// Upgrade is an alias for messages.Upgrade so plugin authors only need
// to import the chat package for this surface.
type Upgrade = messages.Upgrade

// Plugin observes controller state changes and can consume upgrades
// (currently only realtime audio channels), per spec.md §4.1 and §9.
// Implementations must not block in either callback: both run while
// the controller holds its lock.
type Plugin interface {
	// OnStateReady is called after every batch of mutations is
	// applied, with the resulting state and the mutations that
	// produced it.
	OnStateReady(state State, applied []Mutation)

	// OnUpgrade is offered an upgrade from a just-completed Send. A
	// plugin that wants to handle it (e.g. open an audio call modal)
	// returns nil, consuming it; otherwise it returns the upgrade
	// unchanged so the next plugin in the chain can see it.
	OnUpgrade(upgrade Upgrade, botID bot.ID) *Upgrade
}
