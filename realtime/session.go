package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// State is the realtime session's state machine position, per spec.md
// §4.3's transition table.
type State uint8

const (
	StateIdle State = iota
	StateConfiguring
	StateListening
	StateUserSpeaking
	StateProcessing
	StateAiSpeaking
	StateExecuting
	StateTerminated
)

// TranscriptTurn is one harvested line of the voice conversation, in
// arrival order, per spec.md §4.3's "Conversation persistence".
type TranscriptTurn struct {
	Role string // "user" or "assistant"
	Text string
}

// Options configures a new Session.
type Options struct {
	URL    string // wss://... base URL
	Model  string // appended as ?model= only for api.openai.com, per spec.md §6.3
	APIKey string

	Config SessionConfig

	// InterruptionEnabled selects the policy from spec.md §4.3: when
	// true, SpeechStarted clears playback immediately and the mic
	// stays open; when false, the mic stays muted until playback
	// drains before re-listening.
	InterruptionEnabled bool

	Dialer *websocket.Dialer
}

// Session owns one realtime WebSocket connection and its audio
// buffers. Construct with Dial, then read Channel.Events() and send
// Channel.Commands().
type Session struct {
	opts Options
	conn *websocket.Conn

	mu    sync.Mutex
	state State

	capture  CaptureBuffer
	playback PlaybackBuffer

	commands chan Command
	channel  *Channel

	transcript []TranscriptTurn

	confirmedConfig SessionConfig

	// Tracks the in-flight assistant audio item so an interruption can
	// truncate it at the point the user actually stopped hearing it,
	// per original_source/moly-kit/src/clients/openai_realtime.rs.
	currentItemID  string
	assistantAudioMS int
}

// Dial opens the WebSocket, starts the inbound and outbound
// goroutines, and returns the Channel the caller uses to interact
// with the session, per spec.md §4.3's "Concurrency" note (two tasks:
// inbound consumer, command/outbound producer).
func Dial(ctx context.Context, opts Options) (*Session, error) {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	dialURL := opts.URL
	if u, err := url.Parse(opts.URL); err == nil && u.Host == "api.openai.com" && opts.Model != "" {
		q := u.Query()
		q.Set("model", opts.Model)
		u.RawQuery = q.Encode()
		dialURL = u.String()
	}

	header := http.Header{}
	if opts.APIKey != "" {
		header.Set("Authorization", "Bearer "+opts.APIKey)
	}
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, _, err := dialer.DialContext(ctx, dialURL, header)
	if err != nil {
		return nil, err
	}

	s := &Session{
		opts:     opts,
		conn:     conn,
		state:    StateIdle,
		commands: make(chan Command, 32),
	}
	s.channel = &Channel{events: make(chan Event, 64), commands: s.commands}

	go s.runInbound()
	go s.runOutbound()

	s.setState(StateConfiguring)
	s.emit(Event{Kind: EventSessionReady})
	s.commands <- Command{Kind: CommandUpdateSessionConfig, UpdateConfig: &opts.Config}

	return s, nil
}

// Channel returns the hand-off value for the chat controller's
// upgrade mechanism.
func (s *Session) Channel() *Channel { return s.channel }

// Transcript returns the harvested conversation turns collected so
// far, in arrival order.
func (s *Session) Transcript() []TranscriptTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TranscriptTurn(nil), s.transcript...)
}

// Config returns the session configuration as last confirmed by the
// server's session.created/session.updated frame, which may differ
// from what was requested (e.g. a clamped temperature or a
// server-assigned voice).
func (s *Session) Config() SessionConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmedConfig
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}

func (s *Session) getState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) emit(e Event) {
	select {
	case s.channel.events <- e:
	default:
		zap.S().Debugw("realtime_event_dropped", "kind", e.Kind)
	}
}

// runOutbound consumes the command channel and writes frames to the
// WebSocket, per spec.md §4.3's "one task ... producing outbound
// frames".
func (s *Session) runOutbound() {
	for cmd := range s.commands {
		switch cmd.Kind {
		case CommandUpdateSessionConfig:
			s.writeJSON(ClientMessage{Type: TypeSessionUpdate, Session: cmd.UpdateConfig})
		case CommandAppendAudio:
			frame := EncodeAudioFrame(cmd.CapturedSamples)
			s.writeJSON(ClientMessage{Type: TypeInputAudioBufferAppend, Audio: frame})
		case CommandCommitAudio:
			s.writeJSON(ClientMessage{Type: TypeInputAudioBufferCommit})
		case CommandSendFunctionCallResult:
			s.handleFunctionCallResult(cmd)
		case CommandStop:
			s.setState(StateTerminated)
			_ = s.conn.Close()
			s.emit(Event{Kind: EventClosed})
			return
		}
	}
}

func (s *Session) handleFunctionCallResult(cmd Command) {
	outputItem, _ := json.Marshal(map[string]any{
		"type":    "function_call_output",
		"call_id": cmd.FunctionCallID,
		"output":  cmd.FunctionOutput,
	})
	s.writeJSON(ClientMessage{Type: TypeConversationItemCreate, Item: outputItem})
	s.writeJSON(ClientMessage{Type: TypeResponseCreate})
	s.setState(StateProcessing)
}

func (s *Session) writeJSON(msg ClientMessage) {
	if err := s.conn.WriteJSON(msg); err != nil {
		zap.S().Debugw("realtime_write_failed", "error", err)
		s.emit(Event{Kind: EventError, Err: err})
	}
}

// PushCapturedAudio is called by the host application's microphone
// callback with host-rate samples. It forwards them through the
// command channel, which is the single path to the WebSocket writer
// goroutine.
func (s *Session) PushCapturedAudio(samples []float32) {
	if !s.capture.Push(samples) {
		return
	}
	buffered := s.capture.Drain()
	if len(buffered) == 0 {
		return
	}
	select {
	case s.commands <- Command{Kind: CommandAppendAudio, CapturedSamples: buffered}:
	default:
	}
}

// NextPlaybackFrame is called by the host application's output
// callback to fill n host-rate samples per channel.
func (s *Session) NextPlaybackFrame(n, channels int) []float32 {
	return s.playback.NextOutputFrame(n, channels)
}

// runInbound reads frames from the WebSocket and drives the state
// machine, per the transition table in spec.md §4.3.
func (s *Session) runInbound() {
	defer func() {
		s.setState(StateTerminated)
		s.emit(Event{Kind: EventClosed})
	}()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.emit(Event{Kind: EventError, Err: err})
			return
		}

		var msg ServerMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			zap.S().Debugw("realtime_decode_failed", "error", err)
			continue
		}
		msg.Raw = raw

		s.handleServerMessage(msg)
	}
}

func (s *Session) handleServerMessage(msg ServerMessage) {
	switch msg.Type {
	case TypeSessionCreated, TypeSessionUpdated:
		if msg.Session != nil {
			s.mu.Lock()
			s.confirmedConfig = *msg.Session
			s.mu.Unlock()
		}
		s.setState(StateListening)

	case TypeInputAudioBufferSpeechStarted:
		if s.opts.InterruptionEnabled {
			s.truncateInFlightItem()
			s.playback.Clear()
		}
		s.capture.SetMuted(false)
		s.setState(StateUserSpeaking)
		s.emit(Event{Kind: EventSpeechStarted})

	case TypeInputAudioBufferSpeechStopped:
		s.capture.SetMuted(true)
		s.setState(StateProcessing)
		s.emit(Event{Kind: EventSpeechStopped})

	case TypeResponseAudioDelta:
		samples, err := DecodeAudioDelta(msg.Delta)
		if err != nil {
			zap.S().Debugw("realtime_audio_decode_failed", "error", err)
			return
		}
		s.trackAssistantAudio(msg.ItemID, samples)
		s.playback.Enqueue(samples)
		s.setState(StateAiSpeaking)
		s.emit(Event{Kind: EventAudioDelta, AudioSamples: samples})

	case TypeResponseAudioTranscriptDelta:
		s.emit(Event{Kind: EventTranscriptDelta, TranscriptRole: "assistant", TranscriptText: msg.Delta})

	case TypeResponseAudioTranscriptDone:
		s.recordTranscript("assistant", msg.Transcript)
		s.emit(Event{Kind: EventTranscriptDone, TranscriptRole: "assistant", TranscriptText: msg.Transcript})

	case TypeInputAudioTranscriptionCompleted:
		s.recordTranscript("user", msg.Transcript)
		s.emit(Event{Kind: EventTranscriptDone, TranscriptRole: "user", TranscriptText: msg.Transcript})

	case TypeResponseFunctionCallArgumentsDone:
		s.setState(StateExecuting)
		s.emit(Event{Kind: EventFunctionCallRequest, FunctionCallID: msg.CallID, FunctionCallName: msg.Name, FunctionCallArgs: msg.Arguments})

	case TypeResponseDone:
		s.handleResponseDone(msg)

	case TypeError:
		if msg.Error != nil {
			s.emit(Event{Kind: EventError, Err: &responseError{msg: msg.Error.Message}})
		}
	}
}

func (s *Session) handleResponseDone(msg ServerMessage) {
	hasFunctionCall := false
	if msg.Response != nil {
		for _, item := range msg.Response.Output {
			if item.Type == "function_call" {
				hasFunctionCall = true
				s.setState(StateExecuting)
				s.emit(Event{Kind: EventFunctionCallRequest, FunctionCallID: item.CallID, FunctionCallName: item.Name, FunctionCallArgs: item.Arguments})
			}
		}
	}
	if !hasFunctionCall {
		if s.opts.InterruptionEnabled || s.playback.IsEmpty() {
			s.capture.SetMuted(false)
			s.setState(StateListening)
		}
	}
}

const wireSampleRateHz = 24000

// trackAssistantAudio accumulates how many milliseconds of the
// current assistant item's audio have arrived, resetting the counter
// whenever a new item starts.
func (s *Session) trackAssistantAudio(itemID string, samples []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if itemID != s.currentItemID {
		s.currentItemID = itemID
		s.assistantAudioMS = 0
	}
	s.assistantAudioMS += len(samples) * 1000 / wireSampleRateHz
}

// truncateInFlightItem tells the model how much of its own audio the
// user actually heard before interrupting, so the server's transcript
// of that item matches reality, per
// original_source/moly-kit/src/clients/openai_realtime.rs.
func (s *Session) truncateInFlightItem() {
	s.mu.Lock()
	itemID, audioMS := s.currentItemID, s.assistantAudioMS
	s.currentItemID, s.assistantAudioMS = "", 0
	s.mu.Unlock()

	if itemID == "" {
		return
	}
	s.writeJSON(ClientMessage{
		Type:       TypeConversationItemTruncate,
		ItemID:     itemID,
		ContentIdx: 0,
		AudioEndMS: audioMS,
	})
}

func (s *Session) recordTranscript(role, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	s.mu.Lock()
	s.transcript = append(s.transcript, TranscriptTurn{Role: role, Text: text})
	s.mu.Unlock()
}

type responseError struct{ msg string }

func (e *responseError) Error() string { return e.msg }
