// Package realtime implements the full-duplex PCM16 audio session from
// spec.md §4.3: a WebSocket-backed voice channel that captures
// microphone audio, streams it to a realtime model endpoint, plays
// back synthesized speech with interruption-aware buffering, and
// relays function calls invoked by the remote peer. Grounded on
// original_source/moly-kit/src/clients/openai_realtime.rs.
package realtime

import "encoding/json"

// ClientMessage is one outbound frame, tagged by Type per spec.md §6.3.
type ClientMessage struct {
	Type string `json:"type"`

	Session *SessionConfig `json:"session,omitempty"` // session.update

	Audio string `json:"audio,omitempty"` // input_audio_buffer.append

	Response *ResponseConfig `json:"response,omitempty"` // response.create

	Item json.RawMessage `json:"item,omitempty"` // conversation.item.create

	ItemID      string `json:"item_id,omitempty"`      // conversation.item.truncate
	ContentIdx  int    `json:"content_index,omitempty"` // conversation.item.truncate
	AudioEndMS  int    `json:"audio_end_ms,omitempty"`  // conversation.item.truncate
}

const (
	TypeSessionUpdate             = "session.update"
	TypeInputAudioBufferAppend    = "input_audio_buffer.append"
	TypeInputAudioBufferCommit    = "input_audio_buffer.commit"
	TypeResponseCreate            = "response.create"
	TypeConversationItemCreate    = "conversation.item.create"
	TypeConversationItemTruncate  = "conversation.item.truncate"
)

// SessionConfig mirrors the OpenAI realtime session.update payload.
// Voice and TranscriptionModel are validated against the enumerations
// in spec.md §6.4 by the caller constructing one.
type SessionConfig struct {
	Modalities              []string               `json:"modalities"`
	Instructions            string                 `json:"instructions"`
	Voice                   string                 `json:"voice"`
	Model                   string                 `json:"model,omitempty"`
	InputAudioFormat        string                 `json:"input_audio_format"`
	OutputAudioFormat       string                 `json:"output_audio_format"`
	InputAudioTranscription *TranscriptionConfig   `json:"input_audio_transcription,omitempty"`
	TurnDetection           *TurnDetectionConfig   `json:"turn_detection,omitempty"`
	Tools                   []json.RawMessage      `json:"tools,omitempty"`
	ToolChoice              string                 `json:"tool_choice,omitempty"`
	Temperature             float32                `json:"temperature,omitempty"`
	MaxResponseOutputTokens *int                   `json:"max_response_output_tokens,omitempty"`
}

// Voices enumerates the recognized voice selectors from spec.md §6.4.
var Voices = []string{"alloy", "shimmer", "ash", "ballad", "coral", "echo", "sage", "verse"}

// TranscriptionModels enumerates the recognized transcription model
// selectors from spec.md §6.4.
var TranscriptionModels = []string{"whisper-1", "gpt-4o-transcribe", "gpt-4o-mini-transcribe"}

type TranscriptionConfig struct {
	Model string `json:"model"`
}

// TurnDetectionConfig configures server-side VAD.
type TurnDetectionConfig struct {
	Type              string  `json:"type"`
	Threshold         float32 `json:"threshold"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms"`
	SilenceDurationMS int     `json:"silence_duration_ms"`
	InterruptResponse bool    `json:"interrupt_response"`
	CreateResponse    bool    `json:"create_response"`
}

// ResponseConfig accompanies a response.create frame.
type ResponseConfig struct {
	Modalities  []string          `json:"modalities,omitempty"`
	Instructions string           `json:"instructions,omitempty"`
	Tools       []json.RawMessage `json:"tools,omitempty"`
	ToolChoice  string            `json:"tool_choice,omitempty"`
}

// ServerMessage is one inbound frame. Only the fields relevant to the
// state machine and event surface are decoded; everything else is
// left in Raw for callers that need it.
type ServerMessage struct {
	Type string `json:"type"`

	Delta string `json:"delta,omitempty"` // response.audio.delta / transcript.delta (base64 or text)

	Transcript string `json:"transcript,omitempty"` // *_transcript.done

	ItemID string `json:"item_id,omitempty"`

	Session *SessionConfig `json:"session,omitempty"` // session.created / session.updated

	CallID    string `json:"call_id,omitempty"`     // response.function_call_arguments.*
	Arguments string `json:"arguments,omitempty"`   // response.function_call_arguments.*
	Name      string `json:"name,omitempty"`        // response.function_call_arguments.*

	Response *struct {
		Output []ResponseOutputItem `json:"output"`
	} `json:"response,omitempty"` // response.done

	Error *ErrorDetails `json:"error,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// ResponseOutputItem is one entry of response.done's output array.
type ResponseOutputItem struct {
	Type      string `json:"type"`
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// ErrorDetails carries the server's error payload.
type ErrorDetails struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

const (
	TypeSessionCreated                            = "session.created"
	TypeSessionUpdated                             = "session.updated"
	TypeResponseAudioDelta                         = "response.audio.delta"
	TypeResponseAudioTranscriptDelta               = "response.audio_transcript.delta"
	TypeResponseAudioTranscriptDone                = "response.audio_transcript.done"
	TypeInputAudioTranscriptionCompleted           = "conversation.item.input_audio_transcription.completed"
	TypeResponseDone                               = "response.done"
	TypeResponseFunctionCallArgumentsDelta         = "response.function_call_arguments.delta"
	TypeResponseFunctionCallArgumentsDone          = "response.function_call_arguments.done"
	TypeInputAudioBufferSpeechStarted              = "input_audio_buffer.speech_started"
	TypeInputAudioBufferSpeechStopped              = "input_audio_buffer.speech_stopped"
	TypeError                                      = "error"
)
