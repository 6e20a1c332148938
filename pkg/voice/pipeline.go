// Package voice provides a speech-to-speech conversation pipeline. The
// pipeline owns the realtime transport to the model provider; the caller
// registers named tools the model may invoke and wires audio callbacks.
package voice

import (
	"context"
	"errors"
)

// Common errors returned by pipelines.
var (
	ErrNotConnected   = errors.New("voice: pipeline not connected")
	ErrAlreadyStarted = errors.New("voice: pipeline already started")
	ErrMissingAPIKey  = errors.New("voice: missing API key")
)

// Tool is a named operation the model can invoke during conversation.
type Tool struct {
	// Name is the unique identifier for the tool (e.g., "book_appointment").
	Name string `json:"name"`

	// Description tells the model what the tool does and when to use it.
	Description string `json:"description"`

	// Parameters is the JSON schema for the tool's arguments.
	Parameters map[string]any `json:"parameters"`

	// Handler is called when the model invokes this tool. It receives the
	// parsed arguments and returns a single string the model vocalizes.
	Handler func(ctx context.Context, args map[string]any) (string, error) `json:"-"`
}

// ToolCall is an invocation of a registered tool by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Pipeline is a realtime voice conversation session.
type Pipeline interface {
	// Start establishes the connection and begins processing. Register
	// tools and set callbacks before calling Start.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the pipeline.
	Stop() error

	// IsConnected reports whether the session is live.
	IsConnected() bool

	// SendAudio sends 16kHz mono PCM16 audio to the pipeline.
	SendAudio(pcm16 []byte) error

	// Say asks the model to speak the given text verbatim, e.g. the
	// opening greeting before the caller has said anything.
	Say(text string) error

	// OnAudioOut sets the callback for synthesized audio output.
	OnAudioOut(fn func(pcm16 []byte))

	// OnTranscript sets the callback for the caller's transcribed speech.
	OnTranscript(fn func(text string, isFinal bool))

	// OnResponse sets the callback for the model's text responses.
	OnResponse(fn func(text string, isFinal bool))

	// OnToolCall sets an observer invoked before each tool executes.
	OnToolCall(fn func(call ToolCall))

	// OnError sets the error callback.
	OnError(fn func(err error))

	// RegisterTool adds a tool the model can invoke. Must be called
	// before Start. Tool handlers run sequentially, one at a time.
	RegisterTool(tool Tool)

	// Done is closed when the session ends, whether by Stop or by the
	// remote side disconnecting.
	Done() <-chan struct{}
}
