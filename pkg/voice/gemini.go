package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kairosvoice/kairos-agent/pkg/logger"
)

const (
	// Gemini Live API WebSocket endpoint
	geminiLiveURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	geminiDefaultModel = "models/gemini-2.0-flash-exp"
	geminiDefaultVoice = "Aoede"
)

// Gemini implements Pipeline using Google's Gemini Live API over a single
// bidirectional WebSocket. The provider handles VAD, ASR, LLM, and TTS; the
// pipeline handles session setup, audio framing, and tool dispatch.
type Gemini struct {
	config Config

	ws   *websocket.Conn
	wsMu sync.Mutex

	tools    []Tool
	toolsMap map[string]Tool

	mu        sync.RWMutex
	connected bool
	closed    bool
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc

	onAudioOut   func(pcm16 []byte)
	onTranscript func(text string, isFinal bool)
	onResponse   func(text string, isFinal bool)
	onToolCall   func(call ToolCall)
	onError      func(err error)
}

// NewGemini creates a new Gemini Live pipeline.
func NewGemini(cfg Config) (*Gemini, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = 10 * time.Second
	}

	return &Gemini{
		config:   cfg,
		toolsMap: make(map[string]Tool),
		done:     make(chan struct{}),
	}, nil
}

// Start establishes the WebSocket connection and begins processing.
func (g *Gemini) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.connected {
		g.mu.Unlock()
		return ErrAlreadyStarted
	}
	g.mu.Unlock()

	g.ctx, g.cancel = context.WithCancel(ctx)

	model := g.config.Model
	if model == "" {
		model = geminiDefaultModel
	}
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}

	url := fmt.Sprintf("%s?key=%s", geminiLiveURL, g.config.APIKey)

	header := make(http.Header)
	header.Set("Content-Type", "application/json")

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	var err error
	g.ws, _, err = dialer.Dial(url, header)
	if err != nil {
		return fmt.Errorf("voice/gemini: failed to connect: %w", err)
	}

	g.mu.Lock()
	g.connected = true
	g.closed = false
	g.mu.Unlock()

	if err := g.sendSetup(model); err != nil {
		g.Stop()
		return fmt.Errorf("voice/gemini: failed to configure session: %w", err)
	}

	go g.handleMessages()

	logger.Debug("Gemini Live connected", "model", model)

	return nil
}

// sendSetup sends the initial session configuration to Gemini Live.
func (g *Gemini) sendSetup(model string) error {
	var declarations []map[string]any
	for _, tool := range g.tools {
		declarations = append(declarations, map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"parameters":  tool.Parameters,
		})
	}

	voiceName := g.config.VoiceName
	if voiceName == "" {
		voiceName = geminiDefaultVoice
	}

	setup := map[string]any{
		"model": model,
		"generation_config": map[string]any{
			"response_modalities": []string{"AUDIO"},
			"temperature":         g.config.Temperature,
			"speech_config": map[string]any{
				"voice_config": map[string]any{
					"prebuilt_voice_config": map[string]any{
						"voice_name": voiceName,
					},
				},
			},
		},
		"system_instruction": map[string]any{
			"parts": []map[string]any{
				{"text": g.config.SystemPrompt},
			},
		},
	}

	if len(declarations) > 0 {
		setup["tools"] = []map[string]any{
			{"function_declarations": declarations},
		}
	}

	return g.sendJSON(map[string]any{"setup": setup})
}

// Stop gracefully shuts down the pipeline.
func (g *Gemini) Stop() error {
	g.mu.Lock()
	alreadyClosed := g.closed
	g.closed = true
	g.connected = false
	g.mu.Unlock()

	if g.cancel != nil {
		g.cancel()
	}

	if !alreadyClosed {
		close(g.done)
	}

	if g.ws != nil {
		return g.ws.Close()
	}
	return nil
}

// IsConnected reports whether the session is live.
func (g *Gemini) IsConnected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connected && !g.closed
}

// Done is closed when the session ends.
func (g *Gemini) Done() <-chan struct{} {
	return g.done
}

// SendAudio sends 16kHz mono PCM16 audio to the pipeline.
func (g *Gemini) SendAudio(pcm16 []byte) error {
	if !g.IsConnected() {
		return ErrNotConnected
	}

	msg := map[string]any{
		"realtime_input": map[string]any{
			"media_chunks": []map[string]any{
				{
					"data":      base64.StdEncoding.EncodeToString(pcm16),
					"mime_type": "audio/pcm",
				},
			},
		},
	}

	return g.sendJSON(msg)
}

// Say asks the model to speak the given text verbatim.
func (g *Gemini) Say(text string) error {
	if !g.IsConnected() {
		return ErrNotConnected
	}

	msg := map[string]any{
		"client_content": map[string]any{
			"turns": []map[string]any{
				{
					"role": "user",
					"parts": []map[string]any{
						{"text": "Say exactly this to the caller, nothing else: " + text},
					},
				},
			},
			"turn_complete": true,
		},
	}

	return g.sendJSON(msg)
}

// OnAudioOut sets the callback for synthesized audio output.
func (g *Gemini) OnAudioOut(fn func(pcm16 []byte)) {
	g.onAudioOut = fn
}

// OnTranscript sets the callback for caller transcripts.
func (g *Gemini) OnTranscript(fn func(text string, isFinal bool)) {
	g.onTranscript = fn
}

// OnResponse sets the callback for model text responses.
func (g *Gemini) OnResponse(fn func(text string, isFinal bool)) {
	g.onResponse = fn
}

// OnToolCall sets an observer invoked before each tool executes.
func (g *Gemini) OnToolCall(fn func(call ToolCall)) {
	g.onToolCall = fn
}

// OnError sets the error callback.
func (g *Gemini) OnError(fn func(err error)) {
	g.onError = fn
}

// RegisterTool adds a tool the model can invoke.
func (g *Gemini) RegisterTool(tool Tool) {
	g.tools = append(g.tools, tool)
	g.toolsMap[tool.Name] = tool
}

// submitToolResult returns a tool result to the model.
func (g *Gemini) submitToolResult(callID, result string) error {
	msg := map[string]any{
		"tool_response": map[string]any{
			"function_responses": []map[string]any{
				{
					"id":       callID,
					"response": map[string]any{"result": result},
				},
			},
		},
	}

	return g.sendJSON(msg)
}

// handleMessages processes incoming WebSocket messages. Running in a single
// goroutine keeps tool execution sequential: at most one tool handler runs
// at a time per session.
func (g *Gemini) handleMessages() {
	defer func() {
		g.mu.Lock()
		wasClosed := g.closed
		g.closed = true
		g.connected = false
		g.mu.Unlock()
		if !wasClosed {
			close(g.done)
		}
	}()

	for {
		g.mu.RLock()
		closed := g.closed
		g.mu.RUnlock()
		if closed {
			return
		}

		_, message, err := g.ws.ReadMessage()
		if err != nil {
			g.mu.RLock()
			closed := g.closed
			g.mu.RUnlock()

			if !closed && g.onError != nil {
				g.onError(err)
			}
			return
		}

		var msg map[string]any
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Debug("Gemini: failed to parse message", "error", err)
			continue
		}

		g.handleMessage(msg)
	}
}

// handleMessage processes a single Gemini Live message.
func (g *Gemini) handleMessage(msg map[string]any) {
	if _, ok := msg["setupComplete"]; ok {
		logger.Debug("Gemini Live session ready")
		return
	}

	if serverContent, ok := msg["serverContent"].(map[string]any); ok {
		g.handleServerContent(serverContent)
		return
	}

	if toolCall, ok := msg["toolCall"].(map[string]any); ok {
		g.handleToolCall(toolCall)
		return
	}

	if _, ok := msg["toolCallCancellation"]; ok {
		logger.Debug("Gemini: tool call cancelled")
		return
	}
}

// handleServerContent processes audio/text from the model.
func (g *Gemini) handleServerContent(content map[string]any) {
	if modelTurn, ok := content["modelTurn"].(map[string]any); ok {
		if parts, ok := modelTurn["parts"].([]any); ok {
			for _, part := range parts {
				partMap, ok := part.(map[string]any)
				if !ok {
					continue
				}

				if inlineData, ok := partMap["inlineData"].(map[string]any); ok {
					if mimeType, _ := inlineData["mimeType"].(string); strings.HasPrefix(mimeType, "audio/pcm") {
						if data, ok := inlineData["data"].(string); ok {
							audio, err := base64.StdEncoding.DecodeString(data)
							if err == nil && len(audio) > 0 && g.onAudioOut != nil {
								g.onAudioOut(audio)
							}
						}
					}
				}

				if text, ok := partMap["text"].(string); ok && g.onResponse != nil {
					g.onResponse(text, false)
				}
			}
		}
	}

	if inputTranscript, ok := content["inputTranscription"].(map[string]any); ok {
		if text, ok := inputTranscript["text"].(string); ok && g.onTranscript != nil {
			g.onTranscript(text, true)
		}
	}

	if outputTranscript, ok := content["outputTranscription"].(map[string]any); ok {
		if text, ok := outputTranscript["text"].(string); ok && g.onResponse != nil {
			g.onResponse(text, true)
		}
	}
}

// handleToolCall executes function calls from the model and returns their
// results. Handler failures are reported to the model as plain strings,
// never as error frames.
func (g *Gemini) handleToolCall(toolCall map[string]any) {
	functionCalls, ok := toolCall["functionCalls"].([]any)
	if !ok {
		return
	}

	for _, fc := range functionCalls {
		fcMap, ok := fc.(map[string]any)
		if !ok {
			continue
		}

		name, _ := fcMap["name"].(string)
		id, _ := fcMap["id"].(string)
		args, _ := fcMap["args"].(map[string]any)

		call := ToolCall{ID: id, Name: name, Arguments: args}
		if g.onToolCall != nil {
			g.onToolCall(call)
		}

		tool, found := g.toolsMap[name]
		if !found || tool.Handler == nil {
			logger.Warn("Gemini: unknown tool requested", "tool", name)
			if err := g.submitToolResult(id, "I'm not able to do that."); err != nil && g.onError != nil {
				g.onError(err)
			}
			continue
		}

		ctx, cancel := context.WithTimeout(g.ctx, g.config.ToolTimeout)
		result, err := tool.Handler(ctx, args)
		cancel()
		if err != nil {
			logger.Error("Gemini: tool handler failed", "tool", name, "error", err)
			result = "I'm having trouble with that right now. Can we try again?"
		}

		if err := g.submitToolResult(id, result); err != nil && g.onError != nil {
			g.onError(err)
		}
	}
}

// sendJSON sends a JSON message over the WebSocket.
func (g *Gemini) sendJSON(v any) error {
	g.wsMu.Lock()
	defer g.wsMu.Unlock()

	if g.ws == nil {
		return ErrNotConnected
	}

	return g.ws.WriteJSON(v)
}

// Ensure Gemini implements Pipeline at compile time.
var _ Pipeline = (*Gemini)(nil)
