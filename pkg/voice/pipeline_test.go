package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Temperature != 0.3 {
		t.Errorf("expected temperature 0.3, got %f", cfg.Temperature)
	}

	if cfg.ToolTimeout != 10*time.Second {
		t.Errorf("expected tool timeout 10s, got %v", cfg.ToolTimeout)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "valid config",
			config:  Config{APIKey: "test-key"},
			wantErr: false,
		},
		{
			name:    "missing api key",
			config:  Config{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewGeminiRequiresAPIKey(t *testing.T) {
	if _, err := NewGemini(Config{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestSendBeforeStart(t *testing.T) {
	g, err := NewGemini(Config{APIKey: "test-key"})
	if err != nil {
		t.Fatal(err)
	}

	if err := g.SendAudio([]byte{1, 2}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendAudio before start: expected ErrNotConnected, got %v", err)
	}
	if err := g.Say("hello"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Say before start: expected ErrNotConnected, got %v", err)
	}
}

// fakeLiveServer upgrades one connection and forwards every JSON frame it
// reads to the frames channel.
func fakeLiveServer(t *testing.T) (*httptest.Server, chan map[string]any) {
	t.Helper()

	frames := make(chan map[string]any, 16)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			frames <- msg
		}
	}))

	return srv, frames
}

// connectedGemini returns a pipeline wired to a fake server, bypassing the
// real endpoint.
func connectedGemini(t *testing.T, cfg Config) (*Gemini, chan map[string]any) {
	t.Helper()

	srv, frames := fakeLiveServer(t)
	t.Cleanup(srv.Close)

	g, err := NewGemini(cfg)
	if err != nil {
		t.Fatal(err)
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	g.ws = conn
	g.connected = true
	g.ctx, g.cancel = context.WithCancel(context.Background())
	t.Cleanup(g.cancel)

	return g, frames
}

func readFrame(t *testing.T, frames chan map[string]any) map[string]any {
	t.Helper()
	select {
	case frame := <-frames:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return nil
	}
}

func toolResult(t *testing.T, frame map[string]any) string {
	t.Helper()
	resp, ok := frame["tool_response"].(map[string]any)
	if !ok {
		t.Fatalf("expected tool_response frame, got %v", frame)
	}
	responses, ok := resp["function_responses"].([]any)
	if !ok || len(responses) == 0 {
		t.Fatalf("expected function_responses, got %v", resp)
	}
	first := responses[0].(map[string]any)
	result := first["response"].(map[string]any)
	s, _ := result["result"].(string)
	return s
}

func TestSendAudioFrameShape(t *testing.T) {
	g, frames := connectedGemini(t, Config{APIKey: "test-key"})

	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	if err := g.SendAudio(pcm); err != nil {
		t.Fatal(err)
	}

	frame := readFrame(t, frames)
	input, ok := frame["realtime_input"].(map[string]any)
	if !ok {
		t.Fatalf("expected realtime_input, got %v", frame)
	}
	chunks := input["media_chunks"].([]any)
	chunk := chunks[0].(map[string]any)
	if chunk["mime_type"] != "audio/pcm" {
		t.Errorf("unexpected mime type %v", chunk["mime_type"])
	}
	decoded, err := base64.StdEncoding.DecodeString(chunk["data"].(string))
	if err != nil || string(decoded) != string(pcm) {
		t.Errorf("audio payload altered: %v %v", decoded, err)
	}
}

func TestSayFrameShape(t *testing.T) {
	g, frames := connectedGemini(t, Config{APIKey: "test-key"})

	if err := g.Say("Hey there!"); err != nil {
		t.Fatal(err)
	}

	frame := readFrame(t, frames)
	content, ok := frame["client_content"].(map[string]any)
	if !ok {
		t.Fatalf("expected client_content, got %v", frame)
	}
	if content["turn_complete"] != true {
		t.Error("expected turn_complete")
	}
	raw, _ := json.Marshal(content)
	if !strings.Contains(string(raw), "Hey there!") {
		t.Errorf("text missing from turn: %s", raw)
	}
}

func TestToolCallDispatch(t *testing.T) {
	g, frames := connectedGemini(t, Config{APIKey: "test-key", ToolTimeout: time.Second})

	var gotArgs map[string]any
	g.RegisterTool(Tool{
		Name: "book_appointment",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			gotArgs = args
			return "You're all set.", nil
		},
	})

	var observed ToolCall
	g.OnToolCall(func(call ToolCall) { observed = call })

	g.handleToolCall(map[string]any{
		"functionCalls": []any{
			map[string]any{
				"id":   "call-1",
				"name": "book_appointment",
				"args": map[string]any{"date": "2026-01-06"},
			},
		},
	})

	if got := toolResult(t, readFrame(t, frames)); got != "You're all set." {
		t.Errorf("unexpected result %q", got)
	}
	if gotArgs["date"] != "2026-01-06" {
		t.Errorf("args not passed through: %v", gotArgs)
	}
	if observed.ID != "call-1" || observed.Name != "book_appointment" {
		t.Errorf("observer not invoked: %+v", observed)
	}
}

func TestToolCallHandlerErrorBecomesSpokenApology(t *testing.T) {
	g, frames := connectedGemini(t, Config{APIKey: "test-key", ToolTimeout: time.Second})

	g.RegisterTool(Tool{
		Name: "book_appointment",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return "", errors.New("pool exhausted")
		},
	})

	g.handleToolCall(map[string]any{
		"functionCalls": []any{
			map[string]any{"id": "call-1", "name": "book_appointment"},
		},
	})

	got := toolResult(t, readFrame(t, frames))
	if !strings.Contains(got, "having trouble") {
		t.Errorf("expected apologetic result, got %q", got)
	}
	if strings.Contains(got, "pool exhausted") {
		t.Errorf("internal error leaked to the model: %q", got)
	}
}

func TestToolCallUnknownTool(t *testing.T) {
	g, frames := connectedGemini(t, Config{APIKey: "test-key", ToolTimeout: time.Second})

	g.handleToolCall(map[string]any{
		"functionCalls": []any{
			map[string]any{"id": "call-9", "name": "launch_rocket"},
		},
	})

	if got := toolResult(t, readFrame(t, frames)); got != "I'm not able to do that." {
		t.Errorf("unexpected result %q", got)
	}
}

func TestServerContentCallbacks(t *testing.T) {
	g, err := NewGemini(Config{APIKey: "test-key"})
	if err != nil {
		t.Fatal(err)
	}

	var audio []byte
	var transcript, response string
	g.OnAudioOut(func(pcm16 []byte) { audio = pcm16 })
	g.OnTranscript(func(text string, isFinal bool) { transcript = text })
	g.OnResponse(func(text string, isFinal bool) { response = text })

	g.handleServerContent(map[string]any{
		"modelTurn": map[string]any{
			"parts": []any{
				map[string]any{
					"inlineData": map[string]any{
						"mimeType": "audio/pcm;rate=24000",
						"data":     base64.StdEncoding.EncodeToString([]byte{9, 9}),
					},
				},
			},
		},
		"inputTranscription":  map[string]any{"text": "book me for tomorrow"},
		"outputTranscription": map[string]any{"text": "You're all set."},
	})

	if len(audio) != 2 {
		t.Errorf("audio callback not invoked: %v", audio)
	}
	if transcript != "book me for tomorrow" {
		t.Errorf("transcript callback: %q", transcript)
	}
	if response != "You're all set." {
		t.Errorf("response callback: %q", response)
	}
}

func TestStopIdempotent(t *testing.T) {
	g, _ := connectedGemini(t, Config{APIKey: "test-key"})

	if err := g.Stop(); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	// Second stop must not panic on the done channel.
	_ = g.Stop()

	select {
	case <-g.Done():
	default:
		t.Error("Done not closed after Stop")
	}

	if g.IsConnected() {
		t.Error("still connected after Stop")
	}
}
