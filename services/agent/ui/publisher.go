// Package ui publishes tool activity to the side channel a connected
// frontend observes. Publishing is best-effort: the voice conversation
// never waits on, or fails because of, the UI.
package ui

import (
	"context"
	"time"

	"github.com/kairosvoice/kairos-agent/pkg/events"
	"github.com/kairosvoice/kairos-agent/pkg/logger"
)

// ToolUpdate is the frame a frontend receives for each tool invocation.
type ToolUpdate struct {
	Type      string         `json:"type"`
	Tool      string         `json:"tool"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// Publisher emits ToolUpdate frames for one call room.
type Publisher struct {
	bus  events.Publisher
	room string
}

// NewPublisher returns a Publisher for the given room. A nil bus yields a
// publisher that silently drops every update.
func NewPublisher(bus events.Publisher, room string) *Publisher {
	return &Publisher{bus: bus, room: room}
}

// PublishToolUpdate sends a TOOL_UPDATE frame to the room's UI subject.
// Failures are logged and swallowed.
func (p *Publisher) PublishToolUpdate(ctx context.Context, tool string, data map[string]any) {
	if p == nil || p.bus == nil {
		return
	}

	update := ToolUpdate{
		Type:      "TOOL_UPDATE",
		Tool:      tool,
		Data:      data,
		Timestamp: time.Now(),
	}

	if err := p.bus.Publish(ctx, events.UIState(p.room), update); err != nil {
		logger.WarnContext(ctx, "Failed to publish tool update", "tool", tool, "error", err)
	}
}
