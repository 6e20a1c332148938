package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kairosvoice/kairos-agent/pkg/logger"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) (Subscription, error)
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

// Subscription is a handle to an active subscription.
type Subscription interface {
	Unsubscribe() error
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) (Subscription, error) {
	sub, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event subjects
const (
	// Call lifecycle events
	CallStarted = "call.started"
	CallEnded   = "call.ended"

	// Appointment events
	AppointmentBooked      = "appointment.booked"
	AppointmentRescheduled = "appointment.rescheduled"
	AppointmentCancelled   = "appointment.cancelled"
)

// UIState returns the side-channel subject for a room's UI observers.
func UIState(room string) string {
	return "ui.state." + room
}

// Event payloads
type CallStartedEvent struct {
	Room      string    `json:"room"`
	StartedAt time.Time `json:"started_at"`
}

type CallEndedEvent struct {
	Room    string    `json:"room"`
	UserID  *int64    `json:"user_id,omitempty"`
	Summary string    `json:"summary"`
	EndedAt time.Time `json:"ended_at"`
}

type AppointmentBookedEvent struct {
	AppointmentID int64     `json:"appointment_id"`
	UserID        int64     `json:"user_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	BookedAt      time.Time `json:"booked_at"`
}

type AppointmentRescheduledEvent struct {
	AppointmentID int64     `json:"appointment_id"`
	UserID        int64     `json:"user_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	MovedAt       time.Time `json:"moved_at"`
}

type AppointmentCancelledEvent struct {
	UserID      int64     `json:"user_id"`
	Day         string    `json:"day"`
	Count       int64     `json:"count"`
	CancelledAt time.Time `json:"cancelled_at"`
}
