package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/kairosvoice/kairos-agent/pkg/auth"
	"github.com/kairosvoice/kairos-agent/pkg/config"
	"github.com/kairosvoice/kairos-agent/pkg/events"
	"github.com/kairosvoice/kairos-agent/services/agent/domain"
	"github.com/kairosvoice/kairos-agent/services/gateway/handlers"
)

// ---------- Mocks ----------

type stubAppointmentRepo struct {
	recent []domain.Appointment
	err    error
}

func (s *stubAppointmentRepo) Create(context.Context, int64, time.Time, time.Time, string) (*domain.Appointment, error) {
	return nil, nil
}
func (s *stubAppointmentRepo) FindBookedBetween(context.Context, time.Time, time.Time) (*domain.Appointment, error) {
	return nil, nil
}
func (s *stubAppointmentRepo) ListUpcoming(context.Context, int64, time.Time, int) ([]domain.Appointment, error) {
	return nil, nil
}
func (s *stubAppointmentRepo) FirstBookedOnDay(context.Context, int64, time.Time) (*domain.Appointment, error) {
	return nil, nil
}
func (s *stubAppointmentRepo) Reschedule(context.Context, int64, time.Time, time.Time) (*domain.Appointment, error) {
	return nil, nil
}
func (s *stubAppointmentRepo) CancelOnDay(context.Context, int64, time.Time) (int64, error) {
	return 0, nil
}

func (s *stubAppointmentRepo) ListRecent(_ context.Context, limit int) ([]domain.Appointment, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := s.recent
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type stubLogRepo struct {
	recent []domain.ConversationLog
}

func (s *stubLogRepo) Create(context.Context, *int64, string) (*domain.ConversationLog, error) {
	return nil, nil
}

func (s *stubLogRepo) ListRecent(_ context.Context, limit int) ([]domain.ConversationLog, error) {
	out := s.recent
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeSubscription struct {
	unsubscribed chan struct{}
}

func (f *fakeSubscription) Unsubscribe() error {
	select {
	case <-f.unsubscribed:
	default:
		close(f.unsubscribed)
	}
	return nil
}

type fakeBus struct {
	mu      sync.Mutex
	subject string
	handler func(msg *events.Message)
	sub     *fakeSubscription
}

func (f *fakeBus) Subscribe(subject string, handler func(msg *events.Message)) (events.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subject = subject
	f.handler = handler
	f.sub = &fakeSubscription{unsubscribed: make(chan struct{})}
	return f.sub, nil
}

func (f *fakeBus) Close() error { return nil }

// waitForSubscription blocks until the server side has subscribed.
func (f *fakeBus) waitForSubscription(t *testing.T) (string, func(msg *events.Message), *fakeSubscription) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		f.mu.Lock()
		subject, handler, sub := f.subject, f.handler, f.sub
		f.mu.Unlock()
		if handler != nil {
			return subject, handler, sub
		}
		if time.Now().After(deadline) {
			t.Fatal("server never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// ---------- Helpers ----------

const testSecret = "test-secret"

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Auth.JWTSecret = testSecret
	cfg.Auth.SessionTokenTTL = time.Hour
	cfg.Agent.Room = "kairos-demo"
	return cfg
}

func newRouter(h *handlers.Handlers) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/v1/session/token", h.CreateSessionToken)
	r.With(h.RequireJWT("")).Get("/v1/rooms/{room}/events", h.RoomEvents)
	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(h.RequireJWT("admin"))
		r.Get("/appointments", h.ListAppointments)
		r.Get("/calls", h.ListCalls)
	})
	return r
}

// ---------- Tests ----------

func TestCreateSessionTokenDefaults(t *testing.T) {
	h := handlers.New(testConfig(), nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/session/token", nil)
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Token    string `json:"token"`
		Identity string `json:"identity"`
		Room     string `json:"room"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Room != "kairos-demo" {
		t.Errorf("expected default room, got %q", resp.Room)
	}
	if !strings.HasPrefix(resp.Identity, "caller-") {
		t.Errorf("expected generated identity, got %q", resp.Identity)
	}

	claims, err := auth.Parse(resp.Token, testSecret)
	if err != nil {
		t.Fatalf("minted token does not parse: %v", err)
	}
	if claims.Role != "caller" || claims.Room != "kairos-demo" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestCreateSessionTokenExplicit(t *testing.T) {
	h := handlers.New(testConfig(), nil, nil, nil)

	body := strings.NewReader(`{"identity":"maya","room":"room-42"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/session/token", body)
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	claims, err := auth.Parse(resp.Token, testSecret)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Identity != "maya" || claims.Room != "room-42" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestCreateSessionTokenRejectsBadRoom(t *testing.T) {
	h := handlers.New(testConfig(), nil, nil, nil)

	body := strings.NewReader(`{"room":"bad room"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/session/token", body)
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestAdminRequiresToken(t *testing.T) {
	h := handlers.New(testConfig(), nil, &stubAppointmentRepo{}, &stubLogRepo{})
	router := newRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/appointments", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", rec.Code)
	}

	callerToken, err := auth.NewSessionToken("maya", "room-1", testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	req = httptest.NewRequest(http.MethodGet, "/v1/admin/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+callerToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("caller token: expected 403, got %d", rec.Code)
	}
}

func TestAdminListAppointments(t *testing.T) {
	repo := &stubAppointmentRepo{recent: []domain.Appointment{
		{ID: 2, UserID: 1, Status: domain.AppointmentBooked},
		{ID: 1, UserID: 1, Status: domain.AppointmentCancelled},
	}}
	h := handlers.New(testConfig(), nil, repo, &stubLogRepo{})

	token, err := auth.NewAdminToken("ops", testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Appointments []domain.Appointment `json:"appointments"`
		Count        int                  `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 2 || len(resp.Appointments) != 2 {
		t.Errorf("expected both appointments, got %+v", resp)
	}
}

func TestAdminListAppointmentsWithoutStore(t *testing.T) {
	h := handlers.New(testConfig(), nil, nil, nil)

	token, err := auth.NewAdminToken("ops", testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/calls", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestRoomEventsForwardsFrames(t *testing.T) {
	bus := &fakeBus{}
	h := handlers.New(testConfig(), bus, nil, nil)

	srv := httptest.NewServer(newRouter(h))
	defer srv.Close()

	token, err := auth.NewSessionToken("maya", "room-7", testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/rooms/room-7/events?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// Wait for the server-side subscription before publishing.
	subject, handler, sub := bus.waitForSubscription(t)
	if subject != "ui.state.room-7" {
		t.Errorf("subscribed to %q", subject)
	}

	frame := []byte(`{"type":"TOOL_UPDATE","tool":"identify_user"}`)
	handler(&events.Message{Subject: subject, Data: frame})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, got, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(got) != string(frame) {
		t.Errorf("frame altered in transit: %s", got)
	}

	// Closing the client tears down the subscription.
	conn.Close()
	select {
	case <-sub.unsubscribed:
	case <-time.After(2 * time.Second):
		t.Error("server never unsubscribed after disconnect")
	}
}

func TestRoomEventsRejectsWrongRoom(t *testing.T) {
	bus := &fakeBus{}
	h := handlers.New(testConfig(), bus, nil, nil)

	srv := httptest.NewServer(newRouter(h))
	defer srv.Close()

	token, err := auth.NewSessionToken("maya", "room-7", testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/rooms/other-room/events?token=" + token
	if _, resp, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Error("expected handshake rejection for wrong room")
	} else if resp == nil || resp.StatusCode != http.StatusForbidden {
		code := 0
		if resp != nil {
			code = resp.StatusCode
		}
		t.Errorf("expected 403, got %d", code)
	}
}

func TestRoomEventsAllowsAdminAnyRoom(t *testing.T) {
	bus := &fakeBus{}
	h := handlers.New(testConfig(), bus, nil, nil)

	srv := httptest.NewServer(newRouter(h))
	defer srv.Close()

	token, err := auth.NewAdminToken("ops", testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/rooms/any-room/events?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("admin dial failed: %v", err)
	}
	conn.Close()
}
