package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kairosvoice/kairos-agent/pkg/auth"
	"github.com/kairosvoice/kairos-agent/pkg/logger"
)

type sessionTokenRequest struct {
	Identity string `json:"identity"`
	Room     string `json:"room"`
}

type sessionTokenResponse struct {
	Token     string    `json:"token"`
	Identity  string    `json:"identity"`
	Room      string    `json:"room"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateSessionToken mints a short-lived token granting one caller identity
// access to one call room. Identity defaults to a random caller id and room
// to the configured agent room, so a bare POST is enough for the demo UI.
func (h *Handlers) CreateSessionToken(w http.ResponseWriter, r *http.Request) {
	var req sessionTokenRequest
	if r.Body != nil {
		// An empty body is fine; only malformed JSON is rejected.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	if req.Identity == "" {
		req.Identity = "caller-" + uuid.NewString()[:8]
	}
	if req.Room == "" {
		req.Room = h.config.Agent.Room
	}
	if strings.ContainsAny(req.Room, " .*>") {
		writeError(w, http.StatusBadRequest, "Invalid room name")
		return
	}

	ttl := h.config.Auth.SessionTokenTTL
	token, err := auth.NewSessionToken(req.Identity, req.Room, h.config.Auth.JWTSecret, ttl)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to mint session token", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	logger.InfoContext(r.Context(), "Session token issued", "identity", req.Identity, "room", req.Room)

	writeJSON(w, http.StatusCreated, sessionTokenResponse{
		Token:     token,
		Identity:  req.Identity,
		Room:      req.Room,
		ExpiresAt: time.Now().Add(ttl),
	})
}
