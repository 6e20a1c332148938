package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/kairosvoice/kairos-agent/pkg/auth"
	"github.com/kairosvoice/kairos-agent/pkg/config"
	"github.com/kairosvoice/kairos-agent/pkg/events"
	"github.com/kairosvoice/kairos-agent/pkg/logger"
	"github.com/kairosvoice/kairos-agent/services/agent/repository"
)

type claimsKey struct{}

type Handlers struct {
	config       *config.Config
	bus          events.Subscriber
	appointments repository.AppointmentRepository
	logs         repository.ConversationLogRepository
}

// New builds the gateway handler set. appointments and logs may be nil when
// the gateway runs without a database; the admin endpoints then report the
// store as unavailable.
func New(cfg *config.Config, bus events.Subscriber, appointments repository.AppointmentRepository, logs repository.ConversationLogRepository) *Handlers {
	return &Handlers{
		config:       cfg,
		bus:          bus,
		appointments: appointments,
		logs:         logs,
	}
}

// Middleware for JWT authentication
func (h *Handlers) RequireJWT(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "Missing or invalid authorization header")
				return
			}

			claims, err := auth.Parse(token, h.config.Auth.JWTSecret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			if requiredRole != "" && claims.Role != requiredRole && claims.Role != "admin" {
				writeError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}

			ctx := context.WithValue(r.Context(), logger.UserIDKey, claims.Identity)
			ctx = context.WithValue(ctx, claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken pulls the token from the Authorization header, falling back to
// the token query parameter for websocket clients that cannot set headers.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func getClaims(r *http.Request) *auth.Claims {
	if claims, ok := r.Context().Value(claimsKey{}).(*auth.Claims); ok {
		return claims
	}
	return nil
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func parseLimit(r *http.Request, fallback, max int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= max {
			return n
		}
	}
	return fallback
}
