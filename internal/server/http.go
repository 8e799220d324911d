package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/teemow/schedassist/internal/conversation"
	"github.com/teemow/schedassist/internal/google"
	"github.com/teemow/schedassist/internal/instrumentation"
	"github.com/teemow/schedassist/internal/logging"
)

// Responder forwards user input to a conversation and returns the reply.
type Responder interface {
	Respond(ctx context.Context, userID, input string) (string, error)
}

// PushHandler processes a decoded mailbox push notification.
type PushHandler interface {
	OnPushNotification(ctx context.Context, emailAddress string) error
}

// Config holds the HTTP server collaborators.
type Config struct {
	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Server hosts the application endpoints.
type Server struct {
	responder Responder
	push      PushHandler
	health    *HealthChecker
	logger    *slog.Logger
	metrics   *instrumentation.Metrics
}

// New creates the HTTP server.
func New(responder Responder, push PushHandler, health *HealthChecker, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}
	return &Server{
		responder: responder,
		push:      push,
		health:    health,
		logger:    logger,
		metrics:   metrics,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.recordRequests)

	r.Handle("/healthz", s.health.LivenessHandler())
	r.Handle("/readyz", s.health.ReadinessHandler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/respond", s.handleRespond)
		r.Post("/gmail/webhook", s.handleGmailWebhook)
	})

	return r
}

// recordRequests records per-route HTTP metrics using the chi route pattern
// so user ids never become metric labels.
func (s *Server) recordRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = r.URL.Path
		}
		s.metrics.RecordHTTPRequest(r.Context(), r.Method, pattern, ww.Status(), time.Since(start))
	})
}

type respondRequest struct {
	UserID string `json:"user_id"`
	Input  string `json:"input"`
}

type respondResponse struct {
	Response string `json:"response"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleRespond runs one conversation exchange for a user.
func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.UserID == "" || strings.TrimSpace(req.Input) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id and input are required"})
		return
	}

	reply, err := s.responder.Respond(r.Context(), req.UserID, req.Input)
	if err != nil {
		logger := logging.WithOperation(s.logger, "respond")

		switch {
		case errors.Is(err, google.ErrCredentialMissing),
			errors.Is(err, google.ErrCredentialExpired):
			logger.Warn("Request for unauthorized user",
				logging.UserHash(req.UserID),
				logging.Err(err))
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "user is not authorized with Google"})
		default:
			var upstream *conversation.UpstreamModelError
			status := http.StatusInternalServerError
			message := "failed to generate a response"
			if errors.As(err, &upstream) {
				status = http.StatusBadGateway
				message = "language model is unavailable"
			}
			logger.Error("Conversation exchange failed",
				logging.UserHash(req.UserID),
				logging.Err(err))
			writeJSON(w, status, errorResponse{Error: message})
		}
		return
	}

	writeJSON(w, http.StatusOK, respondResponse{Response: reply})
}

// pushEnvelope is the Pub/Sub push delivery wrapper.
type pushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// pushPayload is the Gmail notification carried in the envelope data.
type pushPayload struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// handleGmailWebhook receives Gmail push notifications via Pub/Sub. It
// always returns 200: a non-2xx status makes Pub/Sub redeliver, and
// redelivering a notification we could not parse will never succeed.
func (s *Server) handleGmailWebhook(w http.ResponseWriter, r *http.Request) {
	logger := logging.WithOperation(s.logger, "gmail_webhook")

	// Watch registration handshakes carry no mailbox change.
	if r.Header.Get("X-Goog-Resource-State") == "sync" {
		logger.Debug("Acknowledged watch sync handshake")
		w.WriteHeader(http.StatusOK)
		return
	}

	var envelope pushEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		logger.Warn("Undecodable webhook body", logging.Err(err))
		w.WriteHeader(http.StatusOK)
		return
	}
	if envelope.Message.Data == "" {
		logger.Warn("Webhook envelope without message data")
		w.WriteHeader(http.StatusOK)
		return
	}

	decoded, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		// Pub/Sub clients sometimes use the URL-safe alphabet.
		decoded, err = base64.URLEncoding.DecodeString(envelope.Message.Data)
	}
	if err != nil {
		logger.Warn("Undecodable notification data", logging.Err(err))
		w.WriteHeader(http.StatusOK)
		return
	}

	var payload pushPayload
	if err := json.Unmarshal(decoded, &payload); err != nil || payload.EmailAddress == "" {
		logger.Warn("Malformed notification payload", logging.Err(err))
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := s.push.OnPushNotification(r.Context(), payload.EmailAddress); err != nil {
		logger.Error("Mailbox sync failed",
			slog.String("email", logging.AnonymizeEmail(payload.EmailAddress)),
			logging.Err(err))
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
