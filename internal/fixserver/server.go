// Package fixserver exposes the session registry over a plain JSON HTTP
// API: list/inspect sessions, trigger logon/logout/reset, and stream
// state-change events. It is the operator-facing surface a human or
// fixctl talks to, separate from the FIX wire protocol itself.
package fixserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fixengine/internal/fix"
)

// Server is the chi-based admin HTTP handler.
type Server struct {
	registry *fix.SessionRegistry
	clock    fix.Clock
	logger   *slog.Logger
	router   chi.Router
}

// New builds a Server wired to registry. logger may be nil, in which case
// slog.Default() is used.
func New(registry *fix.SessionRegistry, clock fix.Clock, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = fix.SystemClock{}
	}

	s := &Server{
		registry: registry,
		clock:    clock,
		logger:   logger.With(slog.String("component", "fixserver")),
	}
	s.router = s.buildRouter()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.handleListSessions)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Post("/logon", s.handleLogon)
			r.Post("/logout", s.handleLogout)
			r.Post("/reset", s.handleReset)
			r.Get("/seqnums", s.handleGetSeqNums)
			r.Put("/seqnums", s.handleSetSeqNums)
		})
	})
	r.Get("/events", s.handleEvents)
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// sessionView is the JSON representation of a session's current state.
type sessionView struct {
	SessionID        string `json:"session_id"`
	BeginString      string `json:"begin_string"`
	SenderCompID     string `json:"sender_comp_id"`
	TargetCompID     string `json:"target_comp_id"`
	Enabled          bool   `json:"enabled"`
	LoggedOn         bool   `json:"logged_on"`
	Connected        bool   `json:"connected"`
	NextSenderSeqNum uint64 `json:"next_sender_seq_num"`
	NextTargetSeqNum uint64 `json:"next_target_seq_num"`
}

func sessionViewFromSession(sess *fix.Session) sessionView {
	id := sess.ID()
	view := sessionView{
		SessionID:    id.String(),
		BeginString:  id.BeginString,
		SenderCompID: id.SenderCompID,
		TargetCompID: id.TargetCompID,
		Enabled:      sess.IsEnabled(),
		LoggedOn:     sess.IsLoggedOn(),
		Connected:    sess.IsConnected(),
	}
	if next, err := sess.NextSenderMsgSeqNum(); err == nil {
		view.NextSenderSeqNum = next
	}
	if next, err := sess.NextTargetMsgSeqNum(); err == nil {
		view.NextTargetSeqNum = next
	}
	return view
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.registry.Sessions()
	views := make([]sessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, sessionViewFromSession(sess))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*fix.Session, bool) {
	raw := chi.URLParam(r, "sessionID")
	sess, ok := s.registry.LookupString(raw, false)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionViewFromSession(sess))
}

func (s *Server) handleLogon(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	sess.Logon()
	s.logger.Info("logon requested via admin API", slog.String("session_id", sess.ID().String()))
	writeJSON(w, http.StatusOK, sessionViewFromSession(sess))
}

type logoutRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	var req logoutRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
	}
	sess.Logout(req.Reason)
	s.logger.Info("logout requested via admin API",
		slog.String("session_id", sess.ID().String()), slog.String("reason", req.Reason))
	writeJSON(w, http.StatusOK, sessionViewFromSession(sess))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	if err := sess.Reset(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("reset requested via admin API", slog.String("session_id", sess.ID().String()))
	writeJSON(w, http.StatusOK, sessionViewFromSession(sess))
}

type seqNumsView struct {
	NextSenderSeqNum uint64 `json:"next_sender_seq_num"`
	NextTargetSeqNum uint64 `json:"next_target_seq_num"`
}

func (s *Server) handleGetSeqNums(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	sender, err := sess.NextSenderMsgSeqNum()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	target, err := sess.NextTargetMsgSeqNum()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, seqNumsView{NextSenderSeqNum: sender, NextTargetSeqNum: target})
}

func (s *Server) handleSetSeqNums(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	var req seqNumsView
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if req.NextSenderSeqNum > 0 {
		if err := sess.SetNextSenderMsgSeqNum(req.NextSenderSeqNum); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if req.NextTargetSeqNum > 0 {
		if err := sess.SetNextTargetMsgSeqNum(req.NextTargetSeqNum); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	s.logger.Info("sequence numbers overridden via admin API",
		slog.String("session_id", sess.ID().String()),
		slog.Uint64("next_sender", req.NextSenderSeqNum),
		slog.Uint64("next_target", req.NextTargetSeqNum))
	writeJSON(w, http.StatusOK, sessionViewFromSession(sess))
}

// eventView is the newline-delimited JSON representation of a state
// change, streamed to /events.
type eventView struct {
	SessionID string    `json:"session_id"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// handleEvents streams StateChange notifications as newline-delimited
// JSON until the client disconnects. It flushes after every event so a
// long-lived curl/fixctl client sees them as they happen.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-s.registry.StateChanges():
			if !ok {
				return
			}
			view := eventView{
				SessionID: change.SessionID.String(),
				State:     change.State.String(),
				Timestamp: change.Timestamp,
			}
			if err := enc.Encode(view); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
