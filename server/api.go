// Package server implements the stub record service used for local
// development and smoke runs. It speaks the same commit and read protocol
// as the production record backend, including the asynchronous draft
// lifecycle: a configurable number of pending answers before a draft
// materializes, and idempotent replays of resolved drafts.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lexcodex/fitcoach/backend"
	"github.com/lexcodex/fitcoach/persistence"
)

// StubServer serves the record API over one persistence.Store.
type StubServer struct {
	Store persistence.Store
	// HoldPolls is how many pending answers each draft gets before it is
	// applied. Zero applies drafts on first submit.
	HoldPolls int
	// Token, when set, is required as a bearer token on every request.
	Token  string
	Logger *log.Logger

	mu     sync.Mutex
	drafts map[string]*draftState
}

type draftState struct {
	polls    int
	resolved bool
	status   int
	response responseEnvelope
}

type responseEnvelope struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// NewStubServer builds a stub over the given store. One pending cycle per
// draft is the default so clients exercise their poll loop.
func NewStubServer(store persistence.Store) *StubServer {
	return &StubServer{
		Store:     store,
		HoldPolls: 1,
		drafts:    make(map[string]*draftState),
	}
}

// Serve starts listening on the provided address.
func (s *StubServer) Serve(addr string) error {
	return s.ServeContext(context.Background(), addr)
}

// ServeContext allows the caller to control shutdown via context cancellation.
func (s *StubServer) ServeContext(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	if s.Logger != nil {
		s.Logger.Printf("record service listening on %s", addr)
	}
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Handler returns the HTTP surface, for embedding in tests.
func (s *StubServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/writeback/commit", s.handleCommit)
	mux.HandleFunc("/api/v1/records/", s.handleRecords)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

func (s *StubServer) handleCommit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, responseEnvelope{Success: false, Error: "unauthorized"})
		return
	}
	var draft backend.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeJSON(w, http.StatusBadRequest, responseEnvelope{Success: false, Error: "malformed draft"})
		return
	}
	if draft.DraftID == "" {
		writeJSON(w, http.StatusUnprocessableEntity, responseEnvelope{Success: false, Error: "draft_id required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.drafts[draft.DraftID]
	if state == nil {
		state = &draftState{}
		s.drafts[draft.DraftID] = state
	}
	if state.resolved {
		// Replays of a resolved draft answer exactly as the first time.
		writeJSON(w, state.status, state.response)
		return
	}
	state.polls++
	if state.polls <= s.HoldPolls {
		s.logf("draft %s pending (%d/%d)", draft.DraftID, state.polls, s.HoldPolls)
		writeJSON(w, http.StatusAccepted, responseEnvelope{
			Success: true,
			Data:    map[string]interface{}{"state": backend.StatePendingRemote, "draft_id": draft.DraftID},
		})
		return
	}

	summary, err := s.Store.Apply(r.Context(), draft.Payload)
	state.resolved = true
	if err != nil {
		state.status = http.StatusUnprocessableEntity
		state.response = responseEnvelope{Success: false, Error: err.Error()}
		s.logf("draft %s rejected: %v", draft.DraftID, err)
	} else {
		state.status = http.StatusOK
		state.response = responseEnvelope{
			Success: true,
			Data: map[string]interface{}{
				"state":    backend.StateCommitted,
				"summary":  summary,
				"draft_id": draft.DraftID,
			},
		}
		s.logf("draft %s committed: %s", draft.DraftID, summary)
	}
	writeJSON(w, state.status, state.response)
}

func (s *StubServer) handleRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, responseEnvelope{Success: false, Error: "unauthorized"})
		return
	}
	resource := strings.TrimPrefix(r.URL.Path, "/api/v1/records/")
	if resource == "" || strings.Contains(resource, "/") {
		writeJSON(w, http.StatusNotFound, responseEnvelope{Success: false, Error: "unknown resource path"})
		return
	}
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	rows, err := s.Store.List(r.Context(), resource, persistence.ListOptions{
		Limit: backend.ClampLimit(limit),
		Date:  query.Get("date"),
		From:  query.Get("from"),
		To:    query.Get("to"),
	})
	if err != nil {
		if errors.Is(err, persistence.ErrUnsupportedResource) {
			writeJSON(w, http.StatusNotFound, responseEnvelope{Success: false, Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, responseEnvelope{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, responseEnvelope{Success: true, Data: rows})
}

func (s *StubServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *StubServer) authorized(r *http.Request) bool {
	if s.Token == "" {
		return true
	}
	return r.Header.Get("Authorization") == "Bearer "+s.Token
}

func (s *StubServer) logf(format string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
