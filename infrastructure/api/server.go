// Package api exposes the ranking service over HTTP: the snippet pool,
// absolute ratings, standalone comparisons, and the interactive session
// surface the rating UI drives.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seizurelab/eegrank/internal/domain"
	"github.com/seizurelab/eegrank/internal/ports"
	"github.com/seizurelab/eegrank/internal/session"
)

// Server routes HTTP requests to the snippet store, the comparison log,
// and the session controller.
type Server struct {
	store      ports.SnippetStore
	log        ports.ComparisonLog
	controller *session.Controller
	logger     *slog.Logger
	mux        *http.ServeMux

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewServer wires the handlers over the given collaborators.
func NewServer(
	store ports.SnippetStore,
	log ports.ComparisonLog,
	controller *session.Controller,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:      store,
		log:        log,
		controller: controller,
		logger:     logger,
		mux:        http.NewServeMux(),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/snippets", s.handleListSnippets)
	s.mux.HandleFunc("GET /api/snippets/{id}", s.handleGetSnippet)
	s.mux.HandleFunc("GET /api/snippets-random-pair", s.handleRandomPair)
	s.mux.HandleFunc("POST /api/ratings", s.handleCreateRating)
	s.mux.HandleFunc("POST /api/comparisons", s.handleCreateComparison)
	s.mux.HandleFunc("GET /api/progress/{rater}", s.handleProgress)
	s.mux.HandleFunc("GET /api/unrated-snippets/{rater}", s.handleUnrated)
	s.mux.HandleFunc("POST /api/session/start", s.handleSessionStart)
	s.mux.HandleFunc("GET /api/session", s.handleSessionSnapshot)
	s.mux.HandleFunc("POST /api/session/verdict", s.handleSessionVerdict)
	s.mux.HandleFunc("POST /api/session/restart", s.handleSessionRestart)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

// Handler returns the root handler with request logging applied.
func (s *Server) Handler() http.Handler {
	return s.withRequestLog(s.mux)
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}

func (s *Server) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respond(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleListSnippets(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.store.ListSnippets(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respond(w, http.StatusOK, map[string]any{
		"snippets": summaries,
		"total":    len(summaries),
	})
}

func (s *Server) handleGetSnippet(w http.ResponseWriter, r *http.Request) {
	snip, err := s.store.GetSnippet(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrSnippetNotFound) {
			s.respondError(w, http.StatusNotFound, "snippet not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respond(w, http.StatusOK, snip)
}

func (s *Server) handleRandomPair(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.store.ListSnippets(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(summaries) < 2 {
		s.respondError(w, http.StatusBadRequest, "need at least 2 snippets for comparison")
		return
	}

	s.rngMu.Lock()
	perm := s.rng.Perm(len(summaries))
	s.rngMu.Unlock()

	first, err := s.store.GetSnippet(r.Context(), summaries[perm[0]].ID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	second, err := s.store.GetSnippet(r.Context(), summaries[perm[1]].ID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respond(w, http.StatusOK, map[string]domain.Snippet{
		"snippet_a": first,
		"snippet_b": second,
	})
}

type ratingRequest struct {
	SnippetID string `json:"snippet_id"`
	Rater     string `json:"rater"`
	Rating    int    `json:"rating"`
}

func (s *Server) handleCreateRating(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := s.store.GetSnippet(r.Context(), req.SnippetID); err != nil {
		if errors.Is(err, domain.ErrSnippetNotFound) {
			s.respondError(w, http.StatusNotFound, "snippet not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rating := domain.Rating{SnippetID: req.SnippetID, Rater: req.Rater, Rating: req.Rating}
	if err := s.log.RecordRating(r.Context(), rating); err != nil {
		if errors.Is(err, domain.ErrInvalidRating) {
			s.respondError(w, http.StatusBadRequest, "rating must be between 1 and 10")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respond(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

type comparisonRequest struct {
	SnippetA string `json:"snippet_a"`
	SnippetB string `json:"snippet_b"`
	Winner   string `json:"winner"`
	Rater    string `json:"rater"`
}

func (s *Server) handleCreateComparison(w http.ResponseWriter, r *http.Request) {
	var req comparisonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Winner != req.SnippetA && req.Winner != req.SnippetB && req.Winner != "tie" {
		s.respondError(w, http.StatusBadRequest, `winner must be one of the snippet ids or "tie"`)
		return
	}
	for _, id := range []string{req.SnippetA, req.SnippetB} {
		if _, err := s.store.GetSnippet(r.Context(), id); err != nil {
			if errors.Is(err, domain.ErrSnippetNotFound) {
				s.respondError(w, http.StatusNotFound, "snippet not found: "+id)
				return
			}
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	c := domain.Comparison{
		SnippetA: req.SnippetA,
		SnippetB: req.SnippetB,
		Winner:   req.Winner,
		Rater:    req.Rater,
	}
	if err := s.log.RecordComparison(r.Context(), c); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respond(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	rater := r.PathValue("rater")
	summaries, err := s.store.ListSnippets(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	rated, err := s.log.RatedSnippetIDs(r.Context(), rater)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	comparisons, err := s.log.ComparisonCount(r.Context(), rater)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respond(w, http.StatusOK, map[string]any{
		"rater":            rater,
		"total_snippets":   len(summaries),
		"rated_snippets":   len(rated),
		"comparisons_made": comparisons,
	})
}

func (s *Server) handleUnrated(w http.ResponseWriter, r *http.Request) {
	rater := r.PathValue("rater")
	summaries, err := s.store.ListSnippets(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ratedIDs, err := s.log.RatedSnippetIDs(r.Context(), rater)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rated := make(map[string]struct{}, len(ratedIDs))
	for _, id := range ratedIDs {
		rated[id] = struct{}{}
	}
	unrated := make([]domain.SnippetSummary, 0, len(summaries))
	for _, sum := range summaries {
		if _, ok := rated[sum.ID]; !ok {
			unrated = append(unrated, sum)
		}
	}
	s.respond(w, http.StatusOK, map[string]any{
		"snippets": unrated,
		"total":    len(unrated),
	})
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Start(r.Context()); err != nil {
		if errors.Is(err, domain.ErrTooFewItems) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respond(w, http.StatusOK, s.sessionView())
}

func (s *Server) handleSessionRestart(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Restart(r.Context()); err != nil {
		if errors.Is(err, domain.ErrTooFewItems) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respond(w, http.StatusOK, s.sessionView())
}

// sessionView joins the progress snapshot with the pending comparison
// payloads the UI renders.
func (s *Server) sessionView() map[string]any {
	view := map[string]any{"progress": s.controller.Snapshot()}
	if pc, ok := s.controller.Pending(); ok {
		view["pending"] = pc
	}
	return view
}

func (s *Server) handleSessionSnapshot(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, s.sessionView())
}

type verdictRequest struct {
	Generation uint64 `json:"generation"`
	Verdict    string `json:"verdict"`
}

func (s *Server) handleSessionVerdict(w http.ResponseWriter, r *http.Request) {
	var req verdictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	v, err := domain.ParseVerdict(req.Verdict)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, `verdict must be "left", "right", or "tie"`)
		return
	}

	err = s.controller.Resolve(r.Context(), req.Generation, v)
	switch {
	case err == nil:
		view := s.sessionView()
		view["discarded"] = false
		s.respond(w, http.StatusOK, view)
	case errors.Is(err, domain.ErrStaleResolution):
		// The session restarted underneath this verdict. That is a
		// normal race, not a client error: acknowledge and let the
		// client refresh from the new session.
		view := s.sessionView()
		view["discarded"] = true
		s.respond(w, http.StatusOK, view)
	case errors.Is(err, domain.ErrSessionNotActive),
		errors.Is(err, domain.ErrNoPendingComparison),
		errors.Is(err, domain.ErrRunComplete):
		s.respondError(w, http.StatusConflict, err.Error())
	default:
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}
