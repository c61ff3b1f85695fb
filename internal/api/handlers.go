package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/todmy/doc-conflicts/internal/auth"
	"github.com/todmy/doc-conflicts/internal/storage"
	"github.com/todmy/doc-conflicts/pkg/models"
)

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RunListResponse is the body of GET /runs
type RunListResponse struct {
	Runs []*storage.Run `json:"runs"`
}

// ConflictsResponse is the body of GET /runs/{runID}/conflicts
type ConflictsResponse struct {
	RunID     string                        `json:"run_id"`
	Total     int                           `json:"total"`
	Conflicts []models.DocumentPairConflict `json:"document_conflicts"`
}

// RecommendationsResponse is the body of GET /runs/{runID}/recommendations
type RecommendationsResponse struct {
	RunID           string                  `json:"run_id"`
	MinConfidence   float64                 `json:"min_confidence"`
	Recommendations []models.Recommendation `json:"recommendations"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	corpus := r.URL.Query().Get("corpus")
	if claims, ok := auth.GetClaimsFromContext(r.Context()); ok && claims.Corpus != "" {
		if corpus != "" && corpus != claims.Corpus {
			respondError(w, http.StatusForbidden, "access denied")
			return
		}
		corpus = claims.Corpus
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := s.runs.List(r.Context(), corpus, limit)
	if err != nil {
		s.logger.Error("list runs", "corpus", corpus, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []*storage.Run{}
	}

	respondJSON(w, http.StatusOK, RunListResponse{Runs: runs})
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	corpus := r.URL.Query().Get("corpus")
	if corpus == "" {
		corpus = s.corpus
	}
	if !auth.CanRead(r.Context(), corpus) {
		respondError(w, http.StatusForbidden, "access denied")
		return
	}

	run, err := s.runs.Latest(r.Context(), corpus)
	if errors.Is(err, storage.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "no runs for corpus")
		return
	}
	if err != nil {
		s.logger.Error("latest run", "corpus", corpus, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch run")
		return
	}

	respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetConflicts(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, ConflictsResponse{
		RunID:     run.ID.String(),
		Total:     len(run.Report.DocumentConflicts),
		Conflicts: run.Report.DocumentConflicts,
	})
}

func (s *Server) handleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	minConfidence := 0.0
	if v := r.URL.Query().Get("min_confidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			respondError(w, http.StatusBadRequest, "min_confidence must be a number between 0 and 1")
			return
		}
		minConfidence = f
	}

	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, RecommendationsResponse{
		RunID:           run.ID.String(),
		MinConfidence:   minConfidence,
		Recommendations: run.Report.Recommendations(minConfidence),
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}

	documentID := chi.URLParam(r, "documentID")
	view, found := run.Report.Document(documentID)
	if !found {
		respondError(w, http.StatusNotFound, "document not found in run")
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// loadRun resolves {runID} and writes the error response itself when it
// cannot.
func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (*storage.Run, bool) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		respondError(w, http.StatusBadRequest, "run id is required")
		return nil, false
	}

	id, err := uuid.Parse(runID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid run id")
		return nil, false
	}

	run, err := s.runs.GetByID(r.Context(), id)
	if errors.Is(err, storage.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("fetch run", "run_id", runID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch run")
		return nil, false
	}

	if !auth.CanRead(r.Context(), run.Corpus) {
		respondError(w, http.StatusForbidden, "access denied")
		return nil, false
	}

	return run, true
}
