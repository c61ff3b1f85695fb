package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todmy/doc-conflicts/internal/auth"
	"github.com/todmy/doc-conflicts/internal/config"
	"github.com/todmy/doc-conflicts/internal/report"
	"github.com/todmy/doc-conflicts/internal/storage"
	"github.com/todmy/doc-conflicts/pkg/models"
)

const testSecret = "test-secret"

type memoryRuns struct {
	runs []*storage.Run
	err  error
}

func (m *memoryRuns) Create(ctx context.Context, run *storage.Run) error {
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryRuns) GetByID(ctx context.Context, id uuid.UUID) (*storage.Run, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, r := range m.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, storage.ErrRunNotFound
}

func (m *memoryRuns) List(ctx context.Context, corpus string, limit int) ([]*storage.Run, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*storage.Run
	for i := len(m.runs) - 1; i >= 0; i-- {
		if corpus == "" || m.runs[i].Corpus == corpus {
			out = append(out, &storage.Run{
				ID: m.runs[i].ID, Corpus: m.runs[i].Corpus, Digest: m.runs[i].Digest,
				CreatedAt: m.runs[i].CreatedAt, Summary: m.runs[i].Summary,
			})
		}
	}
	return out, nil
}

func (m *memoryRuns) Latest(ctx context.Context, corpus string) (*storage.Run, error) {
	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].Corpus == corpus {
			return m.runs[i], nil
		}
	}
	return nil, storage.ErrRunNotFound
}

func testRun(corpus string) *storage.Run {
	conflicts := []models.DocumentPairConflict{{
		DocA: "leave_policy_v10.md", DocB: "leave_policy_v20.md",
		MatchCount: 3, MeanScore: 0.93, MaxScore: 0.99,
		Relationship: models.RelationshipVersionConflict,
		Matches:      []models.SimilarityMatch{},
	}}
	recs := []models.Recommendation{
		{
			SubjectDocuments: []string{"leave_policy_v10.md"},
			Kind:             models.KindRemoveOutdated,
			ConflictsWith:    []string{"leave_policy_v20.md"},
			Confidence:       0.9,
		},
		{
			SubjectDocuments: []string{"expense.md", "travel.md"},
			Kind:             models.KindReviewConflicts,
			ConflictsWith:    []string{},
			Confidence:       0.5,
		},
	}
	meta := map[string]models.DocumentMetadata{
		"leave_policy_v10.md": {DocumentID: "leave_policy_v10.md", BaseName: "leave_policy", Department: models.DepartmentHR},
		"leave_policy_v20.md": {DocumentID: "leave_policy_v20.md", BaseName: "leave_policy", Department: models.DepartmentHR},
	}

	r := report.NewConflictReport(conflicts, recs, meta, config.DefaultThresholds(), 0, time.Now())
	return &storage.Run{
		ID:        uuid.New(),
		Corpus:    corpus,
		Digest:    "digest-" + corpus,
		CreatedAt: time.Now(),
		Summary:   r.Summary,
		Report:    r,
	}
}

func get(t *testing.T, h http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	s := NewServer(ServerConfig{Runs: &memoryRuns{}, JWTSecret: testSecret})

	rec := get(t, s.Handler(), "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRunEndpoints(t *testing.T) {
	hr := testRun("hr")
	repo := &memoryRuns{runs: []*storage.Run{testRun("finance"), hr}}
	h := NewServer(ServerConfig{Runs: repo, Corpus: "hr"}).Handler()

	t.Run("list", func(t *testing.T) {
		rec := get(t, h, "/api/v1/runs", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body RunListResponse
		decode(t, rec, &body)
		assert.Len(t, body.Runs, 2)
	})

	t.Run("list by corpus", func(t *testing.T) {
		rec := get(t, h, "/api/v1/runs?corpus=hr", "")
		var body RunListResponse
		decode(t, rec, &body)
		require.Len(t, body.Runs, 1)
		assert.Equal(t, hr.ID, body.Runs[0].ID)
	})

	t.Run("latest uses default corpus", func(t *testing.T) {
		rec := get(t, h, "/api/v1/runs/latest", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body storage.Run
		decode(t, rec, &body)
		assert.Equal(t, hr.ID, body.ID)
	})

	t.Run("latest unknown corpus", func(t *testing.T) {
		rec := get(t, h, "/api/v1/runs/latest?corpus=legal", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("get", func(t *testing.T) {
		rec := get(t, h, "/api/v1/runs/"+hr.ID.String(), "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body storage.Run
		decode(t, rec, &body)
		require.NotNil(t, body.Report)
		assert.Equal(t, hr.Digest, body.Digest)
		assert.Equal(t, 2, body.Report.Summary.TotalRemovalRecommendations)
	})

	t.Run("conflicts", func(t *testing.T) {
		rec := get(t, h, "/api/v1/runs/"+hr.ID.String()+"/conflicts", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body ConflictsResponse
		decode(t, rec, &body)
		assert.Equal(t, 1, body.Total)
		assert.Equal(t, models.RelationshipVersionConflict, body.Conflicts[0].Relationship)
	})

	t.Run("recommendations filtered", func(t *testing.T) {
		rec := get(t, h, "/api/v1/runs/"+hr.ID.String()+"/recommendations?min_confidence=0.8", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body RecommendationsResponse
		decode(t, rec, &body)
		require.Len(t, body.Recommendations, 1)
		assert.Equal(t, models.KindRemoveOutdated, body.Recommendations[0].Kind)
	})

	t.Run("recommendations bad filter", func(t *testing.T) {
		rec := get(t, h, "/api/v1/runs/"+hr.ID.String()+"/recommendations?min_confidence=high", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("document", func(t *testing.T) {
		rec := get(t, h, "/api/v1/runs/"+hr.ID.String()+"/documents/leave_policy_v10.md", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body report.DocumentView
		decode(t, rec, &body)
		assert.Equal(t, "leave_policy", body.Metadata.BaseName)
		assert.Len(t, body.Conflicts, 1)
		assert.Len(t, body.Recommendations, 1)
	})

	t.Run("unknown document", func(t *testing.T) {
		rec := get(t, h, "/api/v1/runs/"+hr.ID.String()+"/documents/missing.md", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid run id", func(t *testing.T) {
		rec := get(t, h, "/api/v1/runs/not-a-uuid", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown run", func(t *testing.T) {
		rec := get(t, h, "/api/v1/runs/"+uuid.New().String(), "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRunEndpoints_StorageError(t *testing.T) {
	h := NewServer(ServerConfig{Runs: &memoryRuns{err: errors.New("connection refused")}}).Handler()

	assert.Equal(t, http.StatusInternalServerError, get(t, h, "/api/v1/runs", "").Code)
	assert.Equal(t, http.StatusInternalServerError, get(t, h, "/api/v1/runs/"+uuid.New().String(), "").Code)
}

func TestAuth(t *testing.T) {
	hr := testRun("hr")
	finance := testRun("finance")
	repo := &memoryRuns{runs: []*storage.Run{hr, finance}}
	h := NewServer(ServerConfig{Runs: repo, JWTSecret: testSecret, Corpus: "hr"}).Handler()

	cfg := auth.DefaultConfig()
	cfg.SecretKey = testSecret
	svc := auth.NewJWTService(cfg)

	global, err := svc.GenerateToken("admin", "")
	require.NoError(t, err)
	scoped, err := svc.GenerateToken("hr-reviewer", "hr")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, get(t, h, "/health", "").Code, "health stays public")
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/v1/runs", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/v1/runs", "garbage").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/api/v1/runs", global).Code)

	assert.Equal(t, http.StatusOK, get(t, h, "/api/v1/runs/"+finance.ID.String(), global).Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/api/v1/runs/"+hr.ID.String(), scoped).Code)
	assert.Equal(t, http.StatusForbidden, get(t, h, "/api/v1/runs/"+finance.ID.String(), scoped).Code)
	assert.Equal(t, http.StatusForbidden, get(t, h, "/api/v1/runs?corpus=finance", scoped).Code)

	rec := get(t, h, "/api/v1/runs", scoped)
	var body RunListResponse
	decode(t, rec, &body)
	require.Len(t, body.Runs, 1)
	assert.Equal(t, "hr", body.Runs[0].Corpus)
}
