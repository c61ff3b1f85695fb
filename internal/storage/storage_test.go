package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/todmy/doc-conflicts/internal/config"
	"github.com/todmy/doc-conflicts/internal/report"
	"github.com/todmy/doc-conflicts/pkg/models"
)

var sentenceColumns = []string{"id", "corpus", "document", "position", "sentence_id", "text", "embedding", "created_at"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestSentencesFromRecords(t *testing.T) {
	records := []models.EmbeddingRecord{
		{SentenceID: "a_0", Text: "Remote work needs approval.", Document: "a.md", Position: 0, Vector: []float64{0.5, -0.25}},
	}

	sentences := SentencesFromRecords("hr", records)
	if len(sentences) != 1 {
		t.Fatalf("expected 1 sentence, got %d", len(sentences))
	}

	s := sentences[0]
	if s.Corpus != "hr" || s.Document != "a.md" || s.SentenceID != "a_0" {
		t.Errorf("unexpected sentence %+v", s)
	}

	back := s.Record()
	if back.Vector[0] != 0.5 || back.Vector[1] != -0.25 {
		t.Errorf("expected vector to survive the float32 round trip, got %v", back.Vector)
	}
	if back.Text != records[0].Text || back.Position != 0 {
		t.Errorf("unexpected record %+v", back)
	}
}

func TestPostgresSentenceRepository_CreateBatch(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresSentenceRepository(db)

	sentences := SentencesFromRecords("hr", []models.EmbeddingRecord{
		{SentenceID: "a_0", Text: "one", Document: "a.md", Position: 0, Vector: []float64{1, 0}},
		{SentenceID: "a_1", Text: "two", Document: "a.md", Position: 1, Vector: []float64{0, 1}},
	})

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO sentences")
	for _, s := range sentences {
		prep.ExpectExec().
			WithArgs(sqlmock.AnyArg(), "hr", "a.md", s.Position, s.SentenceID, s.Text, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	if err := repo.CreateBatch(context.Background(), sentences); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	for _, s := range sentences {
		if s.ID == uuid.Nil {
			t.Error("expected sentence ID to be generated")
		}
		if s.CreatedAt.IsZero() {
			t.Error("expected created_at to be set")
		}
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresSentenceRepository_CreateBatch_RollsBack(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresSentenceRepository(db)

	sentences := SentencesFromRecords("hr", []models.EmbeddingRecord{
		{SentenceID: "a_0", Text: "one", Document: "a.md", Vector: []float64{1}},
	})

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO sentences").
		ExpectExec().
		WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	if err := repo.CreateBatch(context.Background(), sentences); err == nil {
		t.Fatal("expected an error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresSentenceRepository_ReplaceCorpus(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresSentenceRepository(db)

	sentences := SentencesFromRecords("hr", []models.EmbeddingRecord{
		{SentenceID: "a_0", Text: "one", Document: "a.md", Position: 0, Vector: []float64{1, 0}},
		{SentenceID: "a_1", Text: "two", Document: "a.md", Position: 1, Vector: []float64{0, 1}},
	})

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM sentences WHERE corpus").
		WithArgs("hr").
		WillReturnResult(sqlmock.NewResult(0, 5))
	prep := mock.ExpectPrepare("INSERT INTO sentences")
	for _, s := range sentences {
		prep.ExpectExec().
			WithArgs(sqlmock.AnyArg(), "hr", "a.md", s.Position, s.SentenceID, s.Text, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	removed, err := repo.ReplaceCorpus(context.Background(), "hr", sentences)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if removed != 5 {
		t.Errorf("expected 5 removed, got %d", removed)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresSentenceRepository_ReplaceCorpus_RollsBackDelete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresSentenceRepository(db)

	sentences := SentencesFromRecords("hr", []models.EmbeddingRecord{
		{SentenceID: "a_0", Text: "one", Document: "a.md", Vector: []float64{1}},
	})

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM sentences WHERE corpus").
		WithArgs("hr").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectPrepare("INSERT INTO sentences").
		ExpectExec().
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	if _, err := repo.ReplaceCorpus(context.Background(), "hr", sentences); err == nil {
		t.Fatal("expected an error")
	}

	// the delete is only undone if the transaction rolls back instead of committing
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresSentenceRepository_CreateBatch_Empty(t *testing.T) {
	db, mock := newMock(t)

	if err := NewPostgresSentenceRepository(db).CreateBatch(context.Background(), nil); err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresSentenceRepository_ListRecords(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresSentenceRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(sentenceColumns).
		AddRow(uuid.New().String(), "hr", "a.md", 0, "a_0", "first", "[1,0,0.5]", now).
		AddRow(uuid.New().String(), "hr", "b.md", 3, "b_3", "second", "[0,1,0]", now)

	mock.ExpectQuery("SELECT (.+) FROM sentences WHERE corpus").
		WithArgs("hr").
		WillReturnRows(rows)

	records, err := repo.ListRecords(context.Background(), "hr")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].SentenceID != "a_0" || records[0].Vector[2] != 0.5 {
		t.Errorf("unexpected first record %+v", records[0])
	}
	if records[1].Document != "b.md" || records[1].Position != 3 {
		t.Errorf("unexpected second record %+v", records[1])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresSentenceRepository_CountAndDelete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresSentenceRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM sentences`).
		WithArgs("hr").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))
	mock.ExpectExec("DELETE FROM sentences").
		WithArgs("hr").
		WillReturnResult(sqlmock.NewResult(0, 42))

	count, err := repo.CountByCorpus(context.Background(), "hr")
	if err != nil || count != 42 {
		t.Errorf("expected 42, got %d (%v)", count, err)
	}

	deleted, err := repo.DeleteByCorpus(context.Background(), "hr")
	if err != nil || deleted != 42 {
		t.Errorf("expected 42 deleted, got %d (%v)", deleted, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func sampleReport(t *testing.T) (*report.ConflictReport, []byte) {
	t.Helper()

	conflicts := []models.DocumentPairConflict{{
		DocA: "a.md", DocB: "b.md", MatchCount: 3, MeanScore: 0.9, MaxScore: 0.95,
		Relationship: models.RelationshipRelatedPolicy,
		Matches:      []models.SimilarityMatch{},
	}}
	r := report.NewConflictReport(conflicts, nil, nil, config.DefaultThresholds(), 0, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal report: %v", err)
	}
	return r, data
}

func TestPostgresSentenceRepository_FindSimilar(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresSentenceRepository(db)

	mock.ExpectQuery("SELECT embedding FROM sentences").
		WithArgs("hr", "a.md_0").
		WillReturnRows(sqlmock.NewRows([]string{"embedding"}).AddRow("[1,0]"))

	now := time.Now()
	rows := sqlmock.NewRows(append(sentenceColumns, "similarity")).
		AddRow(uuid.New(), "hr", "b.md", 0, "b.md_0", "close", "[0.9,0.1]", now, 0.99).
		AddRow(uuid.New(), "hr", "c.md", 2, "c.md_2", "further", "[0.5,0.5]", now, 0.71)
	mock.ExpectQuery("SELECT (.+) FROM sentences WHERE corpus = \\$2").
		WithArgs(sqlmock.AnyArg(), "hr", "a.md_0", 5).
		WillReturnRows(rows)

	results, err := repo.FindSimilar(context.Background(), "hr", "a.md_0", 5)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Sentence.SentenceID != "b.md_0" || results[0].Similarity != 0.99 {
		t.Errorf("unexpected first result %+v", results[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresSentenceRepository_FindSimilar_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresSentenceRepository(db)

	mock.ExpectQuery("SELECT embedding FROM sentences").
		WithArgs("hr", "missing_0").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindSimilar(context.Background(), "hr", "missing_0", 0)
	if !errors.Is(err, ErrSentenceNotFound) {
		t.Errorf("expected ErrSentenceNotFound, got %v", err)
	}
}

func TestPostgresRunRepository_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRunRepository(db)

	r, _ := sampleReport(t)
	run := &Run{Corpus: "hr", Digest: "abc123", Report: r}

	mock.ExpectExec("INSERT INTO conflict_runs").
		WithArgs(sqlmock.AnyArg(), "hr", "abc123", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), run); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if run.ID == uuid.Nil {
		t.Error("expected run ID to be generated")
	}
	if run.Summary.TotalDocumentPairsWithConflicts != 1 {
		t.Errorf("expected summary to be copied from the report, got %+v", run.Summary)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresRunRepository_Create_NoReport(t *testing.T) {
	db, _ := newMock(t)

	if err := NewPostgresRunRepository(db).Create(context.Background(), &Run{Corpus: "hr"}); err == nil {
		t.Error("expected an error for a run without report")
	}
}

func TestPostgresRunRepository_GetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRunRepository(db)

	id := uuid.New()
	_, data := sampleReport(t)
	createdAt := time.Now()

	rows := sqlmock.NewRows([]string{"id", "corpus", "digest", "created_at", "report"}).
		AddRow(id.String(), "hr", "abc123", createdAt, data)

	mock.ExpectQuery("SELECT (.+) FROM conflict_runs WHERE id").
		WithArgs(id).
		WillReturnRows(rows)

	run, err := repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if run.ID != id {
		t.Errorf("expected ID %s, got %s", id, run.ID)
	}
	if run.Report == nil || len(run.Report.DocumentConflicts) != 1 {
		t.Fatalf("expected the report to be decoded, got %+v", run.Report)
	}
	if run.Report.DocumentConflicts[0].Relationship != models.RelationshipRelatedPolicy {
		t.Errorf("unexpected relationship %s", run.Report.DocumentConflicts[0].Relationship)
	}
	if run.Summary.TotalDocumentPairsWithConflicts != 1 {
		t.Errorf("unexpected summary %+v", run.Summary)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresRunRepository_GetByID_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRunRepository(db)

	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM conflict_runs WHERE id").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	run, err := repo.GetByID(context.Background(), id)
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if run != nil {
		t.Error("expected nil run")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresRunRepository_Latest(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRunRepository(db)

	id := uuid.New()
	_, data := sampleReport(t)

	mock.ExpectQuery("SELECT (.+) FROM conflict_runs WHERE corpus (.+) ORDER BY created_at DESC LIMIT 1").
		WithArgs("hr").
		WillReturnRows(sqlmock.NewRows([]string{"id", "corpus", "digest", "created_at", "report"}).
			AddRow(id.String(), "hr", "abc123", time.Now(), data))

	run, err := repo.Latest(context.Background(), "hr")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if run.ID != id {
		t.Errorf("expected ID %s, got %s", id, run.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresRunRepository_List(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRunRepository(db)

	summary := []byte(`{"total_document_pairs_with_conflicts":4,"total_removal_recommendations":2,"high_confidence_recommendations":1}`)
	rows := sqlmock.NewRows([]string{"id", "corpus", "digest", "created_at", "summary"}).
		AddRow(uuid.New().String(), "hr", "d1", time.Now(), summary).
		AddRow(uuid.New().String(), "hr", "d2", time.Now().Add(-time.Hour), summary)

	mock.ExpectQuery("SELECT (.+) FROM conflict_runs").
		WithArgs("hr", defaultListLimit).
		WillReturnRows(rows)

	runs, err := repo.List(context.Background(), "hr", 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Summary.TotalDocumentPairsWithConflicts != 4 || runs[0].Report != nil {
		t.Errorf("unexpected run %+v", runs[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
