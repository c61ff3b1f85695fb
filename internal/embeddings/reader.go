package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/todmy/doc-conflicts/pkg/models"
)

// artifactRecord mirrors one entry of the embedding artifact. Pointers let
// the reader tell a missing field from a zero value.
type artifactRecord struct {
	Document      *string   `json:"document"`
	SentenceIndex *int      `json:"sentence_index"`
	SentenceID    *string   `json:"sentence_id"`
	SentenceText  *string   `json:"sentence_text"`
	Embedding     []float64 `json:"embedding"`
}

// artifact is the file layout written by the embedding generator
type artifact struct {
	Model      string           `json:"model,omitempty"`
	Embeddings []artifactRecord `json:"embeddings"`
}

// Source provides embedding records from a backing store other than a file
type Source interface {
	ListRecords(ctx context.Context, corpus string) ([]models.EmbeddingRecord, error)
}

// LoadFile reads an embedding artifact from disk.
// The file is either {"embeddings": [...]} or a bare JSON array of records.
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
		}
		return nil, fmt.Errorf("read embeddings %s: %w", path, err)
	}

	records, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("load embeddings %s: %w", path, err)
	}

	store, err := NewStore(records)
	if err != nil {
		return nil, fmt.Errorf("load embeddings %s: %w", path, err)
	}
	return store, nil
}

// Decode parses artifact bytes into records without building a store
func Decode(data []byte) ([]models.EmbeddingRecord, error) {
	var raw []artifactRecord

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
		}
	} else {
		var a artifact
		if err := json.Unmarshal(trimmed, &a); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedArtifact, err)
		}
		if a.Embeddings == nil {
			return nil, fmt.Errorf("%w: missing embeddings list", ErrMalformedArtifact)
		}
		raw = a.Embeddings
	}

	records := make([]models.EmbeddingRecord, len(raw))
	for i, r := range raw {
		missing := ""
		switch {
		case r.SentenceID == nil:
			missing = "sentence_id"
		case r.Document == nil:
			missing = "document"
		case r.SentenceIndex == nil:
			missing = "sentence_index"
		case r.SentenceText == nil:
			missing = "sentence_text"
		case r.Embedding == nil:
			missing = "embedding"
		}
		if missing != "" {
			return nil, fmt.Errorf("%w: record %d: missing %s", ErrMalformedArtifact, i, missing)
		}

		records[i] = models.EmbeddingRecord{
			SentenceID: *r.SentenceID,
			Text:       *r.SentenceText,
			Document:   *r.Document,
			Position:   *r.SentenceIndex,
			Vector:     r.Embedding,
		}
	}

	return records, nil
}

// Encode writes records in the artifact layout accepted by LoadFile
func Encode(records []models.EmbeddingRecord) ([]byte, error) {
	a := artifact{Embeddings: make([]artifactRecord, len(records))}
	for i := range records {
		rec := &records[i]
		a.Embeddings[i] = artifactRecord{
			Document:      &rec.Document,
			SentenceIndex: &rec.Position,
			SentenceID:    &rec.SentenceID,
			SentenceText:  &rec.Text,
			Embedding:     rec.Vector,
		}
	}
	return json.MarshalIndent(a, "", "  ")
}

// LoadRepository builds a store from the records of one corpus in src
func LoadRepository(ctx context.Context, src Source, corpus string) (*Store, error) {
	records, err := src.ListRecords(ctx, corpus)
	if err != nil {
		return nil, fmt.Errorf("list sentences for corpus %s: %w", corpus, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: corpus %s has no sentences", ErrArtifactNotFound, corpus)
	}

	store, err := NewStore(records)
	if err != nil {
		return nil, fmt.Errorf("load corpus %s: %w", corpus, err)
	}
	return store, nil
}
