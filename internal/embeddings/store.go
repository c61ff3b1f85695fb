package embeddings

import (
	"errors"
	"fmt"

	"github.com/todmy/doc-conflicts/pkg/models"
)

var (
	ErrArtifactNotFound  = errors.New("artifact not found")
	ErrMalformedArtifact = errors.New("malformed artifact")
)

// Store is the in-memory embedding matrix of a corpus. Row i of the matrix
// belongs to Records()[i]. A Store is immutable once built.
type Store struct {
	data    []float64
	dim     int
	records []models.EmbeddingRecord
	index   map[string]int
}

// NewStore validates records and packs their vectors into a row-major matrix.
// Records keep their given order.
func NewStore(records []models.EmbeddingRecord) (*Store, error) {
	s := &Store{
		records: make([]models.EmbeddingRecord, len(records)),
		index:   make(map[string]int, len(records)),
	}
	if len(records) == 0 {
		return s, nil
	}

	s.dim = len(records[0].Vector)
	s.data = make([]float64, 0, len(records)*s.dim)

	for i, rec := range records {
		if err := validateRecord(rec, s.dim); err != nil {
			return nil, fmt.Errorf("%w: record %d (%s): %v", ErrMalformedArtifact, i, rec.SentenceID, err)
		}
		if _, dup := s.index[rec.SentenceID]; dup {
			return nil, fmt.Errorf("%w: record %d: duplicate sentence id %s", ErrMalformedArtifact, i, rec.SentenceID)
		}

		s.index[rec.SentenceID] = i
		s.data = append(s.data, rec.Vector...)

		// the store owns its vectors; records expose views into the matrix
		rec.Vector = s.data[i*s.dim : (i+1)*s.dim : (i+1)*s.dim]
		s.records[i] = rec
	}

	return s, nil
}

func validateRecord(rec models.EmbeddingRecord, dim int) error {
	switch {
	case rec.SentenceID == "":
		return errors.New("missing sentence_id")
	case rec.Document == "":
		return errors.New("missing document")
	case rec.Position < 0:
		return fmt.Errorf("negative sentence_index %d", rec.Position)
	case len(rec.Vector) == 0:
		return errors.New("missing embedding")
	case len(rec.Vector) != dim:
		return fmt.Errorf("embedding has %d dimensions, expected %d", len(rec.Vector), dim)
	}
	return nil
}

// Rows returns the number of sentences in the store
func (s *Store) Rows() int {
	return len(s.records)
}

// Dim returns the embedding dimensionality (0 for an empty store)
func (s *Store) Dim() int {
	return s.dim
}

// Data returns the row-major matrix backing the store. Callers must not modify it.
func (s *Store) Data() []float64 {
	return s.data
}

// Row returns the vector of row i
func (s *Store) Row(i int) []float64 {
	return s.records[i].Vector
}

// Record returns the metadata of row i
func (s *Store) Record(i int) models.EmbeddingRecord {
	return s.records[i]
}

// Records returns all records in row order
func (s *Store) Records() []models.EmbeddingRecord {
	return s.records
}

// Index returns the row of a sentence id
func (s *Store) Index(sentenceID string) (int, bool) {
	i, ok := s.index[sentenceID]
	return i, ok
}

// Documents returns the number of distinct documents in the store
func (s *Store) Documents() int {
	seen := make(map[string]struct{})
	for _, rec := range s.records {
		seen[rec.Document] = struct{}{}
	}
	return len(seen)
}
