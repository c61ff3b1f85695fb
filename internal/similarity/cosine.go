package similarity

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/todmy/doc-conflicts/internal/embeddings"
)

// ErrDegenerateVector is returned when an embedding has zero norm and
// cosine similarity against it is undefined.
var ErrDegenerateVector = errors.New("degenerate vector")

// scoreEpsilon absorbs rounding of unit-vector dot products near 1.0
const scoreEpsilon = 1e-9

// CosineSimilarity calculates the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical direction,
// 0 means orthogonal, and -1 means opposite direction.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	magA := floats.Norm(a, 2)
	magB := floats.Norm(b, 2)

	// Avoid division by zero
	if magA == 0 || magB == 0 {
		return 0
	}

	return clampScore(floats.Dot(a, b) / (magA * magB))
}

// normalizeRows copies the store matrix and scales every row to unit L2 norm.
// The store must hold at least one row.
func normalizeRows(store *embeddings.Store) (*mat.Dense, error) {
	n, d := store.Rows(), store.Dim()

	data := make([]float64, n*d)
	copy(data, store.Data())

	for i := 0; i < n; i++ {
		row := data[i*d : (i+1)*d]
		norm := floats.Norm(row, 2)
		if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
			return nil, fmt.Errorf("%w: sentence %s (document %s)",
				ErrDegenerateVector, store.Record(i).SentenceID, store.Record(i).Document)
		}
		floats.Scale(1/norm, row)
	}

	return mat.NewDense(n, d, data), nil
}

// clampScore keeps dot products of unit vectors inside [-1, 1] and snaps
// values within scoreEpsilon of 1 to exactly 1.
func clampScore(s float64) float64 {
	if s > 1-scoreEpsilon {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
