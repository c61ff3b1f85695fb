package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteJSON writes v as indented JSON. The data goes to a temporary file in
// the target directory first and is renamed into place, so readers never see
// a partial artifact.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// ReadMatchArtifact loads a match artifact written by WriteJSON
func ReadMatchArtifact(path string) (*MatchArtifact, error) {
	var a MatchArtifact
	if err := readJSON(path, &a); err != nil {
		return nil, err
	}

	if a.Matches == nil {
		return nil, fmt.Errorf("%w: %s: missing matches", ErrMalformedArtifact, path)
	}
	if a.TotalMatches != len(a.Matches) {
		return nil, fmt.Errorf("%w: %s: total_matches %d but %d matches", ErrMalformedArtifact, path, a.TotalMatches, len(a.Matches))
	}
	for i, m := range a.Matches {
		if m.SentenceIDA == "" || m.SentenceIDB == "" || m.DocumentA == "" || m.DocumentB == "" {
			return nil, fmt.Errorf("%w: %s: match %d is missing an id", ErrMalformedArtifact, path, i)
		}
	}

	return &a, nil
}

// ReadConflictReport loads a conflict report written by WriteJSON
func ReadConflictReport(path string) (*ConflictReport, error) {
	var r ConflictReport
	if err := readJSON(path, &r); err != nil {
		return nil, err
	}

	if r.DocumentConflicts == nil || r.RemovalRecommendations == nil {
		return nil, fmt.Errorf("%w: %s: missing conflicts or recommendations", ErrMalformedArtifact, path)
	}

	return &r, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedArtifact, path, err)
	}
	return nil
}
