// Package staging keeps summarized import runs on disk until they are
// committed.
//
// Each run is one JSON file named after its run ID. The file carries the
// summary, whose batches are keyed by entity label, plus a SHA-256 checksum
// of the summary so a truncated or hand-edited file is rejected on load.
package staging

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/JonMunkholm/geoimport/internal/core"
)

// FormatVersion is bumped when the file layout changes.
const FormatVersion = 1

var _ core.Stager = (*FileStager)(nil)

type stagedRun struct {
	Version  int             `json:"version"`
	Checksum string          `json:"checksum"`
	Summary  json.RawMessage `json:"summary"`
}

// FileStager stores runs as files under Dir.
type FileStager struct {
	Dir      string
	Registry *core.Registry
}

// NewFileStager creates dir if needed.
func NewFileStager(dir string, reg *core.Registry) (*FileStager, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &FileStager{Dir: dir, Registry: reg}, nil
}

func (s *FileStager) path(runID uuid.UUID) string {
	return filepath.Join(s.Dir, runID.String()+".json")
}

// Save writes the run atomically: temp file, fsync, rename.
func (s *FileStager) Save(ctx context.Context, summary *core.ImportSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	sum := sha256.Sum256(body)
	data, err := json.MarshalIndent(stagedRun{
		Version:  FormatVersion,
		Checksum: hex.EncodeToString(sum[:]),
		Summary:  body,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal staged run: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, ".run-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write staged run: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync staged run: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close staged run: %w", err)
	}
	if err := os.Rename(tmpPath, s.path(summary.RunID)); err != nil {
		return fmt.Errorf("rename staged run: %w", err)
	}

	success = true
	return nil
}

// Load reads a run back, verifying its checksum and restoring date values.
func (s *FileStager) Load(ctx context.Context, runID uuid.UUID) (*core.ImportSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(runID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load run %s: %w", runID, core.ErrRunNotFound)
		}
		return nil, fmt.Errorf("read staged run: %w", err)
	}

	var run stagedRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("parse staged run: %w", err)
	}
	if run.Version != FormatVersion {
		return nil, fmt.Errorf("staged run %s: unsupported version %d", runID, run.Version)
	}

	// MarshalIndent re-indents the embedded summary; compact it back before hashing.
	var body bytes.Buffer
	if err := json.Compact(&body, run.Summary); err != nil {
		return nil, fmt.Errorf("parse staged run: %w", err)
	}
	sum := sha256.Sum256(body.Bytes())
	if hex.EncodeToString(sum[:]) != run.Checksum {
		return nil, fmt.Errorf("staged run %s: checksum mismatch", runID)
	}

	var summary core.ImportSummary
	if err := json.Unmarshal(body.Bytes(), &summary); err != nil {
		return nil, fmt.Errorf("parse summary: %w", err)
	}
	if s.Registry != nil {
		if err := s.Registry.Retype(&summary); err != nil {
			return nil, fmt.Errorf("staged run %s: %w", runID, err)
		}
	}
	return &summary, nil
}

// Delete removes a run. Deleting a missing run is not an error.
func (s *FileStager) Delete(ctx context.Context, runID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path(runID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete staged run: %w", err)
	}
	return nil
}
