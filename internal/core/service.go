package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/geoimport/internal/ags"
	"github.com/JonMunkholm/geoimport/internal/logging"
	"github.com/JonMunkholm/geoimport/internal/store"
)

// Stager persists import summaries between summarize and commit.
type Stager interface {
	Save(ctx context.Context, summary *ImportSummary) error
	Load(ctx context.Context, runID uuid.UUID) (*ImportSummary, error)
	Delete(ctx context.Context, runID uuid.UUID) error
}

// ServiceConfig tunes the Service.
type ServiceConfig struct {
	MaxFileSize   int64         // Bytes; 0 means unlimited
	MaxConcurrent int           // Concurrent imports
	MaxWait       time.Duration // Wait for an import slot
	Timeout       time.Duration // Per summarize or commit
	Concurrency   int           // Pipelines per import
}

// Service ties the parser, reconciliation engine, staging and store together.
// It is safe for concurrent use.
type Service struct {
	store    store.Store
	registry *Registry
	stager   Stager
	limiter  *ImportLimiter
	cfg      ServiceConfig

	committing sync.Map // runID -> struct{}
}

// NewService creates a Service.
func NewService(st store.Store, reg *Registry, stager Stager, cfg ServiceConfig) *Service {
	return &Service{
		store:    st,
		registry: reg,
		stager:   stager,
		limiter:  NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		cfg:      cfg,
	}
}

// Registry returns the descriptors the service imports with.
func (s *Service) Registry() *Registry { return s.registry }

// LimiterStatus reports import slot usage.
func (s *Service) LimiterStatus() LimiterStatus { return s.limiter.Status() }

// Drain waits for running imports to finish.
func (s *Service) Drain(ctx context.Context) error { return s.limiter.WaitForDrain(ctx) }

// Inspect parses r without touching the store.
func (s *Service) Inspect(r io.Reader) (*ags.Document, error) {
	data, err := s.readFile(r)
	if err != nil {
		return nil, err
	}
	return ags.Read(bytes.NewReader(data))
}

// Summarize parses r, reconciles it against the store for scope and stages
// the result. A structural parse error aborts before any store access.
func (s *Service) Summarize(ctx context.Context, r io.Reader, scope string) (*ImportSummary, error) {
	if scope == "" {
		return nil, errors.New("summarize: scope is required")
	}

	var summary *ImportSummary
	err := s.limiter.Run(ctx, func(ctx context.Context) error {
		ctx, cancel := s.withTimeout(ctx)
		defer cancel()

		doc, err := s.Inspect(r)
		if err != nil {
			return err
		}

		summary, err = Summarize(ctx, Deps{
			Store:       s.store,
			Registry:    s.registry,
			Concurrency: s.cfg.Concurrency,
		}, doc, scope)
		if err != nil {
			return err
		}

		if err := s.stager.Save(ctx, summary); err != nil {
			return fmt.Errorf("stage run %s: %w", summary.RunID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// Run returns a staged summary.
func (s *Service) Run(ctx context.Context, runID uuid.UUID) (*ImportSummary, error) {
	return s.stager.Load(ctx, runID)
}

// Commit writes a staged run to the store and removes it from staging, so a
// run can be committed once.
func (s *Service) Commit(ctx context.Context, runID uuid.UUID) (*CommitResult, error) {
	if _, busy := s.committing.LoadOrStore(runID, struct{}{}); busy {
		return nil, fmt.Errorf("commit %s: %w", runID, ErrCommitInProgress)
	}
	defer s.committing.Delete(runID)

	var result *CommitResult
	err := s.limiter.Run(ctx, func(ctx context.Context) error {
		ctx, cancel := s.withTimeout(ctx)
		defer cancel()

		summary, err := s.stager.Load(ctx, runID)
		if err != nil {
			return err
		}

		result, err = Commit(ctx, s.store, s.registry, summary)
		if err != nil {
			return err
		}

		if err := s.stager.Delete(ctx, runID); err != nil {
			logging.FromContext(ctx).Warn("committed run left in staging",
				slog.String("run_id", runID.String()),
				slog.String("error", err.Error()),
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.Timeout)
}

func (s *Service) readFile(r io.Reader) ([]byte, error) {
	if s.cfg.MaxFileSize > 0 {
		r = io.LimitReader(r, s.cfg.MaxFileSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if s.cfg.MaxFileSize > 0 && int64(len(data)) > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("file too large: limit is %d bytes", s.cfg.MaxFileSize)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty file")
	}
	return data, nil
}
