package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/geoimport/internal/ags"
	"github.com/JonMunkholm/geoimport/internal/logging"
	"github.com/JonMunkholm/geoimport/internal/store"
)

// Status is the outcome of one descriptor pipeline.
type Status string

const (
	StatusSucceeded           Status = "succeeded"
	StatusSucceededWithErrors Status = "succeeded_with_errors"
	StatusFailed              Status = "failed"
	StatusSkipped             Status = "skipped"
)

// SummaryEntry reports one descriptor's pipeline.
type SummaryEntry struct {
	Descriptor   string             `json:"descriptor"`
	Label        string             `json:"label"`
	Group        string             `json:"group"`
	Status       Status             `json:"status"`
	NewCount     int                `json:"newCount"`
	UpdatedCount int                `json:"updatedCount"`
	Errors       []RecordError      `json:"errors,omitempty"`
	Warnings     []IntegrityWarning `json:"warnings,omitempty"`
	Reason       string             `json:"reason,omitempty"`
}

// Batch holds the records a later commit will write for one entity label.
type Batch struct {
	Descriptor string        `json:"descriptor"`
	Label      string        `json:"label"`
	New        []TypedRecord `json:"new"`
	Updated    []Match       `json:"updated"`
}

// ImportSummary is the staged outcome of one import run.
type ImportSummary struct {
	RunID     uuid.UUID         `json:"runId"`
	Scope     string            `json:"scope"`
	CreatedAt time.Time         `json:"createdAt"`
	Entries   []SummaryEntry    `json:"entries"`
	Batches   map[string]*Batch `json:"batches"` // keyed by entity label
}

// Entry returns the entry for descriptor id.
func (s *ImportSummary) Entry(id string) (SummaryEntry, bool) {
	for _, e := range s.Entries {
		if e.Descriptor == id {
			return e, true
		}
	}
	return SummaryEntry{}, false
}

// Totals sums the new and updated counts across entries.
func (s *ImportSummary) Totals() (created, updated int) {
	for _, e := range s.Entries {
		created += e.NewCount
		updated += e.UpdatedCount
	}
	return created, updated
}

// Deps are the collaborators Summarize reads from.
type Deps struct {
	Store    store.Store
	Registry *Registry

	// Concurrency bounds the number of pipelines running at once.
	// Zero means one goroutine per descriptor.
	Concurrency int
}

type pipeline struct {
	desc   *MappingDescriptor
	done   chan struct{}
	entry  SummaryEntry
	result *ReconciliationResult
}

// Summarize runs project, validate and reconcile for every descriptor,
// parents before children, and returns the counts plus the batches to commit.
// Sibling pipelines run concurrently. A failed pipeline does not affect
// others, but its descendants are reported as skipped. The store is only read.
func Summarize(ctx context.Context, deps Deps, doc *ags.Document, scope string) (*ImportSummary, error) {
	if doc == nil {
		return nil, errors.New("summarize: nil document")
	}
	if scope == "" {
		return nil, errors.New("summarize: scope is required")
	}

	reg := deps.Registry
	ordered := reg.Ordered()
	summary := &ImportSummary{
		RunID:     uuid.New(),
		Scope:     scope,
		CreatedAt: time.Now().UTC(),
		Batches:   make(map[string]*Batch, len(ordered)),
	}

	pipes := make(map[string]*pipeline, len(ordered))
	for _, d := range ordered {
		pipes[d.ID] = &pipeline{
			desc:  d,
			done:  make(chan struct{}),
			entry: SummaryEntry{Descriptor: d.ID, Label: d.Label, Group: d.Group},
		}
	}

	limit := deps.Concurrency
	if limit <= 0 {
		limit = len(ordered)
	}

	// Pipelines never return an error: one failure must not cancel siblings.
	var g errgroup.Group
	g.SetLimit(max(limit, 1))
	for _, d := range ordered {
		p := pipes[d.ID]
		var parent *pipeline
		if d.Parent != nil {
			parent = pipes[d.Parent.ID]
		}
		g.Go(func() error {
			defer close(p.done)
			p.run(ctx, deps, doc, scope, parent, summary.RunID)
			return nil
		})
	}
	_ = g.Wait()

	for _, d := range ordered {
		p := pipes[d.ID]
		summary.Entries = append(summary.Entries, p.entry)
		if p.result != nil {
			summary.Batches[d.Label] = &Batch{
				Descriptor: d.ID,
				Label:      d.Label,
				New:        p.result.New,
				Updated:    p.result.Updated,
			}
		}
	}

	created, updated := summary.Totals()
	logging.WithFields(ctx, "run_id", summary.RunID.String()).Info("import summarized",
		slog.String("scope", scope),
		slog.Int("descriptors", len(ordered)),
		slog.Int("new", created),
		slog.Int("updated", updated),
	)

	return summary, nil
}

func (p *pipeline) run(ctx context.Context, deps Deps, doc *ags.Document, scope string, parent *pipeline, runID uuid.UUID) {
	d := p.desc
	log := logging.WithFields(ctx, "run_id", runID.String(), "descriptor", d.ID)

	if parent != nil {
		select {
		case <-parent.done:
		case <-ctx.Done():
			p.fail(log, ctx.Err())
			return
		}
		switch parent.entry.Status {
		case StatusFailed:
			p.skip(log, fmt.Sprintf("ancestor %s failed", parent.desc.ID))
			return
		case StatusSkipped:
			p.skip(log, parent.entry.Reason)
			return
		}
	}

	outcome := Validate(Project(doc, d), d)
	fillInherited(deps.Registry, d, outcome.Typed, scope, parent)

	result, err := Reconcile(ctx, deps.Store, deps.Registry, d.ID, outcome.Typed, scope)
	if err != nil {
		p.entry.Errors = outcome.Errors
		p.fail(log, err)
		return
	}

	p.result = result
	p.entry.NewCount = len(result.New)
	p.entry.UpdatedCount = len(result.Updated)
	p.entry.Errors = outcome.Errors
	p.entry.Warnings = result.Warnings
	p.entry.Status = StatusSucceeded
	if len(outcome.Errors) > 0 {
		p.entry.Status = StatusSucceededWithErrors
	}

	log.Info("pipeline completed",
		slog.String("status", string(p.entry.Status)),
		slog.Int("new", p.entry.NewCount),
		slog.Int("updated", p.entry.UpdatedCount),
		slog.Int("invalid", len(outcome.Errors)),
	)
}

func (p *pipeline) fail(log *slog.Logger, err error) {
	p.entry.Status = StatusFailed
	p.entry.Reason = err.Error()
	log.Error("pipeline failed", slog.String("error", err.Error()))
}

func (p *pipeline) skip(log *slog.Logger, reason string) {
	p.entry.Status = StatusSkipped
	p.entry.Reason = reason
	log.Warn("pipeline skipped", slog.String("reason", reason))
}

// fillInherited sets the scope field and, for records whose parent was
// matched to a stored entity, the foreign key. Parents that are new have no
// ID yet; Commit resolves those.
func fillInherited(reg *Registry, d *MappingDescriptor, records []TypedRecord, scope string, parent *pipeline) {
	if d.IsInherited(reg.ScopeField()) {
		for _, rec := range records {
			rec.Fields[reg.ScopeField()] = scope
		}
	}
	if parent == nil || parent.result == nil || len(parent.result.Updated) == 0 {
		return
	}

	ids := make(map[string]string, len(parent.result.Updated))
	for _, m := range parent.result.Updated {
		parts, err := reg.keyParts(parent.desc.ID, m.Record.Fields, scope)
		if err != nil {
			return
		}
		ids[identity(parts)] = m.Entity.ID
	}

	for _, rec := range records {
		parts, err := reg.keyParts(d.ID, rec.Fields, scope)
		if err != nil {
			return
		}
		if id, ok := ids[identity(shift(parts, 1))]; ok {
			rec.Fields[d.Parent.ForeignKey] = id
		}
	}
}

// Retype restores values that lose their Go type in a JSON round trip:
// dates come back as strings and are parsed again by the descriptor's kinds.
func (r *Registry) Retype(summary *ImportSummary) error {
	for label, b := range summary.Batches {
		d, ok := r.Get(b.Descriptor)
		if !ok {
			return fmt.Errorf("batch %s: %w: %s", label, ErrUnknownDescriptor, b.Descriptor)
		}
		for _, rec := range b.New {
			if err := retype(d, rec.Fields); err != nil {
				return fmt.Errorf("batch %s row %d: %w", label, rec.Row, err)
			}
		}
		for _, m := range b.Updated {
			if err := retype(d, m.Record.Fields); err != nil {
				return fmt.Errorf("batch %s row %d: %w", label, m.Record.Row, err)
			}
		}
	}
	return nil
}

func retype(d *MappingDescriptor, fields store.Record) error {
	for _, f := range d.Fields {
		s, ok := fields[f.Field].(string)
		if !ok || f.Kind != KindDate {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Field, err)
		}
		fields[f.Field] = t
	}
	return nil
}
