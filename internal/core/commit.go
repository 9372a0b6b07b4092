package core

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/google/uuid"

	"github.com/JonMunkholm/geoimport/internal/logging"
	"github.com/JonMunkholm/geoimport/internal/store"
)

// CommitCount is the number of entities written for one label.
type CommitCount struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// CommitResult reports what a commit wrote.
type CommitResult struct {
	RunID  uuid.UUID              `json:"runId"`
	Counts map[string]CommitCount `json:"counts"`
}

// Commit writes a staged import inside one store transaction, parents
// before children. New records get their foreign key from the parent stored
// earlier in the same transaction, or already present in the store.
// Omitted fields are stripped. Any failure rolls back the whole run.
func Commit(ctx context.Context, st store.Store, reg *Registry, summary *ImportSummary) (*CommitResult, error) {
	result := &CommitResult{RunID: summary.RunID, Counts: make(map[string]CommitCount)}
	log := logging.WithFields(ctx, "run_id", summary.RunID.String())

	err := st.Atomic(ctx, func(tx store.Store) error {
		for _, d := range reg.Ordered() {
			b := summary.Batches[d.Label]
			if b == nil || (len(b.New) == 0 && len(b.Updated) == 0) {
				continue
			}

			if d.Parent != nil {
				if err := resolveParents(ctx, tx, reg, d, b.New, summary.Scope); err != nil {
					return err
				}
			}

			if len(b.New) > 0 {
				records := make([]store.Record, len(b.New))
				for i, rec := range b.New {
					records[i] = persistable(d, rec.Fields)
				}
				if _, err := tx.CreateMany(ctx, d.Label, records); err != nil {
					return fmt.Errorf("commit %s: create: %w", d.ID, err)
				}
			}

			if len(b.Updated) > 0 {
				updates := make([]store.Update, len(b.Updated))
				for i, m := range b.Updated {
					fields := persistable(d, m.Record.Fields)
					// Matching went through the parent relationship, so the link is unchanged.
					delete(fields, d.foreignKey())
					updates[i] = store.Update{ID: m.Entity.ID, Fields: fields}
				}
				if err := tx.UpdateMany(ctx, d.Label, updates); err != nil {
					return fmt.Errorf("commit %s: update: %w", d.ID, err)
				}
			}

			result.Counts[d.Label] = CommitCount{Created: len(b.New), Updated: len(b.Updated)}
			log.Info("batch committed",
				slog.String("descriptor", d.ID),
				slog.Int("created", len(b.New)),
				slog.Int("updated", len(b.Updated)),
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resolveParents fills the foreign key of every record still missing one by
// looking its parent up in the store, LookupChunkSize records per query.
func resolveParents(ctx context.Context, st store.Store, reg *Registry, d *MappingDescriptor, records []TypedRecord, scope string) error {
	fk := d.Parent.ForeignKey
	parent, _ := reg.Get(d.Parent.ID)

	var pending []int
	var wanted [][]keyPart
	for i, rec := range records {
		if rec.Fields[fk] != nil {
			continue
		}
		parts, err := reg.keyParts(d.ID, rec.Fields, scope)
		if err != nil {
			return err
		}
		pending = append(pending, i)
		wanted = append(wanted, shift(parts, 1))
	}
	if len(pending) == 0 {
		return nil
	}

	found, err := findByKeys(ctx, st, parent.Label, reg.RelationPath(parent.ID), wanted)
	if err != nil {
		return fmt.Errorf("commit %s: find parents: %w", d.ID, err)
	}
	index := indexEntities(found, wanted[0])

	for n, i := range pending {
		candidates := index[identity(wanted[n])]
		if len(candidates) == 0 {
			return &OrphanRecordError{Descriptor: d.ID, Row: records[i].Row}
		}
		records[i].Fields[fk] = candidates[0].ID
	}
	return nil
}

// persistable copies fields without omitted ones.
func persistable(d *MappingDescriptor, fields store.Record) store.Record {
	out := maps.Clone(fields)
	for _, f := range d.Omitted {
		delete(out, f)
	}
	delete(out, "id")
	return out
}
