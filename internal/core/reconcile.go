package core

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/JonMunkholm/geoimport/internal/logging"
	"github.com/JonMunkholm/geoimport/internal/store"
)

// LookupChunkSize caps the number of record keys OR'd into one FindMany.
// SQLite rejects expression trees deeper than 1000 and Postgres statements
// with more than 65535 parameters.
const LookupChunkSize = 500

// Reconcile classifies records of descriptor descID as new or already
// stored. Each record contributes a conjunction over its unique key, with
// ancestor keys nested under relationship clauses, and the conjunctions are
// OR'd together: one FindMany per LookupChunkSize records.
//
// The first stored entity whose key values equal a record's wins. When
// several match, an IntegrityWarning is recorded. A descriptor chain without
// unique keys fails even for an empty batch; an empty batch otherwise
// returns an empty result without touching the store.
func Reconcile(ctx context.Context, st store.Store, reg *Registry, descID string, records []TypedRecord, scope string) (*ReconciliationResult, error) {
	desc, ok := reg.Get(descID)
	if !ok {
		return nil, fmt.Errorf("reconcile: %w: %s", ErrUnknownDescriptor, descID)
	}
	if err := reg.checkKeys(descID); err != nil {
		return nil, err
	}
	result := &ReconciliationResult{}
	if len(records) == 0 {
		return result, nil
	}

	keys := make([][]keyPart, len(records))
	for i, rec := range records {
		parts, err := reg.keyParts(descID, rec.Fields, scope)
		if err != nil {
			return nil, err
		}
		keys[i] = parts
	}

	found, err := findByKeys(ctx, st, desc.Label, reg.RelationPath(descID), keys)
	if err != nil {
		return nil, fmt.Errorf("reconcile %s: find existing: %w", descID, err)
	}
	index := indexEntities(found, keys[0])

	log := logging.FromContext(ctx)
	for i, rec := range records {
		candidates := index[identity(keys[i])]
		if len(candidates) == 0 {
			result.New = append(result.New, rec)
			continue
		}
		result.Updated = append(result.Updated, Match{Record: rec, Entity: *candidates[0]})

		if len(candidates) > 1 {
			ids := make([]string, len(candidates))
			for j, c := range candidates {
				ids[j] = c.ID
			}
			result.Warnings = append(result.Warnings, IntegrityWarning{Row: rec.Row, Candidates: ids})
			log.Warn("record matches several stored entities",
				slog.String("descriptor", descID),
				slog.Int("row", rec.Row),
				slog.Any("candidates", ids),
			)
		}
	}

	return result, nil
}

// findByKeys issues one FindMany per chunk of keys and concatenates the
// results, dropping entities an earlier chunk already returned. All entities
// matching one key come back from the same query, so they keep store order.
func findByKeys(ctx context.Context, st store.Store, label string, include store.Path, keys [][]keyPart) ([]store.StoredEntity, error) {
	var found []store.StoredEntity
	seen := make(map[string]struct{})

	for chunk := range slices.Chunk(keys, LookupChunkSize) {
		clauses := make([]store.Predicate, len(chunk))
		for i, parts := range chunk {
			clauses[i] = keyPredicate(parts)
		}

		batch, err := st.FindMany(ctx, store.Query{
			Label:   label,
			Where:   store.Or{Children: clauses},
			Include: include,
		})
		if err != nil {
			return nil, err
		}
		for _, e := range batch {
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			found = append(found, e)
		}
	}
	return found, nil
}
