// Package sqlstore implements store.Store over SQL tables, one per entity
// label, with Postgres (pgx) and SQLite (database/sql) backends.
//
// Tables use snake_case column names derived from the camelCase field names
// and a TEXT primary key "id" holding a UUID. Relationship predicates and
// include paths become LEFT JOINs along child-to-parent foreign keys.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/geoimport/internal/logging"
	"github.com/JonMunkholm/geoimport/internal/store"
)

var _ store.Store = (*Store)(nil)

// maxParams keeps multi-row inserts under SQLite's default variable limit.
const maxParams = 999

// Store is a SQL-backed store.Store.
type Store struct {
	conn    conn
	dialect Dialect
	schema  store.Schema
}

// NewPostgres returns a store over a pgx pool.
func NewPostgres(pool *pgxpool.Pool, schema store.Schema) *Store {
	return &Store{conn: pgxPool{pool}, dialect: Postgres, schema: schema}
}

// NewSQLite returns a store over a database/sql handle opened with the
// sqlite3 driver.
func NewSQLite(db *sql.DB, schema store.Schema) *Store {
	return &Store{conn: sqlDB{db}, dialect: SQLite, schema: schema}
}

func (s *Store) table(label string) (*store.Table, error) {
	t, ok := s.schema.Tables[label]
	if !ok {
		return nil, fmt.Errorf("%s: %w", label, store.ErrUnknownLabel)
	}
	return t, nil
}

// FindMany implements store.Store.
func (s *Store) FindMany(ctx context.Context, q store.Query) ([]store.StoredEntity, error) {
	root, err := s.table(q.Label)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}

	b := newWhereBuilder(s.dialect, s.schema, q.Label)

	// Selected tables: the root, then each step of the include path.
	type selected struct {
		alias string
		table *store.Table
	}
	sel := []selected{{alias: "t0", table: root}}
	for i := range q.Include {
		a, err := b.alias(q.Include[:i+1])
		if err != nil {
			return nil, fmt.Errorf("find %s: %w", q.Label, err)
		}
		sel = append(sel, selected{alias: a, table: s.schema.Tables[b.labelAt(q.Include[:i+1])]})
	}

	where, err := b.render(q.Where, nil)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", q.Label, err)
	}

	var cols []string
	for _, t := range sel {
		cols = append(cols, t.alias+".id")
		for _, f := range t.table.Fields {
			cols = append(cols, t.alias+"."+quoteIdentifier(columnName(f)))
		}
	}

	query := fmt.Sprintf("SELECT %s FROM %s t0 %s WHERE %s ORDER BY t0.id",
		strings.Join(cols, ", "),
		quoteIdentifier(tableName(q.Label)),
		strings.Join(b.joins, " "),
		where,
	)
	logging.FromContext(ctx).Debug("store query", "label", q.Label, "args", len(b.args))

	rs, err := s.conn.query(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", q.Label, err)
	}
	defer rs.Close()

	var out []store.StoredEntity
	for rs.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rs.Scan(dest...); err != nil {
			return nil, fmt.Errorf("find %s: scan: %w", q.Label, err)
		}

		// Build the chain innermost-last, then link parents.
		entities := make([]*store.StoredEntity, 0, len(sel))
		pos := 0
		for _, t := range sel {
			id := store.Normalize(values[pos])
			pos++
			fields := make(store.Record, len(t.table.Fields))
			for _, f := range t.table.Fields {
				fields[f] = store.Normalize(values[pos])
				pos++
			}
			if id == nil {
				break
			}
			entities = append(entities, &store.StoredEntity{ID: fmt.Sprint(id), Label: t.table.Label, Fields: fields})
		}
		for i := len(entities) - 2; i >= 0; i-- {
			entities[i].Parent = entities[i+1]
		}
		out = append(out, *entities[0])
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("find %s: %w", q.Label, err)
	}
	return out, nil
}

// CreateMany implements store.Store. Rows are inserted in multi-row batches.
func (s *Store) CreateMany(ctx context.Context, label string, records []store.Record) ([]string, error) {
	t, err := s.table(label)
	if err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	cols := append([]string{"id"}, t.Fields...)
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdentifier(columnName(c))
	}
	batch := max(maxParams/len(cols), 1)

	ids := make([]string, len(records))
	for start := 0; start < len(records); start += batch {
		end := min(start+batch, len(records))

		var args []any
		rowsSQL := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			ids[i] = uuid.New().String()
			ph := make([]string, len(cols))
			for j, c := range cols {
				if c == "id" {
					args = append(args, ids[i])
				} else {
					args = append(args, store.Normalize(records[i][c]))
				}
				ph[j] = s.placeholder(len(args))
			}
			rowsSQL = append(rowsSQL, "("+strings.Join(ph, ", ")+")")
		}

		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			quoteIdentifier(tableName(label)), strings.Join(quoted, ", "), strings.Join(rowsSQL, ", "))
		if _, err := s.conn.exec(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("create %s: %w", label, err)
		}
	}
	return ids, nil
}

// UpdateMany implements store.Store.
func (s *Store) UpdateMany(ctx context.Context, label string, updates []store.Update) error {
	t, err := s.table(label)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	for _, u := range updates {
		var sets []string
		var args []any
		for _, f := range t.Fields {
			v, ok := u.Fields[f]
			if !ok {
				continue
			}
			args = append(args, store.Normalize(v))
			sets = append(sets, quoteIdentifier(columnName(f))+" = "+s.placeholder(len(args)))
		}
		if len(sets) == 0 {
			continue
		}
		args = append(args, u.ID)
		query := fmt.Sprintf("UPDATE %s SET %s WHERE id = %s",
			quoteIdentifier(tableName(label)), strings.Join(sets, ", "), s.placeholder(len(args)))

		n, err := s.conn.exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update %s: %w", label, err)
		}
		if n == 0 {
			return fmt.Errorf("update %s: entity %s not found", label, u.ID)
		}
	}
	return nil
}

// Atomic implements store.Store. Nested calls join the outer transaction.
func (s *Store) Atomic(ctx context.Context, fn func(store.Store) error) error {
	starter, ok := s.conn.(txConn)
	if !ok {
		return fn(s)
	}

	t, err := starter.begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&Store{conn: t, dialect: s.dialect, schema: s.schema}); err != nil {
		if rbErr := t.rollback(ctx); rbErr != nil {
			logging.FromContext(ctx).Error("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := t.commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) placeholder(n int) string {
	if s.dialect == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
