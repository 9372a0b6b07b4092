package sqlstore

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/JonMunkholm/geoimport/internal/store"
)

// Dialect selects placeholder syntax.
type Dialect int

const (
	Postgres Dialect = iota // $1, $2, ...
	SQLite                  // ?
)

// quoteIdentifier quotes a SQL identifier to prevent injection.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// columnName maps a camelCase field to its snake_case column.
// "groundLevel" -> "ground_level"
func columnName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// tableName maps an entity label to its table.
func tableName(label string) string { return columnName(label) }

// whereBuilder renders a predicate tree to SQL, collecting arguments and the
// joins its relationship clauses need.
type whereBuilder struct {
	dialect Dialect
	schema  store.Schema
	root    string

	args    []any
	aliases map[string]string // path -> alias
	joins   []string
}

func newWhereBuilder(d Dialect, schema store.Schema, label string) *whereBuilder {
	return &whereBuilder{
		dialect: d,
		schema:  schema,
		root:    label,
		aliases: map[string]string{"": "t0"},
	}
}

func (b *whereBuilder) placeholder(v any) string {
	b.args = append(b.args, v)
	if b.dialect == Postgres {
		return fmt.Sprintf("$%d", len(b.args))
	}
	return "?"
}

// alias returns the table alias for path, adding LEFT JOINs for any
// relation along it that has not been joined yet.
func (b *whereBuilder) alias(path store.Path) (string, error) {
	if a, ok := b.aliases[path.String()]; ok {
		return a, nil
	}
	rels, ok := b.schema.Resolve(b.root, path)
	if !ok {
		return "", fmt.Errorf("relationship path %q not defined on %s", path, b.root)
	}
	parent, err := b.alias(path[:len(path)-1])
	if err != nil {
		return "", err
	}
	rel := rels[len(rels)-1]
	a := fmt.Sprintf("t%d", len(b.aliases))
	b.aliases[path.String()] = a
	b.joins = append(b.joins, fmt.Sprintf("LEFT JOIN %s %s ON %s.id = %s.%s",
		quoteIdentifier(tableName(rel.To)), a, a, parent, quoteIdentifier(columnName(rel.ForeignKey))))
	return a, nil
}

// labelAt returns the entity label reached by path.
func (b *whereBuilder) labelAt(path store.Path) string {
	rels, _ := b.schema.Resolve(b.root, path)
	if len(rels) == 0 {
		return b.root
	}
	return rels[len(rels)-1].To
}

func (b *whereBuilder) column(path store.Path, field string) (string, error) {
	a, err := b.alias(path)
	if err != nil {
		return "", err
	}
	if field != "id" {
		t := b.schema.Tables[b.labelAt(path)]
		if t == nil || !slices.Contains(t.Fields, field) {
			return "", fmt.Errorf("unknown field %q on %s", field, b.labelAt(path))
		}
	}
	return a + "." + quoteIdentifier(columnName(field)), nil
}

func (b *whereBuilder) render(p store.Predicate, path store.Path) (string, error) {
	switch v := p.(type) {
	case nil:
		return "1=1", nil
	case store.Equals:
		col, err := b.column(path, v.Field)
		if err != nil {
			return "", err
		}
		value := store.Normalize(v.Value)
		if value == nil {
			return col + " IS NULL", nil
		}
		if s, ok := value.(string); ok && v.Fold {
			ph := b.placeholder(s)
			if b.dialect == Postgres {
				ph += "::text"
			}
			return fmt.Sprintf("LOWER(%s) = LOWER(%s)", col, ph), nil
		}
		return fmt.Sprintf("%s = %s", col, b.placeholder(value)), nil
	case store.And:
		return b.join(v.Children, path, " AND ", "1=1")
	case store.Or:
		return b.join(v.Children, path, " OR ", "1=0")
	case store.Relationship:
		next := append(path[:len(path):len(path)], v.Label)
		return b.render(v.Child, next)
	default:
		return "", fmt.Errorf("unsupported predicate %T", p)
	}
}

func (b *whereBuilder) join(children []store.Predicate, path store.Path, op, empty string) (string, error) {
	if len(children) == 0 {
		return empty, nil
	}
	parts := make([]string, len(children))
	for i, c := range children {
		s, err := b.render(c, path)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return "(" + strings.Join(parts, op) + ")", nil
}
