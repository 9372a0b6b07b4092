package sqlstore

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// rows is the cursor shape shared by pgx and database/sql.
type rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// conn runs statements against a pool or an open transaction.
type conn interface {
	query(ctx context.Context, sql string, args ...any) (rows, error)
	exec(ctx context.Context, sql string, args ...any) (int64, error)
}

// txConn is a conn that can start a transaction.
type txConn interface {
	conn
	begin(ctx context.Context) (tx, error)
}

type tx interface {
	conn
	commit(ctx context.Context) error
	rollback(ctx context.Context) error
}

// pgx

type pgxPool struct{ pool *pgxpool.Pool }

func (c pgxPool) query(ctx context.Context, q string, args ...any) (rows, error) {
	r, err := c.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (c pgxPool) exec(ctx context.Context, q string, args ...any) (int64, error) {
	tag, err := c.pool.Exec(ctx, q, args...)
	return tag.RowsAffected(), err
}

func (c pgxPool) begin(ctx context.Context) (tx, error) {
	t, err := c.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return pgxTx{t}, nil
}

type pgxTx struct{ tx pgx.Tx }

func (c pgxTx) query(ctx context.Context, q string, args ...any) (rows, error) {
	r, err := c.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (c pgxTx) exec(ctx context.Context, q string, args ...any) (int64, error) {
	tag, err := c.tx.Exec(ctx, q, args...)
	return tag.RowsAffected(), err
}

func (c pgxTx) commit(ctx context.Context) error   { return c.tx.Commit(ctx) }
func (c pgxTx) rollback(ctx context.Context) error { return c.tx.Rollback(ctx) }

// database/sql

type sqlDB struct{ db *sql.DB }

func (c sqlDB) query(ctx context.Context, q string, args ...any) (rows, error) {
	r, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{r}, nil
}

func (c sqlDB) exec(ctx context.Context, q string, args ...any) (int64, error) {
	res, err := c.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c sqlDB) begin(ctx context.Context) (tx, error) {
	t, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return sqlTx{t}, nil
}

type sqlTx struct{ tx *sql.Tx }

func (c sqlTx) query(ctx context.Context, q string, args ...any) (rows, error) {
	r, err := c.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{r}, nil
}

func (c sqlTx) exec(ctx context.Context, q string, args ...any) (int64, error) {
	res, err := c.tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c sqlTx) commit(context.Context) error   { return c.tx.Commit() }
func (c sqlTx) rollback(context.Context) error { return c.tx.Rollback() }

type sqlRows struct{ *sql.Rows }

func (r sqlRows) Close() { _ = r.Rows.Close() }
