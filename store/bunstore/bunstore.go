// Package bunstore provides a Table implementation persisting records as
// JSON documents in a relational database through Bun. It ships wired for
// SQLite, which covers the package's intended small single-tenant userbase;
// any dialect Bun speaks will do.
package bunstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	aaa "github.com/goliatone/go-aaa"
)

type document struct {
	bun.BaseModel `bun:"table:aaa_documents"`

	Table string `bun:"tbl,pk"`
	Key   string `bun:"key,pk"`
	Data  []byte `bun:"data,notnull"`
}

// Open opens a SQLite-backed bun.DB for the given DSN, e.g.
// "file:aaa.db?cache=shared" or "file::memory:?cache=shared".
func Open(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open database")
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// Init creates the backing table if it does not exist.
func Init(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().Model((*document)(nil)).IfNotExists().Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create documents table")
	}
	return nil
}

var _ aaa.Table[struct{}] = &Table[struct{}]{}

// Table is a keyed collection stored as one JSON document per key. All
// tables share a single physical table, discriminated by name.
type Table[R any] struct {
	db   *bun.DB
	name string
}

// New returns a table with the given discriminator name.
func New[R any](db *bun.DB, name string) *Table[R] {
	return &Table[R]{db: db, name: name}
}

func (t *Table[R]) Contains(ctx context.Context, key string) (bool, error) {
	exists, err := t.db.NewSelect().
		Model((*document)(nil)).
		Where("tbl = ?", t.name).
		Where("key = ?", key).
		Exists(ctx)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to query document")
	}
	return exists, nil
}

func (t *Table[R]) Get(ctx context.Context, key string) (R, error) {
	var zero R

	doc := &document{}
	err := t.db.NewSelect().
		Model(doc).
		Where("tbl = ?", t.name).
		Where("key = ?", key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, aaa.ErrNoSuchKey
		}
		return zero, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read document")
	}
	return decode[R](doc.Data)
}

func (t *Table[R]) Set(ctx context.Context, key string, record R) error {
	data, err := json.Marshal(record)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode document")
	}

	doc := &document{Table: t.name, Key: key, Data: data}
	_, err = t.db.NewInsert().
		Model(doc).
		On("CONFLICT (tbl, key) DO UPDATE").
		Set("data = EXCLUDED.data").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write document")
	}
	return nil
}

func (t *Table[R]) Delete(ctx context.Context, key string) error {
	res, err := t.db.NewDelete().
		Model((*document)(nil)).
		Where("tbl = ?", t.name).
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete document")
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return aaa.ErrNoSuchKey
	}
	return nil
}

// Pop reads and deletes the document in one transaction, so concurrent pops
// of the same key cannot both succeed.
func (t *Table[R]) Pop(ctx context.Context, key string) (R, error) {
	var zero R

	doc := &document{}
	err := t.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Model(doc).
			Where("tbl = ?", t.name).
			Where("key = ?", key).
			Scan(ctx)
		if err != nil {
			return err
		}

		res, err := tx.NewDelete().
			Model((*document)(nil)).
			Where("tbl = ?", t.name).
			Where("key = ?", key).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, aaa.ErrNoSuchKey
		}
		return zero, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to pop document")
	}
	return decode[R](doc.Data)
}

func (t *Table[R]) All(ctx context.Context) (map[string]R, error) {
	var docs []document
	err := t.db.NewSelect().
		Model(&docs).
		Where("tbl = ?", t.name).
		Scan(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list documents")
	}

	records := make(map[string]R, len(docs))
	for _, doc := range docs {
		record, err := decode[R](doc.Data)
		if err != nil {
			return nil, err
		}
		records[doc.Key] = record
	}
	return records, nil
}

func decode[R any](data []byte) (R, error) {
	var record R
	if err := json.Unmarshal(data, &record); err != nil {
		return record, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode document")
	}
	return record, nil
}

// NewStore bundles the three engine tables over one database.
func NewStore(db *bun.DB) *aaa.Store {
	return &aaa.Store{
		Users:   New[aaa.User](db, "users"),
		Roles:   New[aaa.Role](db, "roles"),
		Pending: New[aaa.PendingRegistration](db, "pending_registrations"),
	}
}
