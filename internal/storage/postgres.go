package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
	"k8s.io/utils/clock"

	"github.com/armadaproject/podscheduler/internal/common/schedulererrors"
)

const DefaultPostgresTableName = "persister"

// PostgresPersister stores each path as one row of a postgres table.
// The Persister contract has no cancellation, so every statement runs under a fixed per-call timeout.
type PostgresPersister struct {
	db        *pgxpool.Pool
	tableName string
	timeout   time.Duration
	// Used to set the updated time of each row
	clock clock.Clock
}

func NewPostgresPersister(db *pgxpool.Pool, tableName string, timeout time.Duration) (*PostgresPersister, error) {
	if db == nil {
		return nil, errors.WithStack(&schedulererrors.ErrInvalidArgument{
			Name:    "db",
			Value:   db,
			Message: "db must be non-nil",
		})
	}
	if tableName == "" {
		tableName = DefaultPostgresTableName
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PostgresPersister{
		db:        db,
		tableName: tableName,
		timeout:   timeout,
		clock:     clock.RealClock{},
	}, nil
}

// Migrate creates the backing table if it doesn't already exist.
func Migrate(ctx context.Context, db *pgxpool.Pool, tableName string) error {
	if tableName == "" {
		tableName = DefaultPostgresTableName
	}
	_, err := db.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
		    path TEXT PRIMARY KEY,
		    value BYTEA NOT NULL,
		    updated TIMESTAMP NOT NULL
	);`, tableName))
	return errors.WithStack(err)
}

func (p *PostgresPersister) Get(path string) ([]byte, error) {
	path = CleanPath(path)
	ctx, cancel := p.context()
	defer cancel()
	var value []byte
	err := p.db.QueryRow(ctx, fmt.Sprintf("SELECT value FROM %s WHERE path = $1", p.tableName), path).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewNotFoundError(path)
	} else if err != nil {
		return nil, NewStorageError(path, err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

func (p *PostgresPersister) Set(path string, value []byte) error {
	path = CleanPath(path)
	if path == "" {
		return newError(LogicError, path, errors.New("cannot store a value at the root"))
	}
	if value == nil {
		value = []byte{}
	}
	ctx, cancel := p.context()
	defer cancel()
	_, err := p.db.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (path, value, updated) VALUES ($1, $2, $3)
		ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, updated = EXCLUDED.updated`, p.tableName),
		path, value, p.clock.Now().UTC())
	if err != nil {
		return NewStorageError(path, err)
	}
	return nil
}

func (p *PostgresPersister) Delete(path string) error {
	path = CleanPath(path)
	ctx, cancel := p.context()
	defer cancel()
	tag, err := p.db.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE path = $1", p.tableName), path)
	if err != nil {
		return NewStorageError(path, err)
	}
	if tag.RowsAffected() == 0 {
		return NewNotFoundError(path)
	}
	return nil
}

func (p *PostgresPersister) GetChildren(path string) ([]string, error) {
	path = CleanPath(path)
	keys, err := p.keysAtOrBelow(path)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 && path != "" {
		return nil, NewNotFoundError(path)
	}
	return childNames(path, keys), nil
}

func (p *PostgresPersister) RecursiveDelete(path string) error {
	path = CleanPath(path)
	ctx, cancel := p.context()
	defer cancel()
	var err error
	if path == "" {
		_, err = p.db.Exec(ctx, fmt.Sprintf("DELETE FROM %s", p.tableName))
	} else {
		_, err = p.db.Exec(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE path = $1 OR starts_with(path, $2)", p.tableName),
			path, childPrefix(path))
	}
	if err != nil {
		return NewStorageError(path, err)
	}
	return nil
}

func (p *PostgresPersister) keysAtOrBelow(path string) ([]string, error) {
	ctx, cancel := p.context()
	defer cancel()
	var rows pgx.Rows
	var err error
	if path == "" {
		rows, err = p.db.Query(ctx, fmt.Sprintf("SELECT path FROM %s", p.tableName))
	} else {
		rows, err = p.db.Query(ctx,
			fmt.Sprintf("SELECT path FROM %s WHERE path = $1 OR starts_with(path, $2)", p.tableName),
			path, childPrefix(path))
	}
	if err != nil {
		return nil, NewStorageError(path, err)
	}
	defer rows.Close()
	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, NewStorageError(path, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError(path, err)
	}
	return keys, nil
}

func (p *PostgresPersister) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), p.timeout)
}
