package config

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
)

type PostgresConfig struct {
	// libpq connection parameters, e.g. host, port, user, password, dbname, sslmode
	Connection      map[string]string `validate:"required"`
	MaxOpenConns    int32             `validate:"gte=0"`
	ConnMaxLifetime time.Duration
}

// ConnectionString renders Connection as a libpq keyword/value string.
// See https://www.postgresql.org/docs/10/libpq-connect.html#id-1.7.3.8.3.5
func (pc PostgresConfig) ConnectionString() string {
	keys := make([]string, 0, len(pc.Connection))
	for k := range pc.Connection {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"='"+replacer.Replace(pc.Connection[k])+"'")
	}
	return strings.Join(parts, " ")
}

// OpenPgxPool connects to postgres and pings it once.
func OpenPgxPool(ctx context.Context, pc PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(pc.ConnectionString())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if pc.MaxOpenConns > 0 {
		poolConfig.MaxConns = pc.MaxOpenConns
	}
	if pc.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = pc.ConnMaxLifetime
	}
	db, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, errors.WithStack(err)
	}
	return db, nil
}
