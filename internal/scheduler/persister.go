package scheduler

import (
	"context"

	"github.com/avast/retry-go"
	"github.com/go-redis/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/armadaproject/podscheduler/internal/common/config"
	"github.com/armadaproject/podscheduler/internal/scheduler/configuration"
	"github.com/armadaproject/podscheduler/internal/statestore"
	"github.com/armadaproject/podscheduler/internal/storage"
)

// NewPersister connects to the configured backend and wraps it in the configured cache and in metrics.
// The returned function releases the backend's connections.
func NewPersister(ctx context.Context, c configuration.Configuration, reg prometheus.Registerer) (storage.Persister, func(), error) {
	var persister storage.Persister
	cleanup := func() {}
	switch c.StateStore.Backend {
	case configuration.BackendMemory:
		mem, err := storage.NewMemPersister()
		if err != nil {
			return nil, nil, err
		}
		log.Warn("using the in-memory persister; state will be lost on exit")
		persister = mem
	case configuration.BackendRedis:
		var client redis.UniversalClient
		err := connect(ctx, c.StateStore, "redis", func() (err error) {
			client, err = c.Redis.Connect()
			return err
		})
		if err != nil {
			return nil, nil, err
		}
		persister = storage.NewRedisPersister(client, c.StateStore.RedisHashKey)
		cleanup = func() {
			if err := client.Close(); err != nil {
				log.WithError(err).Warn("failed to close redis client")
			}
		}
	case configuration.BackendPostgres:
		var db *pgxpool.Pool
		err := connect(ctx, c.StateStore, "postgres", func() (err error) {
			db, err = config.OpenPgxPool(ctx, c.Postgres)
			return err
		})
		if err != nil {
			return nil, nil, errors.WithMessage(err, "failed to connect to postgres")
		}
		pg, err := storage.NewPostgresPersister(db, c.StateStore.PostgresTable, c.StateStore.PostgresTimeout)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		persister = pg
		cleanup = db.Close
	default:
		return nil, nil, errors.Errorf("unknown state store backend %q", c.StateStore.Backend)
	}

	if c.StateStore.CacheSize > 0 {
		cached, err := storage.NewCachingPersister(persister, c.StateStore.CacheSize)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		persister = cached
	}
	return storage.NewInstrumentedPersister(persister, c.StateStore.Backend, reg), cleanup, nil
}

// connect calls f until it succeeds, up to c.ConnectAttempts times.
func connect(ctx context.Context, c configuration.StateStoreConfig, backend string, f func() error) error {
	attempts := c.ConnectAttempts
	if attempts == 0 {
		attempts = 1
	}
	return retry.Do(
		f,
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(c.ConnectRetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.WithError(err).Warnf("attempt %d of %d to connect to %s failed", n+1, attempts, backend)
		}),
	)
}

// NewStateStore loads the state store of the configured namespace from persister.
func NewStateStore(persister storage.Persister, c configuration.StateStoreConfig) (*statestore.StateStore, error) {
	return newStateStore(persister, c, false)
}

// NewReadOnlyStateStore loads the state store like NewStateStore, but never writes repaired statuses
// back to persister.
func NewReadOnlyStateStore(persister storage.Persister, c configuration.StateStoreConfig) (*statestore.StateStore, error) {
	return newStateStore(persister, c, true)
}

func newStateStore(persister storage.Persister, c configuration.StateStoreConfig, readOnly bool) (*statestore.StateStore, error) {
	store, err := statestore.New(persister, statestore.Config{
		Namespace:    c.Namespace,
		RepairPolicy: c.RepairPolicy,
		ReadOnly:     readOnly,
	})
	if err != nil {
		return nil, err
	}
	log.WithField("readOnly", readOnly).Infof("loaded state store for namespace %q", c.Namespace)
	return store, nil
}
