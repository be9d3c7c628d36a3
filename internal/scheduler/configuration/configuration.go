package configuration

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/armadaproject/podscheduler/internal/common/config"
	"github.com/armadaproject/podscheduler/internal/common/logging"
	"github.com/armadaproject/podscheduler/internal/statestore"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Configuration struct {
	// Name of the service whose pods are scheduled. Included in every task id.
	ServiceName string `validate:"required"`
	Logging     logging.Config
	StateStore  StateStoreConfig
	// Used when StateStore.Backend is redis; only validated then.
	Redis config.RedisConfig `validate:"-"`
	// Used when StateStore.Backend is postgres; only validated then.
	Postgres config.PostgresConfig `validate:"-"`
}

type StateStoreConfig struct {
	// One of memory, redis or postgres. The memory backend doesn't survive restarts and is only useful for testing.
	Backend string `validate:"oneof=memory redis postgres"`
	// If set, the state of the service is stored under Services/<Namespace>.
	Namespace string
	// Either FailMismatched or FailMismatchedAndMissing. Defaults to FailMismatchedAndMissing.
	RepairPolicy statestore.RepairPolicy `validate:"omitempty,oneof=FailMismatched FailMismatchedAndMissing"`
	// If greater than zero, values read from the backend are cached in an LRU cache of this many entries.
	CacheSize int `validate:"gte=0"`
	// Redis hash holding all values
	RedisHashKey string
	// Postgres table holding all values
	PostgresTable string
	// Maximum duration of a single postgres statement
	PostgresTimeout time.Duration
	// Number of times to try connecting to redis or postgres before giving up. Zero means once.
	ConnectAttempts uint
	// Delay between connection attempts
	ConnectRetryDelay time.Duration `validate:"gte=0"`
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	switch c.StateStore.Backend {
	case BackendRedis:
		return validate.Struct(c.Redis)
	case BackendPostgres:
		return validate.Struct(c.Postgres)
	}
	return nil
}
