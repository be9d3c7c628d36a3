package config

import (
	"time"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"
)

type RedisConfig struct {
	// A single address, or the seed addresses of a cluster
	Addrs []string `validate:"required"`
	// Name of the sentinel master. If set, Addrs are sentinel addresses.
	MasterName   string
	DB           int `validate:"gte=0,lte=16"`
	Password     string
	MaxRetries   int `validate:"gte=0"`
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int `validate:"gte=0"`
	IdleTimeout  time.Duration
}

func (rc RedisConfig) AsUniversalOptions() *redis.UniversalOptions {
	return &redis.UniversalOptions{
		Addrs:        rc.Addrs,
		MasterName:   rc.MasterName,
		DB:           rc.DB,
		Password:     rc.Password,
		MaxRetries:   rc.MaxRetries,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
		PoolSize:     rc.PoolSize,
		IdleTimeout:  rc.IdleTimeout,
	}
}

// Connect returns a client for the configured redis deployment, after checking that it's reachable.
func (rc RedisConfig) Connect() (redis.UniversalClient, error) {
	client := redis.NewUniversalClient(rc.AsUniversalOptions())
	if err := client.Ping().Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "failed to connect to redis at %v", rc.Addrs)
	}
	return client, nil
}
