package storage

import (
	"strings"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"
)

const DefaultRedisHashKey = "PodScheduler:Persister"

// RedisPersister stores every path as a field of a single redis hash.
// Listing children reads all field names of the hash, which is fine for the few thousand keys a service's state
// amounts to.
type RedisPersister struct {
	db      redis.UniversalClient
	hashKey string
}

func NewRedisPersister(db redis.UniversalClient, hashKey string) *RedisPersister {
	if hashKey == "" {
		hashKey = DefaultRedisHashKey
	}
	return &RedisPersister{db: db, hashKey: hashKey}
}

func (r *RedisPersister) Get(path string) ([]byte, error) {
	path = CleanPath(path)
	value, err := r.db.HGet(r.hashKey, path).Bytes()
	if err == redis.Nil {
		return nil, NewNotFoundError(path)
	} else if err != nil {
		return nil, NewStorageError(path, errors.Wrap(err, "error reading from redis"))
	}
	return value, nil
}

func (r *RedisPersister) Set(path string, value []byte) error {
	path = CleanPath(path)
	if path == "" {
		return newError(LogicError, path, errors.New("cannot store a value at the root"))
	}
	if value == nil {
		value = []byte{}
	}
	if err := r.db.HSet(r.hashKey, path, value).Err(); err != nil {
		return NewStorageError(path, errors.Wrap(err, "error writing to redis"))
	}
	return nil
}

func (r *RedisPersister) Delete(path string) error {
	path = CleanPath(path)
	deleted, err := r.db.HDel(r.hashKey, path).Result()
	if err != nil {
		return NewStorageError(path, errors.Wrap(err, "error deleting from redis"))
	}
	if deleted == 0 {
		return NewNotFoundError(path)
	}
	return nil
}

func (r *RedisPersister) GetChildren(path string) ([]string, error) {
	path = CleanPath(path)
	keys, err := r.keysAtOrBelow(path)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 && path != "" {
		return nil, NewNotFoundError(path)
	}
	return childNames(path, keys), nil
}

func (r *RedisPersister) RecursiveDelete(path string) error {
	path = CleanPath(path)
	if path == "" {
		if err := r.db.Del(r.hashKey).Err(); err != nil {
			return NewStorageError(path, errors.Wrap(err, "error deleting from redis"))
		}
		return nil
	}
	keys, err := r.keysAtOrBelow(path)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.db.HDel(r.hashKey, keys...).Err(); err != nil {
		return NewStorageError(path, errors.Wrap(err, "error deleting from redis"))
	}
	return nil
}

func (r *RedisPersister) keysAtOrBelow(path string) ([]string, error) {
	fields, err := r.db.HKeys(r.hashKey).Result()
	if err != nil {
		return nil, NewStorageError(path, errors.Wrap(err, "error listing keys in redis"))
	}
	keys := make([]string, 0)
	prefix := childPrefix(path)
	for _, field := range fields {
		if field == path || strings.HasPrefix(field, prefix) {
			keys = append(keys, field)
		}
	}
	return keys, nil
}
