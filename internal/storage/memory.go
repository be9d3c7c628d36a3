package storage

import (
	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"
)

const (
	entriesTable = "entries"
	pathIndex    = "id"                  // unique index on the full path of each entry
	pathPrefix   = pathIndex + "_prefix" // prefix lookups on the same index
)

// MemPersister is a Persister held entirely in memory, intended for tests and for single-process deployments that
// don't need durability.
// It's implemented on top of https://github.com/hashicorp/go-memdb, whose radix tree gives cheap prefix scans for
// GetChildren and RecursiveDelete. memdb serialises write transactions, so MemPersister is safe for concurrent use.
type MemPersister struct {
	db *memdb.MemDB
}

type memEntry struct {
	Path  string
	Value []byte
}

func NewMemPersister() (*MemPersister, error) {
	db, err := memdb.NewMemDB(memPersisterSchema())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &MemPersister{db: db}, nil
}

func (p *MemPersister) Get(path string) ([]byte, error) {
	path = CleanPath(path)
	txn := p.db.Txn(false)
	defer txn.Abort()
	obj, err := txn.First(entriesTable, pathIndex, path)
	if err != nil {
		return nil, NewStorageError(path, err)
	}
	if obj == nil {
		return nil, NewNotFoundError(path)
	}
	return copyBytes(obj.(*memEntry).Value), nil
}

func (p *MemPersister) Set(path string, value []byte) error {
	path = CleanPath(path)
	if path == "" {
		return newError(LogicError, path, errors.New("cannot store a value at the root"))
	}
	txn := p.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(entriesTable, &memEntry{Path: path, Value: copyBytes(value)}); err != nil {
		return NewStorageError(path, err)
	}
	txn.Commit()
	return nil
}

func (p *MemPersister) Delete(path string) error {
	path = CleanPath(path)
	txn := p.db.Txn(true)
	defer txn.Abort()
	obj, err := txn.First(entriesTable, pathIndex, path)
	if err != nil {
		return NewStorageError(path, err)
	}
	if obj == nil {
		return NewNotFoundError(path)
	}
	if err := txn.Delete(entriesTable, obj); err != nil {
		return NewStorageError(path, err)
	}
	txn.Commit()
	return nil
}

func (p *MemPersister) GetChildren(path string) ([]string, error) {
	path = CleanPath(path)
	txn := p.db.Txn(false)
	defer txn.Abort()
	keys, err := p.keysAtOrBelow(txn, path)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 && path != "" {
		return nil, NewNotFoundError(path)
	}
	return childNames(path, keys), nil
}

func (p *MemPersister) RecursiveDelete(path string) error {
	path = CleanPath(path)
	txn := p.db.Txn(true)
	defer txn.Abort()
	keys, err := p.keysAtOrBelow(txn, path)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := txn.Delete(entriesTable, &memEntry{Path: key}); err != nil {
			return NewStorageError(key, err)
		}
	}
	txn.Commit()
	return nil
}

// keysAtOrBelow returns the paths of all entries that are path itself or one of its descendants.
// The prefix index matches on raw string prefix, so siblings such as "Tasks/a-1" for path "Tasks/a" are filtered out.
func (p *MemPersister) keysAtOrBelow(txn *memdb.Txn, path string) ([]string, error) {
	it, err := txn.Get(entriesTable, pathPrefix, path)
	if err != nil {
		return nil, NewStorageError(path, err)
	}
	keys := make([]string, 0)
	for obj := it.Next(); obj != nil; obj = it.Next() {
		key := obj.(*memEntry).Path
		if isAtOrBelow(key, path) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

// memPersisterSchema is a single table keyed by path.
func memPersisterSchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			entriesTable: {
				Name: entriesTable,
				Indexes: map[string]*memdb.IndexSchema{
					pathIndex: {
						Name:    pathIndex,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Path"},
					},
				},
			},
		},
	}
}
