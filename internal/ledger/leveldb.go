// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBKV keeps ledger data in a LevelDB directory.
type LevelDBKV struct {
	db *leveldb.DB
}

func OpenLevelDB(path string) (*LevelDBKV, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBKV{db: db}, nil
}

// NewMemLevelDB opens a LevelDB instance backed by memory.
func NewMemLevelDB() (*LevelDBKV, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBKV{db: db}, nil
}

func (l *LevelDBKV) Get(key []byte) ([]byte, bool, error) {
	v, err := l.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (l *LevelDBKV) Put(key, value []byte) error {
	return l.db.Put(key, value, nil)
}

func (l *LevelDBKV) Delete(key []byte) error {
	return l.db.Delete(key, nil)
}

func (l *LevelDBKV) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	it := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()

	for it.Next() {
		// iterator buffers are reused between steps
		if err := fn(clone(it.Key()), clone(it.Value())); err != nil {
			return err
		}
	}
	return it.Error()
}

func (l *LevelDBKV) Close() error {
	return l.db.Close()
}
