package store

import (
	"encoding/json"
	"errors"

	"github.com/brensch/symcheck/executor/analysis"
	"github.com/dgraph-io/badger/v4"
)

const cacheKeyPrefix = "game/"

// ResultCache keeps per-game summaries in a badger directory so reruns over
// the same records and model skip inference. It implements analysis.Cache.
type ResultCache struct {
	db *badger.DB
}

func OpenResultCache(dir string) (*ResultCache, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &ResultCache{db: db}, nil
}

func (c *ResultCache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Get returns the summary stored under key. A missing key is not an error.
func (c *ResultCache) Get(key string) (analysis.GameStats, bool, error) {
	var gs analysis.GameStats
	found := false

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cacheKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &gs)
		})
	})
	return gs, found, err
}

func (c *ResultCache) Put(key string, stats analysis.GameStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(cacheKeyPrefix+key), data)
	})
}

// Len counts cached games.
func (c *ResultCache) Len() (int, error) {
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(cacheKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}
