// Package cache is a small TTL cache persisted in a bbolt file.
package cache

import (
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var bucketName = []byte("cache")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type entry struct {
	ExpiresAt int64               `json:"e"`
	Value     jsoniter.RawMessage `json:"v"`
}

// BoltCache stores JSON encoded values with an expiry
type BoltCache struct {
	db  *bolt.DB
	now func() time.Time
}

func Open(path string) (*BoltCache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltCache{db: db, now: time.Now}, nil
}

// Get decodes the cached value into dst. Missing, expired or undecodable
// entries report false.
func (c *BoltCache) Get(key string, dst interface{}) bool {
	var raw []byte
	_ = c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketName).Get([]byte(key)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if raw == nil {
		return false
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return false
	}
	if e.ExpiresAt > 0 && c.now().UnixNano() >= e.ExpiresAt {
		return false
	}
	return json.Unmarshal(e.Value, dst) == nil
}

// Set stores value for ttl; a zero ttl never expires
func (c *BoltCache) Set(key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	e := entry{Value: data}
	if ttl > 0 {
		e.ExpiresAt = c.now().Add(ttl).UnixNano()
	}
	buf, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), buf)
	})
}

func (c *BoltCache) Delete(key string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
}

// Purge drops expired entries and returns how many were removed
func (c *BoltCache) Purge() (int, error) {
	now := c.now().UnixNano()
	removed := 0
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var e entry
			if err := json.Unmarshal(v, &e); err != nil || (e.ExpiresAt > 0 && now >= e.ExpiresAt) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	if err == nil && removed > 0 {
		zap.L().Debug("cache purged", zap.Int("removed", removed))
	}
	return removed, err
}

func (c *BoltCache) Close() error {
	if c == nil || c.db == nil {
		return errors.New("cache not open")
	}
	return c.db.Close()
}
