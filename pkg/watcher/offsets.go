package watcher

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"
)

var offsetsBucket = []byte("offsets")

// offsetDB persists per-file read offsets so a restarted watcher
// resumes instead of re-shipping.
type offsetDB struct {
	db *bolt.DB
}

func openOffsets(dir string) (*offsetDB, error) {
	path := filepath.Join(dir, "offsets.db")
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open offsets database %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(offsetsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create offsets bucket: %w", err)
	}
	return &offsetDB{db: db}, nil
}

func (o *offsetDB) get(path string) (int64, bool) {
	var (
		offset int64
		found  bool
	)
	_ = o.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(offsetsBucket).Get([]byte(path))
		if raw == nil {
			return nil
		}
		parsed, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return nil
		}
		offset, found = parsed, true
		return nil
	})
	return offset, found
}

func (o *offsetDB) put(path string, offset int64) error {
	return o.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(offsetsBucket).Put([]byte(path), []byte(strconv.FormatInt(offset, 10)))
	})
}

func (o *offsetDB) close() error {
	return o.db.Close()
}
