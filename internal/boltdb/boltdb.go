// Package boltdb stores transfer records in a single bbolt file.
package boltdb

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/alanbriolat/fig/internal/transfer"
)

var Buckets = struct {
	Metadata []byte
	Records  []byte
}{
	Metadata: []byte("__metadata__"),
	Records:  []byte("records"),
}

var MetadataKeys = struct {
	Version []byte
}{
	Version: []byte("version"),
}

const currentVersion = 1

type Database interface {
	Close() error

	transfer.Database
}

type database struct {
	*bbolt.DB
}

func New(path string) (_ Database, err error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) (err error) {
		// Ensure buckets exist
		var metadata *bbolt.Bucket
		if metadata, err = tx.CreateBucketIfNotExists(Buckets.Metadata); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(Buckets.Records); err != nil {
			return err
		}

		var version int
		if versionBytes := metadata.Get(MetadataKeys.Version); versionBytes == nil {
			version = 0
		} else if err = json.Unmarshal(versionBytes, &version); err != nil {
			return err
		}
		if version > currentVersion {
			return fmt.Errorf("database version %d is newer than supported version %d", version, currentVersion)
		}

		if versionBytes, err := json.Marshal(currentVersion); err != nil {
			return err
		} else if err = metadata.Put(MetadataKeys.Version, versionBytes); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	zap.S().Named("boltdb").Debugw("opened database", "path", path)
	return &database{db}, nil
}

func (d database) ListRecords() (records []transfer.Record, err error) {
	err = d.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(Buckets.Records)
		return bucket.ForEach(func(k, v []byte) error {
			var record transfer.Record
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("corrupt record %q: %w", k, err)
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (d database) WriteRecord(record *transfer.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(Buckets.Records).Put([]byte(record.ID), data)
	})
}

func (d database) DeleteRecord(id string) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(Buckets.Records).Delete([]byte(id))
	})
}
