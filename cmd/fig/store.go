package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/alanbriolat/fig/internal/boltdb"
	"github.com/alanbriolat/fig/internal/sqlitedb"
	"github.com/alanbriolat/fig/internal/transfer"
)

const (
	storeBolt   = "bolt"
	storeSQLite = "sqlite"
	storeNone   = "none"
)

type store interface {
	transfer.Database
	Close() error
}

type nilStore struct {
	transfer.NilDatabase
}

func (nilStore) Close() error {
	return nil
}

// openStore opens the record store selected by the --store and --database flags.
func openStore(c *cli.Context) (store, error) {
	kind := c.String("store")
	if kind == storeNone {
		return nilStore{}, nil
	}
	path := c.String("database")
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(dir, "fig")
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
		name := "fig.db"
		if kind == storeSQLite {
			name = "fig.sqlite"
		}
		path = filepath.Join(dir, name)
	}
	zap.S().Debugw("opening record store", "store", kind, "path", path)

	switch kind {
	case storeBolt:
		return boltdb.New(path)
	case storeSQLite:
		return sqlitedb.New(path)
	default:
		return nil, fmt.Errorf("unknown store %q", kind)
	}
}
