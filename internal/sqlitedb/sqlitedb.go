// Package sqlitedb stores transfer records in SQLite, as an alternative to boltdb for anyone wanting to query their
// download history with other tools.
package sqlitedb

import (
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/clause"
	"moul.io/zapgorm2"

	"github.com/alanbriolat/fig/internal/transfer"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

type Database struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// New opens (creating if necessary) the database at path and brings its schema up to date.
func New(path string) (*Database, error) {
	logger := zapgorm2.New(zap.L().Named("sqlitedb"))
	logger.LogLevel = gormlogger.Warn
	logger.IgnoreRecordNotFoundError = true
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger})
	if err != nil {
		return nil, err
	}
	d := &Database{db: db, log: zap.S().Named("sqlitedb")}
	if err := d.Migrate(); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return d, nil
}

func (d *Database) Migrate() error {
	d.log.Debug("running database migrations")
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	fs, err := iofs.New(embedMigrations, "migrations")
	if err != nil {
		return err
	}
	driver, err := sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", fs, "sqlite3", driver)
	if err != nil {
		return err
	}
	err = m.Up()
	switch err {
	case nil:
		version, _, _ := m.Version()
		d.log.Infow("database migration complete", "version", version)
	case migrate.ErrNoChange:
		d.log.Debug("no database migration required")
	default:
		return err
	}
	return nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) ListRecords() ([]transfer.Record, error) {
	var records []transfer.Record
	if err := d.db.Order("id").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// WriteRecord inserts the record, or replaces every column of the existing record with the same ID.
func (d *Database) WriteRecord(record *transfer.Record) error {
	return d.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(record).Error
}

func (d *Database) DeleteRecord(id string) error {
	return d.db.Delete(&transfer.Record{}, "id = ?", id).Error
}
