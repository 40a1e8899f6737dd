package dbcore

import (
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dr-electrique/rapport-server/config"
	"github.com/dr-electrique/rapport-server/database/models"
)

var (
	db   *gorm.DB
	once sync.Once
)

// Init opens the configured database once. Subsequent calls are no-ops.
func Init(cfg *config.Config) error {
	var initErr error
	once.Do(func() {
		db, initErr = open(cfg)
	})
	return initErr
}

// Get returns the shared connection; Init must have succeeded first.
func Get() *gorm.DB {
	if db == nil {
		log.Fatal("[DB] database accessed before initialization")
	}
	return db
}

func open(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
	}

	var conn *gorm.DB
	var err error

	switch cfg.DBType {
	case "sqlite", "sqlite3", "":
		path := cfg.DBFilePath
		if path == "" {
			path = "./data/rapports.db"
		}
		// WAL keeps readers out of the writers' way; FKs gate the
		// rapport -> photos cascade the rollback relies on.
		dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on", path)
		conn, err = gorm.Open(sqlite.Open(dsn), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to SQLite database: %w", err)
		}
		log.Printf("[DB] using SQLite database file: %s", path)

	case "postgres", "postgresql":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.DBHost, cfg.DBPort, cfg.DBUsername, cfg.DBPassword, cfg.DBName)
		conn, err = gorm.Open(postgres.Open(dsn), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
		}
		log.Printf("[DB] connected to PostgreSQL on %s:%d", cfg.DBHost, cfg.DBPort)

	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.DBType)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying DB instance: %w", err)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)

	return conn, nil
}

// AutoMigrate creates/updates the schema for all models.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&models.Rapport{},
		&models.Photo{},
		&models.Device{},
		&models.Setting{},
	)
}

// Transaction runs fn inside one database transaction.
func Transaction(fn func(tx *gorm.DB) error) error {
	return Get().Transaction(fn)
}
