package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/saeidalz13/battleship-escrow/db/migration"
)

const (
	maxOpenConns = 300
	maxIdleConns = 100
	connMaxLife  = time.Minute * 15

	DriverPostgres = "postgres"
	DriverSqlite   = "sqlite"
)

// MustMigrate applies the embedded schema of driverName. Migrations live in a
// directory named after the driver.
func MustMigrate(db *sql.DB, driverName string) {
	var (
		driver database.Driver
		err    error
	)
	switch driverName {
	case DriverPostgres:
		driver, err = postgres.WithInstance(db, &postgres.Config{DatabaseName: "battleship"})
	case DriverSqlite:
		driver, err = sqlite.WithInstance(db, &sqlite.Config{DatabaseName: "battleship"})
	default:
		err = fmt.Errorf("unsupported driver: %s", driverName)
	}
	if err != nil {
		panic(err)
	}

	src, err := iofs.New(migration.FS, driverName)
	if err != nil {
		panic(err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driverName, driver)
	if err != nil {
		panic(err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		panic(err)
	}
	if dirty {
		panic("database is dirty")
	}
	log.Println("migration version:", version)

	if err = m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return
		}
		panic(err)
	}
	log.Println("migration successful...")
}

func MustConnectToDb(psqlUrl string) *sql.DB {
	// Open may just validate its arguments without creating a connection
	db, err := sql.Open(DriverPostgres, psqlUrl)
	if err != nil {
		panic(err)
	}

	if err := db.Ping(); err != nil {
		panic(err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLife)

	MustMigrate(db, DriverPostgres)
	return db
}

// OpenSqlite opens an embedded database file and migrates it.
func OpenSqlite(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open(DriverSqlite, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	MustMigrate(db, DriverSqlite)
	return db, nil
}
