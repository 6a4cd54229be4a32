package config

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/udovin/gosql"

	// Register SQL drivers.
	_ "github.com/jackc/pgx/v4/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

type DatabaseDriver string

const (
	SQLiteDriver   DatabaseDriver = "sqlite"
	PostgresDriver DatabaseDriver = "postgres"
)

type DatabaseOptions interface {
	Driver() DatabaseDriver
}

// SQLiteOptions stores SQLite connection options.
type SQLiteOptions struct {
	Path string `json:"path"`
}

func (o SQLiteOptions) Driver() DatabaseDriver {
	return SQLiteDriver
}

// PostgresOptions stores Postgres connection options.
type PostgresOptions struct {
	Hosts    []string `json:"hosts"`
	User     string   `json:"user"`
	Password Secret   `json:"password"`
	Name     string   `json:"name"`
	SSLMode  string   `json:"sslmode,omitempty"`
}

func (o PostgresOptions) Driver() DatabaseDriver {
	return PostgresDriver
}

// DB stores configuration for database connection.
type DB struct {
	Options DatabaseOptions `json:"options"`
}

func (c DB) MarshalJSON() ([]byte, error) {
	if c.Options == nil {
		return nil, fmt.Errorf("database options are not specified")
	}
	cfg := struct {
		Driver  DatabaseDriver  `json:"driver"`
		Options DatabaseOptions `json:"options"`
	}{
		Driver:  c.Options.Driver(),
		Options: c.Options,
	}
	return json.Marshal(cfg)
}

func (c *DB) UnmarshalJSON(bytes []byte) error {
	var cfg struct {
		Driver  DatabaseDriver  `json:"driver"`
		Options json.RawMessage `json:"options"`
	}
	if err := json.Unmarshal(bytes, &cfg); err != nil {
		return err
	}
	switch cfg.Driver {
	case SQLiteDriver:
		var options SQLiteOptions
		if err := json.Unmarshal(cfg.Options, &options); err != nil {
			return err
		}
		c.Options = options
	case PostgresDriver:
		var options PostgresOptions
		if err := json.Unmarshal(cfg.Options, &options); err != nil {
			return err
		}
		c.Options = options
	default:
		return fmt.Errorf("driver %q is not supported", cfg.Driver)
	}
	return nil
}

// Create creates database connection using current configuration.
//
// Queries for connection are built with dialect of configured driver.
func (c DB) Create() (*gosql.DB, error) {
	switch opts := c.Options.(type) {
	case SQLiteOptions:
		db, err := createSQLiteDB(opts)
		if err != nil {
			return nil, err
		}
		return newGoSQLDB(db, gosql.SQLiteDialect), nil
	case PostgresOptions:
		db, err := createPostgresDB(opts)
		if err != nil {
			return nil, err
		}
		return newGoSQLDB(db, gosql.PostgresDialect), nil
	default:
		return nil, fmt.Errorf("unsupported database config type %T", c.Options)
	}
}

func newGoSQLDB(db *sql.DB, dialect gosql.Dialect) *gosql.DB {
	return &gosql.DB{DB: db, RO: db, Builder: gosql.NewBuilder(dialect)}
}

func createSQLiteDB(opts SQLiteOptions) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", opts.Path))
	if err != nil {
		return nil, err
	}
	// Concurrent writers are serialized by single connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func createPostgresDB(opts PostgresOptions) (*sql.DB, error) {
	password, err := opts.Password.Secret()
	if err != nil {
		return nil, err
	}
	sslMode := opts.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(opts.User, password),
		Host:     strings.Join(opts.Hosts, ","),
		Path:     "/" + opts.Name,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return sql.Open("pgx", dsn.String())
}
