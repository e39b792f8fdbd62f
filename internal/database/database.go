package database

import (
	"context"
	"database/sql"
	_ "embed"
	"log"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

//go:embed schema.sql
var schema string

// connectorConfig parses dsn and forces parseTime so DATETIME columns scan
// into time.Time whatever the operator wrote in the DSN.
func connectorConfig(dsn string) (*mysql.Config, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse mysql dsn")
	}
	cfg.ParseTime = true
	return cfg, nil
}

// OpenDBWithDSN creates and configures a connection pool for dsn. It is used
// for both the primary and the read-only pools.
func OpenDBWithDSN(dsn string) (*sql.DB, error) {
	// 1. Open a new connection pool.
	cfg, err := connectorConfig(dsn)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "mysql connector")
	}
	db := sql.OpenDB(connector)

	// 2. Configure the connection pool settings.
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 3. Ping the database to verify the connection.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping mysql")
	}

	log.Println("Database connection pool established successfully")
	return db, nil
}

// Statements splits the embedded schema into single statements; the MySQL
// driver rejects multi-statement Exec calls by default.
func Statements() []string {
	var stmts []string
	for _, stmt := range strings.Split(schema, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// Migrate creates any missing tables. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range Statements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "migrate: %.60s", stmt)
		}
	}
	return nil
}
