package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	_ "modernc.org/sqlite"

	"eventapi/models"
)

const sqlitePragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// OpenSQLite opens (creating if needed) the database file at path and
// makes sure the events table exists.
func OpenSQLite(path string) (*sql.DB, error) {
	sqldb, err := sql.Open("sqlite", path+sqlitePragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := sqldb.Ping(); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if err := createTables(sqldb, models.DialectSQLite); err != nil {
		sqldb.Close()
		return nil, err
	}
	return sqldb, nil
}

// OpenPostgres connects with lib/pq and bootstraps the events table.
func OpenPostgres(dsn string, maxOpen, maxIdle int) (*sql.DB, error) {
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := sqldb.Ping(); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	sqldb.SetMaxOpenConns(maxOpen)
	sqldb.SetMaxIdleConns(maxIdle)

	if err := createTables(sqldb, models.DialectPostgres); err != nil {
		sqldb.Close()
		return nil, err
	}
	return sqldb, nil
}

// ConnectMongo dials uri and waits for a successful ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

func createTables(sqldb *sql.DB, dialect models.Dialect) error {
	// AUTOINCREMENT keeps sqlite from handing out the id of a deleted max row again.
	createEventsTable := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event TEXT NOT NULL,
		date TEXT NOT NULL
	);`
	if dialect == models.DialectPostgres {
		createEventsTable = `
		CREATE TABLE IF NOT EXISTS events (
			id BIGSERIAL PRIMARY KEY,
			event TEXT NOT NULL,
			date DATE NOT NULL
		);`
	}
	if _, err := sqldb.Exec(createEventsTable); err != nil {
		return fmt.Errorf("create events table: %w", err)
	}

	if _, err := sqldb.Exec(`CREATE INDEX IF NOT EXISTS idx_events_date ON events(date)`); err != nil {
		return fmt.Errorf("create events date index: %w", err)
	}
	return nil
}
