package repository

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens (creating if necessary) a SQLite database at path and applies
// any pending migrations. path may be ":memory:" for an ephemeral database,
// as the tests use.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// A single embedded SQLite file is not meant for high concurrent
	// writer counts; this keeps the pool small and serializes writers
	// rather than surfacing "database is locked" errors under load.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// NewRepositories builds a Repositories handle backed by db.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Tracks:          &trackRepo{db: db},
		ConnectorTracks: &connectorTrackRepo{db: db},
		Mappings:        &mappingRepo{db: db},
		Metrics:         &metricRepo{db: db},
		Likes:           &likeRepo{db: db},
		Plays:           &playRepo{db: db},
		Checkpoints:     &checkpointRepo{db: db},
		Playlists:       &playlistRepo{db: db},
	}
}
