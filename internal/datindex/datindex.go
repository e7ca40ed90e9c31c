// Package datindex implements the on-disk, SQLite-backed content-addressed
// DAT database: incremental ingest and SHA-1 / CRC32+size / game-name
// lookup against every DAT catalog imported so far.
package datindex

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Index owns its SQLite connection; a scanner only ever holds an
// immutable reference to it.
type Index struct {
	db   *sql.DB
	lock *Lock
	path string
}

const mmapBudgetBytes = 256 << 20 // ~256 MiB mmap budget for the index file

// Open opens (creating if needed) the SQLite-backed index at path,
// configuring WAL, NORMAL synchronous, in-memory temp store, foreign
// keys, and the mmap budget, then ensures the schema exists.
func Open(path string) (*Index, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_temp_store=memory", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open index db")
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA mmap_size=%d", mmapBudgetBytes)); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "set mmap_size")
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate schema")
	}
	return &Index{db: db, path: path}, nil
}

// OpenForWrite opens the index at path and additionally acquires the
// file-based writer lock at lockPath, failing if another live process
// already holds it. The lock is released automatically on Close.
func OpenForWrite(path, lockPath string) (*Index, error) {
	idx, err := Open(path)
	if err != nil {
		return nil, err
	}
	lock, err := AcquireLock(lockPath, path)
	if err != nil {
		idx.db.Close() //nolint:errcheck
		return nil, err
	}
	idx.lock = lock
	return idx, nil
}

// Close releases the underlying connection and any held writer lock.
func (idx *Index) Close() error {
	if idx.lock != nil {
		idx.lock.Release() //nolint:errcheck
	}
	return idx.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS dat_files (
	id INTEGER PRIMARY KEY,
	source_path TEXT NOT NULL UNIQUE,
	mtime INTEGER NOT NULL,
	size_bytes INTEGER NOT NULL,
	active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS rom_hashes (
	id INTEGER PRIMARY KEY,
	dat_id INTEGER NOT NULL REFERENCES dat_files(id),
	platform_id TEXT,
	rom_name TEXT NOT NULL,
	set_name TEXT NOT NULL,
	crc32 TEXT,
	sha1 TEXT,
	size_bytes INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS game_names (
	id INTEGER PRIMARY KEY,
	dat_id INTEGER NOT NULL REFERENCES dat_files(id),
	platform_id TEXT,
	game_name TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rom_hashes_crc_size ON rom_hashes(crc32, size_bytes);
CREATE INDEX IF NOT EXISTS idx_rom_hashes_dat_id ON rom_hashes(dat_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_rom_hashes_sha1 ON rom_hashes(sha1) WHERE sha1 IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_game_names_name ON game_names(game_name);
`

func migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
