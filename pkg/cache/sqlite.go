package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/odvcencio/consonant/pkg/store"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS objects (
	uuid TEXT NOT NULL,
	digest TEXT NOT NULL,
	payload BLOB NOT NULL,
	PRIMARY KEY (uuid, digest)
);
CREATE TABLE IF NOT EXISTS raw_data (
	digest TEXT PRIMARY KEY,
	payload BLOB NOT NULL
);
`

// SQLite is a persistent cache in a single SQLite database. Payloads are
// stored zstd-compressed.
type SQLite struct {
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

var _ store.Cache = (*SQLite)(nil)

// OpenSQLite opens or creates the cache database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, err
	}
	return &SQLite{db: db, enc: enc, dec: dec}, nil
}

// Close closes the database.
func (c *SQLite) Close() error {
	c.enc.Close()
	c.dec.Close()
	return c.db.Close()
}

// ReadObject returns the cached object for uuid at digest.
func (c *SQLite) ReadObject(uuid, digest string) (*store.Object, bool, error) {
	var payload []byte
	err := c.db.QueryRow("SELECT payload FROM objects WHERE uuid = ? AND digest = ?", uuid, digest).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached object %s: %w", uuid, err)
	}
	data, err := c.dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, false, fmt.Errorf("read cached object %s: %w", uuid, err)
	}
	obj, err := store.UnmarshalObject(data)
	if err != nil {
		return nil, false, err
	}
	return obj, true, nil
}

// WriteObject caches obj for uuid at digest.
func (c *SQLite) WriteObject(uuid, digest string, obj *store.Object) error {
	data, err := store.MarshalObject(obj)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(
		`INSERT OR REPLACE INTO objects (uuid, digest, payload) VALUES (?, ?, ?)`,
		uuid, digest, c.enc.EncodeAll(data, nil),
	)
	if err != nil {
		return fmt.Errorf("write cached object %s: %w", uuid, err)
	}
	return nil
}

// ReadRawPropertyData returns cached blob content by blob id.
func (c *SQLite) ReadRawPropertyData(digest string) ([]byte, bool, error) {
	var payload []byte
	err := c.db.QueryRow("SELECT payload FROM raw_data WHERE digest = ?", digest).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached raw data %s: %w", digest, err)
	}
	data, err := c.dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, false, fmt.Errorf("read cached raw data %s: %w", digest, err)
	}
	return data, true, nil
}

// WriteRawPropertyData caches blob content by blob id.
func (c *SQLite) WriteRawPropertyData(digest string, data []byte) error {
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO raw_data (digest, payload) VALUES (?, ?)`,
		digest, c.enc.EncodeAll(data, nil),
	)
	if err != nil {
		return fmt.Errorf("write cached raw data %s: %w", digest, err)
	}
	return nil
}

// Clear removes every entry.
func (c *SQLite) Clear() error {
	if _, err := c.db.Exec("DELETE FROM objects; DELETE FROM raw_data"); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}
