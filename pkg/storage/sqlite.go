package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/backkem/mediaremote/pkg/credentials"
	_ "github.com/mattn/go-sqlite3"
)

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates the database at path and initializes the
// schema. Use ":memory:" for a throwaway database.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: enable WAL mode: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS credentials (
		device_uid TEXT PRIMARY KEY,
		record     TEXT NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS identity (
		slot INTEGER PRIMARY KEY CHECK (slot = 0),
		id   BLOB NOT NULL,
		seed BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS peers (
		id         BLOB PRIMARY KEY,
		public_key BLOB NOT NULL,
		paired_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("storage: init schema: %w", err)
	}
	return nil
}

// SaveCredentials implements Store.
func (s *SQLite) SaveCredentials(deviceUID string, creds *credentials.Credentials) error {
	record, err := serialize(deviceUID, creds)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO credentials (device_uid, record) VALUES (?, ?)
		ON CONFLICT(device_uid) DO UPDATE SET
			record = excluded.record,
			updated_at = strftime('%s', 'now')
	`
	_, err = s.db.Exec(query, deviceUID, record)
	return err
}

// LoadCredentials implements Store.
func (s *SQLite) LoadCredentials(deviceUID string) (*credentials.Credentials, error) {
	var record string
	err := s.db.QueryRow(`SELECT record FROM credentials WHERE device_uid = ?`, deviceUID).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return credentials.Parse(record)
}

// DeleteCredentials implements Store.
func (s *SQLite) DeleteCredentials(deviceUID string) error {
	res, err := s.db.Exec(`DELETE FROM credentials WHERE device_uid = ?`, deviceUID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ListCredentials implements Store.
func (s *SQLite) ListCredentials() ([]string, error) {
	rows, err := s.db.Query(`SELECT device_uid FROM credentials ORDER BY device_uid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []string{}
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		result = append(result, uid)
	}
	return result, rows.Err()
}

// SaveIdentity implements Store.
func (s *SQLite) SaveIdentity(identity *credentials.Identity) error {
	query := `
		INSERT INTO identity (slot, id, seed) VALUES (0, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			id = excluded.id,
			seed = excluded.seed
	`
	_, err := s.db.Exec(query, identity.ID, identity.Seed)
	return err
}

// LoadIdentity implements Store.
func (s *SQLite) LoadIdentity() (*credentials.Identity, error) {
	var id, seed []byte
	err := s.db.QueryRow(`SELECT id, seed FROM identity WHERE slot = 0`).Scan(&id, &seed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return credentials.NewIdentity(id, seed)
}

// SavePeer implements Store.
func (s *SQLite) SavePeer(peer *credentials.Peer) error {
	if len(peer.ID) == 0 {
		return ErrEmptyKey
	}

	query := `
		INSERT INTO peers (id, public_key) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET
			public_key = excluded.public_key,
			paired_at = strftime('%s', 'now')
	`
	_, err := s.db.Exec(query, peer.ID, []byte(peer.PublicKey))
	return err
}

// LoadPeer implements Store.
func (s *SQLite) LoadPeer(id []byte) (*credentials.Peer, error) {
	var pub []byte
	err := s.db.QueryRow(`SELECT public_key FROM peers WHERE id = ?`, id).Scan(&pub)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &credentials.Peer{ID: append([]byte(nil), id...), PublicKey: pub}, nil
}

// DeletePeer implements Store.
func (s *SQLite) DeletePeer(id []byte) error {
	res, err := s.db.Exec(`DELETE FROM peers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ListPeers implements Store.
func (s *SQLite) ListPeers() ([]*credentials.Peer, error) {
	rows, err := s.db.Query(`SELECT id, public_key FROM peers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []*credentials.Peer{}
	for rows.Next() {
		var id, pub []byte
		if err := rows.Scan(&id, &pub); err != nil {
			return nil, err
		}
		result = append(result, &credentials.Peer{ID: id, PublicKey: pub})
	}
	return result, rows.Err()
}

// Close implements Store.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Verify SQLite implements Store.
var _ Store = (*SQLite)(nil)
