package credential

import (
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLiteBackend persists tokens in a SQLite database, encrypting each value
// with AES-GCM.
type SQLiteBackend struct {
	db            *sql.DB
	encryptionKey []byte
	mu            sync.Mutex
}

var _ Backend = (*SQLiteBackend)(nil)

// NewSQLiteBackend opens (and creates if needed) the database at dbPath.
// encryptionKey must be 16, 24 or 32 bytes; see DeriveKey.
func NewSQLiteBackend(dbPath string, encryptionKey []byte) (*SQLiteBackend, error) {
	switch len(encryptionKey) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("invalid encryption key length %d", len(encryptionKey))
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	b := &SQLiteBackend{
		db:            db,
		encryptionKey: encryptionKey,
	}

	if err := b.init(); err != nil {
		db.Close()
		return nil, err
	}

	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("dbPath", dbPath).Msg("failed to restrict database permissions")
	}

	return b, nil
}

func (b *SQLiteBackend) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS credentials (
		key TEXT PRIMARY KEY,
		encrypted_value TEXT NOT NULL,
		last_updated DATETIME NOT NULL
	);
	`
	if _, err := b.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create credentials table: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Load() (map[Kind]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rows, err := b.db.Query("SELECT key, encrypted_value FROM credentials")
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer rows.Close()

	values := make(map[Kind]string)
	for rows.Next() {
		var key, encrypted string
		if err := rows.Scan(&key, &encrypted); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		plaintext, err := decrypt(encrypted, b.encryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt %s: %w", key, err)
		}
		values[Kind(key)] = string(plaintext)
	}

	return values, rows.Err()
}

// Save upserts all values in a single transaction.
func (b *SQLiteBackend) Save(values map[Kind]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for kind, v := range values {
		encrypted, err := encrypt([]byte(v), b.encryptionKey)
		if err != nil {
			return fmt.Errorf("failed to encrypt %s: %w", kind, err)
		}
		_, err = tx.Exec(`
			INSERT INTO credentials (key, encrypted_value, last_updated)
			VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				encrypted_value = excluded.encrypted_value,
				last_updated = excluded.last_updated
		`, string(kind), encrypted, now)
		if err != nil {
			return fmt.Errorf("failed to save %s: %w", kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit credentials: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Delete(kinds ...Kind) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, kind := range kinds {
		if _, err := tx.Exec("DELETE FROM credentials WHERE key = ?", string(kind)); err != nil {
			return fmt.Errorf("failed to delete %s: %w", kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
