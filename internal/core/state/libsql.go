package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/shelfgate/shelfgate/internal/config"
)

// LibsqlStore implements Store on a libsql database. It serves
// single-node deployments where running Redis is not worth it; the
// same TTL semantics are expressed through expires_at columns checked
// on every read.
type LibsqlStore struct {
	db    *sql.DB
	clock func() time.Time
}

const libsqlSchema = `
CREATE TABLE IF NOT EXISTS kv_state (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER
);

CREATE TABLE IF NOT EXISTS list_state (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	key        TEXT NOT NULL,
	value      BLOB NOT NULL,
	expires_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_list_state_key ON list_state (key, seq);
`

func openLibsql(ctx context.Context, cfg config.StateConfig) (*LibsqlStore, error) {
	dsn, err := BuildLibsqlDSN(cfg.Libsql.Path, cfg.Libsql.URL, cfg.Libsql.AuthToken)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open libsql state store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping libsql state store: %w", err)
	}

	store := &LibsqlStore{db: db, clock: func() time.Time { return time.Now().UTC() }}
	if _, err := db.ExecContext(ctx, libsqlSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate libsql state store: %w", err)
	}

	return store, nil
}

// BuildLibsqlDSN resolves a DSN from a local path or remote URL with an
// optional auth token.
func BuildLibsqlDSN(path, rawURL, authToken string) (string, error) {
	if dsn := strings.TrimSpace(rawURL); dsn != "" {
		if strings.TrimSpace(authToken) == "" {
			return dsn, nil
		}
		parsed, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("invalid state url: %w", err)
		}
		query := parsed.Query()
		if query.Get("authToken") == "" {
			query.Set("authToken", authToken)
			parsed.RawQuery = query.Encode()
		}
		return parsed.String(), nil
	}

	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("state path or url is required")
	}
	if path == ":memory:" || strings.HasPrefix(path, "file:") || strings.HasPrefix(path, "libsql:") {
		return path, nil
	}

	dir := filepath.Dir(filepath.Clean(path))
	if dir != "." && dir != string(filepath.Separator) {
		// #nosec G301 -- data directories use 0755 for multi-user access compatibility
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("create state directory: %w", err)
		}
	}
	return "file:" + filepath.Clean(path), nil
}

func (s *LibsqlStore) now() time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return time.Now().UTC()
}

func (s *LibsqlStore) expiry(ttl time.Duration) any {
	if ttl <= 0 {
		return nil
	}
	return s.now().Add(ttl).Unix()
}

// Get returns the value for key, or (nil, nil) when absent or expired.
func (s *LibsqlStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errKeyRequired
	}

	var value []byte
	row := s.db.QueryRowContext(ctx, `
		SELECT value FROM kv_state
		WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)
	`, key, s.now().Unix())

	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// SetWithTTL upserts the value for key with an expiry.
func (s *LibsqlStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errKeyRequired
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_state (key, value, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at
	`, key, value, s.expiry(ttl))
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Update applies fn to the current value of key inside a transaction.
func (s *LibsqlStore) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) ([]byte, error) {
	if key == "" {
		return nil, errKeyRequired
	}
	if fn == nil {
		return nil, errors.New("update function is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", key, err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	var old []byte
	row := tx.QueryRowContext(ctx, `
		SELECT value FROM kv_state
		WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)
	`, key, s.now().Unix())
	if err := row.Scan(&old); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("update %s: %w", key, err)
		}
		old = nil
	}

	next, err := fn(old)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO kv_state (key, value, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at
	`, key, next, s.expiry(ttl))
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("update %s: %w", key, err)
	}
	return next, nil
}

// Increment atomically increments the counter stored at key.
func (s *LibsqlStore) Increment(ctx context.Context, key string) (int64, error) {
	next, err := s.Update(ctx, key, 0, func(old []byte) ([]byte, error) {
		count := int64(0)
		if len(old) > 0 {
			parsed, err := strconv.ParseInt(strings.TrimSpace(string(old)), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("decode counter %s: %w", key, err)
			}
			count = parsed
		}
		return []byte(strconv.FormatInt(count+1, 10)), nil
	})
	if err != nil {
		return 0, err
	}

	value, err := strconv.ParseInt(string(next), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode counter %s: %w", key, err)
	}
	return value, nil
}

// ListPush appends value to the list stored at key. The entry inherits
// the list's current expiry so Expire keeps governing the whole window.
func (s *LibsqlStore) ListPush(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return errKeyRequired
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO list_state (key, value, expires_at)
		VALUES (?, ?, (SELECT expires_at FROM list_state WHERE key = ? ORDER BY seq DESC LIMIT 1))
	`, key, value, key)
	if err != nil {
		return fmt.Errorf("push %s: %w", key, err)
	}
	return nil
}

// ListRange returns all unexpired values in the list, oldest first.
func (s *LibsqlStore) ListRange(ctx context.Context, key string) ([][]byte, error) {
	if key == "" {
		return nil, errKeyRequired
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT value FROM list_state
		WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY seq
	`, key, s.now().Unix())
	if err != nil {
		return nil, fmt.Errorf("range %s: %w", key, err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	out := [][]byte{}
	for rows.Next() {
		var value []byte
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("range %s: %w", key, err)
		}
		out = append(out, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("range %s: %w", key, err)
	}
	return out, nil
}

// Expire re-arms the TTL for key in both the kv and list tables.
func (s *LibsqlStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if key == "" {
		return errKeyRequired
	}

	expiresAt := s.expiry(ttl)
	if _, err := s.db.ExecContext(ctx, `UPDATE kv_state SET expires_at = ? WHERE key = ?`, expiresAt, key); err != nil {
		return fmt.Errorf("expire %s: %w", key, err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE list_state SET expires_at = ? WHERE key = ?`, expiresAt, key); err != nil {
		return fmt.Errorf("expire %s: %w", key, err)
	}
	return nil
}

// Delete removes the given keys from both tables.
func (s *LibsqlStore) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_state WHERE key = ?`, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM list_state WHERE key = ?`, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}

// Ping verifies connectivity for health checks.
func (s *LibsqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases database resources.
func (s *LibsqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
