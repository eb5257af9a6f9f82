// Package store provides the SQLite-backed catalog and vector search used by
// the context pipeline.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements every collaborator the pipeline reads from.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		id              TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL,
		primary_element TEXT,
		element_scores  TEXT,
		intensity       INTEGER,
		urgency         INTEGER,
		quadrant        INTEGER,
		profile_label   TEXT,
		archetype_label TEXT,
		created_at      INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_profiles_user ON profiles(user_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS knowledge_chunks (
		id          TEXT PRIMARY KEY,
		scope       TEXT NOT NULL,
		document_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content     TEXT NOT NULL,
		element_tag TEXT,
		embedding   BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_scope ON knowledge_chunks(scope);
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON knowledge_chunks(document_id);

	CREATE TABLE IF NOT EXISTS examples (
		id                TEXT PRIMARY KEY,
		scope             TEXT NOT NULL,
		user_message      TEXT NOT NULL,
		assistant_message TEXT NOT NULL,
		tags              TEXT,
		active            INTEGER NOT NULL DEFAULT 1,
		sort_order        INTEGER NOT NULL DEFAULT 0,
		embedding         BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_examples_scope ON examples(scope, active);

	CREATE TABLE IF NOT EXISTS courses (
		id      TEXT PRIMARY KEY,
		title   TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS exercises (
		id                TEXT PRIMARY KEY,
		course_id         TEXT NOT NULL REFERENCES courses(id),
		title             TEXT NOT NULL,
		url               TEXT NOT NULL,
		element_tag       TEXT,
		level             TEXT NOT NULL DEFAULT '',
		duration_minutes  INTEGER NOT NULL DEFAULT 0,
		benefits          TEXT,
		indications       TEXT,
		contraindications TEXT,
		embedding         BLOB,
		enabled           INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_exercises_course ON exercises(course_id);
	CREATE INDEX IF NOT EXISTS idx_exercises_element ON exercises(element_tag, enabled);

	CREATE TABLE IF NOT EXISTS campaigns (
		id             TEXT PRIMARY KEY,
		scope          TEXT NOT NULL,
		name           TEXT NOT NULL,
		description    TEXT,
		call_to_action TEXT,
		url            TEXT,
		starts_at      INTEGER NOT NULL,
		ends_at        INTEGER NOT NULL,
		priority       INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_campaigns_window ON campaigns(scope, starts_at, ends_at);

	CREATE TABLE IF NOT EXISTS products (
		id             TEXT PRIMARY KEY,
		scope          TEXT NOT NULL,
		name           TEXT NOT NULL,
		type           TEXT,
		description    TEXT,
		price_cents    INTEGER NOT NULL DEFAULT 0,
		url            TEXT,
		checkout_url   TEXT,
		target_element TEXT,
		available      INTEGER NOT NULL DEFAULT 1,
		featured       INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_products_scope ON products(scope, available);
	`
	_, err := s.db.Exec(schema)
	return err
}

// encodeVector stores a vector as little-endian float32s. An empty vector is
// bound as NULL rather than an empty blob.
func encodeVector(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func encodeList(items []string) *string {
	if len(items) == 0 {
		return nil
	}
	b, _ := json.Marshal(items)
	s := string(b)
	return &s
}

func decodeList(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(raw.String), &out)
	return out
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
