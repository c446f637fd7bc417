// Package history persists generated letters so past responses can be
// listed and inspected. Persistence is best effort: a failed save never
// fails the generation request that produced the letter.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/your-org/jesus-letters-api/internal/letter"
)

// Store handles queries to the SQLite letter history database
type Store struct {
	db *sql.DB
}

// NewStore opens the history database and ensures its schema exists
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection, for health checks
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// initSchema creates the letters table if it doesn't exist
func (s *Store) initSchema() error {
	query := `
		CREATE TABLE IF NOT EXISTS letters (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			request_id TEXT NOT NULL,
			nickname TEXT NOT NULL,
			topic TEXT NOT NULL,
			situation TEXT NOT NULL,
			jesus_letter TEXT NOT NULL,
			guided_prayer TEXT NOT NULL,
			biblical_references TEXT NOT NULL,
			core_message TEXT NOT NULL,
			ai_service TEXT NOT NULL,
			fallback INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`

	_, err := s.db.Exec(query)
	return err
}

// Entry represents one stored letter
type Entry struct {
	ID                 int64     `json:"id"`
	RequestID          string    `json:"requestId"`
	Nickname           string    `json:"nickname"`
	Topic              string    `json:"topic"`
	Situation          string    `json:"situation"`
	JesusLetter        string    `json:"jesusLetter"`
	GuidedPrayer       string    `json:"guidedPrayer"`
	BiblicalReferences []string  `json:"biblicalReferences"`
	CoreMessage        string    `json:"coreMessage"`
	AIService          string    `json:"aiService"`
	Fallback           bool      `json:"fallback"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Stats aggregates the stored letters
type Stats struct {
	Total     int            `json:"total"`
	ByTopic   map[string]int `json:"byTopic"`
	ByService map[string]int `json:"byService"`
}

// Save records one generated letter. References are stored as a JSON
// array so the column round-trips the slice exactly.
func (s *Store) Save(ctx context.Context, input letter.UserInput, resp letter.GeneratedResponse) (int64, error) {
	refs, err := json.Marshal(resp.BiblicalReferences)
	if err != nil {
		return 0, fmt.Errorf("failed to encode references: %w", err)
	}

	query := `
		INSERT INTO letters (request_id, nickname, topic, situation, jesus_letter,
			guided_prayer, biblical_references, core_message, ai_service, fallback)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		resp.Metadata.RequestID, input.Nickname, input.Topic, input.Situation,
		resp.JesusLetter, resp.GuidedPrayer, string(refs), resp.CoreMessage,
		resp.Metadata.AIService, resp.Metadata.Fallback)
	if err != nil {
		return 0, fmt.Errorf("failed to insert letter: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read insert id: %w", err)
	}

	return id, nil
}

// List returns stored letters, newest first
func (s *Store) List(ctx context.Context, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, request_id, nickname, topic, situation, jesus_letter,
			guided_prayer, biblical_references, core_message, ai_service, fallback, created_at
		FROM letters
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query letters: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating letter rows: %w", err)
	}

	return entries, nil
}

// Get returns one stored letter, or nil when the id is unknown
func (s *Store) Get(ctx context.Context, id int64) (*Entry, error) {
	query := `
		SELECT id, request_id, nickname, topic, situation, jesus_letter,
			guided_prayer, biblical_references, core_message, ai_service, fallback, created_at
		FROM letters
		WHERE id = ?
	`

	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query letter: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan letter: %w", err)
		}
		return nil, nil
	}

	entry, err := scanEntry(rows)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Stats returns aggregate counts over all stored letters
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByTopic:   make(map[string]int),
		ByService: make(map[string]int),
	}

	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM letters")
	if err := row.Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("failed to count letters: %w", err)
	}

	if err := s.countBy(ctx, "topic", stats.ByTopic); err != nil {
		return nil, err
	}
	if err := s.countBy(ctx, "ai_service", stats.ByService); err != nil {
		return nil, err
	}

	return stats, nil
}

// countBy fills dest with group counts over the given column
func (s *Store) countBy(ctx context.Context, column string, dest map[string]int) error {
	// column is one of two compile-time constants, never user input
	query := fmt.Sprintf("SELECT %s, COUNT(*) FROM letters GROUP BY %s", column, column)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to group letters by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan %s group: %w", column, err)
		}
		dest[key] = count
	}

	return rows.Err()
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var entry Entry
	var refs string
	err := rows.Scan(&entry.ID, &entry.RequestID, &entry.Nickname, &entry.Topic,
		&entry.Situation, &entry.JesusLetter, &entry.GuidedPrayer, &refs,
		&entry.CoreMessage, &entry.AIService, &entry.Fallback, &entry.CreatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to scan letter entry: %w", err)
	}

	if err := json.Unmarshal([]byte(refs), &entry.BiblicalReferences); err != nil {
		// Old rows may hold a bare string instead of an array
		entry.BiblicalReferences = []string{refs}
	}

	return entry, nil
}
