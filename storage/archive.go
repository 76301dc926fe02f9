package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("transcript not found")

// Message is one archived transcript entry.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript is a saved conversation.
type Transcript struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	BaseURL   string    `json:"base_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// TranscriptMetadata is a Transcript without its messages, for listing.
type TranscriptMetadata struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	BaseURL      string    `json:"base_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Archive persists transcripts in <data>/transcripts.db.
type Archive struct {
	db *sql.DB
}

func NewArchive(dataDir string) (*Archive, error) {
	dbPath := filepath.Join(dataDir, "transcripts.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	archive := &Archive{db: db}

	if err := archive.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return archive, nil
}

func (a *Archive) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transcripts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		base_url TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS messages (
		transcript_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (transcript_id, position)
	);
	CREATE INDEX IF NOT EXISTS idx_transcripts_updated ON transcripts(updated_at);
	`

	_, err := a.db.Exec(schema)
	return err
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// Save inserts or replaces a transcript. A missing ID or name is filled in.
func (a *Archive) Save(t *Transcript) error {
	now := time.Now()
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.Name == "" {
		t.Name = GenerateTranscriptName(firstUserMessage(t.Messages))
	}
	t.UpdatedAt = now

	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO transcripts (id, name, base_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			base_url = excluded.base_url,
			updated_at = excluded.updated_at
	`, t.ID, t.Name, t.BaseURL, t.CreatedAt.UnixNano(), t.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM messages WHERE transcript_id = ?`, t.ID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	for i, msg := range t.Messages {
		_, err := tx.Exec(`
			INSERT INTO messages (transcript_id, position, role, content, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, t.ID, i, msg.Role, msg.Content, msg.Timestamp.UnixNano())
		if err != nil {
			return fmt.Errorf("failed to save message %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transcript: %w", err)
	}
	return nil
}

func (a *Archive) Load(id string) (*Transcript, error) {
	var t Transcript
	var created, updated int64

	err := a.db.QueryRow(`
		SELECT id, name, base_url, created_at, updated_at
		FROM transcripts WHERE id = ?
	`, id).Scan(&t.ID, &t.Name, &t.BaseURL, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}
	t.CreatedAt = time.Unix(0, created)
	t.UpdatedAt = time.Unix(0, updated)

	rows, err := a.db.Query(`
		SELECT role, content, created_at
		FROM messages WHERE transcript_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	t.Messages = []Message{}
	for rows.Next() {
		var msg Message
		var ts int64
		if err := rows.Scan(&msg.Role, &msg.Content, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Timestamp = time.Unix(0, ts)
		t.Messages = append(t.Messages, msg)
	}

	return &t, rows.Err()
}

// List returns every transcript, most recently updated first.
func (a *Archive) List() ([]TranscriptMetadata, error) {
	rows, err := a.db.Query(`
		SELECT t.id, t.name, t.base_url, t.created_at, t.updated_at,
			(SELECT COUNT(*) FROM messages m WHERE m.transcript_id = t.id)
		FROM transcripts t
		ORDER BY t.updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer rows.Close()

	list := []TranscriptMetadata{}
	for rows.Next() {
		var meta TranscriptMetadata
		var created, updated int64
		if err := rows.Scan(&meta.ID, &meta.Name, &meta.BaseURL, &created, &updated, &meta.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan transcript: %w", err)
		}
		meta.CreatedAt = time.Unix(0, created)
		meta.UpdatedAt = time.Unix(0, updated)
		list = append(list, meta)
	}

	return list, rows.Err()
}

func (a *Archive) Delete(id string) error {
	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM transcripts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if _, err := tx.Exec(`DELETE FROM messages WHERE transcript_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}

	return tx.Commit()
}

func (a *Archive) Rename(id, name string) error {
	res, err := a.db.Exec(`UPDATE transcripts SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failed to rename transcript: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func firstUserMessage(messages []Message) string {
	for _, msg := range messages {
		if msg.Role == "user" {
			return msg.Content
		}
	}
	return ""
}
