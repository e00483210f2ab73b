// Package history keeps received messages in SQLite so replies can use the
// recent conversation as context.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/brianly1003/wahub/internal/domain/ports"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const schemaVersion = 1

// DefaultLimit is used by Recent when limit is not positive.
const DefaultLimit = 20

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store is a SQLite-backed ports.MessageStore.
type Store struct {
	db     *sql.DB
	dbPath string

	mu     sync.Mutex
	closed bool
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		path = MemoryPath
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == MemoryPath {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			log.Warn().Err(err).Str("pragma", pragma).Msg("failed to set pragma")
		}
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	log.Debug().Str("path", path).Msg("message history opened")
	return s, nil
}

func (s *Store) initSchema() error {
	var current int
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&current)
	if err != nil {
		current = 0
	}
	if current >= schemaVersion {
		return nil
	}

	log.Info().Int("current", current).Int("target", schemaVersion).Msg("updating message history schema")

	schema := `
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT
		);

		CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			chat_jid TEXT NOT NULL,
			sender TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			media_type TEXT NOT NULL DEFAULT '',
			filename TEXT NOT NULL DEFAULT '',
			chat_name TEXT NOT NULL DEFAULT '',
			is_from_me INTEGER NOT NULL DEFAULT 0,
			timestamp INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_jid, timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_messages_time ON messages(timestamp DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	_, err = s.db.Exec("INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)", schemaVersion)
	return err
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.dbPath
}

// Save stores msg. A message whose ID is already stored is ignored. An empty
// ID is replaced by chat, sender and timestamp.
func (s *Store) Save(ctx context.Context, msg ports.StoredMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if msg.ChatJID == "" {
		msg.ChatJID = msg.Sender
	}
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("%s/%s/%d", msg.ChatJID, msg.Sender, msg.Timestamp.UnixNano())
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO messages
			(id, chat_jid, sender, content, media_type, filename, chat_name, is_from_me, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ChatJID, msg.Sender, msg.Content, msg.MediaType, msg.Filename,
		msg.ChatName, boolToInt(msg.FromMe), msg.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save message %s: %w", msg.ID, err)
	}
	return nil
}

// Recent returns the newest limit messages of chatJID, oldest first. An empty
// chatJID spans all chats.
func (s *Store) Recent(ctx context.Context, chatJID string, limit int) ([]ports.StoredMessage, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `
		SELECT id, chat_jid, sender, content, media_type, filename, chat_name, is_from_me, timestamp
		FROM messages`
	args := []any{}
	if chatJID != "" {
		query += " WHERE chat_jid = ?"
		args = append(args, chatJID)
	}
	query += " ORDER BY timestamp DESC, seq DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	defer rows.Close()

	var out []ports.StoredMessage
	for rows.Next() {
		var (
			m      ports.StoredMessage
			fromMe int
			ts     int64
		)
		if err := rows.Scan(&m.ID, &m.ChatJID, &m.Sender, &m.Content, &m.MediaType,
			&m.Filename, &m.ChatName, &fromMe, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.FromMe = intToBool(fromMe)
		m.Timestamp = time.UnixMilli(ts).UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Chats groups stored messages by chat, newest activity first. The name is
// the latest non-empty chat name seen for the chat.
func (s *Store) Chats(ctx context.Context, chatJID string, limit int) ([]ports.ChatSummary, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	// SQLite takes the bare columns from the row holding MAX(timestamp).
	query := `
		SELECT m.chat_jid, MAX(m.timestamp) AS last_ts, m.sender, m.content, m.is_from_me, COUNT(*),
			COALESCE((
				SELECT c.chat_name FROM messages c
				WHERE c.chat_jid = m.chat_jid AND c.chat_name != ''
				ORDER BY c.timestamp DESC, c.seq DESC LIMIT 1
			), '')
		FROM messages m`
	args := []any{}
	if chatJID != "" {
		query += " WHERE m.chat_jid = ?"
		args = append(args, chatJID)
	}
	query += " GROUP BY m.chat_jid ORDER BY last_ts DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	var out []ports.ChatSummary
	for rows.Next() {
		var (
			c      ports.ChatSummary
			ts     int64
			fromMe int
		)
		if err := rows.Scan(&c.ChatJID, &ts, &c.LastSender, &c.LastContent, &fromMe,
			&c.MessageCount, &c.ChatName); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		c.LastFromMe = intToBool(fromMe)
		c.LastTimestamp = time.UnixMilli(ts).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// Count returns the number of stored messages.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the database. Further calls are no-ops.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool {
	return i != 0
}

var _ ports.MessageStore = (*Store)(nil)
