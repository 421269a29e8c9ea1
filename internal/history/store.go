package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/unkn0wn-root/curlparse/internal/curl"
	"github.com/unkn0wn-root/curlparse/internal/errdef"
)

const (
	driverName        = "sqlite"
	memoryPath        = ":memory:"
	defaultMaxEntries = 200
	commandSnippetMax = 8 << 10
)

const schema = `
CREATE TABLE IF NOT EXISTS parse_history (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	id        TEXT    NOT NULL UNIQUE,
	parsed_at INTEGER NOT NULL,
	command   TEXT    NOT NULL,
	success   INTEGER NOT NULL,
	method    TEXT    NOT NULL DEFAULT '',
	url       TEXT    NOT NULL DEFAULT '',
	error     TEXT    NOT NULL DEFAULT '',
	warnings  TEXT    NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS parse_history_parsed_at ON parse_history (parsed_at DESC, seq DESC);
`

const (
	insertEntry = `INSERT INTO parse_history
	(id, parsed_at, command, success, method, url, error, warnings)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	trimEntries = `DELETE FROM parse_history WHERE seq NOT IN (
	SELECT seq FROM parse_history ORDER BY parsed_at DESC, seq DESC LIMIT ?)`
	selectColumns = `SELECT id, parsed_at, command, success, method, url, error, warnings
	FROM parse_history`
	deleteEntry = `DELETE FROM parse_history WHERE id = ?`
)

// Entry records one parse attempt.
type Entry struct {
	ID       string    `json:"id"`
	ParsedAt time.Time `json:"parsedAt"`
	Command  string    `json:"command"`
	Success  bool      `json:"success"`
	Method   string    `json:"method,omitempty"`
	URL      string    `json:"url,omitempty"`
	Error    string    `json:"error,omitempty"`
	Warnings []string  `json:"warnings,omitempty"`
}

// Store keeps parse history in a SQLite database, bounded to maxEntries rows.
type Store struct {
	db         *sql.DB
	maxEntries int
	mu         sync.Mutex
}

// Open creates or opens the database at path. An empty path or ":memory:"
// keeps the history in memory.
func Open(path string, maxEntries int) (*Store, error) {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	path = strings.TrimSpace(path)
	if path == "" {
		path = memoryPath
	}
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errdef.Wrap(errdef.CodeFilesystem, err, "create history dir")
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeHistory, err, "open history")
	}
	// sqlite serialises writers; one connection also keeps :memory: stable.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errdef.Wrap(errdef.CodeHistory, err, "init history schema")
	}
	return &Store{db: db, maxEntries: maxEntries}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append inserts entry and drops the oldest rows beyond the configured limit.
// A missing ID or timestamp is filled in.
func (s *Store) Append(ctx context.Context, entry Entry) (Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ParsedAt.IsZero() {
		entry.ParsedAt = time.Now()
	}
	entry.ParsedAt = entry.ParsedAt.UTC()

	warnings, err := json.Marshal(nonNil(entry.Warnings))
	if err != nil {
		return Entry{}, errdef.Wrap(errdef.CodeHistory, err, "encode warnings")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, errdef.Wrap(errdef.CodeHistory, err, "begin history tx")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(
		ctx,
		insertEntry,
		entry.ID,
		entry.ParsedAt.UnixNano(),
		entry.Command,
		entry.Success,
		entry.Method,
		entry.URL,
		entry.Error,
		string(warnings),
	); err != nil {
		return Entry{}, errdef.Wrap(errdef.CodeHistory, err, "insert history entry")
	}
	if _, err := tx.ExecContext(ctx, trimEntries, s.maxEntries); err != nil {
		return Entry{}, errdef.Wrap(errdef.CodeHistory, err, "trim history")
	}
	if err := tx.Commit(); err != nil {
		return Entry{}, errdef.Wrap(errdef.CodeHistory, err, "commit history")
	}
	return entry, nil
}

// Entries returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Store) Entries(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = s.maxEntries
	}
	rows, err := s.db.QueryContext(
		ctx,
		selectColumns+` ORDER BY parsed_at DESC, seq DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeHistory, err, "query history")
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errdef.Wrap(errdef.CodeHistory, err, "read history")
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, deleteEntry, id)
	if err != nil {
		return false, errdef.Wrap(errdef.CodeHistory, err, "delete history entry")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errdef.Wrap(errdef.CodeHistory, err, "delete history entry")
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		entry    Entry
		parsedAt int64
		warnings string
	)
	err := row.Scan(
		&entry.ID,
		&parsedAt,
		&entry.Command,
		&entry.Success,
		&entry.Method,
		&entry.URL,
		&entry.Error,
		&warnings,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, err
	}
	if err != nil {
		return Entry{}, errdef.Wrap(errdef.CodeHistory, err, "scan history entry")
	}
	entry.ParsedAt = time.Unix(0, parsedAt).UTC()
	if warnings != "" {
		if err := json.Unmarshal([]byte(warnings), &entry.Warnings); err != nil {
			return Entry{}, errdef.Wrap(errdef.CodeHistory, err, "decode warnings")
		}
	}
	if len(entry.Warnings) == 0 {
		entry.Warnings = nil
	}
	return entry, nil
}

// EntryFromResult builds a history entry for a finished parse. Long commands
// are cut to keep the table small.
func EntryFromResult(cmd string, res curl.Result, now time.Time) Entry {
	entry := Entry{
		ParsedAt: now,
		Command:  truncate(strings.TrimSpace(cmd), commandSnippetMax),
		Success:  res.Success,
		Error:    res.Error,
	}
	if req := res.Request; req != nil {
		entry.Method = req.Method
		entry.URL = req.FullURL
		entry.Warnings = append([]string(nil), req.Warnings...)
	}
	return entry
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
