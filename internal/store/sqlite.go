package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is the durable Store backend.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Enable WAL mode for concurrent read/write access and set a busy
	// timeout so writers retry instead of immediately returning SQLITE_BUSY.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("exec %s: %w", p, err)
		}
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id                 TEXT PRIMARY KEY,
			prompt             TEXT NOT NULL,
			files              TEXT,
			status             TEXT NOT NULL DEFAULT 'pending',
			error              TEXT,
			specialist_results TEXT,
			verified_results   TEXT,
			final_report       TEXT,
			created_at         DATETIME NOT NULL,
			completed_at       DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_created ON conversations(created_at DESC)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}

	return nil
}

func (s *SQLite) Create(conv *Conversation) error {
	files, err := json.Marshal(conv.Files)
	if err != nil {
		return fmt.Errorf("marshal files: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO conversations (id, prompt, files, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		conv.ID, conv.Prompt, string(files), conv.Status, conv.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

func (s *SQLite) Get(id string) (*Conversation, error) {
	row := s.db.QueryRow(`
		SELECT id, prompt, files, status, error, specialist_results,
		       verified_results, final_report, created_at, completed_at
		FROM conversations WHERE id = ?`, id)

	conv, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return conv, nil
}

func (s *SQLite) UpdateStatus(id, status string) error {
	return s.exec(`UPDATE conversations SET status = ? WHERE id = ?`, status, id)
}

func (s *SQLite) SetSpecialistResults(id string, results map[string]string) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal specialist results: %w", err)
	}
	return s.exec(`UPDATE conversations SET specialist_results = ? WHERE id = ?`, string(data), id)
}

func (s *SQLite) SetVerifiedResults(id string, results map[string]VerifiedResult) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal verified results: %w", err)
	}
	return s.exec(`UPDATE conversations SET verified_results = ? WHERE id = ?`, string(data), id)
}

func (s *SQLite) SetFinalReport(id string, report *Report, completedAt time.Time) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return s.exec(`
		UPDATE conversations
		SET status = ?, final_report = ?, completed_at = ?
		WHERE id = ?`,
		StatusCompleted, string(data), completedAt.UTC(), id)
}

func (s *SQLite) SetError(id, message string) error {
	return s.exec(`UPDATE conversations SET status = ?, error = ? WHERE id = ?`,
		StatusError, message, id)
}

func (s *SQLite) Delete(id string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete conversation: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func (s *SQLite) List(limit, offset int) ([]Conversation, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count conversations: %w", err)
	}

	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(`
		SELECT id, prompt, files, status, error, specialist_results,
		       verified_results, final_report, created_at, completed_at
		FROM conversations
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, *conv)
	}
	return out, total, rows.Err()
}

func (s *SQLite) exec(query string, args ...any) error {
	result, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(row scanner) (*Conversation, error) {
	var (
		conv        Conversation
		files       sql.NullString
		errMsg      sql.NullString
		specialist  sql.NullString
		verified    sql.NullString
		finalReport sql.NullString
		completedAt sql.NullTime
	)

	err := row.Scan(&conv.ID, &conv.Prompt, &files, &conv.Status, &errMsg,
		&specialist, &verified, &finalReport, &conv.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	conv.Error = errMsg.String
	if files.Valid && files.String != "" {
		if err := json.Unmarshal([]byte(files.String), &conv.Files); err != nil {
			return nil, fmt.Errorf("unmarshal files: %w", err)
		}
	}
	if specialist.Valid && specialist.String != "" {
		if err := json.Unmarshal([]byte(specialist.String), &conv.SpecialistResults); err != nil {
			return nil, fmt.Errorf("unmarshal specialist results: %w", err)
		}
	}
	if verified.Valid && verified.String != "" {
		if err := json.Unmarshal([]byte(verified.String), &conv.VerifiedResults); err != nil {
			return nil, fmt.Errorf("unmarshal verified results: %w", err)
		}
	}
	if finalReport.Valid && finalReport.String != "" {
		if err := json.Unmarshal([]byte(finalReport.String), &conv.FinalReport); err != nil {
			return nil, fmt.Errorf("unmarshal final report: %w", err)
		}
	}
	if completedAt.Valid {
		t := completedAt.Time
		conv.CompletedAt = &t
	}

	return &conv, nil
}
