package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ellielabs/ellie/backend/internal/model/journal"
	"github.com/ellielabs/ellie/backend/internal/model/persona"
)

// SQLite is the sqlite-backed Store used in production.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the journal database at path and
// applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, wrap("open", err)
	}
	// sqlite permits one writer; a single connection serializes conflicting
	// writes instead of surfacing SQLITE_BUSY to callers.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS authorized_users (
		user_id INTEGER PRIMARY KEY,
		token TEXT,
		bot_name TEXT,
		bot_sp TEXT,
		topic TEXT,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS entries (
		user_id INTEGER NOT NULL,
		entry TEXT NOT NULL,
		reflection TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_entries_user_created ON entries(user_id, created_at DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return wrap("migrate", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) GetToken(ctx context.Context, userID int64) (string, bool, error) {
	var token sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT token FROM authorized_users WHERE user_id = ?`, userID).Scan(&token)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, wrap("get token", err)
	}
	if !token.Valid || token.String == "" {
		return "", false, nil
	}
	return token.String, true, nil
}

func (s *SQLite) PutAuthorization(ctx context.Context, userID int64, token string, personaName, personaPrompt *string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO authorized_users (user_id, token, bot_name, bot_sp, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			token = excluded.token,
			bot_name = COALESCE(excluded.bot_name, authorized_users.bot_name),
			bot_sp = COALESCE(excluded.bot_sp, authorized_users.bot_sp),
			updated_at = excluded.updated_at`,
		userID, token, personaName, personaPrompt, time.Now().UTC())
	return wrap("put authorization", err)
}

func (s *SQLite) GetPersona(ctx context.Context, userID int64) (persona.Persona, error) {
	var (
		name, prompt, topic sql.NullString
		updatedAt           sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT bot_name, bot_sp, topic, updated_at FROM authorized_users WHERE user_id = ?`,
		userID).Scan(&name, &prompt, &topic, &updatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return persona.Default(), nil
	case err != nil:
		return persona.Persona{}, wrap("get persona", err)
	}

	p := persona.Default()
	if name.Valid && name.String != "" {
		p.Name = name.String
	}
	if prompt.Valid && prompt.String != "" {
		p.SystemPrompt = prompt.String
	}
	if topic.Valid {
		p.Topic = topic.String
	}
	if updatedAt.Valid {
		p.UpdatedAt = updatedAt.Time
	}
	return p, nil
}

func (s *SQLite) UpdatePersonaName(ctx context.Context, userID int64, name string) error {
	return s.upsertPersonaField(ctx, "update persona name", "bot_name", userID, name)
}

func (s *SQLite) UpdatePersonaPrompt(ctx context.Context, userID int64, prompt string) error {
	return s.upsertPersonaField(ctx, "update persona prompt", "bot_sp", userID, prompt)
}

func (s *SQLite) UpdatePersonaTopic(ctx context.Context, userID int64, topic string) error {
	return s.upsertPersonaField(ctx, "update persona topic", "topic", userID, topic)
}

func (s *SQLite) upsertPersonaField(ctx context.Context, op, column string, userID int64, value string) error {
	// column comes from a fixed set above, never from input.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO authorized_users (user_id, `+column+`, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			`+column+` = excluded.`+column+`,
			updated_at = excluded.updated_at`,
		userID, value, time.Now().UTC())
	return wrap(op, err)
}

func (s *SQLite) AppendJournal(ctx context.Context, userID int64, entry, reflection string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (user_id, entry, reflection, created_at) VALUES (?, ?, ?, ?)`,
		userID, entry, reflection, time.Now().UTC())
	return wrap("append journal", err)
}

func (s *SQLite) ListRecentEntries(ctx context.Context, userID int64, limit int) ([]string, error) {
	return s.listColumn(ctx, "list entries", "entry", userID, limit)
}

func (s *SQLite) ListRecentReflections(ctx context.Context, userID int64, limit int) ([]string, error) {
	out, err := s.listColumn(ctx, "list reflections", "reflection", userID, limit)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return []string{NoReflections}, nil
	}
	return out, nil
}

func (s *SQLite) ListJournal(ctx context.Context, userID int64, limit int) ([]journal.Entry, error) {
	if limit <= 0 {
		return []journal.Entry{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry, reflection, created_at FROM entries
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, wrap("list journal", err)
	}
	defer rows.Close()

	out := make([]journal.Entry, 0, limit)
	for rows.Next() {
		e := journal.Entry{UserID: userID}
		if err := rows.Scan(&e.Entry, &e.Reflection, &e.CreatedAt); err != nil {
			return nil, wrap("list journal", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list journal", err)
	}
	return out, nil
}

func (s *SQLite) listColumn(ctx context.Context, op, column string, userID int64, limit int) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}
	// rowid breaks created_at ties so rapid inserts stay newest-first.
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+column+` FROM entries
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	out := make([]string, 0, limit)
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, wrap(op, err)
		}
		out = append(out, text)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return out, nil
}
