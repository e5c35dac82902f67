package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/michaelbrown/turtle/internal/storage"

	_ "modernc.org/sqlite"
)

const (
	settingPlaygroundClose = "playground_close_time"
	settingChallengeStart  = "challenge_start"
	settingChallengeEnd    = "challenge_end"
)

// SQLiteStore implements storage.Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and runs migrations.
// Use ":memory:" for an in-memory database (useful for testing).
func Open(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Each connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func (s *SQLiteStore) CreateChallenge(ctx context.Context, c *storage.Challenge) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	if c.Position == 0 {
		var max sql.NullInt64
		if err := s.db.QueryRowContext(ctx, `SELECT MAX(position) FROM challenges`).Scan(&max); err != nil {
			return fmt.Errorf("reading positions: %w", err)
		}
		c.Position = int(max.Int64) + 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO challenges (id, title, image_url, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.ImageURL, c.Position, formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting challenge: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetChallenge(ctx context.Context, id string) (*storage.Challenge, error) {
	// Try exact match first, then prefix match
	c, err := scanChallenge(s.db.QueryRowContext(ctx, `
		SELECT id, title, image_url, position, created_at, updated_at
		FROM challenges WHERE id = ?`, id))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("querying challenge: %w", err)
	}
	if id == "" {
		return nil, fmt.Errorf("challenge %w", storage.ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, image_url, position, created_at, updated_at
		FROM challenges WHERE substr(id, 1, length(?)) = ?`, id, id)
	if err != nil {
		return nil, fmt.Errorf("querying challenge: %w", err)
	}
	defer rows.Close()

	var matches []*storage.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("challenge %s: %w", id, storage.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous challenge prefix %q matches %d challenges", id, len(matches))
	}
}

func (s *SQLiteStore) ListChallenges(ctx context.Context) ([]storage.Challenge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, image_url, position, created_at, updated_at
		FROM challenges ORDER BY position, created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing challenges: %w", err)
	}
	defer rows.Close()

	challenges := []storage.Challenge{}
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		challenges = append(challenges, *c)
	}
	return challenges, rows.Err()
}

func (s *SQLiteStore) UpdateChallenge(ctx context.Context, c *storage.Challenge) error {
	c.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE challenges SET title = ?, image_url = ?, position = ?, updated_at = ? WHERE id = ?`,
		c.Title, c.ImageURL, c.Position, formatTime(c.UpdatedAt), c.ID,
	)
	if err != nil {
		return fmt.Errorf("updating challenge: %w", err)
	}
	return requireRow(res, "challenge "+c.ID)
}

func (s *SQLiteStore) DeleteChallenge(ctx context.Context, id string) error {
	// Resolve prefix first
	c, err := s.GetChallenge(ctx, id)
	if err != nil {
		return err
	}

	// Submissions go with the challenge (ON DELETE CASCADE)
	_, err = s.db.ExecContext(ctx, `DELETE FROM challenges WHERE id = ?`, c.ID)
	return err
}

func (s *SQLiteStore) SaveSubmission(ctx context.Context, username, challengeID, code string) (*storage.Submission, error) {
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (username, challenge_id, code, submitted_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(username, challenge_id) DO UPDATE SET code = excluded.code, updated_at = excluded.updated_at`,
		username, challengeID, code, now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY") {
			return nil, fmt.Errorf("challenge %s: %w", challengeID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("saving submission: %w", err)
	}
	return s.GetSubmission(ctx, username, challengeID)
}

func (s *SQLiteStore) GetSubmission(ctx context.Context, username, challengeID string) (*storage.Submission, error) {
	sub, err := scanSubmission(s.db.QueryRowContext(ctx, `
		SELECT username, challenge_id, code, submitted_at, updated_at
		FROM submissions WHERE username = ? AND challenge_id = ?`, username, challengeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("submission: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading submission: %w", err)
	}
	return sub, nil
}

func (s *SQLiteStore) ListSubmissions(ctx context.Context, challengeID string) ([]storage.Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, challenge_id, code, submitted_at, updated_at
		FROM submissions WHERE challenge_id = ? ORDER BY submitted_at, username`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	defer rows.Close()

	subs := []storage.Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (s *SQLiteStore) CreateAccount(ctx context.Context, a *storage.Account) error {
	a.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (username, password_hash, created_at) VALUES (?, ?, ?)
		ON CONFLICT(username) DO NOTHING`,
		a.Username, a.PasswordHash, formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account %s: %w", a.Username, storage.ErrConflict)
	}
	return nil
}

func (s *SQLiteStore) GetAccount(ctx context.Context, username string) (*storage.Account, error) {
	var a storage.Account
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password_hash, created_at FROM accounts WHERE username = ?`, username,
	).Scan(&a.Username, &a.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", username, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading account: %w", err)
	}
	a.CreatedAt = parseTime(createdAt)
	return &a, nil
}

func (s *SQLiteStore) GetSettings(ctx context.Context) (*storage.Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	defer rows.Close()

	values := map[string]time.Time{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		values[key] = parseTime(value)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var settings storage.Settings
	if t, ok := values[settingPlaygroundClose]; ok {
		settings.PlaygroundCloseTime = &t
	}
	start, okStart := values[settingChallengeStart]
	end, okEnd := values[settingChallengeEnd]
	if okStart && okEnd {
		settings.ChallengeTimespan = &storage.Timespan{Start: start, End: end}
	}
	return &settings, nil
}

// SaveSettings replaces every setting; nil fields are cleared.
func (s *SQLiteStore) SaveSettings(ctx context.Context, settings *storage.Settings) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM settings`); err != nil {
		return fmt.Errorf("clearing settings: %w", err)
	}
	put := func(key string, t time.Time) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO settings (key, value) VALUES (?, ?)`, key, formatTime(t))
		return err
	}
	if settings.PlaygroundCloseTime != nil {
		if err := put(settingPlaygroundClose, *settings.PlaygroundCloseTime); err != nil {
			return fmt.Errorf("saving close time: %w", err)
		}
	}
	if ts := settings.ChallengeTimespan; ts != nil {
		if err := put(settingChallengeStart, ts.Start); err != nil {
			return fmt.Errorf("saving timespan: %w", err)
		}
		if err := put(settingChallengeEnd, ts.End); err != nil {
			return fmt.Errorf("saving timespan: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	}
	return nil
}

// Scanner interface to work with both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanChallenge(s scanner) (*storage.Challenge, error) {
	var c storage.Challenge
	var createdAt, updatedAt string
	err := s.Scan(&c.ID, &c.Title, &c.ImageURL, &c.Position, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

func scanSubmission(s scanner) (*storage.Submission, error) {
	var sub storage.Submission
	var submittedAt, updatedAt string
	err := s.Scan(&sub.Username, &sub.ChallengeID, &sub.Code, &submittedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	sub.SubmittedAt = parseTime(submittedAt)
	sub.UpdatedAt = parseTime(updatedAt)
	return &sub, nil
}
