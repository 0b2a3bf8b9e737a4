package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/foldingvectors/prism/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id            TEXT PRIMARY KEY,
	owner_email   TEXT NOT NULL,
	title         TEXT NOT NULL,
	document_text TEXT NOT NULL,
	perspectives  TEXT NOT NULL,
	results       TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'completed',
	share_token   TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_analyses_owner ON analyses(owner_email, created_at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS idx_analyses_share_token ON analyses(share_token) WHERE share_token IS NOT NULL;

CREATE TABLE IF NOT EXISTS custom_perspectives (
	id          TEXT PRIMARY KEY,
	owner_email TEXT NOT NULL,
	name        TEXT NOT NULL,
	prompt      TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_custom_perspectives_owner ON custom_perspectives(owner_email);

CREATE TABLE IF NOT EXISTS profiles (
	email           TEXT PRIMARY KEY,
	analyses_count  INTEGER NOT NULL DEFAULT 0,
	last_reset_date DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateAnalysis(ctx context.Context, a *model.Analysis) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	selectorsJSON, err := json.Marshal(a.Selectors)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal selectors")
	}
	resultsJSON, err := json.Marshal(a.Results)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal results")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses (id, owner_email, title, document_text, perspectives, results, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OwnerEmail, a.Title, a.DocumentText, string(selectorsJSON), string(resultsJSON), string(a.Status), a.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert analysis")
}

// scannable abstracts over sql.Row and sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scannable) (*model.Analysis, error) {
	var a model.Analysis
	var selectorsJSON, resultsJSON string
	var shareToken sql.NullString

	err := row.Scan(&a.ID, &a.OwnerEmail, &a.Title, &a.DocumentText,
		&selectorsJSON, &resultsJSON, &a.Status, &shareToken, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan analysis")
	}

	if err := json.Unmarshal([]byte(selectorsJSON), &a.Selectors); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal selectors")
	}
	if err := json.Unmarshal([]byte(resultsJSON), &a.Results); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal results")
	}
	if shareToken.Valid {
		a.ShareToken = shareToken.String
	}
	return &a, nil
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, id, ownerEmail string) (*model.Analysis, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_email, title, document_text, perspectives, results, status, share_token, created_at FROM analyses WHERE id = ? AND owner_email = ?`,
		id, ownerEmail,
	)
	return scanAnalysis(row)
}

func (s *SQLiteStore) GetSharedAnalysis(ctx context.Context, token string) (*model.Analysis, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_email, title, document_text, perspectives, results, status, share_token, created_at FROM analyses WHERE share_token = ?`,
		token,
	)
	return scanAnalysis(row)
}

func (s *SQLiteStore) ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.AnalysisSummary, error) {
	query := `SELECT id, title, perspectives, status, created_at FROM analyses WHERE owner_email = ? ORDER BY created_at DESC LIMIT ?`
	args := []any{filter.OwnerEmail}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analyses")
	}
	defer rows.Close()

	var out []model.AnalysisSummary
	for rows.Next() {
		var sum model.AnalysisSummary
		var selectorsJSON string
		if err := rows.Scan(&sum.ID, &sum.Title, &selectorsJSON, &sum.Status, &sum.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan analysis summary")
		}
		if err := json.Unmarshal([]byte(selectorsJSON), &sum.Selectors); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal selectors")
		}
		out = append(out, sum)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list analyses iterate")
}

func (s *SQLiteStore) RenameAnalysis(ctx context.Context, id, ownerEmail, title string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE analyses SET title = ? WHERE id = ? AND owner_email = ?`,
		title, id, ownerEmail,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: rename analysis %s", id)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) DeleteAnalysis(ctx context.Context, id, ownerEmail string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM analyses WHERE id = ? AND owner_email = ?`,
		id, ownerEmail,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete analysis %s", id)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) SetShareToken(ctx context.Context, id, ownerEmail, token string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE analyses SET share_token = ? WHERE id = ? AND owner_email = ?`,
		token, id, ownerEmail,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set share token %s", id)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) ClearShareToken(ctx context.Context, id, ownerEmail string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE analyses SET share_token = NULL WHERE id = ? AND owner_email = ?`,
		id, ownerEmail,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: clear share token %s", id)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) CreateCustomPerspective(ctx context.Context, p *model.CustomPerspective) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO custom_perspectives (id, owner_email, name, prompt, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerEmail, p.Name, p.Prompt, p.CreatedAt, p.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert custom perspective")
}

func (s *SQLiteStore) GetCustomPerspective(ctx context.Context, id, ownerEmail string) (*model.CustomPerspective, error) {
	var p model.CustomPerspective
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_email, name, prompt, created_at, updated_at FROM custom_perspectives WHERE id = ? AND owner_email = ?`,
		id, ownerEmail,
	).Scan(&p.ID, &p.OwnerEmail, &p.Name, &p.Prompt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get custom perspective %s", id)
	}
	return &p, nil
}

func (s *SQLiteStore) ListCustomPerspectives(ctx context.Context, ownerEmail string) ([]model.CustomPerspective, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_email, name, prompt, created_at, updated_at FROM custom_perspectives WHERE owner_email = ? ORDER BY created_at ASC`,
		ownerEmail,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list custom perspectives")
	}
	defer rows.Close()

	var out []model.CustomPerspective
	for rows.Next() {
		var p model.CustomPerspective
		if err := rows.Scan(&p.ID, &p.OwnerEmail, &p.Name, &p.Prompt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan custom perspective")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list custom perspectives iterate")
}

func (s *SQLiteStore) UpdateCustomPerspective(ctx context.Context, p *model.CustomPerspective) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE custom_perspectives SET name = ?, prompt = ?, updated_at = ? WHERE id = ? AND owner_email = ?`,
		p.Name, p.Prompt, time.Now().UTC(), p.ID, p.OwnerEmail,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update custom perspective %s", p.ID)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) DeleteCustomPerspective(ctx context.Context, id, ownerEmail string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM custom_perspectives WHERE id = ? AND owner_email = ?`,
		id, ownerEmail,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete custom perspective %s", id)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) CountCustomPerspectives(ctx context.Context, ownerEmail string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM custom_perspectives WHERE owner_email = ?`,
		ownerEmail,
	).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count custom perspectives")
}

func (s *SQLiteStore) GetProfile(ctx context.Context, email string) (*model.Profile, error) {
	var p model.Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT email, analyses_count, last_reset_date, updated_at FROM profiles WHERE email = ?`,
		email,
	).Scan(&p.Email, &p.AnalysesCount, &p.LastResetDate, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get profile %s", email)
	}
	return &p, nil
}

func (s *SQLiteStore) UpsertProfile(ctx context.Context, p *model.Profile) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (email, analyses_count, last_reset_date, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (email) DO UPDATE SET analyses_count = ?, last_reset_date = ?, updated_at = ?`,
		p.Email, p.AnalysesCount, p.LastResetDate, p.UpdatedAt,
		p.AnalysesCount, p.LastResetDate, p.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: upsert profile")
}

func (s *SQLiteStore) IncrementAnalyses(ctx context.Context, email string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET analyses_count = analyses_count + 1, updated_at = ? WHERE email = ?`,
		time.Now().UTC(), email,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment analyses %s", email)
	}
	return checkRowsAffected(res)
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
