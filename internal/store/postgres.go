package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/foldingvectors/prism/internal/db"
	"github.com/foldingvectors/prism/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_analysis":   `INSERT INTO analyses (id, owner_email, title, document_text, perspectives, results, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	"get_analysis":      `SELECT id, owner_email, title, document_text, perspectives, results, status, share_token, created_at FROM analyses WHERE id = $1 AND owner_email = $2`,
	"get_shared":        `SELECT id, owner_email, title, document_text, perspectives, results, status, share_token, created_at FROM analyses WHERE share_token = $1`,
	"get_profile":       `SELECT email, analyses_count, last_reset_date, updated_at FROM profiles WHERE email = $1`,
	"increment_profile": `UPDATE profiles SET analyses_count = analyses_count + 1, updated_at = now() WHERE email = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id            TEXT PRIMARY KEY,
	owner_email   TEXT NOT NULL,
	title         TEXT NOT NULL,
	document_text TEXT NOT NULL,
	perspectives  JSONB NOT NULL,
	results       JSONB NOT NULL,
	status        TEXT NOT NULL DEFAULT 'completed',
	share_token   TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_analyses_owner ON analyses(owner_email, created_at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS idx_analyses_share_token ON analyses(share_token) WHERE share_token IS NOT NULL;

CREATE TABLE IF NOT EXISTS custom_perspectives (
	id          TEXT PRIMARY KEY,
	owner_email TEXT NOT NULL,
	name        TEXT NOT NULL,
	prompt      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_custom_perspectives_owner ON custom_perspectives(owner_email);

CREATE TABLE IF NOT EXISTS profiles (
	email           TEXT PRIMARY KEY,
	analyses_count  INTEGER NOT NULL DEFAULT 0,
	last_reset_date TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateAnalysis(ctx context.Context, a *model.Analysis) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	selectorsJSON, err := json.Marshal(a.Selectors)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal selectors")
	}
	resultsJSON, err := json.Marshal(a.Results)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal results")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analyses (id, owner_email, title, document_text, perspectives, results, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.OwnerEmail, a.Title, a.DocumentText, selectorsJSON, resultsJSON, string(a.Status), a.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert analysis")
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, id, ownerEmail string) (*model.Analysis, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, owner_email, title, document_text, perspectives, results, status, share_token, created_at FROM analyses WHERE id = $1 AND owner_email = $2`,
		id, ownerEmail,
	)
	return scanPgAnalysis(row)
}

func (s *PostgresStore) GetSharedAnalysis(ctx context.Context, token string) (*model.Analysis, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, owner_email, title, document_text, perspectives, results, status, share_token, created_at FROM analyses WHERE share_token = $1`,
		token,
	)
	return scanPgAnalysis(row)
}

func scanPgAnalysis(row pgx.Row) (*model.Analysis, error) {
	var a model.Analysis
	var selectorsJSON, resultsJSON []byte
	var shareToken *string

	err := row.Scan(&a.ID, &a.OwnerEmail, &a.Title, &a.DocumentText,
		&selectorsJSON, &resultsJSON, &a.Status, &shareToken, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "postgres: scan analysis")
	}

	if err := json.Unmarshal(selectorsJSON, &a.Selectors); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal selectors")
	}
	if err := json.Unmarshal(resultsJSON, &a.Results); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal results")
	}
	if shareToken != nil {
		a.ShareToken = *shareToken
	}
	return &a, nil
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.AnalysisSummary, error) {
	query := `SELECT id, title, perspectives, status, created_at FROM analyses WHERE owner_email = $1 ORDER BY created_at DESC LIMIT $2`
	args := []any{filter.OwnerEmail}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET $3`
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analyses")
	}
	defer rows.Close()

	var out []model.AnalysisSummary
	for rows.Next() {
		var sum model.AnalysisSummary
		var selectorsJSON []byte
		if err := rows.Scan(&sum.ID, &sum.Title, &selectorsJSON, &sum.Status, &sum.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan analysis summary")
		}
		if err := json.Unmarshal(selectorsJSON, &sum.Selectors); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal selectors")
		}
		out = append(out, sum)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list analyses iterate")
}

func (s *PostgresStore) RenameAnalysis(ctx context.Context, id, ownerEmail, title string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE analyses SET title = $1 WHERE id = $2 AND owner_email = $3`,
		title, id, ownerEmail,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: rename analysis %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteAnalysis(ctx context.Context, id, ownerEmail string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM analyses WHERE id = $1 AND owner_email = $2`,
		id, ownerEmail,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete analysis %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetShareToken(ctx context.Context, id, ownerEmail, token string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE analyses SET share_token = $1 WHERE id = $2 AND owner_email = $3`,
		token, id, ownerEmail,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set share token %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ClearShareToken(ctx context.Context, id, ownerEmail string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE analyses SET share_token = NULL WHERE id = $1 AND owner_email = $2`,
		id, ownerEmail,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: clear share token %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateCustomPerspective(ctx context.Context, p *model.CustomPerspective) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO custom_perspectives (id, owner_email, name, prompt, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.OwnerEmail, p.Name, p.Prompt, p.CreatedAt, p.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert custom perspective")
}

func (s *PostgresStore) GetCustomPerspective(ctx context.Context, id, ownerEmail string) (*model.CustomPerspective, error) {
	var p model.CustomPerspective
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_email, name, prompt, created_at, updated_at FROM custom_perspectives WHERE id = $1 AND owner_email = $2`,
		id, ownerEmail,
	).Scan(&p.ID, &p.OwnerEmail, &p.Name, &p.Prompt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get custom perspective %s", id)
	}
	return &p, nil
}

func (s *PostgresStore) ListCustomPerspectives(ctx context.Context, ownerEmail string) ([]model.CustomPerspective, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_email, name, prompt, created_at, updated_at FROM custom_perspectives WHERE owner_email = $1 ORDER BY created_at ASC`,
		ownerEmail,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list custom perspectives")
	}
	defer rows.Close()

	var out []model.CustomPerspective
	for rows.Next() {
		var p model.CustomPerspective
		if err := rows.Scan(&p.ID, &p.OwnerEmail, &p.Name, &p.Prompt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan custom perspective")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list custom perspectives iterate")
}

func (s *PostgresStore) UpdateCustomPerspective(ctx context.Context, p *model.CustomPerspective) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE custom_perspectives SET name = $1, prompt = $2, updated_at = $3 WHERE id = $4 AND owner_email = $5`,
		p.Name, p.Prompt, time.Now().UTC(), p.ID, p.OwnerEmail,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update custom perspective %s", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteCustomPerspective(ctx context.Context, id, ownerEmail string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM custom_perspectives WHERE id = $1 AND owner_email = $2`,
		id, ownerEmail,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete custom perspective %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountCustomPerspectives(ctx context.Context, ownerEmail string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM custom_perspectives WHERE owner_email = $1`,
		ownerEmail,
	).Scan(&count)
	return count, eris.Wrap(err, "postgres: count custom perspectives")
}

func (s *PostgresStore) GetProfile(ctx context.Context, email string) (*model.Profile, error) {
	var p model.Profile
	err := s.pool.QueryRow(ctx,
		`SELECT email, analyses_count, last_reset_date, updated_at FROM profiles WHERE email = $1`,
		email,
	).Scan(&p.Email, &p.AnalysesCount, &p.LastResetDate, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get profile %s", email)
	}
	return &p, nil
}

func (s *PostgresStore) UpsertProfile(ctx context.Context, p *model.Profile) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (email, analyses_count, last_reset_date, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (email) DO UPDATE SET analyses_count = $2, last_reset_date = $3, updated_at = $4`,
		p.Email, p.AnalysesCount, p.LastResetDate, p.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: upsert profile")
}

func (s *PostgresStore) IncrementAnalyses(ctx context.Context, email string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE profiles SET analyses_count = analyses_count + 1, updated_at = now() WHERE email = $1`,
		email,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment analyses %s", email)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
