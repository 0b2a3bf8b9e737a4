package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foldingvectors/prism/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetAnalysis_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, owner_email, title, document_text, perspectives, results, status, share_token, created_at FROM analyses WHERE id = \$1 AND owner_email = \$2`).
		WithArgs("missing-id", "a@b.com").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetAnalysis(context.Background(), "missing-id", "a@b.com")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateAnalysis(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO analyses`).
		WithArgs(pgxmock.AnyArg(), "a@b.com", "A revenue memo...", "A revenue memo",
			[]byte(`["investor","legal"]`), []byte(`{"investor":"{}"}`),
			"completed", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	a := &model.Analysis{
		OwnerEmail:   "a@b.com",
		Title:        "A revenue memo...",
		DocumentText: "A revenue memo",
		Selectors:    []string{"investor", "legal"},
		Results:      map[string]string{"investor": "{}"},
		Status:       model.AnalysisStatusCompleted,
	}
	err := s.CreateAnalysis(context.Background(), a)
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.False(t, a.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSharedAnalysis(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	token := "deadbeefdeadbeefdeadbeefdeadbeef"

	rows := pgxmock.NewRows([]string{"id", "owner_email", "title", "document_text", "perspectives", "results", "status", "share_token", "created_at"}).
		AddRow("an-1", "a@b.com", "t...", "doc", []byte(`["investor"]`), []byte(`{"investor":"{\"Summary\":\"ok\"}"}`), model.AnalysisStatusCompleted, &token, now)

	mock.ExpectQuery(`SELECT .+ FROM analyses WHERE share_token = \$1`).
		WithArgs(token).
		WillReturnRows(rows)

	a, err := s.GetSharedAnalysis(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "an-1", a.ID)
	assert.Equal(t, token, a.ShareToken)
	assert.Equal(t, []string{"investor"}, a.Selectors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetShareToken_NotOwned(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE analyses SET share_token = \$1 WHERE id = \$2 AND owner_email = \$3`).
		WithArgs("tok", "an-1", "intruder@b.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SetShareToken(context.Background(), "an-1", "intruder@b.com", "tok")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_IncrementAnalyses_MissingProfile(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE profiles SET analyses_count = analyses_count \+ 1`).
		WithArgs("ghost@b.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.IncrementAnalyses(context.Background(), "ghost@b.com")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountCustomPerspectives(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM custom_perspectives WHERE owner_email = \$1`).
		WithArgs("a@b.com").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	n, err := s.CountCustomPerspectives(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
