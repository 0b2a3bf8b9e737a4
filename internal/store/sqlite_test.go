package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foldingvectors/prism/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_AnalysisLifecycle(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	a := &model.Analysis{
		OwnerEmail:   "owner@example.com",
		Title:        "Quarterly strategy review docum...",
		DocumentText: "Quarterly strategy review document text",
		Selectors:    []string{"investor", "legal", "custom:abc"},
		Results: map[string]string{
			"investor":   `{"Summary": "good"}`,
			"legal":      `{"Summary": "risky"}`,
			"custom:abc": `{"summary": "fine"}`,
		},
		Status: model.AnalysisStatusCompleted,
	}
	require.NoError(t, s.CreateAnalysis(ctx, a))
	require.NotEmpty(t, a.ID)

	got, err := s.GetAnalysis(ctx, a.ID, "owner@example.com")
	require.NoError(t, err)
	assert.Equal(t, a.Selectors, got.Selectors)
	assert.Equal(t, a.Results, got.Results)
	assert.Empty(t, got.ShareToken)

	// ownership scoping
	_, err = s.GetAnalysis(ctx, a.ID, "other@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	sums, err := s.ListAnalyses(ctx, AnalysisFilter{OwnerEmail: "owner@example.com"})
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, a.ID, sums[0].ID)
	assert.Equal(t, a.Selectors, sums[0].Selectors)

	require.NoError(t, s.RenameAnalysis(ctx, a.ID, "owner@example.com", "Q3 review"))
	assert.ErrorIs(t, s.RenameAnalysis(ctx, a.ID, "other@example.com", "hijack"), ErrNotFound)
	got, err = s.GetAnalysis(ctx, a.ID, "owner@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Q3 review", got.Title)

	require.NoError(t, s.DeleteAnalysis(ctx, a.ID, "owner@example.com"))
	_, err = s.GetAnalysis(ctx, a.ID, "owner@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ListAnalysesPagination(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.CreateAnalysis(ctx, &model.Analysis{
			OwnerEmail:   "owner@example.com",
			Title:        "doc",
			DocumentText: "doc",
			Selectors:    []string{"investor"},
			Results:      map[string]string{"investor": "{}"},
			Status:       model.AnalysisStatusCompleted,
			CreatedAt:    time.Now().UTC().Add(time.Duration(i) * time.Second),
		}))
	}

	page, err := s.ListAnalyses(ctx, AnalysisFilter{OwnerEmail: "owner@example.com", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := s.ListAnalyses(ctx, AnalysisFilter{OwnerEmail: "owner@example.com", Limit: 10, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, rest, 3)
}

func TestSQLiteStore_ShareTokens(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	a := &model.Analysis{
		OwnerEmail:   "owner@example.com",
		Title:        "t",
		DocumentText: "d",
		Selectors:    []string{"investor"},
		Results:      map[string]string{"investor": "{}"},
		Status:       model.AnalysisStatusCompleted,
	}
	require.NoError(t, s.CreateAnalysis(ctx, a))

	require.NoError(t, s.SetShareToken(ctx, a.ID, "owner@example.com", "tok123"))

	shared, err := s.GetSharedAnalysis(ctx, "tok123")
	require.NoError(t, err)
	assert.Equal(t, a.ID, shared.ID)
	assert.Equal(t, "tok123", shared.ShareToken)

	// only the owner can revoke
	err = s.ClearShareToken(ctx, a.ID, "other@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.ClearShareToken(ctx, a.ID, "owner@example.com"))
	_, err = s.GetSharedAnalysis(ctx, "tok123")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_CustomPerspectives(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	p := &model.CustomPerspective{
		OwnerEmail: "owner@example.com",
		Name:       "Supply Chain Realist",
		Prompt:     "Evaluate logistics exposure.",
	}
	require.NoError(t, s.CreateCustomPerspective(ctx, p))
	require.NotEmpty(t, p.ID)

	got, err := s.GetCustomPerspective(ctx, p.ID, "owner@example.com")
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)

	_, err = s.GetCustomPerspective(ctx, p.ID, "other@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	p.Name = "Logistics Hawk"
	p.Prompt = "Evaluate supplier concentration."
	require.NoError(t, s.UpdateCustomPerspective(ctx, p))

	list, err := s.ListCustomPerspectives(ctx, "owner@example.com")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Logistics Hawk", list[0].Name)

	n, err := s.CountCustomPerspectives(ctx, "owner@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.DeleteCustomPerspective(ctx, p.ID, "owner@example.com"))
	n, err = s.CountCustomPerspectives(ctx, "owner@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSQLiteStore_Profiles(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.GetProfile(ctx, "new@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.IncrementAnalyses(ctx, "new@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	p := &model.Profile{
		Email:         "new@example.com",
		AnalysesCount: 0,
		LastResetDate: time.Now().UTC(),
	}
	require.NoError(t, s.UpsertProfile(ctx, p))

	require.NoError(t, s.IncrementAnalyses(ctx, "new@example.com"))
	require.NoError(t, s.IncrementAnalyses(ctx, "new@example.com"))

	got, err := s.GetProfile(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, got.AnalysesCount)

	// upsert resets the counter in place
	got.AnalysesCount = 0
	require.NoError(t, s.UpsertProfile(ctx, got))
	got, err = s.GetProfile(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, got.AnalysesCount)
}
