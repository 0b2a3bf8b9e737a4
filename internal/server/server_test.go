package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/foldingvectors/prism/internal/analyzer"
	"github.com/foldingvectors/prism/internal/identity"
	"github.com/foldingvectors/prism/internal/model"
	"github.com/foldingvectors/prism/internal/quota"
	"github.com/foldingvectors/prism/internal/store"
)

const testEmail = "ana@example.com"

func newTestServer(t *testing.T) (*Server, *store.SQLiteStore, *mockRunner) {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	runner := new(mockRunner)
	srv := New(st, runner, identity.NewHeaderResolver(""), Config{})
	return srv, st, runner
}

func do(t *testing.T, srv *Server, method, path, email string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	if email != "" {
		r.Header.Set(identity.DefaultHeader, email)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(into))
}

func seedAnalysis(t *testing.T, st store.Store, owner, title string) *model.Analysis {
	t.Helper()
	a := &model.Analysis{
		OwnerEmail:   owner,
		Title:        title,
		DocumentText: "A strategy memo about expansion plans.",
		Selectors:    []string{"investor", "legal"},
		Results: map[string]string{
			"investor": `{"Summary": "strong growth", "Opportunities": ["enterprise market expansion", "enterprise pricing power"], "Recommendation": "recommend proceeding"}`,
			"legal":    `{"Summary": "exposure is manageable", "Red_Flags": ["pending suit"], "Risks": ["enterprise market exposure"], "Recommendation": "proceed with caution"}`,
		},
		Status: model.AnalysisStatusCompleted,
	}
	require.NoError(t, st.CreateAnalysis(context.Background(), a))
	return a
}

func TestAnalyzeRequiresIdentity(t *testing.T) {
	srv, _, _ := newTestServer(t)
	w := do(t, srv, http.MethodPost, "/api/analyze", "", analyzeRequest{Document: "doc"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAnalyzeHappyPath(t *testing.T) {
	srv, _, runner := newTestServer(t)

	saved := &model.Analysis{ID: "a1", Title: "doc...", Selectors: []string{"investor"}}
	runner.On("Analyze", mock.Anything, analyzer.Request{
		OwnerEmail: testEmail,
		Document:   "doc text",
		Selectors:  []string{"investor"},
	}).Return(saved, nil)

	w := do(t, srv, http.MethodPost, "/api/analyze", testEmail,
		analyzeRequest{Document: "doc text", Selectors: []string{"investor"}})
	require.Equal(t, http.StatusCreated, w.Code)

	var got model.Analysis
	decode(t, w, &got)
	assert.Equal(t, "a1", got.ID)
	runner.AssertExpectations(t)
}

func TestAnalyzeErrorMapping(t *testing.T) {
	srv, _, runner := newTestServer(t)

	runner.On("Analyze", mock.Anything, mock.MatchedBy(func(r analyzer.Request) bool {
		return r.Document == "over quota"
	})).Return(nil, &quota.ExceededError{Limit: 10, Used: 10})
	runner.On("Analyze", mock.Anything, mock.MatchedBy(func(r analyzer.Request) bool {
		return r.Document == "bad selector"
	})).Return(nil, &analyzer.UnknownSelectorError{Selector: "astrologer"})
	runner.On("Analyze", mock.Anything, mock.MatchedBy(func(r analyzer.Request) bool {
		return r.Document == ""
	})).Return(nil, analyzer.ErrEmptyDocument)

	w := do(t, srv, http.MethodPost, "/api/analyze", testEmail, analyzeRequest{Document: "over quota"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	var quotaBody map[string]any
	decode(t, w, &quotaBody)
	assert.EqualValues(t, 10, quotaBody["limit"])

	w = do(t, srv, http.MethodPost, "/api/analyze", testEmail, analyzeRequest{Document: "bad selector"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodPost, "/api/analyze", testEmail, analyzeRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAnalysesPagination(t *testing.T) {
	srv, st, _ := newTestServer(t)
	for i := 0; i < 3; i++ {
		seedAnalysis(t, st, testEmail, fmt.Sprintf("memo %d", i))
	}
	seedAnalysis(t, st, "other@example.com", "not mine")

	var page struct {
		Analyses []model.AnalysisSummary `json:"analyses"`
		HasMore  bool                    `json:"hasMore"`
	}
	w := do(t, srv, http.MethodGet, "/api/analyses?limit=2", testEmail, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &page)
	assert.Len(t, page.Analyses, 2)
	assert.True(t, page.HasMore)

	w = do(t, srv, http.MethodGet, "/api/analyses?limit=2&offset=2", testEmail, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &page)
	assert.Len(t, page.Analyses, 1)
	assert.False(t, page.HasMore)
}

func TestAnalysisRenameAndDelete(t *testing.T) {
	srv, st, _ := newTestServer(t)
	a := seedAnalysis(t, st, testEmail, "draft title")

	w := do(t, srv, http.MethodPatch, "/api/analyses/"+a.ID, testEmail, map[string]string{"title": "Q3 review"})
	require.Equal(t, http.StatusOK, w.Code)

	var got model.Analysis
	w = do(t, srv, http.MethodGet, "/api/analyses/"+a.ID, testEmail, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &got)
	assert.Equal(t, "Q3 review", got.Title)

	// empty title rejected
	w = do(t, srv, http.MethodPatch, "/api/analyses/"+a.ID, testEmail, map[string]string{"title": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// not the owner
	w = do(t, srv, http.MethodGet, "/api/analyses/"+a.ID, "other@example.com", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodDelete, "/api/analyses/"+a.ID, testEmail, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, srv, http.MethodGet, "/api/analyses/"+a.ID, testEmail, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestShareLifecycle(t *testing.T) {
	srv, st, _ := newTestServer(t)
	a := seedAnalysis(t, st, testEmail, "shared memo")

	var issued map[string]string
	w := do(t, srv, http.MethodPost, "/api/analyses/"+a.ID+"/share", testEmail, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	decode(t, w, &issued)
	token := issued["token"]
	assert.Len(t, token, 32)

	// reissue keeps the token stable
	w = do(t, srv, http.MethodPost, "/api/analyses/"+a.ID+"/share", testEmail, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &issued)
	assert.Equal(t, token, issued["token"])

	var status map[string]any
	w = do(t, srv, http.MethodGet, "/api/analyses/"+a.ID+"/share", testEmail, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &status)
	assert.Equal(t, true, status["shared"])

	// public fetch needs no identity and hides the owner
	var shared model.Analysis
	w = do(t, srv, http.MethodGet, "/api/shared/"+token, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &shared)
	assert.Equal(t, a.ID, shared.ID)
	assert.Empty(t, shared.OwnerEmail)

	w = do(t, srv, http.MethodDelete, "/api/analyses/"+a.ID+"/share", testEmail, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, srv, http.MethodGet, "/api/shared/"+token, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCustomPerspectiveCRUD(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var created model.CustomPerspective
	w := do(t, srv, http.MethodPost, "/api/perspectives/custom", testEmail,
		customPerspectiveRequest{Name: "Supply Chain Realist", Prompt: "Assess supply chain resilience."})
	require.Equal(t, http.StatusCreated, w.Code)
	decode(t, w, &created)
	require.NotEmpty(t, created.ID)

	// validation
	w = do(t, srv, http.MethodPost, "/api/perspectives/custom", testEmail,
		customPerspectiveRequest{Name: "", Prompt: "p"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, srv, http.MethodPost, "/api/perspectives/custom", testEmail,
		customPerspectiveRequest{Name: strings.Repeat("x", 101), Prompt: "p"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodPut, "/api/perspectives/custom/"+created.ID, testEmail,
		customPerspectiveRequest{Name: "Supply Chain Skeptic", Prompt: "Assess fragility."})
	require.Equal(t, http.StatusOK, w.Code)

	var fetched model.CustomPerspective
	w = do(t, srv, http.MethodGet, "/api/perspectives/custom/"+created.ID, testEmail, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &fetched)
	assert.Equal(t, "Supply Chain Skeptic", fetched.Name)

	var list struct {
		Perspectives []model.CustomPerspective `json:"perspectives"`
	}
	w = do(t, srv, http.MethodGet, "/api/perspectives/custom", testEmail, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &list)
	assert.Len(t, list.Perspectives, 1)

	w = do(t, srv, http.MethodDelete, "/api/perspectives/custom/"+created.ID, testEmail, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, srv, http.MethodGet, "/api/perspectives/custom/"+created.ID, testEmail, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCustomPerspectiveCap(t *testing.T) {
	srv, _, _ := newTestServer(t)
	for i := 0; i < model.MaxCustomPerspectives; i++ {
		w := do(t, srv, http.MethodPost, "/api/perspectives/custom", testEmail,
			customPerspectiveRequest{Name: fmt.Sprintf("Lens %d", i), Prompt: "p"})
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w := do(t, srv, http.MethodPost, "/api/perspectives/custom", testEmail,
		customPerspectiveRequest{Name: "One Too Many", Prompt: "p"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPerspectiveCatalog(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var catalog struct {
		Categories []struct {
			ID           string           `json:"id"`
			Perspectives []map[string]any `json:"perspectives"`
		} `json:"categories"`
		Defaults []string `json:"defaults"`
	}
	w := do(t, srv, http.MethodGet, "/api/perspectives", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &catalog)

	require.Len(t, catalog.Categories, 5)
	assert.Equal(t, []string{"investor", "legal", "strategy"}, catalog.Defaults)

	total := 0
	for _, c := range catalog.Categories {
		total += len(c.Perspectives)
	}
	assert.Equal(t, 21, total)
}

func TestSynthesisEndpoint(t *testing.T) {
	srv, st, _ := newTestServer(t)
	a := seedAnalysis(t, st, testEmail, "deal review")

	var report struct {
		Summaries []struct {
			Name  string `json:"name"`
			Score int    `json:"score"`
		} `json:"summaries"`
		Composite float64 `json:"composite"`
	}
	w := do(t, srv, http.MethodGet, "/api/analyses/"+a.ID+"/synthesis", testEmail, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &report)

	require.Len(t, report.Summaries, 2)
	assert.Equal(t, "Investor", report.Summaries[0].Name)
	assert.Equal(t, "Legal Counsel", report.Summaries[1].Name)
	assert.Greater(t, report.Composite, 0.0)
}

func TestExportMemoText(t *testing.T) {
	srv, st, _ := newTestServer(t)
	a := seedAnalysis(t, st, testEmail, "deal review")

	w := do(t, srv, http.MethodGet, "/api/analyses/"+a.ID+"/export/memo?format=text", testEmail, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "MEMORANDUM")
	assert.Contains(t, body, "1. INVESTOR")
	assert.Contains(t, body, "2. LEGAL COUNSEL")
	assert.Contains(t, body, "CONFIDENTIAL")
}

func TestExportMemoDirectives(t *testing.T) {
	srv, st, _ := newTestServer(t)
	a := seedAnalysis(t, st, testEmail, "deal review")

	var doc struct {
		Filename string `json:"filename"`
		Pages    []any  `json:"pages"`
	}
	w := do(t, srv, http.MethodGet, "/api/analyses/"+a.ID+"/export/memo", testEmail, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &doc)
	assert.Equal(t, "deal_review_Memo.pdf", doc.Filename)
	assert.NotEmpty(t, doc.Pages)
}

func TestExportScores(t *testing.T) {
	srv, st, _ := newTestServer(t)
	a := seedAnalysis(t, st, testEmail, "deal review")

	w := do(t, srv, http.MethodGet, "/api/analyses/"+a.ID+"/export/scores", testEmail, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "deal_review_Scores.xlsx")
	assert.NotZero(t, w.Body.Len())
}
