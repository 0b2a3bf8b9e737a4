// Package analyzer orchestrates the perspective fan-out: it validates a
// request, compiles one prompt per selector, dispatches the completion calls
// concurrently, and persists the assembled analysis.
package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/foldingvectors/prism/internal/model"
	"github.com/foldingvectors/prism/internal/prompt"
	"github.com/foldingvectors/prism/internal/quota"
	"github.com/foldingvectors/prism/internal/registry"
	"github.com/foldingvectors/prism/internal/store"
	"github.com/foldingvectors/prism/pkg/anthropic"
)

const batchConcurrency = 8

// noTextPlaceholder is stored when a completion succeeds but carries no
// text-typed content block.
const noTextPlaceholder = "Error processing response"

var (
	ErrEmptyDocument = eris.New("analyzer: document text is empty")
	ErrNoSelectors   = eris.New("analyzer: no perspectives selected")
)

// UnknownSelectorError names the selector that failed validation. No
// completion call is made once any selector fails to resolve.
type UnknownSelectorError struct {
	Selector string
}

func (e *UnknownSelectorError) Error() string {
	return fmt.Sprintf("analyzer: unknown perspective %q", e.Selector)
}

// Options configures the completion calls.
type Options struct {
	Model       string
	MaxTokens   int64
	CallTimeout time.Duration
}

func (o *Options) applyDefaults() {
	if o.Model == "" {
		o.Model = "claude-sonnet-4-20250514"
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 4096
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 2 * time.Minute
	}
}

// Store is the slice of the persistence layer the analyzer needs.
type Store interface {
	GetCustomPerspective(ctx context.Context, id, ownerEmail string) (*model.CustomPerspective, error)
	CreateAnalysis(ctx context.Context, a *model.Analysis) error
}

// Analyzer runs multi-perspective document analyses.
type Analyzer struct {
	client anthropic.Client
	store  Store
	quota  *quota.Manager
	opts   Options
}

func New(client anthropic.Client, st Store, qm *quota.Manager, opts Options) *Analyzer {
	opts.applyDefaults()
	return &Analyzer{client: client, store: st, quota: qm, opts: opts}
}

// Request is one inbound analysis request. Selectors are built-in perspective
// IDs or custom references in "custom:<id>" form, dispatched in order.
type Request struct {
	OwnerEmail string
	Document   string
	Selectors  []string
}

type compiledCall struct {
	selector string
	prompt   string
}

// Analyze validates the request, fans out one completion per selector, and
// persists the result. A single selector's failure never aborts the batch:
// its result slot records an error placeholder instead. Persistence failures
// are logged and the in-memory analysis is still returned.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*model.Analysis, error) {
	if strings.TrimSpace(req.Document) == "" {
		return nil, ErrEmptyDocument
	}
	if len(req.Selectors) == 0 {
		return nil, ErrNoSelectors
	}

	if err := a.quota.Check(ctx, req.OwnerEmail); err != nil {
		return nil, err
	}

	// Resolve every selector before dispatching anything.
	calls := make([]compiledCall, 0, len(req.Selectors))
	for _, sel := range req.Selectors {
		if model.IsCustomSelector(sel) {
			cp, err := a.store.GetCustomPerspective(ctx, model.CustomID(sel), req.OwnerEmail)
			if eris.Is(err, store.ErrNotFound) {
				return nil, &UnknownSelectorError{Selector: sel}
			}
			if err != nil {
				return nil, eris.Wrapf(err, "analyzer: resolve %s", sel)
			}
			calls = append(calls, compiledCall{selector: sel, prompt: prompt.ForCustom(*cp, req.Document)})
			continue
		}
		p, ok := registry.Resolve(sel)
		if !ok {
			return nil, &UnknownSelectorError{Selector: sel}
		}
		calls = append(calls, compiledCall{selector: sel, prompt: prompt.ForBuiltIn(p, req.Document)})
	}

	started := time.Now()
	results := make([]string, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = a.runPerspective(gctx, call)
			return nil // per-selector failures never abort the batch
		})
	}
	g.Wait() //nolint:errcheck // workers always return nil

	resultMap := make(map[string]string, len(calls))
	for i, call := range calls {
		resultMap[call.selector] = results[i]
	}

	analysis := &model.Analysis{
		OwnerEmail:   req.OwnerEmail,
		Title:        model.DeriveTitle(req.Document),
		DocumentText: req.Document,
		Selectors:    req.Selectors,
		Results:      resultMap,
		Status:       model.AnalysisStatusCompleted,
	}

	if err := a.store.CreateAnalysis(ctx, analysis); err != nil {
		// the caller still gets the finished analysis
		zap.L().Error("failed to persist analysis",
			zap.String("owner", req.OwnerEmail),
			zap.Error(err))
	}
	a.quota.Record(ctx, req.OwnerEmail)

	zap.L().Info("analysis complete",
		zap.String("id", analysis.ID),
		zap.Int("perspectives", len(calls)),
		zap.Duration("elapsed", time.Since(started)))

	return analysis, nil
}

// runPerspective issues one completion call and maps every failure mode to a
// stored string.
func (a *Analyzer) runPerspective(ctx context.Context, call compiledCall) string {
	callCtx, cancel := context.WithTimeout(ctx, a.opts.CallTimeout)
	defer cancel()

	resp, err := a.client.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:     a.opts.Model,
		MaxTokens: a.opts.MaxTokens,
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: call.prompt,
		}},
	})
	if err != nil {
		zap.L().Error("perspective analysis failed",
			zap.String("perspective", call.selector),
			zap.Error(err))
		return fmt.Sprintf("Error analyzing from this perspective: %s", err)
	}

	resp.Usage.LogCost(a.opts.Model, call.selector)

	text := resp.FirstText()
	if text == "" {
		return noTextPlaceholder
	}
	return text
}
