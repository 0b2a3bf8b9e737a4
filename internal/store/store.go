package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/foldingvectors/prism/internal/model"
)

// ErrNotFound is returned when a lookup matches no row, including
// ownership-scoped lookups where the row exists but belongs to someone else.
var ErrNotFound = eris.New("store: not found")

// AnalysisFilter specifies criteria for listing analyses.
type AnalysisFilter struct {
	OwnerEmail string `json:"owner_email,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for analyses, custom perspectives,
// and usage profiles.
type Store interface {
	// Analyses
	CreateAnalysis(ctx context.Context, a *model.Analysis) error
	GetAnalysis(ctx context.Context, id, ownerEmail string) (*model.Analysis, error)
	ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.AnalysisSummary, error)
	RenameAnalysis(ctx context.Context, id, ownerEmail, title string) error
	DeleteAnalysis(ctx context.Context, id, ownerEmail string) error

	// Sharing
	SetShareToken(ctx context.Context, id, ownerEmail, token string) error
	ClearShareToken(ctx context.Context, id, ownerEmail string) error
	GetSharedAnalysis(ctx context.Context, token string) (*model.Analysis, error)

	// Custom perspectives
	CreateCustomPerspective(ctx context.Context, p *model.CustomPerspective) error
	GetCustomPerspective(ctx context.Context, id, ownerEmail string) (*model.CustomPerspective, error)
	ListCustomPerspectives(ctx context.Context, ownerEmail string) ([]model.CustomPerspective, error)
	UpdateCustomPerspective(ctx context.Context, p *model.CustomPerspective) error
	DeleteCustomPerspective(ctx context.Context, id, ownerEmail string) error
	CountCustomPerspectives(ctx context.Context, ownerEmail string) (int, error)

	// Usage profiles
	GetProfile(ctx context.Context, email string) (*model.Profile, error)
	UpsertProfile(ctx context.Context, p *model.Profile) error
	IncrementAnalyses(ctx context.Context, email string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
