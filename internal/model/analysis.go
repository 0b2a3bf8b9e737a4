package model

import (
	"strings"
	"time"
)

// AnalysisStatus represents the lifecycle state of a stored analysis.
type AnalysisStatus string

const (
	AnalysisStatusCompleted AnalysisStatus = "completed"
	AnalysisStatusFailed    AnalysisStatus = "failed"
)

// CustomPrefix tags a selector as referring to a user-authored perspective.
// A selector is either a built-in perspective ID ("investor") or a custom
// reference ("custom:<uuid>").
const CustomPrefix = "custom:"

// IsCustomSelector reports whether a selector references a custom perspective.
func IsCustomSelector(selector string) bool {
	return strings.HasPrefix(selector, CustomPrefix)
}

// CustomID extracts the custom-perspective ID from a tagged selector.
// Returns "" when the selector is not custom.
func CustomID(selector string) string {
	if !IsCustomSelector(selector) {
		return ""
	}
	return strings.TrimPrefix(selector, CustomPrefix)
}

// CustomSelector builds the tagged selector form for a custom perspective ID.
func CustomSelector(id string) string {
	return CustomPrefix + id
}

// Analysis is one persisted multi-perspective analysis of a document.
// The results map is keyed by selector and holds the raw completion text
// exactly as returned by the model; parsing happens on every read.
type Analysis struct {
	ID           string            `json:"id"`
	OwnerEmail   string            `json:"owner_email"`
	Title        string            `json:"title"`
	DocumentText string            `json:"document_text"`
	Selectors    []string          `json:"perspectives"`
	Results      map[string]string `json:"results"`
	Status       AnalysisStatus    `json:"status"`
	ShareToken   string            `json:"share_token,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// AnalysisSummary is the list-view projection of an Analysis.
type AnalysisSummary struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Selectors []string       `json:"perspectives"`
	Status    AnalysisStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// titleLimit is how many leading document characters become the title.
const titleLimit = 50

// DeriveTitle builds an analysis title from the opening of the document.
func DeriveTitle(documentText string) string {
	runes := []rune(documentText)
	if len(runes) <= titleLimit {
		return documentText + "..."
	}
	return string(runes[:titleLimit]) + "..."
}

// CustomPerspective is a user-authored analytical lens. It carries only a
// free-text prompt; the prompt compiler wraps it in a schema-enforcing
// envelope before it ever reaches the model.
type CustomPerspective struct {
	ID         string    `json:"id"`
	OwnerEmail string    `json:"owner_email"`
	Name       string    `json:"name"`
	Prompt     string    `json:"prompt"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MaxCustomPerspectives caps user-authored perspectives per owner.
const MaxCustomPerspectives = 10

// Profile tracks one caller's daily usage quota.
type Profile struct {
	Email         string    `json:"email"`
	AnalysesCount int       `json:"analyses_count"`
	LastResetDate time.Time `json:"last_reset_date"`
	UpdatedAt     time.Time `json:"updated_at"`
}
