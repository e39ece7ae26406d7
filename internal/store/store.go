// Package store holds conversation records for the lifetime of the
// process or, with the sqlite backend, across restarts. A conversation is
// written only by the workflow run that owns it; reads may happen
// concurrently from status endpoints.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned by update operations on unknown conversations.
var ErrNotFound = errors.New("conversation not found")

// defaultListLimit is the page size List falls back to when the caller
// passes a non-positive limit. Both backends honor it.
const defaultListLimit = 10

// Conversation statuses. Transitions are monotonic through the success
// path; StatusError is absorbing and reachable from any non-terminal state.
const (
	StatusPending            = "pending"
	StatusSpecialistAnalysis = "specialist_analysis"
	StatusVerification       = "verification"
	StatusSummaryGeneration  = "summary_generation"
	StatusCompleted          = "completed"
	StatusError              = "error"
)

type FileDescriptor struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

type VerifiedResult struct {
	OriginalAnalysis   string `json:"original_analysis"`
	VerificationResult string `json:"verification_result"`
	Status             string `json:"status"`
}

type ReportMetrics struct {
	MarketingScore int `json:"marketing_score"`
	ProductScore   int `json:"product_score"`
	LegalScore     int `json:"legal_score"`
}

type Report struct {
	OverallScore      int                       `json:"overall_score"`
	Recommendation    string                    `json:"recommendation"`
	Metrics           ReportMetrics             `json:"metrics"`
	Summary           string                    `json:"summary"`
	KeyStrengths      []string                  `json:"key_strengths"`
	CriticalRisks     []string                  `json:"critical_risks"`
	Recommendations   []string                  `json:"recommendations"`
	NextSteps         []string                  `json:"next_steps"`
	VerifiedAnalyses  map[string]VerifiedResult `json:"verified_analyses"`
	ReportGeneratedAt time.Time                 `json:"report_generated_at"`
}

type Conversation struct {
	ID                string                    `json:"id"`
	CreatedAt         time.Time                 `json:"created_at"`
	Prompt            string                    `json:"prompt"`
	Files             []FileDescriptor          `json:"files"`
	Status            string                    `json:"status"`
	Error             string                    `json:"error,omitempty"`
	SpecialistResults map[string]string         `json:"specialist_results,omitempty"`
	VerifiedResults   map[string]VerifiedResult `json:"verified_results,omitempty"`
	FinalReport       *Report                   `json:"final_report,omitempty"`
	CompletedAt       *time.Time                `json:"completed_at,omitempty"`
}

// Store is the conversation persistence contract. The memory backend is
// the default; the sqlite backend survives restarts. Each mutation is
// atomic from a reader's perspective; no cross-operation transactions are
// needed because a conversation has a single writer.
type Store interface {
	Create(conv *Conversation) error
	Get(id string) (*Conversation, error) // nil, nil when missing
	UpdateStatus(id, status string) error
	SetSpecialistResults(id string, results map[string]string) error
	SetVerifiedResults(id string, results map[string]VerifiedResult) error
	SetFinalReport(id string, report *Report, completedAt time.Time) error
	SetError(id, message string) error
	Delete(id string) (bool, error)
	List(limit, offset int) ([]Conversation, int, error)
	Close() error
}
