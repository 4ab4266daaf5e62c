package orchestrator

import (
	"github.com/GrxyScxr1/vertana-sub000/internal/evaluator"
	"github.com/GrxyScxr1/vertana-sub000/internal/glossary"
	"github.com/GrxyScxr1/vertana-sub000/internal/refiner"
)

// Event is either a *ChunkEvent or a *CompleteEvent.
type Event interface {
	// Kind is "chunk" or "complete".
	Kind() string
}

// ChunkEvent reports one translated chunk.
type ChunkEvent struct {
	Index       int    `json:"index"`
	Source      string `json:"source"`
	Translation string `json:"translation"`
	// TokensUsed covers every model call made for this chunk.
	TokensUsed int `json:"tokens_used"`
	// QualityScore and SelectedModel are set when several models competed.
	QualityScore  *float64          `json:"quality_score,omitempty"`
	SelectedModel string            `json:"selected_model,omitempty"`
	NewTerms      glossary.Glossary `json:"new_terms,omitempty"`
}

// CompleteEvent ends a successful translation.
type CompleteEvent struct {
	Translations    []string          `json:"translations"`
	TotalTokensUsed int               `json:"total_tokens_used"`
	Glossary        glossary.Glossary `json:"glossary"`
	// QualityScore is the mean chunk score from selection or refinement.
	QualityScore         *float64             `json:"quality_score,omitempty"`
	RefinementIterations *int                 `json:"refinement_iterations,omitempty"`
	Refinements          []refiner.Iteration  `json:"refinements,omitempty"`
	BoundaryEvaluations  []evaluator.Boundary `json:"boundary_evaluations,omitempty"`
}

func (*ChunkEvent) Kind() string    { return "chunk" }
func (*CompleteEvent) Kind() string { return "complete" }
