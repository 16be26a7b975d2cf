// Package analysis defines the contract with the downstream scoring
// collaborator. The pipeline hands it plain extracted text plus an industry
// tag; how it scores is its own business.
package analysis

import "context"

// Result is what the collaborator returns for one resume.
type Result struct {
	Score      float64  `json:"score"`
	Strengths  []string `json:"strengths,omitempty"`
	Weaknesses []string `json:"weaknesses,omitempty"`
	Feedback   string   `json:"feedback,omitempty"`
}

// Analyzer scores extracted resume text.
type Analyzer interface {
	Analyze(ctx context.Context, text, industry string) (*Result, error)
}
