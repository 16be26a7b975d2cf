package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/resumelens/resumelens/internal/core/analysis"
	"github.com/resumelens/resumelens/internal/models"
)

// AnalysisHandler forwards a completed job's extracted text to the scoring
// collaborator.
type AnalysisHandler struct {
	jobs     *JobHandler
	analyzer analysis.Analyzer
}

func NewAnalysisHandler(jobs *JobHandler, analyzer analysis.Analyzer) *AnalysisHandler {
	return &AnalysisHandler{jobs: jobs, analyzer: analyzer}
}

// AnalyzeResume scores one completed resume. The pipeline itself never calls
// the analyzer; scoring is an explicit downstream request.
func (h *AnalysisHandler) AnalyzeResume(w http.ResponseWriter, r *http.Request) {
	if h.analyzer == nil {
		http.Error(w, "analysis is not configured", http.StatusServiceUnavailable)
		return
	}
	job := h.jobs.ownedJob(w, r)
	if job == nil {
		return
	}
	if job.Status != models.StatusCompleted || job.ExtractedText == nil {
		http.Error(w, "job has not completed", http.StatusConflict)
		return
	}

	industry := ""
	if job.TargetIndustry != nil {
		industry = *job.TargetIndustry
	}

	result, err := h.analyzer.Analyze(r.Context(), *job.ExtractedText, industry)
	if err != nil {
		http.Error(w, "analysis failed", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
