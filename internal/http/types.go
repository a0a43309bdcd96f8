package http

import "github.com/fyrsmithlabs/git2pdf/internal/converter"

// ConvertRequest is the request body for POST /api/v1/conversions.
type ConvertRequest struct {
	RepositoryURL string `json:"repository_url"`
}

// ConvertResponse is the response body for a successful conversion.
type ConvertResponse struct {
	ID            string   `json:"id"`
	Repository    string   `json:"repository"`
	Artifact      string   `json:"artifact"`
	Path          string   `json:"path"`
	SizeBytes     int64    `json:"size_bytes"`
	Pages         int      `json:"pages"`
	FilesIncluded int      `json:"files_included"`
	SkippedBySize []string `json:"skipped_by_size"`
	SkippedByType []string `json:"skipped_by_type"`
	DurationMS    int64    `json:"duration_ms"`
}

func newConvertResponse(r *converter.Result) ConvertResponse {
	resp := ConvertResponse{
		ID:            r.ID,
		Repository:    r.Repository,
		Artifact:      r.Artifact,
		Path:          r.Path,
		SizeBytes:     r.SizeBytes,
		Pages:         r.Pages,
		FilesIncluded: r.FilesIncluded,
		SkippedBySize: r.SkippedBySize,
		SkippedByType: r.SkippedByType,
		DurationMS:    r.Duration.Milliseconds(),
	}
	if resp.SkippedBySize == nil {
		resp.SkippedBySize = []string{}
	}
	if resp.SkippedByType == nil {
		resp.SkippedByType = []string{}
	}
	return resp
}

// HistoryResponse is the response body for GET /api/v1/conversions.
type HistoryResponse struct {
	Conversions []converter.Record `json:"conversions"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status            string `json:"status"`
	ActiveConversions int    `json:"active_conversions"`
	MaxConversions    int    `json:"max_conversions"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
