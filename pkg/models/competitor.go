package models

// GenerateReportRequest is the body of both generate-report endpoints.
type GenerateReportRequest struct {
	Force bool `json:"force,omitempty"`
}

// GenerateReportResponse answers POST /competitor/analysis/{id}/generate-report.
type GenerateReportResponse struct {
	ReportID  string       `json:"report_id"`
	Status    ReportStatus `json:"status"`
	Message   string       `json:"message"`
	StartedAt string       `json:"started_at"`
}

// GenerateReportAsyncResponse answers POST /competitor/analysis/{id}/generate-report-async.
type GenerateReportAsyncResponse struct {
	TaskID    string       `json:"task_id"`
	Status    ReportStatus `json:"status"`
	Message   string       `json:"message"`
	StartedAt string       `json:"started_at"`
}

// ReportStatusResponse answers GET /competitor/analysis/{id}/report-status.
type ReportStatusResponse struct {
	TaskID       string       `json:"task_id,omitempty"`
	ReportID     string       `json:"report_id,omitempty"`
	Status       ReportStatus `json:"status"`
	Progress     int          `json:"progress,omitempty"`
	Message      string       `json:"message,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	StartedAt    string       `json:"started_at,omitempty"`
	CompletedAt  string       `json:"completed_at,omitempty"`
}

// CompetitorProduct is one product row in an analysis result.
type CompetitorProduct struct {
	ID          string  `json:"id"`
	ASIN        string  `json:"asin"`
	Title       string  `json:"title"`
	Brand       string  `json:"brand"`
	Price       float64 `json:"price"`
	BSR         int     `json:"bsr"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
}

// Recommendation is one LLM-generated suggestion in a completed report.
type Recommendation struct {
	Type        string `json:"type"`
	Priority    string `json:"priority"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
}

// AnalysisResults answers GET /competitor/analysis/{id}. Status carries the
// latest report status and doubles as the sync poll probe.
type AnalysisResults struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Description     string              `json:"description"`
	MainProduct     CompetitorProduct   `json:"main_product"`
	Competitors     []CompetitorProduct `json:"competitors"`
	Recommendations []Recommendation    `json:"recommendations,omitempty"`
	Status          ReportStatus        `json:"status"`
	LastUpdated     string              `json:"last_updated"`
}

// AnalysisGroup is a summary row of GET /competitor/analysis.
type AnalysisGroup struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	MainProductASIN string `json:"main_product_asin"`
	CompetitorCount int    `json:"competitor_count"`
	Status          string `json:"status"`
	LastAnalysis    string `json:"last_analysis"`
	CreatedAt       string `json:"created_at"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type ListAnalysisGroupsRequest struct {
	Page   int
	Limit  int
	Status string
}

type ListAnalysisGroupsResponse struct {
	Groups     []AnalysisGroup `json:"groups"`
	Pagination Pagination      `json:"pagination"`
}

// CreateAnalysisRequest is the body of POST /competitor/analysis.
type CreateAnalysisRequest struct {
	Name                 string   `json:"name"`
	Description          string   `json:"description,omitempty"`
	MainProductID        string   `json:"main_product_id"`
	CompetitorProductIDs []string `json:"competitor_product_ids"`
	AnalysisMetrics      []string `json:"analysis_metrics,omitempty"`
}

type CreateAnalysisResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	MainProductID string `json:"main_product_id"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
}
