package models

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Type      string `json:"type,omitempty"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse is returned by the health endpoint
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Time     string `json:"time"`
	Provider string `json:"landmark_provider"`
	Storage  string `json:"template_storage"`
}

// StatsResponse is returned by the stats endpoint
type StatsResponse struct {
	TotalSwaps            int64    `json:"total_swaps"`
	SuccessfulSwaps       int64    `json:"successful_swaps"`
	DegradedSwaps         int64    `json:"degraded_swaps"`
	FailedSwaps           int64    `json:"failed_swaps"`
	TemplateFetchFailures int64    `json:"template_fetch_failures"`
	AvgProcessingTimeMs   float64  `json:"avg_processing_time_ms"`
	Modes                 []string `json:"modes"`
}
