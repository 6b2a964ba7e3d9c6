// Package httpapi provides the HTTP REST API for running backtests and
// browsing saved runs.
package httpapi

// ErrorResponse is the body of every non-2xx response. Errors lists each
// problem when a request fails validation.
type ErrorResponse struct {
	Error  string   `json:"error"`
	Errors []string `json:"errors,omitempty"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status     string   `json:"status"`
	Strategies []string `json:"strategies"`
}
