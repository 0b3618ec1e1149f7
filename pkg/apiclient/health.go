package apiclient

import (
	"encoding/json"
	"time"
)

// HealthResponse is the body of the health endpoints.
type HealthResponse struct {
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Health returns the liveness status of the node.
func (c *Client) Health() (*HealthResponse, error) {
	return getResource[HealthResponse](c, "/health")
}

// Ready returns the readiness status of the node. A node that is not ready
// answers 503, which is returned as an *APIError.
func (c *Client) Ready() (*HealthResponse, error) {
	return getResource[HealthResponse](c, "/health/ready")
}
