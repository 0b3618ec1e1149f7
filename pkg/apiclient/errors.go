package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIError is an error response from the API. The server answers with RFC
// 7807 problem details; health probes carry an "error" field and
// middleware failures are plain text.
type APIError struct {
	StatusCode int
	Title      string
	Message    string
	Code       string
}

type errorBody struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Code   string `json:"code"`
	Error  string `json:"error"`
}

func parseError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}
	var b errorBody
	if json.Unmarshal(body, &b) == nil {
		apiErr.Title, apiErr.Code = b.Title, b.Code
		for _, msg := range []string{b.Detail, b.Error, b.Title} {
			if msg != "" {
				apiErr.Message = msg
				break
			}
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// IsAuthError returns true if the request was not authenticated or not
// allowed.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsNotFound returns true if this is a not found error.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsConflict returns true if this is a conflict error.
func (e *APIError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

// IsDataLoss reports whether the node applied the change but failed to
// persist its configuration.
func (e *APIError) IsDataLoss() bool {
	return e.Code == "DATA_LOSS"
}
