package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
	TraceID string
	// Fields holds per-field validation messages when present.
	Fields map[string]string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	if !gjson.ValidBytes(body) {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}

	result := gjson.ParseBytes(body)
	errNode := result.Get("error")
	if errNode.Type == gjson.String {
		apiErr.Message = errNode.String()
		return apiErr
	}

	apiErr.Code = errNode.Get("code").String()
	apiErr.Message = errNode.Get("message").String()
	apiErr.TraceID = errNode.Get("traceId").String()
	if fields := errNode.Get("details.fields"); fields.IsObject() {
		apiErr.Fields = make(map[string]string)
		fields.ForEach(func(key, value gjson.Result) bool {
			apiErr.Fields[key.String()] = value.String()
			return true
		})
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
