package backend

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// Op names a backend operation.
type Op string

const (
	OpAsk   Op = "ask"
	OpCrawl Op = "crawl"
	OpImage Op = "image"
)

// StatusError reports a non-2xx response. Error() returns the fixed text
// shown to the user; Detail keeps whatever the server said.
type StatusError struct {
	Op         Op
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	switch e.Op {
	case OpAsk:
		return "Failed to get an answer"
	case OpCrawl:
		return "Failed to crawl the URL"
	case OpImage:
		if e.Detail != "" {
			return "Failed to generate image: " + e.Detail
		}
		return "Failed to generate image"
	default:
		return "Request failed: " + http.StatusText(e.StatusCode)
	}
}

// IsStatus reports whether err is a StatusError carrying code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}

// maxDetailBytes caps how much of an error body is kept.
const maxDetailBytes = 4096

func newStatusError(op Op, resp *http.Response) *StatusError {
	statusErr := &StatusError{Op: op, StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDetailBytes))
	if err != nil || len(body) == 0 {
		return statusErr
	}

	// FastAPI style {"detail": "..."}
	var payload struct {
		Detail any `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Detail != nil {
		if s, ok := payload.Detail.(string); ok {
			statusErr.Detail = s
			return statusErr
		}
		if b, err := json.Marshal(payload.Detail); err == nil {
			statusErr.Detail = string(b)
			return statusErr
		}
	}

	statusErr.Detail = string(body)
	return statusErr
}
