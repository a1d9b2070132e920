package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// apiError keeps both the domain sentinel and the client error reachable
// through errors.Is / errors.As.
type apiError struct {
	op     string
	status int
	detail string
	kind   error
	cause  error
}

func (e *apiError) Error() string {
	if e.status == 0 {
		return fmt.Sprintf("%s request failed: %v: %v", e.op, e.cause, e.kind)
	}
	return fmt.Sprintf("%s API error %d: %s: %v", e.op, e.status, e.detail, e.kind)
}

func (e *apiError) Unwrap() []error { return []error{e.kind, e.cause} }

// parseAPIError extracts a human-readable error from the API response and
// wraps it with kind (domain.ErrEmbeddingFailure or domain.ErrGenerationFailure).
func parseAPIError(op string, err, kind error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return &apiError{op: op, status: reqErr.HTTPStatusCode, detail: detail, kind: kind, cause: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &apiError{op: op, status: apiErr.HTTPStatusCode, detail: apiErr.Message, kind: kind, cause: err}
	}

	return &apiError{op: op, kind: kind, cause: err}
}

// extractDetail reads "detail" or "message" from a JSON error body.
// Compatibility endpoints do not all use the OpenAI error envelope.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	if parsed.Detail != "" {
		return parsed.Detail
	}
	return parsed.Message
}

// IsTransient reports whether a provider error is worth retrying: network
// failures, 429 and 5xx. Context cancellation and deadlines are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if status := statusOf(err); status != 0 {
		return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

func statusOf(err error) int {
	var ae *apiError
	if errors.As(err, &ae) && ae.status != 0 {
		return ae.status
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	return 0
}
