package llm

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrEmptyResponse means the provider returned no choices.
	ErrEmptyResponse = errors.New("no completion choices returned")

	// ErrRefusal means the model declined to produce schema output.
	ErrRefusal = errors.New("model refused the request")

	// ErrSchemaMismatch means completion content did not satisfy the requested schema.
	ErrSchemaMismatch = errors.New("completion does not match schema")

	// ErrNoLabel means a completion carried no readable label.
	ErrNoLabel = errors.New("no label in completion")
)

// Error type constants for classification
const (
	ErrTypeNetwork        = "network"
	ErrTypeTimeout        = "timeout"
	ErrTypeRateLimit      = "rate_limit"
	ErrTypeAuth           = "auth"
	ErrTypeInvalidRequest = "invalid_request"
	ErrTypeServer         = "server"
	ErrTypeValidation     = "validation"
	ErrTypeRefusal        = "refusal"
	ErrTypeCanceled       = "canceled"
	ErrTypeUnknown        = "unknown"
)

// ClassifyError inspects an error and returns its type classification.
// The result is used as a metrics label and in traces.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.Canceled):
		return ErrTypeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTypeTimeout
	case errors.Is(err, ErrInvalidBackend):
		return ErrTypeInvalidRequest
	case errors.Is(err, ErrRefusal):
		return ErrTypeRefusal
	case errors.Is(err, ErrEmptyResponse), errors.Is(err, ErrSchemaMismatch), errors.Is(err, ErrNoLabel):
		return ErrTypeValidation
	}

	if status := httpStatus(err); status != 0 {
		return classifyStatus(status)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTypeTimeout
		}
		return ErrTypeNetwork
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return ErrTypeNetwork
	}

	errStrLower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStrLower, "timeout"):
		return ErrTypeTimeout
	case strings.Contains(errStrLower, "connection refused"),
		strings.Contains(errStrLower, "connection reset"),
		strings.Contains(errStrLower, "no such host"),
		strings.Contains(errStrLower, "dial tcp"):
		return ErrTypeNetwork
	case strings.Contains(errStrLower, "rate limit"):
		return ErrTypeRateLimit
	}

	return ErrTypeUnknown
}

// IsRetryable reports whether a failed provider call is worth repeating.
// Transient classes (network, timeout, rate limiting, server errors, malformed
// responses) are retryable; credential, request and refusal errors are not, nor
// is cancellation. Unclassified errors are retried. Callers stop retrying on their
// own once their context is done.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch ClassifyError(err) {
	case ErrTypeAuth, ErrTypeInvalidRequest, ErrTypeRefusal, ErrTypeCanceled:
		return false
	default:
		return true
	}
}

func httpStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func classifyStatus(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrTypeRateLimit
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrTypeAuth
	case status == http.StatusRequestTimeout:
		return ErrTypeTimeout
	case status == http.StatusConflict, status >= 500:
		return ErrTypeServer
	case status >= 400:
		return ErrTypeInvalidRequest
	default:
		return ErrTypeUnknown
	}
}
