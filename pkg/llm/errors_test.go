package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

type fakeNetError struct{ timeout bool }

func (e fakeNetError) Error() string   { return "fake net error" }
func (e fakeNetError) Timeout() bool   { return e.timeout }
func (e fakeNetError) Temporary() bool { return false }

var _ net.Error = fakeNetError{}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"canceled", context.Canceled, ErrTypeCanceled},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ErrTypeTimeout},
		{"invalid backend", fmt.Errorf("%w: \"x\"", ErrInvalidBackend), ErrTypeInvalidRequest},
		{"refusal", fmt.Errorf("%w: no", ErrRefusal), ErrTypeRefusal},
		{"empty response", ErrEmptyResponse, ErrTypeValidation},
		{"schema mismatch", fmt.Errorf("%w: bad", ErrSchemaMismatch), ErrTypeValidation},
		{"no label", ErrNoLabel, ErrTypeValidation},
		{"429", &openai.APIError{HTTPStatusCode: 429, Message: "slow down"}, ErrTypeRateLimit},
		{"401", &openai.APIError{HTTPStatusCode: 401, Message: "bad key"}, ErrTypeAuth},
		{"403", &openai.RequestError{HTTPStatusCode: 403, Err: errors.New("forbidden")}, ErrTypeAuth},
		{"400", &openai.APIError{HTTPStatusCode: 400, Message: "bad request"}, ErrTypeInvalidRequest},
		{"404", &openai.RequestError{HTTPStatusCode: 404, Err: errors.New("not found")}, ErrTypeInvalidRequest},
		{"408", &openai.APIError{HTTPStatusCode: 408}, ErrTypeTimeout},
		{"409", &openai.APIError{HTTPStatusCode: 409}, ErrTypeServer},
		{"500", &openai.APIError{HTTPStatusCode: 500}, ErrTypeServer},
		{"503 wrapped", fmt.Errorf("attempt: %w", &openai.RequestError{HTTPStatusCode: 503, Err: errors.New("unavailable")}), ErrTypeServer},
		{"net timeout", fakeNetError{timeout: true}, ErrTypeTimeout},
		{"net other", fakeNetError{}, ErrTypeNetwork},
		{"eof", io.ErrUnexpectedEOF, ErrTypeNetwork},
		{"connection refused", errors.New("dial tcp 127.0.0.1:1: connection refused"), ErrTypeNetwork},
		{"timeout string", errors.New("request timeout"), ErrTypeTimeout},
		{"unknown", errors.New("something odd"), ErrTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := []error{
		&openai.APIError{HTTPStatusCode: 429},
		&openai.APIError{HTTPStatusCode: 500},
		&openai.APIError{HTTPStatusCode: 408},
		fakeNetError{},
		context.DeadlineExceeded,
		ErrEmptyResponse,
		ErrSchemaMismatch,
		errors.New("something odd"),
	}
	for _, err := range retryable {
		assert.True(t, IsRetryable(err), "%v", err)
	}

	permanent := []error{
		nil,
		&openai.APIError{HTTPStatusCode: 401},
		&openai.APIError{HTTPStatusCode: 400},
		ErrInvalidBackend,
		ErrRefusal,
		context.Canceled,
	}
	for _, err := range permanent {
		assert.False(t, IsRetryable(err), "%v", err)
	}
}
