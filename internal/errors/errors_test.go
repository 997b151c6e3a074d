package errors

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	codes := []string{
		ErrConfig,
		ErrDecode,
		ErrTransport,
		ErrValidation,
		ErrStore,
	}

	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.False(t, seen[code], "error code %q should be unique", code)
		seen[code] = true
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		message    string
		suggestion string
	}{
		{
			name:       "config error",
			code:       ErrConfig,
			message:    "Invalid configuration in config.yaml",
			suggestion: "Check your configuration file syntax",
		},
		{
			name:       "decode error",
			code:       ErrDecode,
			message:    "Malformed telemetry frame",
			suggestion: "",
		},
		{
			name:       "transport error",
			code:       ErrTransport,
			message:    "Connection refused by gpu-box:8080",
			suggestion: "Check the metrics server is running",
		},
		{
			name:       "validation error",
			code:       ErrValidation,
			message:    "Host is required",
			suggestion: "Pass --host or fill in the form",
		},
		{
			name:       "store error",
			code:       ErrStore,
			message:    "Couldn't save connections",
			suggestion: "Check the state directory is writable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, tt.suggestion)

			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.suggestion, err.Suggestion)
			assert.Nil(t, err.Cause)
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name          string
		err           *Error
		expectedParts []string
		notExpected   []string
	}{
		{
			name: "basic error formatting",
			err:  New(ErrConfig, "Invalid configuration", "Check config.yaml syntax"),
			expectedParts: []string{
				"Invalid configuration",
				"Check config.yaml syntax",
			},
		},
		{
			name: "error with failure symbol",
			err:  New(ErrTransport, "Connection failed", "Try again"),
			expectedParts: []string{
				"✗",
				"Connection failed",
			},
		},
		{
			name: "error without suggestion",
			err:  New(ErrDecode, "Bad frame", ""),
			expectedParts: []string{
				"Bad frame",
			},
			notExpected: []string{
				"suggestion",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := tt.err.Error()

			for _, part := range tt.expectedParts {
				assert.Contains(t, output, part, "output should contain %q", part)
			}

			for _, part := range tt.notExpected {
				assert.NotContains(t, output, part, "output should not contain %q", part)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection reset by peer")
	wrapped := Wrap(cause, "Socket closed")

	require.NotNil(t, wrapped)
	assert.Equal(t, ErrTransport, wrapped.Code, "Wrap should default to ErrTransport code")
	assert.Equal(t, "Socket closed", wrapped.Message)
	assert.Equal(t, cause, wrapped.Cause)
}

func TestWrapWithCode(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	wrapped := WrapWithCode(cause, ErrDecode, "Malformed frame", "")

	require.NotNil(t, wrapped)
	assert.Equal(t, ErrDecode, wrapped.Code)
	assert.Equal(t, "Malformed frame", wrapped.Message)
	assert.Equal(t, cause, wrapped.Cause)
	assert.Contains(t, wrapped.Error(), "unexpected end of JSON input")
}

func TestNewValidation(t *testing.T) {
	err := NewValidation("Name is required", "Give the connection a name")

	assert.Equal(t, ErrValidation, err.Code)
	assert.True(t, IsCode(err, ErrValidation))
}

func TestShort(t *testing.T) {
	assert.Equal(t, "Socket closed", New(ErrTransport, "Socket closed", "retry").Short())
	assert.Equal(t, "Socket closed: EOF", Wrap(errors.New("EOF"), "Socket closed").Short())
}

func TestShortMessage(t *testing.T) {
	assert.Equal(t, "", ShortMessage(nil))
	assert.Equal(t, "plain", ShortMessage(errors.New("plain")))
	assert.Equal(t, "Dial failed: refused", ShortMessage(Wrap(errors.New("refused"), "Dial failed")))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := WrapWithCode(cause, ErrStore, "Write failed", "")

	assert.Equal(t, cause, wrapped.Unwrap())
	assert.True(t, errors.Is(wrapped, cause))
}

func TestErrorsAs(t *testing.T) {
	wrapped := New(ErrConfig, "Config error", "Fix config")

	var gwErr *Error
	ok := errors.As(wrapped, &gwErr)

	assert.True(t, ok)
	assert.Equal(t, ErrConfig, gwErr.Code)
}

func TestIsCode(t *testing.T) {
	err := New(ErrConfig, "Config error", "")

	assert.True(t, IsCode(err, ErrConfig))
	assert.False(t, IsCode(err, ErrTransport))
	assert.False(t, IsCode(errors.New("standard error"), ErrConfig))
	assert.False(t, IsCode(nil, ErrConfig))
}

func TestErrorMessageStructure(t *testing.T) {
	err := WrapWithCode(
		errors.New("dial tcp 10.0.0.5:8080: i/o timeout"),
		ErrTransport,
		"Cannot reach gpu-box",
		"Check the host and port",
	)

	lines := strings.Split(err.Error(), "\n")

	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[0]), "✗"), "First line should start with failure symbol")
	assert.Contains(t, lines[0], "Cannot reach gpu-box")
}
