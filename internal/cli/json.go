package cli

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"strings"

	"github.com/rileyhilliard/gpuwatch/internal/errors"
	"github.com/rileyhilliard/gpuwatch/internal/telemetry"
)

// machineMode is set by --json: JSON output, no decorations.
var machineMode bool

// MachineMode returns true if machine-readable output is enabled
func MachineMode() bool {
	return machineMode
}

// JSONEnvelope wraps every --json response.
type JSONEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *JSONError  `json:"error,omitempty"`
}

// JSONError provides structured error information for machine parsing.
type JSONError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
	Details    interface{} `json:"details,omitempty"`
}

// Error codes for machine-readable output.
const (
	ErrCodeConfigNotFound   = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "CONFIG_INVALID"
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeStoreFailed      = "STORE_FAILED"
	ErrCodeMalformedFrame   = "MALFORMED_FRAME"
	ErrCodeConnectTimeout   = "CONNECT_TIMEOUT"
	ErrCodeConnectRefused   = "CONNECT_REFUSED"
	ErrCodeConnectionFailed = "CONNECTION_FAILED"
	ErrCodeNotGPUServer     = "NOT_A_GPU_SERVER"
	ErrCodeUnknown          = "UNKNOWN"
)

// WriteJSONSuccess writes a successful response with data to the writer.
func WriteJSONSuccess(w io.Writer, data interface{}) error {
	return writeJSONEnvelope(w, JSONEnvelope{Success: true, Data: data})
}

// WriteJSONError writes an error response to the writer.
func WriteJSONError(w io.Writer, code, message, suggestion string, details interface{}) error {
	return writeJSONEnvelope(w, JSONEnvelope{
		Error: &JSONError{
			Code:       code,
			Message:    message,
			Suggestion: suggestion,
			Details:    details,
		},
	})
}

// WriteJSONFromError converts a Go error to a JSON error response.
func WriteJSONFromError(w io.Writer, err error) error {
	return writeJSONEnvelope(w, JSONEnvelope{Error: ErrorToJSON(err)})
}

func writeJSONEnvelope(w io.Writer, env JSONEnvelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// ErrorToJSON converts a Go error to a JSONError with appropriate code mapping.
func ErrorToJSON(err error) *JSONError {
	if err == nil {
		return nil
	}

	var probeErr *telemetry.ProbeError
	if stderrors.As(err, &probeErr) {
		return probeErrorToJSON(probeErr)
	}

	var gwErr *errors.Error
	if stderrors.As(err, &gwErr) {
		return &JSONError{
			Code:       mapErrorCode(gwErr.Code, gwErr.Message),
			Message:    gwErr.Short(),
			Suggestion: gwErr.Suggestion,
		}
	}

	return &JSONError{
		Code:    ErrCodeUnknown,
		Message: err.Error(),
	}
}

// mapErrorCode maps internal error codes to machine-readable codes.
func mapErrorCode(internalCode, message string) string {
	switch internalCode {
	case errors.ErrConfig:
		msgLower := strings.ToLower(message)
		if strings.Contains(msgLower, "not found") || strings.Contains(msgLower, "couldn't find") {
			return ErrCodeConfigNotFound
		}
		return ErrCodeConfigInvalid
	case errors.ErrValidation:
		return ErrCodeInvalidInput
	case errors.ErrStore:
		return ErrCodeStoreFailed
	case errors.ErrDecode:
		return ErrCodeMalformedFrame
	case errors.ErrTransport:
		return ErrCodeConnectionFailed
	}
	return ErrCodeUnknown
}

func probeErrorToJSON(probeErr *telemetry.ProbeError) *JSONError {
	code := ErrCodeConnectionFailed
	var suggestion string

	switch probeErr.Reason {
	case telemetry.ProbeFailTimeout:
		code = ErrCodeConnectTimeout
		suggestion = "Check the host is up and the port is reachable from here"
	case telemetry.ProbeFailRefused:
		code = ErrCodeConnectRefused
		suggestion = "Check the metrics server is running and listening on that port"
	case telemetry.ProbeFailHandshake:
		code = ErrCodeNotGPUServer
		suggestion = "Something answered on that port, but it is not a WebSocket metrics server"
	case telemetry.ProbeFailUnreachable:
		suggestion = "Check the host name or address"
	}

	return &JSONError{
		Code:       code,
		Message:    probeErr.Error(),
		Suggestion: suggestion,
		Details: map[string]interface{}{
			"reason": probeErr.Reason.String(),
			"url":    probeErr.URL,
		},
	}
}
