package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"
)

// ErrorEnvelope is the wire shape of every error response.
type ErrorEnvelope struct {
	StatusCode int            `json:"statusCode"`
	Error      string         `json:"error"`
	Message    string         `json:"message"`
	Path       string         `json:"path"`
	Method     string         `json:"method"`
	Timestamp  string         `json:"timestamp"`
	Details    map[string]any `json:"details,omitempty"`
	Code       string         `json:"code,omitempty"`
	Stack      string         `json:"stack,omitempty"`
}

func isProduction() bool {
	return os.Getenv("APP_ENV") == "production"
}

// ErrorResponse writes the standard error envelope with the given status and message.
func ErrorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeEnvelope(w, r, status, message, nil, "", "")
}

// HandleError maps a service error to its HTTP envelope. 5xx messages are
// replaced with a generic string in production; outside production a stack
// trace rides along for unclassified failures.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusForError(err)
	message := MessageForError(err)

	var details map[string]any
	var code string
	var apiErr *Error
	if errors.As(err, &apiErr) {
		details = apiErr.Details
		code = apiErr.Code
	}

	stack := ""
	if status >= 500 {
		slog.ErrorContext(r.Context(), "Request failed",
			slog.Int("status", status),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		if isProduction() {
			message = "An unexpected error occurred on the auth service."
		} else {
			stack = string(debug.Stack())
		}
	}

	writeEnvelope(w, r, status, message, details, code, stack)
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, message string, details map[string]any, code, stack string) {
	env := ErrorEnvelope{
		StatusCode: status,
		Error:      http.StatusText(status),
		Message:    message,
		Path:       r.URL.Path,
		Method:     r.Method,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Details:    details,
		Code:       code,
		Stack:      stack,
	}
	WriteJSONResponse(w, r, status, env)
}

// WriteJSONResponse encodes the data to JSON and writes the response header and body.
func WriteJSONResponse(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}

	js, err := json.Marshal(data)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to marshal JSON response", slog.Any("error", err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(js); err != nil {
		slog.ErrorContext(r.Context(), "Failed to write response body", slog.Any("error", err))
	}
}

// DecodeJSONBody reads and decodes a JSON request body safely.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	// Cap body size to prevent abuse (1MB).
	maxBytes := 1_048_576
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)

		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")

		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q (wanted %s)", unmarshalTypeError.Field, unmarshalTypeError.Type)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)

		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")

		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			fieldName = strings.Trim(fieldName, `"`)
			return fmt.Errorf("body contains unknown key %q", fieldName)

		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBytesError.Limit)

		case errors.As(err, &invalidUnmarshalError):
			panic(fmt.Errorf("developer error: invalid argument passed to json.Unmarshal: %w", err))

		default:
			return fmt.Errorf("error decoding JSON body: %w", err)
		}
	}

	// Reject trailing data after the first JSON object.
	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}
