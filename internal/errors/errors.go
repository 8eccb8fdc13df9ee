package errors

import (
	"errors"
	"strings"
)

// This package defines the centralized set of sentinel errors for the
// application. Services return these specific, recognizable error types
// without coupling themselves to HTTP status codes; the API layer uses
// `errors.Is()` to map them to the correct responses.

var (
	// ErrNotFound signifies that a requested resource could not be located.
	ErrNotFound = errors.New("resource not found")

	// ErrValidation signifies that input data provided by a client failed
	// business rule validation.
	ErrValidation = errors.New("validation failed")

	// ErrCredentialMissing signifies that no usable Gemini API key is
	// configured. Raised from client construction and from any send attempt
	// when no remote conversation can be built.
	ErrCredentialMissing = errors.New("gemini api key is not configured")

	// ErrTranscription signifies a failure during microphone-capture
	// transcription. It is reported out-of-band because no session message
	// exists yet for the abortive send.
	ErrTranscription = errors.New("transcription failed")

	// ErrInternal signifies an unexpected error on the server.
	ErrInternal = errors.New("internal server error")
)

// User-facing texts stored into the terminal error message of a send.
const (
	MsgCredentialMissing  = "Gemini API key is not configured. Set GEMINI_API_KEY and try again."
	MsgRateLimited        = "You are sending requests too quickly. Please wait a moment and try again."
	MsgServiceUnavailable = "The model is temporarily overloaded. Please try again in a few seconds."
	MsgSafetyBlocked      = "That request was blocked by safety filters. Try rephrasing your message."
)

// Classify converts a remote-call failure into the user-facing text shown in
// a terminal `isError` message. Provider errors are matched on the well-known
// markers the Gemini API embeds in its error strings; anything unrecognized
// is surfaced verbatim behind a warning marker.
func Classify(err error) string {
	if errors.Is(err, ErrCredentialMissing) {
		return MsgCredentialMissing
	}

	text := err.Error()
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(text, "429") || strings.Contains(upper, "RESOURCE_EXHAUSTED"):
		return MsgRateLimited
	case strings.Contains(text, "503") || strings.Contains(upper, "UNAVAILABLE"):
		return MsgServiceUnavailable
	case strings.Contains(upper, "SAFETY"):
		return MsgSafetyBlocked
	default:
		return "⚠️ " + text
	}
}
