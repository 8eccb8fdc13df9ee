package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	app_errors "nova-ai/backend/internal/errors"
)

// Shared DTOs for API responses and helpers for sending consistent HTTP
// responses.

// ErrorResponse is the standard JSON structure for error messages.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is a generic success response for operations that do not
// return a full resource.
type StatusResponse struct {
	Status string `json:"status"`
}

// SetModelRequest is the DTO for the model-selection endpoint.
type SetModelRequest struct {
	Model string `json:"model" validate:"required" example:"gemini-2.5-flash"`
}

// TranscribeRequest carries captured microphone audio, base64-encoded.
type TranscribeRequest struct {
	Data     string `json:"data" validate:"required"`
	MimeType string `json:"mime_type" validate:"required" example:"audio/webm"`
}

// TranscribeResponse is the transcript produced from a voice recording.
type TranscribeResponse struct {
	Text string `json:"text"`
}

// SessionListResponse is the sidebar view: all sessions plus the UI state the
// presentation layer consumes.
type SessionListResponse struct {
	Sessions         []sessionSummary `json:"sessions"`
	CurrentSessionID string           `json:"current_session_id"`
	IsLoading        bool             `json:"is_loading"`
	SelectedModel    string           `json:"selected_model"`
}

type sessionSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
}

func errInvalidBody(err error) error {
	return fmt.Errorf("%w: invalid request payload: %v", app_errors.ErrValidation, err)
}

// respondWithError maps business-layer errors to HTTP status codes and writes
// a standard JSON error body. The detailed error is logged; clients get a
// stable message.
func respondWithError(w http.ResponseWriter, err error) {
	var statusCode int
	var message string

	switch {
	case errors.Is(err, app_errors.ErrNotFound):
		statusCode = http.StatusNotFound
		message = "The requested resource was not found."
	case errors.Is(err, app_errors.ErrValidation):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, app_errors.ErrCredentialMissing):
		statusCode = http.StatusServiceUnavailable
		message = app_errors.MsgCredentialMissing
	case errors.Is(err, app_errors.ErrTranscription):
		statusCode = http.StatusBadGateway
		message = "Could not transcribe the recording. Please try again."
	default:
		statusCode = http.StatusInternalServerError
		message = "An unexpected internal server error occurred."
	}

	slog.Warn("Responding with error", "status_code", statusCode, "client_message", message, "internal_error", err)
	respondWithJSON(w, statusCode, ErrorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

// sendStreamError sends a structured error event over an SSE stream so that
// clients can attach a dedicated error listener.
func sendStreamError(w http.ResponseWriter, message string) {
	slog.Warn("Sending stream error to client", "message", message)
	jsonData, err := json.Marshal(ErrorResponse{Error: message})
	if err != nil {
		slog.Error("Failed to marshal stream error payload", "error", err)
		return
	}
	if _, err := fmt.Fprintf(w, "event: error\ndata: %s\n\n", string(jsonData)); err != nil {
		slog.Warn("Failed to write stream error, client might have disconnected", "error", err)
		return
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// writeStreamEvent marshals data and writes it as one SSE event. A write
// failure signals that the client has disconnected.
func writeStreamEvent(w http.ResponseWriter, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		slog.Error("Failed to marshal stream data to JSON", "error", err)
		return nil
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", string(jsonData)); err != nil {
		return fmt.Errorf("failed to write data to stream: %w", err)
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}
