package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"nova-ai/backend/internal/interfaces"
	"nova-ai/backend/internal/model"
	"nova-ai/backend/internal/service"
)

// ChatHandler handles HTTP requests for sessions, messages and models.
type ChatHandler struct {
	service interfaces.ChatService
}

func NewChatHandler(svc interfaces.ChatService) *ChatHandler {
	return &ChatHandler{service: svc}
}

// HandleCreateSession godoc
// @Summary      Create session
// @Description  Creates a new empty chat session bound to the selected model and makes it current.
// @Tags         Sessions
// @Produce      json
// @Success      201  {object}  model.Session
// @Router       /v1/sessions [post]
func (h *ChatHandler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := h.service.CreateSession(r.Context())
	respondWithJSON(w, http.StatusCreated, sess)
}

// HandleListSessions godoc
// @Summary      List sessions
// @Description  Returns all sessions (newest first) plus the current session id and loading state.
// @Tags         Sessions
// @Produce      json
// @Success      200  {object}  SessionListResponse
// @Router       /v1/sessions [get]
func (h *ChatHandler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.service.ListSessions()
	summaries := make([]sessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		summaries = append(summaries, sessionSummary{
			ID:        sess.ID,
			Title:     sess.Title,
			Model:     sess.Model,
			CreatedAt: sess.CreatedAt.Format(time.RFC3339),
		})
	}
	respondWithJSON(w, http.StatusOK, SessionListResponse{
		Sessions:         summaries,
		CurrentSessionID: h.service.CurrentSessionID(),
		IsLoading:        h.service.IsLoading(),
		SelectedModel:    h.service.SelectedModel(),
	})
}

// HandleGetSession godoc
// @Summary      Get session
// @Description  Returns a session with its full message log.
// @Tags         Sessions
// @Produce      json
// @Param        sessionID  path  string  true  "Session ID"
// @Success      200  {object}  model.Session
// @Failure      404  {object}  ErrorResponse
// @Router       /v1/sessions/{sessionID} [get]
func (h *ChatHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	sess, err := h.service.GetSession(sessionID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sess)
}

// HandleSelectSession godoc
// @Summary      Select session
// @Description  Makes the session current and rebinds the remote conversation to its history and model.
// @Tags         Sessions
// @Produce      json
// @Param        sessionID  path  string  true  "Session ID"
// @Success      200  {object}  model.Session
// @Failure      404  {object}  ErrorResponse
// @Router       /v1/sessions/{sessionID}/select [post]
func (h *ChatHandler) HandleSelectSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	sess, err := h.service.SelectSession(r.Context(), sessionID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sess)
}

// HandleListModels godoc
// @Summary      List models
// @Description  Returns the selectable model tiers.
// @Tags         Models
// @Produce      json
// @Success      200  {array}  model.ModelInfo
// @Router       /v1/models [get]
func (h *ChatHandler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.service.Models())
}

// HandleSetModel godoc
// @Summary      Set model
// @Description  Changes the selected model for the current session and rebuilds its conversation.
// @Tags         Models
// @Accept       json
// @Produce      json
// @Param        request  body  SetModelRequest  true  "Model ID"
// @Success      200  {object}  StatusResponse
// @Failure      400  {object}  ErrorResponse
// @Router       /v1/model [put]
func (h *ChatHandler) HandleSetModel(w http.ResponseWriter, r *http.Request) {
	var req SetModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, errInvalidBody(err))
		return
	}
	if err := validateRequest(req); err != nil {
		respondWithError(w, err)
		return
	}
	if err := h.service.SetModel(r.Context(), req.Model); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// HandleSendMessage godoc
// @Summary      Send message
// @Description  Sends a user message to the current (or given) session and streams the reply as SSE events.
// @Tags         Messages
// @Accept       json
// @Produce      text/event-stream
// @Param        request  body  service.SendRequest  true  "Message"
// @Success      200  {object}  model.StreamResponse
// @Router       /v1/messages [post]
func (h *ChatHandler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var req service.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendStreamError(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" && len(req.Attachments) == 0 {
		sendStreamError(w, "Message must contain text or at least one attachment")
		return
	}

	streamChan := make(chan model.StreamResponse)
	go h.service.Send(r.Context(), &req, streamChan)

	for chunk := range streamChan {
		if r.Context().Err() != nil {
			slog.Info("Client disconnected during stream")
			break
		}
		if err := writeStreamEvent(w, chunk); err != nil {
			slog.Warn("Stopping stream, write failed", "error", err)
			break
		}
	}
}

// HandleTranscribe godoc
// @Summary      Transcribe audio
// @Description  Converts a captured voice recording into text.
// @Tags         Messages
// @Accept       json
// @Produce      json
// @Param        request  body  TranscribeRequest  true  "Audio payload (base64)"
// @Success      200  {object}  TranscribeResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      502  {object}  ErrorResponse
// @Router       /v1/transcribe [post]
func (h *ChatHandler) HandleTranscribe(w http.ResponseWriter, r *http.Request) {
	var req TranscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, errInvalidBody(err))
		return
	}
	if err := validateRequest(req); err != nil {
		respondWithError(w, err)
		return
	}
	text, err := h.service.Transcribe(r.Context(), req.Data, req.MimeType)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, TranscribeResponse{Text: text})
}
