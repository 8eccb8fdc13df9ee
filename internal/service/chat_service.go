package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"nova-ai/backend/internal/config"
	app_errors "nova-ai/backend/internal/errors"
	"nova-ai/backend/internal/llm"
	"nova-ai/backend/internal/model"
	"nova-ai/backend/internal/repository"
)

const (
	// Caption placed on a generated-image reply.
	imageCaption = "Here is the image you asked for."
	// Spoken when a speech command carries no utterance ("say" alone).
	fallbackUtterance = "Hello! I am Nova. How can I help you today?"
)

// ChatService is the message orchestrator: it owns session lifecycle
// operations and the send pipeline that routes user input to the remote
// service and fills the placeholder reply.
type ChatService struct {
	repo     repository.Repository
	provider llm.Provider
	contexts *ContextManager
	cfg      *config.Config

	mu            sync.Mutex
	selectedModel string
}

// SendRequest is a new message from the client. SessionID may be empty, in
// which case the current session is targeted.
type SendRequest struct {
	SessionID   string             `json:"session_id"`
	Text        string             `json:"text"`
	Attachments []model.Attachment `json:"attachments,omitempty"`
}

func NewChatService(repo repository.Repository, provider llm.Provider, contexts *ContextManager, cfg *config.Config) *ChatService {
	return &ChatService{
		repo:          repo,
		provider:      provider,
		contexts:      contexts,
		cfg:           cfg,
		selectedModel: cfg.FastModel,
	}
}

// CreateSession builds a new empty session bound to the selected model, marks
// it current and rebuilds the remote conversation with empty history.
func (s *ChatService) CreateSession(ctx context.Context) *model.Session {
	sess := s.repo.CreateSession(s.SelectedModel())
	s.contexts.Rebuild(ctx, sess)
	slog.Info("Created session", "session_id", sess.ID, "model", sess.Model)
	return sess
}

// SelectSession makes the session current and rebuilds the remote
// conversation from its full filtered history under its bound model.
// Selecting the already-current session changes nothing.
func (s *ChatService) SelectSession(ctx context.Context, id string) (*model.Session, error) {
	sess, changed, err := s.repo.SelectSession(id)
	if err != nil {
		return nil, fmt.Errorf("%w: session %s", app_errors.ErrNotFound, id)
	}
	if changed {
		s.setSelectedModel(sess.Model)
		s.contexts.Rebuild(ctx, sess)
		slog.Info("Switched session", "session_id", sess.ID, "model", sess.Model)
	}
	return sess, nil
}

// SetModel changes the selected model. When a session is current the choice
// is persisted onto it and its conversation is rebuilt under the new model;
// no other session's binding is touched.
func (s *ChatService) SetModel(ctx context.Context, modelID string) error {
	if modelID != s.cfg.FastModel && modelID != s.cfg.ProModel {
		return fmt.Errorf("%w: unknown model %q", app_errors.ErrValidation, modelID)
	}
	s.setSelectedModel(modelID)

	current := s.repo.CurrentSessionID()
	if current == "" {
		return nil
	}
	if err := s.repo.SetSessionModel(current, modelID); err != nil {
		return fmt.Errorf("%w: session %s", app_errors.ErrNotFound, current)
	}
	sess, err := s.repo.GetSession(current)
	if err != nil {
		return fmt.Errorf("%w: session %s", app_errors.ErrNotFound, current)
	}
	s.contexts.Rebuild(ctx, sess)
	slog.Info("Changed model", "session_id", current, "model", modelID)
	return nil
}

func (s *ChatService) ListSessions() []*model.Session {
	return s.repo.ListSessions()
}

func (s *ChatService) GetSession(id string) (*model.Session, error) {
	sess, err := s.repo.GetSession(id)
	if err != nil {
		return nil, fmt.Errorf("%w: session %s", app_errors.ErrNotFound, id)
	}
	return sess, nil
}

func (s *ChatService) CurrentSessionID() string {
	return s.repo.CurrentSessionID()
}

func (s *ChatService) IsLoading() bool {
	return s.repo.IsLoading()
}

// Models lists the selectable model tiers for the presentation layer.
func (s *ChatService) Models() []model.ModelInfo {
	return []model.ModelInfo{
		{ID: s.cfg.FastModel, Label: "Nova Fast", Tier: "fast"},
		{ID: s.cfg.ProModel, Label: "Nova Pro", Tier: "pro"},
	}
}

func (s *ChatService) SelectedModel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedModel
}

func (s *ChatService) setSelectedModel(modelID string) {
	s.mu.Lock()
	s.selectedModel = modelID
	s.mu.Unlock()
}

// Send processes one user message: it appends the user turn and a placeholder
// reply, classifies the input, dispatches to the matching remote operation
// and fills the placeholder progressively or atomically. The session id is
// captured by value here, so a stream still in flight after the user switches
// sessions keeps landing in the session it was launched against.
func (s *ChatService) Send(ctx context.Context, req *SendRequest, stream chan<- model.StreamResponse) {
	defer close(stream)

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = s.repo.CurrentSessionID()
	}
	if sessionID == "" {
		slog.Warn("Send without a current session, ignoring")
		return
	}
	// Snapshot before appending: a lazy conversation rebuild must prime the
	// remote history without the turn we are about to send.
	sess, err := s.repo.GetSession(sessionID)
	if err != nil {
		slog.Warn("Send for unknown session, ignoring", "session_id", sessionID)
		return
	}

	fsm := newSendMachine(s.repo)

	userMsg := model.Message{
		ID:          uuid.NewString(),
		Role:        model.RoleUser,
		Text:        req.Text,
		Timestamp:   time.Now(),
		Attachments: req.Attachments,
	}
	s.repo.AppendMessage(sessionID, userMsg)
	fireSend(fsm, triggerUserAppended)

	s.repo.SetLoading(true)
	placeholder := model.Message{
		ID:        uuid.NewString(),
		Role:      model.RoleModel,
		Timestamp: time.Now(),
	}
	s.repo.AppendMessage(sessionID, placeholder)
	fireSend(fsm, triggerPlaceholderAppended)

	kind, remainder := classifyInput(req.Text)
	switch kind {
	case kindImage:
		s.sendImage(ctx, fsm, stream, sessionID, placeholder.ID, req.Text)
	case kindSpeech:
		s.sendSpeech(ctx, fsm, stream, sessionID, placeholder.ID, remainder)
	default:
		s.sendChat(ctx, fsm, stream, sessionID, placeholder.ID, sess, req)
	}
}

func (s *ChatService) sendChat(ctx context.Context, fsm sendFSM, stream chan<- model.StreamResponse, sessionID, placeholderID string, sess *model.Session, req *SendRequest) {
	conv, err := s.contexts.Ensure(ctx, sess)
	if err != nil {
		s.failSend(ctx, fsm, stream, sessionID, placeholderID, err)
		return
	}
	fireSend(fsm, triggerStreamStarted)

	// Unbuffered: each fragment is fully applied to the store and flushed to
	// the client before the next one is produced.
	ch := make(chan llm.StreamChunk)
	go conv.SendStream(ctx, messageParts(req.Text, req.Attachments), ch)

	var full strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			s.failSend(ctx, fsm, stream, sessionID, placeholderID, chunk.Err)
			return
		}
		full.WriteString(chunk.Text)
		text := full.String()
		s.repo.UpdateMessage(sessionID, placeholderID, model.MessagePatch{Text: &text})
		if !emit(ctx, stream, model.StreamResponse{Content: chunk.Text}) {
			// The partial text stays on the placeholder; the send still has
			// to settle so the loading flag clears.
			fireSend(fsm, triggerSettled)
			return
		}
	}

	emit(ctx, stream, model.StreamResponse{Done: true})
	fireSend(fsm, triggerSettled)
}

func (s *ChatService) sendImage(ctx context.Context, fsm sendFSM, stream chan<- model.StreamResponse, sessionID, placeholderID, prompt string) {
	fireSend(fsm, triggerSingleShotStarted)

	img, err := s.provider.GenerateImage(ctx, prompt, s.cfg.ImageAspectRatio)
	if err != nil {
		s.failSend(ctx, fsm, stream, sessionID, placeholderID, err)
		return
	}

	caption := imageCaption
	msgType := model.TypeImageGeneration
	attachments := []model.Attachment{{
		Type:     model.AttachmentImage,
		Data:     base64.StdEncoding.EncodeToString(img.Data),
		MimeType: img.MIME,
	}}
	s.repo.UpdateMessage(sessionID, placeholderID, model.MessagePatch{
		Text:        &caption,
		Type:        &msgType,
		Attachments: attachments,
	})

	final := model.Message{
		ID:          placeholderID,
		Role:        model.RoleModel,
		Text:        caption,
		Type:        msgType,
		Attachments: attachments,
		Timestamp:   time.Now(),
	}
	emit(ctx, stream, model.StreamResponse{Done: true, Message: &final})
	fireSend(fsm, triggerSettled)
}

func (s *ChatService) sendSpeech(ctx context.Context, fsm sendFSM, stream chan<- model.StreamResponse, sessionID, placeholderID, utterance string) {
	fireSend(fsm, triggerSingleShotStarted)

	if utterance == "" {
		utterance = fallbackUtterance
	}
	audio, err := s.provider.GenerateSpeech(ctx, utterance)
	if err != nil {
		s.failSend(ctx, fsm, stream, sessionID, placeholderID, err)
		return
	}

	msgType := model.TypeAudioGeneration
	attachments := []model.Attachment{{
		Type:     model.AttachmentAudio,
		Data:     base64.StdEncoding.EncodeToString(audio.Data),
		MimeType: audio.MIME,
	}}
	s.repo.UpdateMessage(sessionID, placeholderID, model.MessagePatch{
		Text:        &utterance,
		Type:        &msgType,
		Attachments: attachments,
	})

	final := model.Message{
		ID:          placeholderID,
		Role:        model.RoleModel,
		Text:        utterance,
		Type:        msgType,
		Attachments: attachments,
		Timestamp:   time.Now(),
	}
	emit(ctx, stream, model.StreamResponse{Done: true, Message: &final})
	fireSend(fsm, triggerSettled)
}

// failSend freezes the placeholder as a terminal error message. No further
// mutation of the message happens after this patch.
func (s *ChatService) failSend(ctx context.Context, fsm sendFSM, stream chan<- model.StreamResponse, sessionID, messageID string, cause error) {
	userText := app_errors.Classify(cause)
	isErr := true
	s.repo.UpdateMessage(sessionID, messageID, model.MessagePatch{Text: &userText, IsError: &isErr})
	slog.Error("Send failed", "session_id", sessionID, "message_id", messageID, "error", cause)
	emit(ctx, stream, model.StreamResponse{Error: userText, Done: true})
	fireSend(fsm, triggerFailed)
}

// emit pushes one chunk to the stream consumer. It returns false when the
// request context is cancelled before the consumer takes the chunk, meaning
// the client is gone; the send must still reach a terminal state so the
// loading flag clears.
func emit(ctx context.Context, stream chan<- model.StreamResponse, resp model.StreamResponse) bool {
	select {
	case stream <- resp:
		return true
	case <-ctx.Done():
		slog.Info("Stream consumer gone, dropping chunk")
		return false
	}
}

// Transcribe converts captured microphone audio into text. Failures are
// wrapped in ErrTranscription so the API layer reports them out-of-band; no
// session message exists yet for the abortive send.
func (s *ChatService) Transcribe(ctx context.Context, data, mimeType string) (string, error) {
	audio, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64 audio payload", app_errors.ErrValidation)
	}
	text, err := s.provider.Transcribe(ctx, audio, mimeType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", app_errors.ErrTranscription, err)
	}
	return text, nil
}
