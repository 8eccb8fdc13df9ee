package repository

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"nova-ai/backend/internal/model"
)

const (
	defaultTitle  = "New Chat"
	fallbackTitle = "Image Chat"
	titleLimit    = 30
)

// memoryRepository keeps all sessions in process memory. A single mutex
// serializes every mutation, and reads hand out deep copies, so concurrent
// in-flight streams can patch messages by id without callers ever observing
// partially applied state.
type memoryRepository struct {
	mu        sync.RWMutex
	sessions  []*model.Session
	currentID string
	loading   bool
}

func NewMemoryRepository() Repository {
	return &memoryRepository{}
}

func (r *memoryRepository) CreateSession(modelID string) *model.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess := &model.Session{
		ID:        uuid.NewString(),
		Title:     defaultTitle,
		Messages:  []model.Message{},
		CreatedAt: time.Now(),
		Model:     modelID,
	}
	// Newest first, mirroring the sidebar ordering.
	r.sessions = append([]*model.Session{sess}, r.sessions...)
	r.currentID = sess.ID

	return cloneSession(sess)
}

func (r *memoryRepository) SelectSession(id string) (*model.Session, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess := r.find(id)
	if sess == nil {
		return nil, false, ErrNotFound
	}
	if r.currentID == id {
		return cloneSession(sess), false, nil
	}
	r.currentID = id
	return cloneSession(sess), true, nil
}

func (r *memoryRepository) GetSession(id string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess := r.find(id)
	if sess == nil {
		return nil, ErrNotFound
	}
	return cloneSession(sess), nil
}

func (r *memoryRepository) ListSessions() []*model.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, cloneSession(sess))
	}
	return out
}

func (r *memoryRepository) CurrentSessionID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentID
}

func (r *memoryRepository) AppendMessage(sessionID string, msg model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess := r.find(sessionID)
	if sess == nil {
		// Unknown session: the user may have raced a deletion or a stale
		// stream may be writing. Dropping the update is the contract.
		return
	}

	if len(sess.Messages) == 0 {
		sess.Title = titleFor(msg)
	}
	sess.Messages = append(sess.Messages, msg)
}

func (r *memoryRepository) UpdateMessage(sessionID, messageID string, patch model.MessagePatch) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess := r.find(sessionID)
	if sess == nil {
		return
	}
	for i := range sess.Messages {
		if sess.Messages[i].ID != messageID {
			continue
		}
		applyPatch(&sess.Messages[i], patch)
		return
	}
}

func (r *memoryRepository) SetSessionModel(sessionID, modelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess := r.find(sessionID)
	if sess == nil {
		return ErrNotFound
	}
	sess.Model = modelID
	return nil
}

func (r *memoryRepository) SetLoading(loading bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading = loading
}

func (r *memoryRepository) IsLoading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loading
}

// find must be called with the lock held.
func (r *memoryRepository) find(id string) *model.Session {
	for _, sess := range r.sessions {
		if sess.ID == id {
			return sess
		}
	}
	return nil
}

func applyPatch(msg *model.Message, patch model.MessagePatch) {
	if patch.Text != nil {
		msg.Text = *patch.Text
	}
	if patch.IsError != nil {
		msg.IsError = *patch.IsError
	}
	if patch.Type != nil {
		msg.Type = *patch.Type
	}
	if patch.Attachments != nil {
		msg.Attachments = append([]model.Attachment(nil), patch.Attachments...)
	}
}

// titleFor derives the session title from its first message. The rule fires
// exactly once, when the log transitions from empty to non-empty.
func titleFor(msg model.Message) string {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return fallbackTitle
	}
	runes := []rune(text)
	if len(runes) <= titleLimit {
		return text
	}
	return string(runes[:titleLimit]) + "…"
}

func cloneSession(sess *model.Session) *model.Session {
	out := *sess
	out.Messages = make([]model.Message, len(sess.Messages))
	for i, msg := range sess.Messages {
		out.Messages[i] = msg
		if msg.Attachments != nil {
			out.Messages[i].Attachments = append([]model.Attachment(nil), msg.Attachments...)
		}
	}
	return &out
}
