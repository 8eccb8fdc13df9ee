package repository

import "nova-ai/backend/internal/model"

// Repository is the session store: the single authoritative owner of all
// sessions and messages. All state lives in process memory for the lifetime
// of the server; there is deliberately no durable storage behind it.
//
// Mutations are looked up by session id, never by "current session", so a
// stale in-flight stream targeting a since-abandoned session still lands in
// the correct (off-screen) session instead of corrupting the active one.
type Repository interface {
	// CreateSession builds a new session bound to the given model, inserts it
	// at the front of the session list and marks it current.
	CreateSession(modelID string) *model.Session

	// SelectSession marks the session current. It reports whether the current
	// session actually changed (selecting the current session is a no-op).
	SelectSession(id string) (*model.Session, bool, error)

	GetSession(id string) (*model.Session, error)
	ListSessions() []*model.Session
	CurrentSessionID() string

	// AppendMessage appends to the matching session's log. It is a silent
	// no-op when the session id is unknown: message updates arrive
	// asynchronously and must never fail loudly mid-stream.
	AppendMessage(sessionID string, msg model.Message)

	// UpdateMessage merges the patch into the message matched by id within
	// the session's log. No-op when either id is unknown.
	UpdateMessage(sessionID, messageID string, patch model.MessagePatch)

	// SetSessionModel persists a new model choice onto the session.
	SetSessionModel(sessionID, modelID string) error

	SetLoading(loading bool)
	IsLoading() bool
}
