package service

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"
	"sync"

	"nova-ai/backend/internal/config"
	"nova-ai/backend/internal/llm"
	"nova-ai/backend/internal/model"
)

// ContextManager owns the single outstanding remote conversation: "model M
// primed with history H" for whichever session is current. It is rebuilt on
// every session creation, session switch and model change. The remote
// conversation's internal history is a disposable cache; the repository is
// always the source of truth.
type ContextManager struct {
	provider llm.Provider
	cfg      *config.Config

	mu        sync.Mutex
	conv      llm.Conversation
	sessionID string
}

func NewContextManager(provider llm.Provider, cfg *config.Config) *ContextManager {
	return &ContextManager{provider: provider, cfg: cfg}
}

// Rebuild constructs a fresh conversation for the session, primed with its
// filtered history. Construction failures (e.g. a missing credential) are
// recorded as "no conversation available" rather than raised, so that
// creating or switching sessions never fails; the next send attempt surfaces
// the error instead.
func (m *ContextManager) Rebuild(ctx context.Context, sess *model.Session) {
	conv, err := m.build(ctx, sess)
	if err != nil {
		slog.Warn("Could not build remote conversation, deferring to next send", "session_id", sess.ID, "model", sess.Model, "error", err)
		conv = nil
	}

	m.mu.Lock()
	m.conv = conv
	m.sessionID = sess.ID
	m.mu.Unlock()
}

// Ensure returns the conversation bound to the session, rebuilding it when
// none exists or when the bound one belongs to another session. The former
// covers a credential configured after startup; the latter covers a send
// explicitly targeting a session that is not current, whose fragments must
// not ride on another session's primed history.
func (m *ContextManager) Ensure(ctx context.Context, sess *model.Session) (llm.Conversation, error) {
	m.mu.Lock()
	conv := m.conv
	boundID := m.sessionID
	m.mu.Unlock()
	if conv != nil && boundID == sess.ID {
		return conv, nil
	}

	conv, err := m.build(ctx, sess)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.conv = conv
	m.sessionID = sess.ID
	m.mu.Unlock()
	return conv, nil
}

func (m *ContextManager) build(ctx context.Context, sess *model.Session) (llm.Conversation, error) {
	convCfg := llm.ConversationConfig{SystemInstruction: m.cfg.SystemInstruction}
	if sess.Model == m.cfg.ProModel {
		budget := m.cfg.ThinkingBudget
		convCfg.ThinkingBudget = &budget
	}
	return m.provider.NewConversation(ctx, sess.Model, historyTurns(sess.Messages), convCfg)
}

// historyTurns maps a session's message log onto remote-protocol turns.
// Error turns and placeholder turns that never received content are dropped:
// the remote protocol rejects turns without content and has no concept of an
// error turn, so both would invalidate the primed history.
func historyTurns(messages []model.Message) []llm.Turn {
	turns := make([]llm.Turn, 0, len(messages))
	for _, msg := range messages {
		if msg.IsError {
			continue
		}
		if strings.TrimSpace(msg.Text) == "" && len(msg.Attachments) == 0 {
			continue
		}
		turns = append(turns, llm.Turn{
			Role:  msg.Role,
			Parts: messageParts(msg.Text, msg.Attachments),
		})
	}
	return turns
}

// messageParts builds the ordered parts of one turn: one part per attachment
// first, then a single text part if the text is non-empty.
func messageParts(text string, attachments []model.Attachment) []llm.Part {
	parts := make([]llm.Part, 0, len(attachments)+1)
	for _, att := range attachments {
		data, err := base64.StdEncoding.DecodeString(att.Data)
		if err != nil {
			slog.Warn("Skipping attachment with invalid base64 payload", "mime_type", att.MimeType, "error", err)
			continue
		}
		parts = append(parts, llm.Part{Data: data, MIME: att.MimeType})
	}
	if strings.TrimSpace(text) != "" {
		parts = append(parts, llm.Part{Text: text})
	}
	return parts
}
