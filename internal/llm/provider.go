package llm

import (
	"context"

	"nova-ai/backend/internal/model"
)

// Part is one ordered content piece of a turn: either text or raw binary
// data with a media type. Attachments precede text within a turn.
type Part struct {
	Text string
	Data []byte
	MIME string
}

// Turn is one remote-protocol turn of primed conversation history.
type Turn struct {
	Role  model.Role
	Parts []Part
}

// ConversationConfig carries the per-conversation generation settings.
// ThinkingBudget must be nil for models without extended reasoning; the API
// rejects the parameter when sent unconditionally.
type ConversationConfig struct {
	SystemInstruction string
	ThinkingBudget    *int32
}

// StreamChunk is a single fragment of a streaming reply. A non-nil Err is
// terminal: no further chunks follow it.
type StreamChunk struct {
	Text string
	Err  error
}

// Conversation is a remote chat bound to a model and primed history. The
// stream it produces is finite and not restartable.
type Conversation interface {
	// SendStream sends one multimodal message and pushes reply fragments into
	// ch, closing it when the stream ends. With an unbuffered channel the
	// consumer fully applies each fragment before the next is produced.
	SendStream(ctx context.Context, parts []Part, ch chan<- StreamChunk)
}

// Generated is a binary artifact (image bytes, speech audio) produced by the
// remote service.
type Generated struct {
	Data []byte
	MIME string
}

// Provider is the hosted generative-AI service collaborator.
type Provider interface {
	NewConversation(ctx context.Context, modelID string, history []Turn, cfg ConversationConfig) (Conversation, error)
	GenerateImage(ctx context.Context, prompt, aspectRatio string) (*Generated, error)
	GenerateSpeech(ctx context.Context, text string) (*Generated, error)
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}
