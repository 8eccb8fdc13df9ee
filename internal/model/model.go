package model

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// MessageType distinguishes plain text replies from generated artifacts.
// The zero value means a plain text turn.
type MessageType string

const (
	TypeImageGeneration MessageType = "image_generation"
	TypeAudioGeneration MessageType = "audio_generation"
)

// AttachmentType discriminates the attachment payload kind.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentAudio AttachmentType = "audio"
)

// Attachment is a binary payload carried by a message, base64-encoded for
// transport. User message attachments are inputs; model message attachments
// are artifacts produced by the remote service.
type Attachment struct {
	Type     AttachmentType `json:"type"`
	Data     string         `json:"data"`
	MimeType string         `json:"mimeType"`
}

// Message is a single turn in a session. A model placeholder is created with
// empty text and patched in place while a response streams in, then frozen.
type Message struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Text        string       `json:"text"`
	Timestamp   time.Time    `json:"timestamp"`
	IsError     bool         `json:"isError,omitempty"`
	Type        MessageType  `json:"type,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// MessagePatch is a partial update merged into an existing message by id.
// Nil fields are left untouched.
type MessagePatch struct {
	Text        *string
	IsError     *bool
	Type        *MessageType
	Attachments []Attachment
}

// Session is one conversation: an append-only message log bound to a model.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	Model     string    `json:"model"`
}

// ModelInfo describes one selectable model tier for the presentation layer.
type ModelInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Tier  string `json:"tier"`
}

// StreamResponse is a single chunk of a streaming send response.
// Content carries an incremental text fragment; Message carries the final
// message for single-shot (image/audio) replies.
type StreamResponse struct {
	Content string   `json:"content,omitempty"`
	Done    bool     `json:"done"`
	Error   string   `json:"error,omitempty"`
	Message *Message `json:"message,omitempty"`
}
