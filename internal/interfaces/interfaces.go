package interfaces

import (
	"context"

	"nova-ai/backend/internal/model"
	"nova-ai/backend/internal/service"
)

// This file defines the interfaces for our core services. Depending on these
// instead of concrete implementations decouples the API layer from the
// service layer and keeps handler tests mockable.

// ChatService is the contract for session and message orchestration.
type ChatService interface {
	CreateSession(ctx context.Context) *model.Session
	SelectSession(ctx context.Context, id string) (*model.Session, error)
	SetModel(ctx context.Context, modelID string) error
	ListSessions() []*model.Session
	GetSession(id string) (*model.Session, error)
	CurrentSessionID() string
	IsLoading() bool
	SelectedModel() string
	Models() []model.ModelInfo
	Send(ctx context.Context, req *service.SendRequest, stream chan<- model.StreamResponse)
	Transcribe(ctx context.Context, data, mimeType string) (string, error)
}
