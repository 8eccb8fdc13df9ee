package service

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"nova-ai/backend/internal/llm"
	"nova-ai/backend/internal/model"
	"nova-ai/backend/internal/repository"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) NewConversation(ctx context.Context, modelID string, history []llm.Turn, cfg llm.ConversationConfig) (llm.Conversation, error) {
	args := m.Called(ctx, modelID, history, cfg)
	conv, _ := args.Get(0).(llm.Conversation)
	return conv, args.Error(1)
}

func (m *mockProvider) GenerateImage(ctx context.Context, prompt, aspectRatio string) (*llm.Generated, error) {
	args := m.Called(ctx, prompt, aspectRatio)
	gen, _ := args.Get(0).(*llm.Generated)
	return gen, args.Error(1)
}

func (m *mockProvider) GenerateSpeech(ctx context.Context, text string) (*llm.Generated, error) {
	args := m.Called(ctx, text)
	gen, _ := args.Get(0).(*llm.Generated)
	return gen, args.Error(1)
}

func (m *mockProvider) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	args := m.Called(ctx, audio, mimeType)
	return args.String(0), args.Error(1)
}

// fakeConversation replays canned fragments, optionally ending with an error.
// started is closed when the stream begins; gate, when set, blocks production
// until the test releases it.
type fakeConversation struct {
	fragments []string
	err       error

	started chan struct{}
	gate    chan struct{}
}

func (f *fakeConversation) SendStream(ctx context.Context, parts []llm.Part, ch chan<- llm.StreamChunk) {
	defer close(ch)
	if f.started != nil {
		close(f.started)
	}
	if f.gate != nil {
		<-f.gate
	}
	for _, fragment := range f.fragments {
		select {
		case ch <- llm.StreamChunk{Text: fragment}:
		case <-ctx.Done():
			return
		}
	}
	if f.err != nil {
		ch <- llm.StreamChunk{Err: f.err}
	}
}

// recordingRepo observes text patches flowing into the store, so a test can
// assert the exact sequence of accumulated prefixes a stream produced.
type recordingRepo struct {
	repository.Repository

	mu    sync.Mutex
	texts []string
}

func (r *recordingRepo) UpdateMessage(sessionID, messageID string, patch model.MessagePatch) {
	if patch.Text != nil {
		r.mu.Lock()
		r.texts = append(r.texts, *patch.Text)
		r.mu.Unlock()
	}
	r.Repository.UpdateMessage(sessionID, messageID, patch)
}

func (r *recordingRepo) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}
