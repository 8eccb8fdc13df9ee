package service

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	app_errors "nova-ai/backend/internal/errors"
	"nova-ai/backend/internal/llm"
	"nova-ai/backend/internal/model"
	"nova-ai/backend/internal/repository"
)

func newChatFixture() (*ChatService, *mockProvider, *recordingRepo) {
	cfg := testConfig()
	provider := new(mockProvider)
	repo := &recordingRepo{Repository: repository.NewMemoryRepository()}
	manager := NewContextManager(provider, cfg)
	return NewChatService(repo, provider, manager, cfg), provider, repo
}

func collectStream(stream chan model.StreamResponse) []model.StreamResponse {
	var out []model.StreamResponse
	for resp := range stream {
		out = append(out, resp)
	}
	return out
}

func TestChatService_Send_ChatStream(t *testing.T) {
	svc, provider, repo := newChatFixture()
	conv := &fakeConversation{fragments: []string{"Hel", "lo, ", "world"}}
	provider.On("NewConversation", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(conv, nil)

	sess := svc.CreateSession(context.Background())

	stream := make(chan model.StreamResponse, 16)
	svc.Send(context.Background(), &SendRequest{Text: "tell me about cats"}, stream)
	responses := collectStream(stream)

	// Each fragment is flushed as-is, followed by a terminal done marker.
	require.Len(t, responses, 4)
	assert.Equal(t, "Hel", responses[0].Content)
	assert.Equal(t, "lo, ", responses[1].Content)
	assert.Equal(t, "world", responses[2].Content)
	assert.True(t, responses[3].Done)

	// The placeholder grew through every prefix of the reply.
	assert.Equal(t, []string{"Hel", "Hello, ", "Hello, world"}, repo.Texts())

	got, err := repo.GetSession(sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, model.RoleUser, got.Messages[0].Role)
	assert.Equal(t, "tell me about cats", got.Messages[0].Text)
	assert.Equal(t, model.RoleModel, got.Messages[1].Role)
	assert.Equal(t, "Hello, world", got.Messages[1].Text)
	assert.False(t, got.Messages[1].IsError)
	assert.False(t, svc.IsLoading())
}

func TestChatService_Send_LazyRebuildExcludesPendingTurn(t *testing.T) {
	svc, provider, repo := newChatFixture()

	// The conversation could not be built when the session was created; the
	// send-time retry must prime history without the turn being sent now.
	provider.On("NewConversation", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("no credential")).Once()
	sess := svc.CreateSession(context.Background())

	var captured []llm.Turn
	provider.On("NewConversation", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).([]llm.Turn)
		}).
		Return(&fakeConversation{fragments: []string{"hi"}}, nil).Once()

	stream := make(chan model.StreamResponse, 16)
	svc.Send(context.Background(), &SendRequest{Text: "first message"}, stream)
	collectStream(stream)

	assert.Empty(t, captured)

	got, err := repo.GetSession(sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	provider.AssertExpectations(t)
}

func TestChatService_Send_SessionIsolation(t *testing.T) {
	svc, provider, repo := newChatFixture()
	conv := &fakeConversation{
		fragments: []string{"landing ", "late"},
		started:   make(chan struct{}),
		gate:      make(chan struct{}),
	}
	provider.On("NewConversation", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(conv, nil)

	first := svc.CreateSession(context.Background())

	stream := make(chan model.StreamResponse, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Send(context.Background(), &SendRequest{SessionID: first.ID, Text: "slow question"}, stream)
	}()

	// Switch away mid-stream, then let the reply finish.
	<-conv.started
	second := svc.CreateSession(context.Background())
	close(conv.gate)
	<-done
	collectStream(stream)

	got, err := repo.GetSession(first.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "landing late", got.Messages[1].Text)

	other, err := repo.GetSession(second.ID)
	require.NoError(t, err)
	assert.Empty(t, other.Messages)
}

func TestChatService_Send_ConsumerStopsReading(t *testing.T) {
	svc, provider, _ := newChatFixture()
	fragments := make([]string, 50)
	for i := range fragments {
		fragments[i] = "frag "
	}
	conv := &fakeConversation{fragments: fragments}
	provider.On("NewConversation", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(conv, nil)

	svc.CreateSession(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := make(chan model.StreamResponse)
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Send(ctx, &SendRequest{Text: "long answer please"}, stream)
	}()

	// Take one chunk, then walk away without draining the rest.
	<-stream
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send did not terminate after the consumer stopped reading")
	}
	assert.False(t, svc.IsLoading())
}

func TestChatService_Send_ExplicitSessionUsesItsHistory(t *testing.T) {
	svc, provider, repo := newChatFixture()
	conv := &fakeConversation{fragments: []string{"ok"}}

	var histories [][]llm.Turn
	provider.On("NewConversation", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			histories = append(histories, args.Get(2).([]llm.Turn))
		}).
		Return(conv, nil)

	first := svc.CreateSession(context.Background())

	stream := make(chan model.StreamResponse, 16)
	svc.Send(context.Background(), &SendRequest{Text: "hello one"}, stream)
	collectStream(stream)

	// A new current session must not donate its (empty) primed history to a
	// send that explicitly targets the old one.
	second := svc.CreateSession(context.Background())

	stream = make(chan model.StreamResponse, 16)
	svc.Send(context.Background(), &SendRequest{SessionID: first.ID, Text: "hello two"}, stream)
	collectStream(stream)

	last := histories[len(histories)-1]
	require.Len(t, last, 2)
	assert.Equal(t, "hello one", last[0].Parts[0].Text)
	assert.Equal(t, "ok", last[1].Parts[0].Text)

	got, err := repo.GetSession(first.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 4)

	other, err := repo.GetSession(second.ID)
	require.NoError(t, err)
	assert.Empty(t, other.Messages)
}

func TestChatService_Send_StreamError(t *testing.T) {
	svc, provider, repo := newChatFixture()
	conv := &fakeConversation{
		fragments: []string{"par"},
		err:       errors.New("googleapi: Error 429: quota exceeded"),
	}
	provider.On("NewConversation", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(conv, nil)

	sess := svc.CreateSession(context.Background())

	stream := make(chan model.StreamResponse, 16)
	svc.Send(context.Background(), &SendRequest{Text: "hi"}, stream)
	responses := collectStream(stream)

	last := responses[len(responses)-1]
	assert.True(t, last.Done)
	assert.Equal(t, app_errors.MsgRateLimited, last.Error)

	got, err := repo.GetSession(sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.True(t, got.Messages[1].IsError)
	assert.Equal(t, app_errors.MsgRateLimited, got.Messages[1].Text)
	assert.False(t, svc.IsLoading())
}

func TestChatService_Send_CredentialMissing(t *testing.T) {
	svc, provider, repo := newChatFixture()
	provider.On("NewConversation", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, app_errors.ErrCredentialMissing)

	sess := svc.CreateSession(context.Background())

	stream := make(chan model.StreamResponse, 16)
	svc.Send(context.Background(), &SendRequest{Text: "hi"}, stream)
	responses := collectStream(stream)

	last := responses[len(responses)-1]
	assert.Equal(t, app_errors.MsgCredentialMissing, last.Error)

	got, err := repo.GetSession(sess.ID)
	require.NoError(t, err)
	assert.True(t, got.Messages[1].IsError)
	assert.Equal(t, app_errors.MsgCredentialMissing, got.Messages[1].Text)
	assert.False(t, svc.IsLoading())
}

func TestChatService_Send_Image(t *testing.T) {
	svc, provider, repo := newChatFixture()
	provider.On("NewConversation", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&fakeConversation{}, nil)
	provider.On("GenerateImage", mock.Anything, "Draw a cat", "1:1").
		Return(&llm.Generated{Data: []byte{1, 2, 3}, MIME: "image/png"}, nil).Once()

	sess := svc.CreateSession(context.Background())

	stream := make(chan model.StreamResponse, 16)
	svc.Send(context.Background(), &SendRequest{Text: "Draw a cat"}, stream)
	responses := collectStream(stream)

	require.Len(t, responses, 1)
	assert.True(t, responses[0].Done)
	require.NotNil(t, responses[0].Message)
	assert.Equal(t, imageCaption, responses[0].Message.Text)

	got, err := repo.GetSession(sess.ID)
	require.NoError(t, err)
	reply := got.Messages[1]
	assert.Equal(t, imageCaption, reply.Text)
	assert.Equal(t, model.TypeImageGeneration, reply.Type)
	require.Len(t, reply.Attachments, 1)
	assert.Equal(t, model.AttachmentImage, reply.Attachments[0].Type)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), reply.Attachments[0].Data)
	assert.Equal(t, "image/png", reply.Attachments[0].MimeType)
	assert.False(t, svc.IsLoading())
	provider.AssertExpectations(t)
}

func TestChatService_Send_Speech(t *testing.T) {
	t.Run("Speaks the remainder", func(t *testing.T) {
		svc, provider, repo := newChatFixture()
		provider.On("NewConversation", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(&fakeConversation{}, nil)
		provider.On("GenerateSpeech", mock.Anything, "hello there").
			Return(&llm.Generated{Data: []byte{9, 9}, MIME: "audio/wav"}, nil).Once()

		sess := svc.CreateSession(context.Background())

		stream := make(chan model.StreamResponse, 16)
		svc.Send(context.Background(), &SendRequest{Text: "say hello there"}, stream)
		collectStream(stream)

		got, err := repo.GetSession(sess.ID)
		require.NoError(t, err)
		reply := got.Messages[1]
		assert.Equal(t, "hello there", reply.Text)
		assert.Equal(t, model.TypeAudioGeneration, reply.Type)
		require.Len(t, reply.Attachments, 1)
		assert.Equal(t, model.AttachmentAudio, reply.Attachments[0].Type)
		provider.AssertExpectations(t)
	})

	t.Run("Bare command speaks the greeting", func(t *testing.T) {
		svc, provider, repo := newChatFixture()
		provider.On("NewConversation", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(&fakeConversation{}, nil)
		provider.On("GenerateSpeech", mock.Anything, fallbackUtterance).
			Return(&llm.Generated{Data: []byte{9}, MIME: "audio/wav"}, nil).Once()

		sess := svc.CreateSession(context.Background())

		stream := make(chan model.StreamResponse, 16)
		svc.Send(context.Background(), &SendRequest{Text: "SAY"}, stream)
		collectStream(stream)

		got, err := repo.GetSession(sess.ID)
		require.NoError(t, err)
		assert.Equal(t, fallbackUtterance, got.Messages[1].Text)
		provider.AssertExpectations(t)
	})
}

func TestChatService_Send_NoCurrentSession(t *testing.T) {
	svc, _, _ := newChatFixture()

	stream := make(chan model.StreamResponse, 16)
	svc.Send(context.Background(), &SendRequest{Text: "hi"}, stream)

	assert.Empty(t, collectStream(stream))
}

func TestChatService_SetModel(t *testing.T) {
	svc, provider, repo := newChatFixture()
	provider.On("NewConversation", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&fakeConversation{}, nil)

	sess := svc.CreateSession(context.Background())

	t.Run("Unknown model is rejected", func(t *testing.T) {
		err := svc.SetModel(context.Background(), "gpt-4")
		assert.ErrorIs(t, err, app_errors.ErrValidation)
	})

	t.Run("Persists onto the current session", func(t *testing.T) {
		require.NoError(t, svc.SetModel(context.Background(), "gemini-2.5-pro"))
		assert.Equal(t, "gemini-2.5-pro", svc.SelectedModel())

		got, err := repo.GetSession(sess.ID)
		require.NoError(t, err)
		assert.Equal(t, "gemini-2.5-pro", got.Model)
	})

	t.Run("New sessions inherit the selection", func(t *testing.T) {
		fresh := svc.CreateSession(context.Background())
		assert.Equal(t, "gemini-2.5-pro", fresh.Model)
	})
}

func TestChatService_SelectSession(t *testing.T) {
	svc, provider, _ := newChatFixture()
	provider.On("NewConversation", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&fakeConversation{}, nil)

	first := svc.CreateSession(context.Background())
	second := svc.CreateSession(context.Background())
	require.Equal(t, second.ID, svc.CurrentSessionID())
	// Upgrades the current session only; first keeps its fast binding.
	require.NoError(t, svc.SetModel(context.Background(), "gemini-2.5-pro"))

	t.Run("Unknown id", func(t *testing.T) {
		_, err := svc.SelectSession(context.Background(), "nope")
		assert.ErrorIs(t, err, app_errors.ErrNotFound)
	})

	t.Run("Switching restores the session's model", func(t *testing.T) {
		got, err := svc.SelectSession(context.Background(), first.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
		assert.Equal(t, "gemini-2.5-flash", svc.SelectedModel())
		assert.Equal(t, first.ID, svc.CurrentSessionID())
	})

	t.Run("Selecting the current session is a no-op", func(t *testing.T) {
		_, err := svc.SelectSession(context.Background(), first.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, svc.CurrentSessionID())
	})
}

func TestChatService_Transcribe(t *testing.T) {
	audio := []byte{0x52, 0x49, 0x46, 0x46}
	encoded := base64.StdEncoding.EncodeToString(audio)

	t.Run("Returns the transcript", func(t *testing.T) {
		svc, provider, _ := newChatFixture()
		provider.On("Transcribe", mock.Anything, audio, "audio/wav").
			Return("hello world", nil).Once()

		text, err := svc.Transcribe(context.Background(), encoded, "audio/wav")
		require.NoError(t, err)
		assert.Equal(t, "hello world", text)
		provider.AssertExpectations(t)
	})

	t.Run("Rejects invalid base64", func(t *testing.T) {
		svc, _, _ := newChatFixture()
		_, err := svc.Transcribe(context.Background(), "%%%", "audio/wav")
		assert.ErrorIs(t, err, app_errors.ErrValidation)
	})

	t.Run("Wraps provider failures", func(t *testing.T) {
		svc, provider, _ := newChatFixture()
		provider.On("Transcribe", mock.Anything, audio, "audio/wav").
			Return("", errors.New("boom")).Once()

		_, err := svc.Transcribe(context.Background(), encoded, "audio/wav")
		assert.ErrorIs(t, err, app_errors.ErrTranscription)
	})
}
