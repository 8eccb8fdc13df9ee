package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	genai "google.golang.org/genai"

	app_errors "nova-ai/backend/internal/errors"
	"nova-ai/backend/internal/model"
)

// ProviderConfig names the models backing each non-chat operation.
type ProviderConfig struct {
	ImageModel      string
	TTSModel        string
	TranscribeModel string
	TTSVoice        string
}

// geminiProvider implements Provider on top of the Gemini API. The underlying
// client is constructed lazily so that a missing credential at startup does
// not prevent the application from serving; the first remote call surfaces
// the failure instead.
type geminiProvider struct {
	apiKey string
	cfg    ProviderConfig

	mu     sync.Mutex
	client *genai.Client
}

func NewGeminiProvider(apiKey string, cfg ProviderConfig) Provider {
	if cfg.TTSVoice == "" {
		cfg.TTSVoice = "Kore"
	}
	return &geminiProvider{apiKey: apiKey, cfg: cfg}
}

func (p *geminiProvider) ensureClient(ctx context.Context) (*genai.Client, error) {
	if p.apiKey == "" {
		return nil, app_errors.ErrCredentialMissing
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", app_errors.ErrCredentialMissing, err)
	}
	p.client = client
	return client, nil
}

func (p *geminiProvider) NewConversation(ctx context.Context, modelID string, history []Turn, cfg ConversationConfig) (Conversation, error) {
	client, err := p.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser),
	}
	if cfg.ThinkingBudget != nil {
		genCfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: cfg.ThinkingBudget}
	}

	chat, err := client.Chats.Create(ctx, modelID, genCfg, historyContents(history))
	if err != nil {
		return nil, fmt.Errorf("could not create chat for model %s: %w", modelID, err)
	}
	return &geminiConversation{chat: chat}, nil
}

type geminiConversation struct {
	chat *genai.Chat
}

func (c *geminiConversation) SendStream(ctx context.Context, parts []Part, ch chan<- StreamChunk) {
	defer close(ch)

	msgParts := make([]genai.Part, 0, len(parts))
	for _, part := range parts {
		if len(part.Data) > 0 {
			msgParts = append(msgParts, genai.Part{InlineData: &genai.Blob{Data: part.Data, MIMEType: part.MIME}})
			continue
		}
		msgParts = append(msgParts, genai.Part{Text: part.Text})
	}

	for chunk, err := range c.chat.SendMessageStream(ctx, msgParts...) {
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			select {
			case ch <- StreamChunk{Err: err}:
			case <-ctx.Done():
			}
			return
		}
		text := chunk.Text()
		if text == "" {
			continue
		}
		select {
		case ch <- StreamChunk{Text: text}:
		case <-ctx.Done():
			return
		}
	}
}

func (p *geminiProvider) GenerateImage(ctx context.Context, prompt, aspectRatio string) (*Generated, error) {
	client, err := p.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.Models.GenerateImages(ctx, p.cfg.ImageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    aspectRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, errors.New("image generation returned no image")
	}

	img := resp.GeneratedImages[0].Image
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return &Generated{Data: img.ImageBytes, MIME: mime}, nil
}

func (p *geminiProvider) GenerateSpeech(ctx context.Context, text string) (*Generated, error) {
	client, err := p.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := client.Models.GenerateContent(ctx, p.cfg.TTSModel, genai.Text(text), &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: p.cfg.TTSVoice},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mime := part.InlineData.MIMEType
				if mime == "" {
					mime = "audio/wav"
				}
				return &Generated{Data: part.InlineData.Data, MIME: mime}, nil
			}
		}
	}
	return nil, errors.New("speech synthesis returned no audio")
}

const transcribePrompt = "Transcribe this audio recording. Respond with only the transcript text, nothing else."

func (p *geminiProvider) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	client, err := p.ensureClient(ctx)
	if err != nil {
		return "", err
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(audio, mimeType),
		genai.NewPartFromText(transcribePrompt),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := client.Models.GenerateContent(ctx, p.cfg.TranscribeModel, contents, nil)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	// An empty transcript is a valid outcome (e.g. silent recording).
	return strings.TrimSpace(resp.Text()), nil
}

func historyContents(history []Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		parts := make([]*genai.Part, 0, len(turn.Parts))
		for _, part := range turn.Parts {
			if len(part.Data) > 0 {
				parts = append(parts, genai.NewPartFromBytes(part.Data, part.MIME))
				continue
			}
			parts = append(parts, genai.NewPartFromText(part.Text))
		}
		var role genai.Role = genai.RoleUser
		if turn.Role == model.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents
}
