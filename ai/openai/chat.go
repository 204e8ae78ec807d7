package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
	goopenai "github.com/sashabaranov/go-openai"
)

// ChatModel implements ai.ChatModel against an OpenAI-compatible
// /chat/completions endpoint. The prompt is sent as a single user message.
type ChatModel struct {
	client *goopenai.Client
	model  string
	logger *slog.Logger
}

func newChatModel(config *ai.Config) (*ChatModel, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	clientConfig := goopenai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = config.GenerationHost

	return &ChatModel{
		client: goopenai.NewClientWithConfig(clientConfig),
		model:  config.GenerationModel,
		logger: slog.Default().With("component", "openai-chat"),
	}, nil
}

// NewChatModel creates a chat model using the provided configuration.
//
// Returns ai.ChatModel interface to enforce abstraction.
func NewChatModel(config *ai.Config) (ai.ChatModel, error) {
	return newChatModel(config)
}

func (m *ChatModel) request(prompt string) goopenai.ChatCompletionRequest {
	return goopenai.ChatCompletionRequest{
		Model: m.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
	}
}

// Complete returns the first choice of a non-streamed completion.
func (m *ChatModel) Complete(ctx context.Context, prompt string) (string, error) {
	m.logger.Debug("requesting completion", "model", m.model, "promptLength", len(prompt))

	resp, err := m.client.CreateChatCompletion(ctx, m.request(prompt))
	if err != nil {
		return "", classify(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: completion has no choices", core.ErrMalformedResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream opens a streamed completion. It returns after the server has
// answered the request; tokens are pulled with Recv.
func (m *ChatModel) Stream(ctx context.Context, prompt string) (ai.TokenStream, error) {
	m.logger.Debug("opening completion stream", "model", m.model, "promptLength", len(prompt))

	req := m.request(prompt)
	req.Stream = true
	stream, err := m.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return &tokenStream{ctx: ctx, stream: stream}, nil
}

type tokenStream struct {
	ctx    context.Context
	stream *goopenai.ChatCompletionStream
}

// Recv returns the next content delta. Chunks without content (role
// announcements, finish markers) come back as empty strings.
func (s *tokenStream) Recv() (string, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		return "", classify(s.ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (s *tokenStream) Close() error {
	return s.stream.Close()
}
