package ai

import "context"

type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings.
	// The returned slice contains embeddings in the same order as the input texts.
	// Transports return whatever the remote service produced; count checks
	// belong to the caller.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// TokenStream is an established streamed completion.
// Recv returns io.EOF once the remote side has finished. Close releases the
// underlying connection and may be called at any point.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

type ChatModel interface {
	// Complete sends prompt as a single user message and returns the whole reply.
	Complete(ctx context.Context, prompt string) (string, error)

	// Stream sends prompt and returns once the remote service has accepted the
	// request and started streaming. ctx governs the entire stream lifetime,
	// not just the handshake.
	Stream(ctx context.Context, prompt string) (TokenStream, error)
}

type AIProvider interface {
	// Embedder returns the raw embedding transport. It does no batching or retrying.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// ChatModel returns the completion service.
	// The returned ChatModel is safe for concurrent use.
	ChatModel() ChatModel

	// Close releases resources held by the provider and its services.
	Close() error
}
