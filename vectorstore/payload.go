package vectorstore

import (
	"fmt"

	"github.com/poiesic/docqa/core"
	"github.com/tmc/langchaingo/schema"
)

// Extractor is implemented by payloads that know how to turn themselves into
// a chunk. It is the extension point for payload shapes not handled by
// AdaptPayload directly.
type Extractor interface {
	ExtractChunk() core.Chunk
}

// AdaptPayload resolves an ingestion payload to a chunk. Accepted shapes:
// core.Chunk, langchaingo schema.Document, an Extractor, and a map carrying
// "page_content" (or "content") with an optional "metadata" map.
func AdaptPayload(payload any) (core.Chunk, error) {
	switch v := payload.(type) {
	case core.Chunk:
		return v, nil
	case *core.Chunk:
		if v == nil {
			break
		}
		return *v, nil
	case schema.Document:
		return core.Chunk{Content: v.PageContent, Metadata: v.Metadata}, nil
	case *schema.Document:
		if v == nil {
			break
		}
		return core.Chunk{Content: v.PageContent, Metadata: v.Metadata}, nil
	case Extractor:
		return v.ExtractChunk(), nil
	case map[string]any:
		return adaptMap(v)
	}
	return core.Chunk{}, fmt.Errorf("%w: %T", core.ErrUnsupportedPayload, payload)
}

func adaptMap(m map[string]any) (core.Chunk, error) {
	raw, ok := m["page_content"]
	if !ok {
		raw, ok = m["content"]
	}
	if !ok {
		return core.Chunk{}, fmt.Errorf("%w: mapping without page_content", core.ErrUnsupportedPayload)
	}
	content, ok := raw.(string)
	if !ok {
		return core.Chunk{}, fmt.Errorf("%w: content is %T, not string", core.ErrUnsupportedPayload, raw)
	}

	chunk := core.Chunk{Content: content}
	switch meta := m["metadata"].(type) {
	case nil:
	case map[string]any:
		chunk.Metadata = meta
	case core.Metadata:
		chunk.Metadata = meta
	default:
		return core.Chunk{}, fmt.Errorf("%w: metadata is %T", core.ErrUnsupportedPayload, meta)
	}
	return chunk, nil
}

// AdaptPayloads adapts every payload, failing on the first unsupported one.
func AdaptPayloads(payloads []any) ([]core.Chunk, error) {
	chunks := make([]core.Chunk, len(payloads))
	for i, p := range payloads {
		chunk, err := AdaptPayload(p)
		if err != nil {
			return nil, fmt.Errorf("payload %d: %w", i, err)
		}
		chunks[i] = chunk
	}
	return chunks, nil
}
