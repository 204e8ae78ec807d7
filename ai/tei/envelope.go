package tei

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/poiesic/docqa/core"
)

type objectEnvelope struct {
	Embeddings [][]float32 `json:"embeddings"`
	Data       []struct {
		Embedding []float32 `json:"embedding"`
		Vector    []float32 `json:"vector"`
	} `json:"data"`
}

// DecodeEmbeddings accepts the response shapes embedding servers use in practice:
//
//	[[...], [...]]
//	{"embeddings": [[...], [...]]}
//	{"data": [{"embedding": [...]}, ...]}
//	{"data": [{"vector": [...]}, ...]}
//
// Anything else fails with core.ErrMalformedResponse.
func DecodeEmbeddings(payload []byte) ([][]float32, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", core.ErrMalformedResponse)
	}

	switch trimmed[0] {
	case '[':
		var vectors [][]float32
		if err := json.Unmarshal(trimmed, &vectors); err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrMalformedResponse, err)
		}
		return vectors, nil

	case '{':
		var env objectEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrMalformedResponse, err)
		}
		if env.Embeddings != nil {
			return env.Embeddings, nil
		}
		if env.Data != nil {
			vectors := make([][]float32, len(env.Data))
			for i, item := range env.Data {
				switch {
				case item.Embedding != nil:
					vectors[i] = item.Embedding
				case item.Vector != nil:
					vectors[i] = item.Vector
				default:
					return nil, fmt.Errorf("%w: data[%d] has neither embedding nor vector", core.ErrMalformedResponse, i)
				}
			}
			return vectors, nil
		}
	}

	return nil, fmt.Errorf("%w: unrecognized envelope %s", core.ErrMalformedResponse, truncate(trimmed, 64))
}
