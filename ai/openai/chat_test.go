package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChatModel(t *testing.T, handler http.HandlerFunc) *ChatModel {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	model, err := newChatModel(ai.NewConfig(
		ai.WithGenerationHost(server.URL),
		ai.WithGenerationModel("test-model"),
	))
	require.NoError(t, err)
	return model
}

func TestChatModel_Complete(t *testing.T) {
	model := newTestChatModel(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","model":"test-model",
			"choices":[{"index":0,"message":{"role":"assistant","content":"Paris."},"finish_reason":"stop"}]}`)
	})

	answer, err := model.Complete(context.Background(), "Capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris.", answer)
}

func TestChatModel_Stream(t *testing.T) {
	tokens := []string{"The", " answer", " is", " 42."}
	model := newTestChatModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, tok := range tokens {
			fmt.Fprintf(w, "data: {\"id\":\"s1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", tok)
			flusher.Flush()
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	})

	stream, err := model.Stream(context.Background(), "question")
	require.NoError(t, err)
	defer stream.Close()

	var got []string
	for {
		tok, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		if tok != "" {
			got = append(got, tok)
		}
	}
	assert.Equal(t, tokens, got)
}

func TestChatModel_ServerErrorIsTransient(t *testing.T) {
	model := newTestChatModel(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	_, err := model.Complete(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, retry.IsTransient(err))

	_, err = model.Stream(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, retry.IsTransient(err))
}

func TestChatModel_ClientErrorIsPermanent(t *testing.T) {
	model := newTestChatModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"unknown model","type":"invalid_request_error"}}`)
	})

	_, err := model.Complete(context.Background(), "q")
	require.Error(t, err)
	assert.False(t, retry.IsTransient(err))
}
