package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

func completionResponse(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	resp := openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: "assistant", Content: content}},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func newTestClassifier(t *testing.T, handler http.Handler) *OpenAIClassifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIClassifier(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
	}, zerolog.Nop())
}

func TestClassifyBatch(t *testing.T) {
	t.Parallel()

	var gotReq openai.ChatCompletionRequest
	c := newTestClassifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		completionResponse(t, w,
			`[{"type": "subscription", "message_id": "m1", "confidence": 88, "name": "Netflix", "amount": 15.99}]`)
	}))

	items := []BatchItem{{MessageID: "m1", Content: "Subject: Receipt\n\nNetflix $15.99"}}
	results, err := c.ClassifyBatch(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "SUBSCRIPTION", results[0].Kind)
	require.Equal(t, "Netflix", results[0].Name)

	// One system message with the contract, one user message with the batch.
	require.Len(t, gotReq.Messages, 2)
	require.Equal(t, openai.ChatMessageRoleSystem, gotReq.Messages[0].Role)
	require.Contains(t, gotReq.Messages[1].Content, `"message_id":"m1"`)
}

func TestClassifyBatchEmptyInput(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty batch")
	}))
	results, err := c.ClassifyBatch(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, results)
}

func TestClassifyBatchServerErrorIsUnavailable(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "overloaded"}}`, http.StatusInternalServerError)
	}))

	_, err := c.ClassifyBatch(context.Background(), []BatchItem{{MessageID: "m1", Content: "x"}})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestClassifyBatchBadShape(t *testing.T) {
	t.Parallel()

	c := newTestClassifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		completionResponse(t, w, "I could not classify these emails, sorry.")
	}))

	_, err := c.ClassifyBatch(context.Background(), []BatchItem{{MessageID: "m1", Content: "x"}})
	var shapeErr *ShapeError
	require.ErrorAs(t, err, &shapeErr)
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	var requests int
	c := newTestClassifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.Error(w, `{"error": {"message": "down"}}`, http.StatusInternalServerError)
	}))

	items := []BatchItem{{MessageID: "m1", Content: "x"}}
	for i := 0; i < 6; i++ {
		_, err := c.ClassifyBatch(context.Background(), items)
		require.ErrorIs(t, err, ErrUnavailable)
	}
	// After the trip threshold the breaker fails fast without calling out.
	require.Less(t, requests, 6)
}
