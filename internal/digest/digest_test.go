package digest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cryptofolio/internal/config"
	"cryptofolio/internal/models"
	"cryptofolio/internal/portfolio"
)

func testSummary() portfolio.Summary {
	h := models.Holding{Coin: "bitcoin", Amount: decimal.RequireFromString("0.5"), BuyPrice: decimal.NewFromInt(1000)}
	return portfolio.Summarize("inr", []portfolio.HoldingValuation{portfolio.Value(h, 3000, "Bitcoin")})
}

func TestSnapshot(t *testing.T) {
	text := Snapshot("alice", testSummary())
	assert.Contains(t, text, "Portfolio of alice\n")
	assert.Contains(t, text, "Total balance: ₹1,500.00\n")
	assert.Contains(t, text, "Total profit/loss: ₹1,000.00\n")
	assert.Contains(t, text, "- Bitcoin: 0.5 @ ₹3,000.00, value ₹1,500.00, P/L ₹1,000.00, 100.00%\n")

	empty := Snapshot("bob", portfolio.Summarize("inr", nil))
	assert.Contains(t, empty, "No holdings.")
}

func TestWriter_Disabled(t *testing.T) {
	w := New(config.OpenAIConfig{}, zap.NewNop())
	assert.False(t, w.Enabled())

	text, err := w.Write(context.Background(), "alice", testSummary())
	require.NoError(t, err)
	assert.Equal(t, Snapshot("alice", testSummary()), text)
}

func TestWriter_Completion(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:     "chatcmpl-1",
			Object: "chat.completion",
			Model:  "test-model",
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: " Bitcoin is up. "},
				FinishReason: openai.FinishReasonStop,
			}},
		})
	}))
	defer srv.Close()

	w := New(config.OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "test-model"}, zap.NewNop())
	require.True(t, w.Enabled())

	text, err := w.Write(context.Background(), "alice", testSummary())
	require.NoError(t, err)
	assert.Equal(t, "Bitcoin is up.\n\n"+Snapshot("alice", testSummary()), text)

	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Contains(t, got.Messages[1].Content, "Bitcoin")
}

func TestWriter_CompletionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	w := New(config.OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, zap.NewNop())
	text, err := w.Write(context.Background(), "alice", testSummary())
	assert.Error(t, err)
	assert.Equal(t, Snapshot("alice", testSummary()), text)
}

func TestWriter_EmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	w := New(config.OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, zap.NewNop())
	_, err := w.Write(context.Background(), "alice", testSummary())
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}
