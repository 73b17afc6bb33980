package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"cryptofolio/internal/config"
	"cryptofolio/internal/models"
	"cryptofolio/internal/portfolio"
)

const systemPrompt = "You are a concise crypto portfolio assistant. Given a portfolio snapshot, " +
	"write at most five short sentences covering overall performance, the largest position " +
	"and anything notable. Do not give financial advice."

var ErrEmptyCompletion = errors.New("empty completion")

// Writer produces a short text digest of a portfolio. Without an API key it
// returns the plain snapshot.
type Writer struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

func New(cfg config.OpenAIConfig, logger *zap.Logger) *Writer {
	w := &Writer{model: cfg.Model, logger: logger}
	if w.model == "" {
		w.model = openai.GPT4oMini
	}
	if cfg.APIKey == "" {
		return w
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	w.client = openai.NewClientWithConfig(clientCfg)
	return w
}

func (w *Writer) Enabled() bool {
	return w.client != nil
}

// Write returns the model's commentary followed by the snapshot. If the
// completion fails the snapshot alone is returned with the error.
func (w *Writer) Write(ctx context.Context, name string, summary portfolio.Summary) (string, error) {
	snapshot := Snapshot(name, summary)
	if w.client == nil {
		return snapshot, nil
	}

	resp, err := w.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: w.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: snapshot},
		},
		Temperature: 0.3,
		MaxTokens:   300,
	})
	if err != nil {
		w.logger.Warn("Digest completion failed", zap.String("model", w.model), zap.Error(err))
		return snapshot, fmt.Errorf("digest completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return snapshot, ErrEmptyCompletion
	}

	w.logger.Debug("Digest written",
		zap.String("model", resp.Model),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return strings.TrimSpace(resp.Choices[0].Message.Content) + "\n\n" + snapshot, nil
}

// Snapshot renders the summary as plain text.
func Snapshot(name string, summary portfolio.Summary) string {
	var sb strings.Builder
	cur := summary.Currency

	fmt.Fprintf(&sb, "Portfolio of %s\n", name)
	fmt.Fprintf(&sb, "Total balance: %s\n", models.FormatMoney(summary.TotalBalance, cur))
	fmt.Fprintf(&sb, "Total profit/loss: %s\n", models.FormatMoney(summary.TotalProfitLoss, cur))

	if len(summary.Holdings) == 0 {
		sb.WriteString("No holdings.\n")
		return sb.String()
	}

	sb.WriteString("\nHoldings:\n")
	for i, h := range summary.Holdings {
		price := "N/A"
		if h.PriceKnown {
			price = models.FormatMoney(h.CurrentPrice, cur)
		}
		pct := 0.0
		if i < len(summary.Allocation) {
			pct = summary.Allocation[i].Percent
		}
		fmt.Fprintf(&sb, "- %s: %s @ %s, value %s, P/L %s, %.2f%%\n",
			h.Name,
			h.Amount.String(),
			price,
			models.FormatMoney(h.Value, cur),
			models.FormatMoney(h.ProfitLoss, cur),
			pct)
	}
	return sb.String()
}
