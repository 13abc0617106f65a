package suggest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	OpenAIBaseURL = "https://api.openai.com/v1"
	GroqBaseURL   = "https://api.groq.com/openai/v1"

	defaultOpenAIModel = "gpt-4o-mini"
	defaultGroqModel   = "llama-3.1-8b-instant"
)

const systemPrompt = "You are an assistant for football (soccer) coaches. " +
	"Given a formation and a match analysis, reply with at most five short, " +
	"concrete tactical suggestions, one per line, without any introduction."

// ChatCompletionsClient talks to any OpenAI compatible chat completions
// endpoint. Groq exposes the same API under a different base URL.
type ChatCompletionsClient struct {
	client  *openai.Client
	baseURL string
	model   string
}

func NewChatCompletionsClient(baseURL, apiKey, model string) *ChatCompletionsClient {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}

	return &ChatCompletionsClient{
		client:  openai.NewClientWithConfig(cfg),
		baseURL: cfg.BaseURL,
		model:   model,
	}
}

func (c *ChatCompletionsClient) Suggest(ctx context.Context, req Request) ([]string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(req)},
		},
		Temperature: 0.4,
	})
	if err != nil {
		return nil, completionError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completions: empty response")
	}

	return parseSuggestions(resp.Choices[0].Message.Content), nil
}

// completionError keeps the upstream status visible, including for
// error bodies that are not JSON.
func completionError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("chat completions: status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("chat completions: status %d: %w", reqErr.HTTPStatusCode, err)
	}

	return fmt.Errorf("chat completions: %w", err)
}

func buildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Formation: %s\n", req.Formation.Name)
	for _, p := range req.Formation.Players {
		fmt.Fprintf(&b, "- #%d %s at (%.0f, %.0f)\n", p.Number, p.Position, p.X, p.Y)
	}
	for _, t := range req.Formation.Tactics {
		fmt.Fprintf(&b, "Instruction (%s): %s\n", t.Type, t.Description)
	}

	fmt.Fprintf(&b, "\nAnalysis: %s\n%s\n", req.Analysis.Title, req.Analysis.Description)
	if len(req.Analysis.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(req.Analysis.Tags, ", "))
	}
	if req.Context != "" {
		fmt.Fprintf(&b, "\nContext: %s\n", req.Context)
	}

	return b.String()
}
