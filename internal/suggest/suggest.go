// Package suggest asks a hosted language model for tactical suggestions
// on an analysis.
package suggest

import (
	"context"
	"fmt"
	"strings"

	"github.com/npezzotti/tactics-board/internal/types"
)

const maxSuggestions = 5

const (
	ProviderNone   = "none"
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
)

type Request struct {
	Formation types.Formation `json:"formation"`
	Analysis  types.Analysis  `json:"analysis"`
	Context   string          `json:"context"`
}

type Suggester interface {
	Suggest(ctx context.Context, req Request) ([]string, error)
}

// New builds the suggester for the named provider. It returns a nil
// Suggester for ProviderNone.
func New(provider, apiKey, model, baseURL string) (Suggester, error) {
	switch provider {
	case "", ProviderNone:
		return nil, nil
	case ProviderOpenAI:
		return NewChatCompletionsClient(orDefault(baseURL, OpenAIBaseURL), apiKey, orDefault(model, defaultOpenAIModel)), nil
	case ProviderGroq:
		return NewChatCompletionsClient(orDefault(baseURL, GroqBaseURL), apiKey, orDefault(model, defaultGroqModel)), nil
	}

	return nil, fmt.Errorf("unknown suggestion provider %q", provider)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// parseSuggestions turns a free text completion into one suggestion per
// line, stripping list markers.
func parseSuggestions(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• ")
		line = trimNumbering(line)
		if line == "" {
			continue
		}

		out = append(out, line)
		if len(out) == maxSuggestions {
			break
		}
	}

	return out
}

func trimNumbering(line string) string {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimSpace(line[i+1:])
	}

	return line
}
