package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultChatModel is the model used for query decomposition and
// answer synthesis.
const DefaultChatModel = "gpt-4o-mini"

const decomposeSystemPrompt = `You break down a caregiver's question about dementia care into focused search queries.

Given one question, produce between 2 and 5 short search queries that together cover its distinct facets (symptoms, stages, daily care, safety, communication, legal or financial aspects). Each query must stand alone as a search input.

Respond with a JSON array of strings and nothing else. Example:
["early signs of dementia", "how dementia is diagnosed"]`

// ChatAPI is the slice of the chat completion API the decomposer and
// generator need.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Decomposer turns one caregiver question into targeted sub-queries
// via a chat completion. Malformed model output degrades to nothing;
// the caller falls back to the original question.
type Decomposer struct {
	api   ChatAPI
	model string
}

// NewDecomposer creates a Decomposer on an OpenAI-compatible endpoint.
func NewDecomposer(apiKey, baseURL, model string) *Decomposer {
	if model == "" {
		model = DefaultChatModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Decomposer{
		api:   openai.NewClientWithConfig(cfg),
		model: model,
	}
}

// NewDecomposerWithAPI creates a Decomposer on an injected chat API.
func NewDecomposerWithAPI(api ChatAPI, model string) *Decomposer {
	if model == "" {
		model = DefaultChatModel
	}
	return &Decomposer{api: api, model: model}
}

// Decompose returns the model's sub-queries for the given question.
func (d *Decomposer) Decompose(ctx context.Context, query string) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyText
	}

	resp, err := d.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       d.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: decomposeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("decompose completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, nil
	}

	return parseSubQueries(resp.Choices[0].Message.Content), nil
}

// parseSubQueries extracts sub-queries from model output. It accepts a
// bare JSON array, an array wrapped in a markdown fence, and as a last
// resort one query per non-empty line. Anything unusable yields nil.
func parseSubQueries(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	if fenced := strings.TrimPrefix(content, "```json"); fenced != content {
		content = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(fenced), "```"))
	} else if fenced := strings.TrimPrefix(content, "```"); fenced != content {
		content = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(fenced), "```"))
	}

	var queries []string
	if err := json.Unmarshal([]byte(content), &queries); err == nil {
		return cleanQueries(queries)
	}

	// Some models reply with a prose preamble before the array.
	if start, end := strings.Index(content, "["), strings.LastIndex(content, "]"); start >= 0 && end > start {
		if err := json.Unmarshal([]byte(content[start:end+1]), &queries); err == nil {
			return cleanQueries(queries)
		}
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. "))
		line = strings.Trim(line, `"`)
		if line != "" {
			queries = append(queries, line)
		}
	}
	return cleanQueries(queries)
}

func cleanQueries(queries []string) []string {
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		out = append(out, q)
		if len(out) == 5 {
			break
		}
	}
	return out
}
