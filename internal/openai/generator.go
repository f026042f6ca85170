package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ojas-care/ojas/internal/domain"
)

const answerSystemPrompt = `You are a caregiver companion for people supporting someone living with dementia.

Answer the caregiver's question using only the provided source passages. Be warm, concrete, and practical. When a passage supports a statement, keep that grounding; do not invent facts the passages do not contain. If the passages do not cover the question, say so plainly and suggest speaking with a healthcare professional.`

// NoInformationAnswer is returned when retrieval produced no usable
// context. The model is never asked to answer from its own knowledge.
const NoInformationAnswer = "I couldn't find information about that in my knowledge base. " +
	"For questions I can't answer, a GP, dementia adviser, or local support line is the best next step."

// Generator synthesizes answers from assembled retrieval context.
type Generator struct {
	api   ChatAPI
	model string
}

// NewGenerator creates a Generator on an OpenAI-compatible endpoint.
func NewGenerator(apiKey, baseURL, model string) *Generator {
	if model == "" {
		model = DefaultChatModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Generator{
		api:   openai.NewClientWithConfig(cfg),
		model: model,
	}
}

// NewGeneratorWithAPI creates a Generator on an injected chat API.
func NewGeneratorWithAPI(api ChatAPI, model string) *Generator {
	if model == "" {
		model = DefaultChatModel
	}
	return &Generator{api: api, model: model}
}

// GenerateAnswer synthesizes an answer grounded on the context set.
// An empty context set short-circuits to NoInformationAnswer without a
// model call.
func (g *Generator) GenerateAnswer(ctx context.Context, query string, contextSet domain.RankedContextSet) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyText
	}
	if contextSet.Empty() {
		return NoInformationAnswer, nil
	}

	resp, err := g.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: 0.3,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: answerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: formatPrompt(query, contextSet)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("answer completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("answer completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func formatPrompt(query string, contextSet domain.RankedContextSet) string {
	var b strings.Builder
	b.WriteString("Source passages:\n\n")
	for i, e := range contextSet.Entries {
		fmt.Fprintf(&b, "[%d] %s", i+1, e.PageTitle)
		if e.TopicHeading != "" {
			fmt.Fprintf(&b, " - %s", e.TopicHeading)
		}
		b.WriteString("\n")
		b.WriteString(e.Content)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Question: %s", query)
	return b.String()
}
