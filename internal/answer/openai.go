package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = `You are a customer-support assistant. Answer the user's question using only the numbered sources provided, which are past support tickets and knowledge-base documents. Cite sources by number in square brackets. If the sources do not contain the answer, say so briefly.`

// ChatClient is the subset of the OpenAI client the composer needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI composes answers with a chat-completions model.
type OpenAI struct {
	client    ChatClient
	model     string
	maxTokens int
}

// NewOpenAI builds a composer against the OpenAI API, or against any
// compatible endpoint when baseURL is set.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return NewOpenAIWithClient(openai.NewClientWithConfig(cfg), model)
}

func NewOpenAIWithClient(client ChatClient, model string) *OpenAI {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{client: client, model: model, maxTokens: 512}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Generate(ctx context.Context, query string, sources []Source) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(query, sources)},
		},
		MaxTokens:   o.maxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("chat completion returned empty content")
	}
	return content, nil
}

func userPrompt(query string, sources []Source) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nSources:\n", query)
	if len(sources) == 0 {
		b.WriteString("(none)\n")
	}
	for i, s := range sources {
		fmt.Fprintf(&b, "[%d] %s %d %q (score %.2f)\n%s\n\n", i+1, s.Type, s.ID, s.Label(), s.Score, s.Snippet)
	}
	return b.String()
}
