package processors

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"videoTranscriptQA/core"
	"videoTranscriptQA/storage"
)

// The summary path reuses the question path with this fixed instruction.
const summaryInstruction = "Give a concise summary of the content."

// Generator produces text from a prompt. Implementations enforce their
// own call timeout and are safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OpenAIGenerator generates through the chat completions endpoint.
type OpenAIGenerator struct {
	cli     *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIGenerator(cli *openai.Client, model string, timeout time.Duration) *OpenAIGenerator {
	return &OpenAIGenerator{cli: cli, model: model, timeout: timeout}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	resp, err := g.cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   1000,
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// MockGenerator answers by echoing the retrieved context. Used when no
// API key is configured, and in tests.
type MockGenerator struct{}

func (MockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	// The context block sits between the markers of the prompt
	// template; everything past the last one is the question.
	const marker = "Context:\n"
	if i := strings.Index(prompt, marker); i >= 0 {
		rest := prompt[i+len(marker):]
		if j := strings.Index(rest, "\n\nQuestion:"); j >= 0 {
			rest = rest[:j]
		}
		return "Based on the transcript: " + strings.TrimSpace(rest), nil
	}
	return "No relevant context found.", nil
}

// Answerer runs retrieval-augmented generation against one request's
// vector index: retrieve top-k chunks, stuff them into one context
// block in retrieval order, and generate constrained to that block.
type Answerer struct {
	Generator Generator
	TopK      int
}

func NewAnswerer(gen Generator, topK int) *Answerer {
	return &Answerer{Generator: gen, TopK: topK}
}

// Answer responds to a question from the indexed transcript. The
// generation engine is invoked once; a failure is terminal for the
// request, retries are the caller's decision.
func (a *Answerer) Answer(ctx context.Context, index storage.VectorIndex, question string) (core.Answer, error) {
	hits, err := index.Search(ctx, question, a.TopK)
	if err != nil {
		return core.Answer{}, core.NewGenerationError(fmt.Errorf("retrieve context: %w", err))
	}

	contextBlock := stuffContext(hits)
	prompt := fmt.Sprintf(
		"Answer the question using only the supplied context. If the context does not contain the answer, say so.\n\nContext:\n%s\n\nQuestion: %s\n\nAnswer:",
		contextBlock, question)

	text, err := a.Generator.Generate(ctx, prompt)
	if err != nil {
		return core.Answer{}, core.NewGenerationError(err)
	}
	if strings.TrimSpace(text) == "" {
		return core.Answer{}, core.NewGenerationError(fmt.Errorf("generation engine returned an empty response"))
	}
	return core.Answer{Question: question, Text: text}, nil
}

// Summarize runs the same retrieval and generation path with the fixed
// summary instruction in place of a user question.
func (a *Answerer) Summarize(ctx context.Context, index storage.VectorIndex) (core.Answer, error) {
	return a.Answer(ctx, index, summaryInstruction)
}

// stuffContext concatenates retrieved chunk texts in retrieval order.
func stuffContext(hits []core.Hit) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = h.Chunk.Text
	}
	return strings.Join(parts, "\n\n")
}
