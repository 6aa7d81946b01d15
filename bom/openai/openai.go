// Package openai implements bom.Generator using the OpenAI Chat Completions
// API. The model is prompted for bare JSON and the first choice is decoded
// into a protocol.BOM.
package openai

import (
	"context"
	"fmt"

	"github.com/hupe1980/procuremesh/bom"
	"github.com/hupe1980/procuremesh/protocol"
	"github.com/openai/openai-go"
)

// Options configure the OpenAI generator.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Generator derives bills of materials via the OpenAI Chat Completions API.
type Generator struct {
	client *openai.Client
	opts   Options
}

// NewGenerator creates a generator using the default client, which reads
// credentials from the environment.
func NewGenerator(optFns ...func(o *Options)) *Generator {
	client := openai.NewClient()
	return NewGeneratorFromClient(&client, optFns...)
}

// NewGeneratorFromClient creates a generator from an existing client.
func NewGeneratorFromClient(client *openai.Client, optFns ...func(o *Options)) *Generator {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.2,
		MaxCompletionTokens: 2048,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Generator{client: client, opts: opts}
}

// Generate implements bom.Generator.
func (g *Generator) Generate(ctx context.Context, requestText string) (protocol.BOM, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(bom.SystemPrompt),
			openai.UserMessage(bom.BuildUserPrompt(requestText)),
		},
		Model:               g.opts.Model,
		Temperature:         openai.Float(g.opts.Temperature),
		MaxCompletionTokens: openai.Int(g.opts.MaxCompletionTokens),
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return protocol.BOM{}, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return protocol.BOM{}, fmt.Errorf("no choices returned")
	}
	return bom.DecodeBOM(resp.Choices[0].Message.Content)
}
