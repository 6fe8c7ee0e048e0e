package engine

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkg/errors"

	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/chat"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// OpenAI calls an OpenAI-compatible chat completions API. A custom base
// URL covers self-hosted and compatible providers.
type OpenAI struct {
	client openai.Client
	model  string
	system string
}

// NewOpenAI builds an adapter for the given credentials. baseURL and model
// may be empty; system, when non-empty, is prepended to every request as
// the system prompt.
func NewOpenAI(apiKey, baseURL, model, system string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = DefaultModel
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
		system: system,
	}
}

// Complete sends the ordered history upstream and returns the single reply
// turn. Any transport, provider, or timeout failure comes back wrapped in
// ErrUpstream.
func (e *OpenAI) Complete(ctx context.Context, turns []chat.Turn) (chat.Turn, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns)+1)
	if e.system != "" {
		msgs = append(msgs, openai.SystemMessage(e.system))
	}
	for _, t := range turns {
		switch t.Role {
		case chat.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(t.Content))
		default:
			msgs = append(msgs, openai.UserMessage(t.Content))
		}
	}

	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(e.model),
		Messages: msgs,
	})
	if err != nil {
		return chat.Turn{}, errors.Wrapf(ErrUpstream, "completion request: %v", err)
	}
	if len(resp.Choices) == 0 {
		return chat.Turn{}, errors.Wrap(ErrUpstream, "completion response had no choices")
	}

	return chat.Assistant(resp.Choices[0].Message.Content), nil
}
