package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	openai "github.com/sashabaranov/go-openai"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-4o-mini"

// OpenAIConfig configures an OpenAI-compatible provider.
type OpenAIConfig struct {
	APIKey string
	// BaseURL points at any OpenAI-compatible endpoint. Empty uses OpenAI.
	BaseURL string
	Model   string
	// Tools enables the weather tool. Tool calls need a non-streaming
	// round trip first, so the first answer without a tool call arrives as
	// a single chunk.
	Tools      bool
	Weather    *Weather
	HTTPClient *http.Client
}

// OpenAI streams completions from an OpenAI-compatible API.
type OpenAI struct {
	client  *openai.Client
	model   string
	tools   bool
	weather *Weather
}

// NewOpenAI returns a provider for cfg.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		config.HTTPClient = cfg.HTTPClient
	} else {
		config.HTTPClient = &http.Client{Timeout: 90 * time.Second}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Weather == nil {
		cfg.Weather = NewWeather()
	}
	return &OpenAI{
		client:  openai.NewClientWithConfig(config),
		model:   cfg.Model,
		tools:   cfg.Tools,
		weather: cfg.Weather,
	}, nil
}

// StreamChat implements Provider.
func (p *OpenAI) StreamChat(ctx context.Context, messages []Message) (<-chan TokenEvent, error) {
	in := toOpenAI(messages)
	if !p.tools {
		return p.stream(ctx, in)
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: in,
		Tools:    []openai.Tool{weatherTool},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion has no choices")
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		ch := make(chan TokenEvent, 2)
		if msg.Content != "" {
			ch <- TokenEvent{Delta: msg.Content}
		}
		ch <- TokenEvent{Done: true}
		close(ch)
		return ch, nil
	}

	in = append(in, msg)
	for _, call := range msg.ToolCalls {
		in = append(in, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			ToolCallID: call.ID,
			Content:    p.runTool(ctx, call),
		})
	}
	return p.stream(ctx, in)
}

func (p *OpenAI) stream(ctx context.Context, in []openai.ChatCompletionMessage) (<-chan TokenEvent, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: in,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create chat stream: %w", err)
	}

	ch := make(chan TokenEvent, 32)
	go func() {
		defer close(ch)
		defer stream.Close() //nolint:errcheck
		for {
			resp, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					ch <- TokenEvent{Done: true}
					return
				}
				ch <- TokenEvent{Err: err}
				return
			}
			for _, choice := range resp.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				select {
				case ch <- TokenEvent{Delta: choice.Delta.Content}:
				case <-ctx.Done():
					ch <- TokenEvent{Err: ctx.Err()}
					return
				}
			}
		}
	}()
	return ch, nil
}

func (p *OpenAI) runTool(ctx context.Context, call openai.ToolCall) string {
	switch call.Function.Name {
	case weatherToolName:
		var args struct {
			Location string `json:"location"`
		}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			log.Warn("bad weather tool arguments", "args", call.Function.Arguments, "error", err)
			return "Unable to fetch weather: bad arguments"
		}
		log.Debug("running weather tool", "location", args.Location)
		return p.weather.Report(ctx, args.Location)
	default:
		log.Warn("unknown tool call", "name", call.Function.Name)
		return "Unknown tool " + call.Function.Name
	}
}

func toOpenAI(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
