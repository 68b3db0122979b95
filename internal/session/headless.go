package session

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"github.com/stoneforge-ai/stoneforge/internal/types"
)

// DefaultAnthropicModel is used when no model override is configured.
// Grounded on the teacher's config.DefaultAIModel convention
// (internal/compact/haiku.go), generalized from a single summarization
// call to a full conversational session.
const DefaultAnthropicModel = anthropic.ModelClaudeSonnet4_5

// AnthropicBackend is a HeadlessBackend over the Anthropic Messages
// streaming API. The API itself is stateless per call, so "resuming a
// provider session" means replaying the accumulated turn history
// alongside the new message; the provider session id is a
// locally-minted identifier (the teacher's CLI-backed sessions get a
// real one from the subprocess, Anthropic's API gives us none).
type AnthropicBackend struct {
	client anthropic.Client
	model  anthropic.Model

	mu      sync.Mutex
	history []anthropic.MessageParam
	sessID  string

	input     chan string
	interrupt chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
	events    chan types.AgentMessage
}

// NewAnthropicHeadlessFactory returns a HeadlessFactory backed by the
// Anthropic API. ANTHROPIC_API_KEY, when set, takes precedence over
// apiKey, matching the teacher's newHaikuClient precedence.
func NewAnthropicHeadlessFactory(apiKey string, model anthropic.Model) HeadlessFactory {
	if model == "" {
		model = DefaultAnthropicModel
	}
	return func(ctx context.Context, workingDir, resumeProviderSessionID string) (HeadlessBackend, error) {
		key := apiKey
		if env := os.Getenv("ANTHROPIC_API_KEY"); env != "" {
			key = env
		}
		if key == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set and no apiKey provided")
		}
		b := &AnthropicBackend{
			client:    anthropic.NewClient(option.WithAPIKey(key)),
			model:     model,
			sessID:    resumeProviderSessionID,
			input:     make(chan string, 8),
			interrupt: make(chan struct{}, 1),
			closed:    make(chan struct{}),
			events:    make(chan types.AgentMessage, queueDepth),
		}
		if b.sessID == "" {
			b.sessID = uuid.NewString()
		}
		go b.run(ctx)
		return b, nil
	}
}

func (b *AnthropicBackend) Events() <-chan types.AgentMessage { return b.events }

func (b *AnthropicBackend) SendMessage(ctx context.Context, text string) error {
	select {
	case b.input <- text:
		return nil
	case <-b.closed:
		return fmt.Errorf("session closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *AnthropicBackend) Interrupt() error {
	select {
	case b.interrupt <- struct{}{}:
	default:
	}
	return nil
}

func (b *AnthropicBackend) Close() error {
	b.closeOnce.Do(func() { close(b.closed) })
	return nil
}

// run is the backend's single background task: it drains b.input one
// message at a time, streams the provider's response, decomposes
// content blocks as they complete, and emits AgentMessage events.
func (b *AnthropicBackend) run(ctx context.Context) {
	defer close(b.events)

	b.events <- types.System("init", b.sessID)

	for {
		select {
		case <-b.closed:
			return
		case <-ctx.Done():
			b.events <- types.Err("context cancelled", ctx.Err().Error())
			return
		case text := <-b.input:
			b.mu.Lock()
			b.history = append(b.history, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
			history := append([]anthropic.MessageParam(nil), b.history...)
			b.mu.Unlock()

			turnCtx, cancel := context.WithCancel(ctx)
			go func() {
				select {
				case <-b.interrupt:
					cancel()
				case <-turnCtx.Done():
				}
			}()

			reply, err := b.streamTurn(turnCtx, history)
			cancel()
			if err != nil {
				b.events <- types.Err(err.Error(), "")
				continue
			}
			b.mu.Lock()
			b.history = append(b.history, reply)
			b.mu.Unlock()
			b.events <- types.Result("success", "")
		}
	}
}

// streamTurn issues one streaming Messages call. Text deltas are
// buffered and forwarded to b.events as one event at each content-block
// stop; tool_use blocks are not forwarded per item as they complete, but
// only after the whole stream has ended, from the accumulated message.
func (b *AnthropicBackend) streamTurn(ctx context.Context, history []anthropic.MessageParam) (anthropic.MessageParam, error) {
	params := anthropic.MessageNewParams{
		Model:     b.model,
		MaxTokens: 4096,
		Messages:  history,
	}

	stream := b.client.Messages.NewStreaming(ctx, params)
	acc := anthropic.Message{}

	var textBuf string
	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			return anthropic.MessageParam{}, err
		}

		switch variant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := variant.Delta.AsAny().(anthropic.TextDelta); ok {
				textBuf += delta.Text
			}
		case anthropic.ContentBlockStopEvent:
			if textBuf != "" {
				for _, m := range Decompose([]Block{{Text: textBuf}}) {
					b.events <- m
				}
				textBuf = ""
			}
		}
	}
	if err := stream.Err(); err != nil {
		return anthropic.MessageParam{}, err
	}

	for _, block := range acc.Content {
		if tu, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
			for _, m := range Decompose([]Block{{ToolUse: &types.ToolCall{ID: tu.ID, Name: tu.Name, Input: tu.Input}}}) {
				b.events <- m
			}
		}
	}

	return acc.ToParam(), nil
}
