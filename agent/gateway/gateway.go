package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/premeeting-warmup-agent/agent/contract"
	terminationx "github.com/tanpawarit/premeeting-warmup-agent/agent/termination"
	toolx "github.com/tanpawarit/premeeting-warmup-agent/agent/tool"
)

const (
	defaultMaxToolRounds = 5
	defaultTurnTimeout   = 30 * time.Second
	roundSeparator       = "\n\n"
)

var _ contractx.DialogueGateway = (*Gateway)(nil)

type Config struct {
	Instruction   string
	MaxToolRounds int
	TurnTimeout   time.Duration
}

// Gateway drives one assistant turn against a tool-calling chat model. Tool calls are
// resolved in-process and fed back until the model answers in plain text or the round
// cap is hit, after which the model is asked once more without tools.
type Gateway struct {
	plain     einomodel.ToolCallingChatModel
	toolModel einomodel.ToolCallingChatModel
	tools     *toolx.Registry
	detector  *terminationx.Detector

	instruction string
	maxRounds   int
	timeout     time.Duration
}

func New(
	chatModel einomodel.ToolCallingChatModel,
	tools *toolx.Registry,
	detector *terminationx.Detector,
	cfg Config,
) (*Gateway, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: chat model is required", contractx.ErrValidation)
	}
	if tools == nil {
		return nil, fmt.Errorf("%w: tool registry is required", contractx.ErrValidation)
	}
	if detector == nil {
		detector = terminationx.MustNewDetector()
	}

	toolModel, err := chatModel.WithTools(tools.Infos())
	if err != nil {
		return nil, fmt.Errorf("bind dialogue tools: %w", err)
	}

	maxRounds := cfg.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxToolRounds
	}
	timeout := cfg.TurnTimeout
	if timeout <= 0 {
		timeout = defaultTurnTimeout
	}

	return &Gateway{
		plain:       chatModel,
		toolModel:   toolModel,
		tools:       tools,
		detector:    detector,
		instruction: strings.TrimSpace(cfg.Instruction),
		maxRounds:   maxRounds,
		timeout:     timeout,
	}, nil
}

// Complete never mutates transcript. onDelta receives display text with end markers
// removed; the returned message keeps the raw text so the caller can detect termination.
func (g *Gateway) Complete(ctx context.Context, transcript []contractx.Message, onDelta func(string)) (contractx.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	working := g.buildInput(transcript)
	t := &turn{filter: g.detector.NewStreamFilter(), onDelta: onDelta}

	for round := 0; ; round++ {
		chatModel := g.toolModel
		if round >= g.maxRounds {
			chatModel = g.plain
		}

		msg, err := t.stream(ctx, chatModel, working)
		if err != nil {
			return contractx.Message{}, g.modelError(ctx, err)
		}

		if len(msg.ToolCalls) == 0 || round >= g.maxRounds {
			break
		}

		working = append(working, schema.AssistantMessage(msg.Content, msg.ToolCalls))
		for _, call := range msg.ToolCalls {
			inv, invokeErr := g.tools.Invoke(ctx, call.Function.Name, call.Function.Arguments)
			inv.CallID = call.ID
			result := inv.Result
			if invokeErr != nil {
				log.Warn().Err(invokeErr).Str("tool", call.Function.Name).Int("round", round).Msg("tool call rejected")
				result = "Error: " + invokeErr.Error()
			} else {
				log.Debug().Str("tool", call.Function.Name).Int("round", round).Msg("tool call resolved")
			}
			working = append(working, schema.ToolMessage(result, call.ID))
			t.invocations = append(t.invocations, inv)
		}
	}
	t.emit(t.filter.Flush())

	content := strings.TrimSpace(strings.Join(t.texts, roundSeparator))
	if content == "" {
		return contractx.Message{}, fmt.Errorf("%w: model returned an empty turn", contractx.ErrModelUnavailable)
	}

	return contractx.Message{
		ID:              uuid.NewString(),
		Role:            contractx.RoleAssistant,
		Content:         content,
		ToolInvocations: t.invocations,
	}, nil
}

func (g *Gateway) buildInput(transcript []contractx.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(transcript)+1)
	if g.instruction != "" {
		out = append(out, schema.SystemMessage(g.instruction))
	}
	for _, m := range transcript {
		switch m.Role {
		case contractx.RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		case contractx.RoleUser:
			out = append(out, schema.UserMessage(m.Content))
		case contractx.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		}
	}
	return out
}

func (g *Gateway) modelError(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: turn exceeded %s", contractx.ErrModelUnavailable, g.timeout)
	case errors.Is(ctx.Err(), context.Canceled), errors.Is(err, context.Canceled):
		return fmt.Errorf("dialogue turn abandoned: %w", err)
	default:
		return fmt.Errorf("%w: %v", contractx.ErrModelUnavailable, err)
	}
}

// turn accumulates one Complete call across tool rounds.
type turn struct {
	filter      *terminationx.StreamFilter
	onDelta     func(string)
	texts       []string
	invocations []contractx.ToolInvocation
}

func (t *turn) emit(s string) {
	if s != "" && t.onDelta != nil {
		t.onDelta(s)
	}
}

func (t *turn) stream(ctx context.Context, chatModel einomodel.ToolCallingChatModel, input []*schema.Message) (*schema.Message, error) {
	reader, err := chatModel.Stream(ctx, input)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var (
		chunks  []*schema.Message
		started bool
	)
	for {
		chunk, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
		if chunk.Content == "" {
			continue
		}
		if !started && len(t.texts) > 0 {
			t.emit(t.filter.Write(roundSeparator))
		}
		started = true
		t.emit(t.filter.Write(chunk.Content))
	}

	if len(chunks) == 0 {
		return &schema.Message{Role: schema.Assistant}, nil
	}
	msg, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, fmt.Errorf("concat stream chunks: %w", err)
	}
	if text := strings.TrimSpace(msg.Content); text != "" {
		t.texts = append(t.texts, text)
	}
	return msg, nil
}

// Unconfigured stands in when no model credentials are set; every turn fails fast.
type Unconfigured struct {
	Reason string
}

func (u Unconfigured) Complete(context.Context, []contractx.Message, func(string)) (contractx.Message, error) {
	return contractx.Message{}, fmt.Errorf("%w: %s", contractx.ErrNotConfigured, u.Reason)
}
