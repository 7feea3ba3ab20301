package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/premeeting-warmup-agent/agent/contract"
	promptx "github.com/tanpawarit/premeeting-warmup-agent/agent/prompt"
	transcriptx "github.com/tanpawarit/premeeting-warmup-agent/agent/transcript"
)

const (
	// EmptyConversationSummary is dispatched when the session had no real dialogue.
	EmptyConversationSummary = "No substantial information was exchanged in the chat."
	// FailedSummary is dispatched when the summary model could not produce text.
	FailedSummary = "Summary generation failed."

	defaultTimeout = 30 * time.Second

	nodeFilter      = "filter"
	nodePlaceholder = "placeholder"
	nodeSummarize   = "summarize"
)

var _ contractx.Summarizer = (*Service)(nil)

type Config struct {
	Timeout     time.Duration
	TokenBudget int
}

// Service turns a finished transcript into a LeadSummary and hands it to the notifier,
// at most once per session id.
type Service struct {
	filter    *transcriptx.Filter
	prompts   promptx.PromptSet
	completer Completer
	notifier  contractx.Notifier
	ledger    contractx.DispatchLedger
	budget    *Budget
	timeout   time.Duration

	runner compose.Runnable[contractx.SummaryRequest, *pipelineState]
	now    func() time.Time
}

type pipelineState struct {
	Req          contractx.SummaryRequest
	Conversation string
	Empty        bool
	Summary      string
	Err          error
}

func New(
	ctx context.Context,
	filter *transcriptx.Filter,
	prompts promptx.PromptSet,
	completer Completer,
	notifier contractx.Notifier,
	ledger contractx.DispatchLedger,
	cfg Config,
) (*Service, error) {
	if filter == nil {
		return nil, fmt.Errorf("%w: transcript filter is required", contractx.ErrValidation)
	}
	if completer == nil {
		return nil, fmt.Errorf("%w: summary completer is required", contractx.ErrValidation)
	}
	if notifier == nil {
		return nil, fmt.Errorf("%w: notifier is required", contractx.ErrValidation)
	}
	if ledger == nil {
		return nil, fmt.Errorf("%w: dispatch ledger is required", contractx.ErrValidation)
	}
	if err := prompts.Validate(); err != nil {
		return nil, err
	}

	var budget *Budget
	if cfg.TokenBudget > 0 {
		b, err := NewBudget(cfg.TokenBudget)
		if err != nil {
			return nil, err
		}
		budget = b
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	s := &Service{
		filter:    filter,
		prompts:   prompts,
		completer: completer,
		notifier:  notifier,
		ledger:    ledger,
		budget:    budget,
		timeout:   timeout,
		now:       time.Now,
	}

	runner, err := s.compileGraph(ctx)
	if err != nil {
		return nil, err
	}
	s.runner = runner
	return s, nil
}

// SummarizeAndDispatch returns Duplicate without side effects when the session was already
// dispatched. A summary model failure still dispatches with FailedSummary; the returned
// error then reports both that failure and any notifier failure.
func (s *Service) SummarizeAndDispatch(ctx context.Context, req contractx.SummaryRequest) (contractx.SummaryResult, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return contractx.SummaryResult{}, fmt.Errorf("%w: session id is required", contractx.ErrValidation)
	}

	acquired, err := s.ledger.Acquire(ctx, req.SessionID)
	if err != nil {
		return contractx.SummaryResult{}, fmt.Errorf("acquire dispatch latch: %w", err)
	}
	if !acquired {
		log.Info().Str("session_id", req.SessionID).Msg("summary already dispatched")
		return contractx.SummaryResult{Duplicate: true}, nil
	}

	st, err := s.runner.Invoke(ctx, req)
	if err != nil {
		return contractx.SummaryResult{}, fmt.Errorf("summary pipeline: %w", err)
	}

	ls := contractx.LeadSummary{
		SessionID:    req.SessionID,
		Lead:         req.Lead,
		Summary:      st.Summary,
		Empty:        st.Empty,
		DispatchedAt: s.now().UTC(),
	}

	notifyErr := s.notifier.Notify(ctx, ls)
	event := log.Info()
	if notifyErr != nil {
		event = log.Error().Err(notifyErr)
	}
	event.Str("session_id", req.SessionID).
		Str("email", req.Lead.Email).
		Bool("empty", st.Empty).
		Bool("dispatched", notifyErr == nil).
		Msg("lead summary dispatch")

	return contractx.SummaryResult{Summary: ls, Dispatched: notifyErr == nil}, errors.Join(st.Err, notifyErr)
}

func (s *Service) compileGraph(ctx context.Context) (compose.Runnable[contractx.SummaryRequest, *pipelineState], error) {
	graph := compose.NewGraph[contractx.SummaryRequest, *pipelineState]()

	if err := graph.AddLambdaNode(nodeFilter,
		compose.InvokableLambda(func(ctx context.Context, req contractx.SummaryRequest) (*pipelineState, error) {
			dialogue := s.filter.Dialogue(req.Transcript)
			return &pipelineState{
				Req:          req,
				Conversation: s.budget.Fit(dialogue),
				Empty:        len(dialogue) == 0,
			}, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add summary filter node: %w", err)
	}

	if err := graph.AddLambdaNode(nodePlaceholder,
		compose.InvokableLambda(func(ctx context.Context, in *pipelineState) (*pipelineState, error) {
			in.Summary = EmptyConversationSummary
			return in, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add summary placeholder node: %w", err)
	}

	if err := graph.AddLambdaNode(nodeSummarize,
		compose.InvokableLambda(func(ctx context.Context, in *pipelineState) (*pipelineState, error) {
			in.Summary, in.Err = s.summarize(ctx, in.Conversation)
			if in.Err != nil {
				log.Warn().Err(in.Err).Str("session_id", in.Req.SessionID).Msg("summary generation failed")
				in.Summary = FailedSummary
			}
			return in, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add summary model node: %w", err)
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *pipelineState) (string, error) {
			if in == nil {
				return "", fmt.Errorf("%w: summary state is nil", contractx.ErrValidation)
			}
			if in.Empty {
				return nodePlaceholder, nil
			}
			return nodeSummarize, nil
		},
		map[string]bool{
			nodePlaceholder: true,
			nodeSummarize:   true,
		},
	)

	if err := graph.AddEdge(compose.START, nodeFilter); err != nil {
		return nil, fmt.Errorf("add summary edge start->filter: %w", err)
	}
	if err := graph.AddBranch(nodeFilter, branch); err != nil {
		return nil, fmt.Errorf("add summary branch: %w", err)
	}
	if err := graph.AddEdge(nodePlaceholder, compose.END); err != nil {
		return nil, fmt.Errorf("add summary edge placeholder->end: %w", err)
	}
	if err := graph.AddEdge(nodeSummarize, compose.END); err != nil {
		return nil, fmt.Errorf("add summary edge summarize->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("summary.dispatch_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile summary graph: %w", err)
	}
	return runner, nil
}

func (s *Service) summarize(ctx context.Context, conversation string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt, err := s.prompts.SummaryPrompt(ctx, conversation)
	if err != nil {
		return "", err
	}

	out, err := s.completer.Complete(ctx, prompt)
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "", fmt.Errorf("%w: after %s", contractx.ErrSummarizationTimeout, s.timeout)
	case err != nil:
		return "", fmt.Errorf("%w: %v", contractx.ErrModelUnavailable, err)
	case strings.TrimSpace(out) == "":
		return "", fmt.Errorf("%w: empty summary", contractx.ErrModelUnavailable)
	}
	return strings.TrimSpace(out), nil
}
