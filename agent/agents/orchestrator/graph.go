package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/premeeting-warmup-agent/agent/contract"
	sessionx "github.com/tanpawarit/premeeting-warmup-agent/agent/session"
)

const (
	nodeBeginTurn = "begin_turn"
	nodeGenerate  = "generate"
	nodeCommit    = "commit"
)

// turnState flows through the turn graph. err keeps the first sentinel error so callers
// can branch on it regardless of how the graph wraps node failures.
type turnState struct {
	session *sessionx.Session
	user    *contractx.Message
	retry   bool
	onDelta func(string)

	transcript []contractx.Message
	reply      contractx.Message
	err        error
}

func (o *Orchestrator) compileTurnGraph(ctx context.Context) (compose.Runnable[*turnState, TurnResult], error) {
	graph := compose.NewGraph[*turnState, TurnResult]()

	if err := graph.AddLambdaNode(nodeBeginTurn,
		compose.InvokableLambda(func(ctx context.Context, st *turnState) (*turnState, error) {
			if st == nil || st.session == nil {
				return nil, fmt.Errorf("%w: turn has no session", contractx.ErrValidation)
			}
			var err error
			if st.retry {
				st.transcript, err = st.session.BeginRetry()
			} else {
				st.transcript, err = st.session.BeginTurn(st.user)
			}
			if err != nil {
				st.err = err
				return nil, err
			}
			return st, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add turn begin node: %w", err)
	}

	if err := graph.AddLambdaNode(nodeGenerate,
		compose.InvokableLambda(func(ctx context.Context, st *turnState) (*turnState, error) {
			reply, err := o.gateway.Complete(ctx, st.transcript, st.onDelta)
			if err != nil {
				st.session.FailTurn()
				st.err = err
				log.Warn().Err(err).Str("session_id", st.session.ID).Msg("turn failed")
				return nil, err
			}
			st.reply = reply
			return st, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add turn generate node: %w", err)
	}

	if err := graph.AddLambdaNode(nodeCommit,
		compose.InvokableLambda(func(ctx context.Context, st *turnState) (TurnResult, error) {
			detector := o.filter.Detector()
			ended := detector.Detect(st.reply.Content)

			first, err := st.session.CompleteTurn(st.reply, ended)
			if err != nil {
				st.err = err
				return TurnResult{}, err
			}
			if first {
				log.Info().Str("session_id", st.session.ID).Msg("session ended")
				o.dispatch(ctx, st.session)
			}

			return TurnResult{
				SessionID: st.session.ID,
				Message:   st.reply,
				Text:      detector.Strip(st.reply.Content),
				Ended:     ended,
			}, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add turn commit node: %w", err)
	}

	if err := graph.AddEdge(compose.START, nodeBeginTurn); err != nil {
		return nil, fmt.Errorf("add turn edge start->begin: %w", err)
	}
	if err := graph.AddEdge(nodeBeginTurn, nodeGenerate); err != nil {
		return nil, fmt.Errorf("add turn edge begin->generate: %w", err)
	}
	if err := graph.AddEdge(nodeGenerate, nodeCommit); err != nil {
		return nil, fmt.Errorf("add turn edge generate->commit: %w", err)
	}
	if err := graph.AddEdge(nodeCommit, compose.END); err != nil {
		return nil, fmt.Errorf("add turn edge commit->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.turn_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile turn graph: %w", err)
	}
	return runner, nil
}
