package contract

import "context"

// DialogueGateway drives one assistant turn over a transcript. onDelta receives user-visible
// text fragments as they are produced; the returned message is only valid when err is nil.
type DialogueGateway interface {
	Complete(ctx context.Context, transcript []Message, onDelta func(string)) (Message, error)
}

type Summarizer interface {
	SummarizeAndDispatch(ctx context.Context, req SummaryRequest) (SummaryResult, error)
}

type Notifier interface {
	Notify(ctx context.Context, summary LeadSummary) error
}

// DispatchLedger hands out a one-shot latch per key; Acquire returns true for exactly one caller.
type DispatchLedger interface {
	Acquire(ctx context.Context, key string) (bool, error)
}
