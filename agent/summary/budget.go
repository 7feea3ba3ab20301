package summary

import (
	"fmt"

	contractx "github.com/tanpawarit/premeeting-warmup-agent/agent/contract"
	transcriptx "github.com/tanpawarit/premeeting-warmup-agent/agent/transcript"
	"github.com/tiktoken-go/tokenizer"
)

// Budget bounds the conversation handed to the summary model. When the dialogue is too
// long the oldest messages are dropped first.
type Budget struct {
	codec tokenizer.Codec
	limit int
}

func NewBudget(limit int) (*Budget, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &Budget{codec: codec, limit: limit}, nil
}

func (b *Budget) count(s string) int {
	ids, _, err := b.codec.Encode(s)
	if err != nil {
		return len(s)
	}
	return len(ids)
}

// Fit renders msgs, keeping the newest suffix that fits within the token limit.
func (b *Budget) Fit(msgs []contractx.Message) string {
	if b == nil || b.limit <= 0 || len(msgs) == 0 {
		return transcriptx.Render(msgs)
	}

	used := 0
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		n := b.count(transcriptx.Render(msgs[i:i+1])) + 2
		if used+n > b.limit {
			break
		}
		used += n
		start = i
	}
	if start < len(msgs) {
		return transcriptx.Render(msgs[start:])
	}

	// The newest message alone is over budget: keep its head.
	last := transcriptx.Render(msgs[len(msgs)-1:])
	ids, _, err := b.codec.Encode(last)
	if err != nil || len(ids) <= b.limit {
		return last
	}
	head, err := b.codec.Decode(ids[:b.limit])
	if err != nil {
		return last
	}
	return head
}
