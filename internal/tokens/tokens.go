// Package tokens provides token counting for transcript budgeting. Leaf
// stages use a Budget to trim the oldest conversation messages before
// calling the generation backend.
package tokens

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"

	"github.com/tjfontaine/agent-pipeline/internal/core/domain"
)

// Counter counts the tokens in a piece of text.
type Counter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens with a tiktoken codec.
type TiktokenCounter struct {
	codec tokenizer.Codec
}

// NewTiktokenCounter creates a counter using the cl100k_base encoding,
// which is close enough for budgeting across current chat models.
func NewTiktokenCounter() (*TiktokenCounter, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("get tokenizer encoding: %w", err)
	}
	return &TiktokenCounter{codec: codec}, nil
}

// Count implements Counter. Falls back to the character estimate if the
// codec rejects the input.
func (c *TiktokenCounter) Count(text string) int {
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return estimate(text)
	}
	return len(ids)
}

// Estimator is the fallback counter: a chars/4 approximation, matching the
// usual average for English prose.
type Estimator struct{}

// Count implements Counter.
func (Estimator) Count(text string) int {
	return estimate(text)
}

func estimate(text string) int {
	return (len(text) + 3) / 4
}

// Budget trims a conversation to a token limit.
type Budget struct {
	counter Counter
	limit   int
}

// NewBudget creates a budget over counter. A limit of zero or less
// disables trimming.
func NewBudget(counter Counter, limit int) *Budget {
	if counter == nil {
		counter = Estimator{}
	}
	return &Budget{counter: counter, limit: limit}
}

// Trim drops the oldest messages until the conversation fits the limit.
// The most recent message is always kept, over budget or not, so an
// exchange never loses its immediate context.
func (b *Budget) Trim(msgs []domain.Message) []domain.Message {
	if b.limit <= 0 || len(msgs) <= 1 {
		return msgs
	}

	total := 0
	counts := make([]int, len(msgs))
	for i, m := range msgs {
		// Role tag plus separator overhead per message.
		counts[i] = b.counter.Count(m.Text) + 4
		total += counts[i]
	}

	start := 0
	for start < len(msgs)-1 && total > b.limit {
		total -= counts[start]
		start++
	}
	return msgs[start:]
}
