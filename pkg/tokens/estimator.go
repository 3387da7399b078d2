// Package tokens estimates token counts for conversation histories.
//
// The estimator exists to keep the context window sent to an LLM under a
// budget. It does not need to match the provider's tokenizer exactly - the
// budget is advisory and the provider enforces its own hard limit - but it
// must never fail: any tokenizer problem degrades silently to a character
// heuristic.
package tokens

import (
	"sync"

	"github.com/reqvibe/reqvibe/pkg/chat"
)

const (
	// messageOverhead is the fixed per-message cost added for the wire
	// framing around role and content ({"role": ..., "content": ...}).
	messageOverhead = 4

	// charsPerToken is the approximation used when no encoding is
	// available: one token per four characters of text.
	charsPerToken = 4
)

// Estimator counts tokens for a message sequence.
type Estimator interface {
	Estimate(msgs []chat.Message) int
}

// Encoding tokenizes a single string. Implementations wrap a real
// tokenizer (e.g. a BPE encoding compatible with the target model).
type Encoding interface {
	Count(text string) (int, error)
}

// EncodingLoader lazily produces an Encoding. Returning nil (or an error)
// means no encoding is available and the character heuristic applies.
type EncodingLoader func() (Encoding, error)

// HeuristicEstimator estimates tokens using an optional Encoding with a
// character-count fallback. The zero value is usable and always takes the
// fallback path.
type HeuristicEstimator struct {
	loader EncodingLoader

	once sync.Once
	enc  Encoding
}

// NewHeuristicEstimator creates an estimator. The loader may be nil, in
// which case every estimate uses the character heuristic. The loader runs
// at most once per estimator; its result is cached for reuse.
func NewHeuristicEstimator(loader EncodingLoader) *HeuristicEstimator {
	return &HeuristicEstimator{loader: loader}
}

// Estimate returns the estimated token count for msgs.
//
// With an encoding: role tokens + content tokens + a fixed overhead of 4
// per message. Without one (or when the encoding errors): the exact
// formula sum(len(role)+len(content))/4 over the whole sequence, so the
// fallback stays deterministic and testable.
func (e *HeuristicEstimator) Estimate(msgs []chat.Message) int {
	if len(msgs) == 0 {
		return 0
	}

	enc := e.encoding()
	if enc == nil {
		return charFallback(msgs)
	}

	total := 0
	for _, msg := range msgs {
		roleTokens, err := enc.Count(string(msg.Role))
		if err != nil {
			return charFallback(msgs)
		}
		contentTokens, err := enc.Count(msg.Content)
		if err != nil {
			return charFallback(msgs)
		}
		total += roleTokens + contentTokens + messageOverhead
	}
	return total
}

func (e *HeuristicEstimator) encoding() Encoding {
	e.once.Do(func() {
		if e.loader == nil {
			return
		}
		enc, err := e.loader()
		if err != nil {
			return
		}
		e.enc = enc
	})
	return e.enc
}

// charFallback is the tokenizer-free approximation: total characters of
// role + content across all messages, divided by four.
func charFallback(msgs []chat.Message) int {
	chars := 0
	for _, msg := range msgs {
		chars += len(msg.Role) + len(msg.Content)
	}
	return chars / charsPerToken
}
