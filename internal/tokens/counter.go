// Package tokens estimates prompt sizes with the tiktoken BPE encodings.
package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is a reasonable approximation for the chat models behind the gateway.
const DefaultEncoding = "cl100k_base"

// Counter counts tokens with a fixed encoding.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// NewCounter loads the named encoding. Loading may download the BPE ranks on first
// use (see TIKTOKEN_CACHE_DIR), so callers should treat a failure as non-fatal.
func NewCounter(encoding string) (*Counter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %q: %w", encoding, err)
	}
	return &Counter{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}
