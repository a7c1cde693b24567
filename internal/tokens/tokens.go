// Package tokens estimates prompt sizes for dry runs.
//
// Bedrock models use their own tokenizers, so counts are estimates. The BPE
// encoding is loaded lazily on first use; when it cannot be loaded (offline
// hosts) the estimator falls back to one token per four bytes.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
)

// DefaultEncoding is close enough to Claude and Llama tokenizers for sizing.
const DefaultEncoding = "cl100k_base"

// Estimator counts tokens with a tiktoken encoding.
type Estimator struct {
	encoding string

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// New creates an estimator. Empty encoding uses DefaultEncoding.
func New(encoding string) *Estimator {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &Estimator{encoding: encoding}
}

// Count returns the estimated token count of text.
func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	e.once.Do(func() {
		enc, err := tiktoken.GetEncoding(e.encoding)
		if err != nil {
			log.Debug().Err(err).Str("encoding", e.encoding).Msg("tiktoken unavailable, using byte estimate")
			return
		}
		e.enc = enc
	})
	if e.enc == nil {
		return Approximate(text)
	}
	return len(e.enc.Encode(text, nil, nil))
}

// Approximate estimates one token per four bytes, rounded up.
func Approximate(text string) int {
	return (len(text) + 3) / 4
}
