package generation

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktokenloader "github.com/pkoukk/tiktoken-go-loader"
)

const fallbackEncoding = "cl100k_base"

// The default loader fetches BPE ranks over HTTP without a deadline, after
// the generation context is gone. The offline loader reads embedded files.
var offlineBPE sync.Once

func useOfflineBPE() {
	offlineBPE.Do(func() {
		tiktoken.SetBpeLoader(tiktokenloader.NewOfflineLoader())
	})
}

// TokenCounter estimates the number of tokens in text.
type TokenCounter func(text string) int

// NewTiktokenCounter returns a counter backed by the model's tiktoken
// encoding, or cl100k_base for unknown models. The encoding is loaded on
// first use from BPE files embedded in the binary; when it cannot be loaded
// the counter falls back to one token per four bytes.
func NewTiktokenCounter(model string) TokenCounter {
	useOfflineBPE()

	var (
		once sync.Once
		enc  *tiktoken.Tiktoken
	)
	load := func() {
		e, err := tiktoken.EncodingForModel(model)
		if err != nil {
			e, err = tiktoken.GetEncoding(fallbackEncoding)
		}
		if err == nil {
			enc = e
		}
	}

	return func(text string) int {
		if text == "" {
			return 0
		}
		once.Do(load)
		if enc == nil {
			return ApproximateTokens(text)
		}
		return len(enc.Encode(text, nil, nil))
	}
}

// ApproximateTokens is a rough four-bytes-per-token estimate, never less
// than one token for non-empty text.
func ApproximateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n == 0 && utf8.RuneCountInString(text) > 0 {
		n = 1
	}
	return n
}
