package retrieval

import (
	"encoding/json"

	"github.com/pkoukk/tiktoken-go"

	"github.com/mnemolabs/mnemo/internal/model"
)

// NewTokenCost returns a CostFn pricing a memory as the token count of its
// serialized form under the named encoding. When the encoding cannot be
// initialized (offline hosts without the BPE data), it falls back to a
// character-ratio estimate.
func NewTokenCost(encoding string) CostFn {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return EstimateCost
	}
	return func(m *model.Memory) int {
		return len(enc.Encode(serialize(m), nil, nil))
	}
}

// EstimateCost approximates tokens as one per four characters, the usual
// rule of thumb for English prose under BPE encodings.
func EstimateCost(m *model.Memory) int {
	n := (len(serialize(m)) + 3) / 4
	if n < 1 {
		n = 1
	}
	return n
}

func serialize(m *model.Memory) string {
	b, err := json.Marshal(m)
	if err != nil {
		return m.Content
	}
	return string(b)
}
