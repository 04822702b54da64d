package inference

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// LocalEmbedder is a deterministic bag-of-words embedder: tokens are hashed
// into a fixed number of buckets and the vector is L2-normalized. It needs
// no API and always produces the same vector for the same text, which keeps
// ingest and query comparable.
type LocalEmbedder struct {
	dim int
}

const localEmbedderDim = 256

func NewLocalEmbedder() *LocalEmbedder {
	return &LocalEmbedder{dim: localEmbedderDim}
}

func (e *LocalEmbedder) Dim() int { return e.dim }

func (e *LocalEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dim)
	for _, tok := range Tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%uint32(e.dim)] += 1
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec, nil
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec, nil
}

var nonLetter = regexp.MustCompile(`[^a-zA-Z0-9\p{Han}]+`)
var stops = map[string]struct{}{"the": {}, "and": {}, "a": {}, "an": {}, "of": {}, "to": {}, "in": {}, "is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "that": {}, "this": {}, "it": {}, "as": {}, "at": {}, "be": {}, "by": {}, "from": {}}

func Tokenize(s string) []string {
	s = strings.ToLower(s)
	s = nonLetter.ReplaceAllString(s, " ")
	parts := strings.Fields(s)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if _, ok := stops[p]; ok {
			continue
		}
		out = append(out, p)
	}
	return out
}
