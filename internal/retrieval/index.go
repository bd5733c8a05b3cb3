package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Embedder turns texts into embedding vectors. The OpenAI-compatible
// embeddings endpoint of the configured backend satisfies this.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// vectorIndex is an in-memory inner-product index over normalized document
// embeddings. Built once at engine construction, read-only afterwards.
type vectorIndex struct {
	texts []string
	vecs  [][]float32
}

func buildVectorIndex(ctx context.Context, embedder Embedder, texts []string) (*vectorIndex, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no documents to index")
	}
	vecs, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed corpus: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
	}
	for i := range vecs {
		normalize(vecs[i])
	}
	return &vectorIndex{texts: texts, vecs: vecs}, nil
}

type scoredDoc struct {
	idx   int
	score float64
}

// search returns the indexes and inner-product scores of the k documents most
// similar to the (normalized) query vector, best first.
func (ix *vectorIndex) search(query []float32, k int) []scoredDoc {
	normalize(query)
	scored := make([]scoredDoc, 0, len(ix.vecs))
	for i, v := range ix.vecs {
		scored = append(scored, scoredDoc{idx: i, score: dot(query, v)})
	}
	sort.Slice(scored, func(a, b int) bool { return scored[a].score > scored[b].score })
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
