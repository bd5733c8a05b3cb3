package retrieval

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Document is a single retrieved context snippet. Produced transiently per
// request, never persisted.
type Document struct {
	Title           string  `json:"title"`
	Content         string  `json:"content"`
	SimilarityScore float64 `json:"similarity_score,omitempty"`
}

// DefaultTopK bounds result counts when the caller passes a non-positive k.
const DefaultTopK = 5

// CorpusSource yields the current corpus. The keyword path reads it per
// search, so a source backed by a reloadable knowledge base makes reloads
// visible to chat retrieval without rebuilding the engine.
type CorpusSource func() *Corpus

// Engine answers context queries against the loaded corpus. It prefers a
// vector similarity search over document embeddings and falls back to a
// deterministic keyword scan when the index is unavailable or the caller
// disables vectors.
type Engine struct {
	source   CorpusSource
	index    *vectorIndex
	embedder Embedder
	logger   *log.Logger
}

// NewEngine builds a retrieval engine over the corpus yielded by source.
// When embedder is non-nil it attempts to build the embedding index from
// every indexable document of the corpus at construction time; a build
// failure is logged and silently disables the vector path for the process
// lifetime, it never fails engine construction. The embedding index is
// frozen at startup; only the keyword path follows later corpus reloads.
func NewEngine(ctx context.Context, source CorpusSource, embedder Embedder) *Engine {
	e := &Engine{
		source: source,
		logger: log.New(log.Writer(), "[RETRIEVAL] ", log.LstdFlags),
	}
	if embedder == nil {
		return e
	}
	ix, err := buildVectorIndex(ctx, embedder, source().ContentTexts())
	if err != nil {
		e.logger.Printf("vector index unavailable, keyword fallback only: %v", err)
		return e
	}
	e.index = ix
	e.embedder = embedder
	e.logger.Printf("vector index ready (%d documents)", len(ix.texts))
	return e
}

// VectorReady reports whether the vector path is available.
func (e *Engine) VectorReady() bool { return e.index != nil }

// Search returns up to topK context documents for query, ordered by
// descending relevance. With useVectors and a ready index it runs the
// similarity search; otherwise it scans the corpus categories in fixed order
// (products, troubleshooting guides, other records) and returns the first
// matches without scoring. An empty result is not an error.
func (e *Engine) Search(ctx context.Context, query string, topK int, useVectors bool) ([]Document, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if useVectors && e.index != nil {
		docs, err := e.vectorSearch(ctx, query, topK)
		if err == nil {
			return docs, nil
		}
		e.logger.Printf("vector search failed, falling back to keywords: %v", err)
	}
	return e.keywordSearch(query, topK), nil
}

func (e *Engine) vectorSearch(ctx context.Context, query string, topK int) ([]Document, error) {
	vecs, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedder returned no query vector")
	}
	hits := e.index.search(vecs[0], topK)
	docs := make([]Document, 0, len(hits))
	for i, h := range hits {
		docs = append(docs, Document{
			Title:           fmt.Sprintf("Match %d", i+1),
			Content:         e.index.texts[h.idx],
			SimilarityScore: h.score,
		})
	}
	return docs, nil
}

// keywordSearch matches a document when the query contains its identifying
// token (product name, compatible model, FAQ question or issue keyword) as a
// case-insensitive substring. First-match order across the fixed category
// scan, no scoring.
func (e *Engine) keywordSearch(query string, topK int) []Document {
	corpus := e.source()
	queryLower := strings.ToLower(query)
	var results []Document

	for _, p := range corpus.Products {
		if len(results) >= topK {
			return results
		}
		if containsAnyToken(queryLower, append([]string{p.Name}, p.CompatibleModels...)) {
			content := p.Description
			if content == "" {
				content = "Se manual."
			}
			results = append(results, Document{
				Title:   "Installationsguide för " + p.Name,
				Content: content,
			})
		}
	}

	for _, g := range corpus.Guides {
		if len(results) >= topK {
			return results
		}
		if containsAnyToken(queryLower, append([]string{g.Model}, g.IssueKeywords...)) {
			results = append(results, Document{
				Title:   "Felsökning för " + g.Model,
				Content: strings.Join(g.Steps, " "),
			})
		}
	}

	for _, o := range corpus.Other {
		if len(results) >= topK {
			return results
		}
		switch {
		case o.Question != "" && strings.Contains(queryLower, strings.ToLower(o.Question)):
			results = append(results, Document{
				Title:   "FAQ: " + o.Question,
				Content: o.Answer,
			})
		case len(o.Steps) > 0 && containsAnyToken(queryLower, append([]string{o.Model}, o.IssueKeywords...)):
			results = append(results, Document{
				Title:   "Guide för " + strings.ToLower(o.Model),
				Content: strings.Join(o.Steps, " "),
			})
		}
	}
	return results
}

func containsAnyToken(queryLower string, tokens []string) bool {
	for _, tok := range tokens {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			continue
		}
		if strings.Contains(queryLower, tok) {
			return true
		}
	}
	return false
}
