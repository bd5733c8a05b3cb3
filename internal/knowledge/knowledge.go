// Package knowledge manages the product knowledge base on disk: it loads the
// JSON corpus, maintains a full-text admin search index over it, and persists
// FAQ edits back to the data directory.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve"
	"github.com/google/uuid"

	"github.com/azomlabs/supportd/internal/retrieval"
)

const faqFile = "other_faq.json"

// FAQ is an editable question/answer record. It persists to other_faq.json in
// the data directory, which the retrieval corpus loader also picks up.
type FAQ struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Hit is one admin search result.
type Hit struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

type indexedDoc struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Service owns the on-disk knowledge base. All reads and writes go through
// the service so the search index stays consistent with the files.
type Service struct {
	dataDir string

	mu     sync.RWMutex
	corpus *retrieval.Corpus
	faqs   []FAQ
	index  bleve.Index
	titles map[string]string

	logger *log.Logger
}

// NewService loads the corpus from dataDir and builds the in-memory search
// index. Corpus load warnings are logged, not fatal.
func NewService(dataDir string) (*Service, error) {
	s := &Service{
		dataDir: dataDir,
		logger:  log.New(log.Writer(), "[KNOWLEDGE] ", log.LstdFlags),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Corpus returns the most recently loaded corpus.
func (s *Service) Corpus() *retrieval.Corpus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.corpus
}

// Reload re-reads the data directory and rebuilds the search index.
func (s *Service) Reload() error {
	corpus, warnings := retrieval.LoadCorpus(s.dataDir)
	for _, w := range warnings {
		s.logger.Printf("corpus warning: %s: %v", w.File, w.Err)
	}
	faqs, err := s.loadFAQs()
	if err != nil {
		return err
	}
	index, titles, err := buildIndex(corpus)
	if err != nil {
		return fmt.Errorf("build search index: %w", err)
	}

	s.mu.Lock()
	old := s.index
	s.corpus = corpus
	s.faqs = faqs
	s.index = index
	s.titles = titles
	s.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	s.logger.Printf("knowledge base loaded: %d products, %d guides, %d other records",
		len(corpus.Products), len(corpus.Guides), len(corpus.Other))
	return nil
}

func buildIndex(corpus *retrieval.Corpus) (bleve.Index, map[string]string, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, nil, err
	}
	titles := make(map[string]string)
	add := func(id, title, content string) error {
		titles[id] = title
		return index.Index(id, indexedDoc{Title: title, Content: content})
	}
	for i, p := range corpus.Products {
		id := fmt.Sprintf("product:%d", i)
		content := strings.Join([]string{p.Description, strings.Join(p.CompatibleModels, " "), strings.Join(p.Tags, " ")}, " ")
		if err := add(id, p.Name, content); err != nil {
			return nil, nil, err
		}
	}
	for i, g := range corpus.Guides {
		id := fmt.Sprintf("guide:%d", i)
		content := strings.Join(g.IssueKeywords, " ") + " " + strings.Join(g.Steps, " ")
		if err := add(id, "Felsökning för "+g.Model, content); err != nil {
			return nil, nil, err
		}
	}
	for i, o := range corpus.Other {
		id := fmt.Sprintf("other:%d", i)
		title := o.Question
		if title == "" {
			title = o.Model
		}
		content := strings.Join([]string{o.Answer, o.Content, strings.Join(o.Steps, " ")}, " ")
		if err := add(id, title, content); err != nil {
			return nil, nil, err
		}
	}
	return index, titles, nil
}

// Search runs a full-text query over the knowledge base and returns up to k
// hits ordered by score.
func (s *Service) Search(_ context.Context, q string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}
	s.mu.RLock()
	index := s.index
	titles := s.titles
	s.mu.RUnlock()

	query := bleve.NewQueryStringQuery(q)
	req := bleve.NewSearchRequestOptions(query, k, 0, false)
	res, err := index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{ID: h.ID, Title: titles[h.ID], Score: h.Score})
	}
	return hits, nil
}

// ListFAQs returns the stored FAQ records.
func (s *Service) ListFAQs() []FAQ {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]FAQ, len(s.faqs))
	copy(out, s.faqs)
	return out
}

// AddFAQ validates, stores and persists a new FAQ record, then reloads the
// knowledge base so the record is searchable.
func (s *Service) AddFAQ(question, answer string) (FAQ, error) {
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return FAQ{}, fmt.Errorf("question and answer are required")
	}
	faq := FAQ{ID: uuid.NewString(), Question: question, Answer: answer}

	s.mu.Lock()
	faqs := append(append([]FAQ{}, s.faqs...), faq)
	err := s.persistFAQs(faqs)
	s.mu.Unlock()
	if err != nil {
		return FAQ{}, err
	}
	return faq, s.Reload()
}

// UpdateFAQ replaces the question/answer of an existing record.
func (s *Service) UpdateFAQ(id, question, answer string) (FAQ, error) {
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return FAQ{}, fmt.Errorf("question and answer are required")
	}

	s.mu.Lock()
	faqs := append([]FAQ{}, s.faqs...)
	var updated *FAQ
	for i := range faqs {
		if faqs[i].ID == id {
			faqs[i].Question = question
			faqs[i].Answer = answer
			updated = &faqs[i]
			break
		}
	}
	if updated == nil {
		s.mu.Unlock()
		return FAQ{}, ErrNotFound
	}
	out := *updated
	err := s.persistFAQs(faqs)
	s.mu.Unlock()
	if err != nil {
		return FAQ{}, err
	}
	return out, s.Reload()
}

// DeleteFAQ removes a record by ID.
func (s *Service) DeleteFAQ(id string) error {
	s.mu.Lock()
	faqs := make([]FAQ, 0, len(s.faqs))
	found := false
	for _, f := range s.faqs {
		if f.ID == id {
			found = true
			continue
		}
		faqs = append(faqs, f)
	}
	if !found {
		s.mu.Unlock()
		return ErrNotFound
	}
	err := s.persistFAQs(faqs)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Reload()
}

// ErrNotFound reports an FAQ ID with no stored record.
var ErrNotFound = fmt.Errorf("faq not found")

func (s *Service) faqPath() string { return filepath.Join(s.dataDir, faqFile) }

func (s *Service) loadFAQs() ([]FAQ, error) {
	raw, err := os.ReadFile(s.faqPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", faqFile, err)
	}
	var faqs []FAQ
	if err := json.Unmarshal(raw, &faqs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", faqFile, err)
	}
	return faqs, nil
}

// persistFAQs writes atomically via a temp file so a crash mid-write never
// leaves a truncated corpus file. Caller holds the write lock.
func (s *Service) persistFAQs(faqs []FAQ) error {
	payload, err := json.MarshalIndent(faqs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal faqs: %w", err)
	}
	tmp := s.faqPath() + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", faqFile, err)
	}
	if err := os.Rename(tmp, s.faqPath()); err != nil {
		return fmt.Errorf("replace %s: %w", faqFile, err)
	}
	return nil
}

// Close releases the search index.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil {
		return s.index.Close()
	}
	return nil
}
