package retrieval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Product is one entry of products.json.
type Product struct {
	Name             string   `json:"name"`
	CompatibleModels []string `json:"compatible_models"`
	Description      string   `json:"description"`
	Vendor           string   `json:"vendor"`
	ProductType      string   `json:"product_type"`
	Tags             []string `json:"tags"`
	SKU              string   `json:"sku"`
	PriceSEK         float64  `json:"price_sek"`
}

// Guide is one entry of troubleshooting.json.
type Guide struct {
	Model         string   `json:"model"`
	IssueKeywords []string `json:"issue_keywords"`
	Steps         []string `json:"steps"`
}

// OtherRecord is one entry of an other_*.json collection. The files mix FAQ
// records (question/answer) and free-form guides (model/issue_keywords/steps),
// so a record carries both shapes and the consumer picks by which fields are
// set.
type OtherRecord struct {
	Question      string   `json:"question"`
	Answer        string   `json:"answer"`
	Model         string   `json:"model"`
	IssueKeywords []string `json:"issue_keywords"`
	Steps         []string `json:"steps"`
	Content       string   `json:"content"`
}

// LoadWarning reports a corpus file that was skipped during load. Warnings
// are non-fatal: the engine always gets a usable (possibly partial) corpus.
type LoadWarning struct {
	File string
	Err  error
}

func (w LoadWarning) String() string {
	return fmt.Sprintf("%s: %v", w.File, w.Err)
}

// Corpus holds the document collections searched by the retrieval engine.
// It is read-only after load; refreshing means loading a new Corpus.
type Corpus struct {
	Products []Product
	Guides   []Guide
	Other    []OtherRecord
}

const (
	productsFile        = "products.json"
	troubleshootingFile = "troubleshooting.json"
	otherPrefix         = "other_"
)

// LoadCorpus reads every corpus collection under dataDir. Missing or
// malformed files are skipped and reported as warnings rather than aborting
// the load.
func LoadCorpus(dataDir string) (*Corpus, []LoadWarning) {
	c := &Corpus{}
	var warnings []LoadWarning

	if err := readJSONFile(filepath.Join(dataDir, productsFile), &c.Products); err != nil {
		warnings = append(warnings, LoadWarning{File: productsFile, Err: err})
	}
	if err := readJSONFile(filepath.Join(dataDir, troubleshootingFile), &c.Guides); err != nil {
		warnings = append(warnings, LoadWarning{File: troubleshootingFile, Err: err})
	}

	names, err := os.ReadDir(dataDir)
	if err != nil {
		warnings = append(warnings, LoadWarning{File: dataDir, Err: err})
		return c, warnings
	}
	for _, de := range names {
		name := de.Name()
		if de.IsDir() || !strings.HasPrefix(name, otherPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		var records []OtherRecord
		if err := readJSONFile(filepath.Join(dataDir, name), &records); err != nil {
			warnings = append(warnings, LoadWarning{File: name, Err: err})
			continue
		}
		c.Other = append(c.Other, records...)
	}
	return c, warnings
}

func readJSONFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	return nil
}

// ContentTexts returns the indexable free-text field of every corpus entry,
// in corpus order. Entries with no usable text are omitted.
func (c *Corpus) ContentTexts() []string {
	var texts []string
	for _, p := range c.Products {
		if t := strings.TrimSpace(p.Description); t != "" {
			texts = append(texts, t)
		}
	}
	for _, g := range c.Guides {
		if t := strings.TrimSpace(strings.Join(g.Steps, " ")); t != "" {
			texts = append(texts, t)
		}
	}
	for _, o := range c.Other {
		texts = appendRecordText(texts, o)
	}
	return texts
}

func appendRecordText(texts []string, o OtherRecord) []string {
	switch {
	case strings.TrimSpace(o.Content) != "":
		return append(texts, strings.TrimSpace(o.Content))
	case len(o.Steps) > 0:
		if t := strings.TrimSpace(strings.Join(o.Steps, " ")); t != "" {
			return append(texts, t)
		}
	case strings.TrimSpace(o.Answer) != "":
		return append(texts, strings.TrimSpace(o.Answer))
	}
	return texts
}
