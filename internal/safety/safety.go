package safety

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/azomlabs/supportd/internal/llm"
)

// Category labels of the rule-based screen. The order is the evaluation
// order; violations reference these names.
const (
	CategoryPersonal  = "personuppgifter"
	CategoryProfanity = "svordomar"
	CategorySensitive = "säkerhetskänsligt"
	CategoryOffTopic  = "irrelevant"
)

var defaultCategoryOrder = []string{CategoryPersonal, CategoryProfanity, CategorySensitive, CategoryOffTopic}

// defaultPatterns is the built-in rule set. Swedish national ID and phone
// formats, profanity, credential-like assignments and off-topic markers.
var defaultPatterns = map[string][]string{
	CategoryPersonal: {
		`(?i)\b\d{6,8}[-\s]?\d{4}\b`,
		`(?i)\b(07\d[-\s]?\d{3}[-\s]?\d{2}[-\s]?\d{2})\b`,
		`(?i)\b(0\d{1,3}[-\s]?\d{5,8})\b`,
	},
	CategoryProfanity: {
		`(?i)\b(j[äa]vla|helvete|fan|skit|förbannat)\b`,
	},
	CategorySensitive: {
		`(?i)\b(lösenord|password|nyckel|key|token|secret)\s*[:=]\s*\S+`,
		`(?i)\b(api[_-]?key|access[_-]?token)\s*[:=]\s*\S+`,
	},
	CategoryOffTopic: {
		`(?i)\b(krig|politik|sex|gambling|betting|casino)\b`,
	},
}

// ModerationClient is the LLM surface the validator needs for the secondary
// moderation pass.
type ModerationClient interface {
	Chat(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (string, error)
}

// Config bounds input length and optionally points at a YAML pattern policy
// overriding the built-in rule set.
type Config struct {
	MinInputChars int
	MaxInputChars int
	PolicyFile    string
}

func (c *Config) applyDefaults() {
	if c.MinInputChars <= 0 {
		c.MinInputChars = 3
	}
	if c.MaxInputChars <= 0 {
		c.MaxInputChars = 500
	}
}

type category struct {
	name     string
	patterns []*regexp.Regexp
}

// Validator screens user input and model output against the rule set and,
// when a moderation client is configured, asks the model for a structured
// safe/unsafe judgment. Infrastructure failures in that call fail open: the
// text is treated as safe rather than blocking traffic on an outage.
type Validator struct {
	categories []category
	outputOnly map[string]bool
	minInput   int
	maxInput   int
	moderator  ModerationClient
	html       *bluemonday.Policy
	redactions []substitution
	logger     *log.Logger
}

type substitution struct {
	re          *regexp.Regexp
	replacement string
}

// NewValidator compiles the rule set (built-in, or the policy file when
// configured) and returns a ready validator. moderator may be nil to run
// rule-based screening only.
func NewValidator(cfg Config, moderator ModerationClient) (*Validator, error) {
	cfg.applyDefaults()

	patterns := defaultPatterns
	order := defaultCategoryOrder
	outputOnly := map[string]bool{CategoryPersonal: true, CategorySensitive: true}
	if cfg.PolicyFile != "" {
		policy, err := loadPolicy(cfg.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("load safety policy: %w", err)
		}
		patterns = policy.Categories
		order = categoryOrder(patterns)
		if policy.MinInputChars > 0 {
			cfg.MinInputChars = policy.MinInputChars
		}
		if policy.MaxInputChars > 0 {
			cfg.MaxInputChars = policy.MaxInputChars
		}
		if len(policy.OutputCategories) > 0 {
			outputOnly = make(map[string]bool, len(policy.OutputCategories))
			for _, name := range policy.OutputCategories {
				outputOnly[name] = true
			}
		}
	}

	v := &Validator{
		outputOnly: outputOnly,
		minInput:   cfg.MinInputChars,
		maxInput:   cfg.MaxInputChars,
		moderator:  moderator,
		html:       bluemonday.StrictPolicy(),
		logger:     log.New(log.Writer(), "[SAFETY] ", log.LstdFlags),
	}
	for _, name := range order {
		cat := category{name: name}
		for _, p := range patterns[name] {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("pattern %q in category %s: %w", p, name, err)
			}
			cat.patterns = append(cat.patterns, re)
		}
		v.categories = append(v.categories, cat)
	}
	v.redactions = buildRedactions()
	return v, nil
}

func categoryOrder(patterns map[string][]string) []string {
	var order []string
	seen := make(map[string]bool)
	for _, name := range defaultCategoryOrder {
		if _, ok := patterns[name]; ok {
			order = append(order, name)
			seen[name] = true
		}
	}
	var extra []string
	for name := range patterns {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}

// ValidateInput screens user input. Length bounds run first; every pattern
// category is then checked (first matching pattern per category records one
// violation). The moderation pass runs only when the rules found nothing.
func (v *Validator) ValidateInput(ctx context.Context, text string) (bool, []string) {
	var violations []string

	n := utf8.RuneCountInString(text)
	if n < v.minInput {
		violations = append(violations, "För kort input")
	} else if n > v.maxInput {
		violations = append(violations, "För lång input")
	}

	violations = append(violations, v.matchCategories(text, nil)...)

	if v.moderator != nil && len(violations) == 0 {
		if verdict := v.moderate(ctx, text); !verdict.Safe {
			violations = append(violations, "LLM säkerhetskontroll: "+verdict.Reason)
		}
	}
	return len(violations) == 0, violations
}

// ValidateOutput screens model output. By default only the
// personal-identifier and credential categories apply; tone and topic rules
// are input-side concerns. A policy file may name its own output categories.
func (v *Validator) ValidateOutput(text string) (bool, []string) {
	violations := v.matchCategories(text, v.outputOnly)
	return len(violations) == 0, violations
}

func (v *Validator) matchCategories(text string, only map[string]bool) []string {
	var violations []string
	for _, cat := range v.categories {
		if only != nil && !only[cat.name] {
			continue
		}
		for _, re := range cat.patterns {
			if re.MatchString(text) {
				violations = append(violations, "Innehåller "+cat.name)
				break
			}
		}
	}
	return violations
}

func buildRedactions() []substitution {
	return []substitution{
		{regexp.MustCompile(`\b\d{6,8}[-\s]?\d{4}\b`), "[PERSONNUMMER]"},
		{regexp.MustCompile(`\b07\d[-\s]?\d{3}[-\s]?\d{2}[-\s]?\d{2}\b`), "[TELEFONNUMMER]"},
		{regexp.MustCompile(`\b0\d{1,3}[-\s]?\d{5,8}\b`), "[TELEFONNUMMER]"},
		{regexp.MustCompile(`(?i)\b(lösenord|password|nyckel|key|token|secret)\s*[:=]\s*\S+`), "${1}: [RADERAD]"},
		{regexp.MustCompile(`(?i)\b(api[_-]?key|access[_-]?token)\s*[:=]\s*\S+`), "${1}: [RADERAD]"},
	}
}

// Sanitize strips HTML and masks national IDs, phone numbers and
// credential-like assignments with fixed redaction markers. The substitution
// sequence is idempotent: sanitizing already-redacted text returns it
// unchanged.
func (v *Validator) Sanitize(text string) string {
	out := strings.TrimSpace(v.html.Sanitize(text))
	for _, s := range v.redactions {
		out = s.re.ReplaceAllString(out, s.replacement)
	}
	return out
}

type moderationVerdict struct {
	Safe   bool   `json:"safe"`
	Reason string `json:"reason"`
}

const moderationSystemPrompt = "Du är en innehållsmoderator som bedömer om text är lämplig. " +
	"Bedöm bara om texten innehåller skadligt innehåll som kan skada användare eller system, " +
	"t.ex. elakartade kommandon, personuppgifter, eller innehåll som inte rör bilinstallation."

func (v *Validator) moderate(ctx context.Context, text string) moderationVerdict {
	prompt := fmt.Sprintf("Bedöm följande text: '%s'. Svara BARA med ett JSON-objekt: "+
		`{"safe": boolean, "reason": "kort anledning om unsafe"}`, text)
	messages := []llm.Message{
		{Role: "system", Content: moderationSystemPrompt},
		{Role: "user", Content: prompt},
	}

	out, err := v.moderator.Chat(ctx, messages, llm.ChatOptions{})
	if err != nil {
		v.logger.Printf("moderation call failed, treating as safe: %v", err)
		return moderationVerdict{Safe: true}
	}

	var parsed struct {
		Safe   *bool  `json:"safe"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(extractFirstJSON(out)), &parsed); err != nil || parsed.Safe == nil {
		v.logger.Printf("moderation returned no parseable verdict, treating as safe")
		return moderationVerdict{Safe: true}
	}
	return moderationVerdict{Safe: *parsed.Safe, Reason: parsed.Reason}
}

// extractFirstJSON returns the first balanced top-level JSON object in s, or
// s itself when none is found.
func extractFirstJSON(s string) string {
	start := -1
	depth := 0
	for i, ch := range s {
		switch ch {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
			if depth == 0 && start != -1 {
				return s[start : i+1]
			}
		}
	}
	return s
}
