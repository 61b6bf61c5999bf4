// Package urgency decides whether news and market moves deserve an
// out-of-band flash alert.
package urgency

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"crypto-herald/internal/domain"

	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var defaultTableYAML []byte

// Rule is one row of the keyword table.
type Rule struct {
	Category domain.Category `yaml:"category"`
	Urgency  domain.Urgency  `yaml:"urgency"`
	Phrases  []string        `yaml:"phrases"`
	Words    []string        `yaml:"words"`
}

// Table is an ordered keyword table. Order is priority.
type Table struct {
	MatchBody bool   `yaml:"match_body"`
	Rules     []Rule `yaml:"rules"`
}

// ParseTable decodes and validates a YAML keyword table.
func ParseTable(data []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("decode keyword table: %w", err)
	}
	if len(t.Rules) == 0 {
		return Table{}, fmt.Errorf("keyword table has no rules")
	}
	for i, r := range t.Rules {
		if r.Category == "" {
			return Table{}, fmt.Errorf("rule %d: missing category", i)
		}
		if r.Urgency != domain.UrgencyRoutine && r.Urgency != domain.UrgencyUrgent {
			return Table{}, fmt.Errorf("rule %d: unknown urgency %q", i, r.Urgency)
		}
		if len(r.Phrases) == 0 && len(r.Words) == 0 {
			return Table{}, fmt.Errorf("rule %d: no phrases or words", i)
		}
	}
	return t, nil
}

// DefaultTable returns the built-in table.
func DefaultTable() Table {
	t, err := ParseTable(defaultTableYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded keyword table: %v", err))
	}
	return t
}

// LoadTable reads a table from path, or returns the default when path is empty.
func LoadTable(path string) (Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read keyword table: %w", err)
	}
	return ParseTable(data)
}

type compiledRule struct {
	Rule
	phrases []string
	words   []string
}

// Classifier is safe for concurrent use; it holds no mutable state.
type Classifier struct {
	matchBody bool
	rules     []compiledRule
}

func NewClassifier(t Table) *Classifier {
	c := &Classifier{matchBody: t.MatchBody}
	for _, r := range t.Rules {
		cr := compiledRule{Rule: r}
		for _, p := range r.Phrases {
			cr.phrases = append(cr.phrases, strings.ToLower(p))
		}
		for _, w := range r.Words {
			cr.words = append(cr.words, strings.ToLower(w))
		}
		c.rules = append(c.rules, cr)
	}
	return c
}

// Classify looks at the title (and body when the table asks for it).
func (c *Classifier) Classify(item domain.NewsItem) domain.Classification {
	text := item.Title
	if c.matchBody && item.Body != "" {
		text += "\n" + item.Body
	}
	return c.ClassifyText(text)
}

// ClassifyText returns the first matching rule's urgency and category, or
// ROUTINE/generic when nothing matches.
func (c *Classifier) ClassifyText(text string) domain.Classification {
	lower := strings.ToLower(text)
	for _, r := range c.rules {
		for _, p := range r.phrases {
			if strings.Contains(lower, p) {
				return domain.Classification{Urgency: r.Urgency, Category: r.Category, Matched: p}
			}
		}
		for _, w := range r.words {
			if containsWord(lower, w) {
				return domain.Classification{Urgency: r.Urgency, Category: r.Category, Matched: w}
			}
		}
	}
	return domain.Classification{Urgency: domain.UrgencyRoutine, Category: domain.CategoryGeneric}
}

// IsUrgent is shorthand for Classify(item).Urgency == URGENT.
func (c *Classifier) IsUrgent(item domain.NewsItem) bool {
	return c.Classify(item).Urgency == domain.UrgencyUrgent
}

func containsWord(text, word string) bool {
	for start := 0; start < len(text); {
		i := strings.Index(text[start:], word)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(word)
		if boundaryBefore(text, i) && boundaryAfter(text, end) {
			return true
		}
		start = i + 1
	}
	return false
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[end:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
