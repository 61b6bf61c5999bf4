// Package compose renders snapshots and narratives into platform-neutral
// messages. Every function here is pure.
package compose

import (
	"time"
	"unicode/utf8"
)

// Limits mirror the embed limits of the chat platform.
const (
	MaxTitle       = 256
	MaxDescription = 4096
	MaxFieldName   = 256
	MaxFieldValue  = 1024
	MaxFields      = 25
	MaxFooter      = 2048
	MaxContent     = 2000
)

// Narrative budgets by placement.
const (
	AnalysisLimit = 1024
	SummaryLimit  = 500
	AnswerLimit   = 4000
)

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Message is a structured post. Transports render it to their own format.
type Message struct {
	Kind        string    `json:"kind"`
	Mention     string    `json:"mention,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url,omitempty"`
	Color       int       `json:"color"`
	Fields      []Field   `json:"fields,omitempty"`
	Footer      string    `json:"footer,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// AddField appends a field, applying the platform limits. Empty values are
// skipped.
func (m *Message) AddField(name, value string, inline bool) {
	if value == "" || len(m.Fields) >= MaxFields {
		return
	}
	m.Fields = append(m.Fields, Field{
		Name:   Truncate(name, MaxFieldName),
		Value:  Truncate(value, MaxFieldValue),
		Inline: inline,
	})
}

// Field returns the named field and whether it exists.
func (m Message) Field(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Truncate cuts s to at most n runes. No ellipsis is added.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func finalize(m Message, now time.Time) Message {
	m.Title = Truncate(m.Title, MaxTitle)
	m.Description = Truncate(m.Description, MaxDescription)
	m.Footer = Truncate(m.Footer, MaxFooter)
	m.Timestamp = now
	return m
}
