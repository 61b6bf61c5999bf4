package urgency

import (
	"os"
	"path/filepath"
	"testing"

	"crypto-herald/internal/domain"
)

func TestDefaultTableParses(t *testing.T) {
	table := DefaultTable()
	if len(table.Rules) == 0 {
		t.Fatal("expected rules")
	}
	if table.Rules[0].Category != domain.CategoryHack {
		t.Fatalf("hack rules should be checked first, got %s", table.Rules[0].Category)
	}
}

func TestClassifyText(t *testing.T) {
	c := NewClassifier(DefaultTable())
	tests := []struct {
		title    string
		urgency  domain.Urgency
		category domain.Category
	}{
		{"Exchange hacked for $200 million", domain.UrgencyUrgent, domain.CategoryHack},
		{"SEC Sues Major Exchange", domain.UrgencyUrgent, domain.CategoryRegulatory},
		{"sec sues major exchange", domain.UrgencyUrgent, domain.CategoryRegulatory},
		{"Spot ETF approved by regulators", domain.UrgencyUrgent, domain.CategoryBullish},
		{"Bitcoin hits new ATH above 100k", domain.UrgencyUrgent, domain.CategoryBullish},
		{"Lender files for bankruptcy", domain.UrgencyUrgent, domain.CategoryHack},
		{"Small DeFi exploit contained", domain.UrgencyRoutine, domain.CategoryHack},
		{"Country weighs ban on mining", domain.UrgencyRoutine, domain.CategoryHack},
		{"New ETF filing lands", domain.UrgencyRoutine, domain.CategoryBullish},
		{"SEC commissioner speaks at conference", domain.UrgencyRoutine, domain.CategoryRegulatory},
		{"Bank adds stablecoin support", domain.UrgencyRoutine, domain.CategoryGeneric},
		{"Second quarter path for sector", domain.UrgencyRoutine, domain.CategoryGeneric},
		{"", domain.UrgencyRoutine, domain.CategoryGeneric},
	}
	for _, tc := range tests {
		got := c.ClassifyText(tc.title)
		if got.Urgency != tc.urgency || got.Category != tc.category {
			t.Errorf("%q: expected %s/%s, got %s/%s", tc.title, tc.urgency, tc.category, got.Urgency, got.Category)
		}
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := NewClassifier(DefaultTable())
	item := domain.NewsItem{ID: "a", Title: "Bridge hack drains funds"}
	first := c.Classify(item)
	for i := 0; i < 10; i++ {
		if got := c.Classify(item); got != first {
			t.Fatalf("classification changed: %+v vs %+v", got, first)
		}
	}
	other := domain.NewsItem{ID: "b", Title: "Bridge hack drains funds", Body: "totally different"}
	if got := c.Classify(other); got != first {
		t.Fatalf("same title should classify identically, got %+v", got)
	}
}

func TestFirstMatchWins(t *testing.T) {
	table := Table{Rules: []Rule{
		{Category: domain.CategoryRegulatory, Urgency: domain.UrgencyRoutine, Phrases: []string{"regulation"}},
		{Category: domain.CategoryHack, Urgency: domain.UrgencyUrgent, Phrases: []string{"hack"}},
	}}
	c := NewClassifier(table)
	got := c.ClassifyText("Hack prompts regulation talk")
	if got.Category != domain.CategoryRegulatory || got.Urgency != domain.UrgencyRoutine {
		t.Fatalf("expected table order to decide, got %+v", got)
	}
}

func TestMatchBody(t *testing.T) {
	table := DefaultTable()
	item := domain.NewsItem{Title: "Market update", Body: "An exchange hack was reported"}
	if NewClassifier(table).IsUrgent(item) {
		t.Fatal("body should be ignored by default")
	}
	table.MatchBody = true
	if !NewClassifier(table).IsUrgent(item) {
		t.Fatal("body should be matched when enabled")
	}
}

func TestParseTableValidation(t *testing.T) {
	bad := []string{
		"rules: []",
		"rules:\n  - urgency: URGENT\n    phrases: [x]",
		"rules:\n  - category: hack\n    urgency: LOUD\n    phrases: [x]",
		"rules:\n  - category: hack\n    urgency: URGENT",
		"rules: [",
	}
	for _, b := range bad {
		if _, err := ParseTable([]byte(b)); err == nil {
			t.Errorf("expected error for %q", b)
		}
	}
}

func TestLoadTableFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "table.yaml")
	data := "rules:\n  - category: bullish\n    urgency: URGENT\n    phrases: [moon]\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	table, err := LoadTable(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := NewClassifier(table).ClassifyText("To the MOON"); got.Urgency != domain.UrgencyUrgent {
		t.Fatalf("expected custom rule to match, got %+v", got)
	}

	if _, err := LoadTable(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if table, err := LoadTable(""); err != nil || len(table.Rules) == 0 {
		t.Fatalf("empty path should return default table, err=%v", err)
	}
}
