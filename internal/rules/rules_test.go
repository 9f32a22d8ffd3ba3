package rules

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestContainsAny(t *testing.T) {
	cases := []struct {
		input    string
		keywords []string
		want     bool
	}{
		{"I want to TRACK my order", []string{"track"}, true},
		{"tracking please", []string{"track"}, true}, // substring containment
		{"hello there", []string{"order", "shipping"}, false},
		{"My Diffuser is LOUD", []string{"noise", "loud"}, true},
		{"anything", nil, false},
		{"anything", []string{"", "  "}, false},
	}
	for _, tc := range cases {
		if got := ContainsAny(tc.input, tc.keywords); got != tc.want {
			t.Errorf("ContainsAny(%q, %v) = %v; want %v", tc.input, tc.keywords, got, tc.want)
		}
	}
}

func TestMatchFAQ_FirstMatchWins(t *testing.T) {
	entries := []FAQEntry{
		{Keywords: []string{"order"}, Answer: "A"},
		{Keywords: []string{"order", "shipping"}, Answer: "B"},
	}
	e, ok := MatchFAQ(entries, "where is my order shipping to?")
	if !ok {
		t.Fatal("expected a match")
	}
	if e.Answer != "A" {
		t.Fatalf("Answer = %q; want the earlier entry %q", e.Answer, "A")
	}
}

func TestMatchFAQ_NoMatch(t *testing.T) {
	if _, ok := MatchFAQ(Builtin().FAQ(), "completely unrelated gibberish zzz"); ok {
		t.Fatal("unexpected match")
	}
}

func TestFromJSON_ValidOverride(t *testing.T) {
	doc := []byte(`{
		"faq": [{"keywords": ["hours"], "answer": "We are open 9-5.", "related_links": ["/contact"]}],
		"troubleshooting": [{"keywords": ["blink"], "answer": "Refill the bottle."}],
		"quotes": [{"scent": "Test Scent", "quote": "A test in a bottle."}]
	}`)
	s, err := FromJSON(doc)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if len(s.FAQ()) != 1 || len(s.Troubleshooting()) != 1 || len(s.Quotes()) != 1 {
		t.Fatalf("unexpected table sizes: %d/%d/%d", len(s.FAQ()), len(s.Troubleshooting()), len(s.Quotes()))
	}
	if s.FAQ()[0].RelatedLinks[0] != "/contact" {
		t.Fatalf("related link = %q", s.FAQ()[0].RelatedLinks[0])
	}
}

func TestFromJSON_Rejects(t *testing.T) {
	cases := map[string]string{
		"malformed":      `{"faq": [`,
		"unknown field":  `{"faqs": []}`,
		"empty document": `{}`,
		"missing answer": `{"faq": [{"keywords": ["x"]}]}`,
		"missing scent":  `{"quotes": [{"quote": "no name"}]}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := FromJSON([]byte(doc)); err == nil {
				t.Fatalf("FromJSON(%q) succeeded; want error", doc)
			}
		})
	}
	if _, err := FromJSON([]byte(`{}`)); !errors.Is(err, ErrEmptyRuleSet) {
		t.Fatalf("empty doc err = %v; want ErrEmptyRuleSet", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "rules.json")
	if err := os.WriteFile(good, []byte(`{"quotes": [{"scent": "S", "quote": "Q"}]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(good); err != nil {
		t.Fatalf("LoadFile(good): %v", err)
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("LoadFile(missing) succeeded; want error")
	}
}

func TestBuiltin_TablesAreOrderedAndNonEmpty(t *testing.T) {
	b := Builtin()
	if len(b.FAQ()) == 0 || len(b.Troubleshooting()) == 0 || len(b.Quotes()) == 0 {
		t.Fatal("builtin tables must all be populated")
	}
	// The generic price entry must sit below the subscription entry so that
	// "how much is the subscription" answers the more specific table row.
	e, ok := MatchFAQ(b.FAQ(), "how much is the monthly plan subscription")
	if !ok {
		t.Fatal("expected a match")
	}
	if e.Keywords[0] != "subscription" {
		t.Fatalf("matched %v; want the subscription entry first", e.Keywords)
	}
}
