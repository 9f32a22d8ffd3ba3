// Package rules defines the declarative rule tables driving the support
// assistant: FAQ entries, troubleshooting entries, and aroma quotes. Like the
// rest of the decision core it is deliberately free of I/O and logging; the
// caller loads overrides and decides how to report parse failures.
//
// Matching semantics are shared by all keyword tables: the user input is
// lower-cased once and each entry's keywords are tested for case-insensitive
// substring containment. Order within a table is significant: the first
// entry with any matching keyword wins and evaluation stops.
package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// FAQEntry answers a frequently asked question. RelatedLinks are site paths
// appended to the answer when present.
type FAQEntry struct {
	Keywords     []string `json:"keywords"`
	Answer       string   `json:"answer"`
	RelatedLinks []string `json:"related_links,omitempty"`
}

// TroubleshootEntry answers a device troubleshooting question.
type TroubleshootEntry struct {
	Keywords []string `json:"keywords"`
	Answer   string   `json:"answer"`
}

// QuoteEntry is one scent's marketing quote, served at random when the user
// asks for an aroma suggestion.
type QuoteEntry struct {
	Scent string `json:"scent"`
	Quote string `json:"quote"`
}

// Source supplies the three rule tables. Implementations must return stable,
// ordered slices; the assistant evaluates them top to bottom. Production uses
// the built-in Static tables or a JSON developer override; tests inject small
// fixed tables.
type Source interface {
	FAQ() []FAQEntry
	Troubleshooting() []TroubleshootEntry
	Quotes() []QuoteEntry
}

// Static is an immutable in-memory Source.
type Static struct {
	FAQTable          []FAQEntry          `json:"faq"`
	TroubleshootTable []TroubleshootEntry `json:"troubleshooting"`
	QuoteTable        []QuoteEntry        `json:"quotes"`
}

// FAQ implements Source.
func (s *Static) FAQ() []FAQEntry { return s.FAQTable }

// Troubleshooting implements Source.
func (s *Static) Troubleshooting() []TroubleshootEntry { return s.TroubleshootTable }

// Quotes implements Source.
func (s *Static) Quotes() []QuoteEntry { return s.QuoteTable }

// ErrEmptyRuleSet reports an override document whose tables are all empty.
var ErrEmptyRuleSet = errors.New("rule set has no entries")

// FromJSON parses a full rule-set override document:
//
//	{"faq": [...], "troubleshooting": [...], "quotes": [...]}
//
// The document replaces the built-in tables wholesale. Unknown fields are
// rejected so a typoed table name fails loudly instead of silently shipping
// half a rule set. Entries missing keywords or answer text are also rejected.
func FromJSON(data []byte) (*Static, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var s Static
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse rule override: %w", err)
	}
	if len(s.FAQTable) == 0 && len(s.TroubleshootTable) == 0 && len(s.QuoteTable) == 0 {
		return nil, ErrEmptyRuleSet
	}
	for i, e := range s.FAQTable {
		if len(e.Keywords) == 0 || e.Answer == "" {
			return nil, fmt.Errorf("faq entry %d: keywords and answer are required", i)
		}
	}
	for i, e := range s.TroubleshootTable {
		if len(e.Keywords) == 0 || e.Answer == "" {
			return nil, fmt.Errorf("troubleshooting entry %d: keywords and answer are required", i)
		}
	}
	for i, e := range s.QuoteTable {
		if e.Scent == "" || e.Quote == "" {
			return nil, fmt.Errorf("quote entry %d: scent and quote are required", i)
		}
	}
	return &s, nil
}

// LoadFile reads a rule override document from path. Callers are expected to
// fall back to Builtin() on any error (the override feature must fail closed,
// never crash the assistant).
func LoadFile(path string) (*Static, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromJSON(b)
}

// ContainsAny reports whether the lower-cased input contains any of the
// keywords (case-insensitive substring containment).
func ContainsAny(input string, keywords []string) bool {
	in := strings.ToLower(input)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(in, kw) {
			return true
		}
	}
	return false
}

// MatchFAQ returns the first FAQ entry whose keyword set matches input, in
// table order.
func MatchFAQ(entries []FAQEntry, input string) (FAQEntry, bool) {
	for _, e := range entries {
		if ContainsAny(input, e.Keywords) {
			return e, true
		}
	}
	return FAQEntry{}, false
}

// MatchTroubleshoot returns the first troubleshooting entry whose keyword set
// matches input, in table order.
func MatchTroubleshoot(entries []TroubleshootEntry, input string) (TroubleshootEntry, bool) {
	for _, e := range entries {
		if ContainsAny(input, e.Keywords) {
			return e, true
		}
	}
	return TroubleshootEntry{}, false
}

// Builtin returns the default rule set shipped with the application.
func Builtin() *Static {
	return &Static{
		FAQTable: []FAQEntry{
			{
				Keywords: []string{"order", "shipping", "deliver", "track"},
				Answer:   "Orders ship within 2 business days and arrive in 3-5. You can track every shipment from your dashboard.",
				RelatedLinks: []string{
					"/dashboard/orders",
				},
			},
			{
				Keywords: []string{"subscription", "monthly plan", "oil of the month"},
				Answer:   "Our subscription delivers one oil per device every month. You can swap upcoming months until 15 days before the cycle starts.",
				RelatedLinks: []string{
					"/dashboard/subscription",
					"/shop/plans",
				},
			},
			{
				Keywords: []string{"refund", "return", "money back"},
				Answer:   "Unopened oils can be returned within 30 days for a full refund. Diffuser hardware carries a 2-year warranty.",
			},
			{
				Keywords: []string{"price", "cost", "how much"},
				Answer:   "Diffusers start at $89 and oils at $19 per bottle. Subscribers save up to 20% depending on plan length.",
				RelatedLinks: []string{
					"/shop",
				},
			},
			{
				Keywords: []string{"business", "b2b", "wholesale", "office scent"},
				Answer:   "Our business line covers spaces from 40 to 2000 square metres with centralized scheduling. The B2B team replies within one business day.",
				RelatedLinks: []string{
					"/business/contact",
				},
			},
		},
		TroubleshootTable: []TroubleshootEntry{
			{
				Keywords: []string{"not misting", "no mist", "stopped working", "won't turn on", "not working"},
				Answer:   "Check that the oil bottle is seated firmly and the intake tube reaches the oil. If the unit still won't mist, hold the power button for 10 seconds to reset it.",
			},
			{
				Keywords: []string{"noise", "loud", "rattle", "buzzing"},
				Answer:   "A soft hiss during misting is normal. Rattling usually means the bottle cap is loose; re-thread it until it clicks.",
			},
			{
				Keywords: []string{"offline", "wifi", "connect", "pairing", "bluetooth"},
				Answer:   "Power-cycle the diffuser, then re-run pairing from the app within 2 metres of the unit. Only 2.4 GHz networks are supported.",
			},
			{
				Keywords: []string{"leak", "leaking", "spill"},
				Answer:   "Unplug the unit, remove the bottle, and wipe the atomizer well with a dry cloth. Always keep the diffuser upright while a bottle is installed.",
			},
		},
		QuoteTable: []QuoteEntry{
			{Scent: "Lavender Dream", Quote: "A field in Provence, minutes before sunset."},
			{Scent: "Citrus Burst", Quote: "Monday mornings, but somehow enjoyable."},
			{Scent: "Ocean Breeze", Quote: "Salt, wind, and absolutely no emails."},
			{Scent: "Cedar Atlas", Quote: "A library built inside a forest."},
			{Scent: "White Tea", Quote: "The quiet hour before the shop opens."},
		},
	}
}
