// Package assistant implements the rules-based conversational engine behind
// the support widget. One call to HandleTurn converts a single line of user
// input (plus an optional attached image) into the user message, zero or more
// bot replies, and the next dialogue state.
//
// The engine is a pure decision component: it never touches storage or the
// network itself. Persistence, turn serialization, and transport live in the
// service layer; the only side-effecting collaborator is the injected
// TicketCreator, and randomness comes from an injected source so tests are
// deterministic.
//
// Rule layering, first applicable branch wins with no fallthrough:
//
//  1. awaiting_ticket_subject: record subject, ask for detail
//  2. awaiting_ticket_message: create the ticket, confirm with its id
//  3. ticket trigger keywords: start the ticket flow, ask for subject
//  4. aroma-quote triggers:    one random scent quote
//  5. FAQ table:               first keyword match, table order
//  6. troubleshooting table:   first keyword match, table order
//  7. fallback:                usage hint
package assistant

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"

	"github.com/aromabox/go-aroma-backend/internal/rules"
)

// State is the persisted "what are we waiting for next" flag of the
// ticket-creation sub-dialogue. Exactly one state is active per conversation.
type State string

const (
	StateIdle                  State = "idle"
	StateAwaitingTicketSubject State = "awaiting_ticket_subject"
	StateAwaitingTicketMessage State = "awaiting_ticket_message"
)

// Valid reports whether s is one of the three dialogue states.
func (s State) Valid() bool {
	switch s {
	case StateIdle, StateAwaitingTicketSubject, StateAwaitingTicketMessage:
		return true
	}
	return false
}

// Sender identifies the author of a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one immutable chat log entry produced by a turn.
type Message struct {
	ID            string
	Sender        Sender
	Text          string
	AttachedImage string // optional data URI
}

// Dialogue is the full dialogue position carried between turns: the state
// flag plus the pending ticket subject captured while the flow is open.
type Dialogue struct {
	State          State
	PendingSubject string
}

// TicketRef identifies a ticket created through the engine: the stable id and
// the human-readable display number quoted back to the user.
type TicketRef struct {
	ID     string
	Number string
}

// TicketCreator is the external ticket store contract. Implementations
// persist a new ticket with the given subject and first message body.
type TicketCreator interface {
	CreateTicket(ctx context.Context, userID, subject, message string) (TicketRef, error)
}

// ErrTicketCreateFailed wraps a TicketCreator failure. The returned Turn is
// still valid in that case: it carries a conversational retry prompt and the
// dialogue stays in awaiting_ticket_message so the pending subject survives.
var ErrTicketCreateFailed = errors.New("ticket creation failed")

// ticketTriggers opens the ticket flow when any of these appears in the
// lower-cased input. Checked before every other rule layer.
var ticketTriggers = []string{"ticket", "support request", "raise a complaint", "create ticket"}

// quotePhrases trigger a scent quote on their own; "diffuser"+"quote"
// together also trigger one.
var quotePhrases = []string{"aroma quote", "diffuser quote", "aroma suggestion"}

const (
	promptSubject   = "Sure — what should the subject of your ticket be?"
	promptDetail    = "Got it. Now describe the issue in as much detail as you like."
	promptRetry     = "Sorry, I couldn't create your ticket just now. Please send your message again and I'll retry."
	fallbackMessage = `I'm not sure I understood. You can ask things like "where is my order", "my diffuser is not misting", ask for an "aroma suggestion", or say "create ticket" to reach our support team.`
)

// Engine evaluates turns against a rule source. Zero-value fields get safe
// defaults: a nil Rand falls back to math/rand and a nil Rules source behaves
// as empty tables.
type Engine struct {
	Rules   rules.Source
	Tickets TicketCreator
	// Rand returns a value in [0,1); injected so quote selection is testable.
	Rand func() float64
}

// Turn is the result of one HandleTurn call: the messages to append to the
// log, in order (user message first), and the dialogue position after the
// turn.
type Turn struct {
	Messages []Message
	Dialogue Dialogue
}

// Greeting returns the single bot message a fresh or reset conversation
// starts with.
func Greeting() Message {
	return Message{
		ID:     uuid.NewString(),
		Sender: SenderBot,
		Text:   "Hi! I'm the Aromabox assistant. Ask me about orders, subscriptions, or your diffuser — or say \"create ticket\" to reach support.",
	}
}

// HandleTurn runs one dialogue turn. The user message is always appended
// first, even when the text is empty and only an image is attached; rule
// evaluation then produces the bot replies and the next state.
//
// The only error condition is a TicketCreator failure, reported as a wrapped
// ErrTicketCreateFailed; the Turn is still complete and should be persisted
// so the user can retry without retyping the subject.
func (e *Engine) HandleTurn(ctx context.Context, userID string, d Dialogue, input, attachedImage string) (Turn, error) {
	if !d.State.Valid() {
		d = Dialogue{State: StateIdle}
	}

	t := Turn{Dialogue: d}
	t.append(Message{ID: uuid.NewString(), Sender: SenderUser, Text: input, AttachedImage: attachedImage})

	lower := strings.ToLower(input)

	switch d.State {
	case StateAwaitingTicketSubject:
		// The subject is recorded verbatim; an empty string is accepted.
		t.Dialogue = Dialogue{State: StateAwaitingTicketMessage, PendingSubject: input}
		t.bot(promptDetail)
		return t, nil

	case StateAwaitingTicketMessage:
		ref, err := e.Tickets.CreateTicket(ctx, userID, d.PendingSubject, input)
		if err != nil {
			// Keep the flow open so the pending subject is not lost.
			t.bot(promptRetry)
			return t, fmt.Errorf("%w: %v", ErrTicketCreateFailed, err)
		}
		t.Dialogue = Dialogue{State: StateIdle}
		t.bot(fmt.Sprintf("Your ticket %s has been created. Our support team will get back to you shortly.", ref.Number))
		return t, nil
	}

	// State is idle: layered intent matching.
	if rules.ContainsAny(lower, ticketTriggers) {
		t.Dialogue = Dialogue{State: StateAwaitingTicketSubject}
		t.bot(promptSubject)
		return t, nil
	}

	if e.wantsQuote(lower) {
		if q, ok := e.pickQuote(); ok {
			t.bot(fmt.Sprintf("%s — %s", q.Scent, q.Quote))
			return t, nil
		}
	}

	if faq, ok := rules.MatchFAQ(e.faq(), lower); ok {
		text := faq.Answer
		if len(faq.RelatedLinks) > 0 {
			text += " For details see: " + strings.Join(faq.RelatedLinks, ", ")
		}
		t.bot(text)
		return t, nil
	}

	if ts, ok := rules.MatchTroubleshoot(e.troubleshooting(), lower); ok {
		t.bot(ts.Answer)
		return t, nil
	}

	t.bot(fallbackMessage)
	return t, nil
}

// wantsQuote reports whether the lower-cased input triggers a scent quote:
// a "diffuser"+"quote" conjunction, or any standalone quote phrase.
func (e *Engine) wantsQuote(lower string) bool {
	if strings.Contains(lower, "diffuser") && strings.Contains(lower, "quote") {
		return true
	}
	return rules.ContainsAny(lower, quotePhrases)
}

// pickQuote selects one quote uniformly at random via the injected source.
func (e *Engine) pickQuote() (rules.QuoteEntry, bool) {
	quotes := e.quotes()
	if len(quotes) == 0 {
		return rules.QuoteEntry{}, false
	}
	rnd := e.Rand
	if rnd == nil {
		rnd = rand.Float64
	}
	idx := int(rnd() * float64(len(quotes)))
	if idx >= len(quotes) {
		idx = len(quotes) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return quotes[idx], true
}

func (e *Engine) faq() []rules.FAQEntry {
	if e.Rules == nil {
		return nil
	}
	return e.Rules.FAQ()
}

func (e *Engine) troubleshooting() []rules.TroubleshootEntry {
	if e.Rules == nil {
		return nil
	}
	return e.Rules.Troubleshooting()
}

func (e *Engine) quotes() []rules.QuoteEntry {
	if e.Rules == nil {
		return nil
	}
	return e.Rules.Quotes()
}

func (t *Turn) append(m Message) { t.Messages = append(t.Messages, m) }

func (t *Turn) bot(text string) {
	t.append(Message{ID: uuid.NewString(), Sender: SenderBot, Text: text})
}
