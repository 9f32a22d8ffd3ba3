// Package services – AssistantService
//
// This file implements AssistantService, the application-level component that
// owns the lifecycle of conversations and assistant turns. It validates
// inputs, checks conversation ownership, runs the rules engine over the
// persisted dialogue state, and stores the user/bot message batch together
// with the new dialogue position atomically.
//
// Optional enhancement: it also auto-generates a conversation title from the
// first user turn when the conversation still has a default/empty title.
//
// Observability: public methods are OpenTelemetry-instrumented; spans include
// conversation/user identifiers and pagination parameters where applicable.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/aromabox/go-aroma-backend/internal/assistant"
	"github.com/aromabox/go-aroma-backend/internal/domain"
	"github.com/aromabox/go-aroma-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// default titles we consider placeholders eligible for auto-generation
	defaultTitleNew      = "New conversation"
	defaultTitleUntitled = "Untitled"
)

// AssistantService coordinates conversation persistence and rule-based turns.
type AssistantService struct {
	DB     *gorm.DB
	Engine *assistant.Engine

	// MaxTurnRunes caps the user's turn text by rune length (0 = unlimited).
	MaxTurnRunes int

	// Title generation config
	TitleLocale language.Tag
	TitleMaxLen int

	// Per-conversation locks serialize concurrent turns so the persisted
	// dialogue state cannot interleave.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAssistantService constructs an AssistantService with sane defaults.
func NewAssistantService(db *gorm.DB, engine *assistant.Engine) *AssistantService {
	return &AssistantService{
		DB:           db,
		Engine:       engine,
		MaxTurnRunes: 4000,
		TitleLocale:  language.Und,
		TitleMaxLen:  60,
	}
}

// Start creates a new conversation owned by userID and persists the opening
// bot greeting. Titles are normalized and clipped; a default is applied when
// blank.
func (s *AssistantService) Start(ctx context.Context, userID, title string) (*domain.Conversation, *domain.ChatMessage, error) {
	tr := otel.Tracer("services/AssistantService")
	ctx, span := tr.Start(ctx, "Start",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	title = normalizeTitle(title)
	if title == "" {
		title = defaultTitleNew
	}

	var (
		conv     *domain.Conversation
		greeting *domain.ChatMessage
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := repo.CreateConversation(ctx, tx, userID, s.clipTitle(title))
		if err != nil {
			return err
		}
		conv = c
		g := assistant.Greeting()
		m, err := repo.CreateChatMessage(ctx, tx, c.ID, string(g.Sender), g.Text, "")
		if err != nil {
			return err
		}
		greeting = m
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return conv, greeting, nil
}

// Turn validates one user turn, runs the rules engine against the persisted
// dialogue state, and stores the produced message batch plus the new state in
// one transaction.
//
// A ticket store failure does not fail the turn: the engine's retry prompt is
// persisted, the dialogue keeps the pending subject, and the failure is
// logged so the user can simply resend their message.
func (s *AssistantService) Turn(ctx context.Context, userID, conversationID, text, attachedImage string) ([]domain.ChatMessage, error) {
	tr := otel.Tracer("services/AssistantService")
	ctx, span := tr.Start(ctx, "Turn",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	outcome := "error"
	defer func() { turnsTotal.WithLabelValues(outcome).Inc() }()

	text = strings.TrimSpace(text)
	if text == "" && attachedImage == "" {
		return nil, ErrEmptyTurn
	}
	if s.MaxTurnRunes > 0 && utf8.RuneCountInString(text) > s.MaxTurnRunes {
		return nil, ErrTurnTooLong
	}

	unlock := s.lockConversation(conversationID)
	defer unlock()

	conv, err := repo.GetConversation(ctx, s.DB, conversationID, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	dialogue := assistant.Dialogue{
		State:          assistant.State(conv.State),
		PendingSubject: conv.PendingSubject,
	}
	turn, turnErr := s.Engine.HandleTurn(ctx, userID, dialogue, text, attachedImage)
	if turnErr != nil && !errors.Is(turnErr, assistant.ErrTicketCreateFailed) {
		return nil, turnErr
	}

	batch := make([]domain.ChatMessage, 0, len(turn.Messages))
	for _, m := range turn.Messages {
		batch = append(batch, domain.ChatMessage{
			ID:             m.ID,
			ConversationID: conversationID,
			Sender:         string(m.Sender),
			Text:           m.Text,
			AttachedImage:  m.AttachedImage,
		})
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.AppendChatMessages(ctx, tx, batch); err != nil {
			return err
		}
		if err := repo.UpdateConversationDialogue(ctx, tx, conversationID, userID,
			string(turn.Dialogue.State), turn.Dialogue.PendingSubject); err != nil {
			return err
		}
		// Auto-title if placeholder
		if s.shouldAutoTitle(conv.Title) && text != "" {
			if gen := s.generateTitle(text); gen != "" {
				if uerr := repo.UpdateConversationTitle(ctx, tx, conversationID, userID, s.clipTitle(gen)); uerr == nil {
					conv.Title = gen
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if turnErr != nil {
		log.Warn().Err(turnErr).
			Str("conversation_id", conversationID).
			Str("user_id", userID).
			Msg("ticket creation failed; dialogue kept open for retry")
	}
	outcome = "ok"
	return batch, nil
}

// Reset wipes a conversation back to a fresh greeting: messages are removed,
// the dialogue returns to idle, and a new greeting is persisted.
func (s *AssistantService) Reset(ctx context.Context, userID, conversationID string) (*domain.ChatMessage, error) {
	tr := otel.Tracer("services/AssistantService")
	ctx, span := tr.Start(ctx, "Reset",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)),
	)
	defer span.End()

	unlock := s.lockConversation(conversationID)
	defer unlock()

	if _, err := repo.GetConversation(ctx, s.DB, conversationID, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	var greeting *domain.ChatMessage
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", conversationID).Delete(&domain.ChatMessage{}).Error; err != nil {
			return err
		}
		if err := repo.UpdateConversationDialogue(ctx, tx, conversationID, userID, domain.DialogueIdle, ""); err != nil {
			return err
		}
		g := assistant.Greeting()
		m, err := repo.CreateChatMessage(ctx, tx, conversationID, string(g.Sender), g.Text, "")
		if err != nil {
			return err
		}
		greeting = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return greeting, nil
}

// Delete soft-deletes a conversation and its messages.
func (s *AssistantService) Delete(ctx context.Context, userID, conversationID string) error {
	if err := repo.DeleteConversation(ctx, s.DB, conversationID, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrConversationNotFound
		}
		return err
	}
	return nil
}

// ListPage returns a page of the user's conversations, newest first.
func (s *AssistantService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Conversation, int64, error) {
	tr := otel.Tracer("services/AssistantService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountConversations(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Conversation{}, 0, nil
	}
	items, err := repo.ListConversationsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// ListMessagesPage returns paginated messages for a conversation in
// chronological order.
func (s *AssistantService) ListMessagesPage(ctx context.Context, userID, conversationID string, page, pageSize int) ([]domain.ChatMessage, int64, error) {
	tr := otel.Tracer("services/AssistantService")
	ctx, span := tr.Start(ctx, "ListMessagesPage",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	if _, err := repo.GetConversation(ctx, s.DB, conversationID, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, 0, ErrConversationNotFound
		}
		return nil, 0, err
	}

	total, err := repo.CountChatMessages(ctx, s.DB, conversationID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ChatMessage{}, 0, nil
	}
	items, err := repo.ListChatMessagesPage(ctx, s.DB, conversationID, offset, pageSize)
	return items, total, err
}

// lockConversation acquires the per-conversation mutex and returns its
// release function.
func (s *AssistantService) lockConversation(id string) func() {
	s.mu.Lock()
	if s.locks == nil {
		s.locks = make(map[string]*sync.Mutex)
	}
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// shouldAutoTitle reports whether the current title is a placeholder.
func (s *AssistantService) shouldAutoTitle(current string) bool {
	t := strings.TrimSpace(strings.ToLower(current))
	return t == "" || t == strings.ToLower(defaultTitleNew) || t == strings.ToLower(defaultTitleUntitled)
}

// generateTitle derives a concise title from the first user turn.
func (s *AssistantService) generateTitle(text string) string {
	toks := titleWordRE.FindAllString(strings.ToLower(text), -1)
	if len(toks) == 0 {
		return ""
	}
	titleCaser := cases.Title(s.titleLocaleOrDefault())
	out := make([]string, 0, 8)
	for _, w := range toks {
		if _, skip := titleStopWords[w]; skip {
			continue
		}
		out = append(out, titleCaser.String(w))
		if len(out) >= 8 {
			break
		}
	}
	if len(out) == 0 {
		return ""
	}
	return strings.Join(out, " ")
}

// clipTitle truncates a title to the configured maximum rune length.
func (s *AssistantService) clipTitle(title string) string {
	max := s.TitleMaxLen
	if max <= 0 {
		max = 60
	}
	if utf8.RuneCountInString(title) > max {
		return string([]rune(title)[:max])
	}
	return title
}

// titleLocaleOrDefault returns the configured locale for casing or English if unset.
func (s *AssistantService) titleLocaleOrDefault() language.Tag {
	if s.TitleLocale == language.Und {
		return language.English
	}
	return s.TitleLocale
}

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// titleWordRE extracts Unicode letters with optional trailing numbers.
var titleWordRE = regexp.MustCompile(`[\p{L}]+[\p{N}]*`)

// titleStopWords is a minimal English stop-words set for compact titles.
var titleStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
	"my": {}, "i": {}, "me": {},
}
