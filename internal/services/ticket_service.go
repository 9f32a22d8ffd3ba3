// Package services – TicketService
//
// This file implements TicketService, which owns the support-ticket
// lifecycle: creation (from the assistant flow or the contact form), thread
// replies with automatic re-opening, status transitions, and paginated
// listing. The service also satisfies the assistant engine's ticket store
// contract so the dialogue flow can create tickets directly.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/aromabox/go-aroma-backend/internal/assistant"
	"github.com/aromabox/go-aroma-backend/internal/domain"
	"github.com/aromabox/go-aroma-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTicketCategory = "general"
	defaultTicketPriority = "medium"
)

// TicketService provides ticket-level operations.
type TicketService struct {
	DB *gorm.DB
}

// NewTicketService constructs a TicketService.
func NewTicketService(db *gorm.DB) *TicketService {
	return &TicketService{DB: db}
}

// Create opens a new ticket for userID. Category and priority fall back to
// defaults when blank; the subject is stored verbatim (an empty subject is
// allowed, matching the assistant flow). A non-empty message becomes the
// first thread entry.
func (s *TicketService) Create(ctx context.Context, userID, subject, category, priority, message string) (*domain.SupportTicket, error) {
	tr := otel.Tracer("services/TicketService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	if strings.TrimSpace(category) == "" {
		category = defaultTicketCategory
	}
	if strings.TrimSpace(priority) == "" {
		priority = defaultTicketPriority
	}
	return repo.CreateTicket(ctx, s.DB, userID, subject, category, priority, message)
}

// CreateTicket adapts Create to the assistant engine's ticket store contract.
func (s *TicketService) CreateTicket(ctx context.Context, userID, subject, message string) (assistant.TicketRef, error) {
	t, err := s.Create(ctx, userID, subject, "", "", message)
	if err != nil {
		return assistant.TicketRef{}, err
	}
	return assistant.TicketRef{ID: t.ID, Number: t.Ref()}, nil
}

// Get fetches a ticket with its thread, enforcing ownership.
func (s *TicketService) Get(ctx context.Context, userID, id string) (*domain.SupportTicket, error) {
	t, err := repo.GetTicket(ctx, s.DB, id, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return t, nil
}

// ListPage returns a page of the user's tickets, newest first, plus the total
// count for pagination metadata.
func (s *TicketService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.SupportTicket, int64, error) {
	tr := otel.Tracer("services/TicketService")
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

	total, err := repo.CountTickets(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.SupportTicket{}, 0, nil
	}
	items, err := repo.ListTicketsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// UpdateStatus transitions a ticket to the given lifecycle status.
func (s *TicketService) UpdateStatus(ctx context.Context, userID, id, status string) error {
	if !domain.ValidTicketStatus(status) {
		return ErrInvalidTicketStatus
	}
	if err := repo.UpdateTicketStatus(ctx, s.DB, id, userID, status); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrTicketNotFound
		}
		return err
	}
	return nil
}

// AddMessage appends a thread entry to a ticket. A user reply on a resolved
// or closed ticket re-opens it.
func (s *TicketService) AddMessage(ctx context.Context, userID, id, sender, text string) (*domain.TicketMessage, error) {
	tr := otel.Tracer("services/TicketService")
	ctx, span := tr.Start(ctx, "AddMessage",
		trace.WithAttributes(attribute.String("ticket.id", id)),
	)
	defer span.End()

	if sender != "user" && sender != "agent" {
		return nil, ErrInvalidTicketSender
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyTurn
	}

	t, err := repo.GetTicket(ctx, s.DB, id, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}

	var msg *domain.TicketMessage
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repo.AddTicketMessage(ctx, tx, id, sender, text)
		if err != nil {
			return err
		}
		msg = m
		if sender == "user" && (t.Status == domain.TicketResolved || t.Status == domain.TicketClosed) {
			return repo.UpdateTicketStatus(ctx, tx, id, userID, domain.TicketOpen)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// Stats exposes aggregate ticket metadata for conditional responses.
func (s *TicketService) Stats(ctx context.Context, userID string) (int64, *int64, error) {
	count, maxAt, err := repo.TicketsStats(ctx, s.DB, userID)
	if err != nil {
		return 0, nil, err
	}
	if maxAt == nil {
		return count, nil, nil
	}
	unix := maxAt.Unix()
	return count, &unix, nil
}
