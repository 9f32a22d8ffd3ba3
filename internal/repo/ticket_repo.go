// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// SupportTicket and TicketMessage models.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aromabox/go-aroma-backend/internal/domain"
)

// CreateTicket inserts a new ticket together with its first (user-authored)
// message. The sequential display number is assigned inside the transaction
// so concurrent creates cannot collide on it.
func CreateTicket(ctx context.Context, db *gorm.DB, userID, subject, category, priority, firstMessage string) (*domain.SupportTicket, error) {
	t := &domain.SupportTicket{
		ID:        uuid.NewString(),
		UserID:    userID,
		Subject:   subject,
		Category:  category,
		Priority:  priority,
		Status:    domain.TicketOpen,
		CreatedAt: time.Now().UTC(),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var total int64
		if err := tx.Model(&domain.SupportTicket{}).Count(&total).Error; err != nil {
			return err
		}
		t.Number = total + 1
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		if firstMessage == "" {
			return nil
		}
		m := &domain.TicketMessage{
			ID:        uuid.NewString(),
			TicketID:  t.ID,
			Sender:    "user",
			Text:      firstMessage,
			CreatedAt: t.CreatedAt,
		}
		return tx.Create(m).Error
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetTicket fetches a ticket by id scoped to its owner, with the message
// thread preloaded in chronological order. Returns ErrNotFound when missing.
func GetTicket(ctx context.Context, db *gorm.DB, id, userID string) (*domain.SupportTicket, error) {
	var t domain.SupportTicket
	err := db.WithContext(ctx).
		Preload("Messages", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC, id ASC")
		}).
		Where("id = ? AND user_id = ?", id, userID).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CountTickets returns the total number of tickets owned by userID.
func CountTickets(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.SupportTicket{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListTicketsPage returns a paginated slice of a user's tickets, newest
// first. Message threads are not preloaded here.
func ListTicketsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.SupportTicket, error) {
	var out []domain.SupportTicket
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateTicketStatus sets the lifecycle status of a ticket. Returns
// ErrNotFound when the ticket is missing or not owned by userID.
func UpdateTicketStatus(ctx context.Context, db *gorm.DB, id, userID, status string) error {
	res := db.WithContext(ctx).
		Model(&domain.SupportTicket{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AddTicketMessage appends one entry to a ticket's thread and touches the
// ticket's UpdatedAt so list ordering and ETags reflect the activity.
func AddTicketMessage(ctx context.Context, db *gorm.DB, ticketID, sender, text string) (*domain.TicketMessage, error) {
	m := &domain.TicketMessage{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		Sender:    sender,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		return tx.Model(&domain.SupportTicket{}).
			Where("id = ?", ticketID).
			Update("updated_at", m.CreatedAt).Error
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListTicketMessages returns a ticket's thread in chronological order.
func ListTicketMessages(ctx context.Context, db *gorm.DB, ticketID string) ([]domain.TicketMessage, error) {
	var out []domain.TicketMessage
	err := db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}
