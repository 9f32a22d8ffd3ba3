// Package domain defines the persistence models for assistant conversations,
// support tickets, and subscriptions. These types are mapped with GORM and
// form the core data layer of the application.
package domain

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Dialogue states persisted on a Conversation. Kept as plain strings so the
// data layer has no dependency on the assistant package; the engine owns the
// transition rules.
const (
	DialogueIdle            = "idle"
	DialogueAwaitingSubject = "awaiting_ticket_subject"
	DialogueAwaitingMessage = "awaiting_ticket_message"
)

// Conversation represents one assistant session owned by a user. It carries
// the persisted dialogue position (state + pending ticket subject) so a page
// reload resumes a ticket flow mid-way.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: identifier of the owner; indexed for efficient retrieval.
//   - Title: human-readable title (auto-generated from the first user turn).
//   - State: dialogue state flag (enforced by DB constraint).
//   - PendingSubject: ticket subject captured while the flow is open.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker (retains row for audit/history).
type Conversation struct {
	ID             string         `json:"id"              gorm:"type:char(36);primaryKey"`
	UserID         string         `json:"user_id"         gorm:"type:varchar(64);not null;index:idx_user_conversations"`
	Title          string         `json:"title"           gorm:"type:varchar(255);not null;default:'New conversation'"`
	State          string         `json:"state"           gorm:"type:varchar(32);not null;default:'idle';check:state IN ('idle','awaiting_ticket_subject','awaiting_ticket_message')"`
	PendingSubject string         `json:"pending_subject" gorm:"type:text;not null;default:''"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-"               gorm:"index"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// ChatMessage represents a single utterance within a conversation, authored
// either by the "user" or the "bot". User messages may carry one attached
// image as a data URI. Messages are immutable once created.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - ConversationID: foreign key to the owning conversation (indexed).
//   - Sender: "user" or "bot" (enforced by DB constraint).
//   - Text: full text content of the message.
//   - AttachedImage: optional image data URI (user messages only).
//   - CreatedAt: timestamp managed by GORM.
//   - DeletedAt: soft deletion marker.
//   - Conversation: FK association, ensures cascade delete/update.
type ChatMessage struct {
	ID             string         `json:"id"              gorm:"type:char(36);primaryKey"`
	ConversationID string         `json:"conversation_id" gorm:"type:char(36);not null;index:idx_conv_msgs,priority:1"`
	Sender         string         `json:"sender"          gorm:"type:varchar(16);not null;check:sender IN ('user','bot')"`
	Text           string         `json:"text"            gorm:"type:text;not null"`
	AttachedImage  string         `json:"attached_image,omitempty" gorm:"type:text"`
	CreatedAt      time.Time      `json:"created_at"      gorm:"index:idx_conv_msgs,priority:2"`
	DeletedAt      gorm.DeletedAt `json:"-"               gorm:"index"`

	// Conversation is the parent session. Messages are cascade-deleted
	// if their conversation is removed.
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatMessage.
func (ChatMessage) TableName() string { return "chat_messages" }

// Ticket statuses. Tickets are never deleted, only status-transitioned.
const (
	TicketOpen       = "open"
	TicketInProgress = "in_progress"
	TicketResolved   = "resolved"
	TicketClosed     = "closed"
)

// ValidTicketStatus reports whether s is a known ticket status.
func ValidTicketStatus(s string) bool {
	switch s {
	case TicketOpen, TicketInProgress, TicketResolved, TicketClosed:
		return true
	}
	return false
}

// SupportTicket represents one support case. The primary id is a UUID; Number
// is a sequential, display-only counter rendered by Ref.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: identifier of the reporter (indexed).
//   - Number: sequential display counter, assigned at creation.
//   - Subject: short summary captured by the assistant or the form.
//   - Category / Priority: classification fields with sensible defaults.
//   - Status: lifecycle state (enforced by DB constraint).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
type SupportTicket struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string         `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_user_tickets"`
	Number    int64          `json:"number"     gorm:"not null"`
	Subject   string         `json:"subject"    gorm:"type:text;not null"`
	Category  string         `json:"category"   gorm:"type:varchar(64);not null;default:'general'"`
	Priority  string         `json:"priority"   gorm:"type:varchar(16);not null;default:'medium'"`
	Status    string         `json:"status"     gorm:"type:varchar(16);not null;default:'open';check:status IN ('open','in_progress','resolved','closed')"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`

	Messages []TicketMessage `json:"messages,omitempty" gorm:"foreignKey:TicketID"`
}

// TableName returns the database table name for SupportTicket.
func (SupportTicket) TableName() string { return "support_tickets" }

// Ref renders the human-readable ticket reference shown to users.
func (t SupportTicket) Ref() string { return fmt.Sprintf("TKT-%04d", t.Number) }

// TicketMessage is one entry in a ticket's thread, authored by the "user" or
// an "agent".
type TicketMessage struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	TicketID  string         `json:"ticket_id"  gorm:"type:char(36);not null;index:idx_ticket_msgs,priority:1"`
	Sender    string         `json:"sender"     gorm:"type:varchar(16);not null;check:sender IN ('user','agent')"`
	Text      string         `json:"text"       gorm:"type:text;not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"index:idx_ticket_msgs,priority:2"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`

	// Ticket is the parent case. Thread entries are cascade-deleted if the
	// ticket is removed.
	Ticket SupportTicket `json:"-" gorm:"foreignKey:TicketID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for TicketMessage.
func (TicketMessage) TableName() string { return "ticket_messages" }

// Subscription lifecycle statuses. The service only transitions between
// active and cancelled today; paused and expired are admitted for operator
// tooling and renewal jobs.
const (
	SubscriptionActive    = "active"
	SubscriptionPaused    = "paused"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
)

// Subscription is the aggregate root of a user's monthly oil plan. One row
// per user; the per-cycle oil choices live in OilSelection rows, and the
// derived status/deadline fields are computed on read, never stored.
type Subscription struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID     string         `json:"user_id"     gorm:"type:varchar(64);not null;uniqueIndex:ux_subscription_user"`
	PlanID     string         `json:"plan_id"     gorm:"type:varchar(64);not null"`
	Status     string         `json:"status"      gorm:"type:varchar(16);not null;default:'active';check:status IN ('active','paused','cancelled','expired')"`
	StartMonth string         `json:"start_month" gorm:"type:char(7);not null"`
	AutoRenew  bool           `json:"auto_renew"  gorm:"not null;default:false"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for Subscription.
func (Subscription) TableName() string { return "subscriptions" }

// OilSelection is one (cycle, device) slot of a subscription. An empty OilID
// means the user has not chosen an oil for that slot yet. Uniqueness over
// (subscription, month, device) makes writes upserts.
type OilSelection struct {
	ID             string         `json:"id"              gorm:"type:char(36);primaryKey"`
	SubscriptionID string         `json:"subscription_id" gorm:"type:char(36);not null;uniqueIndex:ux_sub_month_device,priority:1"`
	MonthKey       string         `json:"month_key"       gorm:"type:char(7);not null;uniqueIndex:ux_sub_month_device,priority:2"`
	DeviceID       string         `json:"device_id"       gorm:"type:varchar(64);not null;uniqueIndex:ux_sub_month_device,priority:3"`
	OilID          string         `json:"oil_id"          gorm:"type:varchar(64);not null;default:''"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-"               gorm:"index"`

	// Subscription is the parent plan. Selections are cascade-deleted if
	// the subscription is removed.
	Subscription Subscription `json:"-" gorm:"foreignKey:SubscriptionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for OilSelection.
func (OilSelection) TableName() string { return "oil_selections" }
