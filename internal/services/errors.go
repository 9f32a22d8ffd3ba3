// Package services defines the business logic for conversations, tickets,
// and subscriptions. This file centralizes common service-level error values
// so that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import "errors"

// Conversation-related errors.
var (
	// ErrConversationNotFound indicates that the requested conversation does
	// not exist or is not accessible to the current user.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrEmptyTurn is returned when a turn carries neither text nor an
	// attached image.
	ErrEmptyTurn = errors.New("turn is empty")

	// ErrTurnTooLong is returned when a turn's text exceeds the maximum
	// configured length limit.
	ErrTurnTooLong = errors.New("turn too long")
)

// Ticket-related errors.
var (
	// ErrTicketNotFound indicates that the requested ticket does not exist
	// or is not accessible to the current user.
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrInvalidTicketStatus is returned when a status transition targets a
	// value outside the allowed set.
	ErrInvalidTicketStatus = errors.New("invalid ticket status")

	// ErrInvalidTicketSender is returned when a thread entry names an author
	// other than "user" or "agent".
	ErrInvalidTicketSender = errors.New("ticket message sender must be user or agent")
)

// Subscription-related errors.
var (
	// ErrAuthRequired is returned when an operation that persists account
	// state is attempted without an authenticated identity.
	ErrAuthRequired = errors.New("authentication required")

	// ErrSubscriptionNotFound indicates the user has no subscription yet.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrUnknownPlan is returned when a plan id is not in the catalog.
	ErrUnknownPlan = errors.New("unknown plan")

	// ErrUnknownOil is returned when an oil id is not in the catalog.
	ErrUnknownOil = errors.New("unknown oil")

	// ErrUnknownDevice is returned when a device id is not in the registered fleet.
	ErrUnknownDevice = errors.New("unknown device")

	// ErrCycleLocked is returned when a selection targets a cycle whose
	// modification deadline has passed (or that is current/completed).
	ErrCycleLocked = errors.New("cycle is locked for modification")

	// ErrCycleNotInPlan is returned when a month key falls outside the
	// subscription's cycle window.
	ErrCycleNotInPlan = errors.New("cycle is not part of the plan window")
)
