package services

import (
	"context"
	"testing"

	"github.com/aromabox/go-aroma-backend/internal/domain"
)

func TestTicketCreate_DefaultsAndRef(t *testing.T) {
	svc := NewTicketService(newSvcDB(t))
	ctx := context.Background()

	tk, err := svc.Create(ctx, "u1", "Billing issue", "", "", "I was charged twice")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tk.Category != defaultTicketCategory || tk.Priority != defaultTicketPriority {
		t.Fatalf("defaults not applied: %+v", tk)
	}
	if tk.Ref() != "TKT-0001" || tk.Status != domain.TicketOpen {
		t.Fatalf("ticket = %+v", tk)
	}

	ref, err := svc.CreateTicket(ctx, "u1", "Second", "body")
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ref.Number != "TKT-0002" || ref.ID == "" {
		t.Fatalf("ref = %+v", ref)
	}
}

func TestTicketGet_ScopesOwner(t *testing.T) {
	svc := NewTicketService(newSvcDB(t))
	ctx := context.Background()

	tk, _ := svc.Create(ctx, "u1", "s", "", "", "first")
	got, err := svc.Get(ctx, "u1", tk.ID)
	if err != nil || len(got.Messages) != 1 {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if _, err := svc.Get(ctx, "intruder", tk.ID); err != ErrTicketNotFound {
		t.Fatalf("cross-user err = %v", err)
	}
}

func TestTicketUpdateStatus_Validation(t *testing.T) {
	svc := NewTicketService(newSvcDB(t))
	ctx := context.Background()

	tk, _ := svc.Create(ctx, "u1", "s", "", "", "")
	if err := svc.UpdateStatus(ctx, "u1", tk.ID, "archived"); err != ErrInvalidTicketStatus {
		t.Fatalf("invalid status err = %v", err)
	}
	if err := svc.UpdateStatus(ctx, "u1", "missing", domain.TicketClosed); err != ErrTicketNotFound {
		t.Fatalf("missing ticket err = %v", err)
	}
	if err := svc.UpdateStatus(ctx, "u1", tk.ID, domain.TicketResolved); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	got, _ := svc.Get(ctx, "u1", tk.ID)
	if got.Status != domain.TicketResolved {
		t.Fatalf("status = %q", got.Status)
	}
}

func TestTicketAddMessage_ReopensOnUserReply(t *testing.T) {
	svc := NewTicketService(newSvcDB(t))
	ctx := context.Background()

	tk, _ := svc.Create(ctx, "u1", "s", "", "", "first")
	_ = svc.UpdateStatus(ctx, "u1", tk.ID, domain.TicketResolved)

	// An agent reply keeps the resolved status.
	if _, err := svc.AddMessage(ctx, "u1", tk.ID, "agent", "closing note"); err != nil {
		t.Fatalf("agent AddMessage: %v", err)
	}
	got, _ := svc.Get(ctx, "u1", tk.ID)
	if got.Status != domain.TicketResolved {
		t.Fatalf("status after agent reply = %q", got.Status)
	}

	// A user reply re-opens.
	if _, err := svc.AddMessage(ctx, "u1", tk.ID, "user", "still broken"); err != nil {
		t.Fatalf("user AddMessage: %v", err)
	}
	got, _ = svc.Get(ctx, "u1", tk.ID)
	if got.Status != domain.TicketOpen {
		t.Fatalf("status after user reply = %q; want open", got.Status)
	}
	if len(got.Messages) != 3 {
		t.Fatalf("thread length = %d; want 3", len(got.Messages))
	}
}

func TestTicketAddMessage_Validation(t *testing.T) {
	svc := NewTicketService(newSvcDB(t))
	ctx := context.Background()

	tk, _ := svc.Create(ctx, "u1", "s", "", "", "")
	if _, err := svc.AddMessage(ctx, "u1", tk.ID, "robot", "hi"); err != ErrInvalidTicketSender {
		t.Fatalf("bad sender err = %v", err)
	}
	if _, err := svc.AddMessage(ctx, "u1", tk.ID, "user", "   "); err != ErrEmptyTurn {
		t.Fatalf("empty text err = %v", err)
	}
	if _, err := svc.AddMessage(ctx, "u1", "missing", "user", "hi"); err != ErrTicketNotFound {
		t.Fatalf("missing ticket err = %v", err)
	}
}

func TestTicketListPage_NewestFirstAndStats(t *testing.T) {
	svc := NewTicketService(newSvcDB(t))
	ctx := context.Background()

	for _, s := range []string{"a", "b", "c"} {
		if _, err := svc.Create(ctx, "u1", s, "", "", ""); err != nil {
			t.Fatalf("seed %s: %v", s, err)
		}
	}

	items, total, err := svc.ListPage(ctx, "u1", 0, 0) // defaults applied
	if err != nil || total != 3 || len(items) != 3 {
		t.Fatalf("ListPage = %d items, total %d, %v", len(items), total, err)
	}

	count, maxUnix, err := svc.Stats(ctx, "u1")
	if err != nil || count != 3 || maxUnix == nil {
		t.Fatalf("Stats = %d, %v, %v", count, maxUnix, err)
	}
	count, maxUnix, err = svc.Stats(ctx, "nobody")
	if err != nil || count != 0 || maxUnix != nil {
		t.Fatalf("empty Stats = %d, %v, %v", count, maxUnix, err)
	}
}
