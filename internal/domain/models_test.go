package domain

import "testing"

func TestTableNames(t *testing.T) {
	cases := []struct {
		name string
		got  string
		want string
	}{
		{"Conversation", Conversation{}.TableName(), "conversations"},
		{"ChatMessage", ChatMessage{}.TableName(), "chat_messages"},
		{"SupportTicket", SupportTicket{}.TableName(), "support_tickets"},
		{"TicketMessage", TicketMessage{}.TableName(), "ticket_messages"},
		{"Subscription", Subscription{}.TableName(), "subscriptions"},
		{"OilSelection", OilSelection{}.TableName(), "oil_selections"},
		{"Idempotency", Idempotency{}.TableName(), "idempotency"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s.TableName() = %q; want %q", tc.name, tc.got, tc.want)
		}
	}
}

func TestSupportTicketRef(t *testing.T) {
	if got := (SupportTicket{Number: 7}).Ref(); got != "TKT-0007" {
		t.Fatalf("Ref() = %q; want TKT-0007", got)
	}
	if got := (SupportTicket{Number: 12345}).Ref(); got != "TKT-12345" {
		t.Fatalf("Ref() = %q; want TKT-12345", got)
	}
}

func TestValidTicketStatus(t *testing.T) {
	for _, s := range []string{TicketOpen, TicketInProgress, TicketResolved, TicketClosed} {
		if !ValidTicketStatus(s) {
			t.Errorf("ValidTicketStatus(%q) = false", s)
		}
	}
	for _, s := range []string{"", "deleted", "OPEN"} {
		if ValidTicketStatus(s) {
			t.Errorf("ValidTicketStatus(%q) = true", s)
		}
	}
}
