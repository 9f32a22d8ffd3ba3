// Conversation HTTP handlers.
//
// This file exposes REST endpoints for assistant conversations:
//   - POST   /conversations                  (start, returns greeting)
//   - GET    /conversations                  (list, paginated, ETag support)
//   - POST   /conversations/{id}/turns       (run one dialogue turn)
//   - GET    /conversations/{id}/messages    (list paginated messages)
//   - POST   /conversations/{id}/reset       (wipe back to greeting)
//   - PUT    /conversations/{id}/title       (rename)
//   - DELETE /conversations/{id}             (remove)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
//
// Idempotency:
// If the client supplies an Idempotency-Key header on a turn and a previous
// successful result exists for (user, conversation, key), the handler returns
// the recorded message batch and sets `Idempotency-Replayed: true`.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aromabox/go-aroma-backend/internal/catalog"
	"github.com/aromabox/go-aroma-backend/internal/domain"
	"github.com/aromabox/go-aroma-backend/internal/repo"
	"github.com/aromabox/go-aroma-backend/internal/schedule"
	"github.com/aromabox/go-aroma-backend/internal/services"
	"github.com/aromabox/go-aroma-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// AssistantService defines conversation lifecycle operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type AssistantService interface {
	// Start opens a conversation for userID and returns it with the greeting.
	Start(ctx context.Context, userID, title string) (*domain.Conversation, *domain.ChatMessage, error)
	// Turn runs one dialogue turn and returns the persisted message batch.
	Turn(ctx context.Context, userID, conversationID, text, attachedImage string) ([]domain.ChatMessage, error)
	// Reset wipes a conversation back to a fresh greeting.
	Reset(ctx context.Context, userID, conversationID string) (*domain.ChatMessage, error)
	// Delete removes a conversation that belongs to userID.
	Delete(ctx context.Context, userID, conversationID string) error
	// ListPage returns a page of conversations and the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Conversation, int64, error)
	// ListMessagesPage returns a page of messages within a conversation.
	ListMessagesPage(ctx context.Context, userID, conversationID string, page, pageSize int) ([]domain.ChatMessage, int64, error)
}

// TicketService defines support-ticket operations consumed by HTTP handlers.
type TicketService interface {
	Create(ctx context.Context, userID, subject, category, priority, message string) (*domain.SupportTicket, error)
	Get(ctx context.Context, userID, id string) (*domain.SupportTicket, error)
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.SupportTicket, int64, error)
	UpdateStatus(ctx context.Context, userID, id, status string) error
	AddMessage(ctx context.Context, userID, id, sender, text string) (*domain.TicketMessage, error)
}

// SubscriptionService defines subscription operations consumed by HTTP handlers.
type SubscriptionService interface {
	Save(ctx context.Context, userID, planID, startMonth string, autoRenew bool) (*domain.Subscription, error)
	Schedule(ctx context.Context, userID string) (*domain.Subscription, []schedule.Selection, error)
	SetSelection(ctx context.Context, userID, monthKey, deviceID, oilID string) error
	BulkApply(ctx context.Context, userID, fromKey, toKey, oilID string) ([]schedule.Selection, error)
	Summarize(ctx context.Context, userID string) (*services.Summary, error)
	Cancel(ctx context.Context, userID string) error
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for conversations, tickets, subscriptions,
// and the catalog. It depends on abstract service interfaces to keep
// transport concerns separate from business logic.
type Handlers struct {
	assistantSvc AssistantService
	ticketSvc    TicketService
	subSvc       SubscriptionService
	catalog      *catalog.Catalog
}

// New constructs and returns a Handlers instance bound to the given services.
func New(assistantSvc AssistantService, ticketSvc TicketService, subSvc SubscriptionService, cat *catalog.Catalog) *Handlers {
	return &Handlers{assistantSvc: assistantSvc, ticketSvc: ticketSvc, subSvc: subSvc, catalog: cat}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// StartConversationRequest is the JSON payload for opening a conversation.
type StartConversationRequest struct {
	// Title optionally sets the conversation title; a default is used when empty.
	Title string `json:"title" example:"Diffuser troubleshooting"`
}

// StartConversationResponse returns the new conversation and its greeting.
type StartConversationResponse struct {
	Conversation *domain.Conversation `json:"conversation"`
	Greeting     *domain.ChatMessage  `json:"greeting"`
}

// PostTurnRequest is the JSON payload for one dialogue turn.
type PostTurnRequest struct {
	// Text is the user's message. It may be empty when an image is attached.
	Text string `json:"text" example:"my diffuser is not misting"`
	// AttachedImage optionally carries one image as a data URI.
	AttachedImage string `json:"attached_image,omitempty"`
}

// PostTurnResponse returns the persisted messages of one turn, user message
// first, bot replies after.
type PostTurnResponse struct {
	Messages []domain.ChatMessage `json:"messages"`
}

// UpdateConversationTitleRequest is the JSON payload for renaming.
type UpdateConversationTitleRequest struct {
	// Title is the new conversation name (1–255 chars).
	Title string `json:"title" binding:"required,min=1,max=255" example:"Order questions"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListConversationsResponse wraps a page of conversations.
type ListConversationsResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
	Pagination    Pagination            `json:"pagination"`
}

// ListChatMessagesResponse wraps a page of conversation messages.
type ListChatMessagesResponse struct {
	Messages   []domain.ChatMessage `json:"messages"`
	Pagination Pagination           `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeText normalizes user text for consistent downstream behavior:
//   - converts CRLF/CR to LF,
//   - collapses runs of 3+ LFs to exactly two (paragraph separation),
//   - trims surrounding whitespace.
func sanitizeText(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// discoverMaxTurnRunes inspects the concrete AssistantService for a configured
// turn-length limit. If unavailable, it returns a conservative fallback.
func discoverMaxTurnRunes(svc AssistantService) int {
	const fallback = 4000
	if as, ok := svc.(*services.AssistantService); ok {
		if as.MaxTurnRunes > 0 {
			return as.MaxTurnRunes
		}
	}
	return fallback
}

// assistantDB returns the concrete service's DB handle for best-effort ETag
// and idempotency lookups, or nil.
func (h *Handlers) assistantDB() *gorm.DB {
	if svc, ok := h.assistantSvc.(*services.AssistantService); ok {
		return svc.DB
	}
	return nil
}

// replayBatch resolves a stored idempotency record back into the original
// message batch. The record's message field holds a comma-joined id list in
// batch order; any missing message invalidates the replay so the caller falls
// through to normal processing.
func replayBatch(ctx context.Context, db *gorm.DB, joinedIDs string) ([]domain.ChatMessage, error) {
	ids := strings.Split(joinedIDs, ",")
	out := make([]domain.ChatMessage, 0, len(ids))
	for _, id := range ids {
		m, err := repo.GetChatMessage(ctx, db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}

// getIdempotencyKey reads the validated Idempotency-Key header, if present.
func getIdempotencyKey(c *gin.Context) (string, bool) {
	if v := strings.TrimSpace(c.GetHeader("Idempotency-Key")); v != "" {
		return v, true
	}
	return "", false
}

//
// Handlers
//

// StartConversation godoc
// @ID          startConversation
// @Summary     Start a new conversation
// @Description Opens a conversation for the current user and returns it together with the assistant greeting.
// @Tags        Conversations
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.StartConversationRequest  true  "Start payload"
//
// @Success     201  {object}  handlers.StartConversationResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /conversations [post]
func (h *Handlers) StartConversation(c *gin.Context) {
	var req StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	conv, greeting, err := h.assistantSvc.Start(c.Request.Context(), userID(c), strings.TrimSpace(req.Title))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, StartConversationResponse{Conversation: conv, Greeting: greeting})
}

// ListConversations godoc
// @ID          listConversations
// @Summary     List conversations (paginated)
// @Description Returns a page of the user's conversations. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Conversations
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListConversationsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if db := h.assistantDB(); db != nil {
		count, maxTS, err := repo.ConversationsStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"conversations:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.assistantSvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListConversationsResponse{
		Conversations: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// PostTurn godoc
// @ID          postTurn
// @Summary     Run one dialogue turn
// @Description Appends the user's message to the conversation and returns it together with the assistant replies.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Conversations
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  true  "User ID that owns the conversation"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"
// @Param       id               path    string  true  "Conversation ID (UUID)"  format(uuid)
// @Param       body             body    handlers.PostTurnRequest  true  "Turn payload"
//
// @Success     200  {object}  handlers.PostTurnResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Conversation not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /conversations/{id}/turns [post]
func (h *Handlers) PostTurn(c *gin.Context) {
	ctx := c.Request.Context()
	conversationID := c.Param("id")

	if _, err := uuid.Parse(conversationID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	var req PostTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	// Sanitize + early size cap to fail fast at the edge.
	text := sanitizeText(req.Text)
	maxRunes := discoverMaxTurnRunes(h.assistantSvc)
	if maxRunes > 0 && utf8.RuneCountInString(text) > maxRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("text too long: max %d runes", maxRunes))
		return
	}
	if text == "" && req.AttachedImage == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text or attached_image required")
		return
	}

	currentUser := userID(c)

	// Idempotency (replay path) – read validated key if present. The record
	// stores every message id of the original batch so the replayed response
	// is shaped exactly like the first one.
	idemKey, _ := getIdempotencyKey(c)
	if idemKey != "" {
		if db := h.assistantDB(); db != nil {
			if rec, err := repo.GetIdempotency(ctx, db, currentUser, conversationID, idemKey, time.Now().UTC()); err == nil && rec != nil {
				if prev, err2 := replayBatch(ctx, db, rec.MessageID); err2 == nil {
					c.Header("Idempotency-Replayed", "true")
					ok(c, http.StatusOK, PostTurnResponse{Messages: prev})
					return
				}
			}
		}
	}

	// Normal processing (service has a second guard for length).
	msgs, err := h.assistantSvc.Turn(ctx, currentUser, conversationID, text, req.AttachedImage)
	if err != nil {
		switch err {
		case services.ErrConversationNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
		case services.ErrTurnTooLong:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("text too long: max %d runes", maxRunes))
		case services.ErrEmptyTurn:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text or attached_image required")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeTurnFailed, err.Error())
		}
		return
	}

	// Idempotency (store path) – best effort, recording the whole batch.
	if idemKey != "" && len(msgs) > 0 {
		if db := h.assistantDB(); db != nil {
			ids := make([]string, len(msgs))
			for i, m := range msgs {
				ids[i] = m.ID
			}
			ttl := 24 * time.Hour
			_, _ = repo.CreateIdempotency(ctx, db, currentUser, conversationID, idemKey, strings.Join(ids, ","), http.StatusOK, ttl)
		}
	}

	ok(c, http.StatusOK, PostTurnResponse{Messages: msgs})
}

// ListConversationMessages godoc
// @ID          listConversationMessages
// @Summary     List messages in a conversation
// @Description Returns a paginated list of messages for the given conversation.
// @Tags        Conversations
// @Produce     json
//
// @Param       id         path   string  true  "Conversation ID (UUID)"  format(uuid)
// @Param       page       query  int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListChatMessagesResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations/{id}/messages [get]
func (h *Handlers) ListConversationMessages(c *gin.Context) {
	ctx := c.Request.Context()
	conversationID := c.Param("id")

	if _, err := uuid.Parse(conversationID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	// ETag pre-check (best effort, count-based).
	if db := h.assistantDB(); db != nil {
		if count, err := repo.CountChatMessages(ctx, db, conversationID); err == nil {
			etag := fmt.Sprintf(`W/"messages:%s:%d"`, conversationID, count)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	page, pageSize := clampPagination(c)

	items, total, err := h.assistantSvc.ListMessagesPage(ctx, userID(c), conversationID, page, pageSize)
	if err != nil {
		switch err {
		case services.ErrConversationNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		}
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListChatMessagesResponse{
		Messages: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// ResetConversation godoc
// @ID          resetConversation
// @Summary     Reset a conversation
// @Description Removes all messages, returns the dialogue to idle, and posts a fresh greeting.
// @Tags        Conversations
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"   example(user123)
// @Param       id         path    string  true  "Conversation ID (UUID)"  format(uuid)
//
// @Success     200  {object} domain.ChatMessage "The fresh greeting"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations/{id}/reset [post]
func (h *Handlers) ResetConversation(c *gin.Context) {
	conversationID := c.Param("id")
	if _, err := uuid.Parse(conversationID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}
	greeting, err := h.assistantSvc.Reset(c.Request.Context(), userID(c), conversationID)
	if err != nil {
		switch err {
		case services.ErrConversationNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, greeting)
}

// UpdateConversationTitle godoc
// @ID          updateConversationTitle
// @Summary     Rename a conversation
// @Description Updates the title of a conversation owned by the current user.
// @Tags        Conversations
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"   example(user123)
// @Param       id         path    string  true  "Conversation ID (UUID)"  format(uuid)
// @Param       body       body    handlers.UpdateConversationTitleRequest  true  "New title"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations/{id}/title [put]
func (h *Handlers) UpdateConversationTitle(c *gin.Context) {
	conversationID := c.Param("id")
	if _, err := uuid.Parse(conversationID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	var req UpdateConversationTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title required (1–255 chars)")
		return
	}

	if db := h.assistantDB(); db != nil {
		if err := repo.UpdateConversationTitle(c.Request.Context(), db, conversationID, userID(c), strings.TrimSpace(req.Title)); err != nil {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
			return
		}
		noContent(c)
		return
	}
	fail(c, http.StatusInternalServerError, ErrCodeInternal, "storage unavailable")
}

// DeleteConversation godoc
// @ID          deleteConversation
// @Summary     Delete a conversation
// @Description Removes a conversation and its messages.
// @Tags        Conversations
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"   example(user123)
// @Param       id         path    string  true  "Conversation ID (UUID)"  format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations/{id} [delete]
func (h *Handlers) DeleteConversation(c *gin.Context) {
	conversationID := c.Param("id")
	if _, err := uuid.Parse(conversationID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}
	if err := h.assistantSvc.Delete(c.Request.Context(), userID(c), conversationID); err != nil {
		switch err {
		case services.ErrConversationNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	noContent(c)
}
