// Support-ticket HTTP handlers.
//
// Endpoints:
//   - POST /tickets                 (open a ticket directly, e.g. contact form)
//   - GET  /tickets                 (list, paginated, ETag support)
//   - GET  /tickets/{id}            (fetch one ticket with its thread)
//   - POST /tickets/{id}/messages   (reply on the thread)
//   - PUT  /tickets/{id}/status     (transition lifecycle status)
//
// Tickets are also created by the assistant dialogue flow; this surface covers
// the direct path and follow-up on existing tickets.
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aromabox/go-aroma-backend/internal/domain"
	"github.com/aromabox/go-aroma-backend/internal/repo"
	"github.com/aromabox/go-aroma-backend/internal/services"
)

// CreateTicketRequest is the JSON payload for opening a ticket.
type CreateTicketRequest struct {
	// Subject summarizes the issue. Stored verbatim.
	Subject string `json:"subject" example:"Diffuser stopped misting"`
	// Category defaults to "general" when blank.
	Category string `json:"category,omitempty" example:"hardware"`
	// Priority defaults to "medium" when blank.
	Priority string `json:"priority,omitempty" example:"high"`
	// Message optionally seeds the ticket thread.
	Message string `json:"message,omitempty" example:"It blinks red after 5 minutes."`
}

// TicketResponse wraps a ticket with its human-facing reference number.
type TicketResponse struct {
	Ticket *domain.SupportTicket `json:"ticket"`
	// Reference is the display number, e.g. "TKT-0042".
	Reference string `json:"reference" example:"TKT-0042"`
}

// ListTicketsResponse wraps a page of tickets.
type ListTicketsResponse struct {
	Tickets    []domain.SupportTicket `json:"tickets"`
	Pagination Pagination             `json:"pagination"`
}

// AddTicketMessageRequest is the JSON payload for a thread reply.
type AddTicketMessageRequest struct {
	// Sender is "user" or "agent".
	Sender string `json:"sender" binding:"required" example:"user"`
	// Text is the reply body.
	Text string `json:"text" binding:"required" example:"Tried descaling, still blinking."`
}

// UpdateTicketStatusRequest is the JSON payload for a status transition.
type UpdateTicketStatusRequest struct {
	// Status is one of open, in_progress, resolved, closed.
	Status string `json:"status" binding:"required" example:"resolved"`
}

// ticketDB returns the concrete ticket service's DB handle for best-effort
// ETag lookups, or nil.
func (h *Handlers) ticketDB() *gorm.DB {
	if svc, ok := h.ticketSvc.(*services.TicketService); ok {
		return svc.DB
	}
	return nil
}

// CreateTicket godoc
// @ID          createTicket
// @Summary     Open a support ticket
// @Description Creates a ticket for the current user. Category and priority default when omitted; a non-empty message seeds the thread.
// @Tags        Tickets
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CreateTicketRequest  true  "Ticket payload"
//
// @Success     201  {object}  handlers.TicketResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /tickets [post]
func (h *Handlers) CreateTicket(c *gin.Context) {
	var req CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Subject) == "" && strings.TrimSpace(req.Message) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "subject or message required")
		return
	}

	t, err := h.ticketSvc.Create(c.Request.Context(), userID(c),
		strings.TrimSpace(req.Subject), req.Category, req.Priority, sanitizeText(req.Message))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, TicketResponse{Ticket: t, Reference: t.Ref()})
}

// ListTickets godoc
// @ID          listTickets
// @Summary     List support tickets (paginated)
// @Description Returns a page of the user's tickets, newest first. Supports weak ETag via If-None-Match.
// @Tags        Tickets
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListTicketsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /tickets [get]
func (h *Handlers) ListTickets(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	if db := h.ticketDB(); db != nil {
		count, maxTS, err := repo.TicketsStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"tickets:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.ticketSvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListTicketsResponse{
		Tickets: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetTicket godoc
// @ID          getTicket
// @Summary     Fetch a ticket with its thread
// @Tags        Tickets
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Ticket ID (UUID)"  format(uuid)
//
// @Success     200  {object} handlers.TicketResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Ticket not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /tickets/{id} [get]
func (h *Handlers) GetTicket(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "ticket id must be a UUID")
		return
	}
	t, err := h.ticketSvc.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		switch err {
		case services.ErrTicketNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "ticket not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, TicketResponse{Ticket: t, Reference: t.Ref()})
}

// AddTicketMessage godoc
// @ID          addTicketMessage
// @Summary     Reply on a ticket thread
// @Description Appends a message to the ticket. A user reply on a resolved or closed ticket re-opens it.
// @Tags        Tickets
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Ticket ID (UUID)"  format(uuid)
// @Param       body       body    handlers.AddTicketMessageRequest  true  "Reply payload"
//
// @Success     201  {object} domain.TicketMessage
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Ticket not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /tickets/{id}/messages [post]
func (h *Handlers) AddTicketMessage(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "ticket id must be a UUID")
		return
	}
	var req AddTicketMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sender and text required")
		return
	}
	msg, err := h.ticketSvc.AddMessage(c.Request.Context(), userID(c), id, req.Sender, sanitizeText(req.Text))
	if err != nil {
		switch err {
		case services.ErrTicketNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "ticket not found")
		case services.ErrInvalidTicketSender:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sender must be user or agent")
		case services.ErrEmptyTurn:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, msg)
}

// UpdateTicketStatus godoc
// @ID          updateTicketStatus
// @Summary     Transition a ticket's status
// @Description Sets the lifecycle status to one of open, in_progress, resolved, closed.
// @Tags        Tickets
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Ticket ID (UUID)"  format(uuid)
// @Param       body       body    handlers.UpdateTicketStatusRequest  true  "Status payload"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Ticket not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /tickets/{id}/status [put]
func (h *Handlers) UpdateTicketStatus(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "ticket id must be a UUID")
		return
	}
	var req UpdateTicketStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status required")
		return
	}
	if err := h.ticketSvc.UpdateStatus(c.Request.Context(), userID(c), id, req.Status); err != nil {
		switch err {
		case services.ErrTicketNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "ticket not found")
		case services.ErrInvalidTicketStatus:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status must be one of open, in_progress, resolved, closed")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	noContent(c)
}
