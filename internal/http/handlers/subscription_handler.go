// Subscription HTTP handlers.
//
// Endpoints:
//   - PUT    /subscription                      (create or re-plan)
//   - GET    /subscription/schedule             (monthly cycles with selections)
//   - GET    /subscription/summary              (cost aggregation + discount)
//   - PUT    /subscription/selections           (pick one oil for a month/device slot)
//   - POST   /subscription/selections/bulk      (apply one oil across a month range)
//   - DELETE /subscription                      (cancel, clears selections)
//
// These routes require an authenticated identity; anonymous requests get 401
// with code "auth_required". Cycle locking (the 15-day modification deadline)
// surfaces as 409 "cycle_locked".
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aromabox/go-aroma-backend/internal/domain"
	"github.com/aromabox/go-aroma-backend/internal/schedule"
	"github.com/aromabox/go-aroma-backend/internal/services"
)

// SaveSubscriptionRequest is the JSON payload for creating or re-planning.
type SaveSubscriptionRequest struct {
	// PlanID selects a catalog plan; empty picks the default plan.
	PlanID string `json:"plan_id" example:"plan-6"`
	// StartMonth is the first cycle in YYYY-MM form.
	StartMonth string `json:"start_month" binding:"required" example:"2025-01"`
	// AutoRenew opts into automatic renewal at the end of the plan.
	AutoRenew bool `json:"auto_renew"`
}

// ScheduleResponse returns the subscription and its classified cycles.
type ScheduleResponse struct {
	Subscription *domain.Subscription `json:"subscription"`
	Selections   []schedule.Selection `json:"selections"`
}

// SetSelectionRequest is the JSON payload for one slot pick.
type SetSelectionRequest struct {
	// MonthKey targets a cycle in YYYY-MM form.
	MonthKey string `json:"month_key" binding:"required" example:"2025-03"`
	// DeviceID targets one of the user's devices.
	DeviceID string `json:"device_id" binding:"required" example:"dev-living"`
	// OilID is the chosen oil; empty clears the slot.
	OilID string `json:"oil_id" example:"lavender-dream"`
}

// BulkApplyRequest is the JSON payload for a range apply.
type BulkApplyRequest struct {
	// From and To bound the inclusive month range; order does not matter.
	From string `json:"from" binding:"required" example:"2025-02"`
	To   string `json:"to" binding:"required" example:"2025-05"`
	// OilID is applied to every modifiable slot in the range.
	OilID string `json:"oil_id" binding:"required" example:"cedar-atlas"`
}

// subscriptionError maps service-layer errors to HTTP responses.
func subscriptionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrAuthRequired):
		fail(c, http.StatusUnauthorized, ErrCodeAuthRequired, "authentication required")
	case errors.Is(err, services.ErrSubscriptionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "no subscription for this user")
	case errors.Is(err, services.ErrUnknownPlan):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown plan")
	case errors.Is(err, services.ErrUnknownOil):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown oil")
	case errors.Is(err, services.ErrUnknownDevice):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown device")
	case errors.Is(err, services.ErrCycleNotInPlan):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "month is outside the plan window")
	case errors.Is(err, services.ErrCycleLocked):
		fail(c, http.StatusConflict, ErrCodeCycleLocked, "cycle is locked for modification")
	case errors.Is(err, schedule.ErrInvalidMonthKey):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "month key must be YYYY-MM")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// SaveSubscription godoc
// @ID          saveSubscription
// @Summary     Create or re-plan a subscription
// @Description Upserts the user's subscription. Re-planning preserves oil picks at months shared by both plans.
// @Tags        Subscription
// @Accept      json
// @Produce     json
//
// @Param       Authorization  header  string  false "Bearer token"
// @Param       body           body    handlers.SaveSubscriptionRequest  true  "Subscription payload"
//
// @Success     200  {object}  domain.Subscription
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Authentication required"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /subscription [put]
func (h *Handlers) SaveSubscription(c *gin.Context) {
	var req SaveSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "start_month required (YYYY-MM)")
		return
	}
	sub, err := h.subSvc.Save(c.Request.Context(), userID(c),
		strings.TrimSpace(req.PlanID), strings.TrimSpace(req.StartMonth), req.AutoRenew)
	if err != nil {
		subscriptionError(c, err)
		return
	}
	ok(c, http.StatusOK, sub)
}

// GetSchedule godoc
// @ID          getSchedule
// @Summary     Get the subscription schedule
// @Description Returns every cycle of the plan with its status, modification deadline, and per-device oil selections.
// @Tags        Subscription
// @Produce     json
//
// @Param       Authorization  header  string  false "Bearer token"
//
// @Success     200  {object}  handlers.ScheduleResponse
// @Failure     404  {object}  handlers.ErrorResponse  "No subscription"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /subscription/schedule [get]
func (h *Handlers) GetSchedule(c *gin.Context) {
	sub, sels, err := h.subSvc.Schedule(c.Request.Context(), userID(c))
	if err != nil {
		subscriptionError(c, err)
		return
	}
	ok(c, http.StatusOK, ScheduleResponse{Subscription: sub, Selections: sels})
}

// GetSummary godoc
// @ID          getSummary
// @Summary     Get the subscription cost summary
// @Description Aggregates the cost of selected oils across all cycles and applies the plan discount.
// @Tags        Subscription
// @Produce     json
//
// @Param       Authorization  header  string  false "Bearer token"
//
// @Success     200  {object}  services.Summary
// @Failure     404  {object}  handlers.ErrorResponse  "No subscription"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /subscription/summary [get]
func (h *Handlers) GetSummary(c *gin.Context) {
	sum, err := h.subSvc.Summarize(c.Request.Context(), userID(c))
	if err != nil {
		subscriptionError(c, err)
		return
	}
	ok(c, http.StatusOK, sum)
}

// SetSelection godoc
// @ID          setSelection
// @Summary     Pick an oil for one month/device slot
// @Description Stores an oil choice for an upcoming cycle. Cycles past their 15-day deadline reject changes with 409.
// @Tags        Subscription
// @Accept      json
// @Produce     json
//
// @Param       Authorization  header  string  false "Bearer token"
// @Param       body           body    handlers.SetSelectionRequest  true  "Selection payload"
//
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "No subscription"
// @Failure     409  {object}  handlers.ErrorResponse  "Cycle locked"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /subscription/selections [put]
func (h *Handlers) SetSelection(c *gin.Context) {
	var req SetSelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "month_key and device_id required")
		return
	}
	err := h.subSvc.SetSelection(c.Request.Context(), userID(c),
		strings.TrimSpace(req.MonthKey), strings.TrimSpace(req.DeviceID), strings.TrimSpace(req.OilID))
	if err != nil {
		subscriptionError(c, err)
		return
	}
	noContent(c)
}

// BulkApplySelections godoc
// @ID          bulkApplySelections
// @Summary     Apply one oil across a month range
// @Description Sets the oil on every modifiable slot between from and to (inclusive). Reversed bounds are normalized and out-of-window bounds are clamped; locked cycles are skipped, not errors.
// @Tags        Subscription
// @Accept      json
// @Produce     json
//
// @Param       Authorization  header  string  false "Bearer token"
// @Param       body           body    handlers.BulkApplyRequest  true  "Range payload"
//
// @Success     200  {object}  handlers.ScheduleResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "No subscription"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /subscription/selections/bulk [post]
func (h *Handlers) BulkApplySelections(c *gin.Context) {
	var req BulkApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "from, to and oil_id required")
		return
	}
	sels, err := h.subSvc.BulkApply(c.Request.Context(), userID(c),
		strings.TrimSpace(req.From), strings.TrimSpace(req.To), strings.TrimSpace(req.OilID))
	if err != nil {
		subscriptionError(c, err)
		return
	}
	ok(c, http.StatusOK, ScheduleResponse{Selections: sels})
}

// CancelSubscription godoc
// @ID          cancelSubscription
// @Summary     Cancel the subscription
// @Description Marks the subscription cancelled and clears all stored selections.
// @Tags        Subscription
// @Produce     json
//
// @Param       Authorization  header  string  false "Bearer token"
//
// @Success     204  {string}  string  "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "No subscription"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /subscription [delete]
func (h *Handlers) CancelSubscription(c *gin.Context) {
	if err := h.subSvc.Cancel(c.Request.Context(), userID(c)); err != nil {
		subscriptionError(c, err)
		return
	}
	noContent(c)
}
