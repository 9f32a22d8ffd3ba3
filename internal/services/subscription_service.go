// Package services – SubscriptionService
//
// This file implements SubscriptionService, which owns the monthly oil plan:
// enrollment, schedule generation with selection carry-over, per-cycle oil
// choices under the modification deadline, bulk range assignment, cost
// summaries, and cancellation.
//
// The current date always comes from the injectable Now clock so every
// deadline decision is testable.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/aromabox/go-aroma-backend/internal/catalog"
	"github.com/aromabox/go-aroma-backend/internal/domain"
	"github.com/aromabox/go-aroma-backend/internal/repo"
	"github.com/aromabox/go-aroma-backend/internal/schedule"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SubscriptionService provides subscription-level operations.
type SubscriptionService struct {
	DB      *gorm.DB
	Catalog *catalog.Catalog

	// DeadlineDays is the modification window; zero falls back to the
	// schedule default.
	DeadlineDays int

	// DefaultUnsetCents is the price attributed to a slot with no oil chosen
	// yet. Zero counts unset slots as free.
	DefaultUnsetCents int64

	// Now supplies the current time; nil falls back to time.Now.
	Now func() time.Time
}

// NewSubscriptionService constructs a SubscriptionService with defaults.
func NewSubscriptionService(db *gorm.DB, cat *catalog.Catalog) *SubscriptionService {
	return &SubscriptionService{
		DB:           db,
		Catalog:      cat,
		DeadlineDays: schedule.DefaultDeadlineDays,
	}
}

// Summary bundles the subscription, its generated schedule, and cost totals.
type Summary struct {
	Subscription    *domain.Subscription `json:"subscription"`
	Selections      []schedule.Selection `json:"selections"`
	Cost            schedule.Cost        `json:"cost"`
	DiscountPercent int                  `json:"discount_percent"`
	DiscountedTotal int64                `json:"discounted_total_cents"`
}

func (s *SubscriptionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Save enrolls the user (or re-plans an existing enrollment). An empty planID
// selects the catalog's default plan. Previously chosen oils survive the
// re-plan for every month key that remains in the new window.
func (s *SubscriptionService) Save(ctx context.Context, userID, planID, startMonth string, autoRenew bool) (*domain.Subscription, error) {
	tr := otel.Tracer("services/SubscriptionService")
	ctx, span := tr.Start(ctx, "Save",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("plan.id", planID),
			attribute.String("start_month", startMonth),
		),
	)
	defer span.End()

	if userID == "" {
		return nil, ErrAuthRequired
	}
	if planID == "" {
		planID = s.Catalog.DefaultPlan().ID
	}
	if _, ok := s.Catalog.Plan(planID); !ok {
		return nil, ErrUnknownPlan
	}
	if _, err := schedule.ParseMonthKey(startMonth); err != nil {
		return nil, err
	}
	return repo.SaveSubscription(ctx, s.DB, userID, planID, startMonth, autoRenew)
}

// Schedule generates the full classified cycle sequence of the user's
// subscription, carrying over every stored oil choice keyed by
// (month, device).
func (s *SubscriptionService) Schedule(ctx context.Context, userID string) (*domain.Subscription, []schedule.Selection, error) {
	tr := otel.Tracer("services/SubscriptionService")
	ctx, span := tr.Start(ctx, "Schedule",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	if userID == "" {
		return nil, nil, ErrAuthRequired
	}
	sub, err := repo.GetSubscriptionByUser(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, ErrSubscriptionNotFound
		}
		return nil, nil, err
	}
	plan, ok := s.Catalog.Plan(sub.PlanID)
	if !ok {
		return nil, nil, ErrUnknownPlan
	}

	stored, err := repo.ListSelections(ctx, s.DB, sub.ID)
	if err != nil {
		return nil, nil, err
	}
	existing := storedToSelections(stored)

	sels, err := schedule.Regenerate(existing, sub.StartMonth, plan.DurationCycles,
		s.Catalog.DeviceIDs(), s.now(), s.DeadlineDays)
	if err != nil {
		return nil, nil, err
	}
	return sub, sels, nil
}

// SetSelection records one (month, device) oil choice. The cycle must belong
// to the plan window and still be modifiable; an empty oilID clears the slot.
func (s *SubscriptionService) SetSelection(ctx context.Context, userID, monthKey, deviceID, oilID string) error {
	tr := otel.Tracer("services/SubscriptionService")
	ctx, span := tr.Start(ctx, "SetSelection",
		trace.WithAttributes(
			attribute.String("month_key", monthKey),
			attribute.String("device.id", deviceID),
			attribute.String("oil.id", oilID),
		),
	)
	defer span.End()

	if userID == "" {
		return ErrAuthRequired
	}
	if !s.Catalog.HasDevice(deviceID) {
		return ErrUnknownDevice
	}
	if oilID != "" {
		if _, ok := s.Catalog.Oil(oilID); !ok {
			return ErrUnknownOil
		}
	}

	sub, err := repo.GetSubscriptionByUser(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrSubscriptionNotFound
		}
		return err
	}
	plan, ok := s.Catalog.Plan(sub.PlanID)
	if !ok {
		return ErrUnknownPlan
	}

	keys, err := schedule.Cycles(sub.StartMonth, plan.DurationCycles)
	if err != nil {
		return err
	}
	if !containsKey(keys, monthKey) {
		// Distinguish a malformed key from one outside the window.
		if _, perr := schedule.ParseMonthKey(monthKey); perr != nil {
			return perr
		}
		return ErrCycleNotInPlan
	}

	status, _, err := schedule.Classify(monthKey, s.now(), s.DeadlineDays)
	if err != nil {
		return err
	}
	if status != schedule.StatusUpcoming {
		return ErrCycleLocked
	}
	return repo.UpsertSelection(ctx, s.DB, sub.ID, monthKey, deviceID, oilID)
}

// BulkApply assigns one oil to every device of every cycle in the inclusive
// [fromKey, toKey] span. Bounds may arrive in either order and are clamped to
// the plan window; cycles whose deadline has passed are skipped rather than
// failing the whole request. It returns the regenerated schedule.
func (s *SubscriptionService) BulkApply(ctx context.Context, userID, fromKey, toKey, oilID string) ([]schedule.Selection, error) {
	tr := otel.Tracer("services/SubscriptionService")
	ctx, span := tr.Start(ctx, "BulkApply",
		trace.WithAttributes(
			attribute.String("from", fromKey),
			attribute.String("to", toKey),
			attribute.String("oil.id", oilID),
		),
	)
	defer span.End()

	if userID == "" {
		return nil, ErrAuthRequired
	}
	if oilID != "" {
		if _, ok := s.Catalog.Oil(oilID); !ok {
			return nil, ErrUnknownOil
		}
	}

	sub, sels, err := s.Schedule(ctx, userID)
	if err != nil {
		return nil, err
	}

	start, err := monthIndex(sub.StartMonth, fromKey)
	if err != nil {
		return nil, err
	}
	end, err := monthIndex(sub.StartMonth, toKey)
	if err != nil {
		return nil, err
	}

	applied := schedule.BulkApply(sels, start, end, oilID)

	// Persist only the cycles that are still modifiable and actually changed.
	picks := make(map[string]map[string]string)
	for i, sel := range applied {
		if !sel.CanModify {
			continue
		}
		for j, ds := range sel.Devices {
			if ds.OilID == sels[i].Devices[j].OilID {
				continue
			}
			if picks[sel.MonthKey] == nil {
				picks[sel.MonthKey] = make(map[string]string)
			}
			picks[sel.MonthKey][ds.DeviceID] = ds.OilID
		}
	}
	if len(picks) > 0 {
		if err := repo.UpsertSelections(ctx, s.DB, sub.ID, picks); err != nil {
			return nil, err
		}
	}

	// Re-read so locked cycles reflect their stored, unchanged choices.
	_, out, err := s.Schedule(ctx, userID)
	return out, err
}

// Summarize computes the schedule plus cost totals with the plan discount.
func (s *SubscriptionService) Summarize(ctx context.Context, userID string) (*Summary, error) {
	tr := otel.Tracer("services/SubscriptionService")
	ctx, span := tr.Start(ctx, "Summarize",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	sub, sels, err := s.Schedule(ctx, userID)
	if err != nil {
		return nil, err
	}
	plan, _ := s.Catalog.Plan(sub.PlanID)

	cost := schedule.TotalCost(sels, s.Catalog.PriceCents, s.DefaultUnsetCents)
	discounted := cost.TotalCents
	if plan.DiscountPercent > 0 {
		discounted = cost.TotalCents * int64(100-plan.DiscountPercent) / 100
	}
	return &Summary{
		Subscription:    sub,
		Selections:      sels,
		Cost:            cost,
		DiscountPercent: plan.DiscountPercent,
		DiscountedTotal: discounted,
	}, nil
}

// Cancel marks the subscription cancelled, resets the plan to the catalog
// default, and clears every stored selection, all in one transaction.
func (s *SubscriptionService) Cancel(ctx context.Context, userID string) error {
	tr := otel.Tracer("services/SubscriptionService")
	ctx, span := tr.Start(ctx, "Cancel",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	if userID == "" {
		return ErrAuthRequired
	}
	sub, err := repo.GetSubscriptionByUser(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrSubscriptionNotFound
		}
		return err
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CancelSubscription(ctx, tx, userID, s.Catalog.DefaultPlan().ID); err != nil {
			return err
		}
		return repo.ClearSelections(ctx, tx, sub.ID)
	})
}

// storedToSelections regroups flat selection rows by month so they can feed
// schedule regeneration as carry-over input.
func storedToSelections(rows []domain.OilSelection) []schedule.Selection {
	byMonth := make(map[string]*schedule.Selection)
	order := make([]string, 0)
	for _, r := range rows {
		sel, ok := byMonth[r.MonthKey]
		if !ok {
			sel = &schedule.Selection{MonthKey: r.MonthKey}
			byMonth[r.MonthKey] = sel
			order = append(order, r.MonthKey)
		}
		sel.Devices = append(sel.Devices, schedule.DeviceSelection{DeviceID: r.DeviceID, OilID: r.OilID})
	}
	out := make([]schedule.Selection, 0, len(order))
	for _, k := range order {
		out = append(out, *byMonth[k])
	}
	return out
}

// monthIndex converts a month key into its zero-based offset from startMonth.
// The result may fall outside the window; BulkApply clamps it.
func monthIndex(startMonth, key string) (int, error) {
	start, err := schedule.ParseMonthKey(startMonth)
	if err != nil {
		return 0, err
	}
	target, err := schedule.ParseMonthKey(key)
	if err != nil {
		return 0, err
	}
	return (target.Year()-start.Year())*12 + int(target.Month()-start.Month()), nil
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
