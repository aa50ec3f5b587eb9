// Package donations records pledges against needs and links physical
// donations to their pickup or drop-off schedule.
package donations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kindnest/kindnest-api/internal/scheduling"
	"github.com/kindnest/kindnest-api/pkg/apperr"
	"github.com/kindnest/kindnest-api/pkg/database"
	"github.com/kindnest/kindnest-api/pkg/metrics"
	"github.com/kindnest/kindnest-api/pkg/models"
	"github.com/kindnest/kindnest-api/pkg/notify"
	"github.com/kindnest/kindnest-api/pkg/scheduler"
)

// InventoryAuto asks a confirmation to add the donated items to stock.
const InventoryAuto = "auto"

type CreateDonationInput struct {
	DonorID        string                    `json:"-"`
	NeedID         string                    `json:"needId"`
	Type           models.DonationType       `json:"type"`
	Amount         float64                   `json:"amount"`
	Items          string                    `json:"items"`
	Quantity       int                       `json:"quantity"`
	DeliveryMethod models.DeliveryMethod     `json:"deliveryMethod"`
	Notes          string                    `json:"notes"`
	Schedule       *scheduling.ScheduleInput `json:"scheduleData"`
}

type UpdateDonationStatusInput struct {
	DonationID      string                `json:"-"`
	Status          models.DonationStatus `json:"status"`
	RejectionReason string                `json:"rejectionReason"`
	InventoryAction string                `json:"inventoryAction"`
	Location        string                `json:"location"`
}

// StatusResult is what a status change produced. Eligible is set when a
// confirmed pickup needs a volunteer.
type StatusResult struct {
	Donation         *models.Donation      `json:"donation"`
	Schedule         *models.Schedule      `json:"schedule,omitempty"`
	InventoryUpdated bool                  `json:"inventoryUpdated"`
	Inventory        *models.InventoryItem `json:"inventory,omitempty"`
	Eligible         *scheduler.Result     `json:"eligibleVolunteers,omitempty"`
}

type Service struct {
	store     *database.Store
	schedules *scheduling.Service
	notifier  *notify.Dispatcher
	metrics   *metrics.Metrics
	log       *slog.Logger
}

func NewService(store *database.Store, schedules *scheduling.Service, n *notify.Dispatcher, m *metrics.Metrics, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, schedules: schedules, notifier: n, metrics: m, log: log}
}

func (s *Service) count(t models.DonationType, outcome string) {
	if s.metrics != nil {
		s.metrics.Donations.WithLabelValues(string(t), outcome).Inc()
	}
}

// capacityError describes how much of the need is still open.
var errDelivered = &apperr.Error{Kind: apperr.KindConflict, Msg: "donation was already delivered and cannot be rejected"}

func capacityError(n *models.Need) error {
	remaining := n.Remaining()
	if remaining <= 0 {
		return apperr.CapacityExceeded("This need has already reached its goal of %d items.", n.Goal)
	}
	return apperr.CapacityExceeded("This need only requires %d more items. The goal is %d items and %d have already been donated.",
		remaining, n.Goal, n.Current)
}

// CreateDonation records a donation. A physical donation is counted against
// the need's goal and gets exactly one schedule, all in one transaction; a
// donation that would overshoot the goal changes nothing.
func (s *Service) CreateDonation(ctx context.Context, in CreateDonationInput) (*models.Donation, *models.Schedule, error) {
	d, err := s.buildDonation(in)
	if err != nil {
		s.count(in.Type, "invalid")
		return nil, nil, err
	}

	need, err := s.store.GetNeed(ctx, d.NeedID)
	if err != nil {
		return nil, nil, err
	}
	if need.Status != models.NeedActive {
		s.count(d.Type, "invalid")
		return nil, nil, apperr.Validation("This need is not accepting donations")
	}

	if d.Type == models.DonationMoney {
		if err := s.store.CreateDonation(ctx, d); err != nil {
			return nil, nil, err
		}
		s.count(d.Type, "accepted")
		s.log.Info("donation created", "donation", d.ID, "need", d.NeedID, "type", d.Type)
		return d, nil, nil
	}

	donor, err := s.store.GetUser(ctx, d.DonorID)
	if err != nil {
		return nil, nil, err
	}
	sc, err := scheduling.NewSchedule(*in.Schedule, d.ID, d.DonorID, donor.Phone)
	if err != nil {
		s.count(d.Type, "invalid")
		return nil, nil, err
	}
	if d.Quantity > need.Remaining() {
		s.count(d.Type, "over_goal")
		return nil, nil, capacityError(need)
	}

	err = s.store.InTx(ctx, func(tx *database.Store) error {
		ok, current, err := tx.IncrementIfWithinGoal(ctx, d.NeedID, d.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			return capacityError(current)
		}
		if err := tx.CreateDonation(ctx, d); err != nil {
			return err
		}
		return tx.CreateSchedule(ctx, sc)
	})
	if err != nil {
		if errors.Is(err, apperr.ErrCapacityExceeded) {
			s.count(d.Type, "over_goal")
		}
		return nil, nil, err
	}

	s.count(d.Type, "accepted")
	s.log.Info("donation created",
		"donation", d.ID, "need", d.NeedID, "type", d.Type, "quantity", d.Quantity, "schedule", sc.ID)
	return d, sc, nil
}

func (s *Service) buildDonation(in CreateDonationInput) (*models.Donation, error) {
	if in.DonorID == "" {
		return nil, apperr.Validation("donor is required")
	}
	if in.NeedID == "" {
		return nil, apperr.Validation("needId is required")
	}
	d := &models.Donation{
		ID:      uuid.NewString(),
		DonorID: in.DonorID,
		NeedID:  in.NeedID,
		Type:    in.Type,
		Notes:   strings.TrimSpace(in.Notes),
		Status:  models.DonationPending,
	}

	switch in.Type {
	case models.DonationMoney:
		if in.Amount <= 0 {
			return nil, apperr.Validation("Amount must be greater than zero")
		}
		d.Amount = in.Amount
	case models.DonationPhysical:
		if in.Quantity <= 0 {
			return nil, apperr.Validation("Quantity must be greater than zero")
		}
		if strings.TrimSpace(in.Items) == "" {
			return nil, apperr.Validation("Items description is required for physical donations")
		}
		if in.Schedule == nil {
			return nil, apperr.Validation("Schedule data is required for physical donations")
		}
		if in.Schedule.DeliveryMethod == "" {
			in.Schedule.DeliveryMethod = in.DeliveryMethod
		}
		if in.Schedule.Notes == "" {
			in.Schedule.Notes = d.Notes
		}
		d.Items = strings.TrimSpace(in.Items)
		d.Quantity = in.Quantity
		d.DeliveryMethod = in.Schedule.DeliveryMethod
	default:
		return nil, apperr.Validation("invalid donation type %q", in.Type)
	}
	return d, nil
}

func (s *Service) GetDonation(ctx context.Context, id string) (*models.Donation, error) {
	return s.store.GetDonation(ctx, id)
}

// ListDonations lists all donations, or one donor's when donorID is set.
func (s *Service) ListDonations(ctx context.Context, donorID string) ([]models.Donation, error) {
	return s.store.ListDonations(ctx, donorID)
}

func validDonationStatus(st models.DonationStatus) bool {
	switch st {
	case models.DonationPending, models.DonationConfirmed, models.DonationCompleted, models.DonationRejected:
		return true
	}
	return false
}

// UpdateDonationStatus applies an admin decision. Rejecting a physical
// donation gives its quantity back to the need and cancels its schedule;
// delivered donations cannot be rejected. Inventory bookkeeping on confirmation is best effort.
func (s *Service) UpdateDonationStatus(ctx context.Context, in UpdateDonationStatusInput) (*StatusResult, error) {
	if !validDonationStatus(in.Status) {
		return nil, apperr.Validation("invalid status %q", in.Status)
	}
	reason := strings.TrimSpace(in.RejectionReason)
	if in.Status == models.DonationRejected && reason == "" {
		return nil, apperr.Validation("A rejection reason is required")
	}

	d, err := s.store.GetDonation(ctx, in.DonationID)
	if err != nil {
		return nil, err
	}
	if d.Status == models.DonationRejected && in.Status != models.DonationRejected {
		return nil, apperr.Conflict("donation was rejected and cannot be reopened")
	}
	if d.Status == models.DonationCompleted && in.Status == models.DonationRejected {
		return nil, errDelivered
	}
	previous := d.Status

	d.Status = in.Status
	if in.Status == models.DonationRejected {
		d.RejectionReason = reason
	}
	// cancelled is the schedule as it was before a rejection cancelled it.
	var cancelled *models.Schedule
	err = s.store.InTx(ctx, func(tx *database.Store) error {
		if err := tx.SaveDonation(ctx, d); err != nil {
			return err
		}
		if in.Status != models.DonationRejected || previous == models.DonationRejected || d.Type != models.DonationPhysical {
			return nil
		}
		sc, err := tx.GetScheduleByDonation(ctx, d.ID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		if sc != nil && sc.Status == models.ScheduleCompleted {
			return errDelivered
		}
		if err := tx.ReleaseFromGoal(ctx, d.NeedID, d.Quantity); err != nil {
			return err
		}
		if sc == nil || sc.Status == models.ScheduleCancelled {
			return nil
		}
		ok, err := tx.TransitionSchedule(ctx, sc.ID, sc.Status, map[string]any{
			"status":                models.ScheduleCancelled,
			"assigned_volunteer_id": nil,
		})
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict("schedule changed while rejecting, reload and try again")
		}
		cancelled = sc
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("donation status changed", "donation", d.ID, "from", previous, "to", d.Status)
	if cancelled != nil && s.schedules != nil {
		s.schedules.CancelledWithDonation(ctx, cancelled)
	}

	res := &StatusResult{Donation: d}
	need, nerr := s.store.GetNeed(ctx, d.NeedID)
	if nerr != nil {
		s.log.Warn("load need for donation", "donation", d.ID, "error", nerr)
		need = &models.Need{Category: models.CategoryOther}
	}

	if d.Type == models.DonationPhysical {
		if sc, err := s.store.GetScheduleByDonation(ctx, d.ID); err == nil {
			res.Schedule = sc
		} else if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
	}

	if in.Status == models.DonationConfirmed && d.Type == models.DonationPhysical {
		if in.InventoryAction == InventoryAuto && strings.TrimSpace(in.Location) != "" {
			s.addStock(ctx, d, need, strings.TrimSpace(in.Location), res)
		}
		if res.Schedule != nil && res.Schedule.Type == models.DeliveryPickup && res.Schedule.AssignedVolunteerID == nil {
			eligible, err := s.schedules.EligibleForSchedule(ctx, res.Schedule.ID)
			if err != nil {
				return nil, fmt.Errorf("eligible volunteers: %w", err)
			}
			res.Eligible = eligible
		}
	}

	s.notifyStatus(ctx, d, need, previous)
	return res, nil
}

func (s *Service) addStock(ctx context.Context, d *models.Donation, need *models.Need, location string, res *StatusResult) {
	category := need.Category
	if !models.ValidCategory(category) {
		category = models.CategoryOther
	}
	item, err := s.store.AddStock(ctx, d.Items, category, location, d.Quantity)
	if err != nil {
		s.log.Error("inventory update failed", "donation", d.ID, "location", location, "error", err)
		return
	}
	res.InventoryUpdated = true
	res.Inventory = item
}

func (s *Service) notifyStatus(ctx context.Context, d *models.Donation, need *models.Need, previous models.DonationStatus) {
	if s.notifier == nil || previous == d.Status {
		return
	}
	var ev notify.Event
	switch d.Status {
	case models.DonationConfirmed:
		ev = notify.EventDonationConfirmed
	case models.DonationRejected:
		ev = notify.EventDonationRejected
	default:
		return
	}
	donor, err := s.store.GetUser(ctx, d.DonorID)
	if err != nil {
		s.log.Warn("load donor for notification", "donation", d.ID, "error", err)
		return
	}
	s.notifier.Send(notify.Notification{
		Event:    ev,
		Audience: notify.AudienceDonor,
		To:       donor.Email,
		Data: map[string]string{
			"Name":   donor.Name,
			"Need":   need.Title,
			"Reason": d.RejectionReason,
		},
	})
}
