// Package scheduling owns the schedule lifecycle: volunteer assignment,
// status transitions and pickup code verification.
package scheduling

import (
	"strings"
	"time"

	"github.com/kindnest/kindnest-api/pkg/apperr"
	"github.com/kindnest/kindnest-api/pkg/availability"
	"github.com/kindnest/kindnest-api/pkg/models"
)

// Actor is whoever requests a schedule change.
type Actor struct {
	Role string
	ID   string
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

var transitions = map[models.ScheduleStatus][]models.ScheduleStatus{
	models.SchedulePending:   {models.ScheduleConfirmed, models.ScheduleCancelled},
	models.ScheduleConfirmed: {models.ScheduleCompleted, models.ScheduleCancelled},
}

// CanTransition reports whether the lifecycle allows from -> to. Leaving
// cancelled goes through reassignment, not a status change.
func CanTransition(from, to models.ScheduleStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// authorize allows the admin and the currently assigned volunteer.
func authorize(s *models.Schedule, actor Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.Role == models.RoleVolunteer && s.AssignedTo(actor.ID) {
		return nil
	}
	return apperr.Forbidden("Access denied")
}

// checkTransition validates moving s to status to. It does not mutate s.
func checkTransition(s *models.Schedule, to models.ScheduleStatus) error {
	switch to {
	case models.SchedulePending, models.ScheduleConfirmed, models.ScheduleCompleted, models.ScheduleCancelled:
	default:
		return apperr.Validation("invalid status %q", to)
	}
	if s.Status == models.ScheduleCompleted {
		return apperr.Conflict("schedule is already completed")
	}
	if !CanTransition(s.Status, to) {
		return apperr.Validation("cannot change schedule from %s to %s", s.Status, to)
	}
	if to == models.ScheduleCompleted && s.CodeIssued() && !s.OTPVerified {
		return apperr.UnverifiedCode("the pickup code has not been verified")
	}
	return nil
}

// ScheduleInput is the schedule data that accompanies a physical donation.
type ScheduleInput struct {
	Date           string                `json:"date"`
	Time           string                `json:"time"`
	DeliveryMethod models.DeliveryMethod `json:"deliveryMethod"`
	Address        string                `json:"address"`
	Phone          string                `json:"phone"`
	Notes          string                `json:"notes"`
}

// NewSchedule validates in and builds a pending schedule for the donation.
// profilePhone is the donor's account phone, used when in carries none.
func NewSchedule(in ScheduleInput, donationID, donorID, profilePhone string) (*models.Schedule, error) {
	if strings.TrimSpace(in.Date) == "" || strings.TrimSpace(in.Time) == "" || in.DeliveryMethod == "" {
		return nil, apperr.Validation("Schedule date, time, and delivery method are required")
	}
	date, err := parseDate(in.Date)
	if err != nil {
		return nil, apperr.Validation("invalid schedule date %q, expected YYYY-MM-DD", in.Date)
	}
	mins, err := availability.TimeToMinutes(strings.TrimSpace(in.Time))
	if err != nil {
		return nil, apperr.Validation("invalid schedule time %q, expected HH:MM", in.Time)
	}

	phone := models.ResolveContact(in.Phone, profilePhone)
	address := strings.TrimSpace(in.Address)
	switch in.DeliveryMethod {
	case models.DeliveryPickup:
		if address == "" {
			return nil, apperr.Validation("Address is required for pickup")
		}
	case models.DeliveryDropOff:
		if phone == "" {
			return nil, apperr.Validation("Phone number is required for drop-off")
		}
	default:
		return nil, apperr.Validation("invalid delivery method %q", in.DeliveryMethod)
	}

	return &models.Schedule{
		DonationID: donationID,
		DonorID:    donorID,
		Type:       in.DeliveryMethod,
		Date:       date,
		Time:       availability.MinutesToTime(mins),
		Address:    address,
		Phone:      phone,
		Status:     models.SchedulePending,
		Notes:      strings.TrimSpace(in.Notes),
	}, nil
}

// parseDate accepts YYYY-MM-DD and full RFC 3339 timestamps, keeping only
// the calendar date.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(models.DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// ParseDate parses a schedule or query date.
func ParseDate(s string) (time.Time, error) {
	t, err := parseDate(s)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}
