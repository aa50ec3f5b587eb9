package database

import (
	"context"
	"time"

	"github.com/kindnest/kindnest-api/pkg/models"
)

// ScheduleFilter narrows ListSchedules. Zero fields match everything.
type ScheduleFilter struct {
	DonorID     string
	VolunteerID string
	Status      models.ScheduleStatus
}

func (s *Store) CreateSchedule(ctx context.Context, sc *models.Schedule) error {
	return translate(s.db(ctx).Create(sc).Error, "schedule")
}

func (s *Store) GetSchedule(ctx context.Context, id string) (*models.Schedule, error) {
	var sc models.Schedule
	if err := s.db(ctx).First(&sc, "id = ?", id).Error; err != nil {
		return nil, translate(err, "schedule")
	}
	return &sc, nil
}

func (s *Store) GetScheduleByDonation(ctx context.Context, donationID string) (*models.Schedule, error) {
	var sc models.Schedule
	if err := s.db(ctx).First(&sc, "donation_id = ?", donationID).Error; err != nil {
		return nil, translate(err, "schedule")
	}
	return &sc, nil
}

// ListSchedules returns matching schedules ordered by appointment date.
func (s *Store) ListSchedules(ctx context.Context, f ScheduleFilter) ([]models.Schedule, error) {
	q := s.db(ctx).Order("date ASC, time ASC")
	if f.DonorID != "" {
		q = q.Where("donor_id = ?", f.DonorID)
	}
	if f.VolunteerID != "" {
		q = q.Where("assigned_volunteer_id = ?", f.VolunteerID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var out []models.Schedule
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ClaimSchedule binds volunteerID to an open schedule that has no volunteer.
// The guard and the write are one statement; false means another request got
// there first or the schedule is no longer open. A non-nil code is stored as
// a fresh, unverified one-time code.
func (s *Store) ClaimSchedule(ctx context.Context, id, volunteerID string, code *string) (bool, error) {
	updates := map[string]any{"assigned_volunteer_id": volunteerID}
	if code != nil {
		updates["otp"] = *code
		updates["otp_verified"] = false
	}
	res := s.db(ctx).Model(&models.Schedule{}).
		Where("id = ? AND assigned_volunteer_id IS NULL AND status IN ?", id,
			[]models.ScheduleStatus{models.SchedulePending, models.ScheduleConfirmed}).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

// ReopenSchedule binds volunteerID to a cancelled, unassigned schedule and
// moves it back to confirmed. Verification always starts over: the new
// volunteer has to collect the code from the donor again.
func (s *Store) ReopenSchedule(ctx context.Context, id, volunteerID string, code *string) (bool, error) {
	updates := map[string]any{
		"assigned_volunteer_id": volunteerID,
		"status":                models.ScheduleConfirmed,
		"otp_verified":          false,
	}
	if code != nil {
		updates["otp"] = *code
	}
	res := s.db(ctx).Model(&models.Schedule{}).
		Where("id = ? AND assigned_volunteer_id IS NULL AND status = ?", id, models.ScheduleCancelled).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

// TransitionSchedule applies updates only while the schedule is still in
// status from. False means the schedule moved on concurrently.
func (s *Store) TransitionSchedule(ctx context.Context, id string, from models.ScheduleStatus, updates map[string]any) (bool, error) {
	res := s.db(ctx).Model(&models.Schedule{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

// TransitionAssignedSchedule is TransitionSchedule for a change made by the
// assigned volunteer; it also fails once volunteerID no longer holds the
// schedule.
func (s *Store) TransitionAssignedSchedule(ctx context.Context, id string, from models.ScheduleStatus, volunteerID string, updates map[string]any) (bool, error) {
	res := s.db(ctx).Model(&models.Schedule{}).
		Where("id = ? AND status = ? AND assigned_volunteer_id = ?", id, from, volunteerID).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

// MarkCodeVerified records a successful code check.
func (s *Store) MarkCodeVerified(ctx context.Context, id string) error {
	return s.db(ctx).Model(&models.Schedule{}).
		Where("id = ?", id).
		Update("otp_verified", true).Error
}

// MarkStalePending completes pending schedules whose appointment date is
// before cutoff and returns how many changed.
func (s *Store) MarkStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db(ctx).Model(&models.Schedule{}).
		Where("status = ? AND date < ?", models.SchedulePending, cutoff).
		Update("status", models.ScheduleCompleted)
	return res.RowsAffected, res.Error
}
