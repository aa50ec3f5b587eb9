package scheduling

import (
	"context"
	"log/slog"
	"time"

	"github.com/kindnest/kindnest-api/pkg/apperr"
	"github.com/kindnest/kindnest-api/pkg/availability"
	"github.com/kindnest/kindnest-api/pkg/database"
	"github.com/kindnest/kindnest-api/pkg/metrics"
	"github.com/kindnest/kindnest-api/pkg/models"
	"github.com/kindnest/kindnest-api/pkg/notify"
	"github.com/kindnest/kindnest-api/pkg/scheduler"
	"github.com/kindnest/kindnest-api/pkg/verification"
)

// ErrInvalidCode is returned for every failed code check, whatever the cause.
var ErrInvalidCode = &apperr.Error{Kind: apperr.KindValidation, Msg: "invalid code"}

type Options struct {
	Issuer   verification.CodeIssuer
	Verifier verification.CodeVerifier
	Limiter  verification.AttemptLimiter
	Notifier *notify.Dispatcher
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

type Service struct {
	store    *database.Store
	matcher  *scheduler.Scheduler
	issuer   verification.CodeIssuer
	verifier verification.CodeVerifier
	limiter  verification.AttemptLimiter
	notifier *notify.Dispatcher
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
}

func NewService(store *database.Store, opts Options) *Service {
	s := &Service{
		store:    store,
		matcher:  scheduler.NewScheduler(store),
		issuer:   opts.Issuer,
		verifier: opts.Verifier,
		limiter:  opts.Limiter,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		log:      opts.Logger,
		now:      time.Now,
	}
	if s.issuer == nil {
		s.issuer = verification.RandomIssuer{}
	}
	if s.verifier == nil {
		s.verifier = verification.ExactVerifier{}
	}
	if s.limiter == nil {
		s.limiter = verification.NewMemoryLimiter(5, 15*time.Minute)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// ListEligibleVolunteers narrows the active roster to volunteers free at the
// given date and time. It never mutates anything.
func (s *Service) ListEligibleVolunteers(ctx context.Context, date time.Time, hhmm string) (*scheduler.Result, error) {
	if _, err := availability.TimeToMinutes(hhmm); err != nil {
		return nil, apperr.Validation("invalid time %q, expected HH:MM", hhmm)
	}
	return s.matcher.Eligible(ctx, date, hhmm)
}

// EligibleForSchedule runs the eligibility filter for a schedule's slot.
func (s *Service) EligibleForSchedule(ctx context.Context, scheduleID string) (*scheduler.Result, error) {
	sc, err := s.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	return s.ListEligibleVolunteers(ctx, sc.Date, sc.Time)
}

func (s *Service) GetSchedule(ctx context.Context, id string) (*models.Schedule, error) {
	return s.store.GetSchedule(ctx, id)
}

func (s *Service) ListSchedules(ctx context.Context, f database.ScheduleFilter) ([]models.Schedule, error) {
	return s.store.ListSchedules(ctx, f)
}

// AssignVolunteer binds the first volunteer to a schedule and issues its
// pickup code. A cancelled schedule goes through reassignment.
func (s *Service) AssignVolunteer(ctx context.Context, scheduleID, volunteerID string) (*models.Schedule, error) {
	sc, v, err := s.loadForAssignment(ctx, scheduleID, volunteerID)
	if err != nil {
		return nil, err
	}
	if sc.Status == models.ScheduleCancelled {
		return s.bind(ctx, sc, v, true)
	}
	if sc.AssignedVolunteerID != nil {
		s.countAssignment("already_assigned")
		return nil, apperr.AlreadyAssigned("schedule already has a volunteer assigned")
	}
	return s.bind(ctx, sc, v, false)
}

// ReassignVolunteer binds a volunteer to a schedule whose previous
// volunteer cancelled, reopening it as confirmed. A code is only issued if
// the schedule never had one.
func (s *Service) ReassignVolunteer(ctx context.Context, scheduleID, volunteerID string) (*models.Schedule, error) {
	sc, v, err := s.loadForAssignment(ctx, scheduleID, volunteerID)
	if err != nil {
		return nil, err
	}
	switch {
	case sc.Status == models.ScheduleCancelled:
		return s.bind(ctx, sc, v, true)
	case sc.AssignedVolunteerID == nil:
		return s.bind(ctx, sc, v, false)
	default:
		s.countAssignment("already_assigned")
		return nil, apperr.AlreadyAssigned("schedule already has a volunteer assigned; it must be cancelled before reassignment")
	}
}

func (s *Service) loadForAssignment(ctx context.Context, scheduleID, volunteerID string) (*models.Schedule, *models.Volunteer, error) {
	if volunteerID == "" {
		return nil, nil, apperr.Validation("volunteerId is required")
	}
	sc, err := s.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, nil, err
	}
	if sc.Status == models.ScheduleCompleted {
		return nil, nil, apperr.Conflict("schedule is already completed")
	}
	v, err := s.store.GetVolunteer(ctx, volunteerID)
	if err != nil {
		return nil, nil, err
	}
	if v.Status != models.VolunteerActive {
		return nil, nil, apperr.Validation("volunteer %s is not active", v.Name)
	}
	return sc, v, nil
}

func (s *Service) bind(ctx context.Context, sc *models.Schedule, v *models.Volunteer, reopen bool) (*models.Schedule, error) {
	var code *string
	if !sc.CodeIssued() {
		c, err := s.issuer.Issue()
		if err != nil {
			return nil, err
		}
		code = &c
	}

	var (
		ok  bool
		err error
	)
	if reopen {
		ok, err = s.store.ReopenSchedule(ctx, sc.ID, v.ID, code)
	} else {
		ok, err = s.store.ClaimSchedule(ctx, sc.ID, v.ID, code)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		current, gerr := s.store.GetSchedule(ctx, sc.ID)
		if gerr != nil {
			return nil, gerr
		}
		if current.AssignedVolunteerID != nil {
			s.countAssignment("already_assigned")
			return nil, apperr.AlreadyAssigned("schedule already has a volunteer assigned")
		}
		return nil, apperr.Conflict("schedule changed while assigning, reload and try again")
	}

	updated, err := s.store.GetSchedule(ctx, sc.ID)
	if err != nil {
		return nil, err
	}
	s.countAssignment("assigned")
	s.log.Info("volunteer assigned",
		"schedule", updated.ID, "volunteer", v.ID, "reopened", reopen, "code_issued", code != nil)
	s.notifyAssignment(ctx, updated, v, code != nil)
	return updated, nil
}

func (s *Service) countAssignment(outcome string) {
	if s.metrics != nil {
		s.metrics.Assignments.WithLabelValues(outcome).Inc()
	}
}

// UpdateScheduleStatus moves a schedule through its lifecycle on behalf of
// actor, who must be the admin or the assigned volunteer. Cancelling clears
// the assignment so the schedule can be matched again.
func (s *Service) UpdateScheduleStatus(ctx context.Context, scheduleID string, to models.ScheduleStatus, actor Actor) (*models.Schedule, error) {
	sc, err := s.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if err := authorize(sc, actor); err != nil {
		return nil, err
	}
	if err := checkTransition(sc, to); err != nil {
		return nil, err
	}

	updates := map[string]any{"status": to}
	if to == models.ScheduleCancelled {
		updates["assigned_volunteer_id"] = nil
	}
	var ok bool
	if actor.IsAdmin() {
		ok, err = s.store.TransitionSchedule(ctx, sc.ID, sc.Status, updates)
	} else {
		ok, err = s.store.TransitionAssignedSchedule(ctx, sc.ID, sc.Status, actor.ID, updates)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Conflict("schedule changed while updating, reload and try again")
	}

	updated, err := s.store.GetSchedule(ctx, sc.ID)
	if err != nil {
		return nil, err
	}
	s.countTransition(to)
	s.log.Info("schedule status changed",
		"schedule", sc.ID, "from", sc.Status, "to", to, "actor_role", actor.Role, "actor", actor.ID)

	if to == models.ScheduleCancelled {
		s.notifyCancellation(ctx, sc, actor)
	}
	return updated, nil
}

func (s *Service) countTransition(to models.ScheduleStatus) {
	if s.metrics != nil {
		s.metrics.ScheduleTransitions.WithLabelValues(string(to)).Inc()
	}
}

// CancelledWithDonation records a schedule cancelled because its donation
// was rejected. before is the schedule prior to cancelling; its volunteer,
// if any, is told the pickup is off. The donor hears about it through the
// rejection itself.
func (s *Service) CancelledWithDonation(ctx context.Context, before *models.Schedule) {
	s.countTransition(models.ScheduleCancelled)
	s.log.Info("schedule status changed",
		"schedule", before.ID, "from", before.Status, "to", models.ScheduleCancelled, "reason", "donation rejected")
	if before.AssignedVolunteerID == nil {
		return
	}
	s.notifyVolunteerCancelled(ctx, before, with(scheduleData(before, s.donor(ctx, before)), "CancelledBy", "the coordinator"))
}

// VerifyOTP checks a pickup code. Any failure, including too many attempts,
// yields ErrInvalidCode.
func (s *Service) VerifyOTP(ctx context.Context, scheduleID, code string) (bool, error) {
	sc, err := s.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return false, err
	}
	// Repeating the right code on a verified schedule always succeeds.
	if sc.OTPVerified && verification.Verify(s.verifier, sc, code) {
		s.countCode("verified")
		return true, nil
	}

	blocked, err := s.limiter.Blocked(ctx, scheduleID)
	if err != nil {
		s.log.Warn("attempt limiter unavailable", "schedule", scheduleID, "error", err)
	}
	if blocked {
		s.countCode("blocked")
		return false, ErrInvalidCode
	}

	wasVerified := sc.OTPVerified
	if !verification.Verify(s.verifier, sc, code) {
		if err := s.limiter.Fail(ctx, scheduleID); err != nil {
			s.log.Warn("record failed code attempt", "schedule", scheduleID, "error", err)
		}
		s.countCode("invalid")
		return false, ErrInvalidCode
	}

	if !wasVerified {
		if err := s.store.MarkCodeVerified(ctx, scheduleID); err != nil {
			return false, err
		}
	}
	if err := s.limiter.Reset(ctx, scheduleID); err != nil {
		s.log.Warn("reset code attempts", "schedule", scheduleID, "error", err)
	}
	s.countCode("verified")
	return true, nil
}

// VerifyOTPAs is VerifyOTP restricted to the admin and the assigned
// volunteer.
func (s *Service) VerifyOTPAs(ctx context.Context, scheduleID, code string, actor Actor) (bool, error) {
	sc, err := s.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return false, err
	}
	if err := authorize(sc, actor); err != nil {
		return false, err
	}
	return s.VerifyOTP(ctx, scheduleID, code)
}

func (s *Service) countCode(outcome string) {
	if s.metrics != nil {
		s.metrics.CodeChecks.WithLabelValues(outcome).Inc()
	}
}

// SweepStale completes pending schedules whose date is more than age ago.
func (s *Service) SweepStale(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := s.now().Add(-age)
	n, err := s.store.MarkStalePending(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.StaleSwept.Add(float64(n))
	}
	s.log.Info("stale schedules swept", "count", n, "cutoff", cutoff.Format(models.DateLayout))
	return n, nil
}
