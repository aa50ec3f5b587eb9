package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kindnest/kindnest-api/pkg/availability"
	"github.com/kindnest/kindnest-api/pkg/models"
)

// VolunteerDirectory supplies the roster the filter works on.
type VolunteerDirectory interface {
	FindActive(ctx context.Context) ([]models.Volunteer, error)
}

// Exclusion explains why a volunteer was left out of the candidate set.
type Exclusion int

const (
	Included Exclusion = iota
	ExcludedInactive
	ExcludedNoAvailability
	ExcludedWrongDay
	ExcludedOutsideWindow
)

// Result is the outcome of one eligibility query.
type Result struct {
	Date     string             `json:"date"`
	Time     string             `json:"time"`
	Day      string             `json:"day"`
	Eligible []models.Volunteer `json:"eligible"`

	Inactive       int `json:"inactive"`
	NoAvailability int `json:"no_availability"`
	WrongDay       int `json:"wrong_day"`
	OutsideWindow  int `json:"outside_window"`
}

// Empty reports whether no volunteer matched. Callers use this to fall back
// to the full roster with an explanation.
func (r *Result) Empty() bool { return len(r.Eligible) == 0 }

// Reasons summarizes the exclusions for display.
func (r *Result) Reasons() []string {
	var reasons []string
	if r.Inactive > 0 {
		reasons = append(reasons, fmt.Sprintf("%d volunteers are not active", r.Inactive))
	}
	if r.NoAvailability > 0 {
		reasons = append(reasons, fmt.Sprintf("%d volunteers have no usable availability", r.NoAvailability))
	}
	if r.WrongDay > 0 {
		reasons = append(reasons, fmt.Sprintf("%d volunteers are not available on %s", r.WrongDay, r.Day))
	}
	if r.OutsideWindow > 0 {
		reasons = append(reasons, fmt.Sprintf("%d volunteers are not available at %s", r.OutsideWindow, r.Time))
	}
	if r.Empty() && len(reasons) == 0 {
		reasons = append(reasons, "no volunteers found")
	}
	return reasons
}

// Check classifies a single volunteer against a pickup moment.
func Check(v *models.Volunteer, day time.Weekday, mins int) Exclusion {
	if v.Status != models.VolunteerActive {
		return ExcludedInactive
	}
	a, ok := v.ParsedAvailability()
	if !ok {
		return ExcludedNoAvailability
	}
	if !a.Days.Has(day) {
		return ExcludedWrongDay
	}
	if !a.MatchesMinutes(day, mins) {
		return ExcludedOutsideWindow
	}
	return Included
}

// Filter returns the volunteers free at date/hhmm, drivers first and roster
// order otherwise.
func Filter(volunteers []models.Volunteer, date time.Time, hhmm string) (*Result, error) {
	mins, err := availability.TimeToMinutes(hhmm)
	if err != nil {
		return nil, err
	}
	day := date.Weekday()
	res := &Result{
		Date:     date.Format(models.DateLayout),
		Time:     availability.MinutesToTime(mins),
		Day:      day.String(),
		Eligible: []models.Volunteer{},
	}

	for i := range volunteers {
		switch Check(&volunteers[i], day, mins) {
		case Included:
			res.Eligible = append(res.Eligible, volunteers[i])
		case ExcludedInactive:
			res.Inactive++
		case ExcludedNoAvailability:
			res.NoAvailability++
		case ExcludedWrongDay:
			res.WrongDay++
		case ExcludedOutsideWindow:
			res.OutsideWindow++
		}
	}

	sort.SliceStable(res.Eligible, func(i, j int) bool {
		return res.Eligible[i].Role == models.DriverRole && res.Eligible[j].Role != models.DriverRole
	})
	return res, nil
}

// Scheduler narrows the roster to candidates for a pickup. It never assigns;
// the admin picks from the result.
type Scheduler struct {
	Directory VolunteerDirectory
}

// NewScheduler creates a new scheduler over dir.
func NewScheduler(dir VolunteerDirectory) *Scheduler {
	return &Scheduler{Directory: dir}
}

// Eligible loads the active roster and filters it.
func (s *Scheduler) Eligible(ctx context.Context, date time.Time, hhmm string) (*Result, error) {
	roster, err := s.Directory.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	return Filter(roster, date, hhmm)
}
