package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kindnest/kindnest-api/pkg/models"
)

func volunteer(id, role, avail string, status models.VolunteerStatus) models.Volunteer {
	v := models.Volunteer{ID: id, Name: id, Role: role, Status: status}
	_ = v.SetAvailability(avail)
	return v
}

type fakeDirectory struct {
	roster []models.Volunteer
	err    error
}

func (f *fakeDirectory) FindActive(ctx context.Context) ([]models.Volunteer, error) {
	return f.roster, f.err
}

// 2025-01-07 is a Tuesday, 2025-01-08 a Wednesday.
var (
	tuesday   = time.Date(2025, time.January, 7, 0, 0, 0, 0, time.UTC)
	wednesday = time.Date(2025, time.January, 8, 0, 0, 0, 0, time.UTC)
)

func TestFilter_DayList(t *testing.T) {
	roster := []models.Volunteer{
		volunteer("v1", "Sorter", "Mon, Wed, Fri 10:00 - 14:00", models.VolunteerActive),
	}

	res, err := Filter(roster, tuesday, "12:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Empty() {
		t.Errorf("Expected no volunteers on Tuesday, got %d", len(res.Eligible))
	}
	if res.WrongDay != 1 {
		t.Errorf("Expected 1 wrong-day exclusion, got %d", res.WrongDay)
	}

	res, err = Filter(roster, wednesday, "12:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Eligible) != 1 || res.Eligible[0].ID != "v1" {
		t.Errorf("Expected v1 on Wednesday, got %+v", res.Eligible)
	}
}

func TestFilter_StatusAndAvailability(t *testing.T) {
	roster := []models.Volunteer{
		volunteer("pending", "Sorter", "All days 00:00 - 23:59", models.VolunteerPending),
		volunteer("inactive", "Sorter", "All days 00:00 - 23:59", models.VolunteerInactive),
		volunteer("garbled", "Sorter", "whenever", models.VolunteerActive),
		volunteer("late", "Sorter", "All days 18:00 - 22:00", models.VolunteerActive),
		volunteer("ok", "Sorter", "Weekdays 09:00 - 17:00", models.VolunteerActive),
	}

	res, err := Filter(roster, wednesday, "17:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Eligible) != 1 || res.Eligible[0].ID != "ok" {
		t.Fatalf("Expected only 'ok' to be eligible, got %+v", res.Eligible)
	}
	if res.Inactive != 2 || res.NoAvailability != 1 || res.OutsideWindow != 1 {
		t.Errorf("Unexpected exclusion counts: %+v", res)
	}
	if len(res.Reasons()) != 3 {
		t.Errorf("Expected 3 reasons, got %v", res.Reasons())
	}
}

func TestFilter_DriversFirstStable(t *testing.T) {
	roster := []models.Volunteer{
		volunteer("a", "Sorter", "Weekdays 09:00 - 17:00", models.VolunteerActive),
		volunteer("b", models.DriverRole, "Weekdays 09:00 - 17:00", models.VolunteerActive),
		volunteer("c", "Coordinator", "Weekdays 09:00 - 17:00", models.VolunteerActive),
		volunteer("d", models.DriverRole, "Weekdays 09:00 - 17:00", models.VolunteerActive),
	}

	res, err := Filter(roster, wednesday, "10:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"b", "d", "a", "c"}
	if len(res.Eligible) != len(want) {
		t.Fatalf("Expected %d eligible, got %d", len(want), len(res.Eligible))
	}
	for i, id := range want {
		if res.Eligible[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, res.Eligible[i].ID)
		}
	}
}

func TestFilter_BadTime(t *testing.T) {
	if _, err := Filter(nil, wednesday, "noon"); err == nil {
		t.Error("Expected an error for an unparseable time")
	}
}

func TestFilter_EmptyRoster(t *testing.T) {
	res, err := Filter(nil, wednesday, "10:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Empty() {
		t.Error("Expected empty result")
	}
	if got := res.Reasons(); len(got) != 1 || got[0] != "no volunteers found" {
		t.Errorf("Unexpected reasons: %v", got)
	}
}

func TestScheduler_Eligible(t *testing.T) {
	dir := &fakeDirectory{roster: []models.Volunteer{
		volunteer("v1", "Sorter", "Mon, Wed, Fri 10:00 - 14:00", models.VolunteerActive),
	}}
	s := NewScheduler(dir)

	res, err := s.Eligible(context.Background(), wednesday, "12:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Eligible) != 1 {
		t.Errorf("Expected 1 eligible volunteer, got %d", len(res.Eligible))
	}

	dir.err = errors.New("db down")
	if _, err := s.Eligible(context.Background(), wednesday, "12:00"); err == nil {
		t.Error("Expected directory error to propagate")
	}
}
