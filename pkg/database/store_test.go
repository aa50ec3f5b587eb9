package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/kindnest/kindnest-api/pkg/apperr"
	"github.com/kindnest/kindnest-api/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := InitDB(Options{
		Path:     "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewStore(db)
}

func seedNeed(t *testing.T, s *Store, goal, current int) *models.Need {
	t.Helper()
	n := &models.Need{Title: "Winter coats", Description: "Coats for kids", Category: models.CategoryClothes, Goal: goal, Current: current, Status: models.NeedActive}
	require.NoError(t, s.CreateNeed(context.Background(), n))
	return n
}

func TestIncrementIfWithinGoal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	n := seedNeed(t, s, 10, 0)

	ok, got, err := s.IncrementIfWithinGoal(ctx, n.ID, 4)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 4, got.Current)

	ok, got, err = s.IncrementIfWithinGoal(ctx, n.ID, 7)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 4, got.Current)
	assert.Equal(t, 6, got.Remaining())

	ok, got, err = s.IncrementIfWithinGoal(ctx, n.ID, 6)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10, got.Current)
}

func TestIncrementIfWithinGoalMissingNeed(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.IncrementIfWithinGoal(context.Background(), uuid.NewString(), 1)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestIncrementIfWithinGoalConcurrent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	n := seedNeed(t, s, 10, 0)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _, err := s.IncrementIfWithinGoal(ctx, n.ID, 3)
			if err != nil {
				t.Errorf("increment: %v", err)
				return
			}
			if ok {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := s.GetNeed(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, accepted)
	assert.Equal(t, 9, got.Current)
	assert.LessOrEqual(t, got.Current, got.Goal)
}

func seedSchedule(t *testing.T, s *Store, status models.ScheduleStatus) *models.Schedule {
	t.Helper()
	sc := &models.Schedule{
		DonationID: uuid.NewString(),
		DonorID:    uuid.NewString(),
		Type:       models.DeliveryPickup,
		Date:       time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC),
		Time:       "12:00",
		Address:    "1 Main St",
		Status:     status,
	}
	require.NoError(t, s.CreateSchedule(context.Background(), sc))
	return sc
}

func TestClaimScheduleOnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sc := seedSchedule(t, s, models.SchedulePending)
	code := "482913"

	ok, err := s.ClaimSchedule(ctx, sc.ID, "v1", &code)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ClaimSchedule(ctx, sc.ID, "v2", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.GetSchedule(ctx, sc.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AssignedVolunteerID)
	assert.Equal(t, "v1", *got.AssignedVolunteerID)
	require.NotNil(t, got.OTP)
	assert.Equal(t, code, *got.OTP)
	assert.False(t, got.OTPVerified)
}

func TestReopenSchedule(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sc := seedSchedule(t, s, models.ScheduleConfirmed)

	ok, err := s.ReopenSchedule(ctx, sc.ID, "v1", nil)
	require.NoError(t, err)
	assert.False(t, ok, "confirmed schedule is not reopenable")

	ok, err = s.TransitionSchedule(ctx, sc.ID, models.ScheduleConfirmed, map[string]any{"status": models.ScheduleCancelled})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.ReopenSchedule(ctx, sc.ID, "v2", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetSchedule(ctx, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleConfirmed, got.Status)
	assert.True(t, got.AssignedTo("v2"))
}

func TestReopenScheduleResetsVerification(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sc := seedSchedule(t, s, models.SchedulePending)
	code := "482913"

	ok, err := s.ClaimSchedule(ctx, sc.ID, "v1", &code)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.MarkCodeVerified(ctx, sc.ID))
	ok, err = s.TransitionSchedule(ctx, sc.ID, models.SchedulePending, map[string]any{
		"status":                models.ScheduleCancelled,
		"assigned_volunteer_id": nil,
	})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.ReopenSchedule(ctx, sc.ID, "v2", nil)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.GetSchedule(ctx, sc.ID)
	require.NoError(t, err)
	require.NotNil(t, got.OTP)
	assert.Equal(t, code, *got.OTP, "the issued code is kept")
	assert.False(t, got.OTPVerified)
}

func TestTransitionAssignedSchedule(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sc := seedSchedule(t, s, models.SchedulePending)

	ok, err := s.ClaimSchedule(ctx, sc.ID, "v2", nil)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.TransitionAssignedSchedule(ctx, sc.ID, models.SchedulePending, "v1", map[string]any{"status": models.ScheduleConfirmed})
	require.NoError(t, err)
	assert.False(t, ok, "a volunteer who lost the schedule cannot change it")

	ok, err = s.TransitionAssignedSchedule(ctx, sc.ID, models.SchedulePending, "v2", map[string]any{"status": models.ScheduleConfirmed})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetSchedule(ctx, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScheduleConfirmed, got.Status)
	assert.True(t, got.AssignedTo("v2"))
}

func TestTransitionScheduleStaleFrom(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sc := seedSchedule(t, s, models.SchedulePending)

	ok, err := s.TransitionSchedule(ctx, sc.ID, models.ScheduleConfirmed, map[string]any{"status": models.ScheduleCompleted})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.GetSchedule(ctx, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SchedulePending, got.Status)
}

func TestMarkStalePending(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	old := seedSchedule(t, s, models.SchedulePending)
	confirmed := seedSchedule(t, s, models.ScheduleConfirmed)

	fresh := seedSchedule(t, s, models.SchedulePending)
	fresh.Date = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.DB.Save(fresh).Error)

	n, err := s.MarkStalePending(ctx, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	for id, want := range map[string]models.ScheduleStatus{
		old.ID:       models.ScheduleCompleted,
		confirmed.ID: models.ScheduleConfirmed,
		fresh.ID:     models.SchedulePending,
	} {
		got, err := s.GetSchedule(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status)
	}
}

func TestFindActiveVolunteers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for _, v := range []models.Volunteer{
		{Name: "Ana", Phone: "1", Role: "Helper", Status: models.VolunteerActive},
		{Name: "Ben", Phone: "2", Role: "Helper", Status: models.VolunteerPending},
		{Name: "Cy", Phone: "3", Role: models.DriverRole, Status: models.VolunteerActive},
	} {
		v := v
		require.NoError(t, s.CreateVolunteer(ctx, &v))
	}

	active, err := s.FindActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	for _, v := range active {
		assert.Equal(t, models.VolunteerActive, v.Status)
	}
}

func TestCreateVolunteerDuplicatePhone(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.CreateVolunteer(ctx, &models.Volunteer{Name: "Ana", Phone: "555", Role: "Helper"}))

	err := s.CreateVolunteer(ctx, &models.Volunteer{Name: "Ann", Phone: "555", Role: "Helper"})
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestAddStockUpserts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	it, err := s.AddStock(ctx, "Winter coats", models.CategoryClothes, "Warehouse A", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, it.Quantity)

	it, err = s.AddStock(ctx, "Winter coats", models.CategoryClothes, "Warehouse A", 3)
	require.NoError(t, err)
	assert.Equal(t, 7, it.Quantity)

	it, err = s.AddStock(ctx, "Winter coats", models.CategoryClothes, "Warehouse B", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, it.Quantity)

	items, err := s.ListInventory(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	n := seedNeed(t, s, 10, 0)

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx *Store) error {
		if _, _, err := tx.IncrementIfWithinGoal(ctx, n.ID, 5); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetNeed(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Current)
}
