package database

import (
	"context"

	"gorm.io/gorm"

	"github.com/kindnest/kindnest-api/pkg/models"
)

func (s *Store) CreateNeed(ctx context.Context, n *models.Need) error {
	return translate(s.db(ctx).Create(n).Error, "need")
}

func (s *Store) GetNeed(ctx context.Context, id string) (*models.Need, error) {
	var n models.Need
	if err := s.db(ctx).First(&n, "id = ?", id).Error; err != nil {
		return nil, translate(err, "need")
	}
	return &n, nil
}

// ListNeeds returns needs newest first, optionally only those with status.
func (s *Store) ListNeeds(ctx context.Context, status models.NeedStatus) ([]models.Need, error) {
	q := s.db(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var needs []models.Need
	if err := q.Find(&needs).Error; err != nil {
		return nil, err
	}
	return needs, nil
}

func (s *Store) SaveNeed(ctx context.Context, n *models.Need) error {
	return translate(s.db(ctx).Save(n).Error, "need")
}

func (s *Store) DeleteNeed(ctx context.Context, id string) error {
	res := s.db(ctx).Delete(&models.Need{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "need")
	}
	return nil
}

// IncrementIfWithinGoal adds delta to the need's current count only if the
// result stays within goal. The check and the write are one UPDATE, so
// concurrent donations cannot push current past goal. It returns the need as
// stored after the attempt and whether the increment was applied.
func (s *Store) IncrementIfWithinGoal(ctx context.Context, needID string, delta int) (bool, *models.Need, error) {
	res := s.db(ctx).Model(&models.Need{}).
		Where("id = ? AND current + ? <= goal", needID, delta).
		Update("current", gorm.Expr("current + ?", delta))
	if res.Error != nil {
		return false, nil, res.Error
	}
	n, err := s.GetNeed(ctx, needID)
	if err != nil {
		return false, nil, err
	}
	return res.RowsAffected == 1, n, nil
}

// ReleaseFromGoal gives back delta previously counted against the need,
// never taking current below zero.
func (s *Store) ReleaseFromGoal(ctx context.Context, needID string, delta int) error {
	return s.db(ctx).Model(&models.Need{}).
		Where("id = ?", needID).
		Update("current", gorm.Expr("CASE WHEN current >= ? THEN current - ? ELSE 0 END", delta, delta)).Error
}
