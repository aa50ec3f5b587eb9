package database

import (
	"context"

	"gorm.io/gorm"

	"github.com/kindnest/kindnest-api/pkg/models"
)

func (s *Store) CreateVolunteer(ctx context.Context, v *models.Volunteer) error {
	return translate(s.db(ctx).Create(v).Error, "volunteer")
}

func (s *Store) GetVolunteer(ctx context.Context, id string) (*models.Volunteer, error) {
	var v models.Volunteer
	if err := s.db(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, translate(err, "volunteer")
	}
	return &v, nil
}

func (s *Store) FindVolunteerByPhone(ctx context.Context, phone string) (*models.Volunteer, error) {
	var v models.Volunteer
	if err := s.db(ctx).First(&v, "phone = ?", phone).Error; err != nil {
		return nil, translate(err, "volunteer")
	}
	return &v, nil
}

func (s *Store) FindVolunteerByEmail(ctx context.Context, email string) (*models.Volunteer, error) {
	var v models.Volunteer
	if err := s.db(ctx).First(&v, "email = ?", email).Error; err != nil {
		return nil, translate(err, "volunteer")
	}
	return &v, nil
}

// ListVolunteers returns the whole roster in join order.
func (s *Store) ListVolunteers(ctx context.Context) ([]models.Volunteer, error) {
	var vs []models.Volunteer
	if err := s.db(ctx).Order("joined_at ASC").Find(&vs).Error; err != nil {
		return nil, err
	}
	return vs, nil
}

// FindActive returns active volunteers in join order. It satisfies
// scheduler.VolunteerDirectory.
func (s *Store) FindActive(ctx context.Context) ([]models.Volunteer, error) {
	var vs []models.Volunteer
	err := s.db(ctx).
		Where("status = ?", models.VolunteerActive).
		Order("joined_at ASC").
		Find(&vs).Error
	if err != nil {
		return nil, err
	}
	return vs, nil
}

func (s *Store) SaveVolunteer(ctx context.Context, v *models.Volunteer) error {
	return translate(s.db(ctx).Save(v).Error, "volunteer")
}

func (s *Store) DeleteVolunteer(ctx context.Context, id string) error {
	res := s.db(ctx).Delete(&models.Volunteer{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "volunteer")
	}
	return nil
}
