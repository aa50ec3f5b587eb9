package database

import (
	"context"

	"github.com/kindnest/kindnest-api/pkg/models"
)

func (s *Store) CreateDonation(ctx context.Context, d *models.Donation) error {
	return translate(s.db(ctx).Create(d).Error, "donation")
}

func (s *Store) GetDonation(ctx context.Context, id string) (*models.Donation, error) {
	var d models.Donation
	if err := s.db(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, translate(err, "donation")
	}
	return &d, nil
}

// ListDonations returns donations newest first; donorID narrows to one donor.
func (s *Store) ListDonations(ctx context.Context, donorID string) ([]models.Donation, error) {
	q := s.db(ctx).Order("created_at DESC")
	if donorID != "" {
		q = q.Where("donor_id = ?", donorID)
	}
	var ds []models.Donation
	if err := q.Find(&ds).Error; err != nil {
		return nil, err
	}
	return ds, nil
}

func (s *Store) SaveDonation(ctx context.Context, d *models.Donation) error {
	return translate(s.db(ctx).Save(d).Error, "donation")
}
