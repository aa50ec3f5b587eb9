package database

import (
	"context"

	"github.com/kindnest/kindnest-api/pkg/models"
)

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return translate(s.db(ctx).Create(u).Error, "user")
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db(ctx).First(&u, "email = ?", email).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &u, nil
}

func (s *Store) CountAdmins(ctx context.Context) (int64, error) {
	var n int64
	err := s.db(ctx).Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&n).Error
	return n, err
}
