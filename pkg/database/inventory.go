package database

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kindnest/kindnest-api/pkg/models"
)

func (s *Store) ListInventory(ctx context.Context) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	if err := s.db(ctx).Order("location ASC, name ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetInventoryItem(ctx context.Context, id string) (*models.InventoryItem, error) {
	var it models.InventoryItem
	if err := s.db(ctx).First(&it, "id = ?", id).Error; err != nil {
		return nil, translate(err, "inventory item")
	}
	return &it, nil
}

func (s *Store) CreateInventoryItem(ctx context.Context, it *models.InventoryItem) error {
	return translate(s.db(ctx).Create(it).Error, "inventory item")
}

func (s *Store) SaveInventoryItem(ctx context.Context, it *models.InventoryItem) error {
	return translate(s.db(ctx).Save(it).Error, "inventory item")
}

func (s *Store) DeleteInventoryItem(ctx context.Context, id string) error {
	res := s.db(ctx).Delete(&models.InventoryItem{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "inventory item")
	}
	return nil
}

// AddStock adds qty of an item at location, creating the row on first use.
func (s *Store) AddStock(ctx context.Context, name, category, location string, qty int) (*models.InventoryItem, error) {
	it := &models.InventoryItem{
		Name:     name,
		Category: category,
		Location: location,
		Quantity: qty,
	}
	err := s.db(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}, {Name: "location"}},
		DoUpdates: clause.Assignments(map[string]any{
			"quantity":     gorm.Expr("inventory_items.quantity + ?", qty),
			"last_updated": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(it).Error
	if err != nil {
		return nil, err
	}

	var stored models.InventoryItem
	if err := s.db(ctx).First(&stored, "name = ? AND location = ?", name, location).Error; err != nil {
		return nil, translate(err, "inventory item")
	}
	return &stored, nil
}
