package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func (n *Need) BeforeCreate(tx *gorm.DB) error          { newID(&n.ID); return nil }
func (d *Donation) BeforeCreate(tx *gorm.DB) error      { newID(&d.ID); return nil }
func (s *Schedule) BeforeCreate(tx *gorm.DB) error      { newID(&s.ID); return nil }
func (v *Volunteer) BeforeCreate(tx *gorm.DB) error     { newID(&v.ID); return nil }
func (u *User) BeforeCreate(tx *gorm.DB) error          { newID(&u.ID); return nil }
func (i *InventoryItem) BeforeCreate(tx *gorm.DB) error { newID(&i.ID); return nil }
