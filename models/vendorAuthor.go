package models

import (
	"context"

	"gorm.io/gorm"
)

// VendorAuthor links a vendor to the user who recorded it.
type VendorAuthor struct {
	ID       int `gorm:"primary_key" json:"id"`
	UserId   int `gorm:"not null;uniqueIndex:idx_vendor_author" json:"user_id"`
	VendorId int `gorm:"not null;uniqueIndex:idx_vendor_author" json:"vendor_id"`
}

func ListVendorAuthors(ctx context.Context, db *gorm.DB, vendorId int) ([]*User, error) {
	var results []*User
	err := db.WithContext(ctx).
		Joins("JOIN vendor_authors ON vendor_authors.user_id = users.id").
		Where("vendor_authors.vendor_id = ?", vendorId).
		Order("users.id").
		Find(&results).Error
	return results, err
}

func ListVendorsByAuthor(ctx context.Context, db *gorm.DB, userId int) ([]*Vendor, error) {
	var results []*Vendor
	err := db.WithContext(ctx).
		Joins("JOIN vendor_authors ON vendor_authors.vendor_id = vendors.id").
		Where("vendor_authors.user_id = ?", userId).
		Order("vendors.id").
		Find(&results).Error
	return results, err
}
