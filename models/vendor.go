package models

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mmdatafocus/mpms/utils"
)

const vendorSearchLimit = 50

type Vendor struct {
	ID         int       `gorm:"primary_key" json:"id"`
	Name       string    `gorm:"size:20;not null" json:"name"`
	VendorCode string    `gorm:"size:20;not null" json:"vendor_code"`
	Address    string    `gorm:"size:60;not null" json:"address"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewVendor struct {
	Name       string `form:"name" validate:"required,max=20"`
	VendorCode string `form:"vendor_code" validate:"required,max=20"`
	Address    string `form:"address" validate:"required,max=60"`
}

var vendorMessages = fieldMessages{
	"name.required":        "输入公司名称",
	"name.max":             "公司名称请控制在20字以内",
	"vendor_code.required": "输入厂商代码",
	"vendor_code.max":      "厂商代码请控制在20字以内",
	"address.required":     "厂商地址",
	"address.max":          "厂商地址请控制在60字以内",
}

// CreateVendor(user, input) (Vendor,error)
// UpdateVendor(id, input) (Vendor,error)
// DeleteVendor(id) (Vendor,error)
// GetVendor(id) (Vendor,error)
// ListVendors(query, page) (Page[Vendor],error)
// SearchVendors(query) ([]Vendor,error)

// Don't delete if used in case details

func (input *NewVendor) validate() error {
	input.Name = strings.TrimSpace(input.Name)
	input.VendorCode = strings.TrimSpace(input.VendorCode)
	input.Address = strings.TrimSpace(input.Address)
	return validateInput(input, vendorMessages).errOrNil()
}

// CreateVendor stores the vendor together with the creator's authorship link.
func CreateVendor(ctx context.Context, db *gorm.DB, user *User, input *NewVendor) (*Vendor, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	vendor := Vendor{
		Name:       input.Name,
		VendorCode: input.VendorCode,
		Address:    input.Address,
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&vendor).Error; err != nil {
			return err
		}
		return tx.Create(&VendorAuthor{UserId: user.ID, VendorId: vendor.ID}).Error
	})
	if err != nil {
		return nil, translateWriteError(err)
	}
	return &vendor, nil
}

func UpdateVendor(ctx context.Context, db *gorm.DB, id int, input *NewVendor) (*Vendor, error) {
	vendor, err := GetVendor(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	err = db.WithContext(ctx).Model(vendor).Updates(map[string]interface{}{
		"name":        input.Name,
		"vendor_code": input.VendorCode,
		"address":     input.Address,
	}).Error
	if err != nil {
		return nil, err
	}
	return GetVendor(ctx, db, id)
}

// DeleteVendor refuses with ErrVendorInUse while any case detail references
// the vendor; otherwise the authorship links go with it.
func DeleteVendor(ctx context.Context, db *gorm.DB, id int) (*Vendor, error) {
	vendor, err := GetVendor(ctx, db, id)
	if err != nil {
		return nil, err
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		count, err := utils.ResourceCountWhere[CaseDetail](ctx, tx, "vendor_id = ?", id)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrVendorInUse
		}
		if err := tx.Where("vendor_id = ?", id).Delete(&VendorAuthor{}).Error; err != nil {
			return err
		}
		return tx.Delete(vendor).Error
	})
	if err != nil {
		return nil, err
	}
	return vendor, nil
}

func GetVendor(ctx context.Context, db *gorm.DB, id int) (*Vendor, error) {
	return utils.FetchSingleModel[Vendor](ctx, db, id)
}

func ListVendors(ctx context.Context, db *gorm.DB, query string, page int, perPage int, caseSensitive bool) (*Page[Vendor], error) {
	q := nameFilter(db.WithContext(ctx).Model(&Vendor{}), "name", query, caseSensitive)
	return Paginate[Vendor](q, "id", page, perPage)
}

// SearchVendors backs the vendor picker of a case; an empty query lists the
// first vendors by id.
func SearchVendors(ctx context.Context, db *gorm.DB, query string, caseSensitive bool) ([]*Vendor, error) {
	var results []*Vendor
	q := nameFilter(db.WithContext(ctx).Model(&Vendor{}), "name", query, caseSensitive)
	err := q.Order("id").Limit(vendorSearchLimit).Find(&results).Error
	return results, err
}
