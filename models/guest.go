package models

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mmdatafocus/mpms/utils"
)

type Guest struct {
	ID        int       `gorm:"primary_key" json:"id"`
	GuestName string    `gorm:"size:30;not null;unique" json:"guest_name"`
	GuestCode string    `gorm:"size:10;not null;unique" json:"guest_code"`
	Address   string    `gorm:"size:50;not null" json:"address"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewGuest struct {
	GuestName string `form:"guest_name" validate:"required,max=30"`
	GuestCode string `form:"guest_code" validate:"required,len=10"`
	Address   string `form:"address" validate:"required,max=50"`
}

var guestMessages = fieldMessages{
	"guest_name.required": "输入客户公司名称",
	"guest_name.max":      "客户名称请控制在30字以内",
	"guest_code":          "请输入10位客户代码",
	"address.max":         "地址请控制在50字以内",
}

// CreateGuest(input) (Guest,error)
// UpdateGuest(id, input) (Guest,error)
// GetGuest(id) (Guest,error)
// ListGuests(query, page) (Page[Guest],error)
// FindFirstGuest(query) (Guest,error)

// validate input for both create & update. (id = 0 for create)
func (input *NewGuest) validate(ctx context.Context, db *gorm.DB, id int) error {
	input.GuestName = strings.TrimSpace(input.GuestName)
	input.GuestCode = strings.TrimSpace(input.GuestCode)
	input.Address = strings.TrimSpace(input.Address)

	errs := validateInput(input, guestMessages)
	if err := checkUnique[Guest](ctx, db, errs, "guest_name", "guest_name", input.GuestName, id, "客户信息已存在"); err != nil {
		return err
	}
	if err := checkUnique[Guest](ctx, db, errs, "guest_code", "guest_code", input.GuestCode, id, "客户代码已存在"); err != nil {
		return err
	}
	return errs.errOrNil()
}

func CreateGuest(ctx context.Context, db *gorm.DB, input *NewGuest) (*Guest, error) {
	if err := input.validate(ctx, db, 0); err != nil {
		return nil, err
	}
	guest := Guest{
		GuestName: input.GuestName,
		GuestCode: input.GuestCode,
		Address:   input.Address,
	}
	if err := db.WithContext(ctx).Create(&guest).Error; err != nil {
		return nil, translateWriteError(err)
	}
	return &guest, nil
}

func UpdateGuest(ctx context.Context, db *gorm.DB, id int, input *NewGuest) (*Guest, error) {
	guest, err := GetGuest(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, db, id); err != nil {
		return nil, err
	}
	err = db.WithContext(ctx).Model(guest).Updates(map[string]interface{}{
		"guest_name": input.GuestName,
		"guest_code": input.GuestCode,
		"address":    input.Address,
	}).Error
	if err != nil {
		return nil, translateWriteError(err)
	}
	return GetGuest(ctx, db, id)
}

func GetGuest(ctx context.Context, db *gorm.DB, id int) (*Guest, error) {
	return utils.FetchSingleModel[Guest](ctx, db, id)
}

// ListGuests pages guests (optionally filtered by a guest_name substring)
// ordered by id.
func ListGuests(ctx context.Context, db *gorm.DB, query string, page int, perPage int, caseSensitive bool) (*Page[Guest], error) {
	q := nameFilter(db.WithContext(ctx).Model(&Guest{}), "guest_name", query, caseSensitive)
	return Paginate[Guest](q, "id", page, perPage)
}

// FindFirstGuest returns the lowest-id guest whose name contains query.
func FindFirstGuest(ctx context.Context, db *gorm.DB, query string, caseSensitive bool) (*Guest, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ValidationErrors{"guest_name": "输入公司名称"}
	}
	var guest Guest
	q := nameFilter(db.WithContext(ctx).Model(&Guest{}), "guest_name", query, caseSensitive)
	result := q.Order("id").Limit(1).Find(&guest)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return &guest, nil
}
