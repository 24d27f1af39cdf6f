package models

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mmdatafocus/mpms/utils"
)

type GuestContact struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"size:30;not null" json:"name"`
	Email       string    `gorm:"size:40" json:"email"`
	MobilePhone string    `gorm:"size:20" json:"mobile_phone"`
	Wechat      string    `gorm:"size:20" json:"wechat"`
	GuestId     int       `gorm:"index;not null" json:"guest_id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewGuestContact struct {
	Name        string `form:"name" validate:"required,max=30"`
	Email       string `form:"email" validate:"omitempty,email,max=40"`
	MobilePhone string `form:"mobile_phone" validate:"omitempty,max=20"`
	Wechat      string `form:"wechat" validate:"omitempty,max=20"`
}

var guestContactMessages = fieldMessages{
	"name.required":    "联系人姓名",
	"name.max":         "姓名请控制在30字以内",
	"email":            "请确认邮箱格式",
	"mobile_phone.max": "请输入有效的手机号码",
	"wechat.max":       "微信号请控制在20字以内",
}

// validate checks format and stores a valid mobile phone in E164 form;
// phoneRegion is the default region used to parse numbers written without a
// country prefix.
func (input *NewGuestContact) validate(phoneRegion string) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	input.MobilePhone = strings.TrimSpace(input.MobilePhone)
	input.Wechat = strings.TrimSpace(input.Wechat)

	errs := validateInput(input, guestContactMessages)
	if _, failed := errs["mobile_phone"]; !failed && input.MobilePhone != "" {
		if err := utils.ValidatePhoneNumber(input.MobilePhone, phoneRegion); err != nil {
			errs.Add("mobile_phone", "请输入有效的手机号码")
		} else {
			input.MobilePhone = utils.FormatPhoneNumber(input.MobilePhone, phoneRegion)
		}
	}
	return errs.errOrNil()
}

func CreateGuestContact(ctx context.Context, db *gorm.DB, guestId int, input *NewGuestContact, phoneRegion string) (*GuestContact, error) {
	if err := utils.ValidateResourceId[Guest](ctx, db, guestId); err != nil {
		return nil, err
	}
	if err := input.validate(phoneRegion); err != nil {
		return nil, err
	}
	contact := GuestContact{
		Name:        input.Name,
		Email:       input.Email,
		MobilePhone: input.MobilePhone,
		Wechat:      input.Wechat,
		GuestId:     guestId,
	}
	if err := db.WithContext(ctx).Create(&contact).Error; err != nil {
		return nil, err
	}
	return &contact, nil
}

func UpdateGuestContact(ctx context.Context, db *gorm.DB, id int, input *NewGuestContact, phoneRegion string) (*GuestContact, error) {
	contact, err := GetGuestContact(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(phoneRegion); err != nil {
		return nil, err
	}
	err = db.WithContext(ctx).Model(contact).Updates(map[string]interface{}{
		"name":         input.Name,
		"email":        input.Email,
		"mobile_phone": input.MobilePhone,
		"wechat":       input.Wechat,
	}).Error
	if err != nil {
		return nil, err
	}
	return GetGuestContact(ctx, db, id)
}

func GetGuestContact(ctx context.Context, db *gorm.DB, id int) (*GuestContact, error) {
	return utils.FetchSingleModel[GuestContact](ctx, db, id)
}

func ListGuestContacts(ctx context.Context, db *gorm.DB, guestId int) ([]*GuestContact, error) {
	var results []*GuestContact
	err := db.WithContext(ctx).Where("guest_id = ?", guestId).Order("id").Find(&results).Error
	return results, err
}
