package models

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mmdatafocus/mpms/utils"
)

const DateLayout = "2006-01-02"

type Case struct {
	ID           int        `gorm:"primary_key" json:"id"`
	CaseName     string     `gorm:"size:60;not null" json:"case_name"`
	Address      string     `gorm:"size:50;not null" json:"address"`
	StartDate    time.Time  `gorm:"not null;index" json:"start_date"`
	WantEndDate  *time.Time `json:"want_end_date"`
	ContractCode string     `gorm:"size:20" json:"contract_code"`
	GuestId      int        `gorm:"index;not null" json:"guest_id"`
	UserId       int        `gorm:"index;not null" json:"user_id"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCase struct {
	CaseName     string `form:"case_name" validate:"required,max=60"`
	Address      string `form:"address" validate:"required,max=50"`
	StartDate    string `form:"start_date"`
	WantEndDate  string `form:"want_end_date"`
	ContractCode string `form:"contract_code" validate:"max=20"`
}

var caseMessages = fieldMessages{
	"case_name.max":     "专案名称请控制在60字以内",
	"address.max":       "交货地点请控制在50字以内",
	"contract_code.max": "合同编号请控制在20字以内",
}

// CreateCase(user, guestId, input) (Case,error)
// GetCase(id) (Case,error)
// ListCases(page) (Page[Case],error)
// ListCasesByGuest(guestId) ([]Case,error)

func (input *NewCase) validate(now time.Time) (start time.Time, wantEnd *time.Time, err error) {
	input.CaseName = strings.TrimSpace(input.CaseName)
	input.Address = strings.TrimSpace(input.Address)
	input.ContractCode = strings.TrimSpace(input.ContractCode)

	errs := validateInput(input, caseMessages)
	start = now.UTC()
	if s := strings.TrimSpace(input.StartDate); s != "" {
		d, perr := time.ParseInLocation(DateLayout, s, time.UTC)
		if perr != nil {
			errs.Add("start_date", "日期格式应为YYYY-MM-DD")
		} else {
			start = d
		}
	}
	if s := strings.TrimSpace(input.WantEndDate); s != "" {
		d, perr := time.ParseInLocation(DateLayout, s, time.UTC)
		if perr != nil {
			errs.Add("want_end_date", "日期格式应为YYYY-MM-DD")
		} else {
			wantEnd = &d
		}
	}
	return start, wantEnd, errs.errOrNil()
}

// CreateCase opens a case for an existing guest; the start date defaults to now.
func CreateCase(ctx context.Context, db *gorm.DB, user *User, guestId int, input *NewCase, now time.Time) (*Case, error) {
	if err := utils.ValidateResourceId[Guest](ctx, db, guestId); err != nil {
		return nil, err
	}
	start, wantEnd, err := input.validate(now)
	if err != nil {
		return nil, err
	}
	c := Case{
		CaseName:     input.CaseName,
		Address:      input.Address,
		StartDate:    start,
		WantEndDate:  wantEnd,
		ContractCode: input.ContractCode,
		GuestId:      guestId,
		UserId:       user.ID,
	}
	if err := db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func GetCase(ctx context.Context, db *gorm.DB, id int) (*Case, error) {
	return utils.FetchSingleModel[Case](ctx, db, id)
}

// ListCases pages all cases ordered by start date, oldest first.
func ListCases(ctx context.Context, db *gorm.DB, page int, perPage int) (*Page[Case], error) {
	return Paginate[Case](db.WithContext(ctx).Model(&Case{}), "start_date ASC, id ASC", page, perPage)
}

func ListCasesByGuest(ctx context.Context, db *gorm.DB, guestId int) ([]*Case, error) {
	var results []*Case
	err := db.WithContext(ctx).Where("guest_id = ?", guestId).Order("start_date ASC, id ASC").Find(&results).Error
	return results, err
}
