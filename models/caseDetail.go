package models

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mmdatafocus/mpms/utils"
)

type ProcessSection string

const (
	ProcessSectionSBK     ProcessSection = "SBK"
	ProcessSectionCT1     ProcessSection = "CT1"
	ProcessSectionPA      ProcessSection = "PA"
	ProcessSectionCT2     ProcessSection = "CT2"
	ProcessSectionBonding ProcessSection = "Bonding"
	ProcessSectionLCM     ProcessSection = "LCM"
	ProcessSectionOCA     ProcessSection = "OCA"
	ProcessSectionOther   ProcessSection = "其他"
)

var ProcessSections = []ProcessSection{
	ProcessSectionSBK,
	ProcessSectionCT1,
	ProcessSectionPA,
	ProcessSectionCT2,
	ProcessSectionBonding,
	ProcessSectionLCM,
	ProcessSectionOCA,
	ProcessSectionOther,
}

var hundred = decimal.NewFromInt(100)

type CaseDetail struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	ProcessSection      ProcessSection  `gorm:"size:10;not null;default:All" json:"process_section"`
	EqName              string          `gorm:"size:20;not null" json:"eq_name"`
	EqType              string          `gorm:"size:20;not null" json:"eq_type"`
	ContractCode        string          `gorm:"size:20" json:"contract_code"`
	Price               decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"price"`
	CurrencyUnit        string          `gorm:"size:5;not null" json:"currency_unit"`
	Quantity            int             `gorm:"not null" json:"quantity"`
	PayAfterContract    decimal.Decimal `gorm:"type:decimal(9,4);not null" json:"pay_after_contract"`
	PayBeforeDeliver    decimal.Decimal `gorm:"type:decimal(9,4);not null" json:"pay_before_deliver"`
	PayAfterSetup       decimal.Decimal `gorm:"type:decimal(9,4);not null" json:"pay_after_setup"`
	PayAfterReceive     decimal.Decimal `gorm:"type:decimal(9,4);not null" json:"pay_after_receive"`
	PayDaysAfterReceive int             `gorm:"not null" json:"pay_days_after_receive"`
	UserId              int             `gorm:"index;not null" json:"user_id"`
	CaseId              int             `gorm:"index;not null" json:"case_id"`
	VendorId            int             `gorm:"index;not null" json:"vendor_id"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewCaseDetail is bound from the add-detail form; numbers arrive as text
// and are parsed in validate.
type NewCaseDetail struct {
	ProcessSection      string `form:"process_section" validate:"required,oneof=SBK CT1 PA CT2 Bonding LCM OCA 其他"`
	EqName              string `form:"eq_name" validate:"required,max=20"`
	EqType              string `form:"eq_type" validate:"required,max=20"`
	ContractCode        string `form:"contract_code" validate:"required,max=20"`
	Price               string `form:"price" validate:"required"`
	CurrencyUnit        string `form:"currency_unit" validate:"required,max=5"`
	Quantity            string `form:"quantity" validate:"required"`
	PayAfterContract    string `form:"pay_after_contract" validate:"required"`
	PayBeforeDeliver    string `form:"pay_before_deliver" validate:"required"`
	PayAfterSetup       string `form:"pay_after_setup" validate:"required"`
	PayAfterReceive     string `form:"pay_after_receive" validate:"required"`
	PayDaysAfterReceive string `form:"pay_days_after_receive" validate:"required"`
}

var caseDetailMessages = fieldMessages{
	"process_section":                 "请选择制程段别",
	"eq_name.required":                "输入设备名称",
	"eq_type.required":                "输入设备型号",
	"contract_code.required":          "输入合同编号",
	"price.required":                  "价格",
	"currency_unit.required":          "币别",
	"quantity.required":               "数量",
	"pay_after_contract.required":     "首付款",
	"pay_before_deliver.required":     "发货款",
	"pay_after_setup.required":        "装机完成款",
	"pay_after_receive.required":      "验收款",
	"pay_days_after_receive.required": "天数",
}

// CreateCaseDetail(user, caseId, vendorId, input) (CaseDetail,error)
// DeleteCaseDetail(user, caseId, id) (CaseDetail,error) <Owner>
// ListCaseDetails(caseId, page) (Page[CaseDetail],error)
// AllCaseDetails(caseId) ([]CaseDetail,error)

func (input *NewCaseDetail) validate() (*CaseDetail, error) {
	for _, f := range []*string{
		&input.ProcessSection, &input.EqName, &input.EqType, &input.ContractCode,
		&input.Price, &input.CurrencyUnit, &input.Quantity,
		&input.PayAfterContract, &input.PayBeforeDeliver, &input.PayAfterSetup,
		&input.PayAfterReceive, &input.PayDaysAfterReceive,
	} {
		*f = strings.TrimSpace(*f)
	}

	errs := validateInput(input, caseDetailMessages)
	detail := &CaseDetail{
		ProcessSection: ProcessSection(input.ProcessSection),
		EqName:         input.EqName,
		EqType:         input.EqType,
		ContractCode:   input.ContractCode,
		CurrencyUnit:   input.CurrencyUnit,
	}

	detail.Price = parseDecimalField(errs, "price", input.Price, decimal.Zero, nil, "价格须为不小于0的数字")
	ratioMessage := "比例须为0到100之间的数字"
	detail.PayAfterContract = parseDecimalField(errs, "pay_after_contract", input.PayAfterContract, decimal.Zero, &hundred, ratioMessage)
	detail.PayBeforeDeliver = parseDecimalField(errs, "pay_before_deliver", input.PayBeforeDeliver, decimal.Zero, &hundred, ratioMessage)
	detail.PayAfterSetup = parseDecimalField(errs, "pay_after_setup", input.PayAfterSetup, decimal.Zero, &hundred, ratioMessage)
	detail.PayAfterReceive = parseDecimalField(errs, "pay_after_receive", input.PayAfterReceive, decimal.Zero, &hundred, ratioMessage)
	detail.Quantity = parseIntField(errs, "quantity", input.Quantity, 1, "数量须为不小于1的整数")
	detail.PayDaysAfterReceive = parseIntField(errs, "pay_days_after_receive", input.PayDaysAfterReceive, 0, "天数须为不小于0的整数")

	if err := errs.errOrNil(); err != nil {
		return nil, err
	}
	return detail, nil
}

// parseDecimalField checks min <= value (<= max when max is set) and
// records message on failure.
func parseDecimalField(errs ValidationErrors, field string, raw string, min decimal.Decimal, max *decimal.Decimal, message string) decimal.Decimal {
	if _, failed := errs[field]; failed {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.LessThan(min) || (max != nil && d.GreaterThan(*max)) {
		errs.Add(field, message)
		return decimal.Zero
	}
	return d
}

func parseIntField(errs ValidationErrors, field string, raw string, min int, message string) int {
	if _, failed := errs[field]; failed {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min {
		errs.Add(field, message)
		return 0
	}
	return n
}

// CreateCaseDetail adds a line item to caseId for vendorId, recorded as
// created by user.
func CreateCaseDetail(ctx context.Context, db *gorm.DB, user *User, caseId int, vendorId int, input *NewCaseDetail) (*CaseDetail, error) {
	if err := utils.ValidateResourceId[Case](ctx, db, caseId); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Vendor](ctx, db, vendorId); err != nil {
		return nil, err
	}
	detail, err := input.validate()
	if err != nil {
		return nil, err
	}
	detail.UserId = user.ID
	detail.CaseId = caseId
	detail.VendorId = vendorId
	if err := db.WithContext(ctx).Create(detail).Error; err != nil {
		return nil, err
	}
	return detail, nil
}

func GetCaseDetail(ctx context.Context, db *gorm.DB, id int) (*CaseDetail, error) {
	return utils.FetchSingleModel[CaseDetail](ctx, db, id)
}

// DeleteCaseDetail only lets the detail's creator delete it. A detail that
// belongs to another case is reported as not found.
func DeleteCaseDetail(ctx context.Context, db *gorm.DB, user *User, caseId int, id int) (*CaseDetail, error) {
	detail, err := GetCaseDetail(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if detail.CaseId != caseId {
		return nil, utils.ErrorRecordNotFound
	}
	if detail.UserId != user.ID {
		return nil, ErrForbidden
	}
	result := db.WithContext(ctx).Delete(detail)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return detail, nil
}

func ListCaseDetails(ctx context.Context, db *gorm.DB, caseId int, page int, perPage int) (*Page[CaseDetail], error) {
	q := db.WithContext(ctx).Model(&CaseDetail{}).Where("case_id = ?", caseId)
	return Paginate[CaseDetail](q, "id", page, perPage)
}

// AllCaseDetails feeds the spreadsheet export.
func AllCaseDetails(ctx context.Context, db *gorm.DB, caseId int) ([]*CaseDetail, error) {
	if err := utils.ValidateResourceId[Case](ctx, db, caseId); err != nil {
		return nil, err
	}
	var results []*CaseDetail
	err := db.WithContext(ctx).Where("case_id = ?", caseId).Order("id").Find(&results).Error
	return results, err
}

// Total is price multiplied by quantity.
func (d CaseDetail) Total() decimal.Decimal {
	return d.Price.Mul(decimal.NewFromInt(int64(d.Quantity)))
}

// RatioSum adds the four payment ratios; a complete schedule sums to 100.
func (d CaseDetail) RatioSum() decimal.Decimal {
	return d.PayAfterContract.Add(d.PayBeforeDeliver).Add(d.PayAfterSetup).Add(d.PayAfterReceive)
}

func (d CaseDetail) ScheduleComplete() bool {
	return d.RatioSum().Equal(hundred)
}
