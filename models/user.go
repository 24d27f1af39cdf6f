package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mmdatafocus/mpms/config"
	"github.com/mmdatafocus/mpms/utils"
)

const DefaultGroup = "CH"

type User struct {
	ID           int       `gorm:"primary_key" json:"id"`
	Username     string    `gorm:"size:20;not null;unique" json:"username"`
	Email        string    `gorm:"size:50;not null;unique" json:"email"`
	AccountImage string    `gorm:"size:50;not null;default:default.jpg" json:"account_image"`
	Group        string    `gorm:"column:group_name;size:50;not null;default:CH" json:"group"`
	// never serialized; cached copies of a User carry no hash
	Password     string    `gorm:"size:100;not null" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username        string `form:"username" validate:"required,min=6,max=20"`
	Email           string `form:"email" validate:"required,email,max=50"`
	Password        string `form:"password" validate:"required,min=6,max=20"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
	Group           string `form:"group" validate:"required,max=50"`
}

type LoginInput struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
	Remember bool   `form:"remember"`
}

type UpdateAccountInput struct {
	Username string `form:"username" validate:"required,min=6,max=20"`
	Email    string `form:"email" validate:"required,email,max=50"`
	Group    string `form:"group" validate:"required,max=50"`
	// set by the handler once the uploaded picture is stored
	AccountImage string `form:"-"`
}

type ChangePasswordInput struct {
	OldPassword     string `form:"old_password" validate:"required"`
	Password        string `form:"new_password" validate:"required,min=6,max=20"`
	ConfirmPassword string `form:"confirm_new_password" validate:"required,eqfield=Password"`
}

type RequestResetInput struct {
	Email string `form:"email" validate:"required,email"`
}

type ResetPasswordInput struct {
	Password        string `form:"password" validate:"required,min=6,max=20"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
}

var accountMessages = fieldMessages{
	"username.required":         "请输入字符",
	"username":                  "字符长度请控制在6～20位",
	"email.required":            "请输入邮箱",
	"email":                     "请确认邮箱格式",
	"password.required":         "要输入密码才能注册哟～",
	"password":                  "密码长度请控制在6～20位。",
	"confirm_password.required": "要输入密码才能注册哟～",
	"confirm_password.eqfield":  "两次密码输入不一致哟～",
	"group":                     "选择公司",
}

var loginMessages = fieldMessages{
	"email.required":    "请输入邮箱",
	"email":             "邮箱格式不正确",
	"password.required": "请输入密码",
}

var changePasswordMessages = fieldMessages{
	"old_password.required":         "请输入原密码",
	"new_password.required":         "请输入新密码～",
	"new_password":                  "密码长度请控制在6～20位。",
	"confirm_new_password.required": "请再次输入新密码～",
	"confirm_new_password.eqfield":  "两次密码输入不一致哟～",
}

var resetPasswordMessages = fieldMessages{
	"password.required":         "请输入密码～",
	"password":                  "密码长度请控制在6～20位。",
	"confirm_password.required": "请输入密码～",
	"confirm_password.eqfield":  "两次密码输入不一致哟～",
}

/*
caches:
	User:$id
*/

func UserCacheKey(id int) string {
	return fmt.Sprintf("User:%d", id)
}

func (user User) RemoveInstanceRedis(ctx context.Context, cache *config.RedisCache) error {
	return cache.Remove(ctx, UserCacheKey(user.ID))
}

// Register(input) (User,error)
// Authenticate(input) (User,error)
// UpdateAccount(user, input) (User,error) <Owner>
// ChangePassword(user, input) error <Owner>
// IssueResetToken(input) (User,token,error)
// VerifyResetToken(token) (User,error)
// ResetPassword(user, input) error

func (input *NewUser) validate(ctx context.Context, db *gorm.DB) error {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)
	input.Group = strings.TrimSpace(input.Group)

	errs := validateInput(input, accountMessages)
	if err := checkUnique[User](ctx, db, errs, "username", "username", input.Username, 0, "该用户名已经被使用"); err != nil {
		return err
	}
	if err := checkUnique[User](ctx, db, errs, "email", "email", input.Email, 0, "该邮箱已经被注册了"); err != nil {
		return err
	}
	return errs.errOrNil()
}

func Register(ctx context.Context, db *gorm.DB, input *NewUser) (*User, error) {
	if err := input.validate(ctx, db); err != nil {
		return nil, err
	}
	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := User{
		Username:     input.Username,
		Email:        input.Email,
		Group:        input.Group,
		AccountImage: utils.DefaultAvatar,
		Password:     string(hashed),
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, translateWriteError(err)
	}
	return &user, nil
}

// Authenticate reports an unknown email as a field error and a wrong
// password as ErrInvalidCredentials.
func Authenticate(ctx context.Context, db *gorm.DB, input *LoginInput) (*User, error) {
	input.Email = strings.TrimSpace(input.Email)
	if errs := validateInput(input, loginMessages); len(errs) > 0 {
		return nil, errs
	}
	user, err := GetUserByEmail(ctx, db, input.Email)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, ValidationErrors{"email": "无此用户"}
		}
		return nil, err
	}
	if err := utils.ComparePassword(user.Password, input.Password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func GetUser(ctx context.Context, db *gorm.DB, id int) (*User, error) {
	return utils.FetchSingleModel[User](ctx, db, id)
}

// GetUserCached reads User:$id from redis before falling back to the database.
func GetUserCached(ctx context.Context, db *gorm.DB, cache *config.RedisCache, id int) (*User, error) {
	var user User
	exists, err := cache.GetObject(ctx, UserCacheKey(id), &user)
	if err == nil && exists {
		return &user, nil
	}
	result, err := GetUser(ctx, db, id)
	if err != nil {
		return nil, err
	}
	_ = cache.SetObject(ctx, UserCacheKey(id), result, time.Hour)
	return result, nil
}

func GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error) {
	return utils.FetchModelWhere[User](ctx, db, "email = ?", email)
}

// Validate checks the profile fields for user; uniqueness is only checked
// for values that changed.
func (input *UpdateAccountInput) Validate(ctx context.Context, db *gorm.DB, user *User) error {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)
	input.Group = strings.TrimSpace(input.Group)

	errs := validateInput(input, accountMessages)
	if input.Username != user.Username {
		if err := checkUnique[User](ctx, db, errs, "username", "username", input.Username, user.ID, "该用户名已经被使用"); err != nil {
			return err
		}
	}
	if input.Email != user.Email {
		if err := checkUnique[User](ctx, db, errs, "email", "email", input.Email, user.ID, "该邮箱已经被注册了"); err != nil {
			return err
		}
	}
	return errs.errOrNil()
}

func UpdateAccount(ctx context.Context, db *gorm.DB, user *User, input *UpdateAccountInput) (*User, error) {
	if err := input.Validate(ctx, db, user); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"username":   input.Username,
		"email":      input.Email,
		"group_name": input.Group,
	}
	if input.AccountImage != "" {
		updates["account_image"] = input.AccountImage
	}
	if err := db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, translateWriteError(err)
	}
	return GetUser(ctx, db, user.ID)
}

// ChangePassword reads the current hash from the database, since the
// session user may come from the cache without it.
func ChangePassword(ctx context.Context, db *gorm.DB, user *User, input *ChangePasswordInput) error {
	current, err := passwordHash(ctx, db, user.ID)
	if err != nil {
		return err
	}
	errs := validateInput(input, changePasswordMessages)
	if input.OldPassword != "" && utils.ComparePassword(current, input.OldPassword) != nil {
		errs.Add("old_password", "密码错误")
	}
	if input.Password != "" && utils.ComparePassword(current, input.Password) == nil {
		errs.Add("new_password", "与原密码一致")
	}
	if err := errs.errOrNil(); err != nil {
		return err
	}
	return setPassword(ctx, db, user, input.Password)
}

// IssueResetToken signs a reset token for the account registered under
// input.Email.
func IssueResetToken(ctx context.Context, db *gorm.DB, secret string, input *RequestResetInput, lifetime time.Duration, now time.Time) (*User, string, error) {
	input.Email = strings.TrimSpace(input.Email)
	if errs := validateInput(input, fieldMessages{"email.required": "请输入邮箱"}); len(errs) > 0 {
		return nil, "", errs
	}
	user, err := GetUserByEmail(ctx, db, input.Email)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, "", ValidationErrors{"email": "无此用户！！"}
		}
		return nil, "", err
	}
	token, err := utils.NewResetToken(secret, user.ID, user.Password, lifetime, now)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// VerifyResetToken returns the token's user only while the token is
// unexpired and the password it was issued against is still current.
func VerifyResetToken(ctx context.Context, db *gorm.DB, secret string, token string, now time.Time) (*User, error) {
	claim, err := utils.ParseResetToken(secret, token, now)
	if err != nil {
		return nil, err
	}
	user, err := GetUser(ctx, db, claim.UserID)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.ErrTokenInvalid
		}
		return nil, err
	}
	if utils.PasswordFingerprint(user.Password) != claim.Fingerprint {
		return nil, utils.ErrTokenInvalid
	}
	return user, nil
}

func ResetPassword(ctx context.Context, db *gorm.DB, user *User, input *ResetPasswordInput) error {
	if errs := validateInput(input, resetPasswordMessages); len(errs) > 0 {
		return errs
	}
	return setPassword(ctx, db, user, input.Password)
}

func passwordHash(ctx context.Context, db *gorm.DB, userId int) (string, error) {
	var hashes []string
	if err := db.WithContext(ctx).Model(&User{}).Where("id = ?", userId).Limit(1).Pluck("password", &hashes).Error; err != nil {
		return "", err
	}
	if len(hashes) == 0 {
		return "", utils.ErrorRecordNotFound
	}
	return hashes[0], nil
}

func setPassword(ctx context.Context, db *gorm.DB, user *User, password string) error {
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Model(user).Update("password", string(hashed)).Error; err != nil {
		return err
	}
	user.Password = string(hashed)
	return nil
}

// checkUnique records message on field when column already holds value in
// another row. It is skipped when the field already failed validation.
func checkUnique[T any](ctx context.Context, db *gorm.DB, errs ValidationErrors, field string, column string, value string, exceptId int, message string) error {
	if _, failed := errs[field]; failed || value == "" {
		return nil
	}
	err := utils.ValidateUnique[T](ctx, db, column, value, exceptId)
	if errors.Is(err, utils.ErrDuplicateValue) {
		errs.Add(field, message)
		return nil
	}
	return err
}
