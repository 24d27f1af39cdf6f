package utils

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// fetch model from db
// (may return ErrorRecordNotFound)
func FetchSingleModel[T any](ctx context.Context, db *gorm.DB, id int) (*T, error) {
	var result T
	err := db.WithContext(ctx).First(&result, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// FetchModelWhere fetches the first row matching condition, ordered by id.
func FetchModelWhere[T any](ctx context.Context, db *gorm.DB, condition string, value ...interface{}) (*T, error) {
	var result T
	err := db.WithContext(ctx).Where(condition, value...).Order("id").First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}
