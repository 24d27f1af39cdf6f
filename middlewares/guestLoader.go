package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"

	"github.com/mmdatafocus/mpms/models"
)

type guestReader struct {
	db *gorm.DB
}

func (r *guestReader) getGuests(ctx context.Context, ids []int) []*dataloader.Result[*models.Guest] {
	var results []models.Guest
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.Guest](len(ids), err)
	}
	return generateLoaderResults(results, ids)
}

func GetGuest(ctx context.Context, id int) (*models.Guest, error) {
	loaders := For(ctx)
	return loaders.guestLoader.Load(ctx, id)()
}

func GetGuests(ctx context.Context, ids []int) ([]*models.Guest, []error) {
	loaders := For(ctx)
	return loaders.guestLoader.LoadMany(ctx, ids)()
}
