package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"

	"github.com/mmdatafocus/mpms/models"
)

type vendorReader struct {
	db *gorm.DB
}

func (r *vendorReader) getVendors(ctx context.Context, ids []int) []*dataloader.Result[*models.Vendor] {
	var results []models.Vendor
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.Vendor](len(ids), err)
	}
	return generateLoaderResults(results, ids)
}

func GetVendor(ctx context.Context, id int) (*models.Vendor, error) {
	loaders := For(ctx)
	return loaders.vendorLoader.Load(ctx, id)()
}

func GetVendors(ctx context.Context, ids []int) ([]*models.Vendor, []error) {
	loaders := For(ctx)
	return loaders.vendorLoader.LoadMany(ctx, ids)()
}
