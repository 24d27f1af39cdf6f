package middlewares

import (
	"context"
	"reflect"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"

	"github.com/mmdatafocus/mpms/models"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders batch the guest, vendor and user lookups of listing pages.
type Loaders struct {
	guestLoader  *dataloader.Loader[int, *models.Guest]
	vendorLoader *dataloader.Loader[int, *models.Vendor]
	userLoader   *dataloader.Loader[int, *models.User]
}

func NewLoaders(conn *gorm.DB) *Loaders {
	guestReader := &guestReader{db: conn}
	vendorReader := &vendorReader{db: conn}
	userReader := &userReader{db: conn}

	return &Loaders{
		guestLoader:  dataloader.NewBatchedLoader(guestReader.getGuests, dataloader.WithWait[int, *models.Guest](time.Millisecond)),
		vendorLoader: dataloader.NewBatchedLoader(vendorReader.getVendors, dataloader.WithWait[int, *models.Vendor](time.Millisecond)),
		userLoader:   dataloader.NewBatchedLoader(userReader.getUsers, dataloader.WithWait[int, *models.User](time.Millisecond)),
	}
}

func LoaderMiddleware(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := NewLoaders(conn)
		ctx := context.WithValue(c.Request.Context(), loadersKey, loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func For(ctx context.Context) *Loaders {
	return ctx.Value(loadersKey).(*Loaders)
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

// turns results from db into dataloader results
// (T must be a struct)
func generateLoaderResults[T models.Data](results []T, ids []int) []*dataloader.Result[*T] {
	resultMap := make(map[int]T)
	var resultZero T
	resultMap[0] = resultZero.GetDefault(0).(T)
	for _, result := range results {
		resultMap[result.GetId()] = result
	}

	loaderResults := make([]*dataloader.Result[*T], 0, len(ids))
	for _, id := range ids {
		data := resultMap[id]
		if reflect.ValueOf(data).IsZero() {
			data = data.GetDefault(id).(T)
		}
		loaderResults = append(loaderResults, &dataloader.Result[*T]{Data: &data})
	}
	return loaderResults
}
