package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mmdatafocus/mpms/models"
	"github.com/mmdatafocus/mpms/utils"
)

const avatarField = "picture"

// saveAvatar stores the optional uploaded picture and returns its file
// name, or "" when none was sent.
func (app *App) saveAvatar(c *gin.Context) (string, error) {
	header, err := c.FormFile(avatarField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", models.ValidationErrors{avatarField: "图片大小请控制在5MB以内"}
		}
		return "", err
	}
	if header.Size > utils.MaxUploadSizeBytes {
		return "", models.ValidationErrors{avatarField: "图片大小请控制在5MB以内"}
	}
	if !utils.IsAllowedImageName(header.Filename) {
		return "", models.ValidationErrors{avatarField: "仅支持jpg、jpeg、png格式"}
	}

	file, err := header.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	processed, err := utils.ProcessAvatar(file, header.Filename)
	if err != nil {
		if errors.Is(err, utils.ErrUnsupportedImage) {
			return "", models.ValidationErrors{avatarField: "仅支持jpg、jpeg、png格式"}
		}
		return "", err
	}

	ctx := c.Request.Context()
	if err := app.images.Save(ctx, utils.AvatarDir, processed.FileName, processed.Thumbnail, processed.ContentType); err != nil {
		return "", err
	}
	if err := app.images.Save(ctx, utils.PreviewDir, processed.FileName, processed.Preview, processed.ContentType); err != nil {
		return "", err
	}
	return processed.FileName, nil
}
