package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	MaxUploadSizeBytes int64 = 5 * 1024 * 1024

	AvatarDir  = "account_pics"
	PreviewDir = "upload_pic"

	DefaultAvatar = "default.jpg"

	avatarSize  = 100
	previewSize = 500
)

var ErrUnsupportedImage = errors.New("unsupported image format")

// extension -> decoded format name reported by image.DecodeConfig
var imageExtensions = map[string]string{
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".png":  "png",
}

var imageMimeTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
}

// ProcessedImage is an uploaded picture resized for the account page.
type ProcessedImage struct {
	FileName    string
	ContentType string
	Thumbnail   []byte
	Preview     []byte
}

func IsAllowedImageName(name string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ProcessAvatar decodes a jpg/jpeg/png upload and produces a 100x100 and a
// 500x500 bounded copy with the aspect ratio kept. The stored file name is
// 16 random hex characters plus the original extension.
func ProcessAvatar(r io.Reader, originalName string) (*ProcessedImage, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	wantFormat, ok := imageExtensions[ext]
	if !ok {
		return nil, ErrUnsupportedImage
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSizeBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > MaxUploadSizeBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", MaxUploadSizeBytes)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || format != wantFormat {
		return nil, ErrUnsupportedImage
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, ErrUnsupportedImage
	}

	encFormat, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return nil, ErrUnsupportedImage
	}
	thumb, err := encodeImage(imaging.Fit(img, avatarSize, avatarSize, imaging.Lanczos), encFormat)
	if err != nil {
		return nil, err
	}
	preview, err := encodeImage(imaging.Fit(img, previewSize, previewSize, imaging.Lanczos), encFormat)
	if err != nil {
		return nil, err
	}

	name, err := RandomHex(8)
	if err != nil {
		return nil, err
	}
	return &ProcessedImage{
		FileName:    name + ext,
		ContentType: imageMimeTypes[format],
		Thumbnail:   thumb,
		Preview:     preview,
	}, nil
}

// DefaultAvatarImage renders the placeholder shown for new accounts.
func DefaultAvatarImage() ([]byte, error) {
	img := imaging.New(avatarSize, avatarSize, color.NRGBA{R: 0xc8, G: 0xcd, B: 0xd2, A: 0xff})
	return encodeImage(img, imaging.JPEG)
}

func encodeImage(img image.Image, format imaging.Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(90)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
