package utils

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

func testPNG(t *testing.T, w int, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 0x80, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestProcessAvatar(t *testing.T) {
	processed, err := ProcessAvatar(bytes.NewReader(testPNG(t, 800, 400)), "Me.PNG")
	if err != nil {
		t.Fatalf("process avatar: %v", err)
	}
	if !strings.HasSuffix(processed.FileName, ".png") || len(processed.FileName) != 20 {
		t.Fatalf("unexpected file name %q", processed.FileName)
	}
	if processed.ContentType != "image/png" {
		t.Fatalf("unexpected content type %q", processed.ContentType)
	}

	thumb, _, err := image.DecodeConfig(bytes.NewReader(processed.Thumbnail))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if thumb.Width != 100 || thumb.Height != 50 {
		t.Fatalf("expected a 100x50 thumbnail, got %dx%d", thumb.Width, thumb.Height)
	}
	preview, _, err := image.DecodeConfig(bytes.NewReader(processed.Preview))
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if preview.Width != 500 || preview.Height != 250 {
		t.Fatalf("expected a 500x250 preview, got %dx%d", preview.Width, preview.Height)
	}
}

func TestProcessAvatarRejectsOtherFormats(t *testing.T) {
	if _, err := ProcessAvatar(bytes.NewReader(testPNG(t, 10, 10)), "me.gif"); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage for gif, got %v", err)
	}
	if _, err := ProcessAvatar(bytes.NewReader(testPNG(t, 10, 10)), "me.jpg"); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage for mismatched content, got %v", err)
	}
	if _, err := ProcessAvatar(strings.NewReader("plain text"), "me.png"); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage for garbage, got %v", err)
	}
	if !IsAllowedImageName("a.JPEG") || IsAllowedImageName("a.bmp") {
		t.Fatalf("unexpected allowed names")
	}
}
