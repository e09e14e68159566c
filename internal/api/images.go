package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register decoder
	"image/jpeg"
	_ "image/png" // register decoder
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/delvicier/fixagent/pkg/models"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder
)

// Backend upload limits.
const (
	MaxImageBytes  = 500 * 1024
	MaxImageWidth  = 1280
	MaxImageHeight = 720
	imageQuality   = 85
	minQuality     = 40
	maxInputBytes  = 32 << 20
)

// ErrImageTooLarge is returned when an image cannot be brought under
// MaxImageBytes.
var ErrImageTooLarge = errors.New("image too large after compression")

// UploadImage sends an image as multipart field "file". Anything that is
// not already a JPEG within MaxImageBytes is decoded, scaled to fit
// MaxImageWidth x MaxImageHeight and re-encoded as JPEG.
func (c *Client) UploadImage(ctx context.Context, name string, r io.Reader) (*Result[models.ImageUploadResponse], error) {
	data, err := io.ReadAll(io.LimitReader(r, maxInputBytes))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	jpg, err := PrepareJPEG(data)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, jpegName(name)))
	h.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create multipart: %w", err)
	}
	if _, err := part.Write(jpg); err != nil {
		return nil, fmt.Errorf("write multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	return send[models.ImageUploadResponse](ctx, c, request{
		method:      http.MethodPost,
		path:        "images/image",
		raw:         &body,
		contentType: mw.FormDataContentType(),
	})
}

// ImageURL resolves a path returned by UploadImage against the stored
// base URL. It returns "" when no base URL is stored.
func (c *Client) ImageURL(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	base := c.source.BaseURL()
	if base == "" {
		return ""
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}

// PrepareJPEG returns data unchanged when it is already an acceptable
// JPEG, and a downscaled re-encoding otherwise.
func PrepareJPEG(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidRequest)
	}
	if http.DetectContentType(data) == "image/jpeg" && len(data) <= MaxImageBytes {
		if cfg, err := jpeg.DecodeConfig(bytes.NewReader(data)); err == nil &&
			cfg.Width <= MaxImageWidth && cfg.Height <= MaxImageHeight {
			return data, nil
		}
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", ErrInvalidRequest, err)
	}

	img := fit(src, MaxImageWidth, MaxImageHeight)
	for attempt := 0; attempt < 4; attempt++ {
		for q := imageQuality; q >= minQuality; q -= 15 {
			var buf bytes.Buffer
			if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
				return nil, fmt.Errorf("encode jpeg: %w", err)
			}
			if buf.Len() <= MaxImageBytes {
				return buf.Bytes(), nil
			}
		}
		b := img.Bounds()
		img = fit(img, b.Dx()/2, b.Dy()/2)
	}
	return nil, ErrImageTooLarge
}

// fit scales src down, keeping its aspect ratio, so it fits in maxW x maxH.
func fit(src image.Image, maxW, maxH int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH {
		return src
	}
	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw, nh := max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func jpegName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "image"
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".jpg"
}
