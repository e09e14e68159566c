// Package qr renders the account recovery secret as a QR code and reads
// it back from a photo or screenshot.
package qr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	"image/png"
	"io"

	"github.com/boombuler/barcode"
	bqr "github.com/boombuler/barcode/qr"
	"github.com/makiuchi-d/gozxing"
	zqr "github.com/makiuchi-d/gozxing/qrcode"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder
)

// DefaultSize is the edge length in pixels of the rendered code,
// quiet zone included.
const DefaultSize = 512

// ErrNoCode is returned when an image holds no readable QR code.
var ErrNoCode = errors.New("no valid QR code found in image")

// Encode renders content as a size x size QR code image with a white
// quiet zone of one module around it.
func Encode(content string, size int) (image.Image, error) {
	if content == "" {
		return nil, errors.New("qr: empty content")
	}
	if size <= 0 {
		size = DefaultSize
	}
	code, err := bqr.Encode(content, bqr.M, bqr.Auto)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}

	// Leave room for one module of margin on every side.
	modules := code.Bounds().Dx()
	inner := size * modules / (modules + 2)
	scaled, err := barcode.Scale(code, inner, inner)
	if err != nil {
		return nil, fmt.Errorf("qr scale: %w", err)
	}

	canvas := image.NewGray(image.Rect(0, 0, size, size))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	off := (size - inner) / 2
	draw.Draw(canvas, image.Rect(off, off, off+inner, off+inner), scaled, scaled.Bounds().Min, draw.Src)
	return canvas, nil
}

// EncodePNG renders content as PNG bytes.
func EncodePNG(content string, size int) ([]byte, error) {
	img, err := Encode(content, size)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("qr png: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads the first QR code found in an encoded image.
func Decode(r io.Reader) (string, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCode, err)
	}
	return DecodeImage(img)
}

// DecodeImage reads the first QR code found in img.
func DecodeImage(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCode, err)
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := zqr.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCode, err)
	}
	if result.GetText() == "" {
		return "", ErrNoCode
	}
	return result.GetText(), nil
}
