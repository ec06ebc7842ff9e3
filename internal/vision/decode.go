package vision

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrDecode is returned when a payload is not a decodable image.
var ErrDecode = errors.New("invalid image payload")

// Decoded is an inbound photo after base64 and image decoding.
type Decoded struct {
	Image  image.Image
	Data   []byte // raw encoded bytes, kept for archiving
	Format string // "jpeg", "png", ...
}

// ContentType returns the MIME type of the encoded bytes.
func (d *Decoded) ContentType() string {
	return "image/" + d.Format
}

// Limits bound an inbound photo. Zero fields are unlimited.
type Limits struct {
	MaxBytes  int
	MaxPixels int
}

// DecodeBase64 decodes a base64 image, optionally wrapped in a
// "data:image/...;base64," URI.
func DecodeBase64(payload string, lim Limits) (*Decoded, error) {
	s := strings.TrimSpace(payload)
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, fmt.Errorf("%w: malformed data URI", ErrDecode)
		}
		if !strings.Contains(s[:comma], ";base64") {
			return nil, fmt.Errorf("%w: data URI is not base64 encoded", ErrDecode)
		}
		s = s[comma+1:]
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}
	if lim.MaxBytes > 0 && base64.StdEncoding.DecodedLen(len(s)) > lim.MaxBytes+3 {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", ErrDecode, lim.MaxBytes)
	}

	data, err := decodeAnyBase64(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return DecodeBytes(data, lim)
}

// DecodeBytes decodes a raw JPEG, PNG, GIF, BMP or WebP file. The header is
// read first so oversized rasters are rejected before any pixel is allocated.
func DecodeBytes(data []byte, lim Limits) (*Decoded, error) {
	if lim.MaxBytes > 0 && len(data) > lim.MaxBytes {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", ErrDecode, lim.MaxBytes)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	if lim.MaxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(lim.MaxPixels) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, lim.MaxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}

	return &Decoded{Image: img, Data: data, Format: format}, nil
}

// decodeAnyBase64 accepts the standard and URL-safe alphabets, padded or not.
func decodeAnyBase64(s string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var firstErr error
	for _, enc := range encodings {
		data, err := enc.DecodeString(s)
		if err == nil {
			return data, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}
