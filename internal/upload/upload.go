// Package upload checks submitted images before anything is stored or
// sent to the detector.
package upload

import (
	"bytes"
	"image"
	_ "image/jpeg" // register decoders for DecodeConfig
	_ "image/png"
	"strings"

	"github.com/pixeon-io/pixeon/internal/common"
)

const MaxDimension = 10000

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/jpg":  true,
}

// ImageInfo is what the validator learned about an upload
type ImageInfo struct {
	ContentType string
	Size        int64
	Width       int
	Height      int
}

// Validator enforces the type, size and dimension limits.
type Validator struct {
	maxBytes int64
}

// NewValidator returns a Validator that rejects files larger than maxMB MiB.
func NewValidator(maxMB int) *Validator {
	return &Validator{maxBytes: int64(maxMB) * 1024 * 1024}
}

// MaxBytes is the largest accepted upload
func (v *Validator) MaxBytes() int64 {
	return v.maxBytes
}

// Validate checks type, then size, then dimensions. The first failure wins.
func (v *Validator) Validate(contentType string, size int64, width, height int) error {
	if err := v.checkType(contentType); err != nil {
		return err
	}
	if err := v.checkSize(size); err != nil {
		return err
	}
	return checkDimensions(width, height)
}

// Inspect validates data in the same order as Validate. Dimensions come from
// the image header only; pixels are never decoded.
func (v *Validator) Inspect(contentType string, data []byte) (*ImageInfo, error) {
	if err := v.checkType(contentType); err != nil {
		return nil, err
	}
	size := int64(len(data))
	if err := v.checkSize(size); err != nil {
		return nil, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, common.Wrap(common.ErrValidation, err, "invalid image file")
	}
	if err := checkDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	return &ImageInfo{
		ContentType: normalize(contentType),
		Size:        size,
		Width:       cfg.Width,
		Height:      cfg.Height,
	}, nil
}

func (v *Validator) checkType(contentType string) error {
	if !allowedTypes[normalize(contentType)] {
		return common.Newf(common.ErrValidation, "invalid file type. allowed types: image/jpeg, image/png")
	}
	return nil
}

func (v *Validator) checkSize(size int64) error {
	if size > v.maxBytes {
		return common.Newf(common.ErrValidation, "file too large. maximum size: %dMB", v.maxBytes/(1024*1024))
	}
	if size == 0 {
		return common.Newf(common.ErrValidation, "empty file")
	}
	return nil
}

func checkDimensions(width, height int) error {
	if width > MaxDimension || height > MaxDimension {
		return common.Newf(common.ErrValidation, "image dimensions too large. maximum: %dx%d", MaxDimension, MaxDimension)
	}
	if width <= 0 || height <= 0 {
		return common.Newf(common.ErrValidation, "invalid image dimensions")
	}
	return nil
}

// normalize drops parameters such as "; charset=binary"
func normalize(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
