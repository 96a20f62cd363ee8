package upload

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/pixeon-io/pixeon/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// pngHeader builds only the signature and IHDR chunk, enough for
// DecodeConfig, so oversized dimensions do not need a real image.
func pngHeader(w, h uint32) []byte {
	var chunk bytes.Buffer
	chunk.WriteString("IHDR")
	binary.Write(&chunk, binary.BigEndian, w)
	binary.Write(&chunk, binary.BigEndian, h)
	chunk.Write([]byte{8, 2, 0, 0, 0})

	var buf bytes.Buffer
	buf.Write([]byte("\x89PNG\r\n\x1a\n"))
	binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(chunk.Bytes())
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk.Bytes()))
	return buf.Bytes()
}

func TestValidate(t *testing.T) {
	v := NewValidator(10)
	mb := int64(1024 * 1024)

	tests := []struct {
		name        string
		contentType string
		size        int64
		width       int
		height      int
		wantErr     string
	}{
		{name: "jpeg", contentType: "image/jpeg", size: mb, width: 640, height: 480},
		{name: "png", contentType: "image/png", size: mb, width: 640, height: 480},
		{name: "jpg alias", contentType: "image/jpg", size: mb, width: 640, height: 480},
		{name: "exactly the size limit", contentType: "image/png", size: 10 * mb, width: 1, height: 1},
		{name: "exactly the dimension limit", contentType: "image/png", size: mb, width: 10000, height: 10000},
		{name: "text file", contentType: "text/plain", size: mb, width: 640, height: 480, wantErr: "invalid file type"},
		{name: "gif", contentType: "image/gif", size: mb, width: 640, height: 480, wantErr: "invalid file type"},
		{name: "too large", contentType: "image/png", size: 10*mb + 1, width: 640, height: 480, wantErr: "file too large"},
		{name: "too wide", contentType: "image/png", size: mb, width: 10001, height: 480, wantErr: "image dimensions too large"},
		{name: "too tall", contentType: "image/png", size: mb, width: 640, height: 10001, wantErr: "image dimensions too large"},
		{name: "type checked before size", contentType: "text/plain", size: 20 * mb, width: 640, height: 480, wantErr: "invalid file type"},
		{name: "size checked before dimensions", contentType: "image/png", size: 20 * mb, width: 20000, height: 480, wantErr: "file too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.contentType, tt.size, tt.width, tt.height)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, common.ErrValidation)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInspect(t *testing.T) {
	v := NewValidator(10)

	info, err := v.Inspect("image/png; charset=binary", pngBytes(t, 32, 16))
	require.NoError(t, err)
	assert.Equal(t, "image/png", info.ContentType)
	assert.Equal(t, 32, info.Width)
	assert.Equal(t, 16, info.Height)
	assert.Positive(t, info.Size)
}

func TestInspectRejects(t *testing.T) {
	v := NewValidator(1)

	_, err := v.Inspect("text/plain", []byte("hello"))
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Contains(t, err.Error(), "invalid file type")

	_, err = v.Inspect("image/png", []byte("not an image"))
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, "invalid image file", common.Message(err, ""))

	_, err = v.Inspect("image/png", nil)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = v.Inspect("image/png", make([]byte, 1024*1024+1))
	assert.Contains(t, err.Error(), "file too large")

	_, err = v.Inspect("image/png", pngHeader(10001, 10))
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Contains(t, err.Error(), "image dimensions too large")
}
