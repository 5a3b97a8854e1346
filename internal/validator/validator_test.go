package validator

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/welldanyogia/webrana-cms-backend/internal/errors"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestValidateUpload_Accepts(t *testing.T) {
	tests := []struct {
		name         string
		filename     string
		declared     string
		content      []byte
		wantType     string
		wantFileName string
	}{
		{"png", "photo.png", "image/png", pngBytes(t), "image/png", "photo.png"},
		{"jpeg upper ext", "PHOTO.JPG", "image/jpeg", jpegBytes(t), "image/jpeg", "PHOTO.JPG"},
		{"jpeg without declared type", "a.jpeg", "", jpegBytes(t), "image/jpeg", "a.jpeg"},
		{"octet stream declared", "a.png", "application/octet-stream", pngBytes(t), "image/png", "a.png"},
		{"text", "notes.txt", "text/plain; charset=utf-8", []byte("hello world\n"), "text/plain", "notes.txt"},
		{"csv", "data.csv", "text/csv", []byte("a,b\n1,2\n"), "text/csv", "data.csv"},
		{"pdf", "doc.pdf", "application/pdf", []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n"), "application/pdf", "doc.pdf"},
		{"path stripped", "../../etc/photo.png", "image/png", pngBytes(t), "image/png", "photo.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upload, err := ValidateUpload(tt.filename, tt.declared, tt.content, 1<<20)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, upload.ContentType)
			assert.Equal(t, tt.wantFileName, upload.FileName)
		})
	}
}

func TestValidateUpload_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		declared string
		content  []byte
		maxSize  int64
		wantErr  error
	}{
		{"empty payload", "a.png", "image/png", nil, 1 << 20, ErrEmptyInput},
		{"too large", "a.png", "image/png", pngBytes(t), 10, ErrFileTooLarge},
		{"blocked extension", "run.exe", "", []byte("MZ"), 1 << 20, ErrBlockedExt},
		{"svg blocked", "logo.svg", "image/svg+xml", []byte("<svg></svg>"), 1 << 20, ErrBlockedExt},
		{"unknown extension", "archive.rar", "", []byte("Rar!"), 1 << 20, ErrDisallowedType},
		{"no extension", "README", "", []byte("hello"), 1 << 20, ErrDisallowedType},
		{"declared type mismatch", "a.png", "image/gif", pngBytes(t), 1 << 20, ErrDisallowedType},
		{"malformed declared type", "a.png", "image/", pngBytes(t), 1 << 20, ErrDisallowedType},
		{"content mismatch", "a.jpg", "image/jpeg", pngBytes(t), 1 << 20, ErrContentMismatch},
		{"script disguised as image", "a.png", "image/png", []byte("<?php echo 1; ?>"), 1 << 20, ErrContentMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateUpload(tt.filename, tt.declared, tt.content, tt.maxSize)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, apperrors.IsValidation(err))
		})
	}
}

func TestValidateUpload_TooLargeMessageIsHumanReadable(t *testing.T) {
	_, err := ValidateUpload("a.txt", "", bytes.Repeat([]byte("a"), 2048), 1024)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1.0 KiB")
}

func TestValidateRelationType(t *testing.T) {
	assert.NoError(t, ValidateRelationType("image"))
	assert.NoError(t, ValidateRelationType("content"))
	assert.NoError(t, ValidateRelationType("gallery_2"))

	assert.ErrorIs(t, ValidateRelationType(""), ErrEmptyInput)
	assert.ErrorIs(t, ValidateRelationType("Image"), ErrInvalidCharacter)
	assert.ErrorIs(t, ValidateRelationType("a b"), ErrInvalidCharacter)
	assert.ErrorIs(t, ValidateRelationType(strings.Repeat("a", 51)), ErrInvalidCharacter)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"normal filename", "document.pdf", "document.pdf"},
		{"path traversal", "../../../etc/passwd", "passwd"},
		{"windows path", "C:\\Users\\me\\photo.jpg", "photo.jpg"},
		{"null bytes", "file\x00name.txt", "filename.txt"},
		{"control characters", "file\x01\x02name.txt", "filename.txt"},
		{"double dots in name", "a..b.txt", "a_b.txt"},
		{"whitespace trimmed", "  spaced.txt  ", "spaced.txt"},
		{"empty becomes unnamed", "", "unnamed"},
		{"only separators", "///", "unnamed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFilename(tt.input))
		})
	}
}

func TestSanitizeFilename_LongFilename(t *testing.T) {
	longName := strings.Repeat("a", 300) + ".txt"
	result := SanitizeFilename(longName)
	assert.Equal(t, 255, len([]rune(result)))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello\x00 ", 0))
	assert.Equal(t, "hel", SanitizeString("hello", 3))
}
