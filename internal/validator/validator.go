// Package validator provides input validation and sanitization functions
// for uploaded attachments.
package validator

import (
	"errors"
	"mime"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	apperrors "github.com/welldanyogia/webrana-cms-backend/internal/errors"
)

// Validation errors
var (
	ErrEmptyInput       = errors.New("input cannot be empty")
	ErrFileTooLarge     = errors.New("file exceeds size limit")
	ErrBlockedExt       = errors.New("file extension is blocked")
	ErrDisallowedType   = errors.New("file type is not allowed")
	ErrContentMismatch  = errors.New("file content does not match its extension")
	ErrInvalidCharacter = errors.New("input contains invalid characters")
	ErrInputTooLong     = errors.New("input exceeds maximum length")
)

// BlockedExtensions contains file extensions that are never accepted
var BlockedExtensions = map[string]bool{
	".exe": true, ".bat": true, ".cmd": true, ".com": true,
	".pif": true, ".scr": true, ".vbs": true, ".js": true,
	".jar": true, ".ps1": true, ".sh": true, ".bash": true,
	".msi": true, ".dll": true, ".sys": true, ".svg": true,
	".html": true, ".htm": true, ".php": true,
}

const oleStorage = "application/x-ole-storage"

// AllowedTypes maps an accepted extension to the MIME types its content may
// sniff as. The first entry is the canonical type stored for the extension.
var AllowedTypes = map[string][]string{
	".jpg":  {"image/jpeg", "image/jpg", "image/pjpeg"},
	".jpeg": {"image/jpeg", "image/jpg", "image/pjpeg"},
	".png":  {"image/png"},
	".gif":  {"image/gif"},
	".webp": {"image/webp"},
	".bmp":  {"image/bmp", "image/x-ms-bmp"},
	".tif":  {"image/tiff"},
	".tiff": {"image/tiff"},
	".pdf":  {"application/pdf"},
	".doc":  {"application/msword", oleStorage},
	".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	".xls":  {"application/vnd.ms-excel", oleStorage},
	".xlsx": {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	".ppt":  {"application/vnd.ms-powerpoint", oleStorage},
	".pptx": {"application/vnd.openxmlformats-officedocument.presentationml.presentation"},
	".txt":  {"text/plain"},
	".csv":  {"text/csv", "text/plain", "application/csv", "application/vnd.ms-excel"},
	".zip":  {"application/zip", "application/x-zip-compressed"},
	".mp4":  {"video/mp4"},
	".mp3":  {"audio/mpeg", "audio/mp3"},
}

// genericDeclaredTypes are client-declared types that carry no information
var genericDeclaredTypes = map[string]bool{
	"":                         true,
	"application/octet-stream": true,
	"binary/octet-stream":      true,
}

var relationTypeRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,49}$`)

// Upload is the accepted shape of a validated file
type Upload struct {
	FileName    string
	Extension   string
	ContentType string
}

func invalid(cause error, format string, args ...any) error {
	err := apperrors.NewValidationError(format, args...)
	err.Cause = cause
	return err
}

// ValidateUpload checks the payload against the size ceiling, the extension
// allowlist and the sniffed content type. Every rejection is a validation error.
func ValidateUpload(filename, declaredType string, content []byte, maxSize int64) (*Upload, error) {
	name := SanitizeFilename(filename)
	ext := strings.ToLower(filepath.Ext(name))

	if len(content) == 0 {
		return nil, invalid(ErrEmptyInput, "file %q is empty", name)
	}
	if maxSize > 0 && int64(len(content)) > maxSize {
		return nil, invalid(ErrFileTooLarge, "file %q is %s, limit is %s",
			name, humanize.IBytes(uint64(len(content))), humanize.IBytes(uint64(maxSize)))
	}
	if BlockedExtensions[ext] {
		return nil, invalid(ErrBlockedExt, "extension %q is blocked", ext)
	}

	allowed, ok := AllowedTypes[ext]
	if !ok {
		return nil, invalid(ErrDisallowedType, "extension %q is not allowed", ext)
	}

	if declared, _, err := mime.ParseMediaType(declaredType); err == nil && !genericDeclaredTypes[declared] {
		if !contains(allowed, declared) {
			return nil, invalid(ErrDisallowedType, "content type %q does not match extension %q", declared, ext)
		}
	} else if err != nil && declaredType != "" {
		return nil, invalid(ErrDisallowedType, "content type %q is malformed", declaredType)
	}

	detected := mimetype.Detect(content)
	if !matches(detected, allowed) {
		return nil, invalid(ErrContentMismatch, "content of %q sniffed as %s, expected %s",
			name, detected.String(), allowed[0])
	}

	return &Upload{
		FileName:    name,
		Extension:   ext,
		ContentType: allowed[0],
	}, nil
}

// matches reports whether the detected type or one of its parents is allowed
func matches(detected *mimetype.MIME, allowed []string) bool {
	for m := detected; m != nil; m = m.Parent() {
		for _, a := range allowed {
			if m.Is(a) {
				return true
			}
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ValidateRelationType validates a relation tag such as "image" or "content"
func ValidateRelationType(relationType string) error {
	if relationType == "" {
		return invalid(ErrEmptyInput, "relation type is required")
	}
	if !relationTypeRegex.MatchString(relationType) {
		return invalid(ErrInvalidCharacter, "relation type %q is invalid", relationType)
	}
	return nil
}

// SanitizeFilename removes dangerous characters from filename.
// Prevents path traversal and removes control characters.
func SanitizeFilename(filename string) string {
	// Keep only the last path element
	filename = strings.ReplaceAll(filename, "\\", "/")
	if i := strings.LastIndex(filename, "/"); i >= 0 {
		filename = filename[i+1:]
	}
	filename = strings.ReplaceAll(filename, "..", "_")

	// Remove control characters (ASCII 0-31 and 127), null bytes included
	filename = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, filename)

	// Trim whitespace
	filename = strings.TrimSpace(filename)

	// Limit length to 255 characters (common filesystem limit)
	if utf8.RuneCountInString(filename) > 255 {
		runes := []rune(filename)
		filename = string(runes[:255])
	}

	// Fallback for empty filename
	if filename == "" {
		return "unnamed"
	}

	return filename
}

// SanitizeString removes potentially dangerous characters and enforces length limits.
// Removes control characters and trims whitespace.
func SanitizeString(input string, maxLength int) string {
	// Remove control characters (ASCII 0-31 and 127)
	input = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, input)

	// Trim whitespace
	input = strings.TrimSpace(input)

	// Enforce maximum length if specified
	if maxLength > 0 && utf8.RuneCountInString(input) > maxLength {
		runes := []rune(input)
		input = string(runes[:maxLength])
	}

	return input
}
