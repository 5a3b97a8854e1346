package attachment

import (
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/welldanyogia/webrana-cms-backend/internal/models"
	"github.com/welldanyogia/webrana-cms-backend/internal/storage"
)

// DefaultPlaceholderPrefix is the id-based read path used in editor content
const DefaultPlaceholderPrefix = "/api/attachments"

// Layout maps attachments to storage paths and public URLs.
//
// Temporary files live under TempDir/YYYY/MM/DD, owned files under
// <owner type>/<owner id>. Public URLs are PublicPrefix + "/" + path.
type Layout struct {
	PublicPrefix      string
	TempDir           string
	PlaceholderPrefix string
}

// NewLayout creates a Layout with normalized prefixes
func NewLayout(publicPrefix, tempDir string) Layout {
	return Layout{
		PublicPrefix:      "/" + strings.Trim(publicPrefix, "/"),
		TempDir:           strings.Trim(tempDir, "/"),
		PlaceholderPrefix: DefaultPlaceholderPrefix,
	}
}

// TempPath returns a fresh date-partitioned path in the temp area
func (l Layout) TempPath(now time.Time, ext string) string {
	return path.Join(l.TempDir, now.Format("2006/01/02"), uuid.NewString()+ext)
}

// OwnerPath returns the permanent path of name in the owner's area
func (l Layout) OwnerPath(owner models.Owner, name string) string {
	return path.Join(string(owner.Type), strconv.FormatUint(uint64(owner.ID), 10), name)
}

// URL returns the canonical public URL of a stored file
func (l Layout) URL(filePath string) string {
	return l.PublicPrefix + "/" + filePath
}

// IsTemp reports whether filePath lies in the temp area
func (l Layout) IsTemp(filePath string) bool {
	return strings.HasPrefix(filePath, l.TempDir+"/")
}

// PathFromURL extracts the storage path from a public reference, absolute or
// relative. It returns false for references outside the public prefix.
func (l Layout) PathFromURL(ref string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", false
	}
	rest, ok := strings.CutPrefix(u.Path, l.PublicPrefix+"/")
	if !ok {
		return "", false
	}
	clean, err := storage.CleanPath(rest)
	if err != nil {
		return "", false
	}
	return clean, true
}

// RebaseURL replaces the path of ref with the public URL of filePath,
// keeping the scheme and host of an absolute reference.
func (l Layout) RebaseURL(ref, filePath string) string {
	public := l.URL(filePath)
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil || u.Host == "" {
		return public
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: public}).String()
}

// PlaceholderURL returns the id-based read path of an attachment
func (l Layout) PlaceholderURL(id uint) string {
	return l.PlaceholderPrefix + "/" + strconv.FormatUint(uint64(id), 10) + "/content"
}

// IDFromPlaceholder parses an id out of a PlaceholderURL reference
func (l Layout) IDFromPlaceholder(ref string) (uint, bool) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return 0, false
	}
	rest, ok := strings.CutPrefix(u.Path, l.PlaceholderPrefix+"/")
	if !ok {
		return 0, false
	}
	idPart, ok := strings.CutSuffix(rest, "/content")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
