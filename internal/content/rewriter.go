// Package content rewrites attachment references inside rich-text bodies.
package content

import (
	"context"
	"log/slog"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/welldanyogia/webrana-cms-backend/internal/attachment"
	apperrors "github.com/welldanyogia/webrana-cms-backend/internal/errors"
	"github.com/welldanyogia/webrana-cms-backend/internal/models"
	"github.com/welldanyogia/webrana-cms-backend/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Marker attributes. Both are processing-only and removed once a reference resolves.
const (
	AttachmentIDAttr = "data-attachment-id"
	TempFileAttr     = "data-temp-file"
)

// DefaultMaxContentSize is used when Config.MaxContentSize is unset
const DefaultMaxContentSize = 2 << 20

const referenceSelector = "[" + AttachmentIDAttr + "], [" + TempFileAttr + "], [src], [href]"

var (
	fullDocumentRegex = regexp.MustCompile(`(?i)<!doctype|<html[\s>]`)
	tempFileNameRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.[a-z0-9]{1,5}$`)
)

// srcTags take their reference in src; everything else uses href
var srcTags = map[string]bool{
	"img": true, "video": true, "audio": true, "source": true,
	"iframe": true, "embed": true, "track": true,
}

// Config holds configuration for the rewriter
type Config struct {
	MaxContentSize int64
}

// Processor defines the content operations used by entity modules
type Processor interface {
	// ProcessContent associates every attachment the body references to owner
	// and rewrites the references to canonical public URLs.
	ProcessContent(ctx context.Context, body string, owner models.Owner) (string, []models.Attachment, error)

	// ReconstructContent replaces canonical references with id placeholders for editing
	ReconstructContent(ctx context.Context, body string) (string, error)

	// ExtractAttachmentIDs returns the ids referenced by marker attributes
	ExtractAttachmentIDs(body string) []uint

	// DeleteFiles deletes every attachment of owner
	DeleteFiles(ctx context.Context, owner models.Owner) (int, error)
}

// Rewriter implements Processor over the attachment service.
// Every call parses its own DOM; a Rewriter is safe for concurrent use.
type Rewriter struct {
	attachments attachment.Service
	layout      attachment.Layout
	config      Config
	logger      *slog.Logger
}

// NewRewriter creates a new Rewriter
func NewRewriter(attachments attachment.Service, config Config, logger *slog.Logger) *Rewriter {
	if config.MaxContentSize <= 0 {
		config.MaxContentSize = DefaultMaxContentSize
	}
	return &Rewriter{
		attachments: attachments,
		layout:      attachments.Layout(),
		config:      config,
		logger:      logger.With(slog.String("component", "content")),
	}
}

// reference is one element pointing at an attachment
type reference struct {
	sel   *goquery.Selection
	attr  string // src or href; empty when the element carries only a marker
	value string
}

// resolution caches lookups within one call
type resolution struct {
	owner   models.Owner
	byID    map[uint]*models.Attachment
	byTemp  map[string]*models.Attachment
	missing map[string]bool
	entries []models.Attachment

	// ownerFiles maps stored file names of the owner's rows, loaded on first use
	ownerFiles map[string]uint
}

// ProcessContent resolves marker and temp-area references, associates them
// to owner as content images and rewrites them to canonical URLs.
// Unresolvable references are logged and left untouched. A body that
// cannot be parsed is returned unchanged.
func (r *Rewriter) ProcessContent(ctx context.Context, body string, owner models.Owner) (string, []models.Attachment, error) {
	ctx, span := observability.StartSpan(ctx, "process_content",
		append(observability.OwnerAttributes(owner), attribute.Int("content.size", len(body)))...)
	defer span.End()

	if err := r.checkSize(body); err != nil {
		observability.RecordError(span, err)
		return "", nil, err
	}
	if strings.TrimSpace(body) == "" {
		return body, nil, nil
	}

	doc, err := parse(body)
	if err != nil {
		r.logger.Warn("content could not be parsed, keeping original",
			slog.String("owner", owner.Key()),
			slog.String("error", apperrors.NewParseError(err).Error()))
		return body, nil, nil
	}

	res := &resolution{
		owner:   owner,
		byID:    make(map[uint]*models.Attachment),
		byTemp:  make(map[string]*models.Attachment),
		missing: make(map[string]bool),
	}
	changed := false

	for _, ref := range r.references(doc) {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}

		att, key, err := r.resolve(ctx, ref, res)
		if err != nil {
			observability.RecordError(span, err)
			return "", nil, err
		}
		if att == nil {
			if key != "" && !res.missing[key] {
				res.missing[key] = true
				r.logger.Warn("unresolved attachment reference left untouched",
					slog.String("reference", key),
					slog.String("owner", owner.Key()))
			}
			continue
		}

		if r.rewrite(ref, att) {
			changed = true
		}
	}

	span.SetAttributes(attribute.Int("content.attachments", len(res.entries)))
	if !changed {
		return body, res.entries, nil
	}

	out, err := render(doc)
	if err != nil {
		r.logger.Warn("content could not be rendered, keeping original",
			slog.String("owner", owner.Key()),
			slog.String("error", err.Error()))
		return body, res.entries, nil
	}
	return out, res.entries, nil
}

// references collects the elements that may point at an attachment
func (r *Rewriter) references(doc *goquery.Document) []reference {
	var refs []reference
	doc.Find(referenceSelector).Each(func(_ int, sel *goquery.Selection) {
		ref := reference{sel: sel}
		if v, ok := sel.Attr("src"); ok {
			ref.attr, ref.value = "src", v
		} else if v, ok := sel.Attr("href"); ok {
			ref.attr, ref.value = "href", v
		}
		refs = append(refs, ref)
	})
	return refs
}

// resolve finds, and associates to the owner, the attachment a reference
// points at. It returns a nil attachment with a lookup key for misses and a
// nil attachment with an empty key for references that are not attachments.
func (r *Rewriter) resolve(ctx context.Context, ref reference, res *resolution) (*models.Attachment, string, error) {
	if raw, ok := ref.sel.Attr(AttachmentIDAttr); ok {
		id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
		if err != nil || id == 0 {
			return nil, AttachmentIDAttr + "=" + raw, nil
		}
		att, err := r.associateID(ctx, uint(id), res)
		return att, AttachmentIDAttr + "=" + raw, err
	}

	if id, ok := r.layout.IDFromPlaceholder(ref.value); ok {
		att, err := r.associateID(ctx, id, res)
		return att, ref.value, err
	}

	var tempPath string
	if name, ok := ref.sel.Attr(TempFileAttr); ok {
		tempPath = path.Join(r.layout.TempDir, strings.TrimSpace(name))
	} else if p, ok := r.layout.PathFromURL(ref.value); ok && r.layout.IsTemp(p) {
		tempPath = p
	} else {
		return nil, "", nil
	}

	if att, ok := res.byTemp[tempPath]; ok {
		return att, tempPath, nil
	}

	id, err := r.findTemporary(ctx, tempPath)
	if err == nil && id == 0 {
		// Already moved, by an earlier reference or an earlier call for this owner
		id, err = r.findMoved(ctx, tempPath, res)
	}
	if err != nil || id == 0 {
		return nil, tempPath, err
	}
	att, err := r.associateID(ctx, id, res)
	if att != nil {
		res.byTemp[tempPath] = att
	}
	return att, tempPath, err
}

// findMoved matches a temp reference's stored file name against the owner's rows
func (r *Rewriter) findMoved(ctx context.Context, tempPath string, res *resolution) (uint, error) {
	name := path.Base(tempPath)
	if !tempFileNameRegex.MatchString(name) {
		return 0, nil
	}
	if res.ownerFiles == nil {
		rows, err := r.attachments.GetByEntity(ctx, res.owner)
		if err != nil {
			return 0, err
		}
		res.ownerFiles = make(map[string]uint, len(rows))
		for _, row := range rows {
			if row.State == models.StateAssociated {
				res.ownerFiles[path.Base(row.FilePath)] = row.ID
			}
		}
	}
	return res.ownerFiles[name], nil
}

// findTemporary looks a temp reference up by exact path, then by file name.
// It returns 0 when no temporary row matches.
func (r *Rewriter) findTemporary(ctx context.Context, tempPath string) (uint, error) {
	att, err := r.attachments.FindByFilePath(ctx, tempPath)
	switch {
	case err == nil && att.IsTemporary:
		return att.ID, nil
	case err != nil && !apperrors.IsNotFound(err):
		return 0, err
	}

	name := path.Base(tempPath)
	if !tempFileNameRegex.MatchString(name) {
		return 0, nil
	}
	att, err = r.attachments.FindTemporaryByFileName(ctx, name)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return att.ID, nil
}

// associateID promotes id to the owner as a content image and re-reads it
func (r *Rewriter) associateID(ctx context.Context, id uint, res *resolution) (*models.Attachment, error) {
	if att, ok := res.byID[id]; ok {
		return att, nil
	}

	ok, err := r.attachments.AssociateAttachments(ctx, []uint{id}, res.owner,
		attachment.AssociateOptions{IsContentImage: true})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	att, err := r.attachments.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if att.State != models.StateAssociated || !att.IsOwnedBy(res.owner) {
		// Moved by a concurrent request; its final path is not known yet
		r.logger.Warn("attachment is in flight, reference left untouched",
			slog.Uint64("attachment_id", uint64(id)),
			slog.String("owner", res.owner.Key()))
		return nil, nil
	}

	res.byID[id] = att
	res.entries = append(res.entries, *att)
	return att, nil
}

// rewrite points the element at the attachment's canonical URL and strips
// processing markers. It reports whether the element changed.
func (r *Rewriter) rewrite(ref reference, att *models.Attachment) bool {
	changed := false

	attr := ref.attr
	if attr == "" {
		if srcTags[goquery.NodeName(ref.sel)] {
			attr = "src"
		} else if goquery.NodeName(ref.sel) == "a" {
			attr = "href"
		}
	}
	if attr != "" {
		canonical := r.layout.RebaseURL(ref.value, att.FilePath)
		if canonical != ref.value {
			ref.sel.SetAttr(attr, canonical)
			changed = true
		}
	}

	// Marker-only elements keep their marker so the reference is not lost
	if attr == "" {
		return changed
	}
	for _, marker := range []string{AttachmentIDAttr, TempFileAttr} {
		if _, ok := ref.sel.Attr(marker); ok {
			ref.sel.RemoveAttr(marker)
			changed = true
		}
	}
	return changed
}

// ReconstructContent turns canonical public references into id placeholders
// carrying the attachment marker. Lookups are best-effort: failures are
// logged and the reference is kept.
func (r *Rewriter) ReconstructContent(ctx context.Context, body string) (string, error) {
	ctx, span := observability.StartSpan(ctx, "reconstruct_content", attribute.Int("content.size", len(body)))
	defer span.End()

	if err := r.checkSize(body); err != nil {
		observability.RecordError(span, err)
		return "", err
	}
	if strings.TrimSpace(body) == "" {
		return body, nil
	}

	doc, err := parse(body)
	if err != nil {
		r.logger.Warn("content could not be parsed, keeping original", slog.String("error", err.Error()))
		return body, nil
	}

	changed := false
	doc.Find("[src], [href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if ctx.Err() != nil {
			return false
		}

		attr := "src"
		value, ok := sel.Attr(attr)
		if !ok {
			attr = "href"
			value, _ = sel.Attr(attr)
		}

		filePath, ok := r.layout.PathFromURL(value)
		if !ok {
			return true
		}
		att, err := r.attachments.FindByFilePath(ctx, filePath)
		if err != nil {
			if !apperrors.IsNotFound(err) {
				r.logger.Warn("failed to look up attachment for reconstruction",
					slog.String("file_path", filePath),
					slog.String("error", err.Error()))
			}
			return true
		}

		sel.SetAttr(attr, r.layout.PlaceholderURL(att.ID))
		sel.SetAttr(AttachmentIDAttr, strconv.FormatUint(uint64(att.ID), 10))
		changed = true
		return true
	})

	if !changed {
		return body, nil
	}
	out, err := render(doc)
	if err != nil {
		r.logger.Warn("content could not be rendered, keeping original", slog.String("error", err.Error()))
		return body, nil
	}
	return out, nil
}

// ExtractAttachmentIDs returns the distinct marker ids of body in document order
func (r *Rewriter) ExtractAttachmentIDs(body string) []uint {
	return ExtractAttachmentIDs(body)
}

// DeleteFiles deletes every attachment of owner
func (r *Rewriter) DeleteFiles(ctx context.Context, owner models.Owner) (int, error) {
	return r.attachments.DeleteFiles(ctx, owner)
}

func (r *Rewriter) checkSize(body string) error {
	if int64(len(body)) > r.config.MaxContentSize {
		return apperrors.NewValidationError("content is %d bytes, limit is %d", len(body), r.config.MaxContentSize)
	}
	return nil
}

// ExtractAttachmentIDs returns the distinct marker ids of body in document order.
// It never mutates its input.
func ExtractAttachmentIDs(body string) []uint {
	if strings.TrimSpace(body) == "" {
		return nil
	}
	doc, err := parse(body)
	if err != nil {
		return nil
	}

	var ids []uint
	doc.Find("[" + AttachmentIDAttr + "]").Each(func(_ int, sel *goquery.Selection) {
		raw, _ := sel.Attr(AttachmentIDAttr)
		if id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64); err == nil && id > 0 {
			ids = append(ids, uint(id))
		}
	})
	return MergeAttachmentIDs(ids)
}

// MergeAttachmentIDs unions id sets, keeping first-seen order
func MergeAttachmentIDs(sets ...[]uint) []uint {
	seen := make(map[uint]struct{})
	var out []uint
	for _, set := range sets {
		for _, id := range set {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// parse reads body as a full document when it declares one and otherwise
// as a fragment in body context, so leading head-level elements such as
// <style> or <meta> stay where the author put them.
func parse(body string) (*goquery.Document, error) {
	if fullDocumentRegex.MatchString(body) {
		return goquery.NewDocumentFromReader(strings.NewReader(body))
	}

	container := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(body), container)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		container.AppendChild(n)
	}
	return goquery.NewDocumentFromNode(container), nil
}

// render serializes a fragment as its inner HTML and a full document as is
func render(doc *goquery.Document) (string, error) {
	root := doc.Nodes[0]
	if root.Type == html.DocumentNode {
		return doc.Html()
	}
	var b strings.Builder
	for n := root.FirstChild; n != nil; n = n.NextSibling {
		if err := html.Render(&b, n); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}
