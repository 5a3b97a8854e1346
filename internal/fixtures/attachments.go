package fixtures

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/welldanyogia/webrana-cms-backend/internal/models"
)

// AttachmentBuilder creates test Attachment instances with fluent API
type AttachmentBuilder struct {
	attachment models.Attachment
}

// NewAttachmentBuilder creates a temporary image attachment with a unique temp path
func NewAttachmentBuilder() *AttachmentBuilder {
	now := time.Now()
	path := fmt.Sprintf("temp/%s/%s.jpg", now.Format("2006/01/02"), uuid.NewString())
	return &AttachmentBuilder{
		attachment: models.Attachment{
			FilePath:         path,
			URL:              "/uploads/" + path,
			OriginalFileName: "photo.jpg",
			FileSize:         2048,
			ContentType:      "image/jpeg",
			RelationType:     "image",
			IsTemporary:      true,
			State:            models.StateTemporary,
			CreatedDate:      now,
			ModifiedDate:     now,
		},
	}
}

// WithID sets the attachment ID
func (b *AttachmentBuilder) WithID(id uint) *AttachmentBuilder {
	b.attachment.ID = id
	return b
}

// WithFilePath sets the stored path and the URL derived from it
func (b *AttachmentBuilder) WithFilePath(path string) *AttachmentBuilder {
	b.attachment.FilePath = path
	b.attachment.URL = "/uploads/" + path
	return b
}

// WithRelationType sets the relation type
func (b *AttachmentBuilder) WithRelationType(relationType string) *AttachmentBuilder {
	b.attachment.RelationType = relationType
	return b
}

// WithContentType sets the content type
func (b *AttachmentBuilder) WithContentType(contentType string) *AttachmentBuilder {
	b.attachment.ContentType = contentType
	return b
}

// WithOwner associates the attachment to owner under "<type>/<id>/"
func (b *AttachmentBuilder) WithOwner(owner models.Owner) *AttachmentBuilder {
	objectType := string(owner.Type)
	objectID := owner.ID
	b.attachment.ObjectType = &objectType
	b.attachment.ObjectID = &objectID
	b.attachment.IsTemporary = false
	b.attachment.State = models.StateAssociated
	return b.WithFilePath(fmt.Sprintf("%s/%d/%s.jpg", owner.Type, owner.ID, uuid.NewString()))
}

// WithPrimary sets the primary flag
func (b *AttachmentBuilder) WithPrimary(primary bool) *AttachmentBuilder {
	b.attachment.IsPrimary = primary
	return b
}

// WithOrderIndex sets the display order
func (b *AttachmentBuilder) WithOrderIndex(index int) *AttachmentBuilder {
	b.attachment.OrderIndex = index
	return b
}

// WithState sets the lifecycle state
func (b *AttachmentBuilder) WithState(state models.AttachmentState) *AttachmentBuilder {
	b.attachment.State = state
	return b
}

// WithPendingPath sets the target of an in-flight move
func (b *AttachmentBuilder) WithPendingPath(path string) *AttachmentBuilder {
	b.attachment.PendingPath = path
	return b
}

// WithCreatedDate sets the creation timestamp
func (b *AttachmentBuilder) WithCreatedDate(t time.Time) *AttachmentBuilder {
	b.attachment.CreatedDate = t
	return b
}

// WithModifiedDate sets the modification timestamp
func (b *AttachmentBuilder) WithModifiedDate(t time.Time) *AttachmentBuilder {
	b.attachment.ModifiedDate = t
	return b
}

// Build returns the constructed Attachment
func (b *AttachmentBuilder) Build() *models.Attachment {
	att := b.attachment
	return &att
}

// BuildValue returns the constructed Attachment as a value (not pointer)
func (b *AttachmentBuilder) BuildValue() models.Attachment {
	return b.attachment
}
