package models

import (
	"time"

	"gorm.io/gorm"
)

// AttachmentState tracks where an attachment is in its lifecycle.
// Soft deletion is tracked separately through DeletedAt.
type AttachmentState string

const (
	StateTemporary  AttachmentState = "temporary"
	StateMoving     AttachmentState = "moving"
	StateAssociated AttachmentState = "associated"
)

// Attachment represents one uploaded file plus its metadata
type Attachment struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	FilePath         string          `gorm:"size:500;not null;uniqueIndex:idx_attachments_file_path,where:deleted_at IS NULL" json:"file_path"`
	URL              string          `gorm:"column:url;size:600;not null" json:"url"`
	OriginalFileName string          `gorm:"size:255" json:"original_file_name"`
	FileSize         int64           `json:"file_size"`
	ContentType      string          `gorm:"size:100" json:"content_type"`
	ObjectType       *string         `gorm:"size:50;index:idx_attachments_owner;uniqueIndex:idx_attachments_primary,where:is_primary = true AND deleted_at IS NULL" json:"object_type,omitempty"`
	ObjectID         *uint           `gorm:"index:idx_attachments_owner;uniqueIndex:idx_attachments_primary,where:is_primary = true AND deleted_at IS NULL" json:"object_id,omitempty"`
	RelationType     string          `gorm:"size:50;not null" json:"relation_type"`
	IsPrimary        bool            `gorm:"not null" json:"is_primary"`
	IsContentImage   bool            `gorm:"not null" json:"is_content_image"`
	IsTemporary      bool            `gorm:"not null;index" json:"is_temporary"`
	State            AttachmentState `gorm:"size:20;not null;index" json:"state"`
	PendingPath      string          `gorm:"size:500" json:"-"`
	OrderIndex       int             `gorm:"not null" json:"order_index"`
	CreatedDate      time.Time       `gorm:"autoCreateTime;index" json:"created_date"`
	ModifiedDate     time.Time       `gorm:"autoUpdateTime" json:"modified_date"`
	DeletedAt        gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName returns the table name for Attachment
func (Attachment) TableName() string {
	return "attachments"
}

// Owner returns the owning entity, if the attachment has one.
func (a *Attachment) Owner() (Owner, bool) {
	if a.ObjectType == nil || a.ObjectID == nil {
		return Owner{}, false
	}
	return Owner{Type: OwnerType(*a.ObjectType), ID: *a.ObjectID}, true
}

// IsOwnedBy reports whether the attachment is associated to owner.
func (a *Attachment) IsOwnedBy(owner Owner) bool {
	current, ok := a.Owner()
	return ok && current == owner
}

// IsDeleted reports whether the row has been soft-deleted
func (a *Attachment) IsDeleted() bool {
	return a.DeletedAt.Valid
}
