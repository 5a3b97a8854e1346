package attachment

import (
	"time"

	"github.com/welldanyogia/webrana-cms-backend/internal/models"
)

// EventType names an attachment lifecycle event
type EventType string

const (
	EventAssociated EventType = "attachment.associated"
	EventPrimary    EventType = "attachment.primary"
	EventDeleted    EventType = "attachment.deleted"
)

// Event is published after an owner's attachments change
type Event struct {
	Type         EventType    `json:"type"`
	Owner        models.Owner `json:"owner"`
	AttachmentID uint         `json:"attachment_id"`
	FilePath     string       `json:"file_path,omitempty"`
	URL          string       `json:"url,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
}

// Notifier receives lifecycle events. Publish must not block.
type Notifier interface {
	Publish(event Event)
}

type nopNotifier struct{}

func (nopNotifier) Publish(Event) {}
