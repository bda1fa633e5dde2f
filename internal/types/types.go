package types

import (
	"context"

	"github.com/xhad/inkwell/internal/models"
)

// Core interfaces
type Uploader interface {
	Upload(ctx context.Context, payload string) (string, error)
}

type EntryStore interface {
	CreateEntry(ctx context.Context, entry *models.Entry) (string, error)
	CreateImage(ctx context.Context, image *models.ImageRecord) (string, error)
}

type TagStore interface {
	// FindTag reports whether a tag named exactly name exists and returns its id.
	FindTag(ctx context.Context, name string) (string, bool, error)
	CreateTag(ctx context.Context, name string) (string, error)
	EntryTags(ctx context.Context, entryID string) ([]string, error)
	SetEntryTags(ctx context.Context, entryID string, tagIDs []string) error
}

type RecordStore interface {
	EntryStore
	TagStore
	Close()
}

type Notifier interface {
	Notify(n models.Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n models.Notification)

func (f NotifierFunc) Notify(n models.Notification) { f(n) }
