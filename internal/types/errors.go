package types

import (
	"fmt"
	"strings"
)

// UploadError reports a failed image relocation.
type UploadError struct {
	Status int
	Body   string
	Err    error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("image upload failed: %v", e.Err)
	}
	return fmt.Sprintf("image upload failed: status %d: %s", e.Status, strings.TrimSpace(e.Body))
}

func (e *UploadError) Unwrap() error { return e.Err }

// EntryCreationError reports that the entry record could not be submitted.
type EntryCreationError struct {
	Err error
}

func (e *EntryCreationError) Error() string {
	return fmt.Sprintf("failed to create entry: %v", e.Err)
}

func (e *EntryCreationError) Unwrap() error { return e.Err }

// ImageLinkError reports one image record that could not be linked to its entry.
type ImageLinkError struct {
	URL      string
	Position int
	Err      error
}

func (e *ImageLinkError) Error() string {
	return fmt.Sprintf("failed to link image %d (%s): %v", e.Position, e.URL, e.Err)
}

func (e *ImageLinkError) Unwrap() error { return e.Err }

// TagAssociationError reports a tag that could not be resolved, or, with an
// empty Tag, a failed update of the entry's tag list.
type TagAssociationError struct {
	Tag string
	Err error
}

func (e *TagAssociationError) Error() string {
	if e.Tag == "" {
		return fmt.Sprintf("failed to update entry tags: %v", e.Err)
	}
	return fmt.Sprintf("failed to resolve tag %q: %v", e.Tag, e.Err)
}

func (e *TagAssociationError) Unwrap() error { return e.Err }

// StoreError is a non-success response from a record store.
type StoreError struct {
	Op     string
	Status int
	Body   string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, strings.TrimSpace(e.Body))
}
