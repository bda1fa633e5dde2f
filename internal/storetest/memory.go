// Package storetest provides an in-memory RecordStore for tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xhad/inkwell/internal/models"
	"github.com/xhad/inkwell/internal/types"
)

var ErrInjected = errors.New("injected failure")

// MemoryStore records every call and can be told to fail specific operations.
type MemoryStore struct {
	mu sync.Mutex

	Entries map[string]*models.Entry
	Images  []models.ImageRecord
	Tags    []models.Tag
	Calls   []string

	FailEntry     bool
	FailImageURLs map[string]bool
	FailFindTag   map[string]bool
	FailCreateTag map[string]bool
	FailSetTags   bool

	nextID int
}

var _ types.RecordStore = (*MemoryStore)(nil)

func New() *MemoryStore {
	return &MemoryStore{
		Entries:       make(map[string]*models.Entry),
		FailImageURLs: make(map[string]bool),
		FailFindTag:   make(map[string]bool),
		FailCreateTag: make(map[string]bool),
	}
}

func (s *MemoryStore) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s%d", prefix, s.nextID)
}

func (s *MemoryStore) CreateEntry(ctx context.Context, entry *models.Entry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls = append(s.Calls, "CreateEntry")
	if s.FailEntry {
		return "", &types.StoreError{Op: "create entry", Status: 422, Body: "rejected"}
	}

	stored := *entry
	stored.ID = s.id("ent")
	stored.TagIDs = append([]string(nil), entry.TagIDs...)
	s.Entries[stored.ID] = &stored
	return stored.ID, nil
}

func (s *MemoryStore) CreateImage(ctx context.Context, image *models.ImageRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls = append(s.Calls, "CreateImage "+image.URL)
	if s.FailImageURLs[image.URL] {
		return "", ErrInjected
	}

	stored := *image
	stored.ID = s.id("img")
	s.Images = append(s.Images, stored)
	return stored.ID, nil
}

func (s *MemoryStore) FindTag(ctx context.Context, name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls = append(s.Calls, "FindTag "+name)
	if s.FailFindTag[name] {
		return "", false, ErrInjected
	}
	for _, tag := range s.Tags {
		if tag.Name == name {
			return tag.ID, true, nil
		}
	}
	return "", false, nil
}

func (s *MemoryStore) CreateTag(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls = append(s.Calls, "CreateTag "+name)
	if s.FailCreateTag[name] {
		return "", ErrInjected
	}
	tag := models.Tag{ID: s.id("tag"), Name: name}
	s.Tags = append(s.Tags, tag)
	return tag.ID, nil
}

// AddTag seeds an existing tag.
func (s *MemoryStore) AddTag(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Tags = append(s.Tags, models.Tag{ID: id, Name: name})
}

func (s *MemoryStore) EntryTags(ctx context.Context, entryID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls = append(s.Calls, "EntryTags")
	entry, ok := s.Entries[entryID]
	if !ok {
		return nil, fmt.Errorf("entry %s not found", entryID)
	}
	return append([]string(nil), entry.TagIDs...), nil
}

func (s *MemoryStore) SetEntryTags(ctx context.Context, entryID string, tagIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls = append(s.Calls, "SetEntryTags")
	if s.FailSetTags {
		return &types.StoreError{Op: "update entry tags", Status: 500, Body: "unavailable"}
	}
	entry, ok := s.Entries[entryID]
	if !ok {
		return fmt.Errorf("entry %s not found", entryID)
	}
	entry.TagIDs = append([]string(nil), tagIDs...)
	return nil
}

func (s *MemoryStore) Close() {}

// CallCount counts calls whose description starts with prefix.
func (s *MemoryStore) CallCount(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.Calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}
