package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/inkwell/internal/models"
	"github.com/xhad/inkwell/internal/types"
	"github.com/xhad/inkwell/pkg/logging"
)

// fakeAirtable keeps records in memory per table and records every request.
type fakeAirtable struct {
	mu       sync.Mutex
	tables   map[string]map[string]map[string]interface{}
	order    map[string][]string
	requests []string
	formulas []string
	nextID   int
	failOn   string // "METHOD /table" that answers 422
}

func newFakeAirtable() *fakeAirtable {
	return &fakeAirtable{
		tables: map[string]map[string]map[string]interface{}{},
		order:  map[string][]string{},
	}
}

func (f *fakeAirtable) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer test-key" {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"AUTHENTICATION_REQUIRED"}`))
		return
	}

	// /appBase/{table}[/{id}]
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "appBase" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	table := parts[1]
	id := ""
	if len(parts) > 2 {
		id = parts[2]
	}
	f.requests = append(f.requests, r.Method+" /"+table)

	if f.failOn == r.Method+" /"+table {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":{"type":"INVALID_VALUE_FOR_COLUMN"}}`))
		return
	}

	if f.tables[table] == nil {
		f.tables[table] = map[string]map[string]interface{}{}
	}

	switch {
	case r.Method == http.MethodPost && id == "":
		var rec record
		json.NewDecoder(r.Body).Decode(&rec)
		f.nextID++
		newID := fmt.Sprintf("rec%d", f.nextID)
		f.tables[table][newID] = rec.Fields
		f.order[table] = append(f.order[table], newID)
		json.NewEncoder(w).Encode(record{ID: newID, Fields: rec.Fields})
	case r.Method == http.MethodGet && id == "":
		formula := r.URL.Query().Get("filterByFormula")
		f.formulas = append(f.formulas, formula)
		// Mimic a case-insensitive backend so the client-side check matters.
		var out listResponse
		for _, recID := range f.order[table] {
			name, _ := f.tables[table][recID][FieldName].(string)
			if strings.EqualFold(fmt.Sprintf("{Name} = '%s'", escapeFormula(name)), formula) {
				out.Records = append(out.Records, record{ID: recID, Fields: f.tables[table][recID]})
			}
		}
		json.NewEncoder(w).Encode(out)
	case r.Method == http.MethodGet:
		fields, ok := f.tables[table][id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(record{ID: id, Fields: fields})
	case r.Method == http.MethodPatch:
		fields, ok := f.tables[table][id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var rec record
		json.NewDecoder(r.Body).Decode(&rec)
		for k, v := range rec.Fields {
			fields[k] = v
		}
		json.NewEncoder(w).Encode(record{ID: id, Fields: fields})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestAirtable(t *testing.T) (*AirtableStore, *fakeAirtable) {
	t.Helper()
	fake := newFakeAirtable()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	s, err := NewAirtable(AirtableConfig{
		BaseURL:   server.URL,
		BaseID:    "appBase",
		APIKey:    "test-key",
		RateLimit: 1000,
		Logger:    logging.Discard(),
	})
	require.NoError(t, err)
	return s, fake
}

func TestAirtableCreateEntry(t *testing.T) {
	s, fake := newTestAirtable(t)
	ctx := context.Background()

	id, err := s.CreateEntry(ctx, &models.Entry{
		Content:    `<p>hello</p><img src="https://host/abc.png">`,
		PlainText:  "hello",
		Title:      "Day one",
		UserID:     "user-1",
		DocumentID: "doc-1",
		FirstImage: "https://host/abc.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "rec1", id)

	fields := fake.tables["Entries"][id]
	assert.Equal(t, "Day one", fields[FieldTitle])
	assert.Equal(t, "hello", fields[FieldPlainText])
	assert.Equal(t, "user-1", fields[FieldUserID])
	assert.Equal(t, "doc-1", fields[FieldDocumentID])
	assert.Equal(t, "https://host/abc.png", fields[FieldFirstImage])
	assert.Equal(t, []interface{}{map[string]interface{}{"url": "https://host/abc.png"}}, fields[FieldCover])
	assert.NotContains(t, fields, FieldTags)
}

func TestAirtableCreateEntryWithoutImage(t *testing.T) {
	s, fake := newTestAirtable(t)

	id, err := s.CreateEntry(context.Background(), &models.Entry{Content: "<p>x</p>", Title: "t"})
	require.NoError(t, err)
	assert.NotContains(t, fake.tables["Entries"][id], FieldFirstImage)
	assert.NotContains(t, fake.tables["Entries"][id], FieldCover)
}

func TestAirtableCreateImage(t *testing.T) {
	s, fake := newTestAirtable(t)

	id, err := s.CreateImage(context.Background(), &models.ImageRecord{
		EntryID:  "recEntry",
		URL:      "https://host/a.png",
		Position: 2,
	})
	require.NoError(t, err)

	fields := fake.tables["Images"][id]
	assert.Equal(t, []interface{}{"recEntry"}, fields[FieldEntry])
	assert.Equal(t, "https://host/a.png", fields[FieldURL])
	assert.Equal(t, float64(2), fields[FieldPosition])
}

func TestAirtableTags(t *testing.T) {
	s, fake := newTestAirtable(t)
	ctx := context.Background()

	_, found, err := s.FindTag(ctx, "red")
	require.NoError(t, err)
	assert.False(t, found)

	redID, err := s.CreateTag(ctx, "red")
	require.NoError(t, err)

	got, found, err := s.FindTag(ctx, "red")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, redID, got)

	// Case-sensitive even when the backend matches loosely
	_, found, err = s.FindTag(ctx, "Red")
	require.NoError(t, err)
	assert.False(t, found)

	assert.Equal(t, "{Name} = 'red'", fake.formulas[0])
}

func TestAirtableFindTagEscapesQuotes(t *testing.T) {
	s, fake := newTestAirtable(t)
	ctx := context.Background()

	id, err := s.CreateTag(ctx, `it's`)
	require.NoError(t, err)

	got, found, err := s.FindTag(ctx, `it's`)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, id, got)
	assert.Equal(t, `{Name} = 'it\'s'`, fake.formulas[0])
}

func TestAirtableEntryTags(t *testing.T) {
	s, _ := newTestAirtable(t)
	ctx := context.Background()

	entryID, err := s.CreateEntry(ctx, &models.Entry{Content: "<p>x</p>", TagIDs: []string{"recA"}})
	require.NoError(t, err)

	tags, err := s.EntryTags(ctx, entryID)
	require.NoError(t, err)
	assert.Equal(t, []string{"recA"}, tags)

	require.NoError(t, s.SetEntryTags(ctx, entryID, []string{"recA", "recB"}))

	tags, err = s.EntryTags(ctx, entryID)
	require.NoError(t, err)
	assert.Equal(t, []string{"recA", "recB"}, tags)

	require.NoError(t, s.SetEntryTags(ctx, entryID, nil))
	tags, err = s.EntryTags(ctx, entryID)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestAirtableErrorStatus(t *testing.T) {
	s, fake := newTestAirtable(t)
	fake.failOn = "POST /Entries"

	_, err := s.CreateEntry(context.Background(), &models.Entry{Content: "<p>x</p>"})
	require.Error(t, err)

	var storeErr *types.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, http.StatusUnprocessableEntity, storeErr.Status)
	assert.Contains(t, storeErr.Body, "INVALID_VALUE_FOR_COLUMN")
}

func TestAirtableUnauthorized(t *testing.T) {
	fake := newFakeAirtable()
	server := httptest.NewServer(fake)
	defer server.Close()

	s, err := NewAirtable(AirtableConfig{BaseURL: server.URL, BaseID: "appBase", APIKey: "wrong", RateLimit: 1000})
	require.NoError(t, err)

	_, err = s.CreateTag(context.Background(), "red")
	var storeErr *types.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, http.StatusUnauthorized, storeErr.Status)
}

func TestNewAirtableRequiresCredentials(t *testing.T) {
	_, err := NewAirtable(AirtableConfig{APIKey: "k"})
	assert.Error(t, err)
	_, err = NewAirtable(AirtableConfig{BaseID: "b"})
	assert.Error(t, err)
}
