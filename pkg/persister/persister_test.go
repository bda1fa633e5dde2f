package persister

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/inkwell/internal/models"
	"github.com/xhad/inkwell/internal/storetest"
	"github.com/xhad/inkwell/internal/types"
	"github.com/xhad/inkwell/pkg/logging"
)

type recorder struct {
	got []models.Notification
}

func (r *recorder) Notify(n models.Notification) { r.got = append(r.got, n) }

func (r *recorder) levels() []models.Level {
	var out []models.Level
	for _, n := range r.got {
		out = append(out, n.Level)
	}
	return out
}

func newTestPersister(s *storetest.MemoryStore, rec *recorder) *Persister {
	return NewWithConfig(s, PersisterConfig{
		TagDelimiter: ",",
		Logger:       logging.Discard(),
		Notifier:     rec,
	})
}

const twoImages = `<p>hello</p><img src="https://host/1.png"><p>bye</p><img src="https://host/2.png">`

func TestSave(t *testing.T) {
	s := storetest.New()
	rec := &recorder{}
	p := newTestPersister(s, rec)

	result, err := p.Save(context.Background(), SaveRequest{
		Content:    twoImages,
		PlainText:  "hello bye",
		Title:      "Day one",
		UserID:     "user-1",
		DocumentID: "doc-1",
		Tags:       "travel, food",
	})
	require.NoError(t, err)

	entry := s.Entries[result.EntryID]
	require.NotNil(t, entry)
	assert.Equal(t, twoImages, entry.Content)
	assert.Equal(t, "hello bye", entry.PlainText)
	assert.Equal(t, "Day one", entry.Title)
	assert.Equal(t, "user-1", entry.UserID)
	assert.Equal(t, "doc-1", entry.DocumentID)
	assert.Equal(t, "https://host/1.png", entry.FirstImage)

	require.Len(t, s.Images, 2)
	for i, img := range s.Images {
		assert.Equal(t, result.EntryID, img.EntryID)
		assert.Equal(t, i, img.Position)
	}
	assert.Equal(t, "https://host/1.png", s.Images[0].URL)
	assert.Equal(t, "https://host/2.png", s.Images[1].URL)
	assert.Len(t, result.ImageIDs, 2)

	assert.Len(t, result.TagIDs, 2)
	assert.Equal(t, result.TagIDs, entry.TagIDs)

	assert.Equal(t, []models.Notification{{Level: models.LevelInfo, Message: "Entry saved"}}, rec.got)
	assert.Equal(t, rec.got, result.Notifications)
}

func TestSaveOrder(t *testing.T) {
	s := storetest.New()
	p := newTestPersister(s, &recorder{})

	_, err := p.Save(context.Background(), SaveRequest{Content: twoImages, Tags: "red"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"CreateEntry",
		"CreateImage https://host/1.png",
		"CreateImage https://host/2.png",
		"FindTag red",
		"CreateTag red",
		"SetEntryTags",
	}, s.Calls)
}

func TestSaveEntryFailure(t *testing.T) {
	s := storetest.New()
	s.FailEntry = true
	rec := &recorder{}
	p := newTestPersister(s, rec)

	result, err := p.Save(context.Background(), SaveRequest{Content: twoImages, Tags: "red,blue"})
	require.Error(t, err)

	var entryErr *types.EntryCreationError
	require.True(t, errors.As(err, &entryErr))
	var storeErr *types.StoreError
	assert.True(t, errors.As(err, &storeErr))

	assert.Equal(t, []string{"CreateEntry"}, s.Calls)
	assert.Empty(t, result.EntryID)
	require.Len(t, rec.got, 1)
	assert.Equal(t, models.LevelError, rec.got[0].Level)
}

func TestSaveOneImageFails(t *testing.T) {
	s := storetest.New()
	s.FailImageURLs["https://host/1.png"] = true
	rec := &recorder{}
	p := newTestPersister(s, rec)

	result, err := p.Save(context.Background(), SaveRequest{Content: twoImages})
	require.NoError(t, err)

	assert.NotEmpty(t, result.EntryID)
	assert.Len(t, s.Entries, 1)
	require.Len(t, s.Images, 1)
	assert.Equal(t, "https://host/2.png", s.Images[0].URL)

	require.Len(t, result.ImageErrors, 1)
	var linkErr *types.ImageLinkError
	require.True(t, errors.As(result.ImageErrors[0], &linkErr))
	assert.Equal(t, 0, linkErr.Position)
	assert.Equal(t, 1, result.Failures())

	assert.Equal(t, []models.Level{models.LevelError, models.LevelInfo}, rec.levels())
	assert.Equal(t, "Failed to save image 1", rec.got[0].Message)
	assert.Equal(t, "Entry saved with 1 problem(s)", rec.got[1].Message)
}

func TestSaveTagFailure(t *testing.T) {
	s := storetest.New()
	s.FailSetTags = true
	rec := &recorder{}
	p := newTestPersister(s, rec)

	result, err := p.Save(context.Background(), SaveRequest{Content: "<p>no images</p>", Tags: "red"})
	require.NoError(t, err)

	var tagErr *types.TagAssociationError
	require.True(t, errors.As(result.TagErr, &tagErr))
	assert.Equal(t, []models.Level{models.LevelWarn, models.LevelInfo}, rec.levels())
	assert.Empty(t, s.Entries[result.EntryID].FirstImage)
}

func TestSaveSkippedTag(t *testing.T) {
	s := storetest.New()
	s.FailFindTag["bad"] = true
	rec := &recorder{}
	p := newTestPersister(s, rec)

	result, err := p.Save(context.Background(), SaveRequest{Content: "<p>x</p>", Tags: "good,bad"})
	require.NoError(t, err)
	assert.Len(t, result.TagIDs, 1)
	assert.Nil(t, result.TagErr)
	assert.Equal(t, []models.Level{models.LevelWarn, models.LevelInfo}, rec.levels())
	assert.Equal(t, "Entry saved", rec.got[1].Message)
}

func TestSaveWithoutTagsSkipsReconciler(t *testing.T) {
	s := storetest.New()
	p := newTestPersister(s, &recorder{})

	_, err := p.Save(context.Background(), SaveRequest{Content: "<p>x</p>", Tags: "   "})
	require.NoError(t, err)
	assert.Equal(t, []string{"CreateEntry"}, s.Calls)
}

func TestSaveExcludesUnrelocatedImages(t *testing.T) {
	s := storetest.New()
	rec := &recorder{}
	p := newTestPersister(s, rec)

	content := `<img src="data:image/png;base64,AAAA"><img src="https://host/ok.png">`
	result, err := p.Save(context.Background(), SaveRequest{Content: content})
	require.NoError(t, err)

	require.Len(t, s.Images, 1)
	assert.Equal(t, "https://host/ok.png", s.Images[0].URL)
	assert.Equal(t, 0, s.Images[0].Position)
	assert.Equal(t, "https://host/ok.png", s.Entries[result.EntryID].FirstImage)
	assert.Equal(t, []models.Level{models.LevelWarn, models.LevelInfo}, rec.levels())
}

func TestSaveProgress(t *testing.T) {
	s := storetest.New()
	var progress [][2]int
	p := NewWithConfig(s, PersisterConfig{
		Logger: logging.Discard(),
		OnImage: func(done, total int) {
			progress = append(progress, [2]int{done, total})
		},
	})

	_, err := p.Save(context.Background(), SaveRequest{Content: twoImages})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, progress)
}
