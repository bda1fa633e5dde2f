// Package persister saves an editor document as an entry record with linked
// image records and tags.
package persister

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xhad/inkwell/internal/models"
	"github.com/xhad/inkwell/internal/types"
	"github.com/xhad/inkwell/pkg/logging"
	"github.com/xhad/inkwell/pkg/scanner"
	"github.com/xhad/inkwell/pkg/tags"
)

type PersisterConfig struct {
	TagDelimiter string
	Logger       logrus.FieldLogger
	Notifier     types.Notifier
	OnImage      func(done, total int) // called after each image submission
}

type Persister struct {
	config     PersisterConfig
	store      types.EntryStore
	reconciler *tags.Reconciler
	logger     logrus.FieldLogger
}

type SaveRequest struct {
	Content    string
	PlainText  string
	Title      string
	UserID     string
	DocumentID string
	Tags       string
}

// SaveResult describes what reached the store. A non-nil result with
// ImageErrors or TagErr set is still a successful save.
type SaveResult struct {
	EntryID       string
	ImageIDs      []string
	ImageErrors   []error
	TagIDs        []string
	TagErr        error
	Notifications []models.Notification
}

// Failures counts partial failures after the entry was created.
func (r *SaveResult) Failures() int {
	n := len(r.ImageErrors)
	if r.TagErr != nil {
		n++
	}
	return n
}

func NewWithConfig(store types.RecordStore, config PersisterConfig) *Persister {
	logger := logging.OrDefault(config.Logger)
	return &Persister{
		config: config,
		store:  store,
		reconciler: tags.NewWithConfig(store, tags.ReconcilerConfig{
			Delimiter: config.TagDelimiter,
			Logger:    logger,
		}),
		logger: logger,
	}
}

func (p *Persister) notify(result *SaveResult, level models.Level, format string, args ...interface{}) {
	n := models.Notification{Level: level, Message: fmt.Sprintf(format, args...)}
	result.Notifications = append(result.Notifications, n)
	if p.config.Notifier != nil {
		p.config.Notifier.Notify(n)
	}
}

// Save submits the entry, then each hosted image one at a time in document
// order, then the tags. Only a failed entry submission aborts the sequence;
// nothing already written is rolled back.
func (p *Persister) Save(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	result := &SaveResult{}
	log := p.logger.WithField("document_id", req.DocumentID)

	refs, err := scanner.Scan(req.Content)
	if err != nil {
		p.notify(result, models.LevelError, "Failed to save entry: %v", err)
		return result, &types.EntryCreationError{Err: err}
	}

	var urls []string
	for _, ref := range refs {
		if ref.Kind == models.ImageEmbedded {
			log.WithField("position", ref.Index).Warn("image was never uploaded, leaving it out")
			p.notify(result, models.LevelWarn, "Image %d could not be uploaded and was not saved", ref.Index+1)
			continue
		}
		urls = append(urls, ref.Src)
	}

	entry := &models.Entry{
		Content:    req.Content,
		PlainText:  req.PlainText,
		Title:      req.Title,
		UserID:     req.UserID,
		DocumentID: req.DocumentID,
	}
	if len(urls) > 0 {
		entry.FirstImage = urls[0]
	}

	entryID, err := p.store.CreateEntry(ctx, entry)
	if err != nil {
		log.WithError(err).Error("entry submission failed")
		p.notify(result, models.LevelError, "Failed to save entry")
		return result, &types.EntryCreationError{Err: err}
	}
	result.EntryID = entryID
	log = log.WithField("entry_id", entryID)
	log.Info("entry created")

	for i, url := range urls {
		imageID, err := p.store.CreateImage(ctx, &models.ImageRecord{
			EntryID:  entryID,
			URL:      url,
			Position: i,
		})
		if err != nil {
			linkErr := &types.ImageLinkError{URL: url, Position: i, Err: err}
			log.WithField("position", i).WithError(err).Error("image submission failed")
			result.ImageErrors = append(result.ImageErrors, linkErr)
			p.notify(result, models.LevelError, "Failed to save image %d", i+1)
		} else {
			result.ImageIDs = append(result.ImageIDs, imageID)
		}
		if p.config.OnImage != nil {
			p.config.OnImage(i+1, len(urls))
		}
	}

	if strings.TrimSpace(req.Tags) != "" {
		tagResult, err := p.reconciler.Reconcile(ctx, req.Tags, entryID, nil)
		if tagResult != nil {
			result.TagIDs = tagResult.TagIDs
		}
		if err != nil {
			log.WithError(err).Error("tag association failed")
			result.TagErr = err
			p.notify(result, models.LevelWarn, "Entry saved, but its tags could not be updated")
		} else if len(tagResult.Skipped) > 0 {
			p.notify(result, models.LevelWarn, "%d tag(s) could not be added", len(tagResult.Skipped))
		}
	}

	if failures := result.Failures(); failures > 0 {
		p.notify(result, models.LevelInfo, "Entry saved with %d problem(s)", failures)
	} else {
		p.notify(result, models.LevelInfo, "Entry saved")
	}

	log.WithFields(logrus.Fields{
		"images":       len(result.ImageIDs),
		"image_errors": len(result.ImageErrors),
		"tags":         len(result.TagIDs),
		"tag_error":    result.TagErr != nil,
	}).Info("save finished")

	return result, nil
}
