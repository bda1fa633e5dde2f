// Package tags resolves free-text tag names to store identifiers and attaches
// them to an entry.
package tags

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/xhad/inkwell/internal/types"
	"github.com/xhad/inkwell/pkg/logging"
	"github.com/xhad/inkwell/pkg/processor"
)

type ReconcilerConfig struct {
	Delimiter string
	Logger    logrus.FieldLogger
}

type Reconciler struct {
	store     types.TagStore
	processor processor.Processor
	logger    logrus.FieldLogger
}

// Result is the outcome of one reconciliation.
type Result struct {
	TagIDs  []string
	Skipped []error // one *types.TagAssociationError per tag that could not be resolved
}

func NewWithConfig(store types.TagStore, config ReconcilerConfig) *Reconciler {
	return &Reconciler{
		store:     store,
		processor: processor.NewWithConfig(processor.ProcessorConfig{TagDelimiter: config.Delimiter}),
		logger:    logging.OrDefault(config.Logger),
	}
}

// Reconcile resolves every name in raw, merges the ids into existing without
// duplicates and replaces the entry's tag field with the result. A tag that
// fails to resolve is logged and skipped; only a failed final update returns
// an error.
func (r *Reconciler) Reconcile(ctx context.Context, raw, entryID string, existing []string) (*Result, error) {
	result := &Result{TagIDs: make([]string, 0, len(existing))}
	seen := make(map[string]bool, len(existing))
	for _, id := range existing {
		if !seen[id] {
			seen[id] = true
			result.TagIDs = append(result.TagIDs, id)
		}
	}

	resolved := make(map[string]string)
	for _, name := range r.processor.SplitTags(raw) {
		id, ok := resolved[name]
		if !ok {
			var err error
			id, err = r.resolve(ctx, name)
			if err != nil {
				r.logger.WithFields(logrus.Fields{
					"entry_id": entryID,
					"tag":      name,
				}).WithError(err).Warn("skipping tag")
				result.Skipped = append(result.Skipped, &types.TagAssociationError{Tag: name, Err: err})
				continue
			}
			resolved[name] = id
		}

		if !seen[id] {
			seen[id] = true
			result.TagIDs = append(result.TagIDs, id)
		}
	}

	if err := r.store.SetEntryTags(ctx, entryID, result.TagIDs); err != nil {
		return result, &types.TagAssociationError{Err: err}
	}

	r.logger.WithFields(logrus.Fields{
		"entry_id": entryID,
		"tags":     len(result.TagIDs),
		"skipped":  len(result.Skipped),
	}).Info("entry tags updated")

	return result, nil
}

// ReconcileRecord loads the entry's current tag list before reconciling.
func (r *Reconciler) ReconcileRecord(ctx context.Context, raw, entryID string) (*Result, error) {
	existing, err := r.store.EntryTags(ctx, entryID)
	if err != nil {
		return nil, &types.TagAssociationError{Err: fmt.Errorf("failed to load entry tags: %w", err)}
	}
	return r.Reconcile(ctx, raw, entryID, existing)
}

func (r *Reconciler) resolve(ctx context.Context, name string) (string, error) {
	id, found, err := r.store.FindTag(ctx, name)
	if err != nil {
		return "", fmt.Errorf("lookup: %w", err)
	}
	if found {
		return id, nil
	}

	id, err = r.store.CreateTag(ctx, name)
	if err != nil {
		return "", fmt.Errorf("create: %w", err)
	}
	r.logger.WithField("tag", name).Debug("tag created")
	return id, nil
}
