// Package store persists entries, their images and tags to a record store.
package store

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/xhad/inkwell/internal/types"
	"github.com/xhad/inkwell/pkg/config"
)

// New builds the record store selected by cfg.Store.Backend.
func New(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (types.RecordStore, error) {
	switch cfg.Store.Backend {
	case "airtable", "":
		s, err := NewAirtable(AirtableConfig{
			BaseURL:    cfg.Store.BaseURL,
			BaseID:     cfg.Store.BaseID,
			APIKey:     cfg.Store.APIKey,
			EntryTable: cfg.Store.EntryTable,
			ImageTable: cfg.Store.ImageTable,
			TagTable:   cfg.Store.TagTable,
			RateLimit:  cfg.Store.RateLimit,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgres(ctx, PostgresConfig{
			ConnString: cfg.Store.DatabaseURL,
			EntryTable: cfg.Store.EntryTable,
			ImageTable: cfg.Store.ImageTable,
			TagTable:   cfg.Store.TagTable,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}
