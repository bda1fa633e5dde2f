package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xhad/inkwell/internal/models"
	"github.com/xhad/inkwell/internal/types"
	"github.com/xhad/inkwell/pkg/logging"
	"golang.org/x/time/rate"
)

// Field names used in the record-store tables.
const (
	FieldContent    = "Content"
	FieldPlainText  = "PlainText"
	FieldTitle      = "Title"
	FieldUserID     = "UserId"
	FieldDocumentID = "EntryId"
	FieldFirstImage = "FirstImage"
	FieldCover      = "Cover"
	FieldTags       = "Tags"
	FieldEntry      = "Entry"
	FieldURL        = "URL"
	FieldImage      = "Image"
	FieldPosition   = "Position"
	FieldName       = "Name"
)

type AirtableConfig struct {
	BaseURL    string
	BaseID     string
	APIKey     string
	EntryTable string
	ImageTable string
	TagTable   string
	RateLimit  float64 // requests per second
	Timeout    time.Duration
	Client     *http.Client
	Logger     logrus.FieldLogger
}

// AirtableStore talks to a tabular record API addressed by base id and table name.
type AirtableStore struct {
	config  AirtableConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  logrus.FieldLogger
}

type record struct {
	ID     string                 `json:"id,omitempty"`
	Fields map[string]interface{} `json:"fields"`
}

type listResponse struct {
	Records []record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

type attachment struct {
	URL string `json:"url"`
}

func NewAirtable(config AirtableConfig) (*AirtableStore, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.airtable.com/v0"
	}
	if config.BaseID == "" {
		return nil, fmt.Errorf("base id is required")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if config.EntryTable == "" {
		config.EntryTable = "Entries"
	}
	if config.ImageTable == "" {
		config.ImageTable = "Images"
	}
	if config.TagTable == "" {
		config.TagTable = "Tags"
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}

	client := config.Client
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	return &AirtableStore{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:  logging.OrDefault(config.Logger),
	}, nil
}

func (s *AirtableStore) tableURL(table string, id string) string {
	u := fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.config.BaseURL, "/"),
		url.PathEscape(s.config.BaseID), url.PathEscape(table))
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	return u
}

func (s *AirtableStore) do(ctx context.Context, op, method, endpoint string, body interface{}, out interface{}) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: failed to read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &types.StoreError{Op: op, Status: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%s: failed to decode response: %w", op, err)
		}
	}

	return nil
}

func (s *AirtableStore) create(ctx context.Context, op, table string, fields map[string]interface{}) (string, error) {
	var created record
	if err := s.do(ctx, op, http.MethodPost, s.tableURL(table, ""), record{Fields: fields}, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("%s: response carried no record id", op)
	}
	return created.ID, nil
}

func (s *AirtableStore) CreateEntry(ctx context.Context, entry *models.Entry) (string, error) {
	fields := map[string]interface{}{
		FieldContent:    entry.Content,
		FieldPlainText:  entry.PlainText,
		FieldTitle:      entry.Title,
		FieldUserID:     entry.UserID,
		FieldDocumentID: entry.DocumentID,
	}
	if entry.FirstImage != "" {
		fields[FieldFirstImage] = entry.FirstImage
		fields[FieldCover] = []attachment{{URL: entry.FirstImage}}
	}
	if len(entry.TagIDs) > 0 {
		fields[FieldTags] = entry.TagIDs
	}

	id, err := s.create(ctx, "create entry", s.config.EntryTable, fields)
	if err != nil {
		return "", err
	}
	s.logger.WithField("entry_id", id).Debug("entry record created")
	return id, nil
}

func (s *AirtableStore) CreateImage(ctx context.Context, image *models.ImageRecord) (string, error) {
	fields := map[string]interface{}{
		FieldEntry:    []string{image.EntryID},
		FieldURL:      image.URL,
		FieldImage:    []attachment{{URL: image.URL}},
		FieldPosition: image.Position,
	}
	return s.create(ctx, "create image", s.config.ImageTable, fields)
}

// FindTag looks a tag up by exact name. The filter formula narrows the
// candidates; the name is compared again here so the match is case-sensitive.
func (s *AirtableStore) FindTag(ctx context.Context, name string) (string, bool, error) {
	query := url.Values{}
	query.Set("filterByFormula", fmt.Sprintf("{%s} = '%s'", FieldName, escapeFormula(name)))
	query.Set("pageSize", "100")

	endpoint := s.tableURL(s.config.TagTable, "")
	for {
		var page listResponse
		if err := s.do(ctx, "find tag", http.MethodGet, endpoint+"?"+query.Encode(), nil, &page); err != nil {
			return "", false, err
		}

		for _, rec := range page.Records {
			if got, _ := rec.Fields[FieldName].(string); got == name {
				return rec.ID, true, nil
			}
		}

		if page.Offset == "" {
			return "", false, nil
		}
		query.Set("offset", page.Offset)
	}
}

func (s *AirtableStore) CreateTag(ctx context.Context, name string) (string, error) {
	return s.create(ctx, "create tag", s.config.TagTable, map[string]interface{}{FieldName: name})
}

func (s *AirtableStore) EntryTags(ctx context.Context, entryID string) ([]string, error) {
	var rec record
	if err := s.do(ctx, "get entry", http.MethodGet, s.tableURL(s.config.EntryTable, entryID), nil, &rec); err != nil {
		return nil, err
	}

	raw, _ := rec.Fields[FieldTags].([]interface{})
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// SetEntryTags replaces the entry's tag references with tagIDs.
func (s *AirtableStore) SetEntryTags(ctx context.Context, entryID string, tagIDs []string) error {
	if tagIDs == nil {
		tagIDs = []string{}
	}
	body := record{Fields: map[string]interface{}{FieldTags: tagIDs}}
	return s.do(ctx, "update entry tags", http.MethodPatch, s.tableURL(s.config.EntryTable, entryID), body, nil)
}

func (s *AirtableStore) Close() {}

func escapeFormula(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `'`, `\'`)
}
