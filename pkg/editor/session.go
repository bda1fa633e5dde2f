// Package editor holds the server-side state of one editor widget: the
// current content document and the host's configuration.
package editor

import (
	"context"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
	"github.com/xhad/inkwell/internal/models"
	"github.com/xhad/inkwell/internal/types"
	"github.com/xhad/inkwell/pkg/logging"
	"github.com/xhad/inkwell/pkg/persister"
	"github.com/xhad/inkwell/pkg/processor"
	"github.com/xhad/inkwell/pkg/rewriter"
	"github.com/xhad/inkwell/pkg/scanner"
)

type Deps struct {
	Uploader  types.Uploader
	Persister *persister.Persister
	Processor processor.Processor
	Logger    logrus.FieldLogger
}

// Session is not safe for concurrent use.
type Session struct {
	props    models.EditorProps
	content  string
	deps     Deps
	onChange func(content string)
	logger   logrus.FieldLogger
}

func NewSession(props models.EditorProps, deps Deps, onChange func(content string)) *Session {
	logger := logging.OrDefault(deps.Logger).WithFields(logrus.Fields{
		"user_id":     props.UserID,
		"document_id": props.EntryID,
	})
	return &Session{
		props:    props,
		content:  props.Value,
		deps:     deps,
		onChange: onChange,
		logger:   logger,
	}
}

func (s *Session) Content() string { return s.content }

func (s *Session) Props() models.EditorProps { return s.props }

// Update takes the editor's latest markup, relocates any embedded images and
// reports the resulting content through the change callback.
func (s *Session) Update(ctx context.Context, html string) (string, error) {
	refs, err := scanner.Scan(html)
	if err != nil {
		return s.content, err
	}

	mapping := s.relocate(ctx, scanner.Embedded(refs))
	s.content = rewriter.Rewrite(html, mapping)

	if s.onChange != nil {
		s.onChange(s.content)
	}
	return s.content, nil
}

// InsertImage appends an uploaded image file to the document the way the
// widget's file picker does. An empty mime is sniffed from data.
func (s *Session) InsertImage(ctx context.Context, mime string, data []byte) (string, error) {
	if len(data) == 0 {
		return s.content, fmt.Errorf("empty image")
	}
	if mime == "" {
		mime = mimetype.Detect(data).String()
	}
	if !strings.HasPrefix(mime, "image/") {
		return s.content, fmt.Errorf("not an image: %q", mime)
	}

	img := fmt.Sprintf(`<img src="%s">`, scanner.EncodeDataURL(mime, data))
	return s.Update(ctx, s.content+img)
}

// Save retries relocation of images still embedded, then persists the entry.
// Images that still fail are left out of the saved image records.
func (s *Session) Save(ctx context.Context) (*persister.SaveResult, error) {
	if s.deps.Persister == nil {
		return nil, fmt.Errorf("no persister configured")
	}

	refs, err := scanner.Scan(s.content)
	if err != nil {
		return nil, err
	}
	if embedded := scanner.Embedded(refs); len(embedded) > 0 {
		if mapping := s.relocate(ctx, embedded); len(mapping) > 0 {
			s.content = rewriter.Rewrite(s.content, mapping)
			if s.onChange != nil {
				s.onChange(s.content)
			}
		}
	}

	return s.deps.Persister.Save(ctx, persister.SaveRequest{
		Content:    s.content,
		PlainText:  s.deps.Processor.PlainText(s.content),
		Title:      s.props.EntryTitle,
		UserID:     s.props.UserID,
		DocumentID: s.props.EntryID,
		Tags:       s.props.Tags,
	})
}

// relocate uploads each distinct payload once. Upload failures are logged and
// the payload is left out of the mapping.
func (s *Session) relocate(ctx context.Context, refs []models.ImageRef) map[string]string {
	mapping := make(map[string]string)
	if len(refs) == 0 {
		return mapping
	}
	if s.deps.Uploader == nil {
		s.logger.Debug("no uploader configured, images stay embedded")
		return mapping
	}

	failed := make(map[string]bool)
	for _, ref := range refs {
		if _, done := mapping[ref.Src]; done || failed[ref.Src] {
			continue
		}

		url, err := s.deps.Uploader.Upload(ctx, ref.Src)
		if err != nil {
			s.logger.WithField("position", ref.Index).WithError(err).Warn("image upload failed, keeping it embedded")
			failed[ref.Src] = true
			continue
		}
		mapping[ref.Src] = url
	}

	return mapping
}
