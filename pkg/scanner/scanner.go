// Package scanner locates the images embedded in editor markup.
package scanner

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/inkwell/internal/models"
)

const dataScheme = "data:"

// Scan parses markup and returns every <img src> in document order.
// Each call parses afresh; the input is never modified.
func Scan(html string) ([]models.ImageRef, error) {
	if strings.TrimSpace(html) == "" {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}

	var refs []models.ImageRef
	doc.Find("img[src]").Each(func(_ int, selection *goquery.Selection) {
		src, _ := selection.Attr("src")
		if strings.TrimSpace(src) == "" {
			return
		}
		refs = append(refs, models.ImageRef{
			Kind:  Classify(src),
			Src:   src,
			Index: len(refs),
		})
	})

	return refs, nil
}

// Classify reports whether src is a locally-encoded payload or a hosted URL.
func Classify(src string) models.ImageKind {
	trimmed := strings.TrimSpace(src)
	if len(trimmed) >= len(dataScheme) && strings.EqualFold(trimmed[:len(dataScheme)], dataScheme) {
		return models.ImageEmbedded
	}
	return models.ImageHosted
}

func Embedded(refs []models.ImageRef) []models.ImageRef {
	return filter(refs, models.ImageEmbedded)
}

func Hosted(refs []models.ImageRef) []models.ImageRef {
	return filter(refs, models.ImageHosted)
}

func filter(refs []models.ImageRef, kind models.ImageKind) []models.ImageRef {
	var out []models.ImageRef
	for _, ref := range refs {
		if ref.Kind == kind {
			out = append(out, ref)
		}
	}
	return out
}

// EncodeDataURL builds the inline payload a browser file reader produces for an image.
func EncodeDataURL(mime string, data []byte) string {
	if mime == "" {
		mime = "application/octet-stream"
	}
	return dataScheme + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
