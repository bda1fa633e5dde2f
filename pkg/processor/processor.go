package processor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
)

type ProcessorConfig struct {
	TagDelimiter       string
	PreserveLineBreaks bool
}

type Processor struct {
	config ProcessorConfig
	md     goldmark.Markdown
}

// Elements whose boundaries become line breaks in the plain text.
const blockSelector = "p, div, li, h1, h2, h3, h4, h5, h6, blockquote, pre, tr, ul, ol, table, hr"

func NewWithConfig(config ProcessorConfig) Processor {
	if config.TagDelimiter == "" {
		config.TagDelimiter = ","
	}

	return Processor{
		config: config,
		md:     goldmark.New(),
	}
}

// PlainText strips markup from editor content.
func (p *Processor) PlainText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return p.cleanText(html)
	}

	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockSelector).AppendHtml("\n")

	return p.cleanText(doc.Text())
}

func (p *Processor) cleanText(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		// Replace multiple spaces with single space
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}

	if p.config.PreserveLineBreaks {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines, " ")
}

// SplitTags splits a raw tag string into trimmed, non-empty names in input order.
// Duplicates are kept.
func (p *Processor) SplitTags(raw string) []string {
	var tags []string
	for _, name := range strings.Split(raw, p.config.TagDelimiter) {
		name = strings.TrimSpace(name)
		if name != "" {
			tags = append(tags, name)
		}
	}
	return tags
}

// TagDelimiter returns the delimiter SplitTags uses, after defaulting.
func (p *Processor) TagDelimiter() string {
	return p.config.TagDelimiter
}

// FromMarkdown renders a markdown draft to the HTML the editor works with.
func (p *Processor) FromMarkdown(md string) (string, error) {
	var buf bytes.Buffer
	if err := p.md.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}
	return buf.String(), nil
}
