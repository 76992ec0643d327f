// Package docx derives the raw text rendition: a fresh DOCX holding only the
// plain paragraph text of the formatted document, with tables, images and
// styling stripped out.
package docx

import (
	"fmt"
	"os"
	"strings"

	godocx "github.com/fumiama/go-docx"
)

type RawWriter struct{}

func NewRawWriter() *RawWriter {
	return &RawWriter{}
}

// StripToRaw reads the formatted DOCX at formattedPath and writes a raw one
// at rawPath containing one paragraph per non-empty source paragraph.
func (w *RawWriter) StripToRaw(formattedPath, rawPath string) error {
	paragraphs, err := extractParagraphs(formattedPath)
	if err != nil {
		return err
	}
	if len(paragraphs) == 0 {
		return fmt.Errorf("strip %s: no text content found", formattedPath)
	}

	out := godocx.New().WithDefaultTheme()
	for _, text := range paragraphs {
		out.AddParagraph().AddText(text)
	}

	f, err := os.Create(rawPath)
	if err != nil {
		return fmt.Errorf("create raw docx: %w", err)
	}
	defer f.Close()

	if _, err := out.WriteTo(f); err != nil {
		return fmt.Errorf("write raw docx: %w", err)
	}
	return nil
}

func extractParagraphs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open formatted docx: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat formatted docx: %w", err)
	}

	doc, err := godocx.Parse(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("parse formatted docx: %w", err)
	}

	var paragraphs []string
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*godocx.Paragraph)
		if !ok {
			continue
		}
		text := strings.TrimSpace(paragraphText(para))
		if text == "" {
			continue
		}
		paragraphs = append(paragraphs, text)
	}
	return paragraphs, nil
}

func paragraphText(para *godocx.Paragraph) string {
	var sb strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*godocx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*godocx.Text); ok {
				sb.WriteString(t.Text)
			}
		}
	}
	return sb.String()
}
