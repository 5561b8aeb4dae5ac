// Package parser loads files into document content: a flat list of styled
// paragraphs with page breaks.
package parser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docbridge/internal/doctree"
)

// Parser converts raw document bytes into paragraphs.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Content, error)
}

// SupportedExtensions lists file extensions that can be opened.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: true}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// LoadFile opens path and parses it with the parser for its extension.
func LoadFile(path string) (*doctree.Content, error) {
	p, err := ForFile(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return p.Parse(f, filepath.Base(path))
}

func titleFrom(filename string, exts ...string) string {
	base := filepath.Base(filename)
	for _, ext := range exts {
		if strings.HasSuffix(strings.ToLower(base), ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return base
}

// builder accumulates paragraphs. A pending page break attaches to the next
// paragraph added.
type builder struct {
	content   doctree.Content
	pageBreak bool
}

func (b *builder) heading(level int, text string) {
	b.add(text, doctree.HeadingStyle(level))
}

func (b *builder) body(text string) {
	b.add(text, doctree.BodyStyle)
}

func (b *builder) add(text string, style doctree.Style) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	b.content.Paragraphs = append(b.content.Paragraphs, doctree.Paragraph{
		Text:            text,
		Style:           style,
		PageBreakBefore: b.pageBreak && len(b.content.Paragraphs) > 0,
	})
	b.pageBreak = false
}

func (b *builder) breakPage() { b.pageBreak = true }

func (b *builder) done(title string) *doctree.Content {
	b.content.Title = title
	return &b.content
}
