package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docbridge/internal/doctree"
)

// WriteMarkdown renders content in the form MarkdownParser reads back:
// headings as ATX headings, page breaks as thematic breaks.
func WriteMarkdown(w io.Writer, c doctree.Content) error {
	bw := bufio.NewWriter(w)
	for i, p := range c.Paragraphs {
		if i > 0 {
			bw.WriteString("\n")
		}
		if p.PageBreakBefore {
			bw.WriteString("---\n\n")
		}
		if p.Style.IsHeading() {
			bw.WriteString(strings.Repeat("#", min(p.Style.OutlineLevel, 6)))
			bw.WriteString(" ")
			bw.WriteString(strings.ReplaceAll(p.Text, "\n", " "))
		} else {
			bw.WriteString(p.Text)
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}

// WriteText renders content as blank-line separated paragraphs with form
// feeds between pages.
func WriteText(w io.Writer, c doctree.Content) error {
	bw := bufio.NewWriter(w)
	for i, p := range c.Paragraphs {
		if i > 0 {
			bw.WriteString("\n")
		}
		if p.PageBreakBefore {
			bw.WriteString("\f")
		}
		bw.WriteString(p.Text)
		bw.WriteString("\n")
	}
	return bw.Flush()
}

// Store writes content to path, choosing the format from the extension. The
// file is replaced atomically.
func Store(path string, c doctree.Content) error {
	var write func(io.Writer, doctree.Content) error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".md", ".markdown":
		write = WriteMarkdown
	case ".txt":
		write = WriteText
	default:
		return fmt.Errorf("saving %s files is not supported; use .md or .txt", ext)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".docbridge-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := write(tmp, c); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// CanStore reports whether Store supports the path's extension.
func CanStore(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt":
		return true
	}
	return false
}
