package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/docbridge/internal/doctree"
)

// TextParser handles plain text files. Blank lines separate paragraphs and a
// form feed starts a new page.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.Content, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var b builder
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			b.body(current.String())
			current.Reset()
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		for strings.Contains(line, "\f") {
			before, after, _ := strings.Cut(line, "\f")
			if strings.TrimSpace(before) != "" {
				if current.Len() > 0 {
					current.WriteString("\n")
				}
				current.WriteString(before)
			}
			flush()
			b.breakPage()
			line = after
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return b.done(titleFrom(filename, ".txt")), nil
}
