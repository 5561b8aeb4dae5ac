package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/dgallion1/docbridge/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. ATX and setext
// headings become heading paragraphs and a thematic break (---) starts a new
// page.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Content, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var b builder
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		markdownBlock(&b, n, src)
	}
	return b.done(titleFrom(filename, ".md", ".markdown")), nil
}

func markdownBlock(b *builder, n ast.Node, src []byte) {
	switch node := n.(type) {
	case *ast.Heading:
		b.heading(node.Level, inlineText(node, src))
	case *ast.ThematicBreak:
		b.breakPage()
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		b.body(blockLines(n, src))
	case *ast.List, *ast.ListItem, *ast.Blockquote:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			markdownBlock(b, c, src)
		}
	case *ast.HTMLBlock:
		b.body(blockLines(n, src))
	default:
		b.body(inlineText(n, src))
	}
}

func blockLines(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(src))
	}
	return strings.TrimRight(buf.String(), "\n")
}

// inlineText flattens the inline children of a block, dropping markup.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				buf.Write(t.Segment.Value(src))
				if t.HardLineBreak() || t.SoftLineBreak() {
					buf.WriteByte('\n')
				}
			case *ast.String:
				buf.Write(t.Value)
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return strings.TrimSpace(buf.String())
}
