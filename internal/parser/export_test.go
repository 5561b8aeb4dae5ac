package parser

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/docbridge/internal/doctree"
)

func sampleContent() doctree.Content {
	return doctree.Content{
		Title: "report",
		Paragraphs: []doctree.Paragraph{
			{Text: "Summary", Style: doctree.HeadingStyle(1)},
			{Text: "All good.", Style: doctree.BodyStyle},
			{Text: "Details", Style: doctree.HeadingStyle(2), PageBreakBefore: true},
			{Text: "More.", Style: doctree.BodyStyle},
		},
	}
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMarkdown(&buf, sampleContent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "# Summary\n\nAll good.\n\n---\n\n## Details\n\nMore.\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}

func TestStore_MarkdownReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	if err := Store(path, sampleContent()); err != nil {
		t.Fatalf("store: %v", err)
	}
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	orig := sampleContent()
	if len(c.Paragraphs) != len(orig.Paragraphs) {
		t.Fatalf("expected %d paragraphs, got %d", len(orig.Paragraphs), len(c.Paragraphs))
	}
	for i, p := range orig.Paragraphs {
		got := c.Paragraphs[i]
		if got.Text != p.Text || got.Style.OutlineLevel != p.Style.OutlineLevel || got.PageBreakBefore != p.PageBreakBefore {
			t.Errorf("paragraph[%d]: expected %+v, got %+v", i, p, got)
		}
	}
}

func TestStore_Text(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	if err := Store(path, sampleContent()); err != nil {
		t.Fatalf("store: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\fDetails") {
		t.Errorf("expected form feed before second page, got %q", data)
	}
}

func TestStore_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.docx")
	if err := Store(path, sampleContent()); err == nil {
		t.Fatal("expected error for .docx")
	}
	if CanStore(path) {
		t.Error("expected CanStore false for .docx")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected no file written, got %v", err)
	}
}

func TestPagedText(t *testing.T) {
	c := pagedText("First para\nwraps here\n\nSecond\f\fThird", "doc")
	want := []string{"First para\nwraps here", "Second", "Third"}
	if len(c.Paragraphs) != len(want) {
		t.Fatalf("expected %d paragraphs, got %d: %q", len(want), len(c.Paragraphs), texts(c))
	}
	for i, w := range want {
		if c.Paragraphs[i].Text != w {
			t.Errorf("paragraph[%d]: expected %q, got %q", i, w, c.Paragraphs[i].Text)
		}
	}
	if !c.Paragraphs[2].PageBreakBefore {
		t.Error("expected page break before Third")
	}
}

func TestForFile(t *testing.T) {
	for _, name := range []string{"a.txt", "a.md", "a.markdown", "a.html", "a.htm", "a.pdf", "a.docx"} {
		if _, err := ForFile(name); err != nil {
			t.Errorf("%s: unexpected error %v", name, err)
		}
		if !IsSupportedExtension(name) {
			t.Errorf("%s: expected supported", name)
		}
	}
	if _, err := ForFile("a.xlsx"); err == nil {
		t.Error("expected error for .xlsx")
	}
}
