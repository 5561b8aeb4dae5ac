package doctree

import (
	"errors"
	"strings"
	"testing"
)

func sample() Content {
	return Content{
		Title: "sample",
		Paragraphs: []Paragraph{
			{Text: "A", Style: HeadingStyle(1)},
			{Text: "body a"},
			{Text: "B", Style: HeadingStyle(1)},
			{Text: "body b"},
		},
	}
}

func TestMemory_HandlesSurviveInsert(t *testing.T) {
	m := NewMemory("doc", sample(), MemoryOptions{})
	hs, err := m.ListParagraphs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	target := hs[2]

	if _, err := m.InsertParagraph(0, Paragraph{Text: "preface"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	idx, err := m.IndexOf(target)
	if err != nil {
		t.Fatalf("index of: %v", err)
	}
	if idx != 3 {
		t.Errorf("expected shifted index 3, got %d", idx)
	}
	text, _ := m.ParagraphText(target)
	if text != "B" {
		t.Errorf("expected text %q, got %q", "B", text)
	}
}

func TestMemory_DeleteOrphansBookmark(t *testing.T) {
	m := NewMemory("doc", sample(), MemoryOptions{})
	hs, _ := m.ListParagraphs()
	if err := m.InsertBookmark(hs[1], "_mcp_x"); err != nil {
		t.Fatalf("insert bookmark: %v", err)
	}
	if err := m.DeleteParagraph(hs[1]); err != nil {
		t.Fatalf("delete: %v", err)
	}

	h, found, err := m.FindBookmark("_mcp_x")
	if err != nil || !found {
		t.Fatalf("expected bookmark to still be known, found=%v err=%v", found, err)
	}
	if _, err := m.IndexOf(h); !errors.Is(err, ErrNoParagraph) {
		t.Errorf("expected ErrNoParagraph for orphaned handle, got %v", err)
	}
}

func TestMemory_DuplicateBookmarkName(t *testing.T) {
	m := NewMemory("doc", sample(), MemoryOptions{})
	hs, _ := m.ListParagraphs()
	if err := m.InsertBookmark(hs[0], "dup"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := m.InsertBookmark(hs[1], "dup"); !errors.Is(err, ErrBookmarkExists) {
		t.Errorf("expected ErrBookmarkExists, got %v", err)
	}
}

func TestMemory_PageLayout(t *testing.T) {
	content := Content{Paragraphs: []Paragraph{
		{Text: "p1"},
		{Text: "p2"},
		{Text: "p3"},
		{Text: "p4", PageBreakBefore: true},
		{Text: strings.Repeat("x", charsPerLine*3)},
		{Text: "p6"},
	}}
	m := NewMemory("doc", content, MemoryOptions{LinesPerPage: 2})
	hs, _ := m.ListParagraphs()

	want := []int{1, 1, 2, 3, 3, 5}
	for i, h := range hs {
		got, err := m.PageNumberOf(h)
		if err != nil {
			t.Fatalf("page of %d: %v", i, err)
		}
		if got != want[i] {
			t.Errorf("paragraph %d: expected page %d, got %d", i, want[i], got)
		}
	}
	count, _ := m.PageCount()
	if count != 5 {
		t.Errorf("expected 5 pages, got %d", count)
	}
}

func TestMemory_ReflowAfterEdit(t *testing.T) {
	m := NewMemory("doc", sample(), MemoryOptions{LinesPerPage: 2})
	hs, _ := m.ListParagraphs()
	before, _ := m.PageNumberOf(hs[3])
	if before != 2 {
		t.Fatalf("expected page 2 before edit, got %d", before)
	}
	if _, err := m.InsertParagraph(0, Paragraph{Text: "new"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	after, _ := m.PageNumberOf(hs[3])
	if after != 3 {
		t.Errorf("expected page 3 after insert, got %d", after)
	}
}

func TestMemory_CommitRunsHooks(t *testing.T) {
	m := NewMemory("doc", sample(), MemoryOptions{Path: "/tmp/doc.md"})
	calls := 0
	m.OnCommit(func() { calls++ })
	if err := m.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 hook call, got %d", calls)
	}
	if m.Revision() != 1 {
		t.Errorf("expected revision 1, got %d", m.Revision())
	}
}

func TestMemory_CommitWithoutLocation(t *testing.T) {
	m := NewMemory("doc", sample(), MemoryOptions{})
	if err := m.Commit(); !errors.Is(err, ErrNoLocation) {
		t.Errorf("expected ErrNoLocation, got %v", err)
	}
}

func TestMemory_CommitStores(t *testing.T) {
	var gotPath string
	var got Content
	m := NewMemory("doc", sample(), MemoryOptions{
		Store: func(path string, c Content) error {
			gotPath, got = path, c
			return nil
		},
	})
	m.SetPath("/tmp/out.md")
	if err := m.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if gotPath != "/tmp/out.md" {
		t.Errorf("expected store at /tmp/out.md, got %q", gotPath)
	}
	if len(got.Paragraphs) != 4 || got.Paragraphs[2].Text != "B" {
		t.Errorf("unexpected stored content: %+v", got.Paragraphs)
	}
	if m.Modified() {
		t.Error("expected clean document after commit")
	}
}

func TestMemory_StoreFailureKeepsRevision(t *testing.T) {
	boom := errors.New("disk full")
	m := NewMemory("doc", sample(), MemoryOptions{
		Path:  "/tmp/out.md",
		Store: func(string, Content) error { return boom },
	})
	calls := 0
	m.OnCommit(func() { calls++ })
	if err := m.Commit(); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
	if m.Revision() != 0 || calls != 0 {
		t.Errorf("expected no revision bump or hooks, got rev=%d hooks=%d", m.Revision(), calls)
	}
}

func TestMemory_Closed(t *testing.T) {
	m := NewMemory("doc", sample(), MemoryOptions{})
	m.Close()
	if _, err := m.ListParagraphs(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := m.PageCount(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from PageCount, got %v", err)
	}
}

func TestStyleByName(t *testing.T) {
	tests := []struct {
		name  string
		level int
	}{
		{"Heading 1", 1},
		{"heading2", 2},
		{"Heading9", 9},
		{"Heading 10", 0},
		{"Text Body", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := StyleByName(tt.name).OutlineLevel; got != tt.level {
			t.Errorf("StyleByName(%q): expected level %d, got %d", tt.name, tt.level, got)
		}
	}
}
