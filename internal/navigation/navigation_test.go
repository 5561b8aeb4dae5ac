package navigation

import (
	"errors"
	"strings"
	"testing"

	"github.com/dgallion1/docbridge/internal/doctree"
	"github.com/dgallion1/docbridge/internal/errs"
	"github.com/dgallion1/docbridge/internal/locator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spyDoc wraps a Memory to count page lookups and inject failures.
type spyDoc struct {
	*doctree.Memory
	pageCalls  int
	failStyles bool
}

func (p *spyDoc) PageNumberOf(h doctree.Handle) (int, error) {
	p.pageCalls++
	return p.Memory.PageNumberOf(h)
}

func (p *spyDoc) ParagraphStyle(h doctree.Handle) (doctree.Style, error) {
	if p.failStyles {
		return doctree.Style{}, errors.New("bridge disconnected")
	}
	return p.Memory.ParagraphStyle(h)
}

func h(level int, text string) doctree.Paragraph {
	return doctree.Paragraph{Text: text, Style: doctree.HeadingStyle(level)}
}

func body(text string) doctree.Paragraph {
	return doctree.Paragraph{Text: text, Style: doctree.BodyStyle}
}

// outline: A, B{B1, B2}, C
func outline() *spyDoc {
	return &spyDoc{Memory: doctree.NewMemory("doc", doctree.Content{Paragraphs: []doctree.Paragraph{
		body("preamble"),
		h(1, "A"),
		body("about a"),
		h(1, "B"),
		body("about b"),
		h(2, "B1"),
		body("about b1"),
		h(2, "B2"),
		h(1, "C"),
		body("about c"),
	}}, doctree.MemoryOptions{Path: "/tmp/doc.md", LinesPerPage: 2})}
}

func newNav() (*HeadingCache, *PageIndex, *Resolver) {
	hc := NewHeadingCache(0)
	pi := NewPageIndex()
	return hc, pi, NewResolver(hc, pi)
}

func TestBuild_Outline(t *testing.T) {
	doc := outline()
	hc, _, _ := newNav()

	tree, err := hc.GetOrBuild(doc)
	require.NoError(t, err)
	require.Len(t, tree.Roots, 3)
	assert.Equal(t, 1, tree.Preamble)
	assert.Equal(t, 10, tree.Paragraphs)
	assert.Equal(t, 5, tree.Headings)

	b := tree.Roots[1]
	assert.Equal(t, "B", b.Text)
	assert.Equal(t, "2", b.Outline())
	require.Len(t, b.Children, 2)
	assert.Equal(t, "2.1", b.Children[0].Outline())
	assert.Equal(t, "B1", b.Children[0].Text)
	assert.Equal(t, "about b", b.Preview)
	assert.Equal(t, 1, b.BodyParagraphs)
	assert.Equal(t, 4, b.Descendants())

	tree.Walk(func(n *HeadingNode) bool {
		assert.True(t, strings.HasPrefix(n.Bookmark, BookmarkPrefix), n.Text)
		return true
	})
}

func TestResolve_HeadingPath(t *testing.T) {
	doc := outline()
	_, _, r := newNav()

	target, err := r.Resolve(doc, locator.Heading(2, 1))
	require.NoError(t, err)
	text, err := doc.ParagraphText(target.Handle)
	require.NoError(t, err)
	assert.Equal(t, "B1", text)
	assert.Equal(t, 5, target.Index)

	for _, path := range [][]int{{4}, {2, 3}, {1, 1}, {2, 1, 1}, {0}, {2, 0}} {
		_, err := r.Resolve(doc, locator.Heading(path...))
		assert.ErrorIs(t, err, errs.ErrHeadingNotFound, "path %v", path)
	}
	for _, s := range []string{"heading:0", "heading:2.0"} {
		_, err := r.ResolveString(doc, s)
		assert.ErrorIs(t, err, errs.ErrHeadingNotFound, s)
	}
}

func TestResolve_BookmarkSurvivesStructuralEdits(t *testing.T) {
	doc := outline()
	hc, _, r := newNav()

	tree, err := hc.GetOrBuild(doc)
	require.NoError(t, err)
	b1 := tree.Roots[1].Children[0].Bookmark

	// Insert before, delete an unrelated paragraph, duplicate another.
	_, err = doc.InsertParagraph(0, body("new first"))
	require.NoError(t, err)
	handles, _ := doc.ListParagraphs()
	require.NoError(t, doc.DeleteParagraph(handles[3]))
	_, err = doc.DuplicateParagraph(handles[9])
	require.NoError(t, err)
	hc.InvalidateStructural(doc.ID())

	target, err := r.Resolve(doc, locator.Bookmark(b1))
	require.NoError(t, err)
	text, _ := doc.ParagraphText(target.Handle)
	assert.Equal(t, "B1", text)
	assert.Equal(t, b1, target.Bookmark)
}

func TestResolve_OrphanedBookmark(t *testing.T) {
	doc := outline()
	hc, _, r := newNav()

	tree, err := hc.GetOrBuild(doc)
	require.NoError(t, err)
	node := tree.Roots[0]
	require.NoError(t, doc.DeleteParagraph(node.Handle))
	hc.InvalidateStructural(doc.ID())

	_, err = r.Resolve(doc, locator.Bookmark(node.Bookmark))
	assert.ErrorIs(t, err, errs.ErrOrphanedLocator)
	assert.False(t, errs.IsRetryable(err))

	_, err = r.Resolve(doc, locator.Bookmark("_mcp_missing"))
	assert.ErrorIs(t, err, errs.ErrOrphanedLocator)
}

func TestBuild_MintingIsIdempotent(t *testing.T) {
	doc := outline()
	hc, _, _ := newNav()

	first, err := hc.GetOrBuild(doc)
	require.NoError(t, err)
	marks, _ := doc.Bookmarks()
	assert.Len(t, marks, 5)

	hc.InvalidateStructural(doc.ID())
	second, err := hc.GetOrBuild(doc)
	require.NoError(t, err)
	marks, _ = doc.Bookmarks()
	assert.Len(t, marks, 5)
	assert.Equal(t, uint64(5), hc.Stats().Minted)
	assert.Equal(t, first.Roots[2].Bookmark, second.Roots[2].Bookmark)
}

func TestBuild_CachedUntilStructuralEdit(t *testing.T) {
	doc := outline()
	hc, _, _ := newNav()

	first, err := hc.GetOrBuild(doc)
	require.NoError(t, err)
	require.NoError(t, doc.SetParagraphText(first.Roots[0].Handle, "A renamed"))
	hc.InvalidateTextOnly(doc.ID())

	again, err := hc.GetOrBuild(doc)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, uint64(1), hc.Stats().Builds)

	hc.InvalidateStructural(doc.ID())
	rebuilt, err := hc.GetOrBuild(doc)
	require.NoError(t, err)
	assert.NotSame(t, first, rebuilt)
	assert.Equal(t, "A renamed", rebuilt.Roots[0].Text)
}

func TestBuild_FailureKeepsLastKnownGood(t *testing.T) {
	doc := outline()
	hc, _, _ := newNav()

	good, err := hc.GetOrBuild(doc)
	require.NoError(t, err)
	hc.InvalidateStructural(doc.ID())

	doc.failStyles = true
	_, err = hc.GetOrBuild(doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrHostUnavailable)
	assert.True(t, errs.IsRetryable(err))

	kept, stale, ok := hc.Peek(doc.ID())
	require.True(t, ok)
	assert.True(t, stale)
	assert.Same(t, good, kept)

	doc.failStyles = false
	fresh, err := hc.GetOrBuild(doc)
	require.NoError(t, err)
	assert.NotSame(t, good, fresh)
}

func TestPageIndex_InvalidatedOnCommit(t *testing.T) {
	doc := outline()
	_, pi, _ := newNav()
	pi.Watch(doc)
	pi.Watch(doc)

	handles, _ := doc.ListParagraphs()
	last := handles[len(handles)-1]

	before, err := pi.PageOf(doc, last)
	require.NoError(t, err)
	_, err = pi.PageOf(doc, last)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.pageCalls, "second lookup should hit the cache")
	epoch := pi.Epoch(doc.ID())

	_, err = doc.InsertParagraph(0, body("pushes everything down"))
	require.NoError(t, err)
	require.NoError(t, doc.Commit())
	assert.Equal(t, 0, pi.Len(doc.ID()))
	assert.Equal(t, uint64(1), pi.Stats().Invalidations)

	after, err := pi.PageOf(doc, last)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.pageCalls)
	assert.Greater(t, after, before)
	assert.NotEqual(t, epoch, pi.Epoch(doc.ID()))
}

func TestResolve_Paragraph(t *testing.T) {
	doc := outline()
	_, _, r := newNav()

	target, err := r.Resolve(doc, locator.Paragraph(0))
	require.NoError(t, err)
	text, _ := doc.ParagraphText(target.Handle)
	assert.Equal(t, "preamble", text)

	for _, n := range []int{-1, 10} {
		_, err := r.Resolve(doc, locator.Paragraph(n))
		assert.ErrorIs(t, err, errs.ErrIndexOutOfRange)
	}
}

func TestResolve_Page(t *testing.T) {
	// Two lines per page: paragraphs land on 1,1,2,2,3,3,4,4,5,5.
	doc := outline()
	_, _, r := newNav()

	target, err := r.Resolve(doc, locator.Page(3))
	require.NoError(t, err)
	assert.Equal(t, 4, target.Index)

	_, err = r.Resolve(doc, locator.Page(0))
	assert.ErrorIs(t, err, errs.ErrPageNotFound)
	_, err = r.Resolve(doc, locator.Page(6))
	assert.ErrorIs(t, err, errs.ErrPageNotFound)
}

func TestResolve_PageSpannedByLongParagraph(t *testing.T) {
	long := strings.Repeat("x", 80*5)
	doc := doctree.NewMemory("long", doctree.Content{Paragraphs: []doctree.Paragraph{
		body("intro"),
		body(long),
		body("tail"),
	}}, doctree.MemoryOptions{LinesPerPage: 2})
	_, _, r := newNav()

	// intro on 1, long starts on 1 and runs through page 3, tail on 4.
	target, err := r.Resolve(doc, locator.Page(2))
	require.NoError(t, err)
	assert.Equal(t, 1, target.Index)
}

func TestPreviewTruncated(t *testing.T) {
	doc := doctree.NewMemory("p", doctree.Content{Paragraphs: []doctree.Paragraph{
		h(1, "Title"),
		body(strings.Repeat("a", 30)),
		body(strings.Repeat("b", 30)),
	}}, doctree.MemoryOptions{})
	hc := NewHeadingCache(40)

	tree, err := hc.GetOrBuild(doc)
	require.NoError(t, err)
	want := strings.Repeat("a", 30) + " " + strings.Repeat("b", 9) + "..."
	assert.Equal(t, want, tree.Roots[0].Preview)
}

func TestBuild_SkippedLevelsNest(t *testing.T) {
	doc := doctree.NewMemory("s", doctree.Content{Paragraphs: []doctree.Paragraph{
		h(1, "Top"),
		h(3, "Deep"),
		h(2, "Mid"),
	}}, doctree.MemoryOptions{})
	hc := NewHeadingCache(0)

	tree, err := hc.GetOrBuild(doc)
	require.NoError(t, err)
	require.Len(t, tree.Roots, 1)
	require.Len(t, tree.Roots[0].Children, 2)
	assert.Equal(t, "1.1", tree.Roots[0].Children[0].Outline())
	assert.Equal(t, "Mid", tree.Roots[0].Children[1].Text)
}

func TestBuild_ReusesExistingBookmark(t *testing.T) {
	doc := outline()
	handles, _ := doc.ListParagraphs()
	require.NoError(t, doc.InsertBookmark(handles[1], "_mcp_existing"))
	hc := NewHeadingCache(0)

	tree, err := hc.GetOrBuild(doc)
	require.NoError(t, err)
	assert.Equal(t, "_mcp_existing", tree.Roots[0].Bookmark)
	assert.Equal(t, uint64(4), hc.Stats().Minted)
}

func TestFindHandle(t *testing.T) {
	doc := outline()
	hc := NewHeadingCache(0)
	tree, err := hc.GetOrBuild(doc)
	require.NoError(t, err)

	handles, _ := doc.ListParagraphs()
	assert.Equal(t, "B2", tree.FindHandle(handles[7]).Text)
	assert.Nil(t, tree.FindHandle(handles[0]))
}

func TestMintBookmarkNameUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		name := MintBookmarkName()
		assert.True(t, strings.HasPrefix(name, BookmarkPrefix))
		assert.False(t, seen[name])
		seen[name] = true
	}
}
