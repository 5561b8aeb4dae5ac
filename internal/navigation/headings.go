// Package navigation turns locators into live paragraphs. It owns the heading
// tree and page caches and must only be used from the host loop.
package navigation

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/docbridge/internal/doctree"
	"github.com/dgallion1/docbridge/internal/errs"
	"github.com/dgallion1/docbridge/internal/locator"
	"github.com/google/uuid"
)

const (
	// BookmarkPrefix marks bookmarks minted for headings.
	BookmarkPrefix = "_mcp_"

	// DefaultPreviewChars is how much body text a heading preview keeps.
	DefaultPreviewChars = 100
)

// MintBookmarkName returns a new, globally unique heading bookmark name.
func MintBookmarkName() string {
	return BookmarkPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// HeadingNode is one heading in the outline.
type HeadingNode struct {
	Path           []int
	Level          int
	Text           string
	Preview        string
	Bookmark       string
	Handle         doctree.Handle
	Index          int // position when the tree was built
	BodyParagraphs int
	Children       []*HeadingNode
}

// Outline renders the node path, e.g. "2.1".
func (n *HeadingNode) Outline() string { return locator.FormatPath(n.Path) }

// Descendants counts every heading and body paragraph below n.
func (n *HeadingNode) Descendants() int {
	count := n.BodyParagraphs + len(n.Children)
	for _, c := range n.Children {
		count += c.Descendants()
	}
	return count
}

// HeadingTree is the outline of a document at the time it was built.
type HeadingTree struct {
	DocID      string
	Roots      []*HeadingNode
	Preamble   int // body paragraphs before the first heading
	Paragraphs int
	Headings   int
	BuiltAt    time.Time
}

// Find walks a 1-based outline path.
func (t *HeadingTree) Find(path []int) (*HeadingNode, error) {
	if len(path) == 0 {
		return nil, errs.New(errs.KindHeadingNotFound, "empty heading path")
	}
	level := t.Roots
	var node *HeadingNode
	for depth, i := range path {
		if i < 1 || i > len(level) {
			return nil, errs.New(errs.KindHeadingNotFound, "heading %s: index %d at depth %d out of range 1..%d",
				locator.FormatPath(path), i, depth+1, len(level))
		}
		node = level[i-1]
		level = node.Children
	}
	return node, nil
}

// FindHandle returns the heading node for h, or nil if h is not a heading.
func (t *HeadingTree) FindHandle(h doctree.Handle) *HeadingNode {
	var found *HeadingNode
	t.Walk(func(n *HeadingNode) bool {
		if n.Handle == h {
			found = n
			return false
		}
		return true
	})
	return found
}

// Walk visits nodes in document order until fn returns false.
func (t *HeadingTree) Walk(fn func(*HeadingNode) bool) {
	var visit func(nodes []*HeadingNode) bool
	visit = func(nodes []*HeadingNode) bool {
		for _, n := range nodes {
			if !fn(n) || !visit(n.Children) {
				return false
			}
		}
		return true
	}
	visit(t.Roots)
}

type treeEntry struct {
	tree  *HeadingTree
	stale bool
}

// HeadingCache keeps one heading tree per document. Structural edits mark the
// tree stale; the next GetOrBuild rebuilds it. In-place text edits do not.
type HeadingCache struct {
	previewChars int

	mu      sync.Mutex
	entries map[string]*treeEntry

	builds   atomic.Uint64
	failures atomic.Uint64
	minted   atomic.Uint64
}

func NewHeadingCache(previewChars int) *HeadingCache {
	if previewChars <= 0 {
		previewChars = DefaultPreviewChars
	}
	return &HeadingCache{
		previewChars: previewChars,
		entries:      make(map[string]*treeEntry),
	}
}

// GetOrBuild returns the cached tree, rebuilding it when missing or stale.
// A failed build leaves the previous tree in place and returns a retryable
// HostUnavailable error.
func (c *HeadingCache) GetOrBuild(doc doctree.Document) (*HeadingTree, error) {
	id := doc.ID()
	c.mu.Lock()
	e, ok := c.entries[id]
	if ok && !e.stale {
		c.mu.Unlock()
		return e.tree, nil
	}
	c.mu.Unlock()

	tree, err := c.build(doc)
	if err != nil {
		c.failures.Add(1)
		return nil, err
	}
	c.builds.Add(1)

	c.mu.Lock()
	c.entries[id] = &treeEntry{tree: tree}
	c.mu.Unlock()
	return tree, nil
}

// InvalidateStructural marks the document's tree stale. The old tree is kept
// as the last known good one until a rebuild succeeds.
func (c *HeadingCache) InvalidateStructural(docID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[docID]; ok {
		e.stale = true
	}
}

// InvalidateTextOnly is called after in-place text replacement. The outline
// and bookmarks are unchanged, so the tree stays valid.
func (c *HeadingCache) InvalidateTextOnly(docID string) {}

// Peek returns the cached tree without building. stale reports whether a
// structural edit has happened since it was built.
func (c *HeadingCache) Peek(docID string) (tree *HeadingTree, stale bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[docID]
	if !ok {
		return nil, false, false
	}
	return e.tree, e.stale, true
}

// Forget drops everything cached for a closed document.
func (c *HeadingCache) Forget(docID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, docID)
}

// HeadingStats reports cache activity.
type HeadingStats struct {
	Documents int    `json:"documents"`
	Builds    uint64 `json:"builds"`
	Failures  uint64 `json:"failures"`
	Minted    uint64 `json:"bookmarks_minted"`
}

func (c *HeadingCache) Stats() HeadingStats {
	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()
	return HeadingStats{
		Documents: n,
		Builds:    c.builds.Load(),
		Failures:  c.failures.Load(),
		Minted:    c.minted.Load(),
	}
}

// build scans the document once. Headings nest under the closest preceding
// heading of a lower level; every heading gets an _mcp_ bookmark, reusing one
// already attached to it.
func (c *HeadingCache) build(doc doctree.Document) (*HeadingTree, error) {
	handles, err := doc.ListParagraphs()
	if err != nil {
		return nil, unavailable(err, "list paragraphs of %s", doc.ID())
	}
	owned, err := headingBookmarks(doc)
	if err != nil {
		return nil, err
	}

	tree := &HeadingTree{DocID: doc.ID(), Paragraphs: len(handles), BuiltAt: time.Now()}
	var stack []*HeadingNode
	previews := make(map[*HeadingNode]*previewBuilder)

	for i, h := range handles {
		style, err := doc.ParagraphStyle(h)
		if err != nil {
			return nil, unavailable(err, "style of paragraph %d", i)
		}
		if !style.IsHeading() {
			if len(stack) == 0 {
				tree.Preamble++
				continue
			}
			top := stack[len(stack)-1]
			top.BodyParagraphs++
			pb := previews[top]
			if !pb.full() {
				text, err := doc.ParagraphText(h)
				if err != nil {
					return nil, unavailable(err, "text of paragraph %d", i)
				}
				pb.add(text)
			}
			continue
		}

		text, err := doc.ParagraphText(h)
		if err != nil {
			return nil, unavailable(err, "text of paragraph %d", i)
		}
		for len(stack) > 0 && stack[len(stack)-1].Level >= style.OutlineLevel {
			stack = stack[:len(stack)-1]
		}
		node := &HeadingNode{Level: style.OutlineLevel, Text: text, Handle: h, Index: i}
		if len(stack) == 0 {
			tree.Roots = append(tree.Roots, node)
			node.Path = []int{len(tree.Roots)}
		} else {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, node)
			node.Path = append(append([]int(nil), parent.Path...), len(parent.Children))
		}

		name, ok := owned[h]
		if !ok {
			name = MintBookmarkName()
			if err := doc.InsertBookmark(h, name); err != nil {
				return nil, unavailable(err, "bookmark heading %s", node.Outline())
			}
			c.minted.Add(1)
		}
		node.Bookmark = name
		previews[node] = &previewBuilder{max: c.previewChars}
		tree.Headings++
		stack = append(stack, node)
	}

	for n, pb := range previews {
		n.Preview = pb.String()
	}
	return tree, nil
}

// headingBookmarks maps each paragraph to its _mcp_ bookmark. When a
// paragraph carries several, the lexically smallest wins.
func headingBookmarks(doc doctree.Document) (map[doctree.Handle]string, error) {
	marks, err := doc.Bookmarks()
	if err != nil {
		return nil, unavailable(err, "list bookmarks of %s", doc.ID())
	}
	names := make([]string, 0, len(marks))
	for name := range marks {
		if strings.HasPrefix(name, BookmarkPrefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	owned := make(map[doctree.Handle]string, len(names))
	for _, name := range names {
		h := marks[name]
		if _, taken := owned[h]; !taken {
			owned[h] = name
		}
	}
	return owned, nil
}

// BookmarkFor returns the _mcp_ bookmark attached to h, or "" if none.
func BookmarkFor(doc doctree.Document, h doctree.Handle) (string, error) {
	owned, err := headingBookmarks(doc)
	if err != nil {
		return "", err
	}
	return owned[h], nil
}

type previewBuilder struct {
	max   int
	parts []string
	n     int
}

func (p *previewBuilder) full() bool { return p.n >= p.max }

func (p *previewBuilder) add(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	p.parts = append(p.parts, text)
	p.n += utf8.RuneCountInString(text)
}

func (p *previewBuilder) String() string {
	s := strings.Join(p.parts, " ")
	return Truncate(s, p.max)
}

// Truncate shortens s to max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "..."
}

func unavailable(err error, format string, args ...any) error {
	if e, ok := errs.As(err); ok {
		return e
	}
	return errs.Wrap(errs.KindHostUnavailable, err, format, args...)
}
