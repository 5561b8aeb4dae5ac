package navigation

import (
	"errors"
	"sort"

	"github.com/dgallion1/docbridge/internal/doctree"
	"github.com/dgallion1/docbridge/internal/errs"
	"github.com/dgallion1/docbridge/internal/locator"
)

// Target is a resolved locator: a live paragraph and its current position.
type Target struct {
	Handle   doctree.Handle `json:"-"`
	Index    int            `json:"para_index"`
	Bookmark string         `json:"bookmark,omitempty"`
}

// Resolver maps locators to paragraphs using the shared caches.
type Resolver struct {
	headings *HeadingCache
	pages    *PageIndex
}

func NewResolver(headings *HeadingCache, pages *PageIndex) *Resolver {
	return &Resolver{headings: headings, pages: pages}
}

// Resolve finds the paragraph loc points at in doc. Failures are typed:
// OrphanedLocator, HeadingNotFound, IndexOutOfRange or PageNotFound. A
// locator never silently resolves to a different paragraph.
func (r *Resolver) Resolve(doc doctree.Document, loc locator.Locator) (Target, error) {
	switch loc.Kind {
	case locator.KindBookmark:
		return r.bookmark(doc, loc.Name)
	case locator.KindHeading:
		return r.heading(doc, loc.Path)
	case locator.KindParagraph:
		return r.paragraph(doc, loc.Index)
	case locator.KindPage:
		return r.page(doc, loc.Index)
	}
	return Target{}, errs.New(errs.KindInvalidArgument, "unsupported locator kind %v", loc.Kind)
}

// ResolveString parses and resolves in one step.
func (r *Resolver) ResolveString(doc doctree.Document, s string) (Target, error) {
	loc, err := locator.Parse(s)
	if err != nil {
		return Target{}, err
	}
	return r.Resolve(doc, loc)
}

func (r *Resolver) bookmark(doc doctree.Document, name string) (Target, error) {
	h, found, err := doc.FindBookmark(name)
	if err != nil {
		return Target{}, unavailable(err, "find bookmark %q", name)
	}
	if !found {
		return Target{}, errs.New(errs.KindOrphanedLocator, "bookmark %q does not exist", name)
	}
	idx, err := doc.IndexOf(h)
	if errors.Is(err, doctree.ErrNoParagraph) {
		return Target{}, errs.New(errs.KindOrphanedLocator, "bookmark %q is orphaned: its paragraph was deleted", name)
	}
	if err != nil {
		return Target{}, unavailable(err, "locate bookmark %q", name)
	}
	return Target{Handle: h, Index: idx, Bookmark: name}, nil
}

func (r *Resolver) heading(doc doctree.Document, path []int) (Target, error) {
	tree, err := r.headings.GetOrBuild(doc)
	if err != nil {
		return Target{}, err
	}
	node, err := tree.Find(path)
	if err != nil {
		return Target{}, err
	}
	return r.bookmark(doc, node.Bookmark)
}

func (r *Resolver) paragraph(doc doctree.Document, n int) (Target, error) {
	handles, err := doc.ListParagraphs()
	if err != nil {
		return Target{}, unavailable(err, "list paragraphs of %s", doc.ID())
	}
	if n < 0 || n >= len(handles) {
		return Target{}, errs.New(errs.KindIndexOutOfRange, "paragraph %d out of range 0..%d", n, len(handles)-1)
	}
	return Target{Handle: handles[n], Index: n}, nil
}

// page returns the first paragraph starting on page n. When a long paragraph
// covers all of page n, the paragraph that spans it is returned.
func (r *Resolver) page(doc doctree.Document, n int) (Target, error) {
	count, err := r.pages.PageCount(doc)
	if err != nil {
		return Target{}, unavailable(err, "page count of %s", doc.ID())
	}
	if n < 1 || n > count {
		return Target{}, errs.New(errs.KindPageNotFound, "page %d out of range 1..%d", n, count)
	}
	handles, err := doc.ListParagraphs()
	if err != nil {
		return Target{}, unavailable(err, "list paragraphs of %s", doc.ID())
	}
	if len(handles) == 0 {
		return Target{}, errs.New(errs.KindPageNotFound, "page %d: document is empty", n)
	}

	var searchErr error
	i := sort.Search(len(handles), func(i int) bool {
		if searchErr != nil {
			return true
		}
		pg, err := r.pages.PageOf(doc, handles[i])
		if err != nil {
			searchErr = err
			return true
		}
		return pg >= n
	})
	if searchErr != nil {
		return Target{}, unavailable(searchErr, "page lookup in %s", doc.ID())
	}
	if i < len(handles) {
		pg, err := r.pages.PageOf(doc, handles[i])
		if err != nil {
			return Target{}, unavailable(err, "page lookup in %s", doc.ID())
		}
		if pg == n {
			return Target{Handle: handles[i], Index: i}, nil
		}
	}
	if i == 0 {
		return Target{}, errs.New(errs.KindPageNotFound, "no paragraph on or before page %d", n)
	}
	return Target{Handle: handles[i-1], Index: i - 1}, nil
}
