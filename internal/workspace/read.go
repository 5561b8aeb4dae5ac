package workspace

import (
	"cmp"
	"slices"

	"github.com/dgallion1/docbridge/internal/doctree"
	"github.com/dgallion1/docbridge/internal/errs"
	"github.com/dgallion1/docbridge/internal/locator"
	"github.com/dgallion1/docbridge/internal/navigation"
)

// Located is implemented by results that point at a paragraph. Batch uses it
// to bind $last and $step.N.
type Located interface {
	Location() (index int, bookmark string)
}

// NodeView is one heading in a tree result.
type NodeView struct {
	Outline        string     `json:"outline"`
	Level          int        `json:"level"`
	Text           string     `json:"text"`
	Bookmark       string     `json:"bookmark"`
	ParaIndex      int        `json:"para_index"`
	Page           int        `json:"page,omitempty"`
	Preview        string     `json:"preview,omitempty"`
	BodyParagraphs int        `json:"body_paragraphs"`
	ChildrenCount  int        `json:"children_count"`
	Children       []NodeView `json:"children,omitempty"`
}

func (n NodeView) Location() (int, string) { return n.ParaIndex, n.Bookmark }

// TreeOptions controls how much of the outline a tree result includes.
type TreeOptions struct {
	Depth    int // 0 means unlimited
	Previews bool
	Pages    bool
}

// TreeView is the outline of a document.
type TreeView struct {
	DocID      string     `json:"doc_id"`
	Headings   []NodeView `json:"children"`
	Preamble   int        `json:"body_before_first_heading"`
	Paragraphs int        `json:"total_paragraphs"`
	PageCount  int        `json:"page_count"`
	Depth      int        `json:"depth"`
}

// Tree returns the document outline, building the heading cache if needed.
func (w *Workspace) Tree(id string, opts TreeOptions) (TreeView, error) {
	doc, err := w.Document(id)
	if err != nil {
		return TreeView{}, err
	}
	tree, err := w.headings.GetOrBuild(doc)
	if err != nil {
		return TreeView{}, err
	}
	pages, err := w.pages.PageCount(doc)
	if err != nil {
		return TreeView{}, classify(err)
	}
	nodes, err := w.nodeViews(doc, tree.Roots, opts, 1)
	if err != nil {
		return TreeView{}, err
	}
	return TreeView{
		DocID:      doc.ID(),
		Headings:   nodes,
		Preamble:   tree.Preamble,
		Paragraphs: tree.Paragraphs,
		PageCount:  pages,
		Depth:      opts.Depth,
	}, nil
}

func (w *Workspace) nodeViews(doc doctree.Document, nodes []*navigation.HeadingNode, opts TreeOptions, depth int) ([]NodeView, error) {
	out := make([]NodeView, 0, len(nodes))
	for _, n := range nodes {
		v := NodeView{
			Outline:        n.Outline(),
			Level:          n.Level,
			Text:           n.Text,
			Bookmark:       n.Bookmark,
			ParaIndex:      n.Index,
			BodyParagraphs: n.BodyParagraphs,
			ChildrenCount:  n.Descendants(),
		}
		if opts.Previews {
			v.Preview = n.Preview
		}
		if opts.Pages {
			pg, err := w.pages.PageOf(doc, n.Handle)
			if err != nil {
				return nil, classify(err)
			}
			v.Page = pg
		}
		if opts.Depth == 0 || depth < opts.Depth {
			children, err := w.nodeViews(doc, n.Children, opts, depth+1)
			if err != nil {
				return nil, err
			}
			if len(children) > 0 {
				v.Children = children
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// BodyView is a body paragraph directly under a heading.
type BodyView struct {
	ParaIndex int    `json:"para_index"`
	Text      string `json:"text,omitempty"`
	Preview   string `json:"preview,omitempty"`
}

// ChildrenView lists what sits under one heading: its own body paragraphs,
// then its sub-headings.
type ChildrenView struct {
	Parent   NodeView   `json:"parent"`
	Body     []BodyView `json:"body"`
	Children []NodeView `json:"children"`
}

func (c ChildrenView) Location() (int, string) { return c.Parent.Location() }

// HeadingChildren resolves loc to a heading and lists its contents. With
// full set, body paragraphs carry their whole text instead of a preview.
func (w *Workspace) HeadingChildren(id, loc string, opts TreeOptions, full bool) (ChildrenView, error) {
	doc, err := w.Document(id)
	if err != nil {
		return ChildrenView{}, err
	}
	target, err := w.resolver.ResolveString(doc, loc)
	if err != nil {
		return ChildrenView{}, err
	}
	tree, err := w.headings.GetOrBuild(doc)
	if err != nil {
		return ChildrenView{}, err
	}
	node := tree.FindHandle(target.Handle)
	if node == nil {
		return ChildrenView{}, errs.New(errs.KindHeadingNotFound, "%s is not a heading", loc)
	}

	parent := NodeView{
		Outline:        node.Outline(),
		Level:          node.Level,
		Text:           node.Text,
		Bookmark:       node.Bookmark,
		ParaIndex:      target.Index,
		Preview:        node.Preview,
		BodyParagraphs: node.BodyParagraphs,
		ChildrenCount:  node.Descendants(),
	}

	handles, err := doc.ListParagraphs()
	if err != nil {
		return ChildrenView{}, classify(err)
	}
	body := []BodyView{}
	for i := target.Index + 1; i < len(handles); i++ {
		style, err := doc.ParagraphStyle(handles[i])
		if err != nil {
			return ChildrenView{}, classify(err)
		}
		if style.IsHeading() {
			break
		}
		text, err := doc.ParagraphText(handles[i])
		if err != nil {
			return ChildrenView{}, classify(err)
		}
		bv := BodyView{ParaIndex: i}
		if full {
			bv.Text = text
		} else {
			bv.Preview = navigation.Truncate(text, w.previewChars())
		}
		body = append(body, bv)
	}

	children, err := w.nodeViews(doc, node.Children, opts, 1)
	if err != nil {
		return ChildrenView{}, err
	}
	return ChildrenView{Parent: parent, Body: body, Children: children}, nil
}

func (w *Workspace) previewChars() int {
	if w.opts.PreviewChars > 0 {
		return w.opts.PreviewChars
	}
	return navigation.DefaultPreviewChars
}

// ParagraphView is one paragraph in a read result.
type ParagraphView struct {
	ParaIndex    int    `json:"para_index"`
	Text         string `json:"text"`
	Style        string `json:"style"`
	OutlineLevel int    `json:"outline_level,omitempty"`
	Bookmark     string `json:"bookmark,omitempty"`
}

// ReadView is a window of paragraphs.
type ReadView struct {
	DocID      string          `json:"doc_id"`
	Paragraphs []ParagraphView `json:"paragraphs"`
	Total      int             `json:"total"`
}

func (r ReadView) Location() (int, string) {
	if len(r.Paragraphs) == 0 {
		return -1, ""
	}
	return r.Paragraphs[0].ParaIndex, r.Paragraphs[0].Bookmark
}

// MaxReadCount caps how many paragraphs one read returns.
const MaxReadCount = 200

// ReadParagraphs returns up to count paragraphs starting at loc.
func (w *Workspace) ReadParagraphs(id, loc string, count int) (ReadView, error) {
	doc, err := w.Document(id)
	if err != nil {
		return ReadView{}, err
	}
	defaulted := loc == ""
	if defaulted {
		loc = locator.Paragraph(0).String()
	}
	if count <= 0 {
		count = 10
	}
	count = min(count, MaxReadCount)

	handles, err := doc.ListParagraphs()
	if err != nil {
		return ReadView{}, classify(err)
	}
	view := ReadView{DocID: doc.ID(), Total: len(handles), Paragraphs: []ParagraphView{}}
	if len(handles) == 0 && defaulted {
		return view, nil
	}
	target, err := w.resolver.ResolveString(doc, loc)
	if err != nil {
		return ReadView{}, err
	}
	marks, err := bookmarksByHandle(doc)
	if err != nil {
		return ReadView{}, err
	}
	end := min(target.Index+count, len(handles))
	for i := target.Index; i < end; i++ {
		pv, err := paragraphView(doc, handles[i], i, marks)
		if err != nil {
			return ReadView{}, err
		}
		view.Paragraphs = append(view.Paragraphs, pv)
	}
	return view, nil
}

func paragraphView(doc doctree.Document, h doctree.Handle, i int, marks map[doctree.Handle]string) (ParagraphView, error) {
	text, err := doc.ParagraphText(h)
	if err != nil {
		return ParagraphView{}, classify(err)
	}
	style, err := doc.ParagraphStyle(h)
	if err != nil {
		return ParagraphView{}, classify(err)
	}
	return ParagraphView{
		ParaIndex:    i,
		Text:         text,
		Style:        style.Name,
		OutlineLevel: style.OutlineLevel,
		Bookmark:     marks[h],
	}, nil
}

func bookmarksByHandle(doc doctree.Document) (map[doctree.Handle]string, error) {
	all, err := doc.Bookmarks()
	if err != nil {
		return nil, classify(err)
	}
	out := make(map[doctree.Handle]string, len(all))
	for name, h := range all {
		if cur, ok := out[h]; !ok || name < cur {
			out[h] = name
		}
	}
	return out, nil
}

// ResolvedView is the result of resolving a locator.
type ResolvedView struct {
	Locator   string `json:"locator"`
	ParaIndex int    `json:"para_index"`
	Bookmark  string `json:"bookmark,omitempty"`
	Text      string `json:"text"`
	Style     string `json:"style"`
	Page      int    `json:"page"`
}

func (r ResolvedView) Location() (int, string) { return r.ParaIndex, r.Bookmark }

// Resolve reports where loc points right now.
func (w *Workspace) Resolve(id, loc string) (ResolvedView, error) {
	doc, err := w.Document(id)
	if err != nil {
		return ResolvedView{}, err
	}
	target, err := w.resolver.ResolveString(doc, loc)
	if err != nil {
		return ResolvedView{}, err
	}
	text, err := doc.ParagraphText(target.Handle)
	if err != nil {
		return ResolvedView{}, classify(err)
	}
	style, err := doc.ParagraphStyle(target.Handle)
	if err != nil {
		return ResolvedView{}, classify(err)
	}
	page, err := w.pages.PageOf(doc, target.Handle)
	if err != nil {
		return ResolvedView{}, classify(err)
	}
	bookmark := target.Bookmark
	if bookmark == "" {
		if bookmark, err = navigation.BookmarkFor(doc, target.Handle); err != nil {
			return ResolvedView{}, err
		}
	}
	return ResolvedView{
		Locator:   loc,
		ParaIndex: target.Index,
		Bookmark:  bookmark,
		Text:      navigation.Truncate(text, w.previewChars()),
		Style:     style.Name,
		Page:      page,
	}, nil
}

// ParagraphCount returns the number of paragraphs in the document.
func (w *Workspace) ParagraphCount(id string) (int, error) {
	doc, err := w.Document(id)
	if err != nil {
		return 0, err
	}
	handles, err := doc.ListParagraphs()
	if err != nil {
		return 0, classify(err)
	}
	return len(handles), nil
}

// PageCount returns the document's page count through the page cache.
func (w *Workspace) PageCount(id string) (int, error) {
	doc, err := w.Document(id)
	if err != nil {
		return 0, err
	}
	n, err := w.pages.PageCount(doc)
	return n, classify(err)
}

// BookmarkView describes one bookmark.
type BookmarkView struct {
	Name      string `json:"name"`
	ParaIndex int    `json:"para_index"`
	Orphaned  bool   `json:"orphaned"`
}

// Bookmarks lists every bookmark by name. Orphaned ones report para_index -1.
func (w *Workspace) Bookmarks(id string) ([]BookmarkView, error) {
	doc, err := w.Document(id)
	if err != nil {
		return nil, err
	}
	all, err := doc.Bookmarks()
	if err != nil {
		return nil, classify(err)
	}
	out := make([]BookmarkView, 0, len(all))
	for name, h := range all {
		idx, err := doc.IndexOf(h)
		out = append(out, BookmarkView{Name: name, ParaIndex: idx, Orphaned: err != nil})
	}
	sortBookmarks(out)
	return out, nil
}

func sortBookmarks(b []BookmarkView) {
	slices.SortFunc(b, func(x, y BookmarkView) int {
		if x.Orphaned != y.Orphaned {
			if x.Orphaned {
				return 1
			}
			return -1
		}
		if c := cmp.Compare(x.ParaIndex, y.ParaIndex); c != 0 {
			return c
		}
		return cmp.Compare(x.Name, y.Name)
	})
}
