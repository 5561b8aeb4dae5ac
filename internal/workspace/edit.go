package workspace

import (
	"strings"

	"github.com/dgallion1/docbridge/internal/doctree"
	"github.com/dgallion1/docbridge/internal/errs"
	"github.com/dgallion1/docbridge/internal/navigation"
)

// EditResult reports the paragraph an edit touched.
type EditResult struct {
	DocID     string `json:"doc_id"`
	ParaIndex int    `json:"para_index"`
	Bookmark  string `json:"bookmark,omitempty"`
	Text      string `json:"text,omitempty"`
	Style     string `json:"style,omitempty"`
	Committed bool   `json:"committed"`
	Protected bool   `json:"protected,omitempty"`
}

func (r EditResult) Location() (int, string) { return r.ParaIndex, r.Bookmark }

// ParseStyle accepts "Heading N", "headingN" and body style names. Empty
// means the default body style.
func ParseStyle(name string) doctree.Style {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "body", "text body", "default", "normal":
		return doctree.BodyStyle
	}
	return doctree.StyleByName(name)
}

// Insert adds a paragraph after (or before) the one loc points at. An empty
// loc appends. Inserted headings get a bookmark straight away.
func (w *Workspace) Insert(id, loc, text, style string, before bool) (EditResult, error) {
	doc, err := w.Document(id)
	if err != nil {
		return EditResult{}, err
	}
	at, err := w.insertPosition(doc, loc, before)
	if err != nil {
		return EditResult{}, err
	}
	st := ParseStyle(style)
	h, err := doc.InsertParagraph(at, doctree.Paragraph{Text: text, Style: st})
	if err != nil {
		return EditResult{}, classify(err)
	}
	bookmark, err := w.markHeading(doc, h, st)
	if err != nil {
		return EditResult{}, err
	}
	return w.finish(doc, EditResult{ParaIndex: at, Bookmark: bookmark, Text: text, Style: st.Name}, true)
}

func (w *Workspace) insertPosition(doc doctree.Editor, loc string, before bool) (int, error) {
	if loc == "" {
		handles, err := doc.ListParagraphs()
		if err != nil {
			return 0, classify(err)
		}
		if before {
			return 0, nil
		}
		return len(handles), nil
	}
	target, err := w.resolver.ResolveString(doc, loc)
	if err != nil {
		return 0, err
	}
	if before {
		return target.Index, nil
	}
	return target.Index + 1, nil
}

// Delete removes the paragraph loc points at. Bookmarks on it become
// orphaned and keep failing with OrphanedLocator.
func (w *Workspace) Delete(id, loc string) (EditResult, error) {
	doc, err := w.Document(id)
	if err != nil {
		return EditResult{}, err
	}
	target, err := w.resolver.ResolveString(doc, loc)
	if err != nil {
		return EditResult{}, err
	}
	text, err := doc.ParagraphText(target.Handle)
	if err != nil {
		return EditResult{}, classify(err)
	}
	if err := doc.DeleteParagraph(target.Handle); err != nil {
		return EditResult{}, classify(err)
	}
	return w.finish(doc, EditResult{ParaIndex: target.Index, Text: text}, true)
}

// Duplicate inserts a copy of the paragraph right after it. A duplicated
// heading gets its own bookmark.
func (w *Workspace) Duplicate(id, loc string) (EditResult, error) {
	doc, err := w.Document(id)
	if err != nil {
		return EditResult{}, err
	}
	target, err := w.resolver.ResolveString(doc, loc)
	if err != nil {
		return EditResult{}, err
	}
	h, err := doc.DuplicateParagraph(target.Handle)
	if err != nil {
		return EditResult{}, classify(err)
	}
	st, err := doc.ParagraphStyle(h)
	if err != nil {
		return EditResult{}, classify(err)
	}
	text, err := doc.ParagraphText(h)
	if err != nil {
		return EditResult{}, classify(err)
	}
	bookmark, err := w.markHeading(doc, h, st)
	if err != nil {
		return EditResult{}, err
	}
	return w.finish(doc, EditResult{ParaIndex: target.Index + 1, Bookmark: bookmark, Text: text, Style: st.Name}, true)
}

// SetText replaces a paragraph's text in place. The outline is unaffected,
// so the heading tree is kept.
func (w *Workspace) SetText(id, loc, text string) (EditResult, error) {
	doc, err := w.Document(id)
	if err != nil {
		return EditResult{}, err
	}
	target, err := w.resolver.ResolveString(doc, loc)
	if err != nil {
		return EditResult{}, err
	}
	if err := doc.SetParagraphText(target.Handle, text); err != nil {
		return EditResult{}, classify(err)
	}
	bookmark, err := navigation.BookmarkFor(doc, target.Handle)
	if err != nil {
		return EditResult{}, err
	}
	return w.finish(doc, EditResult{ParaIndex: target.Index, Bookmark: bookmark, Text: text}, false)
}

// SetStyle changes a paragraph's style. It counts as a structural edit only
// when the outline level changes.
func (w *Workspace) SetStyle(id, loc, style string) (EditResult, error) {
	doc, err := w.Document(id)
	if err != nil {
		return EditResult{}, err
	}
	target, err := w.resolver.ResolveString(doc, loc)
	if err != nil {
		return EditResult{}, err
	}
	old, err := doc.ParagraphStyle(target.Handle)
	if err != nil {
		return EditResult{}, classify(err)
	}
	st := ParseStyle(style)
	if err := doc.SetParagraphStyle(target.Handle, st); err != nil {
		return EditResult{}, classify(err)
	}
	bookmark, err := navigation.BookmarkFor(doc, target.Handle)
	if err != nil {
		return EditResult{}, err
	}
	structural := old.OutlineLevel != st.OutlineLevel
	return w.finish(doc, EditResult{ParaIndex: target.Index, Bookmark: bookmark, Style: st.Name}, structural)
}

func (w *Workspace) markHeading(doc doctree.Editor, h doctree.Handle, st doctree.Style) (string, error) {
	if !st.IsHeading() {
		return "", nil
	}
	name := navigation.MintBookmarkName()
	if err := doc.InsertBookmark(h, name); err != nil {
		return "", classify(err)
	}
	return name, nil
}

// finish invalidates caches for the edit and commits when auto-commit is on
// and the document has somewhere to go. Page entries are dropped here for
// edits that do not commit; a commit drops them through its hook.
func (w *Workspace) finish(doc doctree.Editor, res EditResult, structural bool) (EditResult, error) {
	if structural {
		w.headings.InvalidateStructural(doc.ID())
	} else {
		w.headings.InvalidateTextOnly(doc.ID())
	}
	res.DocID = doc.ID()
	res.Protected = doc.Protected()
	if !w.opts.AutoCommit || !doc.HasLocation() {
		w.pages.Invalidate(doc.ID())
		return res, nil
	}
	if err := doc.Commit(); err != nil {
		w.pages.Invalidate(doc.ID())
		return EditResult{}, errs.Wrap(errs.KindOperationFailed, err, "edit applied but commit failed")
	}
	res.Committed = true
	return res, nil
}
