// Package workspace holds the open documents and implements the document
// operations exposed as tools. A Workspace is owned by the host loop: every
// method must run there.
package workspace

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dgallion1/docbridge/internal/doctree"
	"github.com/dgallion1/docbridge/internal/errs"
	"github.com/dgallion1/docbridge/internal/navigation"
	"github.com/dgallion1/docbridge/internal/parser"
	"github.com/google/uuid"
)

// Options configures a Workspace.
type Options struct {
	DocumentDir  string // relative paths resolve here; when set, paths may not escape it
	LinesPerPage int
	PreviewChars int
	AutoCommit   bool
}

// Workspace is the registry of open documents plus the navigation caches
// that serve them.
type Workspace struct {
	opts Options
	log  *slog.Logger

	docs   map[string]doctree.Editor
	order  []string
	active string

	headings *navigation.HeadingCache
	pages    *navigation.PageIndex
	resolver *navigation.Resolver
}

func New(opts Options, log *slog.Logger) *Workspace {
	headings := navigation.NewHeadingCache(opts.PreviewChars)
	pages := navigation.NewPageIndex()
	return &Workspace{
		opts:     opts,
		log:      log,
		docs:     make(map[string]doctree.Editor),
		headings: headings,
		pages:    pages,
		resolver: navigation.NewResolver(headings, pages),
	}
}

// Headings and Pages expose the caches for stats reporting.
func (w *Workspace) Headings() *navigation.HeadingCache { return w.headings }
func (w *Workspace) Pages() *navigation.PageIndex       { return w.pages }

// DocumentInfo describes an open document.
type DocumentInfo struct {
	ID         string `json:"doc_id"`
	Title      string `json:"title"`
	Path       string `json:"path,omitempty"`
	Paragraphs int    `json:"paragraphs"`
	Revision   int    `json:"revision"`
	Modified   bool   `json:"modified"`
	Protected  bool   `json:"protected"`
	Active     bool   `json:"active"`
}

func (w *Workspace) info(doc doctree.Editor) (DocumentInfo, error) {
	handles, err := doc.ListParagraphs()
	if err != nil {
		return DocumentInfo{}, classify(err)
	}
	return DocumentInfo{
		ID:         doc.ID(),
		Title:      doc.Title(),
		Path:       doc.Path(),
		Paragraphs: len(handles),
		Revision:   doc.Revision(),
		Modified:   doc.Modified(),
		Protected:  doc.Protected(),
		Active:     doc.ID() == w.active,
	}, nil
}

// Document returns the document with the given id, or the active document
// when id is empty.
func (w *Workspace) Document(id string) (doctree.Editor, error) {
	if id == "" {
		id = w.active
		if id == "" {
			return nil, errs.New(errs.KindDocumentNotFound, "no document is open")
		}
	}
	doc, ok := w.docs[id]
	if !ok {
		return nil, errs.New(errs.KindDocumentNotFound, "document %q is not open", id)
	}
	return doc, nil
}

// Open loads a file and makes it the active document. Opening a path that
// is already open activates the existing document.
func (w *Workspace) Open(path string) (DocumentInfo, error) {
	abs, err := w.resolvePath(path)
	if err != nil {
		return DocumentInfo{}, err
	}
	for _, id := range w.order {
		if doc := w.docs[id]; doc.Path() == abs {
			w.active = id
			return w.info(doc)
		}
	}
	if !parser.IsSupportedExtension(abs) {
		return DocumentInfo{}, errs.New(errs.KindInvalidArgument, "unsupported file type: %s", filepath.Ext(abs))
	}
	content, err := parser.LoadFile(abs)
	if errors.Is(err, os.ErrNotExist) {
		return DocumentInfo{}, errs.Wrap(errs.KindDocumentNotFound, err, "open %s", path)
	}
	if err != nil {
		return DocumentInfo{}, errs.Wrap(errs.KindOperationFailed, err, "load %s", path)
	}

	// Formats we cannot write back open without a location; save_document
	// with a .md or .txt path gives them one.
	location := ""
	if parser.CanStore(abs) {
		location = abs
	}
	doc := w.register(*content, location)
	w.log.Info("document opened", "doc_id", doc.ID(), "path", abs, "paragraphs", len(content.Paragraphs))
	return w.info(doc)
}

// Create starts an empty document. An empty path leaves it without a
// location until it is saved.
func (w *Workspace) Create(title, path string) (DocumentInfo, error) {
	location := ""
	if path != "" {
		abs, err := w.storablePath(path)
		if err != nil {
			return DocumentInfo{}, err
		}
		location = abs
	}
	if title == "" {
		title = "Untitled"
	}
	doc := w.register(doctree.Content{Title: title}, location)
	w.log.Info("document created", "doc_id", doc.ID(), "path", location)
	return w.info(doc)
}

func (w *Workspace) register(content doctree.Content, location string) doctree.Editor {
	doc := doctree.NewMemory(uuid.NewString(), content, doctree.MemoryOptions{
		Path:         location,
		LinesPerPage: w.opts.LinesPerPage,
		Store:        parser.Store,
	})
	w.pages.Watch(doc)
	w.docs[doc.ID()] = doc
	w.order = append(w.order, doc.ID())
	w.active = doc.ID()
	return doc
}

// Close drops a document and everything cached for it. Unsaved changes are
// discarded.
func (w *Workspace) Close(id string) (DocumentInfo, error) {
	doc, err := w.Document(id)
	if err != nil {
		return DocumentInfo{}, err
	}
	info, err := w.info(doc)
	if err != nil {
		return DocumentInfo{}, err
	}
	id = doc.ID()
	doc.Close()
	delete(w.docs, id)
	w.order = slices.DeleteFunc(w.order, func(s string) bool { return s == id })
	w.headings.Forget(id)
	w.pages.Forget(id)
	if w.active == id {
		w.active = ""
		if n := len(w.order); n > 0 {
			w.active = w.order[n-1]
		}
	}
	info.Active = false
	w.log.Info("document closed", "doc_id", id, "discarded_changes", info.Modified)
	return info, nil
}

// List returns open documents in the order they were opened.
func (w *Workspace) List() ([]DocumentInfo, error) {
	out := make([]DocumentInfo, 0, len(w.order))
	for _, id := range w.order {
		info, err := w.info(w.docs[id])
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

// Save commits the document, optionally to a new path first.
func (w *Workspace) Save(id, path string) (DocumentInfo, error) {
	doc, err := w.Document(id)
	if err != nil {
		return DocumentInfo{}, err
	}
	if path != "" {
		abs, err := w.storablePath(path)
		if err != nil {
			return DocumentInfo{}, err
		}
		doc.SetPath(abs)
	}
	if !doc.HasLocation() {
		return DocumentInfo{}, errs.New(errs.KindInvalidArgument, "document %s has no location; pass a .md or .txt path", doc.ID())
	}
	if err := doc.Commit(); err != nil {
		return DocumentInfo{}, classify(err)
	}
	return w.info(doc)
}

// SetProtection toggles the advisory protection flag. Edits are not blocked.
func (w *Workspace) SetProtection(id string, on bool) (DocumentInfo, error) {
	doc, err := w.Document(id)
	if err != nil {
		return DocumentInfo{}, err
	}
	doc.SetProtected(on)
	return w.info(doc)
}

func (w *Workspace) resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errs.New(errs.KindInvalidArgument, "path is required")
	}
	if w.opts.DocumentDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(w.opts.DocumentDir, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errs.Wrap(errs.KindInvalidArgument, err, "path %q", path)
	}
	if w.opts.DocumentDir != "" {
		root, err := filepath.Abs(w.opts.DocumentDir)
		if err != nil {
			return "", errs.Wrap(errs.KindOperationFailed, err, "document dir")
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", errs.New(errs.KindInvalidArgument, "path %q is outside the document directory", path)
		}
	}
	return abs, nil
}

func (w *Workspace) storablePath(path string) (string, error) {
	abs, err := w.resolvePath(path)
	if err != nil {
		return "", err
	}
	if !parser.CanStore(abs) {
		return "", errs.New(errs.KindInvalidArgument, "cannot save as %s; use .md or .txt", filepath.Ext(abs))
	}
	return abs, nil
}

// classify maps document errors onto the error taxonomy. Typed errors pass
// through; unknown ones are left for the dispatcher to mark OperationFailed.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errs.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, doctree.ErrClosed):
		return errs.Wrap(errs.KindDocumentNotFound, err, "document was closed")
	case errors.Is(err, doctree.ErrNoParagraph):
		return errs.Wrap(errs.KindOrphanedLocator, err, "paragraph no longer exists")
	case errors.Is(err, doctree.ErrNoLocation):
		return errs.Wrap(errs.KindInvalidArgument, err, "document cannot be committed")
	case errors.Is(err, doctree.ErrBookmarkExists):
		return errs.Wrap(errs.KindInvalidArgument, err, "bookmark")
	}
	return err
}
