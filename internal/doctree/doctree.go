// Package doctree models the host's document: a flat paragraph stream whose
// heading-styled paragraphs imply an outline, plus named bookmarks and a page
// layout. Documents are owned by the host loop and are not safe for
// concurrent use.
package doctree

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Handle is the stable identity of a paragraph. It survives inserts and
// deletes elsewhere in the document; raw positions do not.
type Handle uint64

// MaxOutlineLevel is the deepest heading level a style can carry.
const MaxOutlineLevel = 9

var (
	// ErrClosed is returned by every operation on a closed document.
	ErrClosed = errors.New("document closed")

	// ErrNoParagraph is returned for a handle that is not in the document.
	ErrNoParagraph = errors.New("paragraph not in document")

	// ErrBookmarkExists is returned when inserting a bookmark name already in use.
	ErrBookmarkExists = errors.New("bookmark already exists")

	// ErrNoLocation is returned when committing a document that was never saved to a path.
	ErrNoLocation = errors.New("document has no location")
)

// Style is a paragraph style. OutlineLevel > 0 marks a heading.
type Style struct {
	Name         string `json:"name"`
	OutlineLevel int    `json:"outline_level"`
}

// IsHeading reports whether paragraphs of this style are part of the outline.
func (s Style) IsHeading() bool { return s.OutlineLevel > 0 }

// BodyStyle is the default style for non-heading paragraphs.
var BodyStyle = Style{Name: "Text Body"}

// HeadingStyle returns the built-in heading style for level 1..9.
func HeadingStyle(level int) Style {
	if level < 1 {
		return BodyStyle
	}
	if level > MaxOutlineLevel {
		level = MaxOutlineLevel
	}
	return Style{Name: fmt.Sprintf("Heading %d", level), OutlineLevel: level}
}

// StyleByName maps a style name to a Style. "Heading 2", "heading2" and
// "Heading2" all yield outline level 2; anything else is a body style.
func StyleByName(name string) Style {
	n := strings.TrimSpace(name)
	if n == "" {
		return BodyStyle
	}
	lower := strings.ToLower(strings.ReplaceAll(n, " ", ""))
	if rest, ok := strings.CutPrefix(lower, "heading"); ok {
		if level, err := strconv.Atoi(rest); err == nil && level >= 1 && level <= MaxOutlineLevel {
			return HeadingStyle(level)
		}
	}
	return Style{Name: n}
}

// Paragraph seeds a document. Loaders produce these.
type Paragraph struct {
	Text            string
	Style           Style
	PageBreakBefore bool
}

// Content is what a loader extracts from a file.
type Content struct {
	Title      string
	Paragraphs []Paragraph
}

// Document is the read side of the host document consumed by navigation:
// paragraph enumeration, styles, bookmarks, page numbers and a commit hook.
type Document interface {
	ID() string
	ListParagraphs() ([]Handle, error)
	ParagraphStyle(h Handle) (Style, error)
	ParagraphText(h Handle) (string, error)
	// IndexOf returns the current position of h, or ErrNoParagraph.
	IndexOf(h Handle) (int, error)
	InsertBookmark(h Handle, name string) error
	// FindBookmark returns the paragraph the bookmark was attached to.
	// found is false when no bookmark has that name. The returned handle may
	// no longer be in the document if its paragraph was deleted.
	FindBookmark(name string) (h Handle, found bool, err error)
	Bookmarks() (map[string]Handle, error)
	PageNumberOf(h Handle) (int, error)
	PageCount() (int, error)
	// OnCommit registers fn to run after every successful Commit.
	OnCommit(fn func())
}

// Editor is a Document that can also be mutated and committed.
type Editor interface {
	Document
	Title() string
	Path() string
	HasLocation() bool
	SetPath(path string)
	Snapshot() (Content, error)
	InsertParagraph(at int, p Paragraph) (Handle, error)
	DeleteParagraph(h Handle) error
	DuplicateParagraph(h Handle) (Handle, error)
	SetParagraphText(h Handle, text string) error
	SetParagraphStyle(h Handle, s Style) error
	Commit() error
	Revision() int
	Modified() bool
	Protected() bool
	SetProtected(on bool)
	Close()
}
