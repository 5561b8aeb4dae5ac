// Package locator defines the addresses callers use to point into a document.
package locator

import (
	"strconv"
	"strings"

	"github.com/dgallion1/docbridge/internal/errs"
)

// Kind identifies which form a Locator takes.
type Kind int

const (
	KindBookmark Kind = iota + 1
	KindHeading
	KindParagraph
	KindPage
)

func (k Kind) String() string {
	switch k {
	case KindBookmark:
		return "bookmark"
	case KindHeading:
		return "heading"
	case KindParagraph:
		return "paragraph"
	case KindPage:
		return "page"
	}
	return "unknown"
}

// Locator is a tagged union. Only the field matching Kind is meaningful.
type Locator struct {
	Kind  Kind
	Name  string // bookmark name
	Path  []int  // 1-based outline path, e.g. [2 1]
	Index int    // 0-based paragraph index or 1-based page number
}

func Bookmark(name string) Locator { return Locator{Kind: KindBookmark, Name: name} }

func Heading(path ...int) Locator {
	return Locator{Kind: KindHeading, Path: append([]int(nil), path...)}
}

func Paragraph(index int) Locator { return Locator{Kind: KindParagraph, Index: index} }

func Page(n int) Locator { return Locator{Kind: KindPage, Index: n} }

// Durable reports whether the locator keeps pointing at the same paragraph
// across structural edits. Only bookmarks do.
func (l Locator) Durable() bool { return l.Kind == KindBookmark }

func (l Locator) String() string {
	switch l.Kind {
	case KindBookmark:
		return "bookmark:" + l.Name
	case KindHeading:
		return "heading:" + FormatPath(l.Path)
	case KindParagraph:
		return "paragraph:" + strconv.Itoa(l.Index)
	case KindPage:
		return "page:" + strconv.Itoa(l.Index)
	}
	return ""
}

// FormatPath renders an outline path as dotted decimals.
func FormatPath(path []int) string {
	parts := make([]string, len(path))
	for i, n := range path {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// Parse decodes the string form of a locator. Malformed input is an
// InvalidArgument error; range checks happen at resolution time.
func Parse(s string) (Locator, error) {
	s = strings.TrimSpace(s)
	prefix, value, ok := strings.Cut(s, ":")
	if !ok || value == "" {
		return Locator{}, errs.New(errs.KindInvalidArgument, "locator %q: expected <kind>:<value>", s)
	}
	switch strings.ToLower(prefix) {
	case "bookmark":
		return Bookmark(value), nil
	case "heading":
		path, err := parsePath(value)
		if err != nil {
			return Locator{}, errs.Wrap(errs.KindInvalidArgument, err, "locator %q", s)
		}
		return Heading(path...), nil
	case "paragraph":
		n, err := strconv.Atoi(value)
		if err != nil {
			return Locator{}, errs.Wrap(errs.KindInvalidArgument, err, "locator %q: paragraph index", s)
		}
		return Paragraph(n), nil
	case "page":
		n, err := strconv.Atoi(value)
		if err != nil {
			return Locator{}, errs.Wrap(errs.KindInvalidArgument, err, "locator %q: page number", s)
		}
		return Page(n), nil
	}
	return Locator{}, errs.New(errs.KindInvalidArgument, "locator %q: unknown kind %q", s, prefix)
}

// parsePath accepts "2.1". Only the syntax is checked here; a component
// outside the outline, zero included, fails later as HeadingNotFound.
func parsePath(s string) ([]int, error) {
	parts := strings.Split(s, ".")
	path := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		path = append(path, n)
	}
	return path, nil
}
