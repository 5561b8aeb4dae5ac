package workspace

import (
	"regexp"
	"sort"

	"github.com/dgallion1/docbridge/internal/doctree"
	"github.com/dgallion1/docbridge/internal/errs"
	"github.com/dgallion1/docbridge/internal/locator"
	"github.com/dgallion1/docbridge/internal/navigation"
)

const (
	// MaxSearchResults caps how many matches one search returns.
	MaxSearchResults = 200

	// MaxSearchContext caps the context paragraphs on each side of a match.
	MaxSearchContext = 5
)

// SearchOptions controls matching. Zero MaxResults means 20.
type SearchOptions struct {
	Regex         bool
	CaseSensitive bool
	MaxResults    int
	Context       int
}

// HeadingRef points at a heading by its bookmark.
type HeadingRef struct {
	Outline   string `json:"outline"`
	Level     int    `json:"level"`
	Text      string `json:"text"`
	ParaIndex int    `json:"para_index"`
	Bookmark  string `json:"bookmark"`
	Locator   string `json:"locator"`
}

func headingRef(n *navigation.HeadingNode) *HeadingRef {
	if n == nil {
		return nil
	}
	return &HeadingRef{
		Outline:   n.Outline(),
		Level:     n.Level,
		Text:      n.Text,
		ParaIndex: n.Index,
		Bookmark:  n.Bookmark,
		Locator:   locator.Bookmark(n.Bookmark).String(),
	}
}

// MatchView is one search hit.
type MatchView struct {
	MatchIndex int         `json:"match_index"`
	MatchText  string      `json:"match_text"`
	ParaIndex  int         `json:"para_index"`
	Context    []BodyView  `json:"context,omitempty"`
	Heading    *HeadingRef `json:"nearest_heading,omitempty"`
}

// Location reports the matched paragraph and the bookmark of the heading it
// sits under.
func (m MatchView) Location() (int, string) {
	if m.Heading == nil {
		return m.ParaIndex, ""
	}
	return m.ParaIndex, m.Heading.Bookmark
}

// SearchView lists matches in document order. TotalFound counts every match,
// including those past the result limit.
type SearchView struct {
	DocID      string      `json:"doc_id"`
	Pattern    string      `json:"pattern"`
	Matches    []MatchView `json:"matches"`
	TotalFound int         `json:"total_found"`
	Returned   int         `json:"returned"`
}

func (s SearchView) Location() (int, string) {
	if len(s.Matches) == 0 {
		return -1, ""
	}
	return s.Matches[0].Location()
}

// Search finds pattern in every paragraph. Each match carries its paragraph
// index, surrounding paragraphs and the nearest heading at or before it.
func (w *Workspace) Search(id, pattern string, opts SearchOptions) (SearchView, error) {
	doc, err := w.Document(id)
	if err != nil {
		return SearchView{}, err
	}
	re, err := compilePattern(pattern, opts)
	if err != nil {
		return SearchView{}, err
	}
	limit := opts.MaxResults
	if limit <= 0 {
		limit = 20
	}
	limit = min(limit, MaxSearchResults)
	radius := min(max(opts.Context, 0), MaxSearchContext)

	texts, err := paragraphTexts(doc)
	if err != nil {
		return SearchView{}, err
	}
	tree, err := w.headings.GetOrBuild(doc)
	if err != nil {
		return SearchView{}, err
	}
	flat := flatten(tree)

	view := SearchView{DocID: doc.ID(), Pattern: pattern, Matches: []MatchView{}}
	for i, text := range texts {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			view.TotalFound++
			if len(view.Matches) >= limit {
				continue
			}
			m := MatchView{
				MatchIndex: len(view.Matches),
				MatchText:  text[loc[0]:loc[1]],
				ParaIndex:  i,
			}
			if radius > 0 {
				for j := max(0, i-radius); j <= min(len(texts)-1, i+radius); j++ {
					m.Context = append(m.Context, BodyView{ParaIndex: j, Text: texts[j]})
				}
			}
			if pos, _ := headingAt(flat, i); pos >= 0 {
				m.Heading = headingRef(flat[pos])
			}
			view.Matches = append(view.Matches, m)
		}
	}
	view.Returned = len(view.Matches)
	return view, nil
}

// ReplaceView reports a replace-all. The embedded edit points at the first
// changed paragraph; ParaIndex is -1 when nothing matched.
type ReplaceView struct {
	EditResult
	Search       string `json:"search"`
	Replace      string `json:"replace"`
	Replacements int    `json:"replacements_made"`
	Paragraphs   []int  `json:"paragraphs"`
}

// Replace substitutes every match of search. In regex mode the replacement
// may use $1-style group references. Paragraph boundaries and styles are
// untouched, so the heading tree is kept.
func (w *Workspace) Replace(id, search, replace string, opts SearchOptions) (ReplaceView, error) {
	doc, err := w.Document(id)
	if err != nil {
		return ReplaceView{}, err
	}
	re, err := compilePattern(search, opts)
	if err != nil {
		return ReplaceView{}, err
	}
	handles, err := doc.ListParagraphs()
	if err != nil {
		return ReplaceView{}, classify(err)
	}

	view := ReplaceView{
		EditResult: EditResult{DocID: doc.ID(), ParaIndex: -1, Protected: doc.Protected()},
		Search:     search,
		Replace:    replace,
		Paragraphs: []int{},
	}
	for i, h := range handles {
		text, err := doc.ParagraphText(h)
		if err != nil {
			return ReplaceView{}, classify(err)
		}
		n := len(re.FindAllStringIndex(text, -1))
		if n == 0 {
			continue
		}
		var out string
		if opts.Regex {
			out = re.ReplaceAllString(text, replace)
		} else {
			out = re.ReplaceAllLiteralString(text, replace)
		}
		if err := doc.SetParagraphText(h, out); err != nil {
			return ReplaceView{}, classify(err)
		}
		view.Replacements += n
		view.Paragraphs = append(view.Paragraphs, i)
	}
	if view.Replacements == 0 {
		return view, nil
	}

	first := view.Paragraphs[0]
	bookmark, err := navigation.BookmarkFor(doc, handles[first])
	if err != nil {
		return ReplaceView{}, err
	}
	res, err := w.finish(doc, EditResult{ParaIndex: first, Bookmark: bookmark}, false)
	if err != nil {
		return ReplaceView{}, err
	}
	view.EditResult = res
	w.log.Debug("replace applied", "doc_id", doc.ID(), "replacements", view.Replacements, "paragraphs", len(view.Paragraphs))
	return view, nil
}

func compilePattern(pattern string, opts SearchOptions) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, errs.New(errs.KindInvalidArgument, "search pattern is empty")
	}
	expr := pattern
	if !opts.Regex {
		expr = regexp.QuoteMeta(pattern)
	}
	if !opts.CaseSensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidArgument, err, "pattern %q", pattern)
	}
	if re.MatchString("") {
		return nil, errs.New(errs.KindInvalidArgument, "pattern %q matches the empty string", pattern)
	}
	return re, nil
}

func paragraphTexts(doc doctree.Document) ([]string, error) {
	handles, err := doc.ListParagraphs()
	if err != nil {
		return nil, classify(err)
	}
	texts := make([]string, len(handles))
	for i, h := range handles {
		if texts[i], err = doc.ParagraphText(h); err != nil {
			return nil, classify(err)
		}
	}
	return texts, nil
}

// flatten lists headings in document order.
func flatten(tree *navigation.HeadingTree) []*navigation.HeadingNode {
	var flat []*navigation.HeadingNode
	tree.Walk(func(n *navigation.HeadingNode) bool {
		flat = append(flat, n)
		return true
	})
	return flat
}

// headingAt returns the position in flat of the last heading at or before
// paragraph i, or -1. exact reports whether paragraph i is that heading.
func headingAt(flat []*navigation.HeadingNode, i int) (pos int, exact bool) {
	pos = sort.Search(len(flat), func(k int) bool { return flat[k].Index > i }) - 1
	if pos < 0 {
		return -1, false
	}
	return pos, flat[pos].Index == i
}
