package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/docbridge/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_MatchesCarryHeadingLocator(t *testing.T) {
	ws, _ := newWorkspace(t, false)
	_, err := ws.Open("guide.md")
	require.NoError(t, err)

	view, err := ws.Search("", "about", SearchOptions{Context: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, view.TotalFound)
	require.Len(t, view.Matches, 4)

	m := view.Matches[2]
	assert.Equal(t, 5, m.ParaIndex)
	assert.Equal(t, "about", m.MatchText)
	require.NotNil(t, m.Heading)
	assert.Equal(t, "B1", m.Heading.Text)
	assert.Equal(t, "2.1", m.Heading.Outline)
	assert.True(t, strings.HasPrefix(m.Heading.Locator, "bookmark:_mcp_"), m.Heading.Locator)
	require.Len(t, m.Context, 3)
	assert.Equal(t, 4, m.Context[0].ParaIndex)
	assert.Equal(t, "B1", m.Context[0].Text)

	heading, err := ws.Resolve("", m.Heading.Locator)
	require.NoError(t, err)
	assert.Equal(t, 4, heading.ParaIndex)

	idx, bookmark := view.Location()
	assert.Equal(t, 1, idx)
	assert.Equal(t, view.Matches[0].Heading.Bookmark, bookmark)
}

func TestSearch_Options(t *testing.T) {
	ws, _ := newWorkspace(t, false)
	_, err := ws.Open("guide.md")
	require.NoError(t, err)

	tests := []struct {
		name     string
		pattern  string
		opts     SearchOptions
		total    int
		returned int
	}{
		{"case insensitive by default", "ABOUT", SearchOptions{}, 4, 4},
		{"case sensitive", "ABOUT", SearchOptions{CaseSensitive: true}, 0, 0},
		{"limit keeps total", "about", SearchOptions{MaxResults: 2}, 4, 2},
		{"regex", "about (a|c)$", SearchOptions{Regex: true}, 2, 2},
		{"literal dot", "b.", SearchOptions{}, 0, 0},
		{"heading and body", "b1", SearchOptions{}, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := ws.Search("", tt.pattern, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.total, view.TotalFound)
			assert.Equal(t, tt.returned, view.Returned)
			assert.Len(t, view.Matches, tt.returned)
		})
	}
}

func TestSearch_HeadingMatchPointsAtItself(t *testing.T) {
	ws, _ := newWorkspace(t, false)
	_, err := ws.Open("guide.md")
	require.NoError(t, err)

	view, err := ws.Search("", "B2", SearchOptions{CaseSensitive: true})
	require.NoError(t, err)
	require.Len(t, view.Matches, 1)
	assert.Equal(t, 6, view.Matches[0].ParaIndex)
	assert.Equal(t, 6, view.Matches[0].Heading.ParaIndex)
	assert.Empty(t, view.Matches[0].Context)
}

func TestSearch_BadPatterns(t *testing.T) {
	ws, _ := newWorkspace(t, false)
	_, err := ws.Open("guide.md")
	require.NoError(t, err)

	for _, tt := range []struct {
		pattern string
		regex   bool
	}{
		{"", false},
		{"(", true},
		{"a*", true},
	} {
		_, err := ws.Search("", tt.pattern, SearchOptions{Regex: tt.regex})
		assert.ErrorIs(t, err, errs.ErrInvalidArgument, "pattern %q", tt.pattern)
	}
}

func TestReplace_TextOnlyEdit(t *testing.T) {
	ws, _ := newWorkspace(t, false)
	_, err := ws.Open("guide.md")
	require.NoError(t, err)
	_, err = ws.Tree("", TreeOptions{})
	require.NoError(t, err)
	builds := ws.Headings().Stats().Builds

	res, err := ws.Replace("", "about", "regarding", SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Replacements)
	assert.Equal(t, []int{1, 3, 5, 8}, res.Paragraphs)
	assert.Equal(t, 1, res.ParaIndex)
	assert.False(t, res.Committed)

	_, err = ws.Tree("", TreeOptions{})
	require.NoError(t, err)
	assert.Equal(t, builds, ws.Headings().Stats().Builds)

	res, err = ws.Replace("", `regarding (\w+)`, "on $1", SearchOptions{Regex: true})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Replacements)

	res, err = ws.Replace("", "on a", "$5", SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Replacements)

	read, err := ws.ReadParagraphs("", "paragraph:1", 3)
	require.NoError(t, err)
	assert.Equal(t, "$5", read.Paragraphs[0].Text)
	assert.Equal(t, "on b", read.Paragraphs[2].Text)

	none, err := ws.Replace("", "nowhere", "x", SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, none.Replacements)
	assert.Equal(t, -1, none.ParaIndex)
	assert.Empty(t, none.Paragraphs)
}

func TestReplace_AutoCommit(t *testing.T) {
	ws, dir := newWorkspace(t, true)
	_, err := ws.Open("guide.md")
	require.NoError(t, err)

	res, err := ws.Replace("", "about c", "closing words", SearchOptions{})
	require.NoError(t, err)
	assert.True(t, res.Committed)

	data, err := os.ReadFile(filepath.Join(dir, "guide.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "closing words")
}

func TestNavigateHeading(t *testing.T) {
	ws, _ := newWorkspace(t, false)
	_, err := ws.Open("guide.md")
	require.NoError(t, err)

	tests := []struct {
		from      string
		direction string
		want      string
	}{
		{"heading:2", DirNext, "B1"},
		{"heading:2", DirPrevious, "A"},
		{"heading:2", DirFirstChild, "B1"},
		{"heading:2", DirNextSibling, "C"},
		{"heading:2", DirPreviousSibling, "A"},
		{"heading:2.2", DirParent, "B"},
		{"heading:2.1", DirNextSibling, "B2"},
		{"paragraph:5", DirPrevious, "B1"},
		{"paragraph:5", DirNext, "B2"},
		{"paragraph:5", DirParent, "B"},
	}
	for _, tt := range tests {
		t.Run(tt.from+" "+tt.direction, func(t *testing.T) {
			view, err := ws.NavigateHeading("", tt.from, tt.direction)
			require.NoError(t, err)
			assert.Equal(t, tt.want, view.Heading.Text)
			assert.NotEmpty(t, view.Heading.Bookmark)

			got, err := ws.Resolve("", "bookmark:"+view.Heading.Bookmark)
			require.NoError(t, err)
			assert.Equal(t, view.Heading.ParaIndex, got.ParaIndex)
		})
	}

	view, err := ws.NavigateHeading("", "paragraph:5", DirNext)
	require.NoError(t, err)
	assert.False(t, view.From.WasHeading)
	require.NotNil(t, view.From.Context)
	assert.Equal(t, "B1", view.From.Context.Text)

	for _, tt := range []struct{ from, direction string }{
		{"heading:2", DirParent},
		{"heading:3", DirNext},
		{"heading:1", DirPrevious},
		{"heading:2.1", DirPreviousSibling},
		{"heading:3", DirFirstChild},
	} {
		_, err := ws.NavigateHeading("", tt.from, tt.direction)
		assert.ErrorIs(t, err, errs.ErrHeadingNotFound, "%s %s", tt.from, tt.direction)
	}

	_, err = ws.NavigateHeading("", "heading:1", "sideways")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestNavigateHeading_BeforeFirstHeading(t *testing.T) {
	ws, _ := newWorkspace(t, false)
	_, err := ws.Create("scratch", "")
	require.NoError(t, err)
	_, err = ws.Insert("", "", "intro", "", false)
	require.NoError(t, err)

	_, err = ws.NavigateHeading("", "paragraph:0", DirNext)
	assert.ErrorIs(t, err, errs.ErrHeadingNotFound)

	_, err = ws.Insert("", "", "Top", "Heading 1", false)
	require.NoError(t, err)

	view, err := ws.NavigateHeading("", "paragraph:0", DirNext)
	require.NoError(t, err)
	assert.Equal(t, "Top", view.Heading.Text)
	assert.Nil(t, view.From.Context)

	_, err = ws.NavigateHeading("", "paragraph:0", DirPrevious)
	assert.ErrorIs(t, err, errs.ErrHeadingNotFound)
}
