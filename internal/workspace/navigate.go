package workspace

import (
	"slices"
	"strings"

	"github.com/dgallion1/docbridge/internal/errs"
	"github.com/dgallion1/docbridge/internal/navigation"
)

// Directions accepted by NavigateHeading.
const (
	DirNext            = "next"
	DirPrevious        = "previous"
	DirParent          = "parent"
	DirFirstChild      = "first_child"
	DirNextSibling     = "next_sibling"
	DirPreviousSibling = "previous_sibling"
)

// Directions lists every navigation direction.
var Directions = []string{DirNext, DirPrevious, DirParent, DirFirstChild, DirNextSibling, DirPreviousSibling}

// NavigateFrom describes where a navigation started.
type NavigateFrom struct {
	ParaIndex  int         `json:"para_index"`
	WasHeading bool        `json:"was_heading"`
	Context    *HeadingRef `json:"context_heading,omitempty"`
}

// NavigateView is the heading reached by NavigateHeading.
type NavigateView struct {
	Direction string       `json:"direction"`
	From      NavigateFrom `json:"from"`
	Heading   NodeView     `json:"heading"`
}

func (n NavigateView) Location() (int, string) { return n.Heading.Location() }

// NavigateHeading moves from loc to a related heading. A body paragraph
// counts as being inside the nearest heading before it, so "previous" from
// body text lands on that heading and "next" on the one after it.
func (w *Workspace) NavigateHeading(id, loc, direction string) (NavigateView, error) {
	direction = strings.ToLower(strings.TrimSpace(direction))
	if !slices.Contains(Directions, direction) {
		return NavigateView{}, errs.New(errs.KindInvalidArgument, "unknown direction %q; use one of %s",
			direction, strings.Join(Directions, ", "))
	}
	doc, err := w.Document(id)
	if err != nil {
		return NavigateView{}, err
	}
	target, err := w.resolver.ResolveString(doc, loc)
	if err != nil {
		return NavigateView{}, err
	}
	tree, err := w.headings.GetOrBuild(doc)
	if err != nil {
		return NavigateView{}, err
	}
	flat := flatten(tree)
	if len(flat) == 0 {
		return NavigateView{}, errs.New(errs.KindHeadingNotFound, "document has no headings")
	}

	pos, exact := headingAt(flat, target.Index)
	from := NavigateFrom{ParaIndex: target.Index, WasHeading: exact}
	var cur *navigation.HeadingNode
	if pos >= 0 {
		cur = flat[pos]
		from.Context = headingRef(cur)
	}

	var next *navigation.HeadingNode
	switch direction {
	case DirNext:
		if pos+1 < len(flat) {
			next = flat[pos+1]
		}
	case DirPrevious:
		switch {
		case cur != nil && !exact:
			next = cur
		case pos > 0:
			next = flat[pos-1]
		}
	case DirParent:
		if cur != nil && len(cur.Path) > 1 {
			if p, err := tree.Find(cur.Path[:len(cur.Path)-1]); err == nil {
				next = p
			}
		}
	case DirFirstChild:
		if cur != nil && len(cur.Children) > 0 {
			next = cur.Children[0]
		}
	case DirNextSibling:
		next = sibling(tree, cur, 1)
	case DirPreviousSibling:
		next = sibling(tree, cur, -1)
	}
	if next == nil {
		return NavigateView{}, errs.New(errs.KindHeadingNotFound, "no %s heading from %s", strings.ReplaceAll(direction, "_", " "), loc)
	}
	return NavigateView{
		Direction: direction,
		From:      from,
		Heading: NodeView{
			Outline:        next.Outline(),
			Level:          next.Level,
			Text:           next.Text,
			Bookmark:       next.Bookmark,
			ParaIndex:      next.Index,
			Preview:        next.Preview,
			BodyParagraphs: next.BodyParagraphs,
			ChildrenCount:  next.Descendants(),
		},
	}, nil
}

func sibling(tree *navigation.HeadingTree, n *navigation.HeadingNode, offset int) *navigation.HeadingNode {
	if n == nil {
		return nil
	}
	siblings := tree.Roots
	if len(n.Path) > 1 {
		parent, err := tree.Find(n.Path[:len(n.Path)-1])
		if err != nil {
			return nil
		}
		siblings = parent.Children
	}
	i := n.Path[len(n.Path)-1] - 1 + offset
	if i < 0 || i >= len(siblings) {
		return nil
	}
	return siblings[i]
}

