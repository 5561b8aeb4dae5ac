package tools

import (
	"strings"

	"github.com/dgallion1/docbridge/internal/workspace"
)

const locatorHelp = "Locator: bookmark:<name>, heading:<path> (1-based, e.g. heading:2.1), paragraph:<n> (0-based) or page:<n> (1-based)."

var (
	docIDParam = Param{Name: "doc_id", Type: TypeString, Description: "Document id. Defaults to the active document."}
	locParam   = Param{Name: "locator", Type: TypeString, Required: true, Description: locatorHelp}
)

// NewDefaultRegistry returns a registry with every document tool, including
// batch.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, t := range builtins() {
		r.Register(t)
	}
	r.Register(batchTool(r))
	return r
}

func builtins() []Tool {
	return []Tool{
		{
			Name:        "open_document",
			Description: "Open a document file (.docx, .md, .html, .pdf, .txt) and make it active.",
			Params: []Param{
				{Name: "path", Type: TypeString, Required: true, Description: "File path, relative to the document directory."},
			},
			Mutates: true,
			Run: func(ws *workspace.Workspace, a Args) (any, error) {
				path, err := a.String("path")
				if err != nil {
					return nil, err
				}
				return ws.Open(path)
			},
		},
		{
			Name:        "new_document",
			Description: "Create an empty document and make it active.",
			Params: []Param{
				{Name: "title", Type: TypeString, Description: "Document title."},
				{Name: "path", Type: TypeString, Description: "Optional .md or .txt path to commit to."},
			},
			Mutates: true,
			Run: func(ws *workspace.Workspace, a Args) (any, error) {
				title, err := a.String("title")
				if err != nil {
					return nil, err
				}
				path, err := a.String("path")
				if err != nil {
					return nil, err
				}
				return ws.Create(title, path)
			},
		},
		{
			Name:        "close_document",
			Description: "Close a document, discarding unsaved changes.",
			Params:      []Param{docIDParam},
			Mutates:     true,
			Run: func(ws *workspace.Workspace, a Args) (any, error) {
				id, err := a.String("doc_id")
				if err != nil {
					return nil, err
				}
				return ws.Close(id)
			},
		},
		{
			Name:        "list_documents",
			Description: "List open documents.",
			Run: func(ws *workspace.Workspace, a Args) (any, error) {
				return ws.List()
			},
		},
		{
			Name:        "get_document_tree",
			Description: "Heading outline with bookmarks. Use the bookmarks as stable locators.",
			Params: []Param{
				docIDParam,
				{Name: "depth", Type: TypeInteger, Description: "Levels to include; 0 for all. Default 1."},
				{Name: "previews", Type: TypeBoolean, Description: "Include body previews. Default true."},
				{Name: "pages", Type: TypeBoolean, Description: "Include page numbers. Default false."},
			},
			Run: func(ws *workspace.Workspace, a Args) (any, error) {
				id, opts, err := treeArgs(a)
				if err != nil {
					return nil, err
				}
				return ws.Tree(id, opts)
			},
		},
		{
			Name:        "get_heading_children",
			Description: "Body paragraphs and sub-headings under one heading.",
			Params: []Param{
				docIDParam,
				locParam,
				{Name: "depth", Type: TypeInteger, Description: "Sub-heading levels to include; 0 for all. Default 1."},
				{Name: "full", Type: TypeBoolean, Description: "Return full body text instead of previews."},
			},
			Run: func(ws *workspace.Workspace, a Args) (any, error) {
				id, opts, err := treeArgs(a)
				if err != nil {
					return nil, err
				}
				loc, err := a.Locator("locator")
				if err != nil {
					return nil, err
				}
				full, err := a.Bool("full", false)
				if err != nil {
					return nil, err
				}
				return ws.HeadingChildren(id, loc, opts, full)
			},
		},
		{
			Name:        "get_paragraph_count",
			Description: "Number of paragraphs in the document.",
			Params:      []Param{docIDParam},
			Run: func(ws *workspace.Workspace, a Args) (any, error) {
				id, err := a.String("doc_id")
				if err != nil {
					return nil, err
				}
				n, err := ws.ParagraphCount(id)
				if err != nil {
					return nil, err
				}
				return map[string]int{"count": n}, nil
			},
		},
		{
			Name:        "read_paragraphs",
			Description: "Read paragraphs starting at a locator.",
			Params: []Param{
				docIDParam,
				{Name: "locator", Type: TypeString, Description: locatorHelp + " Default paragraph:0."},
				{Name: "count", Type: TypeInteger, Description: "Paragraphs to read, up to 200. Default 10."},
			},
			Run: func(ws *workspace.Workspace, a Args) (any, error) {
				id, err := a.String("doc_id")
				if err != nil {
					return nil, err
				}
				loc, err := a.Locator("locator")
				if err != nil {
					return nil, err
				}
				count, err := a.Int("count", 10)
				if err != nil {
					return nil, err
				}
				return ws.ReadParagraphs(id, loc, count)
			},
		},
		{
			Name:        "resolve_locator",
			Description: "Resolve a locator to its current paragraph index, bookmark and page.",
			Params:      []Param{docIDParam, locParam},
			Run: func(ws *workspace.Workspace, a Args) (any, error) {
				id, loc, err := docAndLocator(a)
				if err != nil {
					return nil, err
				}
				return ws.Resolve(id, loc)
			},
		},
		{
			Name:        "insert_paragraph",
			Description: "Insert a paragraph after (or before) a locator. Without a locator the paragraph is appended.",
			Params: []Param{
				docIDParam,
				{Name: "locator", Type: TypeString, Description: locatorHelp},
				{Name: "text", Type: TypeString, Required: true, Description: "Paragraph text."},
				{Name: "style", Type: TypeString, Description: `Paragraph style, e.g. "Heading 2". Default body text.`},
				{Name: "before", Type: TypeBoolean, Description: "Insert before the locator instead of after."},
			},
			Mutates: true,
			Run: func(ws *workspace.Workspace, a Args) (any, error) {
				id, err := a.String("doc_id")
				if err != nil {
					return nil, err
				}
				loc, err := a.Locator("locator")
				if err != nil {
					return nil, err
				}
				text, err := a.String("text")
				if err != nil {
					return nil, err
				}
				style, err := a.String("style")
				if err != nil {
					return nil, err
				}
				before, err := a.Bool("before", false)
				if err != nil {
					return nil, err
				}
				return ws.Insert(id, loc, text, style, before)
			},
		},
		{
			Name:        "delete_paragraph",
			Description: "Delete the paragraph at a locator. Bookmarks on it become orphaned.",
			Params:      []Param{docIDParam, locParam},
			Mutates:     true,
			Run: func(ws *workspace.Workspace, a Args) (any, error) {
				id, loc, err := docAndLocator(a)
				if err != nil {
					return nil, err
				}
				return ws.Delete(id, loc)
			},
		},
		{
			Name:        "duplicate_paragraph",
			Description: "Insert a copy of the paragraph right after it.",
			Params:      []Param{docIDParam, locParam},
			Mutates:     true,
			Run: func(ws *workspace.Workspace, a Args) (any, error) {
				id, loc, err := docAndLocator(a)
				if err != nil {
					return nil, err
				}
				return ws.Duplicate(id, loc)
			},
		},
		{
			Name:        "set_paragraph_text",
			Description: "Replace a paragraph's text in place.",
			Params: []Param{
				docIDParam,
				locParam,
				{Name: "text", Type: TypeString, Required: true, Description: "New text."},
			},
			Mutates: true,
			Run: func(ws *workspace.Workspace, a Args) (any, error) {
				id, loc, err := docAndLocator(a)
				if err != nil {
					return nil, err
				}
				text, err := a.String("text")
				if err != nil {
					return nil, err
				}
				return ws.SetText(id, loc, text)
			},
		},
		{
			Name:        "set_paragraph_style",
			Description: `Change a paragraph's style, e.g. "Heading 1" or "Text Body".`,
			Params: []Param{
				docIDParam,
				locParam,
				{Name: "style", Type: TypeString, Required: true, Description: "Style name."},
			},
			Mutates: true,
			Run: func(ws *workspace.Workspace, a Args) (any, error) {
				id, loc, err := docAndLocator(a)
				if err != nil {
					return nil, err
				}
				style, err := a.String("style")
				if err != nil {
					return nil, err
				}
				return ws.SetStyle(id, loc, style)
			},
		},
		{
			Name: "search_in_document",
			Description: "Find text with paragraph context. Each match carries its para_index and the " +
				"bookmark locator of the heading it falls under.",
			Params: []Param{
				docIDParam,
				{Name: "pattern", Type: TypeString, Required: true, Description: "Text or regular expression to find."},
				{Name: "regex", Type: TypeBoolean, Description: "Treat pattern as a regular expression. Default false."},
				{Name: "case_sensitive", Type: TypeBoolean, Description: "Match case. Default false."},
				{Name: "max_results", Type: TypeInteger, Description: "Matches to return, up to 200. Default 20."},
				{Name: "context_paragraphs", Type: TypeInteger, Description: "Paragraphs of context on each side, up to 5. Default 1."},
			},
			Run: func(ws *workspace.Workspace, a Args) (any, error) {
				id, err := a.String("doc_id")
				if err != nil {
					return nil, err
				}
				pattern, err := a.String("pattern")
				if err != nil {
					return nil, err
				}
				opts, err := searchArgs(a)
				if err != nil {
					return nil, err
				}
				if opts.MaxResults, err = a.Int("max_results", 20); err != nil {
					return nil, err
				}
				if opts.Context, err = a.Int("context_paragraphs", 1); err != nil {
					return nil, err
				}
				return ws.Search(id, pattern, opts)
			},
		},
		{
			Name:        "replace_in_document",
			Description: "Replace every match of a text or pattern. Paragraph styles and bookmarks are kept.",
			Params: []Param{
				docIDParam,
				{Name: "search", Type: TypeString, Required: true, Description: "Text or regular expression to find."},
				{Name: "replace", Type: TypeString, Required: true, Description: "Replacement text. With regex, $1 refers to a group."},
				{Name: "regex", Type: TypeBoolean, Description: "Treat search as a regular expression. Default false."},
				{Name: "case_sensitive", Type: TypeBoolean, Description: "Match case. Default false."},
			},
			Mutates: true,
			Run: func(ws *workspace.Workspace, a Args) (any, error) {
				id, err := a.String("doc_id")
				if err != nil {
					return nil, err
				}
				search, err := a.String("search")
				if err != nil {
					return nil, err
				}
				replace, err := a.String("replace")
				if err != nil {
					return nil, err
				}
				opts, err := searchArgs(a)
				if err != nil {
					return nil, err
				}
				return ws.Replace(id, search, replace, opts)
			},
		},
		{
			Name:        "navigate_heading",
			Description: "Move from a locator to a related heading and return its bookmark.",
			Params: []Param{
				docIDParam,
				locParam,
				{Name: "direction", Type: TypeString, Required: true, Description: "One of " + strings.Join(workspace.Directions, ", ") + "."},
			},
			Run: func(ws *workspace.Workspace, a Args) (any, error) {
				id, loc, err := docAndLocator(a)
				if err != nil {
					return nil, err
				}
				direction, err := a.String("direction")
				if err != nil {
					return nil, err
				}
				return ws.NavigateHeading(id, loc, direction)
			},
		},
		{
			Name:        "list_bookmarks",
			Description: "List bookmarks with their current paragraph. Orphaned bookmarks are flagged.",
			Params:      []Param{docIDParam},
			Run: func(ws *workspace.Workspace, a Args) (any, error) {
				id, err := a.String("doc_id")
				if err != nil {
					return nil, err
				}
				return ws.Bookmarks(id)
			},
		},
		{
			Name:        "get_page_count",
			Description: "Number of pages in the document.",
			Params:      []Param{docIDParam},
			Run: func(ws *workspace.Workspace, a Args) (any, error) {
				id, err := a.String("doc_id")
				if err != nil {
					return nil, err
				}
				n, err := ws.PageCount(id)
				if err != nil {
					return nil, err
				}
				return map[string]int{"pages": n}, nil
			},
		},
		{
			Name:        "save_document",
			Description: "Commit the document to its location, or to a new .md or .txt path.",
			Params: []Param{
				docIDParam,
				{Name: "path", Type: TypeString, Description: "Save to this path instead."},
			},
			Mutates: true,
			Run: func(ws *workspace.Workspace, a Args) (any, error) {
				id, err := a.String("doc_id")
				if err != nil {
					return nil, err
				}
				path, err := a.String("path")
				if err != nil {
					return nil, err
				}
				return ws.Save(id, path)
			},
		},
		{
			Name:        "set_document_protection",
			Description: "Toggle the advisory protection flag. Edits are not blocked.",
			Params: []Param{
				docIDParam,
				{Name: "enabled", Type: TypeBoolean, Required: true, Description: "Protect or unprotect."},
			},
			Mutates: true,
			Run: func(ws *workspace.Workspace, a Args) (any, error) {
				id, err := a.String("doc_id")
				if err != nil {
					return nil, err
				}
				on, err := a.Bool("enabled", false)
				if err != nil {
					return nil, err
				}
				return ws.SetProtection(id, on)
			},
		},
	}
}

func docAndLocator(a Args) (id, loc string, err error) {
	if id, err = a.String("doc_id"); err != nil {
		return "", "", err
	}
	if loc, err = a.Locator("locator"); err != nil {
		return "", "", err
	}
	return id, loc, nil
}

func searchArgs(a Args) (workspace.SearchOptions, error) {
	var opts workspace.SearchOptions
	var err error
	if opts.Regex, err = a.Bool("regex", false); err != nil {
		return opts, err
	}
	if opts.CaseSensitive, err = a.Bool("case_sensitive", false); err != nil {
		return opts, err
	}
	return opts, nil
}

func treeArgs(a Args) (string, workspace.TreeOptions, error) {
	var opts workspace.TreeOptions
	id, err := a.String("doc_id")
	if err != nil {
		return "", opts, err
	}
	if opts.Depth, err = a.Int("depth", 1); err != nil {
		return "", opts, err
	}
	if opts.Previews, err = a.Bool("previews", true); err != nil {
		return "", opts, err
	}
	if opts.Pages, err = a.Bool("pages", false); err != nil {
		return "", opts, err
	}
	return id, opts, nil
}
