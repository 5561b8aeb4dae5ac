package doctree

import (
	"fmt"
	"slices"
	"unicode/utf8"
)

const (
	// DefaultLinesPerPage is the page height used when none is configured.
	DefaultLinesPerPage = 40

	// charsPerLine approximates the text width of a page line.
	charsPerLine = 80
)

type paragraph struct {
	handle          Handle
	text            string
	style           Style
	pageBreakBefore bool
}

// Memory is an in-memory Editor. Page numbers come from a simple line-based
// layout that reflows lazily after every edit.
type Memory struct {
	id    string
	title string
	path  string

	paras      []*paragraph
	nextHandle Handle
	bookmarks  map[string]Handle

	linesPerPage int
	layout       map[Handle]int
	pageCount    int

	revision  int
	modified  bool
	protected bool
	closed    bool
	hooks     []func()
	store     func(path string, c Content) error
}

// MemoryOptions configures NewMemory.
type MemoryOptions struct {
	Path         string // empty means the document has no location and cannot be committed
	LinesPerPage int

	// Store persists the document on Commit. Nil keeps commits in memory.
	Store func(path string, c Content) error
}

// NewMemory builds a document from loader output.
func NewMemory(id string, content Content, opts MemoryOptions) *Memory {
	if opts.LinesPerPage <= 0 {
		opts.LinesPerPage = DefaultLinesPerPage
	}
	m := &Memory{
		id:           id,
		title:        content.Title,
		path:         opts.Path,
		bookmarks:    make(map[string]Handle),
		linesPerPage: opts.LinesPerPage,
		store:        opts.Store,
	}
	for _, p := range content.Paragraphs {
		m.paras = append(m.paras, m.newParagraph(p))
	}
	return m
}

func (m *Memory) newParagraph(p Paragraph) *paragraph {
	m.nextHandle++
	style := p.Style
	if style.Name == "" && style.OutlineLevel == 0 {
		style = BodyStyle
	}
	return &paragraph{
		handle:          m.nextHandle,
		text:            p.Text,
		style:           style,
		pageBreakBefore: p.PageBreakBefore,
	}
}

func (m *Memory) ID() string        { return m.id }
func (m *Memory) Title() string     { return m.title }
func (m *Memory) Path() string      { return m.path }
func (m *Memory) HasLocation() bool { return m.path != "" }
func (m *Memory) Protected() bool   { return m.protected }
func (m *Memory) Revision() int     { return m.revision }
func (m *Memory) Modified() bool    { return m.modified }

// SetProtected toggles the advisory UI lock. It never blocks edits made
// through this API.
func (m *Memory) SetProtected(on bool) { m.protected = on }

// SetPath gives the document a location so it can be committed.
func (m *Memory) SetPath(path string) { m.path = path }

// Snapshot copies the current paragraphs out as loader-shaped content.
func (m *Memory) Snapshot() (Content, error) {
	if m.closed {
		return Content{}, ErrClosed
	}
	c := Content{Title: m.title, Paragraphs: make([]Paragraph, len(m.paras))}
	for i, p := range m.paras {
		c.Paragraphs[i] = Paragraph{Text: p.text, Style: p.style, PageBreakBefore: p.pageBreakBefore}
	}
	return c, nil
}

// Close makes every later call fail with ErrClosed.
func (m *Memory) Close() {
	m.closed = true
	m.hooks = nil
}

func (m *Memory) find(h Handle) (int, *paragraph, error) {
	if m.closed {
		return -1, nil, ErrClosed
	}
	for i, p := range m.paras {
		if p.handle == h {
			return i, p, nil
		}
	}
	return -1, nil, fmt.Errorf("handle %d: %w", h, ErrNoParagraph)
}

func (m *Memory) ListParagraphs() ([]Handle, error) {
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]Handle, len(m.paras))
	for i, p := range m.paras {
		out[i] = p.handle
	}
	return out, nil
}

func (m *Memory) IndexOf(h Handle) (int, error) {
	i, _, err := m.find(h)
	return i, err
}

func (m *Memory) ParagraphStyle(h Handle) (Style, error) {
	_, p, err := m.find(h)
	if err != nil {
		return Style{}, err
	}
	return p.style, nil
}

func (m *Memory) ParagraphText(h Handle) (string, error) {
	_, p, err := m.find(h)
	if err != nil {
		return "", err
	}
	return p.text, nil
}

func (m *Memory) InsertBookmark(h Handle, name string) error {
	if _, _, err := m.find(h); err != nil {
		return err
	}
	if _, ok := m.bookmarks[name]; ok {
		return fmt.Errorf("%s: %w", name, ErrBookmarkExists)
	}
	m.bookmarks[name] = h
	m.modified = true
	return nil
}

func (m *Memory) FindBookmark(name string) (Handle, bool, error) {
	if m.closed {
		return 0, false, ErrClosed
	}
	h, ok := m.bookmarks[name]
	return h, ok, nil
}

func (m *Memory) Bookmarks() (map[string]Handle, error) {
	if m.closed {
		return nil, ErrClosed
	}
	out := make(map[string]Handle, len(m.bookmarks))
	for k, v := range m.bookmarks {
		out[k] = v
	}
	return out, nil
}

// InsertParagraph inserts p before position at; at == len appends.
func (m *Memory) InsertParagraph(at int, p Paragraph) (Handle, error) {
	if m.closed {
		return 0, ErrClosed
	}
	if at < 0 || at > len(m.paras) {
		return 0, fmt.Errorf("insert position %d outside 0..%d", at, len(m.paras))
	}
	np := m.newParagraph(p)
	m.paras = slices.Insert(m.paras, at, np)
	m.touch()
	return np.handle, nil
}

// DeleteParagraph removes the paragraph. Bookmarks attached to it are kept
// but orphaned: FindBookmark still reports the old handle.
func (m *Memory) DeleteParagraph(h Handle) error {
	i, _, err := m.find(h)
	if err != nil {
		return err
	}
	m.paras = slices.Delete(m.paras, i, i+1)
	m.touch()
	return nil
}

// DuplicateParagraph inserts a copy right after h. Bookmarks are not copied.
func (m *Memory) DuplicateParagraph(h Handle) (Handle, error) {
	i, p, err := m.find(h)
	if err != nil {
		return 0, err
	}
	np := m.newParagraph(Paragraph{Text: p.text, Style: p.style})
	m.paras = slices.Insert(m.paras, i+1, np)
	m.touch()
	return np.handle, nil
}

func (m *Memory) SetParagraphText(h Handle, text string) error {
	_, p, err := m.find(h)
	if err != nil {
		return err
	}
	p.text = text
	m.touch()
	return nil
}

func (m *Memory) SetParagraphStyle(h Handle, s Style) error {
	_, p, err := m.find(h)
	if err != nil {
		return err
	}
	p.style = s
	m.touch()
	return nil
}

func (m *Memory) touch() {
	m.modified = true
	m.layout = nil
}

// Commit stores the document and notifies commit hooks.
func (m *Memory) Commit() error {
	if m.closed {
		return ErrClosed
	}
	if m.path == "" {
		return ErrNoLocation
	}
	if m.store != nil {
		c, _ := m.Snapshot()
		if err := m.store(m.path, c); err != nil {
			return fmt.Errorf("store %s: %w", m.path, err)
		}
	}
	m.revision++
	m.modified = false
	for _, fn := range m.hooks {
		fn()
	}
	return nil
}

func (m *Memory) OnCommit(fn func()) {
	if m.closed {
		return
	}
	m.hooks = append(m.hooks, fn)
}

func (m *Memory) PageNumberOf(h Handle) (int, error) {
	if _, _, err := m.find(h); err != nil {
		return 0, err
	}
	m.reflow()
	return m.layout[h], nil
}

func (m *Memory) PageCount() (int, error) {
	if m.closed {
		return 0, ErrClosed
	}
	m.reflow()
	return m.pageCount, nil
}

// reflow assigns each paragraph the page its first line lands on.
func (m *Memory) reflow() {
	if m.layout != nil {
		return
	}
	m.layout = make(map[Handle]int, len(m.paras))
	page, used := 1, 0
	for i, p := range m.paras {
		if p.pageBreakBefore && i > 0 {
			page++
			used = 0
		}
		if used >= m.linesPerPage {
			page++
			used = 0
		}
		m.layout[p.handle] = page
		used += lineCount(p.text)
		for used > m.linesPerPage {
			page++
			used -= m.linesPerPage
		}
	}
	m.pageCount = page
}

func lineCount(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 1
	}
	return (n + charsPerLine - 1) / charsPerLine
}
