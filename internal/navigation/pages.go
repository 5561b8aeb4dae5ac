package navigation

import (
	"sync"
	"sync/atomic"

	"github.com/dgallion1/docbridge/internal/doctree"
)

type pageEntry struct {
	epoch uint64
	pages map[doctree.Handle]int
	count int // 0 until computed
}

// PageIndex caches paragraph -> page lookups per document. Entries are keyed
// by paragraph handle. Any mutation or commit drops the whole document's
// entries.
type PageIndex struct {
	mu      sync.Mutex
	docs    map[string]*pageEntry
	watched map[string]bool
	epochs  atomic.Uint64

	hits          atomic.Uint64
	misses        atomic.Uint64
	invalidations atomic.Uint64
}

func NewPageIndex() *PageIndex {
	return &PageIndex{
		docs:    make(map[string]*pageEntry),
		watched: make(map[string]bool),
	}
}

// Watch registers the commit hook that invalidates doc's entries. Calling it
// again for the same document is a no-op.
func (p *PageIndex) Watch(doc doctree.Document) {
	id := doc.ID()
	p.mu.Lock()
	if p.watched[id] {
		p.mu.Unlock()
		return
	}
	p.watched[id] = true
	p.mu.Unlock()
	doc.OnCommit(func() { p.InvalidateOnCommit(id) })
}

func (p *PageIndex) entry(id string) *pageEntry {
	e, ok := p.docs[id]
	if !ok {
		e = &pageEntry{epoch: p.epochs.Add(1), pages: make(map[doctree.Handle]int)}
		p.docs[id] = e
	}
	return e
}

// PageOf returns the page h starts on, asking the document on a miss.
func (p *PageIndex) PageOf(doc doctree.Document, h doctree.Handle) (int, error) {
	id := doc.ID()
	p.mu.Lock()
	if pg, ok := p.entry(id).pages[h]; ok {
		p.mu.Unlock()
		p.hits.Add(1)
		return pg, nil
	}
	p.mu.Unlock()

	p.misses.Add(1)
	pg, err := doc.PageNumberOf(h)
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	p.entry(id).pages[h] = pg
	p.mu.Unlock()
	return pg, nil
}

// PageCount returns the document's page count, cached like PageOf.
func (p *PageIndex) PageCount(doc doctree.Document) (int, error) {
	id := doc.ID()
	p.mu.Lock()
	if n := p.entry(id).count; n > 0 {
		p.mu.Unlock()
		p.hits.Add(1)
		return n, nil
	}
	p.mu.Unlock()

	p.misses.Add(1)
	n, err := doc.PageCount()
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	p.entry(id).count = n
	p.mu.Unlock()
	return n, nil
}

// Invalidate drops every cached page of the document.
func (p *PageIndex) Invalidate(docID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.docs, docID)
	p.invalidations.Add(1)
}

// InvalidateOnCommit is the commit hook registered by Watch.
func (p *PageIndex) InvalidateOnCommit(docID string) { p.Invalidate(docID) }

// Epoch identifies the current cache generation for a document. It changes
// after every invalidation; zero means nothing is cached.
func (p *PageIndex) Epoch(docID string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.docs[docID]; ok {
		return e.epoch
	}
	return 0
}

// Len is the number of cached paragraph entries for a document.
func (p *PageIndex) Len(docID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.docs[docID]; ok {
		return len(e.pages)
	}
	return 0
}

// Forget drops a closed document. A later Watch registers it again.
func (p *PageIndex) Forget(docID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.docs, docID)
	delete(p.watched, docID)
}

// PageStats reports cache activity.
type PageStats struct {
	Documents     int    `json:"documents"`
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Invalidations uint64 `json:"invalidations"`
}

func (p *PageIndex) Stats() PageStats {
	p.mu.Lock()
	n := len(p.docs)
	p.mu.Unlock()
	return PageStats{
		Documents:     n,
		Hits:          p.hits.Load(),
		Misses:        p.misses.Load(),
		Invalidations: p.invalidations.Load(),
	}
}
