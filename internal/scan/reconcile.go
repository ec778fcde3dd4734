package scan

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/dmitrijs2005/aasindex/internal/index"
	"github.com/dmitrijs2005/aasindex/internal/models"
)

// DefaultPageSize is the index page size used when Options leaves it unset.
const DefaultPageSize = 100

// Options tunes a reconciliation pass.
type Options struct {
	// PageSize is the number of indexed documents pulled per index page.
	PageSize int
}

type entry struct {
	reference *models.Document
	document  *models.Document
	// failed marks ids whose document could not be created. They resolve
	// silently so a read error never turns into a removal.
	failed bool
}

type merger struct {
	entries map[string]*entry

	refDone, srcDone bool
	// last ids pulled from each side; both sides are id-ordered, so an id
	// below a side's watermark that has no slot filled is absent there
	refMark, srcMark string
}

func (m *merger) get(id string) *entry {
	e, ok := m.entries[id]
	if !ok {
		e = &entry{}
		m.entries[id] = e
	}
	return e
}

// resolve emits every entry whose outcome is decided, in id order, and
// drops it from the map.
func (m *merger) resolve(final bool, yield func(Event, error) bool) bool {
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		e := m.entries[id]
		var (
			ev   Event
			emit bool
			done bool
		)
		switch {
		case e.reference != nil && e.document != nil:
			ev, emit, done = Event{Kind: EventCompare, Reference: e.reference, Document: e.document}, true, true
		case e.reference != nil && e.failed:
			done = true
		case e.reference != nil:
			if final || m.srcDone || id < m.srcMark {
				ev, emit, done = Event{Kind: EventRemove, Reference: e.reference}, true, true
			}
		case e.document != nil:
			if final || m.refDone || id < m.refMark {
				ev, emit, done = Event{Kind: EventAdd, Document: e.document}, true, true
			}
		default:
			done = final || m.refDone || id < m.refMark
		}
		if !done {
			continue
		}
		delete(m.entries, id)
		if emit && !yield(ev, nil) {
			return false
		}
	}
	return true
}

// Reconcile merges the index's documents of endpoint with the labels src
// serves and yields the resulting events. Both sides are read page by page
// and only ids between the two read positions are held in memory.
//
// A non-nil error ends the sequence; per-item failures are reported as
// EventError instead. src is opened on the first iteration and always
// closed, also when the consumer stops early.
func Reconcile(ctx context.Context, endpoint string, idx index.Pager, src Source, opts Options) iter.Seq2[Event, error] {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return func(yield func(Event, error) bool) {
		if err := src.Open(ctx); err != nil {
			yield(Event{}, fmt.Errorf("open source: %w", err))
			return
		}
		defer src.Close(context.WithoutCancel(ctx))

		m := &merger{entries: make(map[string]*entry)}
		var cursor string

		for !m.refDone || !m.srcDone {
			if err := ctx.Err(); err != nil {
				yield(Event{}, err)
				return
			}

			if !m.refDone {
				docs, err := idx.NextPage(ctx, endpoint, m.refMark, pageSize)
				if err != nil {
					yield(Event{}, fmt.Errorf("index page: %w", err))
					return
				}
				for _, d := range docs {
					if e := m.get(d.ID); e.reference == nil {
						e.reference = d
					}
				}
				if len(docs) > 0 {
					m.refMark = docs[len(docs)-1].ID
				}
				m.refDone = len(docs) < pageSize
			}

			if !m.srcDone {
				page, err := src.NextPage(ctx, cursor)
				if err != nil {
					yield(Event{}, fmt.Errorf("source page: %w", err))
					return
				}
				for _, label := range page.Items {
					e := m.get(label.ID)
					if e.document != nil || e.failed {
						continue
					}
					doc, err := src.CreateDocument(ctx, label)
					if err != nil {
						e.failed = true
						if !yield(Event{Kind: EventError, Item: label.ID, Err: err}, nil) {
							return
						}
						continue
					}
					e.document = doc
				}
				if n := len(page.Items); n > 0 {
					m.srcMark = page.Items[n-1].ID
				}
				cursor = page.NextCursor
				m.srcDone = cursor == ""
			}

			if !m.resolve(false, yield) {
				return
			}
		}
		m.resolve(true, yield)
	}
}
