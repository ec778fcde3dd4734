package provider

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/aasindex/internal/common"
	"github.com/dmitrijs2005/aasindex/internal/index"
	"github.com/dmitrijs2005/aasindex/internal/index/indextest"
	"github.com/dmitrijs2005/aasindex/internal/index/pebbleindex"
	"github.com/dmitrijs2005/aasindex/internal/models"
	"github.com/dmitrijs2005/aasindex/internal/scan"
)

type fakeSource struct {
	mu    sync.Mutex
	docs  map[string]*models.Document
	calls int

	// block, when set, is called before every document is created
	block func(id string)
	panic bool
}

func newFakeSource(docs ...*models.Document) *fakeSource {
	s := &fakeSource{docs: map[string]*models.Document{}}
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return s
}

func (s *fakeSource) Open(ctx context.Context) error  { return nil }
func (s *fakeSource) Close(ctx context.Context) error { return nil }

func (s *fakeSource) NextPage(ctx context.Context, cursor string) (scan.Page, error) {
	if s.panic {
		panic("broken source")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var p scan.Page
	for _, d := range s.docs {
		p.Items = append(p.Items, models.Label{ID: d.ID, IDShort: d.IDShort})
	}
	slices.SortFunc(p.Items, func(a, b models.Label) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return p, nil
}

func (s *fakeSource) CreateDocument(ctx context.Context, label models.Label) (*models.Document, error) {
	if s.block != nil {
		s.block(label.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	d, ok := s.docs[label.ID]
	if !ok {
		return nil, common.ErrDocumentNotFound
	}
	c := *d
	return &c, nil
}

type fakeFactory struct {
	mu      sync.Mutex
	sources map[string]*fakeSource
}

func (f *fakeFactory) set(endpoint string, s *fakeSource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sources == nil {
		f.sources = map[string]*fakeSource{}
	}
	f.sources[endpoint] = s
}

func (f *fakeFactory) New(ctx context.Context, e *models.Endpoint) (scan.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sources[e.Name]
	if !ok {
		return nil, errors.New("no source")
	}
	return s, nil
}

func newTestProvider(t *testing.T, opts Options) (*Provider, index.Index, *fakeFactory) {
	t.Helper()
	idx, err := pebbleindex.Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	f := &fakeFactory{}
	p := New(idx, f, opts)
	t.Cleanup(p.Stop)
	return p, idx, f
}

func endpoint(name string, schedule models.ScheduleType) *models.Endpoint {
	return &models.Endpoint{
		Name:     name,
		URL:      "file:///data/" + name,
		Type:     models.EndpointFileSystem,
		Schedule: &models.Schedule{Type: schedule},
	}
}

func doc(endpoint, id string, power float64) *models.Document {
	return indextest.Document(endpoint, id, power)
}

// next waits for a notification of the given type.
func next(t *testing.T, ch <-chan Notification, typ NotificationType) Notification {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case n, ok := <-ch:
			require.True(t, ok, "subscription closed")
			if n.Type == typ {
				return n
			}
		case <-timeout:
			t.Fatalf("no %s notification", typ)
		}
	}
}
