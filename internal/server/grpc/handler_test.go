package grpc

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/aasindex/internal/aas"
	"github.com/dmitrijs2005/aasindex/internal/common"
	"github.com/dmitrijs2005/aasindex/internal/logging"
	"github.com/dmitrijs2005/aasindex/internal/models"
	"github.com/dmitrijs2005/aasindex/internal/provider"
	"github.com/dmitrijs2005/aasindex/internal/timex"
)

type fakeProvider struct {
	mu        sync.Mutex
	endpoints map[string]*models.Endpoint
	docs      map[models.DocumentKey]*models.Document
	scanning  map[string]bool
	events    chan provider.Notification
	resets    int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		endpoints: map[string]*models.Endpoint{},
		docs:      map[models.DocumentKey]*models.Document{},
		scanning:  map[string]bool{},
		events:    make(chan provider.Notification, 8),
	}
}

func (f *fakeProvider) Endpoints(ctx context.Context) ([]*models.Endpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Endpoint
	for _, e := range f.endpoints {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeProvider) Endpoint(ctx context.Context, name string) (*models.Endpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.endpoints[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrEndpointNotFound, name)
	}
	return e, nil
}

func (f *fakeProvider) AddEndpoint(ctx context.Context, e *models.Endpoint) error {
	if err := e.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.endpoints[e.Name]; ok {
		return fmt.Errorf("%w: %s", common.ErrEndpointExists, e.Name)
	}
	f.endpoints[e.Name] = e
	return nil
}

func (f *fakeProvider) UpdateEndpoint(ctx context.Context, e *models.Endpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.endpoints[e.Name]; !ok {
		return fmt.Errorf("%w: %s", common.ErrEndpointNotFound, e.Name)
	}
	f.endpoints[e.Name] = e
	return nil
}

func (f *fakeProvider) RemoveEndpoint(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.endpoints[name]; !ok {
		return fmt.Errorf("%w: %s", common.ErrEndpointNotFound, name)
	}
	delete(f.endpoints, name)
	return nil
}

func (f *fakeProvider) Documents(ctx context.Context, cursor models.Cursor, expression, language string) (*models.Page, error) {
	if expression == "#(" {
		return nil, fmt.Errorf("%w: unbalanced", common.ErrInvalidExpression)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	page := &models.Page{}
	for _, d := range f.docs {
		page.Documents = append(page.Documents, d.WithoutContent())
	}
	if len(page.Documents) > 0 {
		k := page.Documents[0].Key()
		page.Next = &k
	}
	return page, nil
}

func (f *fakeProvider) Document(ctx context.Context, endpoint, id string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[models.DocumentKey{Endpoint: endpoint, ID: id}]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrDocumentNotFound, id)
	}
	return d.WithoutContent(), nil
}

func (f *fakeProvider) Content(ctx context.Context, endpoint, id string) (*aas.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[models.DocumentKey{Endpoint: endpoint, ID: id}]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrDocumentNotFound, id)
	}
	return d.Content, nil
}

func (f *fakeProvider) UpdateDocument(ctx context.Context, doc *models.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.docs[doc.Key()]
	if !ok {
		return fmt.Errorf("%w: %s", common.ErrDocumentNotFound, doc.ID)
	}
	if cur.ReadOnly {
		return fmt.Errorf("%w: %s", common.ErrReadOnly, doc.ID)
	}
	f.docs[doc.Key()] = doc
	return nil
}

func (f *fakeProvider) StartEndpointScan(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scanning[name] {
		return fmt.Errorf("%w: %s", common.ErrScanInProgress, name)
	}
	f.scanning[name] = true
	return nil
}

func (f *fakeProvider) ScanEndpoint(ctx context.Context, name string) (provider.ScanStats, error) {
	if name == "broken" {
		return provider.ScanStats{}, fmt.Errorf("scan %s: disk on fire", name)
	}
	return provider.ScanStats{Added: 2, Unchanged: 1}, nil
}

func (f *fakeProvider) Reset(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return nil
}

func (f *fakeProvider) Subscribe(buffer int) (<-chan provider.Notification, func()) {
	return f.events, func() {}
}

func testDocument() *models.Document {
	return &models.Document{
		Endpoint:  "E1",
		ID:        "urn:a",
		IDShort:   "A",
		CRC32:     4242,
		Timestamp: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Content: &aas.Node{ModelType: aas.ModelEnvironment, Children: []*aas.Node{
			{ModelType: aas.ModelShell, ID: "urn:a", IDShort: "A"},
		}},
	}
}

func TestEndpoints_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newBufClient(t, NewGRPCServer("", logging.Nop(), newFakeProvider()))

	e := &models.Endpoint{
		Name:     "E1",
		URL:      "file:///data",
		Type:     models.EndpointFileSystem,
		Headers:  map[string]string{"X-Key": "v"},
		Schedule: &models.Schedule{Type: models.ScheduleEvery, Values: []timex.Duration{timex.D(time.Minute)}},
	}
	require.NoError(t, c.AddEndpoint(ctx, e))
	assert.ErrorIs(t, c.AddEndpoint(ctx, e), common.ErrEndpointExists)
	assert.ErrorIs(t, c.AddEndpoint(ctx, &models.Endpoint{Name: "x"}), common.ErrInvalidEndpoint)

	got, err := c.Endpoint(ctx, "E1")
	require.NoError(t, err)
	if diff := cmp.Diff(e, got); diff != "" {
		t.Errorf("endpoint mismatch (-want +got):\n%s", diff)
	}

	list, err := c.Endpoints(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	e.URL = "file:///other"
	require.NoError(t, c.UpdateEndpoint(ctx, e))
	require.NoError(t, c.RemoveEndpoint(ctx, "E1"))
	assert.ErrorIs(t, c.RemoveEndpoint(ctx, "E1"), common.ErrEndpointNotFound)
	_, err = c.Endpoint(ctx, "E1")
	assert.ErrorIs(t, err, common.ErrEndpointNotFound)
}

func TestDocuments_RoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	doc := testDocument()
	p.docs[doc.Key()] = doc
	c := newBufClient(t, NewGRPCServer("", logging.Nop(), p))

	page, err := c.Documents(ctx, models.FirstPage(10), "", "")
	require.NoError(t, err)
	require.Len(t, page.Documents, 1)
	if diff := cmp.Diff(doc.WithoutContent(), page.Documents[0]); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}
	require.NotNil(t, page.Next)
	assert.Equal(t, doc.Key(), *page.Next)
	assert.Nil(t, page.Previous)

	_, err = c.Documents(ctx, models.FirstPage(10), "#(", "")
	assert.ErrorIs(t, err, common.ErrInvalidExpression)

	one, err := c.Document(ctx, "E1", "urn:a")
	require.NoError(t, err)
	assert.Equal(t, uint32(4242), one.CRC32)
	_, err = c.Document(ctx, "E1", "urn:missing")
	assert.ErrorIs(t, err, common.ErrDocumentNotFound)

	env, err := c.Content(ctx, "E1", "urn:a")
	require.NoError(t, err)
	if diff := cmp.Diff(doc.Content, env); diff != "" {
		t.Errorf("content mismatch (-want +got):\n%s", diff)
	}

	updated := testDocument()
	updated.IDShort = "B"
	require.NoError(t, c.UpdateDocument(ctx, updated))
	assert.Equal(t, "B", p.docs[doc.Key()].IDShort)

	updated.Content = nil
	assert.Error(t, c.UpdateDocument(ctx, updated))
}

func TestUpdateDocument_ReadOnly(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	doc := testDocument()
	doc.ReadOnly = true
	p.docs[doc.Key()] = doc
	c := newBufClient(t, NewGRPCServer("", logging.Nop(), p))

	assert.ErrorIs(t, c.UpdateDocument(ctx, testDocument()), common.ErrReadOnly)
}

func TestScans(t *testing.T) {
	ctx := context.Background()
	p := newFakeProvider()
	c := newBufClient(t, NewGRPCServer("", logging.Nop(), p))

	require.NoError(t, c.StartScan(ctx, "E1"))
	assert.ErrorIs(t, c.StartScan(ctx, "E1"), common.ErrScanInProgress)

	stats, err := c.ScanEndpoint(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, provider.ScanStats{Added: 2, Unchanged: 1}, stats)

	_, err = c.ScanEndpoint(ctx, "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")

	require.NoError(t, c.Reset(ctx))
	assert.Equal(t, 1, p.resets)
}

func TestWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := newFakeProvider()
	c := newBufClient(t, NewGRPCServer("", logging.Nop(), p))

	w, err := c.Watch(ctx)
	require.NoError(t, err)

	doc := testDocument().WithoutContent()
	p.events <- provider.Notification{Channel: common.NotificationChannel, Type: provider.Added, Endpoint: "E1", Document: doc, Time: doc.Timestamp}
	p.events <- provider.Notification{Channel: common.NotificationChannel, Type: provider.Reset, Time: doc.Timestamp}

	n, err := w.Recv()
	require.NoError(t, err)
	assert.Equal(t, provider.Added, n.Type)
	assert.Equal(t, "urn:a", n.Document.ID)

	n, err = w.Recv()
	require.NoError(t, err)
	assert.Equal(t, provider.Reset, n.Type)
	assert.Nil(t, n.Document)

	close(p.events)
	_, err = w.Recv()
	assert.Error(t, err)
}
