// Package provider orchestrates the index, the endpoint sources and the
// scan scheduler behind one API and broadcasts index changes.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/semaphore"

	"github.com/dmitrijs2005/aasindex/internal/aas"
	"github.com/dmitrijs2005/aasindex/internal/common"
	"github.com/dmitrijs2005/aasindex/internal/index"
	"github.com/dmitrijs2005/aasindex/internal/logging"
	"github.com/dmitrijs2005/aasindex/internal/metrics"
	"github.com/dmitrijs2005/aasindex/internal/models"
	"github.com/dmitrijs2005/aasindex/internal/scan"
	"github.com/dmitrijs2005/aasindex/internal/tasks"
)

// Owner is the task owner of every scan the provider schedules.
const Owner tasks.Owner = "provider"

const (
	DefaultScanInterval       = time.Hour
	DefaultMaxConcurrentScans = 4
	DefaultCacheSize          = 256
	DefaultCacheTTL           = 5 * time.Minute
)

// SourceFactory builds the source that enumerates an endpoint.
type SourceFactory interface {
	New(ctx context.Context, e *models.Endpoint) (scan.Source, error)
}

type Options struct {
	// Seeds are registered at start and after a reset when missing.
	Seeds              []*models.Endpoint
	DefaultInterval    time.Duration
	MaxConcurrentScans int
	PageSize           int
	CacheSize          int
	CacheTTL           time.Duration
	Logger             logging.Logger
	Metrics            *metrics.Metrics
}

type Provider struct {
	idx     index.Index
	sources SourceFactory
	opts    Options
	logger  logging.Logger
	metrics *metrics.Metrics

	tasks  *tasks.Handler
	timers *xsync.MapOf[string, *time.Timer]
	cache  *expirable.LRU[models.DocumentKey, *aas.Node]
	sem    *semaphore.Weighted
	subs   *broadcaster

	// scans hold gate shared; Reset holds it exclusively while it clears
	// and reseeds the index
	gate sync.RWMutex

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

func New(idx index.Index, sources SourceFactory, opts Options) *Provider {
	if opts.DefaultInterval <= 0 {
		opts.DefaultInterval = DefaultScanInterval
	}
	if opts.MaxConcurrentScans <= 0 {
		opts.MaxConcurrentScans = DefaultMaxConcurrentScans
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Provider{
		idx:     idx,
		sources: sources,
		opts:    opts,
		logger:  opts.Logger.With("module", "provider"),
		metrics: opts.Metrics,
		tasks:   tasks.NewHandler(),
		timers:  xsync.NewMapOf[string, *time.Timer](),
		cache:   expirable.NewLRU[models.DocumentKey, *aas.Node](opts.CacheSize, nil, opts.CacheTTL),
		sem:     semaphore.NewWeighted(int64(opts.MaxConcurrentScans)),
		subs:    newBroadcaster(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start registers missing seed endpoints and schedules every endpoint
// whose policy runs on its own.
func (p *Provider) Start(ctx context.Context) error {
	if err := p.registerSeeds(ctx); err != nil {
		return err
	}
	endpoints, err := p.idx.Endpoints(ctx)
	if err != nil {
		return fmt.Errorf("list endpoints: %w", err)
	}
	p.metrics.SetEndpoints(len(endpoints))
	for _, e := range endpoints {
		p.scheduleInitial(e)
	}
	p.logger.Info(ctx, "provider started", "endpoints", len(endpoints))
	return nil
}

// Stop cancels pending and running scans, waits for them to return and
// closes all subscriptions.
func (p *Provider) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.cancel()
	p.stopTimers()
	p.wg.Wait()
	p.subs.close()
}

// Subscribe returns a channel of notifications and a func that ends the
// subscription. Slow subscribers miss messages rather than block scans.
func (p *Provider) Subscribe(buffer int) (<-chan Notification, func()) {
	return p.subs.subscribe(buffer)
}

func (p *Provider) notify(n Notification) {
	if dropped := p.subs.publish(n); dropped > 0 {
		p.logger.Debug(p.ctx, "notification dropped", "type", n.Type, "subscribers", dropped)
	}
}

func (p *Provider) registerSeeds(ctx context.Context) error {
	for _, seed := range p.opts.Seeds {
		ok, err := p.idx.HasEndpoint(ctx, seed.Name)
		if err != nil {
			return fmt.Errorf("seed %s: %w", seed.Name, err)
		}
		if ok {
			continue
		}
		if err := p.idx.AddEndpoint(ctx, seed.Clone()); err != nil && !errors.Is(err, common.ErrEndpointExists) {
			return fmt.Errorf("seed %s: %w", seed.Name, err)
		}
		p.logger.Info(ctx, "seed endpoint registered", "endpoint", seed.Name)
	}
	return nil
}

func (p *Provider) Endpoints(ctx context.Context) ([]*models.Endpoint, error) {
	return p.idx.Endpoints(ctx)
}

func (p *Provider) Endpoint(ctx context.Context, name string) (*models.Endpoint, error) {
	return p.idx.Endpoint(ctx, name)
}

// AddEndpoint registers e and schedules its first scan.
func (p *Provider) AddEndpoint(ctx context.Context, e *models.Endpoint) error {
	if err := e.Validate(); err != nil {
		return err
	}
	e = e.Clone()
	if err := p.idx.AddEndpoint(ctx, e); err != nil {
		return err
	}
	p.updateEndpointGauge(ctx)
	p.notify(Notification{Type: EndpointAdded, Endpoint: e.Name})
	p.logger.Info(ctx, "endpoint added", "endpoint", e.Name, "type", e.Type)
	p.scheduleInitial(e)
	return nil
}

// UpdateEndpoint replaces e by name. A changed schedule, location or type
// reschedules the endpoint from scratch.
func (p *Provider) UpdateEndpoint(ctx context.Context, e *models.Endpoint) error {
	if err := e.Validate(); err != nil {
		return err
	}
	e = e.Clone()
	prior, err := p.idx.UpdateEndpoint(ctx, e)
	if err != nil {
		return err
	}
	if prior.URL != e.URL || prior.Type != e.Type {
		p.evictEndpoint(e.Name)
	}
	if !prior.Schedule.Equal(e.Schedule) || prior.URL != e.URL || prior.Type != e.Type {
		p.unschedule(e.Name)
		p.scheduleInitial(e)
	}
	p.logger.Info(ctx, "endpoint updated", "endpoint", e.Name)
	return nil
}

// RemoveEndpoint deletes the endpoint with its documents. A scan running
// for it stops applying changes once it notices.
func (p *Provider) RemoveEndpoint(ctx context.Context, name string) error {
	p.unschedule(name)
	p.tasks.Delete(scanKey(name))
	p.tasks.Delete(tasks.Key{Owner: Owner, Endpoint: name, Type: tasks.ScanTemplates})

	removed, err := p.idx.RemoveEndpoint(ctx, name)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: %s", common.ErrEndpointNotFound, name)
	}
	p.evictEndpoint(name)
	p.metrics.Forget(name)
	p.updateEndpointGauge(ctx)
	p.notify(Notification{Type: EndpointRemoved, Endpoint: name})
	p.logger.Info(ctx, "endpoint removed", "endpoint", name)
	return nil
}

func (p *Provider) updateEndpointGauge(ctx context.Context) {
	if n, err := p.idx.EndpointCount(ctx); err == nil {
		p.metrics.SetEndpoints(n)
	}
}

func (p *Provider) Documents(ctx context.Context, cursor models.Cursor, expression, language string) (*models.Page, error) {
	return p.idx.Documents(ctx, cursor, expression, language)
}

// Document returns the document by id or asset id; an empty endpoint
// searches all endpoints.
func (p *Provider) Document(ctx context.Context, endpoint, id string) (*models.Document, error) {
	return p.idx.Get(ctx, endpoint, id)
}

// Content returns the environment of a document from the cache, the
// index or, as a last resort, the endpoint itself. Stored content is
// decoded only on a cache miss.
func (p *Provider) Content(ctx context.Context, endpoint, id string) (*aas.Node, error) {
	doc, err := p.idx.Get(ctx, endpoint, id)
	if err != nil {
		return nil, err
	}
	key := doc.Key()
	if env, ok := p.cache.Get(key); ok {
		p.metrics.CacheLookup(true)
		return env, nil
	}
	p.metrics.CacheLookup(false)

	env, ok, err := p.idx.Content(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		if env, err = p.fetchContent(ctx, doc); err != nil {
			return nil, err
		}
	}
	p.cache.Add(key, env)
	return env, nil
}

func (p *Provider) fetchContent(ctx context.Context, doc *models.Document) (*aas.Node, error) {
	e, err := p.idx.Endpoint(ctx, doc.Endpoint)
	if err != nil {
		return nil, err
	}
	src, err := p.sources.New(ctx, e)
	if err != nil {
		return nil, err
	}
	if err := src.Open(ctx); err != nil {
		return nil, fmt.Errorf("open %s: %w", e.Name, err)
	}
	defer src.Close(context.WithoutCancel(ctx))

	live, err := src.CreateDocument(ctx, models.Label{ID: doc.ID, IDShort: doc.IDShort})
	if err != nil {
		return nil, err
	}
	return live.Content, nil
}

// UpdateDocument replaces the content of a writable document.
func (p *Provider) UpdateDocument(ctx context.Context, doc *models.Document) error {
	current, err := p.idx.Get(ctx, doc.Endpoint, doc.ID)
	if err != nil {
		return err
	}
	if current.ReadOnly {
		return fmt.Errorf("%w: %s", common.ErrReadOnly, current.Key())
	}

	updated := *current
	updated.Content = doc.Content
	if doc.IDShort != "" {
		updated.IDShort = doc.IDShort
	}
	if doc.AssetID != "" {
		updated.AssetID = doc.AssetID
	}
	updated.CRC32 = aas.Checksum(doc.Content)
	updated.Timestamp = time.Now().UTC()
	if err := p.idx.Update(ctx, &updated); err != nil {
		return err
	}
	p.cache.Remove(updated.Key())
	p.notify(Notification{Type: Update, Endpoint: updated.Endpoint, Document: updated.WithoutContent()})
	return nil
}

// Reset drops every endpoint and document once the running scans have
// drained, then registers the seed endpoints again.
func (p *Provider) Reset(ctx context.Context) error {
	p.stopTimers()
	for _, t := range p.tasks.Tasks(Owner) {
		p.tasks.Delete(t.Key)
	}
	if err := p.tasks.WaitEmpty(ctx, Owner); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	p.gate.Lock()
	err := p.reset(ctx)
	p.gate.Unlock()
	if err != nil {
		return err
	}

	endpoints, err := p.idx.Endpoints(ctx)
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	for _, e := range endpoints {
		p.scheduleInitial(e)
	}
	p.metrics.SetEndpoints(len(endpoints))
	p.notify(Notification{Type: Reset})
	p.logger.Info(ctx, "index reset", "endpoints", len(endpoints))
	return nil
}

func (p *Provider) reset(ctx context.Context) error {
	if err := p.idx.Clear(ctx, ""); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	p.cache.Purge()
	return p.registerSeeds(ctx)
}

func (p *Provider) evictEndpoint(name string) {
	for _, k := range p.cache.Keys() {
		if k.Endpoint == name {
			p.cache.Remove(k)
		}
	}
}
