package provider

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/dmitrijs2005/aasindex/internal/common"
	"github.com/dmitrijs2005/aasindex/internal/metrics"
	"github.com/dmitrijs2005/aasindex/internal/models"
	"github.com/dmitrijs2005/aasindex/internal/scan"
	"github.com/dmitrijs2005/aasindex/internal/tasks"
)

// errEndpointGone stops a scan whose endpoint was removed under it.
var errEndpointGone = errors.New("endpoint removed during scan")

// ScanStats summarizes one scan.
type ScanStats struct {
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

func scanKey(name string) tasks.Key {
	return tasks.Key{Owner: Owner, Endpoint: name, Type: tasks.ScanEndpoint}
}

// StartEndpointScan starts a scan of a manual endpoint in the background.
// It fails when the endpoint is not manual or already being scanned.
func (p *Provider) StartEndpointScan(ctx context.Context, name string) error {
	e, err := p.idx.Endpoint(ctx, name)
	if err != nil {
		return err
	}
	if e.ScheduleType() != models.ScheduleManual {
		return fmt.Errorf("%w: %s", common.ErrManualScanNotAllowed, name)
	}
	p.tasks.Add(Owner, name, tasks.ScanEndpoint)
	task, err := p.tasks.Start(scanKey(name))
	if err != nil {
		return err
	}
	started := p.spawn(func() {
		if _, err := p.run(p.ctx, e, task); err != nil {
			p.logger.Error(p.ctx, "manual scan failed", "endpoint", name, "error", err)
		}
	})
	if !started {
		p.tasks.Finish(task, context.Canceled)
		return context.Canceled
	}
	return nil
}

// ScanEndpoint scans the endpoint synchronously, whatever its schedule.
func (p *Provider) ScanEndpoint(ctx context.Context, name string) (ScanStats, error) {
	e, err := p.idx.Endpoint(ctx, name)
	if err != nil {
		return ScanStats{}, err
	}
	p.tasks.Add(Owner, name, tasks.ScanEndpoint)
	task, err := p.tasks.Start(scanKey(name))
	if err != nil {
		return ScanStats{}, err
	}
	return p.run(ctx, e, task)
}

func (p *Provider) run(ctx context.Context, e *models.Endpoint, task *tasks.Task) (ScanStats, error) {
	p.gate.RLock()
	stats, err := p.scan(ctx, e)
	p.gate.RUnlock()
	p.tasks.Finish(task, err)
	return stats, err
}

// spawn runs fn on a tracked goroutine unless the provider is stopped.
func (p *Provider) spawn(fn func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		fn()
	}()
	return true
}

func (p *Provider) scheduleInitial(e *models.Endpoint) {
	switch e.ScheduleType() {
	case models.ScheduleEvery, models.ScheduleOnce:
		p.tasks.Add(Owner, e.Name, tasks.ScanEndpoint)
		p.schedule(e.Name, 0)
	case models.ScheduleManual:
		p.tasks.Add(Owner, e.Name, tasks.ScanEndpoint)
	}
	if e.Schedule != nil && len(e.Schedule.Values) > 1 {
		p.logger.Debug(p.ctx, "extra schedule values ignored", "endpoint", e.Name, "values", len(e.Schedule.Values))
	}
}

func (p *Provider) schedule(name string, delay time.Duration) {
	t := time.AfterFunc(delay, func() {
		p.spawn(func() { p.runScheduled(name) })
	})
	if old, loaded := p.timers.LoadAndStore(name, t); loaded {
		old.Stop()
	}
}

func (p *Provider) unschedule(name string) {
	if t, ok := p.timers.LoadAndDelete(name); ok {
		t.Stop()
	}
}

func (p *Provider) stopTimers() {
	p.timers.Range(func(name string, _ *time.Timer) bool {
		p.unschedule(name)
		return true
	})
}

func (p *Provider) runScheduled(name string) {
	ctx := p.ctx
	if ctx.Err() != nil {
		return
	}
	key := scanKey(name)
	if !p.tasks.Has(key) {
		// removed or reset since the timer was armed
		return
	}
	e, ok, err := p.idx.FindEndpoint(ctx, name)
	if err != nil {
		p.logger.Error(ctx, "scheduled scan", "endpoint", name, "error", err)
		p.schedule(name, p.opts.DefaultInterval)
		return
	}
	if !ok {
		p.tasks.Delete(key)
		return
	}
	if !runsOnItsOwn(e) {
		// made manual or disabled since the timer was armed
		return
	}

	task, err := p.tasks.Start(key)
	switch {
	case errors.Is(err, common.ErrScanInProgress):
		p.logger.Debug(ctx, "scan already running", "endpoint", name)
		now := time.Now()
		if delay, repeat := tasks.NextDelay(e.Schedule, now, now, p.opts.DefaultInterval); repeat {
			p.schedule(name, delay)
		}
		return
	case err != nil:
		return
	}

	stats, err := p.run(ctx, e, task)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Error(ctx, "scan failed", "endpoint", name, "error", err)
	} else {
		p.logger.Info(ctx, "scan finished", "endpoint", name,
			"added", stats.Added, "removed", stats.Removed, "updated", stats.Updated, "failed", stats.Failed)
	}
	p.scheduleNext(ctx, e, task)
}

func runsOnItsOwn(e *models.Endpoint) bool {
	switch e.ScheduleType() {
	case models.ScheduleEvery, models.ScheduleOnce:
		return true
	}
	return false
}

// scheduleNext arms the next run of a finished scheduled scan unless the
// endpoint was removed, reset or rescheduled while it ran.
func (p *Provider) scheduleNext(ctx context.Context, e *models.Endpoint, task *tasks.Task) {
	if current, ok := p.tasks.Get(task.Key); !ok || current != task {
		return
	}
	latest, ok, err := p.idx.FindEndpoint(ctx, e.Name)
	if err != nil || !ok {
		return
	}
	if !runsOnItsOwn(latest) || !latest.Schedule.Equal(e.Schedule) {
		return
	}
	start, end := task.Times()
	delay, repeat := tasks.NextDelay(latest.Schedule, start, end, p.opts.DefaultInterval)
	if !repeat {
		return
	}
	if n := task.Failures(); n > 0 {
		delay = tasks.FailureDelay(n, delay)
	}
	p.schedule(e.Name, delay)
}

// scan reconciles one endpoint against the index and applies the events.
func (p *Provider) scan(ctx context.Context, e *models.Endpoint) (stats ScanStats, err error) {
	done := p.metrics.ScanStarted(e.Name)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error(ctx, "scan panicked", "endpoint", e.Name, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("scan %s: panic: %v", e.Name, r)
		}
		switch {
		case err == nil:
			done(metrics.ResultSuccess)
		case ctx.Err() != nil:
			done(metrics.ResultCanceled)
		default:
			done(metrics.ResultFailure)
		}
	}()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return stats, err
	}
	defer p.sem.Release(1)

	src, err := p.sources.New(ctx, e)
	if err != nil {
		return stats, fmt.Errorf("scan %s: %w", e.Name, err)
	}

	for ev, err := range scan.Reconcile(ctx, e.Name, p.idx, src, scan.Options{PageSize: p.opts.PageSize}) {
		if err != nil {
			return stats, fmt.Errorf("scan %s: %w", e.Name, err)
		}
		if err := p.apply(ctx, e.Name, ev, &stats); err != nil {
			if errors.Is(err, errEndpointGone) {
				p.logger.Info(ctx, "endpoint removed, scan stopped", "endpoint", e.Name)
				return stats, nil
			}
			stats.Failed++
			p.logger.Warn(ctx, "apply scan event", "endpoint", e.Name, "kind", ev.Kind, "error", err)
		}
	}
	return stats, nil
}

// apply writes one event to the index. Events of an endpoint removed
// mid-scan are rejected with errEndpointGone.
func (p *Provider) apply(ctx context.Context, endpoint string, ev scan.Event, stats *ScanStats) error {
	if ev.Kind == scan.EventError {
		stats.Failed++
		p.metrics.Event(endpoint, ev.Kind.String())
		p.logger.Warn(ctx, "document skipped", "endpoint", endpoint, "item", ev.Item, "error", ev.Err)
		return nil
	}

	ok, err := p.idx.HasEndpoint(ctx, endpoint)
	if err != nil {
		return err
	}
	if !ok {
		return errEndpointGone
	}

	switch ev.Kind {
	case scan.EventAdd:
		if err := p.idx.Add(ctx, ev.Document); err != nil {
			if errors.Is(err, common.ErrEndpointNotFound) {
				return errEndpointGone
			}
			return err
		}
		stats.Added++
		p.notify(Notification{Type: Added, Endpoint: endpoint, Document: ev.Document.WithoutContent()})

	case scan.EventRemove:
		if _, err := p.idx.Remove(ctx, endpoint, ev.Reference.ID); err != nil {
			return err
		}
		stats.Removed++
		p.cache.Remove(ev.Reference.Key())
		p.notify(Notification{Type: Removed, Endpoint: endpoint, Document: ev.Reference.WithoutContent()})

	case scan.EventCompare:
		if ev.Reference.CRC32 == ev.Document.CRC32 {
			stats.Unchanged++
			break
		}
		if err := p.idx.Update(ctx, ev.Document); err != nil {
			return err
		}
		stats.Updated++
		p.cache.Remove(ev.Document.Key())
		p.notify(Notification{Type: Update, Endpoint: endpoint, Document: ev.Document.WithoutContent()})
	}
	p.metrics.Event(endpoint, ev.Kind.String())
	return nil
}
