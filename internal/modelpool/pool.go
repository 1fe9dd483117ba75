package modelpool

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/book-expert/logger"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Loader constructs the model for name.
type Loader[M io.Closer] func(ctx context.Context, name string) (M, error)

// Pool hands out leased lanes. With a cache size of zero every lease loads a
// fresh model that is closed when the lease is released.
type Pool[M io.Closer] struct {
	mu    sync.Mutex
	loads singleflight.Group
	load  Loader[M]
	cache *lru.Cache[string, *Lane[M]]
	exec  *Executor
	log   *logger.Logger
}

// New creates a Pool caching up to size models.
func New[M io.Closer](load Loader[M], size int, exec *Executor, log *logger.Logger) (*Pool[M], error) {
	pool := &Pool[M]{load: load, exec: exec, log: log}

	if size > 0 {
		cache, err := lru.NewWithEvict(size, pool.onEvict)
		if err != nil {
			return nil, fmt.Errorf("failed to create model cache: %w", err)
		}

		pool.cache = cache
	}

	return pool, nil
}

func (p *Pool[M]) onEvict(name string, lane *Lane[M]) {
	p.log.Info("Retiring cached model %q", name)

	err := lane.retire()
	if err != nil {
		p.log.Warn("%v", err)
	}
}

// Lease returns the lane for name, loading the model if needed. The caller
// must invoke release exactly once.
func (p *Pool[M]) Lease(ctx context.Context, name string) (*Lane[M], func() error, error) {
	if p.cache == nil {
		return p.leaseFresh(ctx, name)
	}

	for {
		lane, ok := p.leaseCached(name)
		if ok {
			return lane, p.releaser(lane), nil
		}

		ctxErr := ctx.Err()
		if ctxErr != nil {
			return nil, nil, fmt.Errorf("waiting for model %q: %w", name, ctxErr)
		}

		// Concurrent leases of one name share a single load; other names are
		// not held up by it.
		_, err, _ := p.loads.Do(name, func() (any, error) {
			return nil, p.loadIntoCache(ctx, name)
		})
		if err != nil {
			return nil, nil, err
		}
	}
}

// leaseCached acquires the cached lane for name. Holding mu keeps Invalidate
// and Purge from retiring the lane between the lookup and the acquire.
func (p *Pool[M]) leaseCached(name string) (*Lane[M], bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	lane, ok := p.cache.Get(name)
	if !ok || !lane.tryAcquire() {
		return nil, false
	}

	return lane, true
}

func (p *Pool[M]) loadIntoCache(ctx context.Context, name string) error {
	p.mu.Lock()
	cached := p.cache.Contains(name)
	p.mu.Unlock()

	if cached {
		return nil
	}

	model, err := p.load(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to load model %q: %w", name, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cache.Contains(name) {
		closeErr := model.Close()
		if closeErr != nil {
			p.log.Warn("Failed to close duplicate model %q: %v", name, closeErr)
		}

		return nil
	}

	p.cache.Add(name, newLane(name, model, p.exec))
	p.log.Info("Loaded model %q", name)

	return nil
}

func (p *Pool[M]) leaseFresh(ctx context.Context, name string) (*Lane[M], func() error, error) {
	model, err := p.load(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load model %q: %w", name, err)
	}

	lane := newLane(name, model, p.exec)
	lane.acquire()
	lane.retired = true

	p.log.Info("Loaded model %q", name)

	return lane, p.releaser(lane), nil
}

func (p *Pool[M]) releaser(lane *Lane[M]) func() error {
	var once sync.Once

	return func() error {
		var err error

		once.Do(func() { err = lane.release() })

		return err
	}
}

// Invalidate drops name from the cache; it is closed once no lease holds it.
func (p *Pool[M]) Invalidate(name string) bool {
	if p.cache == nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.cache.Remove(name)
}

// Purge drops every cached model.
func (p *Pool[M]) Purge() {
	if p.cache == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.cache.Purge()
}

// Cached returns the names of cached models, oldest first.
func (p *Pool[M]) Cached() []string {
	if p.cache == nil {
		return nil
	}

	return p.cache.Keys()
}
