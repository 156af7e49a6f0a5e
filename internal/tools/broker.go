package tools

import (
	"context"
	"sync"
)

// Broker deduplicates cacheable tool calls within one execution: identical
// in-flight calls are coalesced and successful results are reused for
// identical arguments. Only tools that declare Cacheable() are affected, so
// the success/failure classification of a call never changes; the broker
// just avoids repeating read-only work.
type Broker struct {
	registry *Registry

	mu       sync.Mutex
	cache    map[string]Result
	inflight map[string]*inflightCall
}

type inflightCall struct {
	done   chan struct{}
	result Result
}

func NewBroker(registry *Registry) *Broker {
	return &Broker{
		registry: registry,
		cache:    map[string]Result{},
		inflight: map[string]*inflightCall{},
	}
}

// Resolve behaves like Registry.Resolve, reusing results for cacheable
// tools. cacheHit reports whether the result came from cache or a coalesced
// in-flight call.
func (b *Broker) Resolve(ctx context.Context, name, argumentsBlob string) (res Result, cacheHit bool) {
	if b == nil {
		return Result{Err: "broker is nil"}, false
	}
	if !b.cacheable(name) {
		return b.registry.Resolve(ctx, name, argumentsBlob), false
	}
	key := name + "\x00" + argumentsBlob

	b.mu.Lock()
	if cached, ok := b.cache[key]; ok {
		b.mu.Unlock()
		return cached, true
	}
	if inf, ok := b.inflight[key]; ok {
		b.mu.Unlock()
		select {
		case <-inf.done:
			return inf.result, true
		case <-ctx.Done():
			return Result{Err: ctx.Err().Error()}, false
		}
	}
	inf := &inflightCall{done: make(chan struct{})}
	b.inflight[key] = inf
	b.mu.Unlock()

	res = b.registry.Resolve(ctx, name, argumentsBlob)

	b.mu.Lock()
	delete(b.inflight, key)
	inf.result = res
	if !res.Failed() {
		b.cache[key] = res
	}
	close(inf.done)
	b.mu.Unlock()
	return res, false
}

func (b *Broker) cacheable(name string) bool {
	t, ok := b.registry.tools[name]
	if !ok {
		return false
	}
	c, ok := t.(Cacheable)
	return ok && c.Cacheable()
}
