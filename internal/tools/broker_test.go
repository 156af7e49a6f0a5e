package tools

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type slowCacheableTool struct {
	calls int64
	delay time.Duration
}

func (t *slowCacheableTool) Name() string               { return "slow_lookup" }
func (t *slowCacheableTool) Description() string        { return "slow cacheable lookup" }
func (t *slowCacheableTool) Parameters() map[string]any { return objectSchema(map[string]any{}) }
func (t *slowCacheableTool) Cacheable() bool            { return true }
func (t *slowCacheableTool) Execute(_ context.Context, args map[string]any) Result {
	atomic.AddInt64(&t.calls, 1)
	if t.delay > 0 {
		time.Sleep(t.delay)
	}
	if stringArg(args, "mode") == "fail" {
		return errResult("lookup failed")
	}
	return Result{Output: "value"}
}

func TestBrokerCachesSuccessfulResults(t *testing.T) {
	tool := &slowCacheableTool{}
	broker := NewBroker(NewRegistry(tool))

	res, hit := broker.Resolve(context.Background(), "slow_lookup", `{"k":"a"}`)
	if hit || res.Failed() {
		t.Fatalf("first call: hit=%v res=%+v", hit, res)
	}
	res, hit = broker.Resolve(context.Background(), "slow_lookup", `{"k":"a"}`)
	if !hit || res.Output != "value" {
		t.Fatalf("second call: hit=%v res=%+v", hit, res)
	}
	if n := atomic.LoadInt64(&tool.calls); n != 1 {
		t.Fatalf("expected 1 execution, got %d", n)
	}
}

func TestBrokerDoesNotCacheFailures(t *testing.T) {
	tool := &slowCacheableTool{}
	broker := NewBroker(NewRegistry(tool))

	broker.Resolve(context.Background(), "slow_lookup", `{"mode":"fail"}`)
	_, hit := broker.Resolve(context.Background(), "slow_lookup", `{"mode":"fail"}`)
	if hit {
		t.Fatal("failed results must not be served from cache")
	}
	if n := atomic.LoadInt64(&tool.calls); n != 2 {
		t.Fatalf("expected 2 executions, got %d", n)
	}
}

func TestBrokerCoalescesInFlightCalls(t *testing.T) {
	tool := &slowCacheableTool{delay: 50 * time.Millisecond}
	broker := NewBroker(NewRegistry(tool))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _ := broker.Resolve(context.Background(), "slow_lookup", `{"k":"same"}`)
			if res.Output != "value" {
				t.Errorf("unexpected result %+v", res)
			}
		}()
	}
	wg.Wait()
	if n := atomic.LoadInt64(&tool.calls); n != 1 {
		t.Fatalf("expected a single coalesced execution, got %d", n)
	}
}

func TestBrokerBypassesCacheForNonCacheableTools(t *testing.T) {
	ct := &countingTool{}
	broker := NewBroker(NewRegistry(ct))

	broker.Resolve(context.Background(), "counting", "{}")
	_, hit := broker.Resolve(context.Background(), "counting", "{}")
	if hit {
		t.Fatal("non-cacheable tool must bypass the cache")
	}
	if ct.calls != 2 {
		t.Fatalf("expected 2 executions, got %d", ct.calls)
	}
}
