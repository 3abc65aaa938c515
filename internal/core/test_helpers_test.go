package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"probikes/internal/infra/persistence/memory"
	"probikes/internal/logging"
	"probikes/pkg/domain"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() func() time.Time { return func() time.Time { return fixedNow } }

func newTestStore() *memory.Store {
	return memory.NewStore(NewDefaultRulesEngine(),
		memory.WithClock(fixedClock()),
		memory.WithRandom(func() float64 { return 0.25 }))
}

func newTestService(t *testing.T, opts ...Option) (*Service, *memory.Store) {
	t.Helper()
	store := newTestStore()
	opts = append([]Option{WithClock(ClockFunc(fixedClock()))}, opts...)
	return NewService(store, opts...), store
}

func mustClient(t *testing.T, svc *Service, name, phone string) domain.Client {
	t.Helper()
	c, _, err := svc.CreateClient(context.Background(), domain.Client{Name: name, Phone: phone})
	if err != nil {
		t.Fatalf("create client %s: %v", name, err)
	}
	return c
}

func mustBike(t *testing.T, svc *Service, clientID int64, model string) domain.Bike {
	t.Helper()
	b, _, err := svc.CreateBike(context.Background(), domain.Bike{ClientID: clientID, Brand: "Trek", Model: model, Transmission: "1x12"})
	if err != nil {
		t.Fatalf("create bike %s: %v", model, err)
	}
	return b
}

func intPtr(v int) *int { return &v }

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	hits int
	sets int
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string][]byte)} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type captureLogger struct{ calls []string }

func (c *captureLogger) Debug(msg string, _ ...any) { c.calls = append(c.calls, "d:"+msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.calls = append(c.calls, "i:"+msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.calls = append(c.calls, "w:"+msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.calls = append(c.calls, "e:"+msg) }
func (c *captureLogger) With(...any) logging.Logger { return c }
