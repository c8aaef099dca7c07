package clock

import (
	"sync"
	"time"
)

type TimeSetterFn func(time.Time)

type mockService struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*mockTicker
}

func (m *mockService) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *mockService) NewTicker(_ time.Duration) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()

	ticker := &mockTicker{c: make(chan time.Time, 1)}
	m.tickers = append(m.tickers, ticker)
	return ticker
}

func NewMockServiceNow() (Service, TimeSetterFn) {
	return NewMockService(time.Now())
}

// NewMockService returns a clock whose time only moves via the setter.
// Advancing the time also fires every ticker handed out so far, which lets
// tests drive periodic tasks without sleeping.
func NewMockService(now time.Time) (Service, TimeSetterFn) {
	service := mockService{
		now: now,
	}
	return &service, func(t time.Time) {
		service.mu.Lock()
		service.now = t
		tickers := make([]*mockTicker, len(service.tickers))
		copy(tickers, service.tickers)
		service.mu.Unlock()

		for _, ticker := range tickers {
			ticker.fire(t)
		}
	}
}

type mockTicker struct {
	mu      sync.Mutex
	c       chan time.Time
	stopped bool
}

func (t *mockTicker) C() <-chan time.Time {
	return t.c
}

func (t *mockTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *mockTicker) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	select {
	case t.c <- now:
	default:
	}
}
