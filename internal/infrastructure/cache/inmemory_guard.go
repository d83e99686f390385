package cache

import (
	"context"
	"sync"
	"time"

	settlementapp "github.com/erp/settlement/internal/application/settlement"
	"github.com/google/uuid"
)

type holder struct {
	token     string
	expiresAt time.Time
}

// InMemoryGuard implements InFlightGuard with a map. It only protects a
// single process.
type InMemoryGuard struct {
	mu        sync.Mutex
	held      map[string]holder
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryGuard creates a guard and starts the sweeper for expired keys
func NewInMemoryGuard() *InMemoryGuard {
	g := &InMemoryGuard{
		held:     make(map[string]holder),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	g.wg.Add(1)
	go g.sweepLoop(time.Minute)
	return g
}

// Acquire returns false while an unexpired holder exists
func (g *InMemoryGuard) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if h, ok := g.held[key]; ok && now.Before(h.expiresAt) {
		return "", false, nil
	}
	token := uuid.NewString()
	g.held[key] = holder{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

// Release drops the key unless another acquisition has taken it over
func (g *InMemoryGuard) Release(_ context.Context, key, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if h, ok := g.held[key]; ok && h.token == token {
		delete(g.held, key)
	}
	return nil
}

// Size returns the number of keys currently tracked
func (g *InMemoryGuard) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.held)
}

// Close stops the sweeper. Safe to call more than once.
func (g *InMemoryGuard) Close() error {
	g.closeOnce.Do(func() {
		close(g.stopChan)
		g.wg.Wait()
	})
	return nil
}

func (g *InMemoryGuard) sweepLoop(every time.Duration) {
	defer g.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopChan:
			return
		case <-ticker.C:
			g.sweep()
		}
	}
}

func (g *InMemoryGuard) sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for key, h := range g.held {
		if !now.Before(h.expiresAt) {
			delete(g.held, key)
		}
	}
}

var _ settlementapp.InFlightGuard = (*InMemoryGuard)(nil)
