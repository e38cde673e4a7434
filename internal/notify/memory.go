package notify

import (
	"context"
	"sync"

	"github.com/dropDatabas3/sysgate/internal/access"
)

// Memory es un Notifier en proceso, sin transporte. Entrega sincrónica.
// Se usa en tests y cuando no hay Redis configurado (proceso único).
type Memory struct {
	mu   sync.Mutex
	next int
	subs map[int]Handler
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[int]Handler)}
}

func (m *Memory) Subscribe(h Handler) Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next
	m.next++
	m.subs[id] = h
	return &memorySub{m: m, id: id}
}

func (m *Memory) Publish(_ context.Context, s access.State) error {
	m.mu.Lock()
	hs := make([]Handler, 0, len(m.subs))
	for _, h := range m.subs {
		hs = append(hs, h)
	}
	m.mu.Unlock()

	// Fuera del lock: un handler puede desuscribirse a sí mismo.
	for _, h := range hs {
		h(s)
	}
	return nil
}

func (m *Memory) Close() error { return nil }

type memorySub struct {
	m    *Memory
	id   int
	once sync.Once
}

func (s *memorySub) Unsubscribe() {
	s.once.Do(func() {
		s.m.mu.Lock()
		delete(s.m.subs, s.id)
		s.m.mu.Unlock()
	})
}
