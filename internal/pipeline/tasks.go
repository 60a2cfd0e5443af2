package pipeline

import (
	"sync"

	"github.com/rs/zerolog"
)

// taskGroup runs isolated background tasks. A failing or panicking task is
// logged and never affects its siblings; callers need not join.
type taskGroup struct {
	wg  sync.WaitGroup
	log zerolog.Logger
}

func (g *taskGroup) Go(name string, fn func() error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				g.log.Error().Str("task", name).Interface("panic", r).Msg("Task panicked")
			}
		}()
		if err := fn(); err != nil {
			g.log.Error().Err(err).Str("task", name).Msg("Task failed")
		}
	}()
}

func (g *taskGroup) Wait() {
	g.wg.Wait()
}

// seenSet remembers the last n keys added to it.
type seenSet struct {
	mu    sync.Mutex
	ring  []string
	next  int
	items map[string]struct{}
}

func newSeenSet(n int) *seenSet {
	if n <= 0 {
		n = 1024
	}
	return &seenSet{ring: make([]string, n), items: make(map[string]struct{}, n)}
}

// Add records key and reports whether it was not already present.
func (s *seenSet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; ok {
		return false
	}
	if old := s.ring[s.next]; old != "" {
		delete(s.items, old)
	}
	s.ring[s.next] = key
	s.items[key] = struct{}{}
	s.next = (s.next + 1) % len(s.ring)
	return true
}

// Remove forgets key so a later Add of it succeeds again.
func (s *seenSet) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; !ok {
		return
	}
	delete(s.items, key)
	for i, k := range s.ring {
		if k == key {
			s.ring[i] = ""
			return
		}
	}
}
