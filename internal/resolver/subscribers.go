package resolver

import (
	"context"
	"errors"
	"sync"

	"github.com/dvloznov/finance-assistant/internal/logger"
)

// DefaultMaxSubscribers bounds duplicate-event fan-out.
const DefaultMaxSubscribers = 16

// ErrTooManySubscribers is returned when the subscriber cap is reached.
var ErrTooManySubscribers = errors.New("too many duplicate subscribers")

// Subscribers is a capped observer list for new pending duplicates.
type Subscribers struct {
	mu       sync.RWMutex
	max      int
	nextID   int
	handlers map[int]Handler
	order    []int
}

// NewSubscribers creates a list that accepts at most max handlers. A
// non-positive max uses DefaultMaxSubscribers.
func NewSubscribers(max int) *Subscribers {
	if max <= 0 {
		max = DefaultMaxSubscribers
	}
	return &Subscribers{
		max:      max,
		handlers: make(map[int]Handler),
	}
}

// Subscribe registers h. The returned func removes it and is safe to call
// more than once.
func (s *Subscribers) Subscribe(h Handler) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.handlers) >= s.max {
		return nil, ErrTooManySubscribers
	}

	id := s.nextID
	s.nextID++
	s.handlers[id] = h
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}, nil
}

func (s *Subscribers) remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.handlers, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Len reports the number of registered handlers.
func (s *Subscribers) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}

// Notify calls every handler once with entry, in registration order.
// Handler errors and panics are logged and never returned.
func (s *Subscribers) Notify(ctx context.Context, entry Entry) {
	s.mu.RLock()
	handlers := make([]Handler, 0, len(s.order))
	for _, id := range s.order {
		handlers = append(handlers, s.handlers[id])
	}
	s.mu.RUnlock()

	for _, h := range handlers {
		s.call(ctx, h, entry)
	}
}

func (s *Subscribers) call(ctx context.Context, h Handler, entry Entry) {
	log := logger.FromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("pending_id", entry.PendingID).Msg("Duplicate handler panicked")
		}
	}()

	if err := h(ctx, entry); err != nil {
		log.Warn().Err(err).Str("pending_id", entry.PendingID).Msg("Duplicate handler failed")
	}
}
