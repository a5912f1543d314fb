package usecase

import "sync"

// broadcaster fans values out to subscribers. A slow subscriber misses values
// rather than blocking the sender.
type broadcaster[T any] struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan T
}

func newBroadcaster[T any]() *broadcaster[T] {
	return &broadcaster[T]{subs: make(map[int]chan T)}
}

func (b *broadcaster[T]) subscribe(buf int) (<-chan T, func()) {
	if buf <= 0 {
		buf = 1
	}
	ch := make(chan T, buf)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *broadcaster[T]) publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- v:
		default:
		}
	}
}
