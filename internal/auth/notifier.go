package auth

import "sync"

type notifier struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(SessionChange)
}

func newNotifier() *notifier {
	return &notifier{subs: map[int]func(SessionChange){}}
}

func (n *notifier) subscribe(fn func(SessionChange)) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

func (n *notifier) publish(change SessionChange) {
	n.mu.RLock()
	fns := make([]func(SessionChange), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn(change)
	}
}
