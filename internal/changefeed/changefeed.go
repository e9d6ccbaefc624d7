// Package changefeed announces committed writes so that read-side
// projections can recompute.
package changefeed

import (
	"context"
	"sync"
	"time"
)

type Kind string

const (
	KindCreated Kind = "created"
	KindUpdated Kind = "updated"
	KindDeleted Kind = "deleted"
)

// Change names the store path that moved, e.g. "sales/{id}" or
// "vendors/{vendor}/products/{product}".
type Change struct {
	Path string    `json:"path"`
	Kind Kind      `json:"kind"`
	At   time.Time `json:"at"`
}

type Feed interface {
	Publish(ctx context.Context, changes ...Change) error
	// Subscribe returns a channel of changes and a cancel func that closes it.
	Subscribe(buffer int) (<-chan Change, func())
	Close() error
}

// Local fans changes out to in-process subscribers. A subscriber that is
// not keeping up loses changes rather than blocking the writer.
type Local struct {
	mu     sync.Mutex
	subs   map[int]chan Change
	nextID int
	closed bool
}

func NewLocal() *Local {
	return &Local{subs: make(map[int]chan Change)}
}

func (l *Local) Publish(_ context.Context, changes ...Change) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dispatchLocked(changes)
	return nil
}

func (l *Local) dispatchLocked(changes []Change) {
	if l.closed {
		return
	}
	for _, ch := range l.subs {
		for _, c := range changes {
			select {
			case ch <- c:
			default:
			}
		}
	}
}

func (l *Local) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Change, buffer)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		close(ch)
		return ch, func() {}
	}
	id := l.nextID
	l.nextID++
	l.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if sub, ok := l.subs[id]; ok {
				delete(l.subs, id)
				close(sub)
			}
		})
	}
}

func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	for id, ch := range l.subs {
		delete(l.subs, id)
		close(ch)
	}
	return nil
}
