package service

import (
	"sync"
	"time"
)

// topicLocks serializes ingestion per topic while letting distinct topics
// proceed in parallel. Acquisition waits up to a bounded timeout and then
// fails rather than skipping or reordering writes.
type topicLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newTopicLocks() *topicLocks {
	return &topicLocks{slots: make(map[string]chan struct{})}
}

func (l *topicLocks) slot(topicID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[topicID]
	if !ok {
		s = make(chan struct{}, 1)
		l.slots[topicID] = s
	}
	return s
}

// acquire blocks until the topic's slot is free or the timeout expires.
// On success the returned release function must be called exactly once.
func (l *topicLocks) acquire(topicID string, timeout time.Duration) (func(), error) {
	s := l.slot(topicID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	case <-timer.C:
		return nil, ErrTopicBusy
	}
}
