package app

import (
	"context"
	"sync"
)

// DynamicLimiter borne les soumissions simultanées aux backends de
// téléchargement (maxConcurrentDownloads). Le plafond se règle à chaud.
type DynamicLimiter struct {
	mu       sync.Mutex
	limit    int
	inFlight int
	// wake est fermé puis remplacé à chaque libération de place.
	wake chan struct{}
}

func NewDynamicLimiter(limit int) *DynamicLimiter {
	return &DynamicLimiter{limit: max(limit, 1), wake: make(chan struct{})}
}

func (l *DynamicLimiter) Limit() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit
}

func (l *DynamicLimiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight
}

// SetLimit ne retire pas de place aux détenteurs actuels : une baisse
// s'applique au fil des Release.
func (l *DynamicLimiter) SetLimit(limit int) {
	limit = max(limit, 1)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.limit != limit {
		l.limit = limit
		l.broadcastLocked()
	}
}

// TryAcquire prend une place sans attendre.
func (l *DynamicLimiter) TryAcquire() bool {
	ok, _ := l.tryAcquire()
	return ok
}

func (l *DynamicLimiter) Acquire(ctx context.Context) error {
	for {
		ok, wake := l.tryAcquire()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		}
	}
}

func (l *DynamicLimiter) tryAcquire() (bool, <-chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight < l.limit {
		l.inFlight++
		return true, nil
	}
	return false, l.wake
}

func (l *DynamicLimiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight > 0 {
		l.inFlight--
	}
	l.broadcastLocked()
}

func (l *DynamicLimiter) broadcastLocked() {
	close(l.wake)
	l.wake = make(chan struct{})
}
