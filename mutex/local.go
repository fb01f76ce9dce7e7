package mutex

import (
	"fmt"
	"github.com/pkg/errors"
	"sync"
)

var ErrTaken = errors.New("lock is already taken")

// Local provides the same locks as Builder within a single process.
type Local struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocal() *Local {
	return &Local{locks: make(map[string]*sync.Mutex)}
}

type localMutex struct {
	m       *sync.Mutex
	tryOnce bool
}

func (l localMutex) Lock() error {
	if !l.tryOnce {
		l.m.Lock()
		return nil
	}
	if !l.m.TryLock() {
		return ErrTaken
	}
	return nil
}

func (l localMutex) Unlock() (bool, error) {
	l.m.Unlock()
	return true, nil
}

func (c *Local) get(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.locks[key]
	if !ok {
		m = &sync.Mutex{}
		c.locks[key] = m
	}
	return m
}

func (c *Local) AlertPair(subscriberID string, stationID int) Mutex {
	return localMutex{m: c.get(fmt.Sprintf(pairKeyPattern, subscriberID, stationID))}
}

func (c *Local) PollCycle() Mutex {
	return localMutex{m: c.get(pollKey), tryOnce: true}
}
