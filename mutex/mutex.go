package mutex

import (
	"fmt"
	"github.com/go-redis/redis"
	"github.com/pkg/errors"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis"
	"time"
)

const (
	pairLockExpiration = time.Minute
	pollLockExpiration = time.Minute * 9
	pairKeyPattern     = "alert:%v:station:%v"
	pollKey            = "poll-cycle"
)

// Mutex is satisfied by *redsync.Mutex.
type Mutex interface {
	Lock() error
	Unlock() (bool, error)
}

// IsTaken reports whether err means the lock is held by someone else, as
// opposed to the lock backend failing.
func IsTaken(err error) bool {
	return errors.Is(err, redsync.ErrFailed) || errors.Is(err, ErrTaken)
}

type Builder struct {
	rs *redsync.Redsync
}

func NewBuilder(client *redis.Client) *Builder {
	pool := goredis.NewPool(client)
	rs := redsync.New(pool)
	return &Builder{rs: rs}
}

// AlertPair guards the cooldown check, the send and the alert record update
// for one subscriber and station.
func (c *Builder) AlertPair(subscriberID string, stationID int) Mutex {
	key := fmt.Sprintf(pairKeyPattern, subscriberID, stationID)
	return c.rs.NewMutex(key, redsync.WithExpiry(pairLockExpiration))
}

// PollCycle is taken once per cycle. Locking fails immediately when another
// cycle is running.
func (c *Builder) PollCycle() Mutex {
	return c.rs.NewMutex(pollKey, redsync.WithExpiry(pollLockExpiration), redsync.WithTries(1))
}
