package sviva

import (
	"encoding/json"
	"fmt"
	"github.com/go-redis/redis"
	"log"
	"time"
)

const (
	readingKeyPattern = "reading:%v"
	DefaultReadingTTL = time.Minute * 10
)

// Cache keeps recent readings so that overlapping invocations do not hit the
// API twice.
type Cache interface {
	Get(stationID int) (Reading, bool)
	Set(r Reading)
}

type noCache struct{}

func (noCache) Get(int) (Reading, bool) { return Reading{}, false }
func (noCache) Set(Reading)             {}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl == 0 {
		ttl = DefaultReadingTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(stationID int) (Reading, bool) {
	data, err := c.client.Get(fmt.Sprintf(readingKeyPattern, stationID)).Bytes()
	if err == redis.Nil {
		return Reading{}, false
	}
	if err != nil {
		log.Printf("unable to read cached reading of station %v: %v", stationID, err.Error())
		return Reading{}, false
	}
	var r Reading
	err = json.Unmarshal(data, &r)
	if err != nil {
		log.Printf("unable to decode cached reading of station %v: %v", stationID, err.Error())
		return Reading{}, false
	}
	return r, true
}

func (c *RedisCache) Set(r Reading) {
	data, err := json.Marshal(r)
	if err != nil {
		log.Printf("unable to encode reading of station %v: %v", r.Station.Id, err.Error())
		return
	}
	err = c.client.Set(fmt.Sprintf(readingKeyPattern, r.Station.Id), data, c.ttl).Err()
	if err != nil {
		log.Printf("unable to cache reading of station %v: %v", r.Station.Id, err.Error())
	}
}
