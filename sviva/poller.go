package sviva

import (
	"airquality-alert-bot/level"
	"context"
	"fmt"
	"github.com/pkg/errors"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
)

// Readings returns the latest reading of every given station. Cached readings
// are reused; the rest are fetched concurrently. A station that fails or
// reports nothing is skipped, but the call fails when every fetch fails.
func (c *Client) Readings(ctx context.Context, stations []Station) ([]Reading, error) {
	var readings []Reading
	var toFetch []Station
	for _, station := range stations {
		if r, ok := c.cache.Get(station.Id); ok {
			r.Station = station
			readings = append(readings, r)
			continue
		}
		toFetch = append(toFetch, station)
	}

	fetched, failed := c.fetchAll(ctx, toFetch)
	if len(toFetch) > 0 && failed == len(toFetch) {
		return nil, errors.Wrapf(ErrUnavailable, "all %v station requests failed", failed)
	}
	if failed > 0 {
		log.Printf("%v of %v station requests failed", failed, len(toFetch))
	}
	readings = append(readings, fetched...)
	sort.Slice(readings, func(i, j int) bool { return readings[i].Station.Id < readings[j].Station.Id })
	return readings, nil
}

func (c *Client) fetchAll(ctx context.Context, stations []Station) ([]Reading, int) {
	jobs := make(chan Station)
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		readings []Reading
		failed   int
	)
	workers := c.settings.Workers
	if workers > len(stations) {
		workers = len(stations)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for station := range jobs {
				r, ok, err := c.Latest(ctx, station)
				mu.Lock()
				if err != nil {
					log.Printf("unable to fetch station %v: %v", station.Id, err.Error())
					failed++
				} else if ok {
					readings = append(readings, r)
				}
				mu.Unlock()
			}
		}()
	}
	for _, station := range stations {
		jobs <- station
	}
	close(jobs)
	wg.Wait()
	return readings, failed
}

// Latest fetches the latest reading of a station. ok is false when the
// station reported no valid values.
func (c *Client) Latest(ctx context.Context, station Station) (Reading, bool, error) {
	var payload latestPayload
	err := c.get(ctx, fmt.Sprintf(latestPathFormat, station.Id), &payload)
	if err != nil {
		return Reading{}, false, err
	}
	if len(payload.Data) == 0 {
		return Reading{}, false, nil
	}
	data := payload.Data[0]
	r := Reading{
		Station:    station,
		Time:       parseTime(data.Datetime, c.now()),
		Pollutants: make(map[level.Pollutant]float64),
		Units:      make(map[level.Pollutant]string),
	}
	for _, channel := range data.Channels {
		if channel.Value == nil || !channel.Valid {
			continue
		}
		p := level.Pollutant(strings.ToUpper(strings.TrimSpace(channel.Name)))
		r.Pollutants[p] = *channel.Value
		r.Units[p] = channel.Units
	}
	if len(r.Pollutants) == 0 {
		return Reading{}, false, nil
	}
	c.cache.Set(r)
	return r, true, nil
}

func parseTime(text string, fallback time.Time) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05"} {
		t, err := time.Parse(layout, text)
		if err == nil {
			return t
		}
	}
	return fallback
}
