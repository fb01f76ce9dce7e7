package sviva

import (
	"airquality-alert-bot/level"
	"airquality-alert-bot/subscription"
	"fmt"
	"time"
)

type Station struct {
	Id     int
	Name   string
	City   string
	Region subscription.Region
}

func (s Station) DisplayName() string {
	if s.City == "" {
		return s.Name
	}
	return fmt.Sprintf("%v, %v", s.Name, s.City)
}

// Reading is the latest set of valid pollutant values reported by a station.
type Reading struct {
	Station    Station
	Time       time.Time
	Pollutants map[level.Pollutant]float64
	Units      map[level.Pollutant]string
}

// Value returns the reported value of p. Missing pollutants are not evaluated.
func (r Reading) Value(p level.Pollutant) (float64, bool) {
	v, ok := r.Pollutants[p]
	return v, ok
}

type stationPayload struct {
	StationId int     `json:"stationId"`
	Name      string  `json:"name"`
	City      *string `json:"city"`
	RegionId  int     `json:"regionId"`
	Active    bool    `json:"active"`
}

type latestPayload struct {
	Data []struct {
		Datetime string           `json:"datetime"`
		Channels []channelPayload `json:"channels"`
	} `json:"data"`
}

type channelPayload struct {
	Name  string   `json:"name"`
	Alias string   `json:"alias"`
	Value *float64 `json:"value"`
	Valid bool     `json:"valid"`
	Units string   `json:"units"`
}
