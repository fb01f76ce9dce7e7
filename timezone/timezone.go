package timezone

import (
	"airquality-alert-bot/subscription"
	"github.com/pkg/errors"
	"time"
	_ "time/tzdata"
)

const DefaultZone = "Asia/Jerusalem"

// Service resolves local time of day in a fixed location.
type Service struct {
	location *time.Location
}

func NewService(zone string) (*Service, error) {
	if zone == "" {
		zone = DefaultZone
	}
	location, err := time.LoadLocation(zone)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to load location %v", zone)
	}
	return &Service{location: location}, nil
}

func (s *Service) Location() *time.Location {
	return s.location
}

// Window returns the time window containing t: morning 06-12, afternoon
// 12-18, evening 18-22, night 22-06.
func (s *Service) Window(t time.Time) subscription.Window {
	hour := t.In(s.location).Hour()
	switch {
	case hour >= 6 && hour < 12:
		return subscription.Morning
	case hour >= 12 && hour < 18:
		return subscription.Afternoon
	case hour >= 18 && hour < 22:
		return subscription.Evening
	default:
		return subscription.Night
	}
}
