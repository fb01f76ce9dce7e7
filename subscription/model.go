package subscription

import (
	"airquality-alert-bot/level"
	"sort"
	"time"
)

type Region string

const (
	TelAviv   Region = "tel_aviv"
	Center    Region = "center"
	Jerusalem Region = "jerusalem"
	Haifa     Region = "haifa"
	South     Region = "south"
	Coastal   Region = "coastal"
	Sharon    Region = "sharon"
	North     Region = "north"
	Other     Region = "other"
)

// Regions is the selectable region menu, in menu order.
var Regions = []Region{TelAviv, Center, Jerusalem, Haifa, South, Coastal, Sharon, North}

// Window is a time-of-day tag used for quiet hours.
type Window string

const (
	Morning   Window = "morning"
	Afternoon Window = "afternoon"
	Evening   Window = "evening"
	Night     Window = "night"
)

// Windows is the selectable hours menu, in menu order.
var Windows = []Window{Morning, Afternoon, Evening, Night}

type Subscriber struct {
	ID       string
	Regions  []Region
	Stations []int
	Level    level.Level
	Hours    []Window
}

// Complete reports whether every preference is set. Only complete
// subscribers are ever persisted.
func (s Subscriber) Complete() bool {
	return (len(s.Regions) > 0 || len(s.Stations) > 0) && len(s.Hours) > 0
}

func (s Subscriber) AllowsWindow(w Window) bool {
	for _, h := range s.Hours {
		if h == w {
			return true
		}
	}
	return false
}

// Normalize sorts and deduplicates the set fields.
func (s Subscriber) Normalize() Subscriber {
	s.Regions = uniqueRegions(s.Regions)
	s.Stations = uniqueStations(s.Stations)
	s.Hours = uniqueWindows(s.Hours)
	return s
}

type AlertRecord struct {
	SubscriberID string
	StationID    int
	Level        level.Level
	SentAt       time.Time
}

func uniqueRegions(in []Region) []Region {
	seen := make(map[Region]bool, len(in))
	var out []Region
	for _, r := range in {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func uniqueStations(in []int) []int {
	seen := make(map[int]bool, len(in))
	var out []int
	for _, id := range in {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}

func uniqueWindows(in []Window) []Window {
	order := make(map[Window]int, len(Windows))
	for i, w := range Windows {
		order[w] = i
	}
	seen := make(map[Window]bool, len(in))
	var out []Window
	for _, w := range in {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return order[out[i]] < order[out[j]] })
	return out
}

var regionNames = map[Region]string{
	TelAviv:   "Tel Aviv",
	Center:    "Center",
	Jerusalem: "Jerusalem",
	Haifa:     "Haifa",
	South:     "South",
	Coastal:   "Coastal Plain",
	Sharon:    "Sharon",
	North:     "North",
	Other:     "Other",
}

func (r Region) DisplayName() string {
	if name, ok := regionNames[r]; ok {
		return name
	}
	return string(r)
}

var windowNames = map[Window]string{
	Morning:   "Morning (06:00-12:00)",
	Afternoon: "Afternoon (12:00-18:00)",
	Evening:   "Evening (18:00-22:00)",
	Night:     "Night (22:00-06:00)",
}

func (w Window) DisplayName() string {
	if name, ok := windowNames[w]; ok {
		return name
	}
	return string(w)
}
