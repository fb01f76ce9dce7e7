package level

import (
	"fmt"
	"github.com/pkg/errors"
	"strings"
)

// Level is an air quality level. Larger values are worse.
type Level int

const (
	Good Level = iota
	Moderate
	Low
	VeryLow
)

// All lists levels from best to worst.
var All = []Level{Good, Moderate, Low, VeryLow}

var ErrUnknownLevel = errors.New("unknown level")

var names = map[Level]string{
	Good:     "GOOD",
	Moderate: "MODERATE",
	Low:      "LOW",
	VeryLow:  "VERY_LOW",
}

func (l Level) String() string {
	if name, ok := names[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

var titles = map[Level]string{
	Good:     "Good",
	Moderate: "Moderate",
	Low:      "Low",
	VeryLow:  "Very low",
}

// Title is the human readable name of the level.
func (l Level) Title() string {
	if title, ok := titles[l]; ok {
		return title
	}
	return l.String()
}

func Parse(s string) (Level, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for l, name := range names {
		if name == s {
			return l, nil
		}
	}
	return Good, errors.Wrapf(ErrUnknownLevel, "%q", s)
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// WorseThan reports whether l is strictly worse than other.
func (l Level) WorseThan(other Level) bool {
	return l > other
}

// Eligible reports whether a reading classified as l should be reported to
// a subscriber whose threshold is threshold: the reading must be at the
// threshold or worse.
func (l Level) Eligible(threshold Level) bool {
	return l >= threshold
}

// Classify maps an AQI value to a level. Higher AQI is better and values
// can go negative. Boundary values belong to the better level.
func Classify(aqi float64) Level {
	switch {
	case aqi > 50:
		return Good
	case aqi >= 0:
		return Moderate
	case aqi >= -100:
		return Low
	default:
		return VeryLow
	}
}

// Worst returns the worst of the given levels, or Good if none are given.
func Worst(levels ...Level) Level {
	worst := Good
	for _, l := range levels {
		if l.WorseThan(worst) {
			worst = l
		}
	}
	return worst
}
