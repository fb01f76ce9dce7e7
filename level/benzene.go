package level

import "fmt"

// BenzeneLevel classifies benzene concentration in ppb. Larger values are worse.
type BenzeneLevel int

const (
	BenzeneNone BenzeneLevel = iota
	BenzeneElevated
	BenzeneHigh
	BenzeneVeryHigh
	BenzeneDangerous
)

const (
	benzeneElevatedPPB  = 1.0
	benzeneHighPPB      = 1.55
	benzeneVeryHighPPB  = 2.10
	benzeneDangerousPPB = 2.64
)

var benzeneNames = map[BenzeneLevel]string{
	BenzeneNone:      "none",
	BenzeneElevated:  "elevated",
	BenzeneHigh:      "high",
	BenzeneVeryHigh:  "very_high",
	BenzeneDangerous: "dangerous",
}

func (b BenzeneLevel) String() string {
	if name, ok := benzeneNames[b]; ok {
		return name
	}
	return fmt.Sprintf("BenzeneLevel(%d)", int(b))
}

// ClassifyBenzene maps a benzene concentration to a level. Each lower bound
// is inclusive.
func ClassifyBenzene(ppb float64) BenzeneLevel {
	switch {
	case ppb >= benzeneDangerousPPB:
		return BenzeneDangerous
	case ppb >= benzeneVeryHighPPB:
		return BenzeneVeryHigh
	case ppb >= benzeneHighPPB:
		return BenzeneHigh
	case ppb >= benzeneElevatedPPB:
		return BenzeneElevated
	default:
		return BenzeneNone
	}
}

// AsLevel projects a benzene level onto the AQI level scale.
func (b BenzeneLevel) AsLevel() Level {
	switch b {
	case BenzeneNone:
		return Good
	case BenzeneElevated:
		return Moderate
	case BenzeneHigh:
		return Low
	default:
		return VeryLow
	}
}

// Overall combines the AQI level with the benzene level. The worse one wins.
func Overall(aqi Level, benzene BenzeneLevel) Level {
	return Worst(aqi, benzene.AsLevel())
}
