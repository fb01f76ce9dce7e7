package subscription

import (
	"airquality-alert-bot/level"
	"fmt"
)

// Step is the position of a subscriber in the registration conversation.
type Step int

const (
	Idle Step = iota
	SelectingRegions
	SelectingStationRegion
	SelectingStations
	SelectingLevel
	SelectingHours
	// Registered follows a completed registration or edit. Commands that
	// change a single field start from here.
	Registered
)

func (s Step) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case SelectingRegions:
		return "SELECTING_REGIONS"
	case SelectingStationRegion:
		return "SELECTING_STATION_REGION"
	case SelectingStations:
		return "SELECTING_STATIONS"
	case SelectingLevel:
		return "SELECTING_LEVEL"
	case SelectingHours:
		return "SELECTING_HOURS"
	case Registered:
		return "REGISTERED"
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// ConversationState holds the fields collected so far for a subscriber who
// is in the middle of registration or of a single-field edit.
type ConversationState struct {
	Step Step `json:"step"`
	// Editing is set when a registered subscriber changes one field. The
	// stored subscriber is updated as soon as that field is collected.
	Editing     bool         `json:"editing,omitempty"`
	Regions     []Region     `json:"regions,omitempty"`
	Stations    []int        `json:"stations,omitempty"`
	Level       *level.Level `json:"level,omitempty"`
	DrillRegion Region       `json:"drill_region,omitempty"`
}
