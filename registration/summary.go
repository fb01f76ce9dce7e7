package registration

import (
	"airquality-alert-bot/level"
	"airquality-alert-bot/subscription"
	"airquality-alert-bot/templates"
	"context"
	"fmt"
	"log"
	"strings"
)

const (
	statusActive     = "active"
	statusIncomplete = "incomplete"
	notSet           = "not set"
)

func (m *Machine) status(ctx context.Context, t turn) string {
	if t.state != nil && !t.state.Editing {
		partial := subscription.Subscriber{
			ID:       t.id,
			Regions:  t.state.Regions,
			Stations: t.state.Stations,
		}
		return fmt.Sprintf(templates.Status, m.describe(ctx, partial, t.state.Level), statusIncomplete)
	}
	if t.subscriber != nil {
		return fmt.Sprintf(templates.Status, m.summary(ctx, *t.subscriber), statusActive)
	}
	return templates.NotRegistered
}

func (m *Machine) summary(ctx context.Context, s subscription.Subscriber) string {
	return m.describe(ctx, s, &s.Level)
}

func (m *Machine) describe(ctx context.Context, s subscription.Subscriber, l *level.Level) string {
	var lines []string
	if len(s.Stations) > 0 {
		lines = append(lines, "Stations: "+m.stationNames(ctx, s.Stations))
	} else {
		regions := make([]string, 0, len(s.Regions))
		for _, r := range s.Regions {
			regions = append(regions, r.DisplayName())
		}
		lines = append(lines, "Regions: "+orNotSet(regions))
	}
	levelText := notSet
	if l != nil {
		levelText = l.Title()
	}
	lines = append(lines, "Alert level: "+levelText)
	hours := make([]string, 0, len(s.Hours))
	for _, h := range s.Hours {
		hours = append(hours, h.DisplayName())
	}
	lines = append(lines, "Hours: "+orNotSet(hours))
	return strings.Join(lines, "\n")
}

// stationNames resolves station ids through the catalog, falling back to
// the bare ids when it is unavailable.
func (m *Machine) stationNames(ctx context.Context, ids []int) string {
	names := make(map[int]string)
	stations, err := m.catalog.Stations(ctx)
	if err != nil {
		log.Printf("unable to load stations for summary: %v", err.Error())
	}
	for _, s := range stations {
		names[s.Id] = s.DisplayName()
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := names[id]; ok {
			parts = append(parts, name)
			continue
		}
		parts = append(parts, fmt.Sprintf("#%v", id))
	}
	return strings.Join(parts, "; ")
}

func orNotSet(items []string) string {
	if len(items) == 0 {
		return notSet
	}
	return strings.Join(items, ", ")
}
