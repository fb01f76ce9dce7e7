package alert

import (
	"airquality-alert-bot/level"
	"airquality-alert-bot/sviva"
	"airquality-alert-bot/templates"
	"fmt"
	"sort"
	"strings"
	"time"
)

var pollutantNames = map[level.Pollutant]string{
	level.PM25:    "PM2.5",
	level.PM10:    "PM10",
	level.O3:      "Ozone (O3)",
	level.NO2:     "Nitrogen dioxide (NO2)",
	level.SO2:     "Sulfur dioxide (SO2)",
	level.CO:      "Carbon monoxide (CO)",
	level.NOX:     "Nitrogen oxides (NOx)",
	level.Benzene: "Benzene",
}

func advice(l level.Level) string {
	switch l {
	case level.Moderate:
		return templates.AdviceModerate
	case level.Low:
		return templates.AdviceLow
	default:
		return templates.AdviceVeryLow
	}
}

func formatAlert(a assessment, location *time.Location) string {
	if a.hasBenzene {
		return fmt.Sprintf(
			templates.BenzeneAlert,
			a.reading.Station.DisplayName(),
			a.reading.Station.Region.DisplayName(),
			a.benzene,
			a.level.Title(),
			a.aqiText(),
			a.reading.Time.In(location).Format("2006-01-02 15:04"),
			formatPollutants(a.reading),
			advice(a.level),
		)
	}
	return fmt.Sprintf(
		templates.Alert,
		a.reading.Station.DisplayName(),
		a.reading.Station.Region.DisplayName(),
		a.aqiText(),
		a.level.Title(),
		a.reading.Time.In(location).Format("2006-01-02 15:04"),
		formatPollutants(a.reading),
		advice(a.level),
	)
}

func formatImproved(a assessment, previous level.Level) string {
	return fmt.Sprintf(
		templates.Improved,
		a.reading.Station.DisplayName(),
		previous.Title(),
		a.level.Title(),
		a.aqiText(),
		advice(a.level),
	)
}

func formatAllClear(a assessment) string {
	return fmt.Sprintf(templates.AllClear, a.reading.Station.DisplayName(), a.aqiText())
}

func formatPollutants(r sviva.Reading) string {
	var lines []string
	for p, value := range r.Pollutants {
		name, ok := pollutantNames[p]
		if !ok {
			continue
		}
		line := fmt.Sprintf("- %v: %.1f %v", name, value, r.Units[p])
		lines = append(lines, strings.TrimSpace(line))
	}
	if len(lines) == 0 {
		return "No data"
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}
