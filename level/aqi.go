package level

import "math"

type Pollutant string

const (
	PM25    Pollutant = "PM2.5"
	PM10    Pollutant = "PM10"
	O3      Pollutant = "O3"
	NO2     Pollutant = "NO2"
	SO2     Pollutant = "SO2"
	CO      Pollutant = "CO"
	NOX     Pollutant = "NOX"
	Benzene Pollutant = "BENZENE"
)

type breakpoint struct {
	concLo, concHi float64
	idxLo, idxHi   float64
}

var breakpoints = map[Pollutant][]breakpoint{
	PM25: {{0, 18.5, 0, 49}, {18.5, 37.5, 50, 100}, {37.5, 84.5, 101, 200}, {84.5, 130.5, 201, 300}, {130.5, 165.5, 301, 400}, {165.5, 200, 401, 500}},
	PM10: {{0, 65, 0, 49}, {65, 130, 50, 100}, {130, 216, 101, 200}, {216, 301, 201, 300}, {301, 356, 301, 400}, {356, 430, 401, 500}},
	O3:   {{0, 35, 0, 49}, {35, 71, 50, 100}, {71, 98, 101, 200}, {98, 118, 201, 300}, {118, 156, 301, 400}, {156, 188, 401, 500}},
	NO2:  {{0, 53, 0, 49}, {53, 106, 50, 100}, {106, 161, 101, 200}, {161, 214, 201, 300}, {214, 261, 301, 400}, {261, 316, 401, 500}},
	SO2:  {{0, 67, 0, 49}, {67, 134, 50, 100}, {134, 164, 101, 200}, {164, 192, 201, 300}, {192, 254, 301, 400}, {254, 303, 401, 500}},
	CO:   {{0, 26, 0, 49}, {26, 52, 50, 100}, {52, 79, 101, 200}, {79, 105, 201, 300}, {105, 131, 301, 400}, {131, 156, 401, 500}},
	NOX:  {{0, 250, 0, 49}, {250, 500, 50, 100}, {500, 751, 101, 200}, {751, 1001, 201, 300}, {1001, 1201, 301, 400}, {1201, 1400, 401, 500}},
}

// SubIndex interpolates the sub-index of a single pollutant concentration.
// Concentrations above the last band map to the top of the scale.
func SubIndex(p Pollutant, value float64) (float64, bool) {
	bands, ok := breakpoints[p]
	if !ok || value < 0 || math.IsNaN(value) {
		return 0, false
	}
	for _, b := range bands {
		if value >= b.concLo && value <= b.concHi {
			return (b.idxHi-b.idxLo)/(b.concHi-b.concLo)*(value-b.concLo) + b.idxLo, true
		}
	}
	return bands[len(bands)-1].idxHi, true
}

// ComputeAQI returns 100 minus the worst sub-index, rounded to an integer.
// Unknown, negative or missing pollutants are skipped. ok is false when no
// pollutant could be evaluated.
func ComputeAQI(pollutants map[Pollutant]float64) (aqi float64, ok bool) {
	worst := math.Inf(-1)
	for p, value := range pollutants {
		idx, evaluated := SubIndex(p, value)
		if !evaluated {
			continue
		}
		if idx > worst {
			worst = idx
		}
	}
	if math.IsInf(worst, -1) {
		return 0, false
	}
	return math.Round(100 - worst), true
}
