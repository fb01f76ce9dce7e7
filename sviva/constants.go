package sviva

import (
	"airquality-alert-bot/subscription"
	"regexp"
	"time"
)

const (
	DefaultAPIURL = "https://air-api.sviva.gov.il/v1/envista"
	DefaultWebURL = "https://air.sviva.gov.il"

	stationsPath       = "/stations"
	latestPathFormat   = "/stations/%v/data/latest"
	authorizationValue = "ApiToken %v"

	tokenTTL    = time.Minute * 5
	stationsTTL = time.Hour * 6

	defaultTimeout           = time.Second * 10
	defaultWorkers           = 20
	defaultRequestsPerSecond = 20
)

var (
	tokenPattern         = regexp.MustCompile(`"Authorization":\s*['"]ApiToken ([a-f0-9-]+)['"]`)
	tokenFallbackPattern = regexp.MustCompile(`ApiToken ([a-f0-9-]+)`)
)

// regionByID maps the API region identifiers onto subscription regions.
var regionByID = map[int]subscription.Region{
	0:  subscription.Other,
	1:  subscription.Haifa,
	2:  subscription.Haifa,
	3:  subscription.North,
	4:  subscription.Sharon,
	5:  subscription.Center,
	6:  subscription.Center,
	7:  subscription.TelAviv,
	8:  subscription.Jerusalem,
	9:  subscription.South,
	10: subscription.Coastal,
	11: subscription.South,
	12: subscription.South,
	13: subscription.North,
	14: subscription.North,
	15: subscription.North,
}

func regionOf(id int) subscription.Region {
	if r, ok := regionByID[id]; ok {
		return r
	}
	return subscription.Other
}
