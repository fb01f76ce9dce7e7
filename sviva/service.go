package sviva

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrUnavailable = errors.New("air quality api is unavailable")
	errNoToken     = errors.New("unable to find api token")
)

type Settings struct {
	APIURL string
	WebURL string
	// Token is used when no token can be scraped from the web site.
	Token             string
	Timeout           time.Duration
	Workers           int
	RequestsPerSecond float64
}

// Client talks to the Ministry of Environmental Protection air quality API.
type Client struct {
	settings Settings
	http     *http.Client
	limiter  *rate.Limiter
	cache    Cache
	now      func() time.Time

	mu              sync.Mutex
	token           string
	tokenExpires    time.Time
	stations        []Station
	stationsExpires time.Time
}

// NewClient creates a client. cache may be nil.
func NewClient(settings Settings, cache Cache) *Client {
	if settings.APIURL == "" {
		settings.APIURL = DefaultAPIURL
	}
	if settings.WebURL == "" {
		settings.WebURL = DefaultWebURL
	}
	if settings.Timeout == 0 {
		settings.Timeout = defaultTimeout
	}
	if settings.Workers == 0 {
		settings.Workers = defaultWorkers
	}
	if settings.RequestsPerSecond == 0 {
		settings.RequestsPerSecond = defaultRequestsPerSecond
	}
	if cache == nil {
		cache = noCache{}
	}
	return &Client{
		settings: settings,
		http:     &http.Client{Timeout: settings.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(settings.RequestsPerSecond), settings.Workers),
		cache:    cache,
		now:      time.Now,
	}
}

// Stations returns the active stations. The list is cached for six hours; a
// stale list is returned when a refresh fails.
func (c *Client) Stations(ctx context.Context) ([]Station, error) {
	c.mu.Lock()
	if c.stations != nil && c.now().Before(c.stationsExpires) {
		stations := c.stations
		c.mu.Unlock()
		return stations, nil
	}
	c.mu.Unlock()

	var payload []stationPayload
	err := c.get(ctx, stationsPath, &payload)
	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.stations != nil {
			log.Printf("unable to refresh stations, using cached list: %v", err.Error())
			return c.stations, nil
		}
		return nil, errors.Wrap(err, "unable to fetch stations")
	}
	stations := make([]Station, 0, len(payload))
	for _, p := range payload {
		if !p.Active {
			continue
		}
		stations = append(stations, toStation(p))
	}
	sort.Slice(stations, func(i, j int) bool { return stations[i].Id < stations[j].Id })

	c.mu.Lock()
	c.stations = stations
	c.stationsExpires = c.now().Add(stationsTTL)
	c.mu.Unlock()
	return stations, nil
}

func toStation(p stationPayload) Station {
	s := Station{Id: p.StationId, Name: strings.TrimSpace(p.Name), Region: regionOf(p.RegionId)}
	if p.City != nil {
		city := strings.TrimSpace(*p.City)
		if city != "" && city != "None" && city != s.Name {
			s.City = city
		}
	}
	return s
}

func (c *Client) get(ctx context.Context, path string, dest interface{}) error {
	token, err := c.apiToken(ctx)
	if err != nil {
		return err
	}
	err = c.limiter.Wait(ctx)
	if err != nil {
		return errors.Wrap(err, "rate limiter")
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.settings.APIURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "unable to build request")
	}
	request.Header.Set("Authorization", fmt.Sprintf(authorizationValue, token))
	request.Header.Set("Accept", "application/json")
	response, err := c.http.Do(request)
	if err != nil {
		return errors.Wrapf(ErrUnavailable, "request to %v: %v", path, err)
	}
	defer func() {
		err := response.Body.Close()
		if err != nil {
			log.Printf("error when closing the body: %v", err.Error())
		}
	}()
	code := response.StatusCode
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		c.resetToken()
	}
	if code < 200 || code > 299 {
		return errors.Wrapf(ErrUnavailable, "unexpected status %v from %v", code, path)
	}
	err = json.NewDecoder(response.Body).Decode(dest)
	if err != nil {
		return errors.Wrapf(err, "unable to decode response from %v", path)
	}
	return nil
}

func (c *Client) apiToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && c.now().Before(c.tokenExpires) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	token, err := c.scrapeToken(ctx)
	if err != nil {
		if c.settings.Token == "" {
			return "", err
		}
		log.Printf("unable to scrape api token, using configured one: %v", err.Error())
		token = c.settings.Token
	}
	c.mu.Lock()
	c.token = token
	c.tokenExpires = c.now().Add(tokenTTL)
	c.mu.Unlock()
	return token, nil
}

func (c *Client) resetToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// scrapeToken reads the API token the public web site embeds in its pages.
func (c *Client) scrapeToken(ctx context.Context) (string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.settings.WebURL, nil)
	if err != nil {
		return "", errors.Wrap(err, "unable to build token request")
	}
	response, err := c.http.Do(request)
	if err != nil {
		return "", errors.Wrapf(ErrUnavailable, "token request: %v", err)
	}
	defer func() {
		err := response.Body.Close()
		if err != nil {
			log.Printf("error when closing the body: %v", err.Error())
		}
	}()
	if response.StatusCode != http.StatusOK {
		return "", errors.Wrapf(errNoToken, "unexpected status %v", response.StatusCode)
	}
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", errors.Wrap(err, "unable to read web page")
	}
	if match := tokenPattern.FindSubmatch(body); match != nil {
		return string(match[1]), nil
	}
	if match := tokenFallbackPattern.FindSubmatch(body); match != nil {
		return string(match[1]), nil
	}
	return "", errNoToken
}
