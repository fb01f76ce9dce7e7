package sviva

import (
	"airquality-alert-bot/level"
	"airquality-alert-bot/subscription"
	"context"
	"fmt"
	"github.com/pkg/errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const testToken = "0a1b2c3d-0000-4444-8888-abcdefabcdef"

type fakeAPI struct {
	mu            sync.Mutex
	page          string
	stationsCalls int
	latest        map[string]string
	badAuth       int
}

func (f *fakeAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.URL.Path == "/" {
			_, _ = w.Write([]byte(f.page))
			return
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "ApiToken ") {
			f.badAuth++
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path == "/v1/envista/stations" {
			f.stationsCalls++
			_, _ = w.Write([]byte(`[
				{"stationId": 1, "name": "Yad Lebanim", "city": "Tel Aviv", "regionId": 7, "active": true},
				{"stationId": 2, "name": "Kiryat Ata", "city": "None", "regionId": 1, "active": true},
				{"stationId": 3, "name": "Old", "city": null, "regionId": 5, "active": false},
				{"stationId": 4, "name": "Safra", "city": null, "regionId": 99, "active": true}
			]`))
			return
		}
		body, ok := f.latest[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(body))
	})
}

func newTestClient(t *testing.T, f *fakeAPI) *Client {
	t.Helper()
	server := httptest.NewServer(f.handler())
	t.Cleanup(server.Close)
	return NewClient(Settings{
		APIURL: server.URL + "/v1/envista",
		WebURL: server.URL + "/",
	}, nil)
}

func TestStations(t *testing.T) {
	f := &fakeAPI{page: fmt.Sprintf(`headers: {"Authorization": "ApiToken %v"}`, testToken)}
	c := newTestClient(t, f)
	stations, err := c.Stations(context.Background())
	if err != nil {
		t.Fatalf("stations: %v", err)
	}
	if len(stations) != 3 {
		t.Fatalf("expected 3 active stations, got %v", stations)
	}
	if stations[0].Region != subscription.TelAviv || stations[0].DisplayName() != "Yad Lebanim, Tel Aviv" {
		t.Fatalf("unexpected first station: %#v", stations[0])
	}
	if stations[1].City != "" || stations[1].Region != subscription.Haifa {
		t.Fatalf("unexpected second station: %#v", stations[1])
	}
	if stations[2].Region != subscription.Other {
		t.Fatalf("unknown region id must map to other: %#v", stations[2])
	}
	if _, err := c.Stations(context.Background()); err != nil {
		t.Fatalf("cached stations: %v", err)
	}
	if f.stationsCalls != 1 {
		t.Fatalf("station list must be cached, got %v calls", f.stationsCalls)
	}
}

func TestReadingsSkipsBrokenStations(t *testing.T) {
	f := &fakeAPI{
		page: fmt.Sprintf("var token = 'ApiToken %v';", testToken),
		latest: map[string]string{
			"/v1/envista/stations/1/data/latest": `{"data": [{"datetime": "2024-05-01T10:00:00+03:00", "channels": [
				{"name": "PM2.5", "alias": "PM2.5", "value": 37.2, "valid": true, "units": "µg/m³"},
				{"name": "Benzene", "alias": "Benzene", "value": 1.2, "valid": true, "units": "ppb"},
				{"name": "NO2", "alias": "NO2", "value": 400, "valid": false, "units": "ppb"},
				{"name": "WS", "alias": "Wind", "value": null, "valid": true, "units": "m/s"}
			]}]}`,
			"/v1/envista/stations/2/data/latest": `{"data": []}`,
		},
	}
	c := newTestClient(t, f)
	stations := []Station{{Id: 1}, {Id: 2}, {Id: 3}}
	readings, err := c.Readings(context.Background(), stations)
	if err != nil {
		t.Fatalf("readings: %v", err)
	}
	if len(readings) != 1 {
		t.Fatalf("expected one reading, got %#v", readings)
	}
	r := readings[0]
	if v, ok := r.Value(level.PM25); !ok || v != 37.2 {
		t.Fatalf("pm2.5: %v %v", v, ok)
	}
	if _, ok := r.Value(level.NO2); ok {
		t.Fatal("invalid channel must be dropped")
	}
	if v, ok := r.Value(level.Benzene); !ok || v != 1.2 {
		t.Fatalf("benzene: %v %v", v, ok)
	}
	if r.Time.Hour() != 10 {
		t.Fatalf("unexpected time: %v", r.Time)
	}
}

func TestReadingsFailWhenEveryStationFails(t *testing.T) {
	f := &fakeAPI{page: fmt.Sprintf(`"Authorization": "ApiToken %v"`, testToken)}
	c := newTestClient(t, f)
	_, err := c.Readings(context.Background(), []Station{{Id: 8}, {Id: 9}})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestTokenFallsBackToConfigured(t *testing.T) {
	f := &fakeAPI{page: "<html>no token here</html>"}
	server := httptest.NewServer(f.handler())
	defer server.Close()
	c := NewClient(Settings{APIURL: server.URL + "/v1/envista", WebURL: server.URL + "/", Token: testToken}, nil)
	if _, err := c.Stations(context.Background()); err != nil {
		t.Fatalf("stations: %v", err)
	}

	bare := NewClient(Settings{APIURL: server.URL + "/v1/envista", WebURL: server.URL + "/"}, nil)
	if _, err := bare.Stations(context.Background()); err == nil {
		t.Fatal("expected an error without any token")
	}
}

type mapCache struct {
	readings map[int]Reading
}

func (m *mapCache) Get(id int) (Reading, bool) {
	r, ok := m.readings[id]
	return r, ok
}

func (m *mapCache) Set(r Reading) {
	m.readings[r.Station.Id] = r
}

func TestReadingsUseCache(t *testing.T) {
	f := &fakeAPI{page: fmt.Sprintf(`"Authorization": "ApiToken %v"`, testToken)}
	server := httptest.NewServer(f.handler())
	defer server.Close()
	cache := &mapCache{readings: map[int]Reading{
		5: {Pollutants: map[level.Pollutant]float64{level.O3: 20}},
	}}
	c := NewClient(Settings{APIURL: server.URL + "/v1/envista", WebURL: server.URL + "/"}, cache)
	readings, err := c.Readings(context.Background(), []Station{{Id: 5, Name: "Cached"}})
	if err != nil {
		t.Fatalf("readings: %v", err)
	}
	if len(readings) != 1 || readings[0].Station.Name != "Cached" {
		t.Fatalf("unexpected readings: %#v", readings)
	}
}
