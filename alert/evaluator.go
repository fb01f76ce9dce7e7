package alert

import (
	"airquality-alert-bot/level"
	"airquality-alert-bot/mutex"
	"airquality-alert-bot/subscription"
	"airquality-alert-bot/sviva"
	"airquality-alert-bot/timezone"
	"context"
	"fmt"
	"github.com/pkg/errors"
	"log"
	"sort"
	"time"
)

const (
	DefaultCooldown    = time.Hour * 2
	defaultSendTimeout = time.Second * 10
)

var (
	// ErrRecipientGone is returned by a Sender when the recipient can no
	// longer be reached, for example after blocking the bot.
	ErrRecipientGone = errors.New("recipient is gone")
	ErrCycleRunning  = errors.New("another poll cycle is running")
)

type Source interface {
	Stations(ctx context.Context) ([]sviva.Station, error)
	Readings(ctx context.Context, stations []sviva.Station) ([]sviva.Reading, error)
}

type Sender interface {
	Send(ctx context.Context, recipientID string, text string) error
}

type Locker interface {
	AlertPair(subscriberID string, stationID int) mutex.Mutex
	PollCycle() mutex.Mutex
}

// CycleReport summarizes one poll cycle.
type CycleReport struct {
	Stations         int
	Evaluated        int
	Alerts           int
	Improvements     int
	AllClears        int
	SkippedThreshold int
	SkippedHours     int
	SkippedCooldown  int
	Failures         int
	Removed          int
}

func (r CycleReport) String() string {
	return fmt.Sprintf(
		"stations: %v, evaluated: %v, alerts: %v, improvements: %v, all clears: %v, skipped (threshold/hours/cooldown): %v/%v/%v, failures: %v, removed: %v",
		r.Stations, r.Evaluated, r.Alerts, r.Improvements, r.AllClears,
		r.SkippedThreshold, r.SkippedHours, r.SkippedCooldown,
		r.Failures, r.Removed,
	)
}

// Evaluator decides which subscribers to notify about the latest readings.
// It is the only writer of alert records.
type Evaluator struct {
	source      Source
	store       subscription.Store
	sender      Sender
	locks       Locker
	tz          *timezone.Service
	cooldown    time.Duration
	sendTimeout time.Duration
	now         func() time.Time
}

func NewEvaluator(
	source Source,
	store subscription.Store,
	sender Sender,
	locks Locker,
	tz *timezone.Service,
	cooldown time.Duration,
) *Evaluator {
	if cooldown == 0 {
		cooldown = DefaultCooldown
	}
	return &Evaluator{
		source:      source,
		store:       store,
		sender:      sender,
		locks:       locks,
		tz:          tz,
		cooldown:    cooldown,
		sendTimeout: defaultSendTimeout,
		now:         time.Now,
	}
}

func (e *Evaluator) SetSendTimeout(timeout time.Duration) {
	e.sendTimeout = timeout
}

type assessment struct {
	reading sviva.Reading
	aqi     float64
	hasAQI  bool
	level   level.Level
	// benzene is set when the benzene reading alone is worse than the AQI.
	benzene    float64
	hasBenzene bool
}

func (a assessment) aqiText() string {
	if !a.hasAQI {
		return "n/a"
	}
	return fmt.Sprintf("%.0f", a.aqi)
}

// assess classifies a reading. ok is false when nothing in it can be
// evaluated.
func assess(r sviva.Reading) (assessment, bool) {
	a := assessment{reading: r, level: level.Good}
	evaluated := false
	if aqi, ok := level.ComputeAQI(r.Pollutants); ok {
		a.aqi = aqi
		a.hasAQI = true
		a.level = level.Classify(aqi)
		evaluated = true
	}
	if ppb, ok := r.Value(level.Benzene); ok && ppb >= 0 {
		overall := level.Overall(a.level, level.ClassifyBenzene(ppb))
		if overall.WorseThan(a.level) {
			a.benzene = ppb
			a.hasBenzene = true
		}
		a.level = overall
		evaluated = true
	}
	return a, evaluated
}

// RunPollCycle fetches the latest readings of every watched station and
// notifies eligible subscribers. Nothing is sent when the readings cannot be
// fetched.
func (e *Evaluator) RunPollCycle(ctx context.Context) (CycleReport, error) {
	var report CycleReport
	lock := e.locks.PollCycle()
	err := lock.Lock()
	if err != nil && mutex.IsTaken(err) {
		pollCycles.WithLabelValues("busy").Inc()
		return report, errors.Wrap(ErrCycleRunning, err.Error())
	}
	if err != nil {
		pollCycles.WithLabelValues("error").Inc()
		return report, errors.Wrap(err, "unable to acquire poll lock")
	}
	defer func() {
		_, err := lock.Unlock()
		if err != nil {
			log.Printf("unable to release poll lock: %v", err.Error())
		}
	}()
	started := e.now()
	defer func() {
		pollDuration.Observe(e.now().Sub(started).Seconds())
	}()

	stations, err := e.watchedStations(ctx)
	if err != nil {
		pollCycles.WithLabelValues("error").Inc()
		return report, err
	}
	report.Stations = len(stations)
	if len(stations) == 0 {
		pollCycles.WithLabelValues("idle").Inc()
		return report, nil
	}
	readings, err := e.source.Readings(ctx, stations)
	if err != nil {
		pollCycles.WithLabelValues("error").Inc()
		return report, errors.Wrap(err, "unable to fetch readings")
	}

	now := e.now()
	window := e.tz.Window(now)
	for _, reading := range readings {
		a, ok := assess(reading)
		if !ok {
			continue
		}
		report.Evaluated++
		candidates, err := e.candidates(ctx, reading.Station)
		if err != nil {
			pollCycles.WithLabelValues("error").Inc()
			return report, err
		}
		for _, id := range candidates {
			e.evaluate(ctx, id, a, window, now, &report)
		}
	}
	pollCycles.WithLabelValues("ok").Inc()
	return report, nil
}

// watchedStations returns the stations that have at least one subscriber,
// either through their region or explicitly.
func (e *Evaluator) watchedStations(ctx context.Context) ([]sviva.Station, error) {
	regions, ids, err := e.store.Watched(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load watched stations")
	}
	if len(regions) == 0 && len(ids) == 0 {
		return nil, nil
	}
	all, err := e.source.Stations(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "unable to fetch stations")
	}
	watchedRegions := make(map[subscription.Region]bool, len(regions))
	for _, r := range regions {
		watchedRegions[r] = true
	}
	watchedIDs := make(map[int]bool, len(ids))
	for _, id := range ids {
		watchedIDs[id] = true
	}
	var stations []sviva.Station
	for _, s := range all {
		if watchedRegions[s.Region] || watchedIDs[s.Id] {
			stations = append(stations, s)
		}
	}
	return stations, nil
}

// candidates is the union of the subscribers of the station region and the
// subscribers of the station itself.
func (e *Evaluator) candidates(ctx context.Context, station sviva.Station) ([]string, error) {
	byRegion, err := e.store.SubscribersByRegion(ctx, station.Region)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to load subscribers of region %v", station.Region)
	}
	byStation, err := e.store.SubscribersByStation(ctx, station.Id)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to load subscribers of station %v", station.Id)
	}
	seen := make(map[string]bool, len(byRegion)+len(byStation))
	var ids []string
	for _, id := range append(byRegion, byStation...) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// evaluate applies the threshold, quiet hours and cooldown gates to one
// subscriber and station. The pair lock is held from the cooldown check
// until the alert record is written. A level better than the recorded one
// but still eligible is sent as an improvement and goes through the same
// gates.
func (e *Evaluator) evaluate(
	ctx context.Context,
	id string,
	a assessment,
	window subscription.Window,
	now time.Time,
	report *CycleReport,
) {
	stationID := a.reading.Station.Id
	sub, err := e.store.GetSubscriber(ctx, id)
	if err != nil && errors.Is(err, subscription.ErrNotFound) {
		return
	}
	if err != nil {
		log.Printf("unable to load subscriber %v: %v", id, err.Error())
		report.Failures++
		return
	}

	lock := e.locks.AlertPair(id, stationID)
	err = lock.Lock()
	if err != nil {
		log.Printf("unable to lock %v/%v: %v", id, stationID, err.Error())
		report.Failures++
		return
	}
	defer func() {
		_, err := lock.Unlock()
		if err != nil {
			log.Printf("unable to unlock %v/%v: %v", id, stationID, err.Error())
		}
	}()

	last, err := e.store.GetLastAlert(ctx, id, stationID)
	hasLast := err == nil
	if err != nil && !errors.Is(err, subscription.ErrNotFound) {
		log.Printf("unable to load alert record %v/%v: %v", id, stationID, err.Error())
		report.Failures++
		return
	}

	if a.level == level.Good {
		if hasLast && last.Level != level.Good {
			e.allClear(ctx, sub, a, window, report)
			return
		}
		report.SkippedThreshold++
		alertsSkipped.WithLabelValues("threshold").Inc()
		return
	}
	if !a.level.Eligible(sub.Level) {
		report.SkippedThreshold++
		alertsSkipped.WithLabelValues("threshold").Inc()
		return
	}
	if !sub.AllowsWindow(window) {
		report.SkippedHours++
		alertsSkipped.WithLabelValues("hours").Inc()
		return
	}
	if hasLast && now.Sub(last.SentAt) < e.cooldown && !a.level.WorseThan(last.Level) {
		report.SkippedCooldown++
		alertsSkipped.WithLabelValues("cooldown").Inc()
		return
	}

	improved := hasLast && last.Level.WorseThan(a.level)
	text, kind := formatAlert(a, e.tz.Location()), "alert"
	if improved {
		text, kind = formatImproved(a, last.Level), "improved"
	}
	err = e.send(ctx, id, text)
	if err != nil {
		e.sendFailed(ctx, id, err, report)
		return
	}
	if improved {
		report.Improvements++
	} else {
		report.Alerts++
	}
	alertsSent.WithLabelValues(kind).Inc()
	err = e.store.SetLastAlert(ctx, subscription.AlertRecord{
		SubscriberID: id,
		StationID:    stationID,
		Level:        a.level,
		SentAt:       now,
	})
	if err != nil {
		log.Printf("unable to save alert record %v/%v: %v", id, stationID, err.Error())
		report.Failures++
	}
}

// allClear tells a subscriber that a station they were alerted about is
// good again and forgets the alert record.
func (e *Evaluator) allClear(
	ctx context.Context,
	sub subscription.Subscriber,
	a assessment,
	window subscription.Window,
	report *CycleReport,
) {
	if !sub.AllowsWindow(window) {
		report.SkippedHours++
		alertsSkipped.WithLabelValues("hours").Inc()
		return
	}
	err := e.send(ctx, sub.ID, formatAllClear(a))
	if err != nil {
		e.sendFailed(ctx, sub.ID, err, report)
		return
	}
	report.AllClears++
	alertsSent.WithLabelValues("all_clear").Inc()
	err = e.store.ClearLastAlert(ctx, sub.ID, a.reading.Station.Id)
	if err != nil {
		log.Printf("unable to clear alert record %v/%v: %v", sub.ID, a.reading.Station.Id, err.Error())
		report.Failures++
	}
}

func (e *Evaluator) send(ctx context.Context, id string, text string) error {
	ctx, cancel := context.WithTimeout(ctx, e.sendTimeout)
	defer cancel()
	return e.sender.Send(ctx, id, text)
}

func (e *Evaluator) sendFailed(ctx context.Context, id string, err error, report *CycleReport) {
	sendFailures.Inc()
	if errors.Is(err, ErrRecipientGone) {
		log.Printf("recipient %v is gone, removing subscription", id)
		err := e.store.DeleteSubscriber(ctx, id)
		if err != nil {
			log.Printf("unable to remove subscriber %v: %v", id, err.Error())
			report.Failures++
			return
		}
		report.Removed++
		return
	}
	log.Printf("unable to notify %v: %v", id, err.Error())
	report.Failures++
}
