package registration

import (
	"airquality-alert-bot/subscription"
	"airquality-alert-bot/sviva"
	"airquality-alert-bot/templates"
	"context"
	"fmt"
	"github.com/pkg/errors"
	"strings"
)

// Catalog lists the stations a subscriber can pick explicitly.
type Catalog interface {
	Stations(ctx context.Context) ([]sviva.Station, error)
}

// Machine runs the registration conversation, one inbound message at a time.
// Malformed input always produces a prompt; only store and catalog failures
// are returned as errors.
type Machine struct {
	store   subscription.Store
	catalog Catalog
}

func NewMachine(store subscription.Store, catalog Catalog) *Machine {
	return &Machine{store: store, catalog: catalog}
}

// turn is the stored data of one subscriber, loaded once per message.
type turn struct {
	id         string
	subscriber *subscription.Subscriber
	state      *subscription.ConversationState
}

// Handle processes one message from id and returns the reply.
func (m *Machine) Handle(ctx context.Context, id string, text string) (string, error) {
	t, err := m.load(ctx, id)
	if err != nil {
		return "", err
	}
	text = normalize(text)

	switch parseCommand(text) {
	case helpCommand:
		return templates.Help, nil
	case statusCommand:
		return m.status(ctx, t), nil
	case stopCommand:
		return m.stop(ctx, t)
	case startCommand:
		if t.subscriber != nil && t.state == nil {
			return fmt.Sprintf(templates.Existing, m.summary(ctx, *t.subscriber)), nil
		}
		return m.begin(ctx, t, subscription.ConversationState{Step: subscription.SelectingRegions})
	case changeCommand:
		return m.begin(ctx, t, subscription.ConversationState{Step: subscription.SelectingRegions})
	case regionsCommand:
		return m.edit(ctx, t, subscription.SelectingRegions)
	case levelCommand:
		return m.edit(ctx, t, subscription.SelectingLevel)
	case hoursCommand:
		return m.edit(ctx, t, subscription.SelectingHours)
	}

	if t.state == nil {
		if t.subscriber != nil {
			return fmt.Sprintf(templates.Existing, m.summary(ctx, *t.subscriber)), nil
		}
		return m.begin(ctx, t, subscription.ConversationState{Step: subscription.SelectingRegions})
	}

	state := *t.state
	switch state.Step {
	case subscription.SelectingRegions:
		return m.selectRegions(ctx, t, state, text)
	case subscription.SelectingStationRegion:
		return m.selectStationRegion(ctx, t, state, text)
	case subscription.SelectingStations:
		return m.selectStations(ctx, t, state, text)
	case subscription.SelectingLevel:
		return m.selectLevel(ctx, t, state, text)
	case subscription.SelectingHours:
		return m.selectHours(ctx, t, state, text)
	}
	// Unknown step: start over rather than leave the subscriber stuck.
	return m.begin(ctx, t, subscription.ConversationState{Step: subscription.SelectingRegions})
}

func (m *Machine) load(ctx context.Context, id string) (turn, error) {
	t := turn{id: id}
	s, err := m.store.GetSubscriber(ctx, id)
	if err != nil && !errors.Is(err, subscription.ErrNotFound) {
		return turn{}, errors.Wrapf(err, "unable to load subscriber %v", id)
	}
	if err == nil {
		t.subscriber = &s
	}
	state, err := m.store.GetConversationState(ctx, id)
	if err != nil && !errors.Is(err, subscription.ErrNotFound) {
		return turn{}, errors.Wrapf(err, "unable to load conversation state of %v", id)
	}
	// A registered subscriber has no pending step.
	if err == nil && state.Step != subscription.Idle && state.Step != subscription.Registered {
		t.state = &state
	}
	return t, nil
}

func (m *Machine) begin(ctx context.Context, t turn, state subscription.ConversationState) (string, error) {
	err := m.save(ctx, t.id, state)
	if err != nil {
		return "", err
	}
	return templates.RegionsPrompt, nil
}

func (m *Machine) stop(ctx context.Context, t turn) (string, error) {
	err := m.store.DeleteSubscriber(ctx, t.id)
	if err != nil {
		return "", errors.Wrapf(err, "unable to delete subscriber %v", t.id)
	}
	err = m.store.ClearConversationState(ctx, t.id)
	if err != nil {
		return "", errors.Wrapf(err, "unable to clear conversation state of %v", t.id)
	}
	return templates.Stopped, nil
}

// edit starts a single-field change for a registered subscriber.
func (m *Machine) edit(ctx context.Context, t turn, step subscription.Step) (string, error) {
	if t.subscriber == nil {
		if t.state != nil {
			return reprompt(*t.state), nil
		}
		return templates.NotRegistered, nil
	}
	state := subscription.ConversationState{Step: step, Editing: true}
	err := m.save(ctx, t.id, state)
	if err != nil {
		return "", err
	}
	return prompt(step), nil
}

func (m *Machine) selectRegions(ctx context.Context, t turn, state subscription.ConversationState, text string) (string, error) {
	if text == drillDownChoice {
		state.Step = subscription.SelectingStationRegion
		err := m.save(ctx, t.id, state)
		if err != nil {
			return "", err
		}
		return templates.StationRegionsPrompt, nil
	}
	regions := parseRegions(text)
	if len(regions) == 0 {
		return reprompt(state), nil
	}
	state.Regions = regions
	state.Stations = nil
	return m.locationChosen(ctx, t, state)
}

func (m *Machine) selectStationRegion(ctx context.Context, t turn, state subscription.ConversationState, text string) (string, error) {
	if backWords[text] {
		state.Step = subscription.SelectingRegions
		err := m.save(ctx, t.id, state)
		if err != nil {
			return "", err
		}
		return templates.RegionsPrompt, nil
	}
	region, ok := parseRegion(text)
	if !ok {
		return reprompt(state), nil
	}
	stations, err := m.stationsIn(ctx, region)
	if err != nil {
		return "", err
	}
	if len(stations) == 0 {
		return fmt.Sprintf(templates.NoStations, region.DisplayName()), nil
	}
	state.Step = subscription.SelectingStations
	state.DrillRegion = region
	err = m.save(ctx, t.id, state)
	if err != nil {
		return "", err
	}
	return stationsPrompt(region, stations), nil
}

func (m *Machine) selectStations(ctx context.Context, t turn, state subscription.ConversationState, text string) (string, error) {
	if backWords[text] {
		state.Step = subscription.SelectingStationRegion
		state.DrillRegion = ""
		err := m.save(ctx, t.id, state)
		if err != nil {
			return "", err
		}
		return templates.StationRegionsPrompt, nil
	}
	stations, err := m.stationsIn(ctx, state.DrillRegion)
	if err != nil {
		return "", err
	}
	var ids []int
	for _, i := range parseIndices(text, len(stations)) {
		ids = append(ids, stations[i].Id)
	}
	if len(ids) == 0 {
		return fmt.Sprintf("%v\n\n%v", templates.InvalidChoice, stationsPrompt(state.DrillRegion, stations)), nil
	}
	state.Stations = ids
	state.Regions = nil
	state.DrillRegion = ""
	return m.locationChosen(ctx, t, state)
}

// locationChosen finishes the regions step, either as an edit or by moving
// on to the level step.
func (m *Machine) locationChosen(ctx context.Context, t turn, state subscription.ConversationState) (string, error) {
	if state.Editing {
		return m.apply(ctx, t, func(s *subscription.Subscriber) {
			s.Regions = state.Regions
			s.Stations = state.Stations
		})
	}
	state.Step = subscription.SelectingLevel
	err := m.save(ctx, t.id, state)
	if err != nil {
		return "", err
	}
	return templates.LevelPrompt, nil
}

func (m *Machine) selectLevel(ctx context.Context, t turn, state subscription.ConversationState, text string) (string, error) {
	l, ok := parseLevel(text)
	if !ok {
		return reprompt(state), nil
	}
	if state.Editing {
		return m.apply(ctx, t, func(s *subscription.Subscriber) {
			s.Level = l
		})
	}
	state.Level = &l
	state.Step = subscription.SelectingHours
	err := m.save(ctx, t.id, state)
	if err != nil {
		return "", err
	}
	return templates.HoursPrompt, nil
}

func (m *Machine) selectHours(ctx context.Context, t turn, state subscription.ConversationState, text string) (string, error) {
	hours := parseHours(text)
	if len(hours) == 0 {
		return reprompt(state), nil
	}
	if state.Editing {
		return m.apply(ctx, t, func(s *subscription.Subscriber) {
			s.Hours = hours
		})
	}
	if state.Level == nil || (len(state.Regions) == 0 && len(state.Stations) == 0) {
		// Collected fields were lost; collect them again.
		return m.begin(ctx, t, subscription.ConversationState{Step: subscription.SelectingRegions})
	}
	s := subscription.Subscriber{
		ID:       t.id,
		Regions:  state.Regions,
		Stations: state.Stations,
		Level:    *state.Level,
		Hours:    hours,
	}.Normalize()
	err := m.store.UpsertSubscriber(ctx, s)
	if err != nil {
		return "", errors.Wrapf(err, "unable to save subscriber %v", t.id)
	}
	err = m.save(ctx, t.id, subscription.ConversationState{Step: subscription.Registered})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(templates.Complete, m.summary(ctx, s)), nil
}

// apply changes one field of the stored subscriber and ends the edit.
func (m *Machine) apply(ctx context.Context, t turn, change func(s *subscription.Subscriber)) (string, error) {
	if t.subscriber == nil {
		err := m.clear(ctx, t.id)
		if err != nil {
			return "", err
		}
		return templates.NotRegistered, nil
	}
	s := *t.subscriber
	change(&s)
	s = s.Normalize()
	err := m.store.UpsertSubscriber(ctx, s)
	if err != nil {
		return "", errors.Wrapf(err, "unable to update subscriber %v", t.id)
	}
	err = m.save(ctx, t.id, subscription.ConversationState{Step: subscription.Registered})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(templates.Updated, m.summary(ctx, s)), nil
}

func (m *Machine) save(ctx context.Context, id string, state subscription.ConversationState) error {
	err := m.store.SetConversationState(ctx, id, state)
	if err != nil {
		return errors.Wrapf(err, "unable to save conversation state of %v", id)
	}
	return nil
}

func (m *Machine) clear(ctx context.Context, id string) error {
	err := m.store.ClearConversationState(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "unable to clear conversation state of %v", id)
	}
	return nil
}

func (m *Machine) stationsIn(ctx context.Context, region subscription.Region) ([]sviva.Station, error) {
	all, err := m.catalog.Stations(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load stations")
	}
	var stations []sviva.Station
	for _, s := range all {
		if s.Region == region {
			stations = append(stations, s)
		}
	}
	return stations, nil
}

func prompt(step subscription.Step) string {
	switch step {
	case subscription.SelectingStationRegion, subscription.SelectingStations:
		return templates.StationRegionsPrompt
	case subscription.SelectingLevel:
		return templates.LevelPrompt
	case subscription.SelectingHours:
		return templates.HoursPrompt
	default:
		return templates.RegionsPrompt
	}
}

func reprompt(state subscription.ConversationState) string {
	return fmt.Sprintf("%v\n\n%v", templates.InvalidChoice, prompt(state.Step))
}

func stationsPrompt(region subscription.Region, stations []sviva.Station) string {
	lines := make([]string, 0, len(stations))
	for i, s := range stations {
		lines = append(lines, fmt.Sprintf("%v. %v", i+1, s.DisplayName()))
	}
	return fmt.Sprintf(templates.StationsPrompt, region.DisplayName(), strings.Join(lines, "\n"))
}
