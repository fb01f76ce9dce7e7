package registration

import (
	"airquality-alert-bot/level"
	"airquality-alert-bot/subscription"
	"airquality-alert-bot/sviva"
	"airquality-alert-bot/templates"
	"context"
	"github.com/pkg/errors"
	"reflect"
	"strings"
	"testing"
)

type fakeCatalog struct {
	stations []sviva.Station
	err      error
}

func (f fakeCatalog) Stations(context.Context) ([]sviva.Station, error) {
	return f.stations, f.err
}

var testCatalog = fakeCatalog{stations: []sviva.Station{
	{Id: 10, Name: "Yad Lebanim", City: "Tel Aviv", Region: subscription.TelAviv},
	{Id: 11, Name: "Remez", Region: subscription.TelAviv},
	{Id: 20, Name: "Kiryat Ata", Region: subscription.Haifa},
}}

const user = "telegram:100"

type harness struct {
	t       *testing.T
	store   *subscription.MemoryStore
	machine *Machine
}

func newHarness(t *testing.T) *harness {
	store := subscription.NewMemoryStore()
	return &harness{t: t, store: store, machine: NewMachine(store, testCatalog)}
}

func (h *harness) say(text string) string {
	h.t.Helper()
	reply, err := h.machine.Handle(context.Background(), user, text)
	if err != nil {
		h.t.Fatalf("handle %q: %v", text, err)
	}
	return reply
}

func (h *harness) step() subscription.Step {
	h.t.Helper()
	state, err := h.store.GetConversationState(context.Background(), user)
	if errors.Is(err, subscription.ErrNotFound) {
		return subscription.Idle
	}
	if err != nil {
		h.t.Fatalf("state: %v", err)
	}
	return state.Step
}

func (h *harness) subscriber() subscription.Subscriber {
	h.t.Helper()
	s, err := h.store.GetSubscriber(context.Background(), user)
	if err != nil {
		h.t.Fatalf("subscriber: %v", err)
	}
	return s
}

func (h *harness) register() {
	h.t.Helper()
	h.say("hello")
	h.say("1,2")
	h.say("2")
	h.say("1,2,3")
}

func TestRegistrationRoundTrip(t *testing.T) {
	h := newHarness(t)
	if reply := h.say("hello"); reply != templates.RegionsPrompt {
		t.Fatalf("unexpected greeting: %v", reply)
	}
	if h.step() != subscription.SelectingRegions {
		t.Fatalf("got step %v", h.step())
	}
	if reply := h.say("1,2"); reply != templates.LevelPrompt {
		t.Fatalf("unexpected reply: %v", reply)
	}
	if reply := h.say("2"); reply != templates.HoursPrompt {
		t.Fatalf("unexpected reply: %v", reply)
	}
	reply := h.say("1,2,3")
	if !strings.HasPrefix(reply, "Registration complete!") {
		t.Fatalf("unexpected reply: %v", reply)
	}
	if h.step() != subscription.Registered {
		t.Fatalf("conversation must be finished, got %v", h.step())
	}

	s := h.subscriber()
	wantRegions := []subscription.Region{subscription.Center, subscription.TelAviv}
	wantHours := []subscription.Window{subscription.Morning, subscription.Afternoon, subscription.Evening}
	if !reflect.DeepEqual(s.Regions, wantRegions) || s.Level != level.Moderate || !reflect.DeepEqual(s.Hours, wantHours) {
		t.Fatalf("unexpected subscriber: %#v", s)
	}
	if !s.Complete() {
		t.Fatal("subscriber must be complete")
	}
}

func TestPartialRegistrationIsNotPersisted(t *testing.T) {
	h := newHarness(t)
	h.say("hi")
	h.say("1")
	h.say("3")
	if _, err := h.store.GetSubscriber(context.Background(), user); !errors.Is(err, subscription.ErrNotFound) {
		t.Fatalf("subscriber must not exist before completion, got %v", err)
	}
	ids, _ := h.store.SubscribersByRegion(context.Background(), subscription.TelAviv)
	if len(ids) != 0 {
		t.Fatalf("index must not contain a pending subscriber: %v", ids)
	}
}

func TestInvalidLevelDoesNotAdvance(t *testing.T) {
	h := newHarness(t)
	h.say("hi")
	h.say("1,2")
	reply := h.say("9")
	if h.step() != subscription.SelectingLevel {
		t.Fatalf("got step %v", h.step())
	}
	if !strings.Contains(reply, templates.InvalidChoice) || !strings.Contains(reply, templates.LevelPrompt) {
		t.Fatalf("expected the level prompt again, got %v", reply)
	}
	for _, text := range []string{"", "two", "2,3", "0"} {
		h.say(text)
		if h.step() != subscription.SelectingLevel {
			t.Fatalf("%q advanced the state to %v", text, h.step())
		}
	}
}

func TestRegionParsingIgnoresInvalidTokens(t *testing.T) {
	h := newHarness(t)
	h.say("hi")
	reply := h.say("nothing useful")
	if h.step() != subscription.SelectingRegions || !strings.Contains(reply, templates.RegionsPrompt) {
		t.Fatalf("empty parse must re-prompt, got %v / %v", h.step(), reply)
	}
	h.say("1, x, 12, 3")
	state, _ := h.store.GetConversationState(context.Background(), user)
	want := []subscription.Region{subscription.TelAviv, subscription.Jerusalem}
	if state.Step != subscription.SelectingLevel || !reflect.DeepEqual(state.Regions, want) {
		t.Fatalf("unexpected state: %#v", state)
	}
}

func TestHoursAlwaysAndEmpty(t *testing.T) {
	h := newHarness(t)
	h.say("hi")
	h.say("all")
	h.say("1")
	h.say("5,6")
	if h.step() != subscription.SelectingHours {
		t.Fatalf("invalid hours must re-prompt, got %v", h.step())
	}
	h.say("תמיד")
	s := h.subscriber()
	if len(s.Hours) != 4 || len(s.Regions) != len(subscription.Regions) || s.Level != level.Good {
		t.Fatalf("unexpected subscriber: %#v", s)
	}
}

func TestStatusMidRegistration(t *testing.T) {
	h := newHarness(t)
	if reply := h.say("status"); reply != templates.NotRegistered {
		t.Fatalf("unexpected status: %v", reply)
	}
	h.say("hi")
	h.say("1,2")
	reply := h.say("status")
	if !strings.Contains(reply, statusIncomplete) || !strings.Contains(reply, "Tel Aviv") || !strings.Contains(reply, "Alert level: not set") {
		t.Fatalf("unexpected status: %v", reply)
	}
	if h.step() != subscription.SelectingLevel {
		t.Fatalf("status must not change the step, got %v", h.step())
	}
	if reply := h.say("/help"); reply != templates.Help {
		t.Fatalf("unexpected help: %v", reply)
	}
	if h.step() != subscription.SelectingLevel {
		t.Fatalf("help must not change the step, got %v", h.step())
	}
	h.say("2")
	if h.step() != subscription.SelectingHours {
		t.Fatalf("got step %v", h.step())
	}
}

func TestStatusRegistered(t *testing.T) {
	h := newHarness(t)
	h.register()
	reply := h.say("סטטוס")
	if !strings.Contains(reply, statusActive) || !strings.Contains(reply, "Moderate") {
		t.Fatalf("unexpected status: %v", reply)
	}
}

func TestStop(t *testing.T) {
	h := newHarness(t)
	h.register()
	if reply := h.say("STOP"); reply != templates.Stopped {
		t.Fatalf("unexpected reply: %v", reply)
	}
	if _, err := h.store.GetSubscriber(context.Background(), user); !errors.Is(err, subscription.ErrNotFound) {
		t.Fatalf("subscriber must be deleted, got %v", err)
	}
	ids, _ := h.store.SubscribersByRegion(context.Background(), subscription.TelAviv)
	if len(ids) != 0 {
		t.Fatalf("index must be cleared: %v", ids)
	}

	h.say("hi")
	h.say("1")
	h.say("עצור")
	if h.step() != subscription.Idle {
		t.Fatalf("stop must clear a pending conversation, got %v", h.step())
	}
}

func TestSingleFieldEdit(t *testing.T) {
	h := newHarness(t)
	h.register()
	if reply := h.say("level"); reply != templates.LevelPrompt {
		t.Fatalf("unexpected reply: %v", reply)
	}
	reply := h.say("4")
	if !strings.HasPrefix(reply, "Settings updated.") {
		t.Fatalf("unexpected reply: %v", reply)
	}
	s := h.subscriber()
	if s.Level != level.VeryLow || len(s.Regions) != 2 || len(s.Hours) != 3 {
		t.Fatalf("only the level may change: %#v", s)
	}
	if h.step() != subscription.Registered {
		t.Fatalf("edit must finish, got %v", h.step())
	}

	h.say("hours")
	h.say("4")
	s = h.subscriber()
	if !reflect.DeepEqual(s.Hours, []subscription.Window{subscription.Night}) || s.Level != level.VeryLow {
		t.Fatalf("only the hours may change: %#v", s)
	}
}

func TestRegionEditUpdatesIndex(t *testing.T) {
	h := newHarness(t)
	h.register()
	h.say("regions")
	h.say("1")
	ctx := context.Background()
	ids, _ := h.store.SubscribersByRegion(ctx, subscription.Center)
	if len(ids) != 0 {
		t.Fatalf("removed region still lists the subscriber: %v", ids)
	}
	ids, _ = h.store.SubscribersByRegion(ctx, subscription.TelAviv)
	if len(ids) != 1 || ids[0] != user {
		t.Fatalf("kept region lost the subscriber: %v", ids)
	}
	s := h.subscriber()
	if s.Level != level.Moderate || len(s.Hours) != 3 {
		t.Fatalf("other fields must be kept: %#v", s)
	}
}

func TestStationDrillDown(t *testing.T) {
	h := newHarness(t)
	h.say("hi")
	if reply := h.say("9"); reply != templates.StationRegionsPrompt {
		t.Fatalf("unexpected reply: %v", reply)
	}
	if reply := h.say("back"); reply != templates.RegionsPrompt {
		t.Fatalf("unexpected reply: %v", reply)
	}
	h.say("9")
	reply := h.say("1")
	if !strings.Contains(reply, "1. Yad Lebanim, Tel Aviv") || !strings.Contains(reply, "2. Remez") {
		t.Fatalf("unexpected station list: %v", reply)
	}
	if h.step() != subscription.SelectingStations {
		t.Fatalf("got step %v", h.step())
	}
	h.say("7")
	if h.step() != subscription.SelectingStations {
		t.Fatalf("invalid station must re-prompt, got %v", h.step())
	}
	if reply := h.say("2"); reply != templates.LevelPrompt {
		t.Fatalf("unexpected reply: %v", reply)
	}
	h.say("3")
	h.say("always")
	s := h.subscriber()
	if len(s.Regions) != 0 || !reflect.DeepEqual(s.Stations, []int{11}) || s.Level != level.Low {
		t.Fatalf("unexpected subscriber: %#v", s)
	}
	ids, _ := h.store.SubscribersByStation(context.Background(), 11)
	if len(ids) != 1 {
		t.Fatalf("station index: %v", ids)
	}
	if reply := h.say("status"); !strings.Contains(reply, "Stations: Remez") {
		t.Fatalf("unexpected status: %v", reply)
	}
}

func TestDrillDownRegionWithoutStations(t *testing.T) {
	h := newHarness(t)
	h.say("hi")
	h.say("9")
	reply := h.say("8")
	if !strings.Contains(reply, "North") || h.step() != subscription.SelectingStationRegion {
		t.Fatalf("unexpected reply %v at %v", reply, h.step())
	}
}

func TestEditRequiresRegistration(t *testing.T) {
	h := newHarness(t)
	if reply := h.say("level"); reply != templates.NotRegistered {
		t.Fatalf("unexpected reply: %v", reply)
	}
	if h.step() != subscription.Idle {
		t.Fatalf("got step %v", h.step())
	}
}

func TestRegisteredFreeTextShowsSettings(t *testing.T) {
	h := newHarness(t)
	h.register()
	reply := h.say("what is this")
	if !strings.HasPrefix(reply, "You are already subscribed") {
		t.Fatalf("unexpected reply: %v", reply)
	}
	if reply := h.say("/start@AirBot"); !strings.HasPrefix(reply, "You are already subscribed") {
		t.Fatalf("unexpected reply: %v", reply)
	}
}

func TestNormalize(t *testing.T) {
	if got := normalize("  １，２ "); got != "1,2" {
		t.Fatalf("got %q", got)
	}
	if got := normalize("HeLLo   World"); got != "hello world" {
		t.Fatalf("got %q", got)
	}
	if got := normalize("עֶזְרָה"); got != "עזרה" {
		t.Fatalf("got %q", got)
	}
	if parseCommand(normalize("/Status")) != statusCommand {
		t.Fatal("slash command must be recognized")
	}
}

type failingStore struct {
	*subscription.MemoryStore
}

func (failingStore) SetConversationState(context.Context, string, subscription.ConversationState) error {
	return errors.New("connection refused")
}

func TestStoreFailureIsReturned(t *testing.T) {
	m := NewMachine(failingStore{subscription.NewMemoryStore()}, testCatalog)
	if _, err := m.Handle(context.Background(), user, "hi"); err == nil {
		t.Fatal("expected store error")
	}
}

func TestRegisteredRoutesEditCommands(t *testing.T) {
	h := newHarness(t)
	h.register()
	if h.step() != subscription.Registered {
		t.Fatalf("got step %v", h.step())
	}
	cases := map[string]subscription.Step{
		"regions": subscription.SelectingRegions,
		"level":   subscription.SelectingLevel,
		"hours":   subscription.SelectingHours,
		"change":  subscription.SelectingRegions,
	}
	for text, want := range cases {
		h.say(text)
		if h.step() != want {
			t.Fatalf("%v: got step %v, want %v", text, h.step(), want)
		}
		h.say("stop")
		if h.step() != subscription.Idle {
			t.Fatalf("stop must return to idle, got %v", h.step())
		}
		h.register()
	}
	h.say("status")
	if h.step() != subscription.Registered {
		t.Fatalf("status must not leave the registered step, got %v", h.step())
	}
}
