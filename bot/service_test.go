package bot

import (
	"airquality-alert-bot/alert"
	"airquality-alert-bot/registration"
	"airquality-alert-bot/subscription"
	"airquality-alert-bot/sviva"
	"airquality-alert-bot/whatsapp"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"github.com/pkg/errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

type fakeCatalog struct{}

func (fakeCatalog) Stations(context.Context) ([]sviva.Station, error) {
	return []sviva.Station{{Id: 1, Name: "Yad Lebanim", Region: subscription.TelAviv}}, nil
}

func newTestService(t *testing.T, twilio http.HandlerFunc, config Config) (*Service, *subscription.MemoryStore) {
	store := subscription.NewMemoryStore()
	var client *whatsapp.Client
	if twilio != nil {
		server := httptest.NewServer(twilio)
		t.Cleanup(server.Close)
		client = whatsapp.NewClient("AC1", "secret", "+14155238886", 0)
		if err := client.SetAPIURL(server.URL); err != nil {
			t.Fatalf("api url: %v", err)
		}
	}
	return NewService(registration.NewMachine(store, fakeCatalog{}), nil, client, config), store
}

func TestSendRoutesWhatsApp(t *testing.T) {
	var to string
	s, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		to = r.PostForm.Get("To")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid": "SM1"}`))
	}, Config{})
	err := s.Send(context.Background(), WhatsAppID("+972501234567"), "alert")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if to != "whatsapp:+972501234567" {
		t.Fatalf("sent to %v", to)
	}
}

func TestSendMapsUnreachableRecipient(t *testing.T) {
	s, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code": 21610, "message": "unsubscribed recipient", "status": 400}`))
	}, Config{})
	err := s.Send(context.Background(), WhatsAppID("+972501234567"), "alert")
	if !errors.Is(err, alert.ErrRecipientGone) {
		t.Fatalf("expected ErrRecipientGone, got %v", err)
	}
}

func TestSendRejectsUnknownRecipients(t *testing.T) {
	s, _ := newTestService(t, nil, Config{})
	for _, id := range []string{"nocolon", "sms:+97250", TelegramID(42), WhatsAppID("+97250")} {
		err := s.Send(context.Background(), id, "alert")
		if err == nil {
			t.Fatalf("send to %v: expected an error", id)
		}
		if errors.Is(err, alert.ErrRecipientGone) {
			t.Fatalf("send to %v must not remove the subscriber: %v", id, err)
		}
	}
}

func postWebhook(s *Service, form url.Values, signature string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(http.MethodPost, "/whatsapp", strings.NewReader(form.Encode()))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		request.Header.Set(whatsapp.SignatureHeader, signature)
	}
	recorder := httptest.NewRecorder()
	s.HandleWhatsApp(recorder, request)
	return recorder
}

func TestHandleWhatsAppStartsRegistration(t *testing.T) {
	s, store := newTestService(t, nil, Config{})
	form := url.Values{"From": {"whatsapp:+972501234567"}, "Body": {"start"}}
	recorder := postWebhook(s, form, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %v", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "<Response><Message>") {
		t.Fatalf("unexpected body: %v", recorder.Body.String())
	}
	state, err := store.GetConversationState(context.Background(), WhatsAppID("+972501234567"))
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.Step != subscription.SelectingRegions {
		t.Fatalf("step = %v", state.Step)
	}
}

func TestHandleWhatsAppChecksSignature(t *testing.T) {
	config := Config{TwilioAuthToken: "secret", WhatsAppWebhookURL: "https://bot.example.com/whatsapp"}
	s, store := newTestService(t, nil, config)
	form := url.Values{"From": {"whatsapp:+972501234567"}, "Body": {"start"}}

	recorder := postWebhook(s, form, "bm90IGEgc2lnbmF0dXJl")
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("status = %v, want 403", recorder.Code)
	}
	_, err := store.GetConversationState(context.Background(), WhatsAppID("+972501234567"))
	if !errors.Is(err, subscription.ErrNotFound) {
		t.Fatalf("rejected webhook must not change state: %v", err)
	}
}

func TestHandleWhatsAppRejectsMissingSender(t *testing.T) {
	s, _ := newTestService(t, nil, Config{})
	recorder := postWebhook(s, url.Values{"Body": {"start"}}, "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %v, want 400", recorder.Code)
	}
}

func TestHandleWhatsAppAcceptsSignedRequest(t *testing.T) {
	config := Config{TwilioAuthToken: "secret", WhatsAppWebhookURL: "https://bot.example.com/whatsapp"}
	s, store := newTestService(t, nil, config)
	form := url.Values{"From": {"whatsapp:+972501234567"}, "Body": {"start"}}
	mac := hmac.New(sha1.New, []byte("secret"))
	mac.Write([]byte(config.WhatsAppWebhookURL + "Bodystart" + "Fromwhatsapp:+972501234567"))

	recorder := postWebhook(s, form, base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %v, want 200", recorder.Code)
	}
	state, err := store.GetConversationState(context.Background(), WhatsAppID("+972501234567"))
	if err != nil || state.Step != subscription.SelectingRegions {
		t.Fatalf("signed webhook must start registration: %#v %v", state, err)
	}
}
