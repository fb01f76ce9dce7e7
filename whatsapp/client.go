package whatsapp

import (
	"context"
	"github.com/pkg/errors"
	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	addressPrefix  = "whatsapp:"
	defaultTimeout = time.Second * 10
)

var ErrUnreachable = errors.New("whatsapp recipient is unreachable")

// Twilio error codes meaning the recipient can never be reached.
var unreachableCodes = map[int]bool{
	21211: true, // invalid To number
	21610: true, // recipient opted out
	63024: true, // invalid message recipient
}

// Client sends WhatsApp messages through the Twilio REST API.
type Client struct {
	api  *twilio.RestClient
	http *http.Client
	from string
}

func NewClient(accountSID, authToken, from string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	httpClient := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	base := &twclient.Client{
		Credentials: twclient.NewCredentials(accountSID, authToken),
		HTTPClient:  httpClient,
	}
	base.SetAccountSid(accountSID)
	return &Client{
		api: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username:   accountSID,
			Password:   authToken,
			AccountSid: accountSID,
			Client:     base,
		}),
		http: httpClient,
		from: NormalizePhone(from),
	}
}

// SetAPIURL sends every API request to apiURL instead of api.twilio.com,
// keeping the request path.
func (c *Client) SetAPIURL(apiURL string) error {
	target, err := url.Parse(strings.TrimSuffix(apiURL, "/"))
	if err != nil {
		return errors.Wrapf(err, "invalid twilio api url %v", apiURL)
	}
	c.http.Transport = &rewriteTransport{target: target, next: http.DefaultTransport}
	return nil
}

type rewriteTransport struct {
	target *url.URL
	next   http.RoundTripper
}

func (t *rewriteTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.URL.Scheme = t.target.Scheme
	r.URL.Host = t.target.Host
	r.URL.Path = t.target.Path + r.URL.Path
	r.Host = t.target.Host
	return t.next.RoundTrip(r)
}

// Send delivers text to a phone number in E.164 form. The Twilio client has
// no context support, so ctx is only checked before the request and the
// client timeout bounds the call.
func (c *Client) Send(ctx context.Context, phone string, text string) error {
	err := ctx.Err()
	if err != nil {
		return err
	}
	params := &openapi.CreateMessageParams{}
	params.SetFrom(addressPrefix + c.from)
	params.SetTo(addressPrefix + NormalizePhone(phone))
	params.SetBody(text)
	_, err = c.api.Api.CreateMessage(params)
	if err == nil {
		return nil
	}
	var apiErr *twclient.TwilioRestError
	if errors.As(err, &apiErr) && unreachableCodes[apiErr.Code] {
		return errors.Wrapf(ErrUnreachable, "twilio error %v: %v", apiErr.Code, apiErr.Message)
	}
	return errors.Wrap(err, "unable to send whatsapp message")
}

// NormalizePhone strips the whatsapp: prefix and separators and makes sure
// the number starts with a plus sign.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.TrimPrefix(phone, addressPrefix)
	phone = strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '(' || r == ')' {
			return -1
		}
		return r
	}, phone)
	if phone != "" && !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	return phone
}
