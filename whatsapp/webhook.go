package whatsapp

import (
	"encoding/xml"
	"github.com/pkg/errors"
	twclient "github.com/twilio/twilio-go/client"
	"net/http"
	"net/url"
	"strings"
)

const SignatureHeader = "X-Twilio-Signature"

var ErrEmptyMessage = errors.New("inbound message has no sender")

// Message is one inbound WhatsApp message.
type Message struct {
	From string
	Body string
}

// ParseWebhook reads the form Twilio posts for an inbound message.
func ParseWebhook(r *http.Request) (Message, error) {
	err := r.ParseForm()
	if err != nil {
		return Message{}, errors.Wrap(err, "unable to parse webhook form")
	}
	m := Message{
		From: NormalizePhone(r.PostForm.Get("From")),
		Body: strings.TrimSpace(r.PostForm.Get("Body")),
	}
	if m.From == "" {
		return Message{}, ErrEmptyMessage
	}
	return m, nil
}

// ValidSignature checks the X-Twilio-Signature of a form webhook against
// the public URL Twilio posted to.
func ValidSignature(authToken, fullURL string, params url.Values, signature string) bool {
	values := make(map[string]string, len(params))
	for k, v := range params {
		if len(v) > 0 {
			values[k] = v[0]
		}
	}
	validator := twclient.NewRequestValidator(authToken)
	return validator.Validate(fullURL, values, signature)
}

type twiml struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// WriteReply answers the webhook with a TwiML document. An empty text
// produces an empty response.
func WriteReply(w http.ResponseWriter, text string) error {
	body, err := xml.Marshal(twiml{Message: text})
	if err != nil {
		return errors.Wrap(err, "unable to encode twiml")
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(append([]byte(xml.Header), body...))
	return err
}
