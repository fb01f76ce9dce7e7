package bot

import (
	"airquality-alert-bot/templates"
	"airquality-alert-bot/whatsapp"
	"context"
	"github.com/pkg/errors"
	"log"
	"net/http"
)

// HandleWhatsApp answers inbound Twilio WhatsApp messages with the
// registration machine's reply as TwiML.
func (s *Service) HandleWhatsApp(writer http.ResponseWriter, request *http.Request) {
	err := request.ParseForm()
	if err != nil {
		log.Printf("unable to parse webhook form: %v", err.Error())
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	if s.webhookURL != "" {
		signature := request.Header.Get(whatsapp.SignatureHeader)
		if !whatsapp.ValidSignature(s.authToken, s.webhookURL, request.PostForm, signature) {
			log.Printf("rejected webhook with invalid signature from %v", request.RemoteAddr)
			writer.WriteHeader(http.StatusForbidden)
			return
		}
	}
	message, err := whatsapp.ParseWebhook(request)
	if err != nil && errors.Is(err, whatsapp.ErrEmptyMessage) {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Printf("unable to read inbound message: %v", err.Error())
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(request.Context(), s.handleTimeout)
	defer cancel()
	reply, err := s.machine.Handle(ctx, WhatsAppID(message.From), message.Body)
	if err != nil {
		log.Printf("unable to handle message from %v: %v", message.From, err.Error())
		reply = templates.UnexpectedError
	}
	err = whatsapp.WriteReply(writer, reply)
	if err != nil {
		log.Printf("unable to write webhook reply: %v", err.Error())
	}
}

func handleAlive(writer http.ResponseWriter, _ *http.Request) {
	writer.WriteHeader(http.StatusOK)
	_, err := writer.Write([]byte("ok"))
	if err != nil {
		log.Printf("unable to write health response: %v", err.Error())
	}
}
