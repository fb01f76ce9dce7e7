package bot

import (
	"airquality-alert-bot/alert"
	"airquality-alert-bot/registration"
	"airquality-alert-bot/whatsapp"
	"context"
	"github.com/pkg/errors"
	tele "gopkg.in/telebot.v3"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	TelegramPrefix = "telegram"
	WhatsAppPrefix = "whatsapp"
)

var errNoTransport = errors.New("transport is not configured")

// Service routes chat turns into the registration machine and alerts back
// out through the transport a subscriber registered on. Subscriber ids are
// "<transport>:<address>".
type Service struct {
	machine       *registration.Machine
	evaluator     *alert.Evaluator
	telegram      *tele.Bot
	whatsapp      *whatsapp.Client
	authToken     string
	webhookURL    string
	pollTimeout   time.Duration
	handleTimeout time.Duration
}

func NewService(
	machine *registration.Machine,
	telegram *tele.Bot,
	whatsapp *whatsapp.Client,
	config Config,
) *Service {
	return &Service{
		machine:       machine,
		telegram:      telegram,
		whatsapp:      whatsapp,
		authToken:     config.TwilioAuthToken,
		webhookURL:    config.WhatsAppWebhookURL,
		pollTimeout:   pollTimeout,
		handleTimeout: handleTimeout,
	}
}

func (s *Service) SetEvaluator(evaluator *alert.Evaluator) {
	s.evaluator = evaluator
}

func TelegramID(chatID int64) string {
	return TelegramPrefix + ":" + strconv.FormatInt(chatID, 10)
}

func WhatsAppID(phone string) string {
	return WhatsAppPrefix + ":" + phone
}

// Send delivers text to a subscriber. Recipients that blocked the bot or
// can no longer be reached yield alert.ErrRecipientGone.
func (s *Service) Send(ctx context.Context, recipientID string, text string) error {
	transport, address, ok := strings.Cut(recipientID, ":")
	if !ok {
		return errors.Errorf("malformed recipient id: %v", recipientID)
	}
	switch transport {
	case TelegramPrefix:
		return s.sendTelegram(address, text)
	case WhatsAppPrefix:
		if s.whatsapp == nil {
			return errors.Wrap(errNoTransport, WhatsAppPrefix)
		}
		err := s.whatsapp.Send(ctx, address, text)
		if errors.Is(err, whatsapp.ErrUnreachable) {
			return errors.Wrap(alert.ErrRecipientGone, err.Error())
		}
		return err
	default:
		return errors.Errorf("unknown transport %v in recipient id %v", transport, recipientID)
	}
}

func (s *Service) sendTelegram(address string, text string) error {
	if s.telegram == nil {
		return errors.Wrap(errNoTransport, TelegramPrefix)
	}
	chatID, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "malformed telegram chat id %v", address)
	}
	_, err = s.telegram.Send(tele.ChatID(chatID), text)
	if err == nil {
		return nil
	}
	var teleErr *tele.Error
	if errors.As(err, &teleErr) && teleErr.Code == http.StatusForbidden {
		return errors.Wrap(alert.ErrRecipientGone, err.Error())
	}
	if errors.Is(err, tele.ErrChatNotFound) {
		return errors.Wrap(alert.ErrRecipientGone, err.Error())
	}
	return err
}

// OnText feeds a Telegram message into the registration machine and replies
// with its answer.
func (s *Service) OnText(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.handleTimeout)
	defer cancel()
	reply, err := s.machine.Handle(ctx, TelegramID(c.Chat().ID), c.Text())
	if err != nil {
		return err
	}
	return c.Send(reply)
}

// Poll runs one alert cycle. It is called by the scheduler.
func (s *Service) Poll(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.pollTimeout)
	defer cancel()
	start := time.Now()
	report, err := s.evaluator.RunPollCycle(ctx)
	if errors.Is(err, alert.ErrCycleRunning) {
		log.Println("poll cycle skipped: previous cycle is still running")
		return
	}
	if err != nil {
		log.Printf("poll cycle failed: %v", err.Error())
		return
	}
	log.Printf("poll cycle finished in %v; %v", time.Since(start).Round(time.Millisecond), report)
}
