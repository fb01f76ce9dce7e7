package bot

import (
	"airquality-alert-bot/alert"
	"airquality-alert-bot/db"
	"airquality-alert-bot/mutex"
	"airquality-alert-bot/registration"
	"airquality-alert-bot/subscription"
	"airquality-alert-bot/sviva"
	"airquality-alert-bot/templates"
	"airquality-alert-bot/timezone"
	"airquality-alert-bot/whatsapp"
	"context"
	"github.com/go-redis/redis"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	tele "gopkg.in/telebot.v3"
	"log"
	"net/http"
	"time"
)

const (
	pollTimeout     = time.Minute * 8
	handleTimeout   = time.Second * 10
	shutdownTimeout = time.Second * 5
)

var commands = []string{
	"/start", "/stop", "/status", "/help", "/change", "/regions", "/level", "/hours",
}

func Start(ctx context.Context, config Config, confirm chan<- struct{}) error {
	store, health, err := openStore(ctx, config)
	if err != nil {
		return err
	}
	tz, err := timezone.NewService(config.TimeZone)
	if err != nil {
		return err
	}

	var locks alert.Locker = mutex.NewLocal()
	var cache sviva.Cache
	if config.RedisAddress != "" {
		client := redis.NewClient(&redis.Options{Addr: config.RedisAddress})
		err := client.Ping().Err()
		if err != nil {
			return errors.Wrap(err, "unable to connect to redis")
		}
		locks = mutex.NewBuilder(client)
		cache = sviva.NewRedisCache(client, sviva.DefaultReadingTTL)
	}
	source := sviva.NewClient(
		sviva.Settings{
			Token:   config.APIToken,
			Timeout: config.FetchTimeout(),
		},
		cache,
	)

	var bot *tele.Bot
	if config.TelegramBotToken != "" {
		s := tele.Settings{
			Token: config.TelegramBotToken,
			Poller: &tele.LongPoller{
				Timeout: time.Second * 10,
			},
			Client: &http.Client{Timeout: config.SendTimeout() + time.Second*10},
		}
		bot, err = tele.NewBot(s)
		if err != nil {
			return errors.Wrap(err, "error during creation of a new bot")
		}
	}
	var whatsAppClient *whatsapp.Client
	if config.WhatsAppEnabled {
		whatsAppClient = whatsapp.NewClient(
			config.TwilioAccountSID,
			config.TwilioAuthToken,
			config.TwilioWhatsAppFrom,
			config.SendTimeout(),
		)
	}

	machine := registration.NewMachine(store, source)
	botService := NewService(machine, bot, whatsAppClient, config)
	evaluator := alert.NewEvaluator(source, store, botService, locks, tz, config.Cooldown())
	evaluator.SetSendTimeout(config.SendTimeout())
	botService.SetEvaluator(evaluator)

	if bot != nil {
		for _, command := range commands {
			bot.Handle(command, botService.OnText)
		}
		bot.Handle(tele.OnText, botService.OnText)
		bot.OnError = func(err error, context tele.Context) {
			log.Print(err.Error())
			if context == nil {
				return
			}
			err = context.Send(templates.UnexpectedError)
			if err != nil {
				log.Print(err)
			}
		}
	}

	router := mux.NewRouter()
	if whatsAppClient != nil {
		router.Methods(http.MethodPost).Path("/whatsapp").HandlerFunc(botService.HandleWhatsApp)
	}
	router.Methods(http.MethodGet).Path("/healthz").HandlerFunc(health)
	router.Methods(http.MethodGet).Path("/metrics").Handler(promhttp.Handler())
	server := &http.Server{Addr: config.ListenAddress, Handler: router}
	go func() {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	scheduler := cron.New(cron.WithLocation(tz.Location()))
	_, err = scheduler.AddFunc(config.PollSchedule, func() {
		botService.Poll(ctx)
	})
	if err != nil {
		return errors.Wrapf(err, "invalid poll schedule %v", config.PollSchedule)
	}
	scheduler.Start()
	log.Printf("Started; polling on %q, listening on %v", config.PollSchedule, config.ListenAddress)

	go func() {
		<-ctx.Done()
		<-scheduler.Stop().Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Printf("error during server shutdown: %v", err.Error())
		}
		if bot != nil {
			bot.Stop()
		}
		if closer, ok := store.(*db.DB); ok {
			err := closer.Close()
			if err != nil {
				log.Printf("error during closing the database: %v", err.Error())
			}
		}
		confirm <- struct{}{}
	}()

	if bot == nil {
		<-ctx.Done()
		return nil
	}
	// Blocks until stop
	bot.Start()
	return nil
}

func openStore(ctx context.Context, config Config) (subscription.Store, http.HandlerFunc, error) {
	var (
		dbService *db.DB
		err       error
	)
	switch config.DatabaseDriver {
	case DriverMemory:
		log.Println("Using in-memory store; subscriptions are lost on restart")
		return subscription.NewMemoryStore(), handleAlive, nil
	case DriverSQLite:
		dbService, err = db.NewSQLite(config.DatabaseURL)
	default:
		dbService, err = db.NewPostgres(config.DatabaseURL)
	}
	if err != nil {
		return nil, nil, err
	}
	dbService.SetTimeout(config.DatabaseTimeout())
	if config.Debug {
		dbService.EnableDebug()
	}
	err = dbService.Init(ctx)
	if err != nil {
		return nil, nil, err
	}
	return dbService, dbService.HandleHealth, nil
}
