package bot

import (
	"encoding/json"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"log"
	"os"
	"strconv"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"

	defaultListenAddress   = ":42069"
	defaultPollSchedule    = "*/10 * * * *"
	defaultTimeZone        = "Asia/Jerusalem"
	defaultCooldownMinutes = 120
	defaultFetchTimeout    = 30
	defaultSendTimeout     = 10
	defaultDatabaseTimeout = 60
)

type Config struct {
	TelegramBotToken string `json:"telegramBotToken"`

	WhatsAppEnabled    bool   `json:"whatsAppEnabled"`
	TwilioAccountSID   string `json:"twilioAccountSid"`
	TwilioAuthToken    string `json:"twilioAuthToken"`
	TwilioWhatsAppFrom string `json:"twilioWhatsAppFrom"`
	// WhatsAppWebhookURL is the public URL Twilio posts to. Signatures are
	// only checked when it is set.
	WhatsAppWebhookURL string `json:"whatsAppWebhookUrl"`

	DatabaseDriver         string `json:"databaseDriver"`
	DatabaseURL            string `json:"databaseUrl"`
	DatabaseTimeoutSeconds int    `json:"databaseTimeoutSeconds"`
	RedisAddress           string `json:"redisAddress"`
	ListenAddress          string `json:"listenAddress"`

	PollSchedule        string `json:"pollSchedule"`
	TimeZone            string `json:"timeZone"`
	CooldownMinutes     int    `json:"cooldownMinutes"`
	FetchTimeoutSeconds int    `json:"fetchTimeoutSeconds"`
	SendTimeoutSeconds  int    `json:"sendTimeoutSeconds"`
	APIToken            string `json:"apiToken"`

	Debug bool `json:"debug"`
}

// LoadConfig reads the config file at path if it exists, then applies
// environment overrides (a .env file in the working directory is loaded
// first) and defaults.
func LoadConfig(path string) (Config, error) {
	var c Config
	file, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return c, errors.Wrap(err, "unable to read config file")
	}
	if err == nil {
		err = json.Unmarshal(file, &c)
		if err != nil {
			return c, errors.Wrap(err, "unable to unmarshall config file")
		}
	}
	err = godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Printf("unable to load .env file: %v", err.Error())
	}
	err = c.applyEnv()
	if err != nil {
		return c, err
	}
	c.setDefaults()
	return c, c.validate()
}

func (c *Config) applyEnv() error {
	envString(&c.TelegramBotToken, "TELEGRAM_BOT_TOKEN")
	envString(&c.TwilioAccountSID, "TWILIO_ACCOUNT_SID")
	envString(&c.TwilioAuthToken, "TWILIO_AUTH_TOKEN")
	envString(&c.TwilioWhatsAppFrom, "TWILIO_WHATSAPP_FROM")
	envString(&c.WhatsAppWebhookURL, "WHATSAPP_WEBHOOK_URL")
	envString(&c.DatabaseDriver, "DATABASE_DRIVER")
	envString(&c.DatabaseURL, "DATABASE_URL")
	envString(&c.RedisAddress, "REDIS_ADDRESS")
	envString(&c.ListenAddress, "LISTEN_ADDRESS")
	envString(&c.PollSchedule, "POLL_SCHEDULE")
	envString(&c.TimeZone, "TIME_ZONE")
	envString(&c.APIToken, "SVIVA_API_TOKEN")
	for key, target := range map[string]*bool{
		"WHATSAPP_ENABLED": &c.WhatsAppEnabled,
		"DEBUG":            &c.Debug,
	} {
		err := envBool(target, key)
		if err != nil {
			return err
		}
	}
	for key, target := range map[string]*int{
		"COOLDOWN_MINUTES":         &c.CooldownMinutes,
		"FETCH_TIMEOUT_SECONDS":    &c.FetchTimeoutSeconds,
		"SEND_TIMEOUT_SECONDS":     &c.SendTimeoutSeconds,
		"DATABASE_TIMEOUT_SECONDS": &c.DatabaseTimeoutSeconds,
	} {
		err := envInt(target, key)
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.DatabaseDriver == "" {
		if c.DatabaseURL == "" {
			c.DatabaseDriver = DriverMemory
		} else {
			c.DatabaseDriver = DriverPostgres
		}
	}
	if c.ListenAddress == "" {
		c.ListenAddress = defaultListenAddress
	}
	if c.PollSchedule == "" {
		c.PollSchedule = defaultPollSchedule
	}
	if c.TimeZone == "" {
		c.TimeZone = defaultTimeZone
	}
	if c.CooldownMinutes == 0 {
		c.CooldownMinutes = defaultCooldownMinutes
	}
	if c.FetchTimeoutSeconds == 0 {
		c.FetchTimeoutSeconds = defaultFetchTimeout
	}
	if c.SendTimeoutSeconds == 0 {
		c.SendTimeoutSeconds = defaultSendTimeout
	}
	if c.DatabaseTimeoutSeconds == 0 {
		c.DatabaseTimeoutSeconds = defaultDatabaseTimeout
	}
}

func (c Config) validate() error {
	switch c.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
		if c.DatabaseURL == "" {
			return errors.Errorf("database url is required for driver %v", c.DatabaseDriver)
		}
	case DriverMemory:
	default:
		return errors.Errorf("unknown database driver: %v", c.DatabaseDriver)
	}
	if c.TelegramBotToken == "" && !c.WhatsAppEnabled {
		return errors.New("no transport configured: set a telegram bot token or enable whatsapp")
	}
	if c.WhatsAppEnabled && (c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioWhatsAppFrom == "") {
		return errors.New("whatsapp requires twilio account sid, auth token and sender number")
	}
	if c.CooldownMinutes < 0 || c.FetchTimeoutSeconds < 0 || c.SendTimeoutSeconds < 0 || c.DatabaseTimeoutSeconds < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}

func (c Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownMinutes) * time.Minute
}

func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

func (c Config) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSeconds) * time.Second
}

func (c Config) DatabaseTimeout() time.Duration {
	return time.Duration(c.DatabaseTimeoutSeconds) * time.Second
}

func envString(target *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*target = v
	}
}

func envBool(target *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return errors.Wrapf(err, "invalid value of %v", key)
	}
	*target = b
	return nil
}

func envInt(target *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return errors.Wrapf(err, "invalid value of %v", key)
	}
	*target = i
	return nil
}
