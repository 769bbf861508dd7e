package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/whatsmanager/campaign-gateway/pkg/logger"
)

var config *Config

// Config holds every env-driven setting. Only this struct must be used
// to read configuration values, no direct access to env or any other
// config source should be made.
type Config struct {
	AppEnv   string `env:"APP_ENV" default:"dev"`
	AppName  string `env:"APP_NAME" default:"campaign_gateway"`
	AppDebug bool   `env:"APP_DEBUG" default:"1"`

	HttpListenAddr    string `env:"HTTP_LISTEN_ADDR" default:":8080"`
	MetricsListenAddr string `env:"METRICS_LISTEN_ADDR" default:":9100"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE" default:"campaign_gateway"`

	ProviderBaseURL    string `env:"PROVIDER_BASE_URL"`
	ProviderAccountSID string `env:"PROVIDER_ACCOUNT_SID"`
	ProviderAuthToken  string `env:"PROVIDER_AUTH_TOKEN"`
	ProviderFrom       string `env:"PROVIDER_WHATSAPP_FROM" default:"whatsapp:+14155238886"`

	MessagesPerSecond  float64       `env:"MESSAGES_PER_SECOND" default:"1"`
	MaxRetryAttempts   int           `env:"MAX_RETRY_ATTEMPTS" default:"3"`
	RetryDelay         time.Duration `env:"RETRY_DELAY" default:"10m"`
	DispatchBatchSize  int           `env:"DISPATCH_BATCH_SIZE" default:"10"`
	ReconcileBatchSize int           `env:"RECONCILE_BATCH_SIZE" default:"50"`
	ReconcileGrace     time.Duration `env:"RECONCILE_GRACE" default:"5m"`

	CampaignSweepInterval time.Duration `env:"CAMPAIGN_SWEEP_INTERVAL" default:"10s"`
	DispatchInterval      time.Duration `env:"DISPATCH_INTERVAL" default:"5s"`
	FailedSweepInterval   time.Duration `env:"FAILED_SWEEP_INTERVAL" default:"5m"`
	ReconcileInterval     time.Duration `env:"RECONCILE_INTERVAL" default:"1h"`

	DefaultCountryCode string `env:"DEFAULT_COUNTRY_CODE" default:"+502"`
	DefaultPhoneLength int    `env:"DEFAULT_PHONE_LENGTH" default:"8"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		err = godotenv.Load(path)
		if err != nil {
			return errors.Wrap(err, "failed to load configuration file "+path)
		}
	}

	_, err = env.UnmarshalFromEnviron(c)
	if err != nil {
		return errors.Wrap(err, "failed to map env variables to Configuration object")
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
