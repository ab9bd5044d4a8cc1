package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"badminton_club/internal/billing"
)

// App is the process configuration shared by the server, the worker and the CLI.
type App struct {
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	AppURL   string `envconfig:"APP_URL" default:"http://localhost:8080"`
	Port     string `envconfig:"PORT" default:"8080"`

	// Storage
	DatabaseURL string `envconfig:"DATABASE_URL"`
	RedisURL    string `envconfig:"REDIS_URL"`

	// Auth
	FirebaseCredentialsPath string `envconfig:"FIREBASE_CREDENTIALS_PATH" default:"./firebase-service-account.json"`
	AuthDisabled            bool   `envconfig:"AUTH_DISABLED" default:"false"`

	// Gateway
	MidtransServerKey    string `envconfig:"MIDTRANS_SERVER_KEY"`
	MidtransClientKey    string `envconfig:"MIDTRANS_CLIENT_KEY"`
	MidtransIsProduction bool   `envconfig:"MIDTRANS_IS_PRODUCTION" default:"false"`

	// Messaging
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"badminton.events"`

	// Assistant
	AssistantURL    string  `envconfig:"ASSISTANT_URL"`
	AssistantAPIKey string  `envconfig:"ASSISTANT_API_KEY"`
	AssistantModel  string  `envconfig:"ASSISTANT_MODEL" default:"gpt-4o-mini"`
	AssistantRPS    float64 `envconfig:"ASSISTANT_RPS" default:"1"`

	// WhatsApp
	WahaBaseURL string `envconfig:"WAHA_BASE_URL"`
	WahaAPIKey  string `envconfig:"WAHA_API_KEY"`
	WahaSession string `envconfig:"WAHA_SESSION" default:"default"`

	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	WorkerSchedule string `envconfig:"WORKER_SCHEDULE" default:"@every 5m"`

	// Embedded untagged: fee keys are read without a prefix.
	Fees
}

// Fees is the community price list. Amounts are whole rupiah.
type Fees struct {
	SessionWeekday             string        `envconfig:"SESSION_WEEKDAY" default:"Saturday"`
	SessionFee                 int64         `envconfig:"SESSION_FEE" default:"18000"`
	ShuttlecockPrice           int64         `envconfig:"SHUTTLECOCK_PRICE" default:"5000"`
	MonthlyFeeFourWeeks        int64         `envconfig:"MONTHLY_FEE_FOUR_WEEKS" default:"40000"`
	MonthlyFeeFiveWeeks        int64         `envconfig:"MONTHLY_FEE_FIVE_WEEKS" default:"45000"`
	ConversionMonthFromDueDate bool          `envconfig:"CONVERSION_MONTH_FROM_DUE_DATE" default:"false"`
	OverdueGraceDays           int           `envconfig:"OVERDUE_GRACE_DAYS" default:"7"`
	MonthlyFeeCacheTTL         time.Duration `envconfig:"MONTHLY_FEE_CACHE_TTL" default:"24h"`
}

// Load reads .env when present and then the process environment.
func Load() (App, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	var c App
	if err := envconfig.Process("", &c); err != nil {
		return App{}, fmt.Errorf("parse environment: %w", err)
	}
	if _, err := c.Fees.Schedule(); err != nil {
		return App{}, err
	}
	return c, nil
}

// Schedule converts the configured prices into a billing.FeeSchedule.
func (f Fees) Schedule() (billing.FeeSchedule, error) {
	wd, err := ParseWeekday(f.SessionWeekday)
	if err != nil {
		return billing.FeeSchedule{}, err
	}
	if f.SessionFee < 0 || f.ShuttlecockPrice < 0 || f.MonthlyFeeFourWeeks < 0 || f.MonthlyFeeFiveWeeks < 0 {
		return billing.FeeSchedule{}, fmt.Errorf("fee amounts must not be negative")
	}
	return billing.FeeSchedule{
		Weekday:             wd,
		MonthlyFeeFourWeeks: f.MonthlyFeeFourWeeks,
		MonthlyFeeFiveWeeks: f.MonthlyFeeFiveWeeks,
		SessionFee:          f.SessionFee,
		ShuttlecockPrice:    f.ShuttlecockPrice,
	}, nil
}

// ParseWeekday accepts full or three-letter English day names, any case.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid SESSION_WEEKDAY %q", s)
}
