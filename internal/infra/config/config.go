package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов конвейера.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	APIToken    string `envconfig:"API_TOKEN"`

	Telegram struct {
		Token          string   `envconfig:"TG_BOT_TOKEN"`
		OperatorChatID int64    `envconfig:"TG_OPERATOR_CHAT_ID"`
		APIID          int      `envconfig:"TG_API_ID"`
		APIHash        string   `envconfig:"TG_API_HASH"`
		Channels       []string `envconfig:"TG_COLLECT_CHANNELS"`
	} `envconfig:""`

	MTProto struct {
		SessionName  string `envconfig:"MTPROTO_SESSION_NAME" default:"collector"`
		MaxEventsRPS int    `envconfig:"MTPROTO_MAX_EVENTS_RPS" default:"20"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Queue struct {
		Backend         string `envconfig:"QUEUE_BACKEND" default:"redis"`
		EventsKey       string `envconfig:"EVENTS_QUEUE_KEY" default:"social_events"`
		RabbitURL       string `envconfig:"RABBITMQ_URL"`
		Prefetch        int    `envconfig:"RABBITMQ_PREFETCH" default:"16"`
		MaxRedeliveries int    `envconfig:"QUEUE_MAX_REDELIVERIES" default:"3"`
	} `envconfig:""`

	OpenAI struct {
		APIKey  string        `envconfig:"OPENAI_API_KEY"`
		BaseURL string        `envconfig:"OPENAI_BASE_URL"`
		Model   string        `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"30s"`
	} `envconfig:""`

	Generator struct {
		URL              string `envconfig:"GENERATOR_URL"`
		TemplateFallback bool   `envconfig:"GENERATOR_TEMPLATE_FALLBACK" default:"true"`
	} `envconfig:""`

	Poster struct {
		URL   string  `envconfig:"POSTER_URL"`
		Token string  `envconfig:"POSTER_TOKEN"`
		RPS   float64 `envconfig:"POSTER_RPS" default:"2"`
	} `envconfig:""`

	Tickets struct {
		URL       string `envconfig:"TICKETS_URL"`
		Token     string `envconfig:"TICKETS_TOKEN"`
		AccountID int    `envconfig:"TICKETS_ACCOUNT_ID" default:"1"`
		InboxID   int    `envconfig:"TICKETS_INBOX_ID" default:"1"`
	} `envconfig:""`

	CRM struct {
		URL   string `envconfig:"CRM_URL"`
		Token string `envconfig:"CRM_TOKEN"`
	} `envconfig:""`

	Webhooks struct {
		URLs         []string      `envconfig:"WEBHOOK_URLS"`
		Secret       string        `envconfig:"WEBHOOK_SECRET"`
		MaxRetries   int           `envconfig:"WEBHOOK_MAX_RETRIES" default:"3"`
		MaxElapsed   time.Duration `envconfig:"WEBHOOK_MAX_ELAPSED" default:"10s"`
		IngestSecret string        `envconfig:"WEBHOOK_INGEST_SECRET"`
	} `envconfig:""`

	Dedup struct {
		Window        time.Duration `envconfig:"DEDUP_WINDOW" default:"30m"`
		MaxCacheSize  int           `envconfig:"DEDUP_MAX_CACHE" default:"10000"`
		Tolerance     time.Duration `envconfig:"DEDUP_TIMESTAMP_TOLERANCE" default:"30s"`
		SweepInterval time.Duration `envconfig:"DEDUP_SWEEP_INTERVAL" default:"1m"`
	} `envconfig:""`

	Priority struct {
		EscalationThreshold float64 `envconfig:"PRIORITY_ESCALATION_THRESHOLD" default:"80"`
	} `envconfig:""`

	Routing struct {
		AutoThreshold       float64 `envconfig:"ROUTING_AUTO_THRESHOLD" default:"0.9"`
		SuggestionThreshold float64 `envconfig:"ROUTING_SUGGESTION_THRESHOLD" default:"0.7"`
		HumanReviewPriority float64 `envconfig:"ROUTING_HUMAN_REVIEW_PRIORITY" default:"90"`
		BoostFollowers      int64   `envconfig:"ROUTING_BOOST_FOLLOWERS" default:"100000"`
	} `envconfig:""`

	Execution struct {
		ActionTimeout        time.Duration `envconfig:"ACTION_TIMEOUT" default:"30s"`
		OpportunityThreshold float64       `envconfig:"CRM_OPPORTUNITY_THRESHOLD" default:"70"`
		RespondPerHour       int           `envconfig:"LIMIT_RESPOND_PER_HOUR" default:"50"`
		RespondPerDay        int           `envconfig:"LIMIT_RESPOND_PER_DAY" default:"500"`
		EscalatePerHour      int           `envconfig:"LIMIT_ESCALATE_PER_HOUR" default:"20"`
		EscalatePerDay       int           `envconfig:"LIMIT_ESCALATE_PER_DAY" default:"200"`
		CreatePerHour        int           `envconfig:"LIMIT_CREATE_PER_HOUR" default:"100"`
		CreatePerDay         int           `envconfig:"LIMIT_CREATE_PER_DAY" default:"1000"`
	} `envconfig:""`

	Pipeline struct {
		MaxConcurrency int           `envconfig:"PIPELINE_MAX_CONCURRENCY" default:"8"`
		Workers        int           `envconfig:"WORKER_CONCURRENCY" default:"4"`
		ApprovalTTL    time.Duration `envconfig:"APPROVAL_TTL" default:"24h"`
		InlineProcess  bool          `envconfig:"API_INLINE_PROCESS" default:"false"`
		JobRetention   time.Duration `envconfig:"JOB_RETENTION" default:"168h"`
	} `envconfig:""`

	Brand struct {
		Name  string `envconfig:"BRAND_NAME"`
		Voice string `envconfig:"BRAND_VOICE" default:"friendly"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
