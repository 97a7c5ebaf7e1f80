package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

const (
	BusKafka    = "kafka"
	BusRabbitMQ = "rabbitmq"
	BusLog      = "log"
)

type Config struct {
	Env              string
	ServiceName      string
	HTTPPort         int
	LogLevel         string
	ConfigPath       string
	RequestTimeoutMS int
	RequestTimeout   time.Duration
	RateLimitRPS     float64
	RateLimitBurst   int

	OIDCIssuer      string
	OIDCAudience    string
	OIDCJWKSURL     string
	JWKSTTLSeconds  int
	JWTClockSkewSec int

	DatabaseURL      string
	DBMaxConns       int
	DBMinConns       int
	DBConnMaxIdleSec int
	DBConnMaxLifeSec int
	DBAutoMigrate    bool

	BusDriver     string
	KafkaBrokers  []string
	KafkaClientID string
	KafkaGroupID  string
	KafkaRetryMax int
	KafkaWriteMS  int
	AMQPURL       string
	AMQPExchange  string

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	AsynqRedisAddr   string
	AsynqRedisPass   string
	AsynqRedisDB     int
	AsynqQueue       string
	AsynqConcurrency int
	AsynqEnabled     bool

	OutboxScanSec     int
	OutboxBatchSize   int
	OutboxMaxAttempts int

	InfluxURL       string
	InfluxToken     string
	InfluxOrg       string
	InfluxBucket    string
	InfluxTimeoutMS int

	OtelEnabled     bool
	OtelEndpoint    string
	OtelInsecure    bool
	OtelSampleRatio float64

	EventSource        string
	EventSchemaVersion string
	CommandMaxAttempts int
	PublishTimeoutMS   int
	PublishRetryMax    int
	ConsumeTimeoutMS   int
	ConsumeRetryMax    int
	DeadLetterTopic    string
	InboxTTLHours      int

	RecurrenceScanSec      int
	RecurrenceLookaheadMin int
	RecurrenceLockTTLSec   int
	ProjectionBatchSize    int
}

func defaults(serviceNameDefault string, httpPortDefault int) Config {
	return Config{
		ServiceName:            serviceNameDefault,
		HTTPPort:               httpPortDefault,
		LogLevel:               "info",
		RequestTimeoutMS:       30000,
		RateLimitRPS:           20,
		RateLimitBurst:         40,
		JWKSTTLSeconds:         300,
		JWTClockSkewSec:        60,
		DBMaxConns:             10,
		DBMinConns:             1,
		DBConnMaxIdleSec:       300,
		DBConnMaxLifeSec:       1800,
		BusDriver:              BusKafka,
		KafkaRetryMax:          5,
		KafkaWriteMS:           5000,
		AMQPExchange:           "workspace.events",
		AsynqQueue:             "default",
		AsynqConcurrency:       10,
		OutboxScanSec:          5,
		OutboxBatchSize:        50,
		OutboxMaxAttempts:      20,
		InfluxTimeoutMS:        5000,
		OtelInsecure:           true,
		OtelSampleRatio:        1.0,
		EventSource:            "workspace-service",
		EventSchemaVersion:     "1.0",
		CommandMaxAttempts:     3,
		PublishTimeoutMS:       5000,
		PublishRetryMax:        3,
		ConsumeTimeoutMS:       10000,
		ConsumeRetryMax:        3,
		DeadLetterTopic:        "dead-letter-events",
		InboxTTLHours:          72,
		RecurrenceScanSec:      60,
		RecurrenceLookaheadMin: 60,
		RecurrenceLockTTLSec:   120,
		ProjectionBatchSize:    500,
	}
}

// Load resolves configuration from defaults, an optional config file
// (JSON or YAML) and the environment, in that order. Invalid values are
// reported as problems and fall back to their defaults.
func Load(serviceNameDefault string, httpPortDefault int) (Config, []Problem) {
	envRaw := strings.TrimSpace(os.Getenv("ENV"))
	explicitPath := strings.TrimSpace(os.Getenv("CONFIG_PATH"))

	cfg := defaults(serviceNameDefault, httpPortDefault)
	cfg.Env = envRaw
	cfg.ConfigPath = explicitPath

	problems := make([]Problem, 0, 4)
	envProvided := envRaw != ""

	if repoRoot, ok := findRepoRoot(); ok && cfg.Env != "" && cfg.ConfigPath == "" {
		cfg.ConfigPath = defaultConfigPath(repoRoot, cfg.Env)
	}

	fileData, fileProblems, ok := loadConfigFile(cfg.ConfigPath, explicitPath != "")
	problems = append(problems, fileProblems...)
	if ok {
		if fileEnv, ok := readStringKey(fileData, "ENV"); ok && strings.TrimSpace(fileEnv) != "" {
			envProvided = true
		}
		applyConfigMap(&cfg, fileData, &problems)
	}

	applyEnv(&cfg, &problems)

	if cfg.OIDCIssuer != "" && strings.TrimSpace(cfg.OIDCJWKSURL) == "" {
		cfg.OIDCJWKSURL = strings.TrimRight(cfg.OIDCIssuer, "/") + "/.well-known/jwks.json"
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if !envProvided {
		problems = append(problems, Problem{Field: "ENV", Message: "ENV is required"})
	}

	validate(&cfg, httpPortDefault, &problems)
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutMS) * time.Millisecond
	return cfg, problems
}

func validate(cfg *Config, httpPortDefault int, problems *[]Problem) {
	def := defaults(cfg.ServiceName, httpPortDefault)
	check := func(field string, bad bool, msg string, reset func()) {
		if bad {
			*problems = append(*problems, Problem{Field: field, Message: msg})
			reset()
		}
	}

	check("HTTP_PORT", cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535, "HTTP_PORT must be 1-65535", func() { cfg.HTTPPort = def.HTTPPort })
	check("REQUEST_TIMEOUT_MS", cfg.RequestTimeoutMS <= 0, "REQUEST_TIMEOUT_MS must be > 0", func() { cfg.RequestTimeoutMS = def.RequestTimeoutMS })
	check("RATE_LIMIT_RPS", cfg.RateLimitRPS < 0, "RATE_LIMIT_RPS must be >= 0", func() { cfg.RateLimitRPS = def.RateLimitRPS })
	check("RATE_LIMIT_BURST", cfg.RateLimitBurst <= 0, "RATE_LIMIT_BURST must be > 0", func() { cfg.RateLimitBurst = def.RateLimitBurst })
	check("JWKS_CACHE_TTL_SECONDS", cfg.JWKSTTLSeconds <= 0, "JWKS_CACHE_TTL_SECONDS must be > 0", func() { cfg.JWKSTTLSeconds = def.JWKSTTLSeconds })
	check("JWT_CLOCK_SKEW_SECONDS", cfg.JWTClockSkewSec < 0, "JWT_CLOCK_SKEW_SECONDS must be >= 0", func() { cfg.JWTClockSkewSec = def.JWTClockSkewSec })
	check("DB_MAX_CONNS", cfg.DBMaxConns <= 0, "DB_MAX_CONNS must be > 0", func() { cfg.DBMaxConns = def.DBMaxConns })
	check("DB_MIN_CONNS", cfg.DBMinConns < 0, "DB_MIN_CONNS must be >= 0", func() { cfg.DBMinConns = def.DBMinConns })
	check("DB_MIN_CONNS", cfg.DBMinConns > cfg.DBMaxConns, "DB_MIN_CONNS must be <= DB_MAX_CONNS", func() { cfg.DBMinConns = cfg.DBMaxConns })
	check("DB_CONN_MAX_IDLE_SECONDS", cfg.DBConnMaxIdleSec <= 0, "DB_CONN_MAX_IDLE_SECONDS must be > 0", func() { cfg.DBConnMaxIdleSec = def.DBConnMaxIdleSec })
	check("DB_CONN_MAX_LIFETIME_SECONDS", cfg.DBConnMaxLifeSec <= 0, "DB_CONN_MAX_LIFETIME_SECONDS must be > 0", func() { cfg.DBConnMaxLifeSec = def.DBConnMaxLifeSec })
	check("BUS_DRIVER", !validBusDriver(cfg.BusDriver), "BUS_DRIVER must be kafka, rabbitmq or log", func() { cfg.BusDriver = def.BusDriver })
	check("KAFKA_RETRY_MAX", cfg.KafkaRetryMax < 0, "KAFKA_RETRY_MAX must be >= 0", func() { cfg.KafkaRetryMax = def.KafkaRetryMax })
	check("KAFKA_WRITE_TIMEOUT_MS", cfg.KafkaWriteMS <= 0, "KAFKA_WRITE_TIMEOUT_MS must be > 0", func() { cfg.KafkaWriteMS = def.KafkaWriteMS })
	check("REDIS_DB", cfg.RedisDB < 0, "REDIS_DB must be >= 0", func() { cfg.RedisDB = 0 })
	check("ASYNQ_REDIS_DB", cfg.AsynqRedisDB < 0, "ASYNQ_REDIS_DB must be >= 0", func() { cfg.AsynqRedisDB = 0 })
	check("ASYNQ_CONCURRENCY", cfg.AsynqConcurrency <= 0, "ASYNQ_CONCURRENCY must be > 0", func() { cfg.AsynqConcurrency = def.AsynqConcurrency })
	check("OUTBOX_SCAN_INTERVAL_SECONDS", cfg.OutboxScanSec <= 0, "OUTBOX_SCAN_INTERVAL_SECONDS must be > 0", func() { cfg.OutboxScanSec = def.OutboxScanSec })
	check("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize <= 0, "OUTBOX_BATCH_SIZE must be > 0", func() { cfg.OutboxBatchSize = def.OutboxBatchSize })
	check("OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts <= 0, "OUTBOX_MAX_ATTEMPTS must be > 0", func() { cfg.OutboxMaxAttempts = def.OutboxMaxAttempts })
	check("INFLUX_TIMEOUT_MS", cfg.InfluxTimeoutMS <= 0, "INFLUX_TIMEOUT_MS must be > 0", func() { cfg.InfluxTimeoutMS = def.InfluxTimeoutMS })
	check("OTEL_SAMPLE_RATIO", cfg.OtelSampleRatio < 0 || cfg.OtelSampleRatio > 1, "OTEL_SAMPLE_RATIO must be 0-1", func() { cfg.OtelSampleRatio = def.OtelSampleRatio })
	check("EVENT_SOURCE", strings.TrimSpace(cfg.EventSource) == "", "EVENT_SOURCE must not be empty", func() { cfg.EventSource = def.EventSource })
	check("EVENT_SCHEMA_VERSION", strings.TrimSpace(cfg.EventSchemaVersion) == "", "EVENT_SCHEMA_VERSION must not be empty", func() { cfg.EventSchemaVersion = def.EventSchemaVersion })
	check("COMMAND_MAX_ATTEMPTS", cfg.CommandMaxAttempts <= 0, "COMMAND_MAX_ATTEMPTS must be > 0", func() { cfg.CommandMaxAttempts = def.CommandMaxAttempts })
	check("PUBLISH_TIMEOUT_MS", cfg.PublishTimeoutMS <= 0, "PUBLISH_TIMEOUT_MS must be > 0", func() { cfg.PublishTimeoutMS = def.PublishTimeoutMS })
	check("PUBLISH_RETRY_MAX", cfg.PublishRetryMax < 0, "PUBLISH_RETRY_MAX must be >= 0", func() { cfg.PublishRetryMax = def.PublishRetryMax })
	check("CONSUME_TIMEOUT_MS", cfg.ConsumeTimeoutMS <= 0, "CONSUME_TIMEOUT_MS must be > 0", func() { cfg.ConsumeTimeoutMS = def.ConsumeTimeoutMS })
	check("CONSUME_RETRY_MAX", cfg.ConsumeRetryMax < 0, "CONSUME_RETRY_MAX must be >= 0", func() { cfg.ConsumeRetryMax = def.ConsumeRetryMax })
	check("DEAD_LETTER_TOPIC", strings.TrimSpace(cfg.DeadLetterTopic) == "", "DEAD_LETTER_TOPIC must not be empty", func() { cfg.DeadLetterTopic = def.DeadLetterTopic })
	check("INBOX_TTL_HOURS", cfg.InboxTTLHours <= 0, "INBOX_TTL_HOURS must be > 0", func() { cfg.InboxTTLHours = def.InboxTTLHours })
	check("RECURRENCE_SCAN_SECONDS", cfg.RecurrenceScanSec <= 0, "RECURRENCE_SCAN_SECONDS must be > 0", func() { cfg.RecurrenceScanSec = def.RecurrenceScanSec })
	check("RECURRENCE_LOOKAHEAD_MINUTES", cfg.RecurrenceLookaheadMin < 0, "RECURRENCE_LOOKAHEAD_MINUTES must be >= 0", func() { cfg.RecurrenceLookaheadMin = def.RecurrenceLookaheadMin })
	check("RECURRENCE_LOCK_TTL_SECONDS", cfg.RecurrenceLockTTLSec <= 0, "RECURRENCE_LOCK_TTL_SECONDS must be > 0", func() { cfg.RecurrenceLockTTLSec = def.RecurrenceLockTTLSec })
	check("PROJECTION_BATCH_SIZE", cfg.ProjectionBatchSize <= 0, "PROJECTION_BATCH_SIZE must be > 0", func() { cfg.ProjectionBatchSize = def.ProjectionBatchSize })
}

func (c Config) PublishTimeout() time.Duration {
	return time.Duration(c.PublishTimeoutMS) * time.Millisecond
}

func (c Config) ConsumeTimeout() time.Duration {
	return time.Duration(c.ConsumeTimeoutMS) * time.Millisecond
}

func (c Config) RecurrenceScanInterval() time.Duration {
	return time.Duration(c.RecurrenceScanSec) * time.Second
}

func (c Config) RecurrenceLookahead() time.Duration {
	return time.Duration(c.RecurrenceLookaheadMin) * time.Minute
}

func (c Config) InboxTTL() time.Duration {
	return time.Duration(c.InboxTTLHours) * time.Hour
}

func validBusDriver(v string) bool {
	switch v {
	case BusKafka, BusRabbitMQ, BusLog:
		return true
	}
	return false
}

// binding maps one configuration key onto a Config field. The same table
// serves both the config file and the environment.
type binding struct {
	key string
	set func(cfg *Config, v any) error
}

var errNotInt = errors.New("must be an integer")
var errNotBool = errors.New("must be a boolean")
var errNotNumber = errors.New("must be a number")

func str(get func(*Config) *string, keepEmpty bool) func(*Config, any) error {
	return func(cfg *Config, v any) error {
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		s = strings.TrimSpace(s)
		if s == "" && !keepEmpty {
			return nil
		}
		*get(cfg) = s
		return nil
	}
}

func integer(get func(*Config) *int) func(*Config, any) error {
	return func(cfg *Config, v any) error {
		i, ok := asInt(v)
		if !ok {
			return errNotInt
		}
		*get(cfg) = i
		return nil
	}
}

func boolean(get func(*Config) *bool) func(*Config, any) error {
	return func(cfg *Config, v any) error {
		b, ok := asBool(v)
		if !ok {
			return errNotBool
		}
		*get(cfg) = b
		return nil
	}
}

func float(get func(*Config) *float64) func(*Config, any) error {
	return func(cfg *Config, v any) error {
		f, ok := asFloat(v)
		if !ok {
			return errNotNumber
		}
		*get(cfg) = f
		return nil
	}
}

func csv(get func(*Config) *[]string) func(*Config, any) error {
	return func(cfg *Config, v any) error {
		switch t := v.(type) {
		case []any:
			*get(cfg) = parseAnyCSV(t)
		case string:
			*get(cfg) = parseCSV(t)
		default:
			return errors.New("must be a list or comma separated string")
		}
		return nil
	}
}

var bindings = []binding{
	{"ENV", str(func(c *Config) *string { return &c.Env }, true)},
	{"SERVICE_NAME", str(func(c *Config) *string { return &c.ServiceName }, false)},
	{"HTTP_PORT", integer(func(c *Config) *int { return &c.HTTPPort })},
	{"LOG_LEVEL", str(func(c *Config) *string { return &c.LogLevel }, false)},
	{"REQUEST_TIMEOUT_MS", integer(func(c *Config) *int { return &c.RequestTimeoutMS })},
	{"RATE_LIMIT_RPS", float(func(c *Config) *float64 { return &c.RateLimitRPS })},
	{"RATE_LIMIT_BURST", integer(func(c *Config) *int { return &c.RateLimitBurst })},
	{"OIDC_ISSUER", str(func(c *Config) *string { return &c.OIDCIssuer }, true)},
	{"OIDC_AUDIENCE", str(func(c *Config) *string { return &c.OIDCAudience }, true)},
	{"OIDC_JWKS_URL", str(func(c *Config) *string { return &c.OIDCJWKSURL }, true)},
	{"JWKS_CACHE_TTL_SECONDS", integer(func(c *Config) *int { return &c.JWKSTTLSeconds })},
	{"JWT_CLOCK_SKEW_SECONDS", integer(func(c *Config) *int { return &c.JWTClockSkewSec })},
	{"DATABASE_URL", str(func(c *Config) *string { return &c.DatabaseURL }, true)},
	{"DB_MAX_CONNS", integer(func(c *Config) *int { return &c.DBMaxConns })},
	{"DB_MIN_CONNS", integer(func(c *Config) *int { return &c.DBMinConns })},
	{"DB_CONN_MAX_IDLE_SECONDS", integer(func(c *Config) *int { return &c.DBConnMaxIdleSec })},
	{"DB_CONN_MAX_LIFETIME_SECONDS", integer(func(c *Config) *int { return &c.DBConnMaxLifeSec })},
	{"DB_AUTO_MIGRATE", boolean(func(c *Config) *bool { return &c.DBAutoMigrate })},
	{"BUS_DRIVER", str(func(c *Config) *string { return &c.BusDriver }, false)},
	{"KAFKA_BROKERS", csv(func(c *Config) *[]string { return &c.KafkaBrokers })},
	{"KAFKA_CLIENT_ID", str(func(c *Config) *string { return &c.KafkaClientID }, true)},
	{"KAFKA_CONSUMER_GROUP", str(func(c *Config) *string { return &c.KafkaGroupID }, true)},
	{"KAFKA_RETRY_MAX", integer(func(c *Config) *int { return &c.KafkaRetryMax })},
	{"KAFKA_WRITE_TIMEOUT_MS", integer(func(c *Config) *int { return &c.KafkaWriteMS })},
	{"AMQP_URL", str(func(c *Config) *string { return &c.AMQPURL }, true)},
	{"AMQP_EXCHANGE", str(func(c *Config) *string { return &c.AMQPExchange }, false)},
	{"REDIS_ADDR", str(func(c *Config) *string { return &c.RedisAddr }, true)},
	{"REDIS_PASSWORD", str(func(c *Config) *string { return &c.RedisPassword }, true)},
	{"REDIS_DB", integer(func(c *Config) *int { return &c.RedisDB })},
	{"ASYNQ_REDIS_ADDR", str(func(c *Config) *string { return &c.AsynqRedisAddr }, true)},
	{"ASYNQ_REDIS_PASSWORD", str(func(c *Config) *string { return &c.AsynqRedisPass }, true)},
	{"ASYNQ_REDIS_DB", integer(func(c *Config) *int { return &c.AsynqRedisDB })},
	{"ASYNQ_QUEUE", str(func(c *Config) *string { return &c.AsynqQueue }, false)},
	{"ASYNQ_CONCURRENCY", integer(func(c *Config) *int { return &c.AsynqConcurrency })},
	{"ASYNQ_ENABLED", boolean(func(c *Config) *bool { return &c.AsynqEnabled })},
	{"OUTBOX_SCAN_INTERVAL_SECONDS", integer(func(c *Config) *int { return &c.OutboxScanSec })},
	{"OUTBOX_BATCH_SIZE", integer(func(c *Config) *int { return &c.OutboxBatchSize })},
	{"OUTBOX_MAX_ATTEMPTS", integer(func(c *Config) *int { return &c.OutboxMaxAttempts })},
	{"INFLUX_URL", str(func(c *Config) *string { return &c.InfluxURL }, true)},
	{"INFLUX_TOKEN", str(func(c *Config) *string { return &c.InfluxToken }, true)},
	{"INFLUX_ORG", str(func(c *Config) *string { return &c.InfluxOrg }, true)},
	{"INFLUX_BUCKET", str(func(c *Config) *string { return &c.InfluxBucket }, true)},
	{"INFLUX_TIMEOUT_MS", integer(func(c *Config) *int { return &c.InfluxTimeoutMS })},
	{"OTEL_ENABLED", boolean(func(c *Config) *bool { return &c.OtelEnabled })},
	{"OTEL_EXPORTER_OTLP_ENDPOINT", str(func(c *Config) *string { return &c.OtelEndpoint }, true)},
	{"OTEL_EXPORTER_OTLP_INSECURE", boolean(func(c *Config) *bool { return &c.OtelInsecure })},
	{"OTEL_SAMPLE_RATIO", float(func(c *Config) *float64 { return &c.OtelSampleRatio })},
	{"EVENT_SOURCE", str(func(c *Config) *string { return &c.EventSource }, false)},
	{"EVENT_SCHEMA_VERSION", str(func(c *Config) *string { return &c.EventSchemaVersion }, false)},
	{"COMMAND_MAX_ATTEMPTS", integer(func(c *Config) *int { return &c.CommandMaxAttempts })},
	{"PUBLISH_TIMEOUT_MS", integer(func(c *Config) *int { return &c.PublishTimeoutMS })},
	{"PUBLISH_RETRY_MAX", integer(func(c *Config) *int { return &c.PublishRetryMax })},
	{"CONSUME_TIMEOUT_MS", integer(func(c *Config) *int { return &c.ConsumeTimeoutMS })},
	{"CONSUME_RETRY_MAX", integer(func(c *Config) *int { return &c.ConsumeRetryMax })},
	{"DEAD_LETTER_TOPIC", str(func(c *Config) *string { return &c.DeadLetterTopic }, false)},
	{"INBOX_TTL_HOURS", integer(func(c *Config) *int { return &c.InboxTTLHours })},
	{"RECURRENCE_SCAN_SECONDS", integer(func(c *Config) *int { return &c.RecurrenceScanSec })},
	{"RECURRENCE_LOOKAHEAD_MINUTES", integer(func(c *Config) *int { return &c.RecurrenceLookaheadMin })},
	{"RECURRENCE_LOCK_TTL_SECONDS", integer(func(c *Config) *int { return &c.RecurrenceLockTTLSec })},
	{"PROJECTION_BATCH_SIZE", integer(func(c *Config) *int { return &c.ProjectionBatchSize })},
}

func applyEnv(cfg *Config, problems *[]Problem) {
	for _, b := range bindings {
		raw, ok := os.LookupEnv(b.key)
		if b.key == "HTTP_PORT" && strings.TrimSpace(raw) == "" {
			raw, ok = os.LookupEnv("PORT")
		}
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		if err := b.set(cfg, raw); err != nil {
			*problems = append(*problems, Problem{Field: b.key, Message: b.key + " " + err.Error()})
		}
	}
}

func applyConfigMap(cfg *Config, raw map[string]any, problems *[]Problem) {
	for k, v := range raw {
		key := strings.ToUpper(strings.TrimSpace(k))
		for _, b := range bindings {
			if b.key != key {
				continue
			}
			if err := b.set(cfg, v); err != nil {
				*problems = append(*problems, Problem{Field: b.key, Message: b.key + " " + err.Error()})
			}
			break
		}
	}
}

func findRepoRoot() (string, bool) {
	start, err := os.Getwd()
	if err != nil {
		return "", false
	}
	dir := start
	for i := 0; i < 8; i++ {
		candidate := filepath.Join(dir, "configs")
		if fi, err := os.Stat(candidate); err == nil && fi.IsDir() {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

func defaultConfigPath(repoRoot string, env string) string {
	for _, ext := range []string{".yaml", ".yml"} {
		p := filepath.Join(repoRoot, "configs", env+ext)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(repoRoot, "configs", env+".json")
}

func loadConfigFile(path string, explicit bool) (map[string]any, []Problem, bool) {
	if strings.TrimSpace(path) == "" {
		return nil, nil, false
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if explicit && errors.Is(err, os.ErrNotExist) {
			return nil, []Problem{{Field: "CONFIG_PATH", Message: "config file not found"}}, false
		}
		if explicit {
			return nil, []Problem{{Field: "CONFIG_PATH", Message: fmt.Sprintf("failed to read config file: %v", err)}}, false
		}
		return nil, nil, false
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &raw); err != nil {
			return nil, []Problem{{Field: "CONFIG_PATH", Message: fmt.Sprintf("invalid yaml: %v", err)}}, false
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, []Problem{{Field: "CONFIG_PATH", Message: fmt.Sprintf("invalid json: %v", err)}}, false
		}
	}
	return raw, nil, true
}

func readStringKey(raw map[string]any, key string) (string, bool) {
	for k, v := range raw {
		if strings.EqualFold(strings.TrimSpace(k), key) {
			s, ok := v.(string)
			return s, ok
		}
	}
	return "", false
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case json.Number:
		i, err := t.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		return i, err == nil
	default:
		return 0, false
	}
}

func asBool(v any) (bool, bool) {
	if b, ok := v.(bool); ok {
		return b, true
	}
	s, ok := v.(string)
	if !ok {
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y":
		return true, true
	case "false", "0", "no", "n":
		return false, true
	default:
		return false, false
	}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func parseCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseAnyCSV(raw []any) []string {
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			s = strings.TrimSpace(s)
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
