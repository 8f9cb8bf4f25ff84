package domain

// Config holds the complete Heron configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Processing thresholds for the claims pipeline
	Processing ProcessingConfig `json:"processing"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ProcessingConfig holds the claim-processing thresholds consumed by
// the checkers and the routing core.
type ProcessingConfig struct {
	// FilingDaysLimit is the maximum days between incident and filing.
	FilingDaysLimit int `json:"filingDaysLimit"`

	// Fraud score decision thresholds.
	FraudScoreHigh   float64 `json:"fraudScoreHigh"`
	FraudScoreMedium float64 `json:"fraudScoreMedium"`
	FraudScoreLow    float64 `json:"fraudScoreLow"`

	// DuplicateThreshold is the similarity above which two images are
	// treated as duplicates.
	DuplicateThreshold float64 `json:"duplicateThreshold"`

	// MaxTraversalSteps bounds routing passes per traversal.
	MaxTraversalSteps int `json:"maxTraversalSteps"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultProcessing returns the default pipeline thresholds.
func DefaultProcessing() ProcessingConfig {
	return ProcessingConfig{
		FilingDaysLimit:    30,
		FraudScoreHigh:     0.7,
		FraudScoreMedium:   0.4,
		FraudScoreLow:      0.2,
		DuplicateThreshold: 0.85,
		MaxTraversalSteps:  12,
	}
}

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier:       TierCommunity,
		Processing: DefaultProcessing(),
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./heron.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300, // 5 minutes
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "heron",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "heron",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
