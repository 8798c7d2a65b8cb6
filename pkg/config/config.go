package config

import (
	"fmt"
	"os"
	"regexp"
	"seva/pkg/client"
	kafka_config "seva/pkg/kafka/config"
	"seva/pkg/logger"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration
	MongoReadTimeout  time.Duration
	MongoWriteTimeout time.Duration
	StorageDriver     string
	// SeedUsers are "id:name" pairs loaded into in-memory storage.
	SeedUsers         []string

	Port string

	JWTSecret      string
	AllowedOrigins []string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RegistryShards    int
	GeoCellPrecision  int
	GeoNeighborFanout bool

	NotifyRadiusMeters float64
	NotifyMaxUsers     int
	ListingDedupWindow time.Duration

	WSSendBuffer   int
	WSReadLimit    int64
	WSPingInterval time.Duration
	WSPongWait     time.Duration
	WSWriteWait    time.Duration

	EventsEnabled bool
	EventsTopic   string
	Kafka         *kafka_config.Config

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := FromEnv()
	cfg.Log = logger.New(logger.Config{
		Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
		Format:    getEnvStr(EnvLogFormat, DefaultLogFormat),
		AddSource: true,
		Service:   serviceName,
	})

	if cfg.EventsEnabled {
		kafkaCfg, err := kafka_config.Load()
		if err != nil {
			cfg.Log.Fatal(err.Error())
		}
		cfg.Kafka = kafkaCfg
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv reads every setting without validating or creating a logger.
func FromEnv() *Config {
	return &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),
		MongoReadTimeout:  getEnvDuration(EnvMongoReadTimeout, DefaultMongoReadTimeout),
		MongoWriteTimeout: getEnvDuration(EnvMongoWriteTimeout, DefaultMongoWriteTimeout),
		StorageDriver:     strings.ToLower(getEnvStr(EnvStorageDriver, DefaultStorageDriver)),
		SeedUsers:         splitList(getEnvStr(EnvSeedUsers, "")),

		Port: getEnvStr(EnvPort, DefaultPort),

		JWTSecret:      getEnvStr(EnvJWTSecret, ""),
		AllowedOrigins: splitList(getEnvStr(EnvAllowedOrigins, DefaultAllowedOrigins)),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		RegistryShards:    getEnvNum(EnvRegistryShards, DefaultRegistryShards),
		GeoCellPrecision:  getEnvNum(EnvGeoCellPrecision, DefaultGeoCellPrecision),
		GeoNeighborFanout: getEnvBool(EnvGeoNeighborFanout, DefaultGeoNeighborFanout),

		NotifyRadiusMeters: float64(getEnvNum(EnvNotifyRadiusMeters, DefaultNotifyRadiusMeters)),
		NotifyMaxUsers:     getEnvNum(EnvNotifyMaxUsers, DefaultNotifyMaxUsers),
		ListingDedupWindow: getEnvDuration(EnvListingDedupWindow, DefaultListingDedupWindow),

		WSSendBuffer:   getEnvNum(EnvWSSendBuffer, DefaultWSSendBuffer),
		WSReadLimit:    int64(getEnvNum(EnvWSReadLimit, DefaultWSReadLimit)),
		WSPingInterval: getEnvDuration(EnvWSPingInterval, DefaultWSPingInterval),
		WSPongWait:     getEnvDuration(EnvWSPongWait, DefaultWSPongWait),
		WSWriteWait:    getEnvDuration(EnvWSWriteWait, DefaultWSWriteWait),

		EventsEnabled: getEnvBool(EnvEventsEnabled, DefaultEventsEnabled),
		EventsTopic:   getEnvStr(EnvEventsTopic, DefaultEventsTopic),

		Client: client.NewClient(),
	}
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) UsesMemoryStorage() bool {
	return cfg.StorageDriver == StorageMemory
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StorageDriver {
	case StorageMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
		if cfg.MongoReadTimeout <= 0 || cfg.MongoWriteTimeout <= 0 {
			errors = append(errors, "MongoReadTimeout and MongoWriteTimeout must be positive")
		}
	case StorageMemory:
	default:
		errors = append(errors, fmt.Sprintf("StorageDriver must be %q or %q, got: %s", StorageMongo, StorageMemory, cfg.StorageDriver))
	}

	if len(cfg.JWTSecret) < 16 {
		errors = append(errors, "JWTSecret must be set and at least 16 characters long")
	}

	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.RegistryShards <= 0 || cfg.RegistryShards > 4096 {
		errors = append(errors, fmt.Sprintf("RegistryShards must be between 1 and 4096, got: %d", cfg.RegistryShards))
	}
	if cfg.GeoCellPrecision < 1 || cfg.GeoCellPrecision > 9 {
		errors = append(errors, fmt.Sprintf("GeoCellPrecision must be between 1 and 9, got: %d", cfg.GeoCellPrecision))
	}
	if cfg.NotifyRadiusMeters <= 0 {
		errors = append(errors, fmt.Sprintf("NotifyRadiusMeters must be positive, got: %v", cfg.NotifyRadiusMeters))
	}
	if cfg.NotifyMaxUsers <= 0 {
		errors = append(errors, fmt.Sprintf("NotifyMaxUsers must be positive, got: %d", cfg.NotifyMaxUsers))
	}
	if cfg.ListingDedupWindow < 0 {
		errors = append(errors, fmt.Sprintf("ListingDedupWindow cannot be negative, got: %s", cfg.ListingDedupWindow))
	}

	if cfg.WSSendBuffer <= 0 {
		errors = append(errors, fmt.Sprintf("WSSendBuffer must be positive, got: %d", cfg.WSSendBuffer))
	}
	if cfg.WSReadLimit <= 0 {
		errors = append(errors, fmt.Sprintf("WSReadLimit must be positive, got: %d", cfg.WSReadLimit))
	}
	if cfg.WSWriteWait <= 0 {
		errors = append(errors, fmt.Sprintf("WSWriteWait must be positive, got: %s", cfg.WSWriteWait))
	}
	if cfg.WSPingInterval <= 0 || cfg.WSPingInterval >= cfg.WSPongWait {
		errors = append(errors, fmt.Sprintf("WSPingInterval (%s) must be positive and shorter than WSPongWait (%s)", cfg.WSPingInterval, cfg.WSPongWait))
	}

	if cfg.EventsEnabled && cfg.EventsTopic == "" {
		errors = append(errors, "EventsTopic cannot be empty when events are enabled")
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"storage_driver", cfg.StorageDriver,
		"seed_users", len(cfg.SeedUsers),
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"jwt_secret_set", cfg.JWTSecret != "",
		"allowed_origins", cfg.AllowedOrigins,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"registry_shards", cfg.RegistryShards,
		"geo_cell_precision", cfg.GeoCellPrecision,
		"geo_neighbor_fanout", cfg.GeoNeighborFanout,
		"notify_radius_meters", cfg.NotifyRadiusMeters,
		"notify_max_users", cfg.NotifyMaxUsers,
		"listing_dedup_window", cfg.ListingDedupWindow,
		"ws_send_buffer", cfg.WSSendBuffer,
		"ws_ping_interval", cfg.WSPingInterval,
		"events_enabled", cfg.EventsEnabled,
		"events_topic", cfg.EventsTopic,
	)
	if cfg.Kafka != nil {
		cfg.Kafka.LogConfiguration(cfg.Log.Info)
	}
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// GracefulShutdown releases external clients once the server has stopped.
func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}
