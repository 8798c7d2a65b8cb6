package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"
	EnvMongoReadTimeout  = "MONGO_READ_TIMEOUT"
	EnvMongoWriteTimeout = "MONGO_WRITE_TIMEOUT"
	EnvStorageDriver     = "STORAGE_DRIVER"
	EnvSeedUsers         = "SEED_USERS"

	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"

	EnvJWTSecret      = "JWT_SECRET"
	EnvAllowedOrigins = "ALLOWED_ORIGINS"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvRegistryShards    = "REGISTRY_SHARDS"
	EnvGeoCellPrecision  = "GEO_CELL_PRECISION"
	EnvGeoNeighborFanout = "GEO_NEIGHBOR_FANOUT"

	EnvNotifyRadiusMeters = "NOTIFY_RADIUS_METERS"
	EnvNotifyMaxUsers     = "NOTIFY_MAX_USERS"
	EnvListingDedupWindow = "LISTING_DEDUP_WINDOW"

	EnvWSSendBuffer   = "WS_SEND_BUFFER"
	EnvWSReadLimit    = "WS_READ_LIMIT"
	EnvWSPingInterval = "WS_PING_INTERVAL"
	EnvWSPongWait     = "WS_PONG_WAIT"
	EnvWSWriteWait    = "WS_WRITE_WAIT"

	EnvEventsEnabled = "EVENTS_ENABLED"
	EnvEventsTopic   = "EVENTS_TOPIC"
)
