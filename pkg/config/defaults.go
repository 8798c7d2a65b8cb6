package config

import "time"

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "seva"
	DefaultMongoConnTimeout  = 10 * time.Second
	DefaultMongoReadTimeout  = 5 * time.Second
	DefaultMongoWriteTimeout = 5 * time.Second
	DefaultStorageDriver     = StorageMongo

	DefaultPort      = "8080"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultAllowedOrigins = "*"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultRegistryShards    = 32
	DefaultGeoCellPrecision  = 5 // ~4.9km x 4.9km
	DefaultGeoNeighborFanout = true

	DefaultNotifyRadiusMeters = 5000
	DefaultNotifyMaxUsers     = 500
	DefaultListingDedupWindow = 30 * time.Second

	DefaultWSSendBuffer   = 64
	DefaultWSReadLimit    = 64 * 1024
	DefaultWSPingInterval = 25 * time.Second
	DefaultWSPongWait     = 60 * time.Second
	DefaultWSWriteWait    = 10 * time.Second

	DefaultEventsEnabled = false
	DefaultEventsTopic   = "seva.events"
)
