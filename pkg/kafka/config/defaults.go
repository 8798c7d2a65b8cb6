package kafka_config

import "time"

const (
	// Default Kafka broker
	DefaultKafkaBrokers  = "localhost:9092"
	DefaultKafkaClientID = "seva-realtime"

	// Producer defaults. Async keeps publish off the request path; domain
	// events are best-effort after the state change is already durable.
	DefaultProducerMaxAttempts  = 3
	DefaultProducerBatchTimeout = 10 * time.Millisecond
	DefaultProducerRequireAcks  = 1
	DefaultProducerCompression  = "snappy"
	DefaultProducerAsync        = true
	DefaultDLQTopic             = ""

	// Middleware defaults
	DefaultEnableMiddleware = true
)
