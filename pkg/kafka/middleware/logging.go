package kafka_middleware

import (
	"context"
	"time"

	"seva/pkg/kafka"
	"seva/pkg/logger"
)

// LoggingProducerMiddleware logs every publish at debug level and failures at warn
func LoggingProducerMiddleware(log *logger.Logger) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()

		err := next(ctx, msg)

		attrs := []any{
			"topic", msg.Topic,
			"key", msg.Key,
			"event_type", msg.GetEventType(),
			"event_id", msg.GetEventID(),
			"duration", time.Since(start),
		}
		if err != nil {
			log.Warn("Failed to publish Kafka message", append(attrs, "error", err, "error_type", kafka.ClassifyError(err).String())...)
			return err
		}
		log.Debug("Published Kafka message", attrs...)
		return nil
	}
}
