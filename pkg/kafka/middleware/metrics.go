package kafka_middleware

import (
	"context"
	"sync/atomic"
	"time"

	"seva/pkg/kafka"
)

// Metrics counts publish outcomes for one producer
type Metrics struct {
	published     atomic.Int64
	failed        atomic.Int64
	durationTotal atomic.Int64 // nanoseconds
}

// MetricsSnapshot is a point-in-time copy suitable for JSON output
type MetricsSnapshot struct {
	Published          int64  `json:"published"`
	Failed             int64  `json:"failed"`
	AvgPublishDuration string `json:"avg_publish_duration"`
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) AvgPublishDuration() time.Duration {
	total := m.published.Load() + m.failed.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.durationTotal.Load() / total)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Published:          m.published.Load(),
		Failed:             m.failed.Load(),
		AvgPublishDuration: m.AvgPublishDuration().String(),
	}
}

// Producer returns a middleware recording into m
func (m *Metrics) Producer() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		m.durationTotal.Add(int64(time.Since(start)))

		if err != nil {
			m.failed.Add(1)
		} else {
			m.published.Add(1)
		}
		return err
	}
}
