package obs

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce        sync.Once
	requestCounter     metric.Int64Counter
	latencyHistogram   metric.Float64Histogram
	answerCharsHist    metric.Int64Histogram
	sessionsCreatedCtr metric.Int64Counter
	sessionsEvictedCtr metric.Int64Counter
	sessionsExpiredCtr metric.Int64Counter

	bgOnce sync.Once
	bgCtx  context.Context
)

func installMetrics(m meter) {
	metricsOnce.Do(func() {
		if m == nil {
			return
		}
		requestCounter, _ = m.Int64Counter("copilot.requests", metric.WithDescription("Total remote assistant requests"))
		latencyHistogram, _ = m.Float64Histogram("copilot.request.latency_ms", metric.WithDescription("Remote request latency (ms)"))
		answerCharsHist, _ = m.Int64Histogram("copilot.answer.chars", metric.WithDescription("Reconstructed answer length (chars)"))
		sessionsCreatedCtr, _ = m.Int64Counter("copilot.sessions.created", metric.WithDescription("Conversations registered"))
		sessionsEvictedCtr, _ = m.Int64Counter("copilot.sessions.evicted", metric.WithDescription("Conversations evicted at capacity"))
		sessionsExpiredCtr, _ = m.Int64Counter("copilot.sessions.expired", metric.WithDescription("Conversations removed by TTL sweeps"))
	})
}

type meter interface {
	Int64Counter(string, ...metric.Int64CounterOption) (metric.Int64Counter, error)
	Float64Histogram(string, ...metric.Float64HistogramOption) (metric.Float64Histogram, error)
	Int64Histogram(string, ...metric.Int64HistogramOption) (metric.Int64Histogram, error)
}

func recordRequest(attrs ...attribute.KeyValue) {
	if requestCounter != nil {
		if len(attrs) > 0 {
			requestCounter.Add(backgroundContext(), 1, metric.WithAttributes(attrs...))
		} else {
			requestCounter.Add(backgroundContext(), 1)
		}
	}
}

func recordLatency(ms float64, attrs ...attribute.KeyValue) {
	if latencyHistogram != nil {
		if len(attrs) > 0 {
			latencyHistogram.Record(backgroundContext(), ms, metric.WithAttributes(attrs...))
		} else {
			latencyHistogram.Record(backgroundContext(), ms)
		}
	}
}

// RecordAnswerChars tracks the size of reconstructed answers.
func RecordAnswerChars(chars int, attrs ...attribute.KeyValue) {
	if answerCharsHist == nil {
		return
	}
	if len(attrs) > 0 {
		answerCharsHist.Record(backgroundContext(), int64(chars), metric.WithAttributes(attrs...))
	} else {
		answerCharsHist.Record(backgroundContext(), int64(chars))
	}
}

// SessionObserver reports session store lifecycle events as counters. It
// satisfies the store's observer contract.
type SessionObserver struct{}

func (SessionObserver) SessionCreated() {
	if sessionsCreatedCtr != nil {
		sessionsCreatedCtr.Add(backgroundContext(), 1)
	}
}

func (SessionObserver) SessionEvicted() {
	if sessionsEvictedCtr != nil {
		sessionsEvictedCtr.Add(backgroundContext(), 1)
	}
}

func (SessionObserver) SessionsExpired(count int) {
	if sessionsExpiredCtr != nil && count > 0 {
		sessionsExpiredCtr.Add(backgroundContext(), int64(count))
	}
}

func backgroundContext() context.Context {
	bgOnce.Do(func() {
		bgCtx = context.Background()
	})
	return bgCtx
}
