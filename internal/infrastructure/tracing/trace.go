package tracing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/WidgetHost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/WidgetHost/internal/shared/id"
)

// Header carries the request id in both directions
const Header = "X-Request-ID"

const maxIDLen = 128

// Span is one traced request
type Span struct {
	RequestID  string
	Name       string
	Method     string
	StartTime  time.Time
	Duration   time.Duration
	StatusCode int
	Error      error
}

// Finish records the outcome of the span
func (s *Span) Finish(status int, err error) {
	s.Duration = time.Since(s.StartTime)
	s.StatusCode = status
	s.Error = err
}

// Tracer collects finished spans and logs them off the request path
type Tracer struct {
	logger  *zap.Logger
	spans   chan *Span
	dropped atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
}

// New creates a tracer and starts its collector
func New(logger *zap.Logger) *Tracer {
	t := &Tracer{
		logger: logging.OrNop(logger),
		spans:  make(chan *Span, 1000),
		done:   make(chan struct{}),
	}
	go t.collect()
	return t
}

// StartSpan begins a span, reusing the request id already in ctx
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	rid := RequestID(ctx)
	if rid == "" {
		rid = id.NewRequestID().String()
		ctx = WithRequestID(ctx, rid)
	}
	return &Span{RequestID: rid, Name: name, StartTime: time.Now()}, ctx
}

// Submit hands a finished span to the collector without blocking
func (t *Tracer) Submit(span *Span) {
	select {
	case <-t.done:
		return
	default:
	}
	select {
	case t.spans <- span:
	default:
		t.dropped.Add(1)
	}
}

// Dropped reports how many spans were discarded because the buffer was full
func (t *Tracer) Dropped() int64 {
	return t.dropped.Load()
}

// Close stops the collector after draining buffered spans
func (t *Tracer) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
	})
}

func (t *Tracer) collect() {
	for {
		select {
		case span := <-t.spans:
			t.log(span)
		case <-t.done:
			for {
				select {
				case span := <-t.spans:
					t.log(span)
				default:
					return
				}
			}
		}
	}
}

func (t *Tracer) log(span *Span) {
	fields := []zap.Field{
		zap.String("request_id", span.RequestID),
		zap.String("method", span.Method),
		zap.String("route", span.Name),
		zap.Int("status", span.StatusCode),
		zap.Duration("duration", span.Duration),
	}
	switch {
	case span.Error != nil || span.StatusCode >= 500:
		t.logger.Error("Request failed", append(fields, zap.Error(span.Error))...)
	case span.StatusCode >= 400:
		t.logger.Info("Request rejected", fields...)
	default:
		t.logger.Debug("Request completed", fields...)
	}
}

type contextKey struct{}

// WithRequestID stores a request id in ctx
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

// RequestID returns the request id stored in ctx, if any
func RequestID(ctx context.Context) string {
	rid, _ := ctx.Value(contextKey{}).(string)
	return rid
}

// acceptable reports whether a client supplied id is safe to reuse
func acceptable(rid string) bool {
	if rid == "" || len(rid) > maxIDLen {
		return false
	}
	for _, r := range rid {
		if r < 0x21 || r > 0x7e {
			return false
		}
	}
	return true
}
