// Package audit records structured security events.
//
// Recording is best effort: a failing sink is logged and never fails the
// operation that produced the event.
package audit

import (
	"context"
	"maps"
	"time"

	"github.com/louisbranch/shopkeeper/internal/platform/timeouts"
	"go.uber.org/zap"
)

// Kind names a security event.
type Kind string

const (
	KindStaffLoginSucceeded       Kind = "staff.login.succeeded"
	KindStaffLoginFailed          Kind = "staff.login.failed"
	KindClientLoginSucceeded      Kind = "client.login.succeeded"
	KindTwoFactorEnrollStarted    Kind = "two_factor.enrollment_started"
	KindTwoFactorEnabled          Kind = "two_factor.enabled"
	KindTwoFactorDisabled         Kind = "two_factor.disabled"
	KindTwoFactorValidationFailed Kind = "two_factor.validation_failed"
	KindVerificationCodeIssued    Kind = "verification.code_issued"
	KindVerificationCodeRejected  Kind = "verification.code_rejected"
)

// Event is one security event.
type Event struct {
	Kind      Kind
	SubjectID string
	Timestamp time.Time
	Detail    map[string]string
}

// Sink receives events.
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event Event) error

// Record calls f.
func (f SinkFunc) Record(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Record logs the event at info level.
func (s *LogSink) Record(_ context.Context, event Event) error {
	fields := []zap.Field{
		zap.String("kind", string(event.Kind)),
		zap.String("subject_id", event.SubjectID),
		zap.Time("timestamp", event.Timestamp),
	}
	if len(event.Detail) > 0 {
		fields = append(fields, zap.Any("detail", event.Detail))
	}
	s.logger.Info("audit", fields...)
	return nil
}

// Recorder stamps and forwards events to a sink.
type Recorder struct {
	sink    Sink
	logger  *zap.Logger
	clock   func() time.Time
	timeout time.Duration
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock overrides the event timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(r *Recorder) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithTimeout bounds a single sink write.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Recorder) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// NewRecorder creates a Recorder. A nil sink drops events.
func NewRecorder(sink Sink, logger *zap.Logger, opts ...Option) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		sink:    sink,
		logger:  logger,
		clock:   time.Now,
		timeout: timeouts.Audit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record sends an event. The write ignores caller cancellation and is cut off
// after the recorder timeout.
func (r *Recorder) Record(ctx context.Context, kind Kind, subjectID string, detail map[string]string) {
	if r == nil || r.sink == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	event := Event{
		Kind:      kind,
		SubjectID: subjectID,
		Timestamp: r.clock().UTC(),
		Detail:    maps.Clone(detail),
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if err := r.sink.Record(ctx, event); err != nil {
		r.logger.Warn("audit record failed",
			zap.String("kind", string(kind)),
			zap.String("subject_id", subjectID),
			zap.Error(err),
		)
	}
}
