// Package logging carries request-scoped identity and trace information
// through context and renders request/security log lines. The HTTP layer is
// the only writer of these context values; everything below receives the
// acting user as an explicit argument instead.
package logging

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/winddownhq/winddown/pkg/logger"
)

type contextKey string

const (
	// UserIDKey holds the authenticated user id.
	UserIDKey contextKey = "user_id"
	// RoleKey holds the authenticated user's role, when the token carries one.
	RoleKey contextKey = "role"
	// TraceIDKey holds the request trace id.
	TraceIDKey contextKey = "trace_id"
)

// Logger renders structured log lines enriched from context.
type Logger struct {
	*logger.Logger
}

// New builds a context-aware logger for the named component.
func New(service, level, format string) *Logger {
	base := logger.New(logger.LoggingConfig{Level: level, Format: format, Output: "stdout"})
	if service != "" {
		base = base.WithField("service", service)
	}
	return &Logger{Logger: base}
}

// NewWith wraps an existing logger with context enrichment.
func NewWith(base *logger.Logger) *Logger {
	if base == nil {
		base = logger.NewDefault("")
	}
	return &Logger{Logger: base}
}

// WithContext returns a logger carrying trace id, user id and role from ctx.
func (l *Logger) WithContext(ctx context.Context) *logger.Logger {
	out := l.Logger
	if traceID := GetTraceID(ctx); traceID != "" {
		out = out.WithField("trace_id", traceID)
	}
	if userID := GetUserID(ctx); userID != "" {
		out = out.WithField("user_id", userID)
	}
	if role := GetRole(ctx); role != "" {
		out = out.WithField("role", role)
	}
	return out
}

// LogRequest writes one line per completed HTTP request.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	l.WithContext(ctx).WithFields(map[string]interface{}{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	}).Info("request completed")
}

// LogSecurityEvent writes auth and throttling events at warn level.
func (l *Logger) LogSecurityEvent(ctx context.Context, event string, fields map[string]interface{}) {
	entry := l.WithContext(ctx).WithField("event", event)
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Warn("security event")
}

// WithUserID stores the acting user id in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID returns the acting user id, or "" when unauthenticated.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}

// GetRole returns the acting user's role, or "".
func GetRole(ctx context.Context) string {
	if v, ok := ctx.Value(RoleKey).(string); ok {
		return v
	}
	return ""
}

// WithTraceID stores a trace id in ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		return ctx
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID returns the trace id, or "".
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		return v
	}
	return ""
}

// NewTraceID mints a fresh trace id.
func NewTraceID() string {
	return uuid.NewString()
}
