package logger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// StartTimeKey is the context key for start time
	StartTimeKey contextKey = "start_time"
)

var log *logrus.Logger

func init() {
	log = logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
	})
	log.SetLevel(logrus.InfoLevel)
}

// GetLogger returns the singleton logger instance
func GetLogger() *logrus.Logger {
	return log
}

// SetLogLevel sets the global log level
func SetLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context) context.Context {
	requestID := uuid.New().String()
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithStartTime adds start time to the context
func WithStartTime(ctx context.Context) context.Context {
	return context.WithValue(ctx, StartTimeKey, time.Now())
}

// GetRequestID extracts request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetStartTime extracts start time from context
func GetStartTime(ctx context.Context) time.Time {
	if startTime, ok := ctx.Value(StartTimeKey).(time.Time); ok {
		return startTime
	}
	return time.Time{}
}

// LogHTTPRequest logs HTTP request information
func LogHTTPRequest(ctx context.Context, method, path, userAgent, remoteAddr string) {
	log.WithFields(logrus.Fields{
		"request_id":  GetRequestID(ctx),
		"method":      method,
		"path":        path,
		"user_agent":  userAgent,
		"remote_addr": remoteAddr,
		"event":       "http_request",
	}).Info("HTTP request received")
}

// LogHTTPResponse logs HTTP response information
func LogHTTPResponse(ctx context.Context, statusCode int, responseSize int64) {
	startTime := GetStartTime(ctx)
	var latency time.Duration
	if !startTime.IsZero() {
		latency = time.Since(startTime)
	}

	entry := log.WithFields(logrus.Fields{
		"request_id":    GetRequestID(ctx),
		"status_code":   statusCode,
		"response_size": responseSize,
		"latency_ms":    latency.Milliseconds(),
		"event":         "http_response",
	})

	if statusCode >= 500 {
		entry.Error("HTTP response sent")
	} else if statusCode >= 400 {
		entry.Warn("HTTP response sent")
	} else {
		entry.Info("HTTP response sent")
	}
}

// LogCacheOperation logs cache lookups and write-backs
func LogCacheOperation(ctx context.Context, cacheType, symbol, operation string, hit bool, duration time.Duration) {
	log.WithFields(logrus.Fields{
		"request_id":  GetRequestID(ctx),
		"cache_type":  cacheType,
		"symbol":      symbol,
		"operation":   operation,
		"cache_hit":   hit,
		"duration_ms": duration.Milliseconds(),
		"event":       "cache_operation",
		"service":     "cache",
	}).Debug("Cache operation completed")
}

// LogRemoteRequest logs requests to the remote market-data collaborator
func LogRemoteRequest(ctx context.Context, operation, symbol, priority string) {
	log.WithFields(logrus.Fields{
		"request_id": GetRequestID(ctx),
		"operation":  operation,
		"symbol":     symbol,
		"priority":   priority,
		"event":      "remote_request",
		"service":    "upbit_client",
	}).Info("Making request to remote exchange")
}

// LogRemoteResponse logs remote collaborator responses
func LogRemoteResponse(ctx context.Context, operation, symbol string, statusCode int, duration time.Duration) {
	entry := log.WithFields(logrus.Fields{
		"request_id":           GetRequestID(ctx),
		"operation":            operation,
		"symbol":               symbol,
		"status_code":          statusCode,
		"upstream_duration_ms": duration.Milliseconds(),
		"event":                "remote_response",
		"service":              "upbit_client",
	})

	if statusCode >= 500 {
		entry.Error("Remote exchange response received")
	} else if statusCode >= 400 {
		entry.Warn("Remote exchange response received")
	} else {
		entry.Info("Remote exchange response received")
	}
}

// LogRemoteError logs remote collaborator errors
func LogRemoteError(ctx context.Context, operation, symbol string, err error, attempt int, maxRetries int) {
	log.WithFields(logrus.Fields{
		"request_id":  GetRequestID(ctx),
		"operation":   operation,
		"symbol":      symbol,
		"error":       err.Error(),
		"attempt":     attempt,
		"max_retries": maxRetries,
		"event":       "remote_error",
		"service":     "upbit_client",
	}).Error("Remote exchange error occurred")
}

// LogProviderRequest logs a completed provider operation
func LogProviderRequest(ctx context.Context, kind, symbol, source string, cacheHit bool, duration time.Duration, err error) {
	fields := logrus.Fields{
		"request_id":  GetRequestID(ctx),
		"kind":        kind,
		"symbol":      symbol,
		"source":      source,
		"cache_hit":   cacheHit,
		"duration_ms": duration.Milliseconds(),
		"event":       "provider_request",
		"service":     "provider",
	}

	if err != nil {
		fields["error"] = err.Error()
		log.WithFields(fields).Error("Provider request failed")
		return
	}
	log.WithFields(fields).Info("Provider request completed")
}

// LogServiceEvent logs general service events
func LogServiceEvent(ctx context.Context, event string, message string, fields map[string]interface{}) {
	logFields := logrus.Fields{
		"request_id": GetRequestID(ctx),
		"event":      event,
	}
	for k, v := range fields {
		logFields[k] = v
	}
	log.WithFields(logFields).Info(message)
}
