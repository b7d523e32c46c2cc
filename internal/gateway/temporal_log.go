package gateway

import (
	"go.temporal.io/sdk/log"

	"schedsync/pkg/logx"
)

// temporalLogger routes Temporal SDK logs into logx.
type temporalLogger struct {
	l logx.Logger
}

var (
	_ log.Logger     = temporalLogger{}
	_ log.WithLogger = temporalLogger{}
)

// NewTemporalLogger adapts l to the Temporal SDK logger interface.
func NewTemporalLogger(l logx.Logger) log.Logger {
	return temporalLogger{l: l.With(logx.String("src", "temporal-sdk"))}
}

func (t temporalLogger) Debug(msg string, keyvals ...interface{}) { t.l.Debug(msg, logx.KV(keyvals...)...) }
func (t temporalLogger) Info(msg string, keyvals ...interface{})  { t.l.Info(msg, logx.KV(keyvals...)...) }
func (t temporalLogger) Warn(msg string, keyvals ...interface{})  { t.l.Warn(msg, logx.KV(keyvals...)...) }
func (t temporalLogger) Error(msg string, keyvals ...interface{}) { t.l.Error(msg, logx.KV(keyvals...)...) }

func (t temporalLogger) With(keyvals ...interface{}) log.Logger {
	return temporalLogger{l: t.l.With(logx.KV(keyvals...)...)}
}
