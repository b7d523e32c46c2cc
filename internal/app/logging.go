package app

import (
	"schedsync/internal/config"
	logx "schedsync/pkg/logx"
)

// LogConfig maps the logging section onto the logx service config.
func LogConfig(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Format:  c.Format,
		Console: c.Console == nil || *c.Console,
		NoColor: c.UseColors != nil && !*c.UseColors,
		File: logx.FileConfig{
			Enabled: c.File.Enabled,
			Path:    c.File.Path,
		},
	}
}

// cronLogger adapts logx to cron.Logger. Cron's info lines are debug noise here.
type cronLogger struct{ log logx.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.log.Debug(msg, logx.KV(keysAndValues...)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.log.Error(msg, append(logx.KV(keysAndValues...), logx.Err(err))...)
}
