package nakama

import (
	"github.com/heroiclabs/nakama-common/runtime"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// runtimeCore forwards zap entries to the Nakama runtime logger so the registry's
// structured logs end up in the server log.
type runtimeCore struct {
	zapcore.LevelEnabler
	logger runtime.Logger
	fields []zapcore.Field
}

func newZapLogger(logger runtime.Logger) *zap.Logger {
	return zap.New(&runtimeCore{LevelEnabler: zapcore.DebugLevel, logger: logger})
}

func (c *runtimeCore) With(fields []zapcore.Field) zapcore.Core {
	next := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	next = append(next, c.fields...)
	next = append(next, fields...)
	return &runtimeCore{LevelEnabler: c.LevelEnabler, logger: c.logger, fields: next}
}

func (c *runtimeCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *runtimeCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	logger := c.logger
	if len(enc.Fields) > 0 {
		logger = logger.WithFields(enc.Fields)
	}

	switch {
	case entry.Level >= zapcore.ErrorLevel:
		logger.Error("%s", entry.Message)
	case entry.Level == zapcore.WarnLevel:
		logger.Warn("%s", entry.Message)
	case entry.Level == zapcore.InfoLevel:
		logger.Info("%s", entry.Message)
	default:
		logger.Debug("%s", entry.Message)
	}
	return nil
}

func (c *runtimeCore) Sync() error { return nil }
