package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Key constants for structured log fields.
const (
	KeyComponent = "component"
	KeySessionID = "sessionId"
	KeySource    = "source"
	KeyState     = "state"
	KeyPath      = "path"
)

// switchCore lets loggers created before Init pick up the configured core.
type switchCore struct {
	state  *switchState
	fields []zapcore.Field
}

type switchState struct {
	current atomic.Value // zapcore.Core
}

func newSwitchCore(core zapcore.Core) *switchCore {
	state := &switchState{}
	state.current.Store(coreHolder{core})
	return &switchCore{state: state}
}

// coreHolder keeps atomic.Value stores on one concrete type.
type coreHolder struct {
	core zapcore.Core
}

func (c *switchCore) set(core zapcore.Core) {
	c.state.current.Store(coreHolder{core})
}

func (c *switchCore) materialize() zapcore.Core {
	core := c.state.current.Load().(coreHolder).core
	if len(c.fields) > 0 {
		core = core.With(c.fields)
	}
	return core
}

func (c *switchCore) Enabled(level zapcore.Level) bool {
	return c.materialize().Enabled(level)
}

func (c *switchCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &switchCore{state: c.state, fields: merged}
}

func (c *switchCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *switchCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return c.materialize().Write(entry, fields)
}

func (c *switchCore) Sync() error {
	return c.materialize().Sync()
}

var (
	rootCore   = newSwitchCore(newCore("console", zapcore.InfoLevel, os.Stderr))
	rootLogger = zap.New(rootCore)
)

// Init configures the global logger. Call once after config is loaded.
// format: "json" or "console" (default "console")
// level: "debug", "info", "warn", "error" (default "info")
// output: writer to log to (nil = os.Stderr)
func Init(format, level string, output io.Writer) {
	if output == nil {
		output = os.Stderr
	}
	rootCore.set(newCore(format, parseLevel(level), output))
}

// L returns a logger tagged with the given component name.
func L(component string) *zap.Logger {
	return rootLogger.With(zap.String(KeyComponent, component))
}

// Sync flushes buffered log entries.
func Sync() error {
	return rootLogger.Sync()
}

// OpenFile opens an append-only log file, creating parent directories.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(dirOf(path), 0o700); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}

func newCore(format string, level zapcore.Level, output io.Writer) zapcore.Core {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.EqualFold(format, "json") {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewCore(encoder, zapcore.AddSync(output), level)
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func dirOf(path string) string {
	idx := strings.LastIndexAny(path, `/\`)
	if idx <= 0 {
		return "."
	}
	return path[:idx]
}
