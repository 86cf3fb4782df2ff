// Package logging builds the zap logger shared by the lxdm commands.
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvDebug enables debug logging when set to a non-empty value.
const EnvDebug = "LXDM_DEBUG"

// New returns a console logger writing to w at debug level, or a no-op
// logger when debug is false and EnvDebug is unset.
func New(w io.Writer, debug bool) *zap.Logger {
	if !debug && os.Getenv(EnvDebug) == "" {
		return zap.NewNop()
	}

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		zapcore.DebugLevel,
	)
	return zap.New(core, zap.AddCaller(), zap.Development())
}
