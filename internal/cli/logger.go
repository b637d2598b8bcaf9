package cli

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds the stderr logger. The console layout is
// "<time> [<level>] <message> <fields>".
func newLogger(globals *Globals) *zap.Logger {
	if globals == nil {
		return zap.NewNop()
	}

	level := zapcore.InfoLevel
	if parsed, err := zapcore.ParseLevel(globals.Level); err == nil {
		level = parsed
	}
	switch {
	case globals.Verbose:
		level = zapcore.DebugLevel
	case globals.Quiet && level < zapcore.WarnLevel:
		level = zapcore.WarnLevel
	}

	var out io.Writer = globals.Stderr
	if out == nil {
		out = os.Stderr
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder

	var encoder zapcore.Encoder
	if globals.LogFormat == "json" {
		encoder = zapcore.NewJSONEncoder(cfg)
	} else {
		cfg.EncodeLevel = bracketLevelEncoder
		cfg.ConsoleSeparator = " "
		cfg.CallerKey = zapcore.OmitKey
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(out)), level)
	return zap.New(core)
}

func bracketLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + l.String() + "]")
}
