package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Shared field names so log lines can be queried consistently.
const (
	FieldUID       = "uid"
	FieldNoteID    = "noteId"
	FieldRowID     = "rowId"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration"
	FieldRequestIP = "ip"
)

// New builds the application logger. Development uses a colored console
// encoder, everything else writes JSON.
func New(environment, level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	var encoder zapcore.Encoder
	if environment == "production" {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), lvl)
	return zap.New(core, zap.AddCaller()), nil
}

// Bootstrap returns a console logger usable before configuration is loaded.
func Bootstrap() *zap.Logger {
	level := "info"
	if os.Getenv("DEBUG") != "" {
		level = "debug"
	}
	l, err := New("development", level)
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// GormWriter adapts a zap logger to gorm's logger.Writer.
type GormWriter struct {
	Logger *zap.SugaredLogger
}

func (w GormWriter) Printf(format string, args ...interface{}) {
	w.Logger.Infof(format, args...)
}
