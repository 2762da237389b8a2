// Package logging provides the file-backed logger used where the terminal is
// not available, and a discarding logger for optional dependencies.
package logging

import (
	general_i "github.com/beka-birhanu/vinom-common/interfaces/general"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	_ general_i.Logger = (*fileLogger)(nil)
	_ general_i.Logger = nop{}
)

type fileLogger struct {
	s *zap.SugaredLogger
}

func (l *fileLogger) Info(msg string)    { l.s.Info(msg) }
func (l *fileLogger) Warning(msg string) { l.s.Warn(msg) }
func (l *fileLogger) Error(msg string)   { l.s.Error(msg) }

// NewFile returns a logger writing to a size-rotated file, and a function that
// flushes buffered entries.
func NewFile(filePath string, name string) (general_i.Logger, func()) {
	lj := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     7, // days
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
		EncodeName:    zapcore.FullNameEncoder,
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(lj), zapcore.DebugLevel)

	// skip the adapter frame so callers show up in the caller field
	l := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Named(name)
	return &fileLogger{s: l.Sugar()}, func() { _ = l.Sync() }
}

type nop struct{}

func (nop) Info(string)    {}
func (nop) Warning(string) {}
func (nop) Error(string)   {}

// Nop returns a logger that discards everything.
func Nop() general_i.Logger { return nop{} }
