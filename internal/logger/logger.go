package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"log/slog"
)

// Sink 接收框架产生的日志文本，用于把 on_log 通知转发给外部展示层。
// 回调必须是非阻塞的。
type Sink func(level, message string)

var (
	levelVar   slog.LevelVar
	loggerMu   sync.RWMutex
	baseLogger *slog.Logger
	sinkMu     sync.RWMutex
	sink       Sink
)

func init() {
	levelVar.Set(slog.LevelInfo)
	baseLogger = newLogger(os.Stdout)
}

func newLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: &levelVar})
	return slog.New(handler)
}

func SetOutput(w io.Writer) {
	loggerMu.Lock()
	baseLogger = newLogger(w)
	loggerMu.Unlock()
}

func SetLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "info":
		levelVar.Set(slog.LevelInfo)
	case "warn", "warning":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}

// SetSink 注册日志转发回调，传 nil 取消。
func SetSink(s Sink) {
	sinkMu.Lock()
	sink = s
	sinkMu.Unlock()
}

func forward(level, msg string) {
	sinkMu.RLock()
	s := sink
	sinkMu.RUnlock()
	if s != nil {
		s(level, msg)
	}
}

func activeLogger() *slog.Logger {
	loggerMu.RLock()
	l := baseLogger
	loggerMu.RUnlock()
	if l != nil {
		return l
	}
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if baseLogger == nil {
		baseLogger = newLogger(os.Stdout)
	}
	return baseLogger
}

func Debugf(format string, v ...any) {
	activeLogger().Debug(fmt.Sprintf(format, v...))
}

func Infof(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	activeLogger().Info(msg)
	forward("info", msg)
}

func Warnf(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	activeLogger().Warn(msg)
	forward("warn", msg)
}

func Errorf(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	activeLogger().Error(msg)
	forward("error", msg)
}
