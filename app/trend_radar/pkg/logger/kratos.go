package logger

import (
	"fmt"

	klog "github.com/go-kratos/kratos/v2/log"
	"github.com/sirupsen/logrus"
)

type kratosLogger struct {
	log *logrus.Logger
}

// NewKratosLogger 把 logrus 适配为 kratos 的 log.Logger
func NewKratosLogger(l *logrus.Logger) klog.Logger {
	return &kratosLogger{log: l}
}

func (k *kratosLogger) Log(level klog.Level, keyvals ...interface{}) error {
	if len(keyvals) == 0 {
		return nil
	}
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, "KEYVALS UNPAIRED")
	}

	var msg string
	fields := make(logrus.Fields, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if key == klog.DefaultMessageKey {
			msg = fmt.Sprint(keyvals[i+1])
			continue
		}
		fields[key] = keyvals[i+1]
	}

	entry := k.log.WithFields(fields)
	switch level {
	case klog.LevelDebug:
		entry.Debug(msg)
	case klog.LevelWarn:
		entry.Warn(msg)
	case klog.LevelError, klog.LevelFatal:
		entry.Error(msg)
	default:
		entry.Info(msg)
	}
	return nil
}
