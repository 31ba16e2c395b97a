package tablestore

import (
	"fmt"
	"log/slog"
	"strings"
)

// badgerLogger forwards badger's errors and warnings to slog. Info and debug
// chatter from compactions is dropped.
type badgerLogger struct {
	logger *slog.Logger
}

func (b *badgerLogger) Errorf(format string, args ...interface{}) {
	b.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b *badgerLogger) Warningf(format string, args ...interface{}) {
	b.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b *badgerLogger) Infof(format string, args ...interface{}) {
}

func (b *badgerLogger) Debugf(format string, args ...interface{}) {
}
