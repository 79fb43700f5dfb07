package scheduler

import (
	"fmt"

	"go.uber.org/zap"
)

// auditTrail collects one human-readable line per seed/fill/repair action
// and mirrors each line to the debug log.
type auditTrail struct {
	logger *zap.Logger
	lines  []string
}

func newAuditTrail(logger *zap.Logger) *auditTrail {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &auditTrail{logger: logger}
}

func (a *auditTrail) logf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	a.lines = append(a.lines, line)
	a.logger.Debug(line)
}

func (a *auditTrail) section(name string) {
	a.lines = append(a.lines, name+":")
}

func (a *auditTrail) Lines() []string {
	return a.lines
}
